package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"serialpha/src/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// -----------------------------------------------------------------------------

// Logger provides named logging on top of the global zap core
type Logger struct {
	name   string
	sugar  *zap.SugaredLogger
	config interface{}
}

var initMu sync.Mutex

// -----------------------------------------------------------------------------

// Init builds the global zap logger from the application config.
// Loggers created before Init keep writing through the logger they captured.
func Init(level string, cfg models.MLoggerConfig) error {
	initMu.Lock()
	defer initMu.Unlock()

	var zapConfig zap.Config
	if cfg.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	zapConfig.OutputPaths = []string{"stdout"}

	var base *zap.Logger
	if cfg.FileEnable {
		if cfg.Filename == "" {
			return fmt.Errorf("logger file enabled without a filename")
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    orDefault(cfg.MaxSizeMB, 64),
			MaxBackups: orDefault(cfg.MaxBackups, 7),
			MaxAge:     orDefault(cfg.MaxAgeDays, 7),
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(rotating),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		base = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	} else {
		var err error
		base, err = zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1))
		if err != nil {
			return fmt.Errorf("failed to build zap logger: %w", err)
		}
	}

	zap.ReplaceGlobals(base)
	return nil
}

// -----------------------------------------------------------------------------

// ParseLevel maps the config log level names to zap levels. Unknown names give INFO.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARNING", "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "CRITICAL", "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// -----------------------------------------------------------------------------

// Sync flushes buffered entries of the global logger
func Sync() {
	_ = zap.L().Sync()
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance
func NewLogger(config interface{}, name string) *Logger {
	l := &Logger{
		name:   name,
		sugar:  zap.S().Named(name),
		config: config,
	}
	return l
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.sugar.Fatalf(format, args...)
}

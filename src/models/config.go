package models

// MConfig Structure
type MConfig struct {
	Name         string           `yaml:"name"`
	Host         string           `yaml:"host"`
	Port         int              `yaml:"port"`
	LogLevel     string           `yaml:"log_level"`
	GrpcHost     string           `yaml:"grpc_host"`
	GrpcPort     int              `yaml:"grpc_port"`
	Logger       MLoggerConfig    `yaml:"logger"`
	Storage      MStorageConfig   `yaml:"storage"`
	Transport    MTransportConfig `yaml:"transport"`
	Sampling     MSamplingConfig  `yaml:"sampling"`
	Export       MExportConfig    `yaml:"export"`
	ProfilesFile string           `yaml:"profiles_file"`
}

type MLoggerConfig struct {
	Mode       string `yaml:"mode"` // "development" or "production"
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // sqlite, postgres, bolt
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionRows      int    `yaml:"retention_rows"`
}

type MTransportConfig struct {
	Port           string `yaml:"port"`
	ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
	MaxBufferBytes int    `yaml:"max_buffer_bytes"`
	ReplayFile     string `yaml:"replay_file"` // Optional, replaces the serial port
	ReplayChunk    int    `yaml:"replay_chunk_bytes"`
	ReplayDelayMs  int    `yaml:"replay_delay_ms"`
}

type MSamplingConfig struct {
	IntervalValue string `yaml:"interval_value"`
	IntervalUnit  string `yaml:"interval_unit"`
	MaxPoints     int    `yaml:"max_points"`
}

type MExportConfig struct {
	Folder         string `yaml:"folder"`
	FallbackDir    string `yaml:"fallback_dir"`
	AutoExportCron string `yaml:"auto_export_cron"` // Optional, e.g. "@every 10m"
}

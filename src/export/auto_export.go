package export

import (
	"context"
	"time"

	"serialpha/src/helpers"
	"serialpha/src/logger"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule reports whether spec is an accepted auto export schedule.
func ValidateSchedule(spec string) error {
	if _, err := cronParser.Parse(spec); err != nil {
		return helpers.NewConfigurationError("invalid auto export schedule %q: %v", spec, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// AutoExporter runs an export job on a cron schedule.
type AutoExporter struct {
	spec   string
	sched  *cron.Cron
	logger *logger.Logger
}

// NewAutoExporter validates spec ("@every 10m", "0 */5 * * * *", ...) and
// registers job. Overlapping runs are skipped.
func NewAutoExporter(spec string, job func()) (*AutoExporter, error) {
	if err := ValidateSchedule(spec); err != nil {
		return nil, err
	}

	log := logger.NewLogger(nil, "AutoExport")
	sched := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := sched.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Auto export panicked: %v", r)
			}
		}()
		job()
	})
	if err != nil {
		return nil, helpers.NewConfigurationError("failed to schedule auto export: %v", err)
	}
	return &AutoExporter{spec: spec, sched: sched, logger: log}, nil
}

// -----------------------------------------------------------------------------

func (a *AutoExporter) Start() {
	a.sched.Start()
	a.logger.Info("Auto export scheduled (%s)", a.spec)
}

// Stop waits up to timeout for a running export to finish.
func (a *AutoExporter) Stop(timeout time.Duration) {
	done := a.sched.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
		a.logger.Warning("Auto export still running after %v", timeout)
	}
}

// Next returns the next scheduled run, zero before Start.
func (a *AutoExporter) Next() time.Time {
	entries := a.sched.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

package session

import (
	"slices"
	"sync"
	"time"

	"serialpha/src/analysis"
	"serialpha/src/helpers"
	"serialpha/src/logger"
	"serialpha/src/models"
	"serialpha/src/profile"
	"serialpha/src/sampling"
	"serialpha/src/utils"
)

// -----------------------------------------------------------------------------

// Session is the single owner of the acquisition state: the latest
// measurement, the three series, their counters and the display field.
// All methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	profileName   string
	fields        []string
	selectedField string

	mailbox   *sampling.Mailbox
	realTime  []models.MRealTimeRow
	readCount int
	titration *analysis.TitrationEngine

	logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSession(p models.MProfile) *Session {
	s := &Session{
		mailbox:   sampling.NewMailbox(),
		titration: analysis.NewTitrationEngine(),
		logger:    logger.NewLogger(nil, "Session"),
	}
	s.applyProfile(p)
	return s
}

// -----------------------------------------------------------------------------

// SetProfile switches the display fields. The selected field survives when
// the new profile still has it.
func (s *Session) SetProfile(p models.MProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyProfile(p)
	s.titration.Recompute(s.selectedField)
}

func (s *Session) applyProfile(p models.MProfile) {
	s.profileName = p.Name
	s.fields = profile.DisplayFields(&p)
	s.selectedField = profile.DefaultField(s.fields, s.selectedField)
}

// -----------------------------------------------------------------------------

// Publish stores a parsed measurement as the latest one.
func (s *Session) Publish(m models.MMeasurement) {
	s.mailbox.Put(m)
}

// Latest returns the latest measurement, false if none was parsed yet.
func (s *Session) Latest() (models.MMeasurement, bool) {
	return s.mailbox.Latest()
}

// -----------------------------------------------------------------------------

// Sample appends a real-time row from the latest measurement.
// Without a measurement it does nothing and returns false.
func (s *Session) Sample(now time.Time) (models.MRealTimeRow, bool) {
	latest, ok := s.mailbox.Latest()
	if !ok {
		return models.MRealTimeRow{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.readCount++
	row := models.MRealTimeRow{
		Date:   now.Format(analysis.DateLayout),
		Time:   now.Format(analysis.TimeLayout),
		Read:   s.readCount,
		Fields: latest.Project(s.fields),
	}
	s.realTime = append(s.realTime, row)
	return row, true
}

// -----------------------------------------------------------------------------

// AddPoint appends a titration row using the latest measurement.
func (s *Session) AddPoint(increment float64, now time.Time) (models.MTitrationRow, bool) {
	latest, ok := s.mailbox.Latest()
	if !ok {
		return models.MTitrationRow{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.titration.AddPoint(latest, increment, s.fields, s.selectedField, now)
}

// -----------------------------------------------------------------------------

// SelectField changes the display field and rebuilds the derivative for it.
func (s *Session) SelectField(field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.Contains(s.fields, field) {
		return helpers.NewConfigurationError("unknown field %q, expected one of %v", field, s.fields)
	}
	s.selectedField = field
	s.titration.Recompute(field)
	return nil
}

// SelectedField returns the display field.
func (s *Session) SelectedField() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedField
}

// Fields returns the display fields.
func (s *Session) Fields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fields...)
}

// -----------------------------------------------------------------------------

// Clear drops all series and resets the counters. The latest measurement is kept.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realTime = nil
	s.readCount = 0
	s.titration.Reset()
	s.logger.Info("Session data cleared")
}

// IsEmpty reports whether all three series are empty.
func (s *Session) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.realTime) == 0 && len(s.titration.Rows()) == 0
}

// -----------------------------------------------------------------------------

// Snapshot captures the session for persistence.
func (s *Session) Snapshot(reason string, now time.Time) *models.MSessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &models.MSessionSnapshot{
		SavedAt:    now.UnixMilli(),
		Reason:     reason,
		RealTime:   append([]models.MRealTimeRow(nil), s.realTime...),
		Titration:  s.titration.Rows(),
		Derivative: s.titration.Derivative(),
		Meta: models.MSessionMeta{
			VolumeSum:      s.titration.VolumeSum(),
			ReadCount:      s.readCount,
			TitrationCount: s.titration.Count(),
			SelectedField:  s.selectedField,
			Fields:         append([]string(nil), s.fields...),
			ProfileName:    s.profileName,
		},
	}
}

// -----------------------------------------------------------------------------

// Restore loads a snapshot. Counters missing from older snapshots fall back
// to the series lengths, so read numbers keep increasing.
func (s *Session) Restore(snap *models.MSessionSnapshot) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.realTime = append([]models.MRealTimeRow(nil), snap.RealTime...)

	s.readCount = snap.Meta.ReadCount
	if s.readCount == 0 {
		s.readCount = len(snap.RealTime)
	}
	titCount := snap.Meta.TitrationCount
	if titCount == 0 {
		titCount = len(snap.Titration)
	}
	volumeSum := snap.Meta.VolumeSum
	if volumeSum == 0 && len(snap.Titration) > 0 {
		volumeSum = snap.Titration[len(snap.Titration)-1].Volume
	}
	s.titration.Restore(snap.Titration, snap.Derivative, volumeSum, titCount)

	if len(s.fields) == 0 && len(snap.Meta.Fields) > 0 {
		s.fields = append([]string(nil), snap.Meta.Fields...)
	}
	if snap.Meta.SelectedField != "" && slices.Contains(s.fields, snap.Meta.SelectedField) {
		s.selectedField = snap.Meta.SelectedField
	}

	s.logger.Info("Session restored (%s): %d real-time, %d titration, %d derivative rows",
		snap.Reason, len(s.realTime), len(snap.Titration), len(snap.Derivative))
}

// -----------------------------------------------------------------------------

// ExportData returns copies of the series for an export sink.
func (s *Session) ExportData() models.MExportData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.MExportData{
		Fields:     append([]string(nil), s.fields...),
		RealTime:   append([]models.MRealTimeRow(nil), s.realTime...),
		Titration:  s.titration.Rows(),
		Derivative: s.titration.Derivative(),
	}
}

// -----------------------------------------------------------------------------

// Counts returns the real-time, titration and derivative lengths.
func (s *Session) Counts() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.realTime), len(s.titration.Rows()), len(s.titration.Derivative())
}

// TitrationSeries returns copies of the titration and derivative series.
func (s *Session) TitrationSeries() ([]models.MTitrationRow, []models.MDerivativePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.titration.Rows(), s.titration.Derivative()
}

// RealTimeTail returns up to n of the newest real-time rows.
func (s *Session) RealTimeTail(n int) []models.MRealTimeRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return utils.Tail(s.realTime, n)
}

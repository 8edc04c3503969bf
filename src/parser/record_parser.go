package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"serialpha/src/logger"
	"serialpha/src/models"
	"serialpha/src/profile"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x1F\x7F]+`)
	whitespace   = regexp.MustCompile(`[\s\p{Zs}]+`)
	numberToken  = regexp.MustCompile(`[+-]?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`)
)

// RejectField is the field whose out-of-range value rejects the whole record.
const RejectField = "pH"

// -----------------------------------------------------------------------------

// Parser turns raw records into measurements for one profile.
// Bindings are resolved once, at construction.
type Parser struct {
	profile  models.MProfile
	bindings []profile.Binding
	logger   *logger.Logger
}

// -----------------------------------------------------------------------------

// NewParser compiles the field bindings of p.
func NewParser(p models.MProfile) *Parser {
	ps := &Parser{
		profile:  p,
		bindings: profile.Bindings(&p),
		logger:   logger.NewLogger(nil, "RecordParser"),
	}
	for _, b := range ps.bindings {
		switch {
		case b.Ambiguous:
			ps.logger.Debug("Field '%s' matches several columns, using index %d", b.Key, b.Index)
		case b.Strategy == profile.ByFuzzyMatch:
			ps.logger.Debug("Field '%s' resolved by fuzzy match to index %d", b.Key, b.Index)
		case b.Strategy == profile.Unresolved:
			ps.logger.Debug("Field '%s' cannot be located in profile '%s'", b.Key, p.Name)
		}
	}
	return ps
}

// -----------------------------------------------------------------------------

// Parse is a convenience for one-off records.
func Parse(record string, p *models.MProfile) models.MMeasurement {
	return NewParser(*p).Parse(record)
}

// -----------------------------------------------------------------------------

// Sanitize removes control characters and byte order marks and collapses whitespace.
func Sanitize(record string) string {
	s := controlChars.ReplaceAllString(record, "")
	s = strings.ReplaceAll(s, "\uFEFF", "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// -----------------------------------------------------------------------------

// ExtractNumber returns the first numeric token in s, or nil when there is none.
// Tokens outside the float64 range count as no number.
func ExtractNumber(s string) *float64 {
	m := numberToken.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// -----------------------------------------------------------------------------

// Parse returns the measurement held by record, or nil when validation rejects it.
func (p *Parser) Parse(record string) models.MMeasurement {
	cleaned := Sanitize(record)
	parts := strings.Split(cleaned, p.profile.Parser.Delimiter)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	data := make(models.MMeasurement, len(p.bindings))
	for _, b := range p.bindings {
		if !b.Usable() || b.Index >= len(parts) {
			continue
		}
		data[b.Key] = ExtractNumber(parts[b.Index])
	}

	if !p.validate(data) {
		p.logger.Debug("Record rejected by validation: %q", cleaned)
		return nil
	}
	return data
}

// -----------------------------------------------------------------------------

// validate rejects the record when the pH value is out of range. Other
// fields with a declared range are blanked instead.
func (p *Parser) validate(data models.MMeasurement) bool {
	for field, rng := range p.profile.Parser.Validation {
		v, ok := data[field]
		if !ok || v == nil {
			continue
		}
		if inRange(*v, rng) {
			continue
		}
		if field == RejectField {
			return false
		}
		data[field] = nil
	}
	return true
}

func inRange(v float64, r models.MRange) bool {
	if math.IsNaN(v) {
		return false
	}
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

package profile

import (
	"slices"
	"sort"
	"strings"

	"serialpha/src/models"
)

// Strategy tells how a canonical key was bound to a token position.
type Strategy int

const (
	Unresolved Strategy = iota
	ByMap
	ByPosition
	ByFuzzyMatch
)

func (s Strategy) String() string {
	switch s {
	case ByMap:
		return "map"
	case ByPosition:
		return "position"
	case ByFuzzyMatch:
		return "fuzzy"
	default:
		return "unresolved"
	}
}

// Binding is the resolved position of one canonical key.
type Binding struct {
	Key       string
	Index     int
	Strategy  Strategy
	Ambiguous bool // fuzzy match hit more than one field
}

// Usable reports whether the binding points at a token position at all.
func (b Binding) Usable() bool {
	return b.Strategy != Unresolved && b.Index >= 0
}

// -----------------------------------------------------------------------------

// CanonicalKeys returns the keys a parsed measurement can carry:
// the map keys when the map is non-empty, otherwise the declared fields.
// Map keys come back sorted so that logs and bindings are stable.
func CanonicalKeys(p *models.MProfile) []string {
	if len(p.Parser.Map) > 0 {
		keys := make([]string, 0, len(p.Parser.Map))
		for k := range p.Parser.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	}
	return append([]string(nil), p.Parser.Fields...)
}

// -----------------------------------------------------------------------------

// Resolve binds one key, trying map, then position in fields, then a
// case-insensitive substring match against fields.
func Resolve(p *models.MProfile, key string) Binding {
	if idx, ok := p.Parser.Map[key]; ok && idx != nil {
		return Binding{Key: key, Index: *idx, Strategy: ByMap}
	}

	for i, f := range p.Parser.Fields {
		if f == key {
			return Binding{Key: key, Index: i, Strategy: ByPosition}
		}
	}

	lowerKey := strings.ToLower(key)
	b := Binding{Key: key, Index: -1, Strategy: Unresolved}
	for i, f := range p.Parser.Fields {
		if !strings.Contains(strings.ToLower(f), lowerKey) {
			continue
		}
		if b.Strategy == ByFuzzyMatch {
			b.Ambiguous = true
			break
		}
		b = Binding{Key: key, Index: i, Strategy: ByFuzzyMatch}
	}
	return b
}

// -----------------------------------------------------------------------------

// Bindings resolves every canonical key of the profile.
func Bindings(p *models.MProfile) []Binding {
	keys := CanonicalKeys(p)
	out := make([]Binding, 0, len(keys))
	for _, k := range keys {
		out = append(out, Resolve(p, k))
	}
	return out
}

// -----------------------------------------------------------------------------

// DisplayFields is the column list for rows and exports.
func DisplayFields(p *models.MProfile) []string {
	if p == nil || len(p.Parser.Fields) == 0 {
		return []string{"pH", "temperature"}
	}
	return append([]string(nil), p.Parser.Fields...)
}

// DefaultField keeps current when it is one of fields, else prefers pH, else the first field.
func DefaultField(fields []string, current string) string {
	if current != "" && slices.Contains(fields, current) {
		return current
	}
	if slices.Contains(fields, "pH") {
		return "pH"
	}
	if len(fields) > 0 {
		return fields[0]
	}
	return ""
}

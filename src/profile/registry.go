package profile

import (
	"sync"

	"serialpha/src/helpers"
	"serialpha/src/logger"
	"serialpha/src/models"
)

// -----------------------------------------------------------------------------

// Registry is the ordered list of known profiles plus the current selection.
type Registry struct {
	mu       sync.RWMutex
	profiles []models.MProfile
	selected int
	logger   *logger.Logger
}

// -----------------------------------------------------------------------------

// NewRegistry starts with the built-in profiles and the first one selected.
func NewRegistry() *Registry {
	return &Registry{
		profiles: Builtin(),
		logger:   logger.NewLogger(nil, "ProfileRegistry"),
	}
}

// -----------------------------------------------------------------------------

// List returns a copy of all profiles in order.
func (r *Registry) List() []models.MProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.MProfile(nil), r.profiles...)
}

// -----------------------------------------------------------------------------

// Len returns the number of registered profiles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// -----------------------------------------------------------------------------

// Get returns the profile at index.
func (r *Registry) Get(index int) (models.MProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.profiles) {
		return models.MProfile{}, helpers.NewConfigurationError("invalid instrument selection: %d", index)
	}
	return r.profiles[index], nil
}

// -----------------------------------------------------------------------------

// Select makes the profile at index the active one.
func (r *Registry) Select(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.profiles) {
		return helpers.NewConfigurationError("invalid instrument selection: %d", index)
	}
	r.selected = index
	r.logger.Info("Selected profile %d: %s", index, r.profiles[index].Name)
	return nil
}

// -----------------------------------------------------------------------------

// Selected returns the active profile and its index.
func (r *Registry) Selected() (models.MProfile, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[r.selected], r.selected
}

// -----------------------------------------------------------------------------

// Import appends every acceptable profile found in raw, a decoded interchange
// document. Existing profiles are never replaced. It returns the accepted and
// rejected counts.
func (r *Registry) Import(raw interface{}) (int, int, error) {
	accepted, rejected := Normalize(raw)
	if rejected > 0 {
		r.logger.Warning("Skipped %d invalid profile(s) during import", rejected)
	}
	if len(accepted) == 0 {
		return 0, rejected, helpers.NewConfigurationError("no valid instrument profile in document")
	}

	r.mu.Lock()
	r.profiles = append(r.profiles, accepted...)
	r.mu.Unlock()

	r.logger.Info("Imported %d profile(s)", len(accepted))
	return len(accepted), rejected, nil
}

// -----------------------------------------------------------------------------

// Export returns the interchange document for every registered profile.
func (r *Registry) Export() models.MProfileDocument {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return models.MProfileDocument{
		Version:     DocumentVersion,
		Instruments: append([]models.MProfile(nil), r.profiles...),
		Selected:    r.selected,
	}
}

// -----------------------------------------------------------------------------

// Restore replaces the list with a previously exported document.
// An empty document leaves the registry untouched.
func (r *Registry) Restore(doc *models.MProfileDocument) {
	if doc == nil || len(doc.Instruments) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = append([]models.MProfile(nil), doc.Instruments...)
	r.selected = 0
	if doc.Selected >= 0 && doc.Selected < len(r.profiles) {
		r.selected = doc.Selected
	}
	r.logger.Info("Restored %d profile(s), selected %d", len(r.profiles), r.selected)
}

package training

import (
	"log/slog"

	"github.com/meltforce/repcycle/internal/kv"
	"github.com/meltforce/repcycle/internal/models"
)

// ProfileStore resolves a user's key-value store.
type ProfileStore interface {
	Profile(userID int) kv.Store
}

// Profiles hands out per-user services over one backend and owns the
// per-profile write locks.
type Profiles struct {
	stores   ProfileStore
	settings Settings
	locks    *ProfileLocks
	log      *slog.Logger
}

// NewProfiles creates a Profiles over stores.
func NewProfiles(stores ProfileStore, settings Settings, log *slog.Logger) *Profiles {
	return &Profiles{
		stores:   stores,
		settings: settings,
		locks:    NewProfileLocks(),
		log:      log,
	}
}

// Service returns the training service of userID.
func (p *Profiles) Service(userID int) *Service {
	return New(p.stores.Profile(userID), p.settings, p.log.With("user_id", userID))
}

// Lock takes userID's write lock and returns its release func. Hold it
// around every mutation.
func (p *Profiles) Lock(userID int) func() {
	return p.locks.Lock(userID)
}

// Catalog returns the shared catalog.
func (p *Profiles) Catalog() *models.Catalog {
	return p.settings.Catalog
}

// Settings returns the shared settings.
func (p *Profiles) Settings() Settings {
	return p.settings
}

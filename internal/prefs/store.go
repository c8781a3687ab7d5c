package prefs

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
)

type ViewMode string

const (
	ModeDay  ViewMode = "day"
	ModeWeek ViewMode = "week"
)

// Storage keys. The canonical key holds the whole preference document;
// the legacy keys predate it and are still read by older code paths, so every
// save mirrors the resulting filters back to the legacy filter key.
const (
	canonicalKey      = "agenda:preferences"
	legacyViewModeKey = "agenda_view_mode"
	legacyFiltersKey  = "agenda_filtros"
)

type Filters struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type ViewPreference struct {
	ViewMode ViewMode `json:"view_mode"`
	Filters  Filters  `json:"filters"`
}

// Patch carries the fields a save wants to change; nil fields keep their
// current value.
type Patch struct {
	ViewMode *ViewMode
	Name     *string
	Status   *string
}

// legacy filter documents use the old Portuguese field name.
type legacyFilters struct {
	Nome   string `json:"nome"`
	Status string `json:"status"`
}

// legacyMigration synthesizes part of a preference from one legacy key.
// Consulted only when the canonical key is absent or unparseable; the list
// is the whole migration surface and goes away with the legacy keys.
type legacyMigration struct {
	key   string
	apply func(p *ViewPreference, raw []byte)
}

var legacyMigrations = []legacyMigration{
	{legacyViewModeKey, func(p *ViewPreference, raw []byte) {
		p.ViewMode = ViewMode(strings.Trim(strings.TrimSpace(string(raw)), `"`))
	}},
	{legacyFiltersKey, func(p *ViewPreference, raw []byte) {
		var lf legacyFilters
		if err := json.Unmarshal(raw, &lf); err != nil {
			return
		}
		p.Filters = Filters{Name: lf.Nome, Status: lf.Status}
	}},
}

// Store persists view preferences through an injectable provider. Every
// operation is best-effort: a storage failure falls back to the last known
// in-memory value and is never surfaced to the caller.
type Store struct {
	mu       sync.Mutex
	provider Provider
	current  ViewPreference
}

func NewStore(provider Provider) *Store {
	return &Store{
		provider: provider,
		current:  defaultPreference(),
	}
}

func defaultPreference() ViewPreference {
	return ViewPreference{ViewMode: ModeDay}
}

// Load returns a fully-populated, normalized preference. Read precedence:
// canonical key, then the legacy keys, then the in-memory value.
func (s *Store) Load(ctx context.Context) ViewPreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) ViewPreference {
	data, err := s.provider.Get(ctx, canonicalKey)
	if err == nil {
		var p ViewPreference
		if json.Unmarshal(data, &p) == nil {
			// Canonical wins whenever it parses, even with empty filters:
			// an empty canonical filter is an explicit cleared state.
			s.current = normalizePreference(p)
			return s.current
		}
	}

	p := defaultPreference()
	migrated := false
	for _, m := range legacyMigrations {
		raw, err := s.provider.Get(ctx, m.key)
		if err != nil {
			continue
		}
		m.apply(&p, raw)
		migrated = true
	}
	if migrated {
		s.current = normalizePreference(p)
	}
	return s.current
}

// Save merges the patch onto the current preference, normalizes the result,
// writes the canonical key and mirrors the filters to the legacy filter key.
func (s *Store) Save(ctx context.Context, patch Patch) ViewPreference {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.loadLocked(ctx)
	if patch.ViewMode != nil {
		p.ViewMode = *patch.ViewMode
	}
	if patch.Name != nil {
		p.Filters.Name = *patch.Name
	}
	if patch.Status != nil {
		p.Filters.Status = *patch.Status
	}
	p = normalizePreference(p)

	if data, err := json.Marshal(p); err == nil {
		if err := s.provider.Set(ctx, canonicalKey, data); err != nil {
			log.Printf("preference write failed key=%s: %v", canonicalKey, err)
		}
	}
	if data, err := json.Marshal(legacyFilters{Nome: p.Filters.Name, Status: p.Filters.Status}); err == nil {
		if err := s.provider.Set(ctx, legacyFiltersKey, data); err != nil {
			log.Printf("preference mirror failed key=%s: %v", legacyFiltersKey, err)
		}
	}

	s.current = p
	return p
}

// ClearFilters resets both filters to empty strings. The keys stay in
// storage; only their values are blanked.
func (s *Store) ClearFilters(ctx context.Context) ViewPreference {
	empty := ""
	return s.Save(ctx, Patch{Name: &empty, Status: &empty})
}

func normalizePreference(p ViewPreference) ViewPreference {
	if p.ViewMode != ModeDay && p.ViewMode != ModeWeek {
		p.ViewMode = ModeDay
	}
	return p
}

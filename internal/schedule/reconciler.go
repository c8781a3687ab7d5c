package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/clinicore/agenda-sync/internal/cache"
	"github.com/clinicore/agenda-sync/internal/prefs"
)

// Source is the upstream data API as the reconciler sees it: an opaque
// request/response collaborator. Any transport satisfying the envelope
// contract is acceptable.
type Source interface {
	FetchAgenda(ctx context.Context, from, to time.Time) ([]RawEntry, error)
	FetchGridConfig(ctx context.Context) (SlotGridConfig, error)
	FetchPatients(ctx context.Context) ([]json.RawMessage, error)
	FetchRecords(ctx context.Context) ([]json.RawMessage, error)
}

// Connectivity reports whether the upstream is reachable. It gates the
// opportunistic cache writes; it never gates rendering.
type Connectivity interface {
	Online(ctx context.Context) bool
}

type ViewState string

const (
	StateIdle     ViewState = "idle"
	StateLoading  ViewState = "loading"
	StateRendered ViewState = "rendered"
	StateError    ViewState = "error"
)

// View is the externally visible state of one agenda view.
type View struct {
	State      ViewState
	Grid       *Grid
	ErrMessage string
}

// Reconciler drives the day and week agenda views: it fetches a period's
// entries, normalizes them, buckets them by (date, slot), applies the stored
// filters, and renders a grid. Late responses from superseded reloads are
// discarded via the sequencing guard; when online, each successful reload
// also rewrites the offline agenda snapshot as a best-effort side effect.
type Reconciler struct {
	source Source
	prefs  *prefs.Store
	cache  cache.Store
	online Connectivity
	guard  *Guard

	mu           sync.Mutex
	views        map[ViewKey]View
	gridCfg      SlotGridConfig
	configLoaded bool
}

type ReconcilerConfig struct {
	Source Source
	Prefs  *prefs.Store
	Cache  cache.Store
	Online Connectivity
}

func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	return &Reconciler{
		source: cfg.Source,
		prefs:  cfg.Prefs,
		cache:  cfg.Cache,
		online: cfg.Online,
		guard:  NewGuard(),
		views: map[ViewKey]View{
			ViewDay:  {State: StateIdle},
			ViewWeek: {State: StateIdle},
		},
	}
}

// ReloadDay refreshes the day view for the given date.
func (r *Reconciler) ReloadDay(ctx context.Context, date time.Time) View {
	return r.reload(ctx, ViewDay, DayPeriod(date))
}

// ReloadWeek refreshes the week view for the Monday-start week containing ref.
func (r *Reconciler) ReloadWeek(ctx context.Context, ref time.Time) View {
	return r.reload(ctx, ViewWeek, ComputeWeekPeriod(ref))
}

// CurrentView returns the view's last rendered state without fetching.
func (r *Reconciler) CurrentView(view ViewKey) View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[view]
}

func (r *Reconciler) reload(ctx context.Context, view ViewKey, period Period) View {
	token := r.guard.Bump(view)

	r.mu.Lock()
	r.views[view] = View{State: StateLoading}
	r.mu.Unlock()

	gridCfg := r.loadGridConfig(ctx)
	raw, fetchErr := r.source.FetchAgenda(ctx, period.Start, period.End)
	pref := r.prefs.Load(ctx)

	r.mu.Lock()
	if token != r.guard.Current(view) {
		// Superseded: the view belongs to the newer request now, success or
		// failure of this one must not touch it.
		current := r.views[view]
		r.mu.Unlock()
		return current
	}

	if fetchErr != nil {
		v := View{State: StateError, ErrMessage: fetchErr.Error()}
		r.views[view] = v
		r.mu.Unlock()
		return v
	}

	entries := NormalizeEntries(raw)
	filtered := FilterEntries(entries, pref.Filters)
	grid := BuildGrid(gridCfg, period, filtered)
	v := View{State: StateRendered, Grid: &grid}
	r.views[view] = v
	r.mu.Unlock()

	if r.cache != nil && r.online != nil && r.online.Online(ctx) {
		if err := r.writeAgendaSnapshot(ctx, entries); err != nil {
			log.Printf("agenda snapshot write failed view=%s: %v", view, err)
		}
	}

	return v
}

// RefreshOfflineCache is the periodic sync pass: when online, it pulls the
// current week's agenda plus the patient and record lists and rewrites every
// offline snapshot. Offline it is a silent no-op.
func (r *Reconciler) RefreshOfflineCache(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	if r.online != nil && !r.online.Online(ctx) {
		log.Println("offline, skipping cache refresh")
		return nil
	}

	period := ComputeWeekPeriod(time.Now())
	raw, err := r.source.FetchAgenda(ctx, period.Start, period.End)
	if err != nil {
		return fmt.Errorf("refresh agenda: %w", err)
	}
	if err := r.writeAgendaSnapshot(ctx, NormalizeEntries(raw)); err != nil {
		return fmt.Errorf("cache agenda: %w", err)
	}

	patients, err := r.source.FetchPatients(ctx)
	if err != nil {
		return fmt.Errorf("refresh patients: %w", err)
	}
	if err := r.cache.CacheData(ctx, cache.TablePatients, patients); err != nil {
		return fmt.Errorf("cache patients: %w", err)
	}

	records, err := r.source.FetchRecords(ctx)
	if err != nil {
		return fmt.Errorf("refresh records: %w", err)
	}
	if err := r.cache.CacheData(ctx, cache.TableRecords, records); err != nil {
		return fmt.Errorf("cache records: %w", err)
	}

	return nil
}

// loadGridConfig fetches the clinic's slot grid at most once per process.
// A fetch failure falls back to the default grid without marking the config
// loaded, so a later reload can try again.
func (r *Reconciler) loadGridConfig(ctx context.Context) SlotGridConfig {
	r.mu.Lock()
	if r.configLoaded {
		cfg := r.gridCfg
		r.mu.Unlock()
		return cfg
	}
	r.mu.Unlock()

	fetched, err := r.source.FetchGridConfig(ctx)
	if err != nil {
		log.Printf("grid config fetch failed, using default: %v", err)
		return DefaultSlotGrid()
	}

	r.mu.Lock()
	r.gridCfg = fetched
	r.configLoaded = true
	r.mu.Unlock()
	return fetched
}

func (r *Reconciler) writeAgendaSnapshot(ctx context.Context, entries []AppointmentEntry) error {
	items := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal entry %s: %w", e.ID, err)
		}
		items = append(items, data)
	}
	return r.cache.CacheData(ctx, cache.TableAgenda, items)
}

// FilterEntries applies the stored name and status filters. The name match is
// case- and accent-insensitive on the display name; the status filter is
// normalized through the taxonomy before comparison.
func FilterEntries(entries []AppointmentEntry, filters prefs.Filters) []AppointmentEntry {
	name := Fold(strings.TrimSpace(filters.Name))
	status := strings.TrimSpace(filters.Status)

	var want Status
	if status != "" {
		want = NormalizeStatus(status)
	}

	out := make([]AppointmentEntry, 0, len(entries))
	for _, e := range entries {
		if name != "" && !strings.Contains(Fold(e.DisplayName()), name) {
			continue
		}
		if status != "" && e.Status != want {
			continue
		}
		out = append(out, e)
	}
	return out
}

// BuildGrid buckets entries by (date, normalized start slot) over the
// period's slot sequence.
func BuildGrid(cfg SlotGridConfig, period Period, entries []AppointmentEntry) Grid {
	grid := Grid{
		Period:  period,
		Slots:   GenerateSlots(cfg),
		Cells:   make(map[CellKey][]AppointmentEntry),
		Summary: ComputeDaySummary(entries),
	}
	for _, e := range entries {
		key := CellKey{Date: e.Date, Slot: NormalizeSlotTime(e.StartTime)}
		grid.Cells[key] = append(grid.Cells[key], e)
	}
	return grid
}

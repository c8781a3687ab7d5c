package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/agenda-sync/internal/cache"
	"github.com/clinicore/agenda-sync/internal/prefs"
)

type fakeSource struct {
	mu          sync.Mutex
	agenda      func(ctx context.Context, from, to time.Time) ([]RawEntry, error)
	gridCfg     SlotGridConfig
	gridErr     error
	configCalls int
	patients    []json.RawMessage
	records     []json.RawMessage
}

func (f *fakeSource) FetchAgenda(ctx context.Context, from, to time.Time) ([]RawEntry, error) {
	return f.agenda(ctx, from, to)
}

func (f *fakeSource) FetchGridConfig(ctx context.Context) (SlotGridConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configCalls++
	if f.gridErr != nil {
		return SlotGridConfig{}, f.gridErr
	}
	return f.gridCfg, nil
}

func (f *fakeSource) FetchPatients(ctx context.Context) ([]json.RawMessage, error) {
	return f.patients, nil
}

func (f *fakeSource) FetchRecords(ctx context.Context) ([]json.RawMessage, error) {
	return f.records, nil
}

func (f *fakeSource) ConfigCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configCalls
}

type fakeConnectivity struct{ online bool }

func (c fakeConnectivity) Online(ctx context.Context) bool { return c.online }

func staticAgenda(entries []RawEntry) func(context.Context, time.Time, time.Time) ([]RawEntry, error) {
	return func(context.Context, time.Time, time.Time) ([]RawEntry, error) {
		return entries, nil
	}
}

func newTestReconciler(source *fakeSource, store cache.Store, online bool) (*Reconciler, *prefs.Store) {
	prefStore := prefs.NewStore(prefs.NewMemoryProvider())
	rec := NewReconciler(ReconcilerConfig{
		Source: source,
		Prefs:  prefStore,
		Cache:  store,
		Online: fakeConnectivity{online: online},
	})
	return rec, prefStore
}

func TestReloadDayRendersGrid(t *testing.T) {
	source := &fakeSource{
		gridCfg: DefaultSlotGrid(),
		agenda: staticAgenda([]RawEntry{
			{
				ID:        "a-1",
				Patient:   &PatientRef{ID: "p-1", Name: "Maria Souza"},
				Date:      "2024-06-03",
				StartTime: "09:00",
				EndTime:   "09:30",
				Status:    "confirmado",
				Kind:      "appointment",
			},
			{
				Inicio: "2024-06-03T12:00:00",
				Fim:    "2024-06-03T13:00:00",
				Tipo:   "BLOQUEIO",
			},
		}),
	}
	rec, _ := newTestReconciler(source, cache.NewMemoryStore(cache.DefaultTTLConfig()), false)

	date, _ := time.Parse(DateFormat, "2024-06-03")
	view := rec.ReloadDay(context.Background(), date)

	require.Equal(t, StateRendered, view.State)
	require.NotNil(t, view.Grid)

	appointments := view.Grid.Cells[CellKey{Date: "2024-06-03", Slot: "09:00"}]
	require.Len(t, appointments, 1)
	assert.Equal(t, "Maria Souza", appointments[0].DisplayName())

	blocks := view.Grid.Cells[CellKey{Date: "2024-06-03", Slot: "12:00"}]
	require.Len(t, blocks, 1)
	assert.Equal(t, KindBlock, blocks[0].Kind)

	assert.Equal(t, 1, view.Grid.Summary[StatusConfirmed])
	total := 0
	for _, n := range view.Grid.Summary {
		total += n
	}
	assert.Equal(t, 1, total, "block must not count in the summary")
}

// An older fetch resolving after a newer one must never overwrite the newer
// result, regardless of completion order.
func TestStaleResponseDiscarded(t *testing.T) {
	firstStarted := make(chan struct{})
	release := make(chan struct{})

	entryA := RawEntry{ID: "old", Date: "2024-06-03", StartTime: "09:00", Patient: &PatientRef{Name: "Old Data"}}
	entryB := RawEntry{ID: "new", Date: "2024-06-04", StartTime: "10:00", Patient: &PatientRef{Name: "New Data"}}

	var calls int
	var mu sync.Mutex
	source := &fakeSource{gridCfg: DefaultSlotGrid()}
	source.agenda = func(ctx context.Context, from, to time.Time) ([]RawEntry, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(firstStarted)
			<-release
			return []RawEntry{entryA}, nil
		}
		return []RawEntry{entryB}, nil
	}

	rec, _ := newTestReconciler(source, nil, false)

	dateA, _ := time.Parse(DateFormat, "2024-06-03")
	dateB, _ := time.Parse(DateFormat, "2024-06-04")

	var wg sync.WaitGroup
	wg.Add(1)
	var lateView View
	go func() {
		defer wg.Done()
		lateView = rec.ReloadDay(context.Background(), dateA)
	}()

	<-firstStarted
	fresh := rec.ReloadDay(context.Background(), dateB)
	require.Equal(t, StateRendered, fresh.State)

	close(release)
	wg.Wait()

	// The late return surfaces whatever the newer request rendered.
	assert.Equal(t, StateRendered, lateView.State)

	current := rec.CurrentView(ViewDay)
	require.Equal(t, StateRendered, current.State)
	require.NotNil(t, current.Grid)

	_, oldPresent := current.Grid.Cells[CellKey{Date: "2024-06-03", Slot: "09:00"}]
	assert.False(t, oldPresent, "stale entries must never be rendered")

	newEntries := current.Grid.Cells[CellKey{Date: "2024-06-04", Slot: "10:00"}]
	require.Len(t, newEntries, 1)
	assert.Equal(t, "New Data", newEntries[0].DisplayName())
}

func TestTransportFailureRendersError(t *testing.T) {
	source := &fakeSource{gridCfg: DefaultSlotGrid()}
	source.agenda = func(context.Context, time.Time, time.Time) ([]RawEntry, error) {
		return nil, errors.New("connection refused")
	}
	rec, _ := newTestReconciler(source, nil, false)

	view := rec.ReloadDay(context.Background(), time.Now())

	assert.Equal(t, StateError, view.State)
	assert.Contains(t, view.ErrMessage, "connection refused")
	assert.Nil(t, view.Grid)
}

func TestFiltersApplied(t *testing.T) {
	source := &fakeSource{
		gridCfg: DefaultSlotGrid(),
		agenda: staticAgenda([]RawEntry{
			{ID: "1", Date: "2024-06-03", StartTime: "09:00", Status: "atendido",
				Patient: &PatientRef{Name: "João Silva"}},
			{ID: "2", Date: "2024-06-03", StartTime: "10:00", Status: "agendado",
				Patient: &PatientRef{Name: "Maria Souza"}},
			{ID: "3", Date: "2024-06-03", StartTime: "11:00", Status: "atendido",
				Patient: &PatientRef{Name: "Ana Joana"}},
		}),
	}
	rec, prefStore := newTestReconciler(source, nil, false)

	name := "joao"
	prefStore.Save(context.Background(), prefs.Patch{Name: &name})

	date, _ := time.Parse(DateFormat, "2024-06-03")
	view := rec.ReloadDay(context.Background(), date)
	require.Equal(t, StateRendered, view.State)
	require.Len(t, view.Grid.Cells, 1, "accent-insensitive name match keeps only João Silva")
	_, ok := view.Grid.Cells[CellKey{Date: "2024-06-03", Slot: "09:00"}]
	assert.True(t, ok)

	// Status filter goes through the same taxonomy as the entries.
	empty := ""
	status := "ATENDIDO"
	prefStore.Save(context.Background(), prefs.Patch{Name: &empty, Status: &status})

	view = rec.ReloadDay(context.Background(), date)
	require.Equal(t, StateRendered, view.State)
	assert.Len(t, view.Grid.Cells, 2, "both completed entries match")
}

func TestCacheWrittenOnlyWhenOnline(t *testing.T) {
	entries := []RawEntry{
		{ID: "1", Date: "2024-06-03", StartTime: "09:00", Patient: &PatientRef{Name: "Maria"}},
		{ID: "2", Date: "2024-06-03", StartTime: "10:00", Patient: &PatientRef{Name: "João"}},
	}

	t.Run("online writes the full normalized list", func(t *testing.T) {
		store := cache.NewMemoryStore(cache.DefaultTTLConfig())
		source := &fakeSource{gridCfg: DefaultSlotGrid(), agenda: staticAgenda(entries)}
		rec, prefStore := newTestReconciler(source, store, true)

		// A name filter narrows the grid but not the snapshot.
		name := "maria"
		prefStore.Save(context.Background(), prefs.Patch{Name: &name})

		date, _ := time.Parse(DateFormat, "2024-06-03")
		view := rec.ReloadDay(context.Background(), date)
		require.Equal(t, StateRendered, view.State)
		assert.Len(t, view.Grid.Cells, 1)

		items, err := store.GetCachedData(context.Background(), cache.TableAgenda)
		require.NoError(t, err)
		assert.Len(t, items, 2, "snapshot holds every normalized entry, unfiltered")
	})

	t.Run("offline skips the write", func(t *testing.T) {
		store := cache.NewMemoryStore(cache.DefaultTTLConfig())
		source := &fakeSource{gridCfg: DefaultSlotGrid(), agenda: staticAgenda(entries)}
		rec, _ := newTestReconciler(source, store, false)

		view := rec.ReloadDay(context.Background(), time.Now())
		require.Equal(t, StateRendered, view.State)

		items, err := store.GetCachedData(context.Background(), cache.TableAgenda)
		require.NoError(t, err)
		assert.Nil(t, items)
	})
}

func TestGridConfigFetchedOncePerProcess(t *testing.T) {
	source := &fakeSource{
		gridCfg: SlotGridConfig{StartOfDay: "07:00", EndOfDay: "13:00", StepMinutes: 60},
		agenda:  staticAgenda(nil),
	}
	rec, _ := newTestReconciler(source, nil, false)

	rec.ReloadDay(context.Background(), time.Now())
	rec.ReloadWeek(context.Background(), time.Now())
	view := rec.ReloadDay(context.Background(), time.Now())

	assert.Equal(t, 1, source.ConfigCalls())
	require.Equal(t, StateRendered, view.State)
	assert.Equal(t, "07:00", view.Grid.Slots[0])
}

func TestGridConfigFailureFallsBackAndRetries(t *testing.T) {
	source := &fakeSource{
		gridCfg: SlotGridConfig{StartOfDay: "07:00", EndOfDay: "13:00", StepMinutes: 60},
		gridErr: errors.New("config endpoint down"),
		agenda:  staticAgenda(nil),
	}
	rec, _ := newTestReconciler(source, nil, false)

	view := rec.ReloadDay(context.Background(), time.Now())
	require.Equal(t, StateRendered, view.State)
	assert.Equal(t, "08:00", view.Grid.Slots[0], "falls back to the default grid")

	source.mu.Lock()
	source.gridErr = nil
	source.mu.Unlock()

	view = rec.ReloadDay(context.Background(), time.Now())
	require.Equal(t, StateRendered, view.State)
	assert.Equal(t, "07:00", view.Grid.Slots[0], "a later reload picks up the real config")
	assert.Equal(t, 2, source.ConfigCalls())
}

func TestRefreshOfflineCache(t *testing.T) {
	patients := []json.RawMessage{json.RawMessage(`{"id":"p-1"}`)}
	records := []json.RawMessage{json.RawMessage(`{"id":"r-1"}`), json.RawMessage(`{"id":"r-2"}`)}

	t.Run("online refreshes every table", func(t *testing.T) {
		store := cache.NewMemoryStore(cache.DefaultTTLConfig())
		source := &fakeSource{
			gridCfg:  DefaultSlotGrid(),
			agenda:   staticAgenda([]RawEntry{{ID: "a", Date: "2024-06-03", StartTime: "09:00"}}),
			patients: patients,
			records:  records,
		}
		rec, _ := newTestReconciler(source, store, true)

		require.NoError(t, rec.RefreshOfflineCache(context.Background()))

		agenda, err := store.GetCachedData(context.Background(), cache.TableAgenda)
		require.NoError(t, err)
		assert.Len(t, agenda, 1)

		got, err := store.GetCachedData(context.Background(), cache.TablePatients)
		require.NoError(t, err)
		assert.Len(t, got, 1)

		got, err = store.GetCachedData(context.Background(), cache.TableRecords)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("offline is a silent no-op", func(t *testing.T) {
		store := cache.NewMemoryStore(cache.DefaultTTLConfig())
		source := &fakeSource{gridCfg: DefaultSlotGrid()}
		source.agenda = func(context.Context, time.Time, time.Time) ([]RawEntry, error) {
			t.Fatal("offline pass must not fetch")
			return nil, nil
		}
		rec, _ := newTestReconciler(source, store, false)

		require.NoError(t, rec.RefreshOfflineCache(context.Background()))

		items, err := store.GetCachedData(context.Background(), cache.TableAgenda)
		require.NoError(t, err)
		assert.Nil(t, items)
	})
}

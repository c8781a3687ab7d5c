package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/agenda-sync/internal/cache"
	"github.com/clinicore/agenda-sync/internal/prefs"
	"github.com/clinicore/agenda-sync/internal/schedule"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// parseDateParam reads the date query parameter, defaulting to today.
func parseDateParam(r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now(), true
	}
	t, err := time.Parse(schedule.DateFormat, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func agendaDayHandler(rec *schedule.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := parseDateParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		view := rec.ReloadDay(r.Context(), date)
		writeJSON(w, http.StatusOK, gridResponse(view))
	}
}

func agendaWeekHandler(rec *schedule.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := parseDateParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		view := rec.ReloadWeek(r.Context(), date)
		writeJSON(w, http.StatusOK, gridResponse(view))
	}
}

func daySummaryHandler(rec *schedule.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := parseDateParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		view := rec.ReloadDay(r.Context(), date)
		resp := gridResponse(view)
		writeJSON(w, http.StatusOK, GridResponse{
			State:   resp.State,
			Error:   resp.Error,
			Summary: resp.Summary,
		})
	}
}

// gridResponse flattens a view into the wire shape. A transport failure is
// carried inline in the response body, not as an HTTP error: the grid is the
// thing that failed, not the request for it.
func gridResponse(view schedule.View) GridResponse {
	resp := GridResponse{
		State: string(view.State),
		Error: view.ErrMessage,
	}
	if view.Grid == nil {
		return resp
	}

	grid := view.Grid
	days := make([]string, 0, len(grid.Period.Days))
	for _, d := range grid.Period.Days {
		days = append(days, d.Format(schedule.DateFormat))
	}
	resp.Period = &PeriodResponse{
		Start: grid.Period.Start.Format(schedule.DateFormat),
		End:   grid.Period.End.Format(schedule.DateFormat),
		Days:  days,
	}
	resp.Slots = grid.Slots

	cells := make([]CellResponse, 0, len(grid.Cells))
	for key, entries := range grid.Cells {
		cells = append(cells, CellResponse{Date: key.Date, Slot: key.Slot, Entries: entries})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Date != cells[j].Date {
			return cells[i].Date < cells[j].Date
		}
		return cells[i].Slot < cells[j].Slot
	})
	resp.Cells = cells

	resp.Summary = make(map[string]int, len(grid.Summary))
	for status, n := range grid.Summary {
		resp.Summary[string(status)] = n
	}
	return resp
}

func getPreferencesHandler(store *prefs.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, store.Load(r.Context()))
	}
}

func savePreferencesHandler(store *prefs.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SavePreferencesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patch := prefs.Patch{Name: req.Name, Status: req.Status}
		if req.ViewMode != nil {
			mode := prefs.ViewMode(*req.ViewMode)
			patch.ViewMode = &mode
		}

		writeJSON(w, http.StatusOK, store.Save(r.Context(), patch))
	}
}

func clearFiltersHandler(store *prefs.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, store.ClearFilters(r.Context()))
	}
}

func offlineSnapshotHandler(store cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table := cache.Table(chi.URLParam(r, "table"))
		if !validTable(table) {
			writeError(w, http.StatusNotFound, "unknown_table", "table must be agenda, patients or records")
			return
		}

		items, err := store.GetCachedData(r.Context(), table)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		if items == nil {
			writeError(w, http.StatusNotFound, "snapshot_missing_or_expired", "no valid snapshot for table")
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func refreshCachesHandler(rec *schedule.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rec.RefreshOfflineCache(r.Context()); err != nil {
			writeError(w, http.StatusBadGateway, "refresh_failed", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func clearCachesHandler(store cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.ClearAll(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}

func validTable(t cache.Table) bool {
	for _, known := range cache.AllTables() {
		if t == known {
			return true
		}
	}
	return false
}

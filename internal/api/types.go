package api

import (
	"github.com/clinicore/agenda-sync/internal/schedule"
)

type GridResponse struct {
	State   string             `json:"state"`
	Error   string             `json:"error,omitempty"`
	Period  *PeriodResponse    `json:"period,omitempty"`
	Slots   []string           `json:"slots,omitempty"`
	Cells   []CellResponse     `json:"cells,omitempty"`
	Summary map[string]int     `json:"summary,omitempty"`
}

type PeriodResponse struct {
	Start string   `json:"start"`
	End   string   `json:"end"`
	Days  []string `json:"days"`
}

type CellResponse struct {
	Date    string                      `json:"date"`
	Slot    string                      `json:"slot"`
	Entries []schedule.AppointmentEntry `json:"entries"`
}

type SavePreferencesRequest struct {
	ViewMode *string `json:"view_mode"`
	Name     *string `json:"name"`
	Status   *string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

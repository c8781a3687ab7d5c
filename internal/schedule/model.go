package schedule

import (
	"time"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusNoShow     Status = "no_show"
	StatusCancelled  Status = "cancelled"
)

type EntryKind string

const (
	KindAppointment EntryKind = "appointment"
	KindBlock       EntryKind = "block"
)

// ViewKey identifies one independent agenda view.
type ViewKey string

const (
	ViewDay  ViewKey = "day"
	ViewWeek ViewKey = "week"
)

const (
	DateFormat  = "2006-01-02"
	ClockFormat = "15:04"

	// BlockDisplayName is shown in place of a patient name for blocked time.
	BlockDisplayName = "Blocked"
)

type PatientRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AppointmentEntry is the normalized UI model for one calendar occupant.
// Entries are rebuilt from scratch on every reload and never mutated in place.
type AppointmentEntry struct {
	ID             string      `json:"id"`
	Patient        *PatientRef `json:"patient,omitempty"`
	Date           string      `json:"date"`       // DateFormat
	StartTime      string      `json:"start_time"` // ClockFormat
	EndTime        string      `json:"end_time"`   // ClockFormat
	Status         Status      `json:"status"`
	Kind           EntryKind   `json:"kind"`
	Origin         string      `json:"origin,omitempty"`
	AllowsOverbook bool        `json:"allows_overbook"`
	Notes          string      `json:"notes,omitempty"`
}

// DisplayName is the name shown in the grid cell. Blocks never carry a
// patient; they render under a synthetic label instead.
func (e AppointmentEntry) DisplayName() string {
	if e.Kind == KindBlock {
		return BlockDisplayName
	}
	if e.Patient != nil {
		return e.Patient.Name
	}
	return ""
}

// RawEntry is the wire shape of one agenda occupant as the upstream API
// delivers it. The backend emits two generations of payloads: the canonical
// shape and a legacy shape with Portuguese field names and combined
// timestamps. Normalization accepts either and degrades field by field.
type RawEntry struct {
	ID             string      `json:"id"`
	Patient        *PatientRef `json:"patient"`
	Date           string      `json:"date"`
	StartTime      string      `json:"start_time"`
	EndTime        string      `json:"end_time"`
	Status         string      `json:"status"`
	Kind           string      `json:"kind"`
	Origin         string      `json:"origin"`
	AllowsOverbook bool        `json:"allows_overbook"`
	Notes          string      `json:"notes"`

	// Legacy shape.
	Inicio      string      `json:"inicio"`
	Fim         string      `json:"fim"`
	Tipo        string      `json:"tipo"`
	Paciente    *PatientRef `json:"paciente"`
	Observacoes string      `json:"observacoes"`
}

// SlotGridConfig holds the clinic's scheduling parameters. A misconfigured
// value is replaced wholesale by DefaultSlotGrid.
type SlotGridConfig struct {
	StartOfDay  string `json:"start_of_day"` // ClockFormat
	EndOfDay    string `json:"end_of_day"`   // ClockFormat
	StepMinutes int    `json:"step_minutes"`
}

func DefaultSlotGrid() SlotGridConfig {
	return SlotGridConfig{
		StartOfDay:  "08:00",
		EndOfDay:    "18:00",
		StepMinutes: 15,
	}
}

// Period is a contiguous run of calendar days, Monday-first for week views.
type Period struct {
	Start time.Time
	End   time.Time
	Days  []time.Time
}

// CellKey addresses one grid cell: a calendar date plus a normalized slot time.
type CellKey struct {
	Date string `json:"date"`
	Slot string `json:"slot"`
}

// Grid is the rendered result of one reconciliation pass.
type Grid struct {
	Period  Period
	Slots   []string
	Cells   map[CellKey][]AppointmentEntry
	Summary DaySummary
}

// DaySummary counts entries per status. Blocks are excluded.
type DaySummary map[Status]int

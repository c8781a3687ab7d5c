package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEntryLegacyBlock(t *testing.T) {
	raw := RawEntry{
		Inicio: "2024-06-03T09:00:00",
		Fim:    "2024-06-03T09:30:00",
		Tipo:   "BLOQUEIO",
	}

	entry := NormalizeEntry(raw)

	assert.Equal(t, KindBlock, entry.Kind)
	assert.Equal(t, "2024-06-03", entry.Date)
	assert.Equal(t, "09:00", entry.StartTime)
	assert.Equal(t, "09:30", entry.EndTime)
	assert.Equal(t, BlockDisplayName, entry.DisplayName())
	assert.Nil(t, entry.Patient)
	assert.NotEmpty(t, entry.ID, "missing id must be generated")

	summary := ComputeDaySummary([]AppointmentEntry{entry})
	assert.Empty(t, summary, "blocks are excluded from day summaries")
}

func TestNormalizeEntryCanonical(t *testing.T) {
	raw := RawEntry{
		ID:             "appt-1",
		Patient:        &PatientRef{ID: "p-1", Name: "Maria Souza"},
		Date:           "2024-06-03",
		StartTime:      "14:00",
		EndTime:        "14:45",
		Status:         "CONFIRMADO",
		Kind:           "appointment",
		Origin:         "front-desk",
		AllowsOverbook: true,
		Notes:          "first visit",
	}

	entry := NormalizeEntry(raw)

	assert.Equal(t, "appt-1", entry.ID)
	assert.Equal(t, KindAppointment, entry.Kind)
	assert.Equal(t, StatusConfirmed, entry.Status)
	assert.Equal(t, "14:00", entry.StartTime)
	assert.Equal(t, "14:45", entry.EndTime)
	assert.Equal(t, "Maria Souza", entry.DisplayName())
	assert.Equal(t, "front-desk", entry.Origin)
	assert.True(t, entry.AllowsOverbook)
	assert.Equal(t, "first visit", entry.Notes)
}

func TestNormalizeEntryLegacyPatientAndNotes(t *testing.T) {
	raw := RawEntry{
		ID:          "appt-2",
		Paciente:    &PatientRef{ID: "p-2", Name: "João Lima"},
		Inicio:      "2024-06-04T10:00:00",
		Fim:         "2024-06-04T10:30:00",
		Status:      "atendido",
		Observacoes: "retorno",
	}

	entry := NormalizeEntry(raw)

	require.NotNil(t, entry.Patient)
	assert.Equal(t, "João Lima", entry.Patient.Name)
	assert.Equal(t, StatusCompleted, entry.Status)
	assert.Equal(t, "retorno", entry.Notes)
	assert.Equal(t, KindAppointment, entry.Kind)
}

func TestNormalizeEntryClampsDuration(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		wantEnd string
	}{
		{"inverted times", "10:00", "09:00", "10:01"},
		{"equal times", "10:00", "10:00", "10:01"},
		{"missing end", "10:00", "", "10:01"},
		{"valid end kept", "10:00", "10:30", "10:30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := NormalizeEntry(RawEntry{
				ID:        "x",
				Date:      "2024-06-03",
				StartTime: tt.start,
				EndTime:   tt.end,
			})
			assert.Equal(t, tt.wantEnd, entry.EndTime)
		})
	}
}

func TestNormalizeEntryBlockDropsPatient(t *testing.T) {
	entry := NormalizeEntry(RawEntry{
		ID:       "b-1",
		Kind:     "block",
		Paciente: &PatientRef{ID: "p-3", Name: "Ana"},
		Date:     "2024-06-03",
	})

	assert.Equal(t, KindBlock, entry.Kind)
	assert.Nil(t, entry.Patient)
	assert.Equal(t, BlockDisplayName, entry.DisplayName())
}

func TestNormalizeEntriesPreservesOrder(t *testing.T) {
	raw := []RawEntry{
		{ID: "a", Date: "2024-06-03", StartTime: "08:00"},
		{ID: "b", Date: "2024-06-03", StartTime: "09:00"},
	}
	entries := NormalizeEntries(raw)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "b", entries[1].ID)
}

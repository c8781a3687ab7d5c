package schedule

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// legacyTimestampLayouts covers the combined date-time strings the legacy
// backend emits in inicio/fim.
var legacyTimestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// NormalizeEntry turns one raw upstream payload into the UI model. Every
// malformed or missing field degrades to a documented default; the function
// never fails.
func NormalizeEntry(raw RawEntry) AppointmentEntry {
	entry := AppointmentEntry{
		ID:             raw.ID,
		Date:           raw.Date,
		StartTime:      raw.StartTime,
		EndTime:        raw.EndTime,
		Status:         NormalizeStatus(raw.Status),
		Kind:           normalizeKind(raw),
		Origin:         NormalizeOrigin(raw.Origin),
		AllowsOverbook: raw.AllowsOverbook,
		Notes:          raw.Notes,
	}

	if entry.Notes == "" {
		entry.Notes = raw.Observacoes
	}

	// Legacy payloads carry combined timestamps instead of split fields.
	if date, clock, ok := splitLegacyTimestamp(raw.Inicio); ok {
		if entry.Date == "" {
			entry.Date = date
		}
		if entry.StartTime == "" {
			entry.StartTime = clock
		}
	}
	if _, clock, ok := splitLegacyTimestamp(raw.Fim); ok && entry.EndTime == "" {
		entry.EndTime = clock
	}

	entry.StartTime = NormalizeSlotTime(entry.StartTime)
	entry.EndTime = clampEndTime(entry.StartTime, entry.EndTime)

	if entry.Kind != KindBlock {
		if raw.Patient != nil {
			p := *raw.Patient
			entry.Patient = &p
		} else if raw.Paciente != nil {
			p := *raw.Paciente
			entry.Patient = &p
		}
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	return entry
}

// NormalizeEntries maps a whole payload, preserving order.
func NormalizeEntries(raw []RawEntry) []AppointmentEntry {
	entries := make([]AppointmentEntry, 0, len(raw))
	for _, r := range raw {
		entries = append(entries, NormalizeEntry(r))
	}
	return entries
}

func normalizeKind(raw RawEntry) EntryKind {
	kind := raw.Kind
	if kind == "" {
		kind = raw.Tipo
	}
	folded := Fold(kind)
	if strings.Contains(folded, "bloq") || strings.Contains(folded, "block") {
		return KindBlock
	}
	return KindAppointment
}

// clampEndTime derives the end slot from the raw end time, forcing a duration
// of at least one minute even when upstream timestamps are equal or inverted.
func clampEndTime(start, rawEnd string) string {
	startMin, _ := parseClockMinutes(start)
	endMin, ok := parseClockMinutes(rawEnd)
	if !ok || endMin <= startMin {
		endMin = startMin + 1
	}
	if endMin > 23*60+59 {
		endMin = 23*60 + 59
	}
	return formatClockMinutes(endMin)
}

func splitLegacyTimestamp(s string) (date, clock string, ok bool) {
	if s == "" {
		return "", "", false
	}
	for _, layout := range legacyTimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateFormat), t.Format(ClockFormat), true
		}
	}
	return "", "", false
}

package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GenerateSlots produces every time point from StartOfDay to EndOfDay
// inclusive, stepping by StepMinutes. A misconfigured grid falls back to
// DefaultSlotGrid; the function always returns a non-empty sequence.
func GenerateSlots(cfg SlotGridConfig) []string {
	start, okStart := parseClockMinutes(cfg.StartOfDay)
	end, okEnd := parseClockMinutes(cfg.EndOfDay)
	if cfg.StepMinutes <= 0 || !okStart || !okEnd || end < start {
		def := DefaultSlotGrid()
		start, _ = parseClockMinutes(def.StartOfDay)
		end, _ = parseClockMinutes(def.EndOfDay)
		cfg.StepMinutes = def.StepMinutes
	}

	var slots []string
	for m := start; m <= end; m += cfg.StepMinutes {
		slots = append(slots, formatClockMinutes(m))
	}
	return slots
}

// ComputeWeekPeriod returns the Monday-to-Sunday week containing ref.
// The Monday offset is -6 for Sundays and 1-day otherwise, which rolls
// backward correctly across month and year boundaries.
func ComputeWeekPeriod(ref time.Time) Period {
	day := int(ref.Weekday()) // 0 = Sunday
	offset := 1 - day
	if day == 0 {
		offset = -6
	}

	start := dateOnly(ref).AddDate(0, 0, offset)
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}

	return Period{
		Start: start,
		End:   days[6],
		Days:  days,
	}
}

// DayPeriod is the single-day counterpart of ComputeWeekPeriod.
func DayPeriod(ref time.Time) Period {
	d := dateOnly(ref)
	return Period{Start: d, End: d, Days: []time.Time{d}}
}

// NormalizeSlotTime reduces any clock string ("9:0", "09:00:00") to the
// canonical HH:MM cell key. Unparseable input degrades to "00:00" so that
// grouping stays total.
func NormalizeSlotTime(s string) string {
	if m, ok := parseClockMinutes(s); ok {
		return formatClockMinutes(m)
	}
	return "00:00"
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func parseClockMinutes(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func formatClockMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const dayMS = int64(24 * time.Hour / time.Millisecond)

type ScheduleEntry struct {
	StartMS int64   `json:"startMs"`
	Rate    float64 `json:"rate"`
}

// Settings is the declared pump configuration a session reconciles against.
// Entry order on input is not trusted; Normalize before use.
type Settings struct {
	ActiveSchedule string
	Schedules      map[string][]ScheduleEntry
	Units          string
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.ActiveSchedule) == "" {
		return fmt.Errorf("active schedule is required")
	}
	if _, ok := s.Schedules[s.ActiveSchedule]; !ok {
		return fmt.Errorf("active schedule %q has no entries", s.ActiveSchedule)
	}
	for name, entries := range s.Schedules {
		for _, e := range entries {
			if e.StartMS < 0 || e.StartMS >= dayMS {
				return fmt.Errorf("schedule %q: start offset %d outside a day", name, e.StartMS)
			}
			if e.Rate < 0 {
				return fmt.Errorf("schedule %q: negative rate %v", name, e.Rate)
			}
		}
	}

	return nil
}

// Normalize returns a copy with every schedule sorted ascending by start
// offset. When two entries declare the same start, the later declaration
// wins.
func (s Settings) Normalize() Settings {
	if s.Schedules == nil {
		return s
	}
	normalized := make(map[string][]ScheduleEntry, len(s.Schedules))
	for name, entries := range s.Schedules {
		byStart := make(map[int64]ScheduleEntry, len(entries))
		for _, e := range entries {
			byStart[e.StartMS] = e
		}
		out := make([]ScheduleEntry, 0, len(byStart))
		for _, e := range byStart {
			out = append(out, e)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].StartMS < out[j].StartMS })
		normalized[name] = out
	}
	s.Schedules = normalized

	return s
}

// ActiveEntries returns the active schedule's entries, nil when the
// settings cannot finalize a scheduled segment.
func (s Settings) ActiveEntries() []ScheduleEntry {
	if s.Schedules == nil {
		return nil
	}

	return s.Schedules[s.ActiveSchedule]
}

// SettingsFromRecords extracts the most recent embedded settings payload
// from a session's records, nil when the stream carries none.
func SettingsFromRecords(records []Record) *Settings {
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if rec.Family != FamilySettings || rec.Settings == nil {
			continue
		}
		s := Settings{
			ActiveSchedule: rec.Settings.ActiveSchedule,
			Schedules:      rec.Settings.clone().Schedules,
			Units:          rec.Settings.Units,
		}

		return &s
	}

	return nil
}

package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// OffsetInterval is a span of the session timeline over which one UTC
// offset is in force. Bounds are UTC; a nil Start marks the earliest
// catch-all interval, a nil EndIndex the newest open-ended one.
type OffsetInterval struct {
	Start      *time.Time `json:"start,omitempty"`
	End        time.Time  `json:"end"`
	StartIndex *int64     `json:"startIndex,omitempty"`
	EndIndex   *int64     `json:"endIndex,omitempty"`
	OffsetMin  int        `json:"offset"`
}

// Widest believable clock delta: the zone database spans UTC-12 to UTC+14.
const maxOffsetDeltaMin = 1560

// OffsetResolver answers UTC-time/offset lookups for device-local
// timestamps. With no clock-edit history it applies the zone database
// uniformly; otherwise it reconstructs the offset in force across each
// span between edits, walking the edits newest first.
type OffsetResolver struct {
	zone      *time.Location
	zoneName  string
	intervals []OffsetInterval
}

func NewOffsetResolver(changes []Record, zoneName string, mostRecent string) (*OffsetResolver, error) {
	if zoneName == "" {
		return nil, fmt.Errorf("timezone is required: %w", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(zoneName)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", zoneName, ErrInvalidTimezone)
	}
	latest, err := ParseLocalTime(mostRecent)
	if err != nil {
		return nil, fmt.Errorf("most recent record time %q: %w", mostRecent, ErrInvalidTimestamp)
	}

	r := &OffsetResolver{zone: loc, zoneName: zoneName}
	if edits := clockEdits(changes); len(edits) > 0 {
		r.intervals = buildIntervals(edits, loc, latest)
	}

	return r, nil
}

func (r *OffsetResolver) Zone() string {
	return r.zoneName
}

// Bootstrapped reports whether offsets come from reconstructed clock-edit
// history rather than uniformly from the zone database.
func (r *OffsetResolver) Bootstrapped() bool {
	return len(r.intervals) > 0
}

// Intervals returns the offset history, newest first. Uniform-zone
// resolvers carry none.
func (r *OffsetResolver) Intervals() []OffsetInterval {
	return append([]OffsetInterval(nil), r.intervals...)
}

// Lookup resolves a record's UTC time and offset. Index containment is
// preferred when the record carries a sequence index; otherwise the local
// time, shifted by each candidate interval's own offset, is matched against
// the interval's UTC bounds, newest first. Falling through every interval
// means the construction contract was broken.
func (r *OffsetResolver) Lookup(local LocalTime, index *int64) (time.Time, int, error) {
	if len(r.intervals) == 0 {
		zoned := wallInZone(local, r.zone)
		_, offSec := zoned.Zone()
		return zoned.UTC(), offSec / 60, nil
	}

	if index != nil {
		for _, iv := range r.intervals {
			if iv.StartIndex != nil && *index < *iv.StartIndex {
				continue
			}
			if iv.EndIndex != nil && *index >= *iv.EndIndex {
				continue
			}
			return utcAtOffset(local, iv.OffsetMin), iv.OffsetMin, nil
		}
		return time.Time{}, 0, fmt.Errorf("record index %d: %w", *index, ErrUnmatchedLookup)
	}

	for _, iv := range r.intervals {
		utc := utcAtOffset(local, iv.OffsetMin)
		if iv.Start != nil && utc.Before(*iv.Start) {
			continue
		}
		if utc.After(iv.End) {
			continue
		}
		return utc, iv.OffsetMin, nil
	}

	return time.Time{}, 0, fmt.Errorf("record time %s: %w", local, ErrUnmatchedLookup)
}

// clockEdits filters and orders the clock-change records newest first, by
// sequence index when every edit carries one, else by device time.
func clockEdits(records []Record) []Record {
	edits := make([]Record, 0, len(records))
	allIndexed := true
	for _, rec := range records {
		if rec.Family != FamilyTimeChange || rec.TimeChange == nil {
			continue
		}
		if rec.Index == nil {
			allIndexed = false
		}
		edits = append(edits, rec)
	}
	sort.SliceStable(edits, func(i, j int) bool {
		if allIndexed {
			return *edits[i].Index > *edits[j].Index
		}
		return edits[i].DeviceTime.After(edits[j].DeviceTime.Time)
	})

	return edits
}

// buildIntervals walks the edits backward through offset history. The
// newest edit resolves directly from the zone database; every older edit's
// UTC time comes from undoing the offsets accumulated since it.
func buildIntervals(edits []Record, loc *time.Location, latest LocalTime) []OffsetInterval {
	intervals := make([]OffsetInterval, 0, len(edits)+1)

	newest := edits[0]
	zoned := wallInZone(newest.DeviceTime, loc)
	_, offSec := zoned.Zone()
	current := offSec / 60
	intervals = append(intervals, OffsetInterval{
		Start:      ptrTo(zoned.UTC()),
		End:        utcAtOffset(latest, current),
		StartIndex: cloneOf(newest.Index),
		OffsetMin:  current,
	})
	current += clockDeltaMin(*newest.TimeChange)

	for i := 1; i < len(edits); i++ {
		edit := edits[i]
		utc := utcAtOffset(edit.DeviceTime, current)
		intervals = append(intervals, OffsetInterval{
			Start:      ptrTo(utc),
			End:        *intervals[len(intervals)-1].Start,
			StartIndex: cloneOf(edit.Index),
			EndIndex:   cloneOf(edits[i-1].Index),
			OffsetMin:  current,
		})
		current += clockDeltaMin(*edit.TimeChange)
	}

	oldest := edits[len(edits)-1]
	intervals = append(intervals, OffsetInterval{
		End:       *intervals[len(intervals)-1].Start,
		EndIndex:  cloneOf(oldest.Index),
		OffsetMin: current,
	})

	return intervals
}

// clockDeltaMin converts one clock edit into the offset adjustment that was
// in force before it, snapped to the quarter-hour quantum real zones use.
// A delta wider than any possible offset span is corrupt and becomes a
// no-op.
func clockDeltaMin(tc TimeChangePayload) int {
	delta := tc.From.Sub(tc.To.Time).Minutes()
	quantized := int(math.Round(delta/15)) * 15
	if quantized > maxOffsetDeltaMin || quantized < -maxOffsetDeltaMin {
		return 0
	}

	return quantized
}

func wallInZone(local LocalTime, loc *time.Location) time.Time {
	t := local.Time

	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func utcAtOffset(local LocalTime, offsetMin int) time.Time {
	return local.Add(-time.Duration(offsetMin) * time.Minute)
}

package domain

import "time"

// finalizeScheduled resolves the trailing open scheduled segment against
// the active schedule. It reports whether anything about the segment had to
// be fabricated or flagged.
//
// The matched entry is the one with the greatest start at or before the
// segment's local time of day; a time of day before the first entry belongs
// to the previous day's last entry. The inferred duration runs from the
// segment to the next entry's start, wrapping past midnight when the
// matched entry is the day's last.
func finalizeScheduled(d *segmentDraft, entries []ScheduleEntry, activeName string, family DeviceFamily) bool {
	tod := msFromMidnight(d.rec.DeviceTime)
	idx := matchEntry(entries, tod)

	flagged := false
	if d.rec.Basal.DurationMS == nil {
		d.rec.Basal.DurationMS = ptrTo(durationToNext(entries, idx, tod))
		flagged = true
	}
	offSchedule := d.rec.Basal.Rate != entries[idx].Rate || d.rec.Basal.ScheduleName != activeName
	if offSchedule {
		d.annotate(family.OffScheduleRateCode())
		flagged = true
	}
	if flagged {
		d.annotate(family.FabricatedDurationCode())
	}

	return flagged
}

func msFromMidnight(local LocalTime) int64 {
	midnight := local.Truncate(24 * time.Hour)

	return local.Sub(midnight).Milliseconds()
}

func matchEntry(entries []ScheduleEntry, todMS int64) int {
	for i, e := range entries {
		if e.StartMS > todMS {
			if i == 0 {
				return len(entries) - 1
			}
			return i - 1
		}
	}

	return len(entries) - 1
}

func durationToNext(entries []ScheduleEntry, idx int, todMS int64) int64 {
	next := entries[(idx+1)%len(entries)].StartMS
	d := ((next-todMS)%dayMS + dayMS) % dayMS
	if d == 0 {
		return dayMS
	}

	return d
}

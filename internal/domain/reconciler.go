package domain

import (
	"fmt"
	"sort"
	"time"
)

// Stats summarizes one reconciled session.
type Stats struct {
	Records               int `json:"records"`
	Events                int `json:"events"`
	DuplicateSegments     int `json:"duplicateSegments,omitempty"`
	UnmatchedTerminations int `json:"unmatchedTerminations,omitempty"`
	FilteredDoses         int `json:"filteredDoses,omitempty"`
	Fabricated            int `json:"fabricated,omitempty"`
}

// segmentDraft is the mutable assembly form of a delivery segment: fields
// may change until finalize, which produces the immutable event exactly
// once. The draft owns its record copy.
type segmentDraft struct {
	rec         Record
	seq         int64
	previous    *Event
	annotations []Annotation
}

func newSegmentDraft(rec Record, seq int64) *segmentDraft {
	d := &segmentDraft{rec: rec.clone(), seq: seq}
	if sup := d.rec.Basal.Suppressed; sup != nil {
		// suppressed back-references stay single-level, like previous
		sup.Suppressed = nil
	}

	return d
}

func (d *segmentDraft) annotate(codes ...string) {
	d.annotations = appendCodes(d.annotations, codes...)
}

// closeAt seals the draft against its successor's start time. Declared
// durations win over the inferred delta.
func (d *segmentDraft) closeAt(successor time.Time) Event {
	if d.rec.Basal.DurationMS == nil {
		d.rec.Basal.DurationMS = ptrTo(successor.Sub(d.rec.Time).Milliseconds())
	}

	return d.finalize()
}

func (d *segmentDraft) finalize() Event {
	return Event{
		Record:      d.rec,
		Annotations: d.annotations,
		Previous:    d.previous,
		seq:         d.seq,
	}
}

// Reconciler folds one device session's raw records into canonical events.
// It is strictly sequential and owns at most one open segment and one
// pending suspend at a time; independent sessions need independent
// instances.
type Reconciler struct {
	family   DeviceFamily
	settings *Settings

	out            []Event
	openSegment    *segmentDraft
	pendingSuspend *Event
	dose           *doseMatch

	lastTime time.Time
	hasLast  bool
	seq      int64

	stats Stats
}

func NewReconciler(family DeviceFamily, settings *Settings) *Reconciler {
	if family == nil {
		family = Generic
	}
	if settings != nil {
		normalized := settings.Normalize()
		settings = &normalized
	}

	return &Reconciler{family: family, settings: settings}
}

// Ingest dispatches one raw record to its family handler. The first record
// that violates chronological order aborts the session; callers must treat
// any error as fatal and discard the session's output.
func (r *Reconciler) Ingest(rec Record) error {
	if err := r.accept(rec); err != nil {
		return err
	}

	switch rec.Family {
	case FamilyBolus:
		return r.ingestDose(rec)
	case FamilyWizard:
		return r.ingestWizard(rec)
	case FamilyTermination:
		return r.ingestTermination(rec)
	case FamilyBasal:
		return r.ingestSegment(rec)
	case FamilyStatus:
		return r.ingestStatus(rec)
	case FamilyPodActivation:
		return r.ingestPodActivation(rec)
	default:
		return r.ingestSimple(rec)
	}
}

func (r *Reconciler) accept(rec Record) error {
	if r.hasLast && rec.Time.Before(r.lastTime) {
		return fmt.Errorf("record %s at %s precedes %s: %w",
			rec.ID, rec.Time.Format(time.RFC3339), r.lastTime.Format(time.RFC3339), ErrOrderingViolation)
	}
	r.lastTime = rec.Time
	r.hasLast = true
	r.seq++
	r.stats.Records++

	return nil
}

func (r *Reconciler) emit(ev Event, seq int64) {
	ev.seq = seq
	r.out = append(r.out, ev)
}

func (r *Reconciler) ingestDose(rec Record) error {
	if rec.Bolus == nil {
		return fmt.Errorf("bolus record %s has no dose payload: %w", rec.ID, ErrMissingContext)
	}
	r.dose = newDoseMatch(rec.Bolus)
	r.emit(Event{Record: rec}, r.seq)

	return nil
}

func (r *Reconciler) ingestWizard(rec Record) error {
	if rec.Wizard == nil {
		return fmt.Errorf("wizard record %s has no payload: %w", rec.ID, ErrMissingContext)
	}
	if rec.Wizard.Bolus != nil {
		r.dose = newDoseMatch(rec.Wizard.Bolus)
	}
	r.emit(Event{Record: rec}, r.seq)

	return nil
}

func (r *Reconciler) ingestTermination(rec Record) error {
	if rec.Termination == nil {
		return fmt.Errorf("termination record %s has no payload: %w", rec.ID, ErrMissingContext)
	}
	// consumed, never emitted: its whole effect is the dose amendment
	if !r.dose.settle(*rec.Termination) {
		r.stats.UnmatchedTerminations++
	}

	return nil
}

func (r *Reconciler) ingestSegment(rec Record) error {
	if rec.Basal == nil {
		return fmt.Errorf("basal record %s has no segment payload: %w", rec.ID, ErrMissingContext)
	}

	if r.openSegment != nil && r.openSegment.rec.Time.Equal(rec.Time) {
		// repeated same-timestamp broadcast of the open segment
		r.stats.DuplicateSegments++
		return nil
	}

	draft := newSegmentDraft(rec, r.seq)
	if r.openSegment != nil {
		closed := r.openSegment.closeAt(rec.Time)
		draft.previous = strippedCopy(closed)
		r.emit(closed, closed.seq)
	}
	r.openSegment = draft

	return nil
}

func (r *Reconciler) ingestStatus(rec Record) error {
	if rec.Status == nil {
		return fmt.Errorf("status record %s has no payload: %w", rec.ID, ErrMissingContext)
	}
	if rec.Status.Kind == StatusResumed {
		r.emit(r.resumeEvent(Event{Record: rec}), r.seq)
		return nil
	}

	ev := Event{Record: rec}
	r.emit(ev, r.seq)
	if r.pendingSuspend == nil {
		// the earliest suspend of a run anchors the eventual resume
		r.pendingSuspend = strippedCopy(ev)
	}

	return nil
}

// resumeEvent attaches the pending suspend, if any, and clears the anchor.
func (r *Reconciler) resumeEvent(ev Event) Event {
	if r.pendingSuspend != nil {
		ev.Previous = r.pendingSuspend
		r.pendingSuspend = nil
	}

	return ev
}

func (r *Reconciler) ingestPodActivation(rec Record) error {
	if rec.PodActivation == nil || rec.PodActivation.Status == nil {
		return fmt.Errorf("pod activation record %s has no embedded status: %w", rec.ID, ErrMissingContext)
	}

	resume := rec.clone()
	resume.Family = FamilyStatus
	resume.Status = resume.PodActivation.Status
	resume.Status.Kind = StatusResumed
	resume.PodActivation = nil

	ev := r.resumeEvent(Event{Record: resume})
	Annotate(&ev, r.family.FabricatedResumeCode())
	r.stats.Fabricated++
	r.emit(ev, r.seq)

	return nil
}

func (r *Reconciler) ingestSimple(rec Record) error {
	switch rec.Family {
	case FamilyAlarm:
		if rec.Alarm == nil {
			return fmt.Errorf("alarm record %s has no payload: %w", rec.ID, ErrMissingContext)
		}
		// a delivery-stopping alarm with a known log position must have
		// been paired with status by the decoding layer
		if rec.Alarm.StopsDelivery && rec.Index != nil && rec.Alarm.Status == nil {
			return fmt.Errorf("alarm record %s stops delivery without embedded status: %w", rec.ID, ErrMissingContext)
		}
	case FamilyReservoir:
		if rec.Reservoir == nil || rec.Reservoir.Status == nil {
			return fmt.Errorf("reservoir change record %s lacks embedded status: %w", rec.ID, ErrMissingContext)
		}
	}
	r.emit(Event{Record: rec}, r.seq)

	return nil
}

// Finalize closes the trailing open segment at end of stream. The last
// segment's duration can never come from a successor: temp segments keep
// their declared span, scheduled segments consult the declared settings,
// everything else falls back to zero with an unknown-duration annotation.
func (r *Reconciler) Finalize() {
	d := r.openSegment
	if d == nil {
		return
	}
	r.openSegment = nil

	entries := r.activeEntries()
	switch {
	case d.rec.Basal.DeliveryKind == DeliveryTemp:
		// declared at creation
	case d.rec.Basal.DeliveryKind == DeliveryScheduled && len(entries) > 0:
		if finalizeScheduled(d, entries, r.settings.ActiveSchedule, r.family) {
			r.stats.Fabricated++
		}
	default:
		if d.rec.Basal.DurationMS == nil {
			d.rec.Basal.DurationMS = ptrTo(int64(0))
			d.annotate(CodeUnknownDuration)
		}
	}
	r.emit(d.finalize(), d.seq)
}

func (r *Reconciler) activeEntries() []ScheduleEntry {
	if r.settings == nil {
		return nil
	}

	return r.settings.ActiveEntries()
}

// Drain returns the session's canonical events and resets the output.
// Zero-effect doses are filtered, and the sequence is re-sorted by absolute
// time: segment closure appends out of arrival order relative to other
// families, so ties fall back to ingestion order.
func (r *Reconciler) Drain() ([]Event, Stats) {
	events := r.out
	r.out = nil

	kept := events[:0]
	for _, ev := range events {
		if zeroEffectDose(ev) {
			r.stats.FilteredDoses++
			continue
		}
		kept = append(kept, ev)
	}
	sort.Slice(kept, func(i, j int) bool {
		if !kept[i].Time.Equal(kept[j].Time) {
			return kept[i].Time.Before(kept[j].Time)
		}
		return kept[i].seq < kept[j].seq
	})

	r.stats.Events = len(kept)

	return kept, r.stats
}

func zeroEffectDose(ev Event) bool {
	switch ev.Family {
	case FamilyBolus:
		return zeroEffectBolus(ev.Bolus)
	case FamilyWizard:
		return ev.Wizard != nil && zeroEffectBolus(ev.Wizard.Bolus)
	default:
		return false
	}
}

func zeroEffectBolus(b *BolusPayload) bool {
	return b != nil && b.Normal != nil && *b.Normal == 0 && b.ExpectedNormal == nil
}

package domain

// Event is the canonical, emitted form of a record. Events are immutable
// after emission except for the single in-place amendment a termination
// notice applies to a dose.
type Event struct {
	Record

	Annotations []Annotation `json:"annotations,omitempty"`

	// Previous is an owned single-level copy of the immediately preceding
	// same-kind event. Its own Previous and Annotations are always cleared,
	// so chains never nest.
	Previous *Event `json:"previous,omitempty"`

	// seq is the ingestion order of the originating record; Drain uses it
	// to break ties between events sharing a timestamp.
	seq int64
}

// strippedCopy builds the back-reference form of an event.
func strippedCopy(ev Event) *Event {
	return &Event{Record: ev.Record.clone()}
}

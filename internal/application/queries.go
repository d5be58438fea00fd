package application

import (
	"time"

	"github.com/medpipe/pump-history-cli/internal/domain"
)

// SettingsOrigin names where the schedule used for finalization came from.
type SettingsOrigin string

const (
	SettingsOriginDeclared SettingsOrigin = "declared"
	SettingsOriginStream   SettingsOrigin = "stream"
	SettingsOriginNone     SettingsOrigin = "none"
)

type SessionReport struct {
	Session        domain.ReconciledSession
	SettingsOrigin SettingsOrigin
	Written        bool
}

type RecordLookup struct {
	RecordID  string
	Local     domain.LocalTime
	UTC       time.Time
	OffsetMin int
}

// LookupDisagreement is an indexed record whose sequence-index resolution
// and wall-time resolution land on different offsets.
type LookupDisagreement struct {
	RecordID   string
	Local      domain.LocalTime
	ByIndexMin int
	ByTimeMin  int
}

type OffsetsReport struct {
	Zone          string
	Bootstrapped  bool
	Intervals     []domain.OffsetInterval
	Lookups       []RecordLookup
	Unresolved    []string
	Disagreements []LookupDisagreement
}

package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medpipe/pump-history-cli/internal/application"
	"github.com/medpipe/pump-history-cli/internal/domain"
)

func sampleSessionReport() application.SessionReport {
	day := time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC)

	return application.SessionReport{
		Session: domain.ReconciledSession{
			SessionID:   "11111111-2222-3333-4444-555555555555",
			DeviceID:    "pod-451",
			Family:      "insulet",
			Zone:        "America/Los_Angeles",
			GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Events: []domain.Event{
				{Record: domain.Record{ID: "b1", Family: domain.FamilyBasal, Time: day, DeviceID: "pod-451"}},
				{
					Record:      domain.Record{ID: "b2", Family: domain.FamilyBasal, Time: day.Add(time.Hour), DeviceID: "pod-451"},
					Annotations: []domain.Annotation{{Code: "insulet/basal/off-schedule-rate"}},
				},
				{Record: domain.Record{ID: "x1", Family: domain.FamilyBolus, Time: day.Add(65 * time.Minute), DeviceID: "pod-451"}},
			},
			Stats: domain.Stats{
				Records:               4,
				Events:                3,
				DuplicateSegments:     1,
				UnmatchedTerminations: 1,
			},
		},
		SettingsOrigin: application.SettingsOriginDeclared,
		Written:        true,
	}
}

func TestRenderSessionReport(t *testing.T) {
	output, err := RenderSession(sampleSessionReport(), RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "Reconciled Session")
	assert.Contains(t, output, "session: 11111111-2222-3333-4444-555555555555")
	assert.Contains(t, output, "pod-451 (insulet)")
	assert.Contains(t, output, "timezone: America/Los_Angeles")
	assert.Contains(t, output, "settings: declared")
	assert.Contains(t, output, "events: 3 (from 4 records)")
	assert.Contains(t, output, "basal")
	assert.Contains(t, output, "bolus")
	assert.Contains(t, output, "[")
	assert.Contains(t, output, "]")
	assert.Contains(t, output, "duplicate segments ignored: 1")
	assert.Contains(t, output, "unmatched terminations: 1")
	assert.NotContains(t, output, "[not written]")
	assert.NotContains(t, output, "timeline:")
}

func TestRenderSessionDryRunMarksUnwritten(t *testing.T) {
	rep := sampleSessionReport()
	rep.Written = false

	output, err := RenderSession(rep, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "[not written]")
}

func TestRenderSessionVerboseListsTimeline(t *testing.T) {
	output, err := RenderSession(sampleSessionReport(), RenderOptions{Verbose: true})

	require.NoError(t, err)
	assert.Contains(t, output, "timeline:")
	assert.Contains(t, output, "2024-03-01T21:00:00Z  basal  b1")
	assert.Contains(t, output, "insulet/basal/off-schedule-rate")
}

func TestRenderSessionWithoutEvents(t *testing.T) {
	rep := sampleSessionReport()
	rep.Session.Events = nil
	rep.Session.Stats = domain.Stats{Records: 2}
	rep.SettingsOrigin = application.SettingsOriginNone

	output, err := RenderSession(rep, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "events: 0 (from 2 records)")
	assert.Contains(t, output, "No events in this session.")
}

func TestRenderOffsetsReport(t *testing.T) {
	boundary := time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 20, 19, 0, 0, 0, time.UTC)
	idx := int64(500)

	output, err := RenderOffsets(application.OffsetsReport{
		Zone:         "America/Los_Angeles",
		Bootstrapped: true,
		Intervals: []domain.OffsetInterval{
			{Start: &boundary, End: end, StartIndex: &idx, OffsetMin: -420},
			{End: boundary, EndIndex: &idx, OffsetMin: -360},
		},
		Lookups: []application.RecordLookup{
			{RecordID: "g1", UTC: time.Date(2024, 3, 14, 16, 0, 0, 0, time.UTC), OffsetMin: -360},
			{RecordID: "g2", UTC: time.Date(2024, 3, 20, 19, 0, 0, 0, time.UTC), OffsetMin: -420},
		},
		Unresolved: []string{"stray"},
		Disagreements: []application.LookupDisagreement{
			{RecordID: "amb", ByIndexMin: -360, ByTimeMin: -420},
		},
	}, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "Timezone Offsets")
	assert.Contains(t, output, "zone: America/Los_Angeles (bootstrapped from clock edits)")
	assert.Contains(t, output, "intervals: 2")
	assert.Contains(t, output, "-420 min")
	assert.Contains(t, output, "-360 min")
	assert.Contains(t, output, "start .. 2024-03-15T16:00:00Z")
	assert.Contains(t, output, "(idx 500..)")
	assert.Contains(t, output, "(idx ..500)")
	assert.Contains(t, output, "records resolved: 2")
	assert.Contains(t, output, "unresolved records: 1")
	assert.Contains(t, output, "stray")
	assert.Contains(t, output, "amb resolves to -360 min by index but -420 min by wall time")
}

func TestRenderOffsetsUniformZone(t *testing.T) {
	output, err := RenderOffsets(application.OffsetsReport{
		Zone: "UTC",
		Intervals: []domain.OffsetInterval{
			{End: time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)},
		},
		Lookups: []application.RecordLookup{
			{RecordID: "g1", UTC: time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)},
		},
	}, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "zone: UTC (zone database only)")
	assert.Contains(t, output, "intervals: 1")
	assert.Contains(t, output, "records resolved: 1")
	assert.NotContains(t, output, "unresolved records")
	assert.NotContains(t, output, "by wall time")
}

func TestRenderOffsetsVerboseListsLookups(t *testing.T) {
	local, err := domain.ParseLocalTime("2024-03-14T10:00:00")
	require.NoError(t, err)

	output, err := RenderOffsets(application.OffsetsReport{
		Zone: "America/New_York",
		Intervals: []domain.OffsetInterval{
			{End: time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC), OffsetMin: -300},
		},
		Lookups: []application.RecordLookup{
			{RecordID: "g1", Local: local, UTC: time.Date(2024, 3, 14, 15, 0, 0, 0, time.UTC), OffsetMin: -300},
		},
	}, RenderOptions{Verbose: true})

	require.NoError(t, err)
	assert.Contains(t, output, "g1  local 2024-03-14T10:00:00  utc 2024-03-14T15:00:00Z  offset -300")
}

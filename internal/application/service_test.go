package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medpipe/pump-history-cli/internal/domain"
	"github.com/medpipe/pump-history-cli/internal/ports/mocks"
)

var testGeneratedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testRecord(id string, family domain.Family, t time.Time, deviceID string) domain.Record {
	return domain.Record{
		ID:         id,
		Family:     family,
		Time:       t,
		DeviceTime: domain.NewLocalTime(t),
		DeviceID:   deviceID,
	}
}

func testBasal(id string, t time.Time, rate float64, schedule string) domain.Record {
	rec := testRecord(id, domain.FamilyBasal, t, "pod-451")
	rec.Basal = &domain.BasalPayload{
		DeliveryKind: domain.DeliveryScheduled,
		Rate:         rate,
		ScheduleName: schedule,
	}
	return rec
}

func testBolus(id string, t time.Time, normal float64) domain.Record {
	rec := testRecord(id, domain.FamilyBolus, t, "pod-451")
	rec.Bolus = &domain.BolusPayload{SubType: domain.BolusImmediate, Normal: &normal}
	return rec
}

func testTermination(id string, t time.Time, missed float64) domain.Record {
	rec := testRecord(id, domain.FamilyTermination, t, "pod-451")
	rec.Termination = &domain.TerminationPayload{Missed: missed}
	return rec
}

func declaredSettings() domain.Settings {
	return domain.Settings{
		ActiveSchedule: "standard",
		Schedules: map[string][]domain.ScheduleEntry{
			"standard": {{StartMS: 0, Rate: 0.75}},
		},
	}
}

func sessionStream() []domain.Record {
	day1 := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	return []domain.Record{
		testBasal("b1", day1, 0.75, "standard"),
		testBasal("b2", day1.Add(time.Hour), 0.85, "standard"),
		testBolus("x1", day1.Add(65*time.Minute), 1.3),
		testTermination("t1", day1.Add(65*time.Minute), 2.7),
	}
}

func TestReconcileServiceProducesSessionReport(t *testing.T) {
	devices := mocks.NewMockDeviceRepository(t)
	settings := mocks.NewMockSettingsSource(t)
	sink := mocks.NewMockEventSink(t)
	clock := mocks.NewMockClock(t)
	service := NewReconcileService(devices, settings, sink, clock, nil)

	devices.EXPECT().GetByID(mockAnyContext(), domain.DeviceID("pod-451")).
		Return(domain.Device{ID: "pod-451", Family: "insulet", Timezone: "America/Los_Angeles"}, nil)
	settings.EXPECT().Resolve(mockAnyContext()).Return(declaredSettings(), nil)
	clock.EXPECT().Now().Return(testGeneratedAt)

	source := mocks.NewMockRecordSource(t)
	source.EXPECT().Load(mockAnyContext()).Return(sessionStream(), nil)

	var written domain.ReconciledSession
	sink.EXPECT().Write(mockAnyContext(), mock.AnythingOfType("domain.ReconciledSession")).
		Run(func(_ context.Context, session domain.ReconciledSession) { written = session }).
		Return(nil)

	report, err := service.Reconcile(context.Background(), source, ReconcileOptions{})
	require.NoError(t, err)

	assert.True(t, report.Written)
	assert.Equal(t, SettingsOriginDeclared, report.SettingsOrigin)

	require.NoError(t, uuid.Validate(written.SessionID))
	assert.Equal(t, domain.DeviceID("pod-451"), written.DeviceID)
	assert.Equal(t, "insulet", written.Family)
	assert.Equal(t, "America/Los_Angeles", written.Zone)
	assert.Equal(t, testGeneratedAt, written.GeneratedAt)

	require.Len(t, written.Events, 3)
	assert.Equal(t, 4, written.Stats.Records)
	assert.Equal(t, 3, written.Stats.Events)

	// b1 was closed by b2 an hour later
	first := written.Events[0]
	require.NotNil(t, first.Basal.DurationMS)
	assert.Equal(t, int64(3_600_000), *first.Basal.DurationMS)
	assert.Empty(t, first.Annotations)

	// b2 ran off schedule and its duration had to come from the schedule
	second := written.Events[1]
	assert.True(t, domain.HasAnnotation(&second, "insulet/basal/off-schedule-rate"))
	assert.True(t, domain.HasAnnotation(&second, "insulet/basal/fabricated-from-schedule"))

	// the termination amended the dose in place
	third := written.Events[2]
	require.NotNil(t, third.Bolus.ExpectedNormal)
	assert.InDelta(t, 4.0, *third.Bolus.ExpectedNormal, 1e-9)
}

func TestReconcileServiceDryRunSkipsSink(t *testing.T) {
	devices := mocks.NewMockDeviceRepository(t)
	settings := mocks.NewMockSettingsSource(t)
	sink := mocks.NewMockEventSink(t)
	clock := mocks.NewMockClock(t)
	service := NewReconcileService(devices, settings, sink, clock, nil)

	devices.EXPECT().GetByID(mockAnyContext(), domain.DeviceID("pod-451")).
		Return(domain.Device{}, domain.ErrDeviceNotFound)
	settings.EXPECT().Resolve(mockAnyContext()).Return(declaredSettings(), nil)
	clock.EXPECT().Now().Return(testGeneratedAt)

	source := mocks.NewMockRecordSource(t)
	source.EXPECT().Load(mockAnyContext()).Return(sessionStream(), nil)

	report, err := service.Reconcile(context.Background(), source, ReconcileOptions{DryRun: true})
	require.NoError(t, err)

	assert.False(t, report.Written)
	// unregistered devices reconcile under the generic namespace
	assert.Equal(t, "generic", report.Session.Family)
	assert.Empty(t, report.Session.Zone)
}

func TestReconcileServiceFamilyOverride(t *testing.T) {
	devices := mocks.NewMockDeviceRepository(t)
	settings := mocks.NewMockSettingsSource(t)
	sink := mocks.NewMockEventSink(t)
	clock := mocks.NewMockClock(t)
	service := NewReconcileService(devices, settings, sink, clock, nil)

	devices.EXPECT().GetByID(mockAnyContext(), domain.DeviceID("pod-451")).
		Return(domain.Device{}, domain.ErrDeviceNotFound)
	settings.EXPECT().Resolve(mockAnyContext()).Return(declaredSettings(), nil)
	clock.EXPECT().Now().Return(testGeneratedAt)

	source := mocks.NewMockRecordSource(t)
	source.EXPECT().Load(mockAnyContext()).Return(sessionStream(), nil)

	report, err := service.Reconcile(context.Background(), source, ReconcileOptions{Family: "insulet", DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, "insulet", report.Session.Family)
	second := report.Session.Events[1]
	assert.True(t, domain.HasAnnotation(&second, "insulet/basal/off-schedule-rate"))
}

func TestReconcileServiceRejectsMixedStream(t *testing.T) {
	devices := mocks.NewMockDeviceRepository(t)
	settings := mocks.NewMockSettingsSource(t)
	sink := mocks.NewMockEventSink(t)
	clock := mocks.NewMockClock(t)
	service := NewReconcileService(devices, settings, sink, clock, nil)

	day1 := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	records := []domain.Record{
		testRecord("a1", domain.FamilySMBG, day1, "pod-451"),
		testRecord("a2", domain.FamilySMBG, day1.Add(time.Minute), "pod-452"),
	}
	records[0].SMBG = &domain.SMBGPayload{Value: 5.5}
	records[1].SMBG = &domain.SMBGPayload{Value: 6.5}

	source := mocks.NewMockRecordSource(t)
	source.EXPECT().Load(mockAnyContext()).Return(records, nil)

	_, err := service.Reconcile(context.Background(), source, ReconcileOptions{})
	require.ErrorIs(t, err, domain.ErrMixedDeviceStream)
}

func TestReconcileServiceDeviceFilterSplitsMixedStream(t *testing.T) {
	devices := mocks.NewMockDeviceRepository(t)
	settings := mocks.NewMockSettingsSource(t)
	sink := mocks.NewMockEventSink(t)
	clock := mocks.NewMockClock(t)
	service := NewReconcileService(devices, settings, sink, clock, nil)

	devices.EXPECT().GetByID(mockAnyContext(), domain.DeviceID("pod-452")).
		Return(domain.Device{}, domain.ErrDeviceNotFound)
	settings.EXPECT().Resolve(mockAnyContext()).Return(domain.Settings{}, domain.ErrNoSettings)
	clock.EXPECT().Now().Return(testGeneratedAt)

	day1 := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	records := []domain.Record{
		testRecord("a1", domain.FamilySMBG, day1, "pod-451"),
		testRecord("a2", domain.FamilySMBG, day1.Add(time.Minute), "pod-452"),
	}
	records[0].SMBG = &domain.SMBGPayload{Value: 5.5}
	records[1].SMBG = &domain.SMBGPayload{Value: 6.5}

	source := mocks.NewMockRecordSource(t)
	source.EXPECT().Load(mockAnyContext()).Return(records, nil)

	report, err := service.Reconcile(context.Background(), source, ReconcileOptions{DeviceID: "pod-452", DryRun: true})
	require.NoError(t, err)

	require.Len(t, report.Session.Events, 1)
	assert.Equal(t, "a2", report.Session.Events[0].ID)
	assert.Equal(t, SettingsOriginNone, report.SettingsOrigin)
}

func TestReconcileServiceFallsBackToStreamSettings(t *testing.T) {
	devices := mocks.NewMockDeviceRepository(t)
	settings := mocks.NewMockSettingsSource(t)
	sink := mocks.NewMockEventSink(t)
	clock := mocks.NewMockClock(t)
	service := NewReconcileService(devices, settings, sink, clock, nil)

	devices.EXPECT().GetByID(mockAnyContext(), domain.DeviceID("pod-451")).
		Return(domain.Device{}, domain.ErrDeviceNotFound)
	settings.EXPECT().Resolve(mockAnyContext()).Return(domain.Settings{}, domain.ErrNoSettings)
	clock.EXPECT().Now().Return(testGeneratedAt)

	day1 := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	embedded := testRecord("ps1", domain.FamilySettings, day1, "pod-451")
	embedded.Settings = &domain.SettingsPayload{
		ActiveSchedule: "standard",
		Schedules:      map[string][]domain.ScheduleEntry{"standard": {{StartMS: 0, Rate: 0.75}}},
	}
	records := []domain.Record{
		embedded,
		testBasal("b1", day1.Add(time.Minute), 0.75, "standard"),
	}

	source := mocks.NewMockRecordSource(t)
	source.EXPECT().Load(mockAnyContext()).Return(records, nil)

	report, err := service.Reconcile(context.Background(), source, ReconcileOptions{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, SettingsOriginStream, report.SettingsOrigin)
	// the open segment finalized against the embedded schedule
	require.Len(t, report.Session.Events, 2)
	basal := report.Session.Events[1]
	require.NotNil(t, basal.Basal.DurationMS)
	assert.True(t, domain.HasAnnotation(&basal, domain.CodeFabricatedDuration))
}

func TestReconcileServiceOrderingViolationAborts(t *testing.T) {
	devices := mocks.NewMockDeviceRepository(t)
	settings := mocks.NewMockSettingsSource(t)
	sink := mocks.NewMockEventSink(t)
	clock := mocks.NewMockClock(t)
	service := NewReconcileService(devices, settings, sink, clock, nil)

	devices.EXPECT().GetByID(mockAnyContext(), domain.DeviceID("pod-451")).
		Return(domain.Device{}, domain.ErrDeviceNotFound)
	settings.EXPECT().Resolve(mockAnyContext()).Return(declaredSettings(), nil)

	day1 := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	records := []domain.Record{
		testBolus("x1", day1, 1.0),
		testBolus("x2", day1.Add(-time.Minute), 1.0),
	}

	source := mocks.NewMockRecordSource(t)
	source.EXPECT().Load(mockAnyContext()).Return(records, nil)

	_, err := service.Reconcile(context.Background(), source, ReconcileOptions{})
	require.ErrorIs(t, err, domain.ErrOrderingViolation)
	require.ErrorContains(t, err, "x2")
}

func TestReconcileServiceAppliesOffsets(t *testing.T) {
	devices := mocks.NewMockDeviceRepository(t)
	settings := mocks.NewMockSettingsSource(t)
	sink := mocks.NewMockEventSink(t)
	clock := mocks.NewMockClock(t)
	service := NewReconcileService(devices, settings, sink, clock, nil)

	devices.EXPECT().GetByID(mockAnyContext(), domain.DeviceID("pod-451")).
		Return(domain.Device{ID: "pod-451", Timezone: "America/New_York"}, nil)
	settings.EXPECT().Resolve(mockAnyContext()).Return(domain.Settings{}, domain.ErrNoSettings)
	clock.EXPECT().Now().Return(testGeneratedAt)

	// January wall clock, so Eastern standard time: UTC is five hours ahead
	wall := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	rec := testRecord("g1", domain.FamilySMBG, time.Time{}, "pod-451")
	rec.DeviceTime = domain.NewLocalTime(wall)
	rec.SMBG = &domain.SMBGPayload{Value: 5.5}

	source := mocks.NewMockRecordSource(t)
	source.EXPECT().Load(mockAnyContext()).Return([]domain.Record{rec}, nil)

	report, err := service.Reconcile(context.Background(), source, ReconcileOptions{ApplyOffsets: true, DryRun: true})
	require.NoError(t, err)

	require.Len(t, report.Session.Events, 1)
	got := report.Session.Events[0]
	assert.Equal(t, time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC), got.Time)
	assert.Equal(t, -300, got.TimezoneOffsetMin)
	assert.Equal(t, "America/New_York", report.Session.Zone)
}

func TestReconcileServiceOffsetsNeedZone(t *testing.T) {
	devices := mocks.NewMockDeviceRepository(t)
	settings := mocks.NewMockSettingsSource(t)
	sink := mocks.NewMockEventSink(t)
	clock := mocks.NewMockClock(t)
	service := NewReconcileService(devices, settings, sink, clock, nil)

	devices.EXPECT().GetByID(mockAnyContext(), domain.DeviceID("pod-451")).
		Return(domain.Device{}, domain.ErrDeviceNotFound)

	source := mocks.NewMockRecordSource(t)
	source.EXPECT().Load(mockAnyContext()).Return(sessionStream(), nil)

	_, err := service.Reconcile(context.Background(), source, ReconcileOptions{ApplyOffsets: true})
	require.ErrorIs(t, err, domain.ErrInvalidTimezone)
}

func TestReconcileServiceSinkFailureSurfaces(t *testing.T) {
	devices := mocks.NewMockDeviceRepository(t)
	settings := mocks.NewMockSettingsSource(t)
	sink := mocks.NewMockEventSink(t)
	clock := mocks.NewMockClock(t)
	service := NewReconcileService(devices, settings, sink, clock, nil)

	devices.EXPECT().GetByID(mockAnyContext(), domain.DeviceID("pod-451")).
		Return(domain.Device{}, domain.ErrDeviceNotFound)
	settings.EXPECT().Resolve(mockAnyContext()).Return(declaredSettings(), nil)
	clock.EXPECT().Now().Return(testGeneratedAt)

	writeErr := errors.New("disk full")
	sink.EXPECT().Write(mockAnyContext(), mock.AnythingOfType("domain.ReconciledSession")).Return(writeErr)

	source := mocks.NewMockRecordSource(t)
	source.EXPECT().Load(mockAnyContext()).Return(sessionStream(), nil)

	_, err := service.Reconcile(context.Background(), source, ReconcileOptions{})
	require.ErrorIs(t, err, writeErr)
}

func TestReconcileServiceSettingsFailureSurfaces(t *testing.T) {
	devices := mocks.NewMockDeviceRepository(t)
	settings := mocks.NewMockSettingsSource(t)
	sink := mocks.NewMockEventSink(t)
	clock := mocks.NewMockClock(t)
	service := NewReconcileService(devices, settings, sink, clock, nil)

	devices.EXPECT().GetByID(mockAnyContext(), domain.DeviceID("pod-451")).
		Return(domain.Device{}, domain.ErrDeviceNotFound)
	resolveErr := errors.New("settings file corrupt")
	settings.EXPECT().Resolve(mockAnyContext()).Return(domain.Settings{}, resolveErr)

	source := mocks.NewMockRecordSource(t)
	source.EXPECT().Load(mockAnyContext()).Return(sessionStream(), nil)

	_, err := service.Reconcile(context.Background(), source, ReconcileOptions{})
	require.ErrorIs(t, err, resolveErr)
}

func mockAnyContext() interface{} {
	return mock.Anything
}

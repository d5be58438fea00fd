package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medpipe/pump-history-cli/internal/domain"
	"github.com/medpipe/pump-history-cli/internal/ports"
)

// ReconcileService turns one upload session of raw records into the
// canonical treatment history and hands it to the sink.
type ReconcileService struct {
	devices  ports.DeviceRepository
	settings ports.SettingsSource
	sink     ports.EventSink
	clock    ports.Clock
	log      *slog.Logger
}

func NewReconcileService(devices ports.DeviceRepository, settings ports.SettingsSource, sink ports.EventSink, clock ports.Clock, log *slog.Logger) *ReconcileService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &ReconcileService{
		devices:  devices,
		settings: settings,
		sink:     sink,
		clock:    clock,
		log:      log,
	}
}

func (s *ReconcileService) Reconcile(ctx context.Context, source ports.RecordSource, opts ReconcileOptions) (SessionReport, error) {
	records, err := source.Load(ctx)
	if err != nil {
		return SessionReport{}, fmt.Errorf("load records: %w", err)
	}

	deviceID := opts.DeviceID
	if deviceID != "" {
		records = filterByDevice(records, deviceID)
	} else if deviceID, err = streamDeviceID(records); err != nil {
		return SessionReport{}, err
	}

	device := lookupDevice(ctx, s.devices, s.log, deviceID)
	zone := opts.Zone
	if zone == "" {
		zone = device.Timezone
	}
	familyName := opts.Family
	if familyName == "" {
		familyName = device.Family
	}

	if opts.ApplyOffsets {
		if zone == "" {
			return SessionReport{}, fmt.Errorf("offset bootstrapping needs a timezone: %w", domain.ErrInvalidTimezone)
		}
		if records, err = rewriteTimes(records, zone); err != nil {
			return SessionReport{}, err
		}
	}

	settings, origin, err := s.resolveSettings(ctx, records)
	if err != nil {
		return SessionReport{}, err
	}

	family := domain.FamilyFor(familyName)
	reconciler := domain.NewReconciler(family, settings)
	for _, rec := range records {
		if err := reconciler.Ingest(rec); err != nil {
			return SessionReport{}, fmt.Errorf("ingest record %s: %w", rec.ID, err)
		}
	}
	reconciler.Finalize()
	events, stats := reconciler.Drain()

	if stats.UnmatchedTerminations > 0 {
		s.log.Warn("terminations without a matching dose",
			slog.Int("count", stats.UnmatchedTerminations))
	}

	session := domain.ReconciledSession{
		SessionID:   uuid.NewString(),
		DeviceID:    deviceID,
		Family:      family.Name(),
		Zone:        zone,
		GeneratedAt: s.clock.Now().UTC(),
		Events:      events,
		Stats:       stats,
	}

	report := SessionReport{Session: session, SettingsOrigin: origin}
	if !opts.DryRun && s.sink != nil {
		if err := s.sink.Write(ctx, session); err != nil {
			return SessionReport{}, fmt.Errorf("write session: %w", err)
		}
		report.Written = true
	}

	s.log.Info("session reconciled",
		slog.String("session", session.SessionID),
		slog.String("device", string(deviceID)),
		slog.Int("records", stats.Records),
		slog.Int("events", stats.Events),
		slog.String("settings", string(origin)))

	return report, nil
}

func (s *ReconcileService) resolveSettings(ctx context.Context, records []domain.Record) (*domain.Settings, SettingsOrigin, error) {
	var settings *domain.Settings
	origin := SettingsOriginNone

	if s.settings != nil {
		declared, err := s.settings.Resolve(ctx)
		switch {
		case err == nil:
			settings = &declared
			origin = SettingsOriginDeclared
		case errors.Is(err, domain.ErrNoSettings):
		default:
			return nil, origin, fmt.Errorf("resolve settings: %w", err)
		}
	}

	if settings == nil {
		if fromStream := domain.SettingsFromRecords(records); fromStream != nil {
			settings = fromStream
			origin = SettingsOriginStream
		}
	}

	if settings != nil {
		if err := settings.Validate(); err != nil {
			return nil, origin, fmt.Errorf("settings: %w", err)
		}
	}

	return settings, origin, nil
}

// streamDeviceID finds the single device behind an unfiltered stream.
// Sessions are uploaded one device at a time; two ids in one stream mean
// the caller concatenated files and must pick one.
func streamDeviceID(records []domain.Record) (domain.DeviceID, error) {
	var id domain.DeviceID
	for _, rec := range records {
		if rec.DeviceID == "" {
			continue
		}
		switch {
		case id == "":
			id = domain.DeviceID(rec.DeviceID)
		case string(id) != rec.DeviceID:
			return "", fmt.Errorf("records from %q and %q in one stream: %w", id, rec.DeviceID, domain.ErrMixedDeviceStream)
		}
	}

	return id, nil
}

func filterByDevice(records []domain.Record, id domain.DeviceID) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if rec.DeviceID == string(id) {
			out = append(out, rec)
		}
	}

	return out
}

func lookupDevice(ctx context.Context, repo ports.DeviceRepository, log *slog.Logger, id domain.DeviceID) domain.Device {
	if id == "" || repo == nil {
		return domain.Device{}
	}
	device, err := repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrDeviceNotFound) {
			log.Warn("device registry lookup failed",
				slog.String("device", string(id)), slog.String("error", err.Error()))
		}
		return domain.Device{}
	}

	return device
}

// rewriteTimes replays the stream through the offset resolver, replacing
// each record's UTC time and offset with the reconstructed values. The
// per-record correction offset is preserved on top of the zone offset.
func rewriteTimes(records []domain.Record, zone string) ([]domain.Record, error) {
	if len(records) == 0 {
		return records, nil
	}
	mostRecent := records[len(records)-1].DeviceTime.String()
	resolver, err := domain.NewOffsetResolver(records, zone, mostRecent)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Record, len(records))
	for i, rec := range records {
		utc, offset, err := resolver.Lookup(rec.DeviceTime, rec.Index)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		if rec.CorrectionOffsetMS != 0 {
			utc = utc.Add(-time.Duration(rec.CorrectionOffsetMS) * time.Millisecond)
		}
		rec.Time = utc
		rec.TimezoneOffsetMin = offset
		out[i] = rec
	}

	return out, nil
}

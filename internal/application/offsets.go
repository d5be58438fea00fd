package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/medpipe/pump-history-cli/internal/domain"
	"github.com/medpipe/pump-history-cli/internal/ports"
)

// OffsetService reconstructs and inspects a session's UTC offset history
// without producing events.
type OffsetService struct {
	devices ports.DeviceRepository
	log     *slog.Logger
}

func NewOffsetService(devices ports.DeviceRepository, log *slog.Logger) *OffsetService {
	if log == nil {
		log = slog.Default()
	}

	return &OffsetService{devices: devices, log: log}
}

func (s *OffsetService) Inspect(ctx context.Context, source ports.RecordSource, opts OffsetOptions) (OffsetsReport, error) {
	records, err := source.Load(ctx)
	if err != nil {
		return OffsetsReport{}, fmt.Errorf("load records: %w", err)
	}

	deviceID := opts.DeviceID
	if deviceID != "" {
		records = filterByDevice(records, deviceID)
	} else if deviceID, err = streamDeviceID(records); err != nil {
		return OffsetsReport{}, err
	}
	if len(records) == 0 {
		return OffsetsReport{}, fmt.Errorf("no records to inspect")
	}

	zone := opts.Zone
	if zone == "" {
		zone = lookupDevice(ctx, s.devices, s.log, deviceID).Timezone
	}

	resolver, err := domain.NewOffsetResolver(records, zone, records[len(records)-1].DeviceTime.String())
	if err != nil {
		return OffsetsReport{}, err
	}

	report := OffsetsReport{
		Zone:         resolver.Zone(),
		Bootstrapped: resolver.Bootstrapped(),
		Intervals:    resolver.Intervals(),
	}

	for _, rec := range records {
		utc, offset, err := resolver.Lookup(rec.DeviceTime, rec.Index)
		if err != nil {
			if errors.Is(err, domain.ErrUnmatchedLookup) {
				report.Unresolved = append(report.Unresolved, rec.ID)
				continue
			}
			return OffsetsReport{}, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		report.Lookups = append(report.Lookups, RecordLookup{
			RecordID:  rec.ID,
			Local:     rec.DeviceTime,
			UTC:       utc,
			OffsetMin: offset,
		})

		if !opts.Check || rec.Index == nil {
			continue
		}
		_, byTime, err := resolver.Lookup(rec.DeviceTime, nil)
		if err != nil || byTime == offset {
			continue
		}
		report.Disagreements = append(report.Disagreements, LookupDisagreement{
			RecordID:   rec.ID,
			Local:      rec.DeviceTime,
			ByIndexMin: offset,
			ByTimeMin:  byTime,
		})
	}

	if len(report.Unresolved) > 0 {
		s.log.Warn("records outside every offset interval",
			slog.Int("count", len(report.Unresolved)))
	}
	if len(report.Disagreements) > 0 {
		s.log.Warn("offset lookups disagree between index and wall time",
			slog.Int("count", len(report.Disagreements)))
	}

	return report, nil
}

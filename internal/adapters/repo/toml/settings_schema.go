package toml

import (
	"fmt"

	"github.com/medpipe/pump-history-cli/internal/domain"
)

type settingsFileSchema struct {
	Version        int                              `toml:"version"`
	ActiveSchedule string                           `toml:"active_schedule"`
	Units          string                           `toml:"units,omitempty"`
	Schedules      map[string][]scheduleEntrySchema `toml:"schedules,omitempty"`
}

func (s *settingsFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s settingsFileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported settings schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type scheduleEntrySchema struct {
	StartMS int64   `toml:"start_ms"`
	Rate    float64 `toml:"rate"`
}

func toSettingsSchema(settings domain.Settings) settingsFileSchema {
	file := settingsFileSchema{
		ActiveSchedule: settings.ActiveSchedule,
		Units:          settings.Units,
	}
	if settings.Schedules != nil {
		file.Schedules = make(map[string][]scheduleEntrySchema, len(settings.Schedules))
		for name, entries := range settings.Schedules {
			encoded := make([]scheduleEntrySchema, 0, len(entries))
			for _, e := range entries {
				encoded = append(encoded, scheduleEntrySchema{StartMS: e.StartMS, Rate: e.Rate})
			}
			file.Schedules[name] = encoded
		}
	}

	return file
}

func fromSettingsSchema(file settingsFileSchema) domain.Settings {
	settings := domain.Settings{
		ActiveSchedule: file.ActiveSchedule,
		Units:          file.Units,
	}
	if file.Schedules != nil {
		settings.Schedules = make(map[string][]domain.ScheduleEntry, len(file.Schedules))
		for name, entries := range file.Schedules {
			decoded := make([]domain.ScheduleEntry, 0, len(entries))
			for _, e := range entries {
				decoded = append(decoded, domain.ScheduleEntry{StartMS: e.StartMS, Rate: e.Rate})
			}
			settings.Schedules[name] = decoded
		}
	}

	return settings
}

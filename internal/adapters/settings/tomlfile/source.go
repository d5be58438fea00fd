// Package tomlfile resolves pump settings from a declared TOML file.
package tomlfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/medpipe/pump-history-cli/internal/domain"
	"github.com/medpipe/pump-history-cli/internal/ports"
)

var errEmptyPath = errors.New("settings file path is empty")

// Source resolves settings from a user-declared TOML file, typically named on
// the command line. The file uses the same layout as the managed settings
// registry minus the version header. A named file that does not exist is an
// error; an existing file with no schedules resolves to domain.ErrNoSettings.
type Source struct {
	path string
}

var _ ports.SettingsSource = (*Source)(nil)

func NewSource(path string) (*Source, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errEmptyPath
	}

	return &Source{path: path}, nil
}

func (s *Source) Resolve(ctx context.Context) (domain.Settings, error) {
	if err := ctx.Err(); err != nil {
		return domain.Settings{}, err
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("read settings file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(raw, &file); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings file: %w", err)
	}

	if file.ActiveSchedule == "" && len(file.Schedules) == 0 {
		return domain.Settings{}, domain.ErrNoSettings
	}

	return file.toSettings(), nil
}

type fileSchema struct {
	ActiveSchedule string                   `toml:"active_schedule"`
	Units          string                   `toml:"units,omitempty"`
	Schedules      map[string][]entrySchema `toml:"schedules,omitempty"`
}

type entrySchema struct {
	StartMS int64   `toml:"start_ms"`
	Rate    float64 `toml:"rate"`
}

func (f fileSchema) toSettings() domain.Settings {
	settings := domain.Settings{ActiveSchedule: f.ActiveSchedule, Units: f.Units}
	if f.Schedules != nil {
		settings.Schedules = make(map[string][]domain.ScheduleEntry, len(f.Schedules))
		for name, entries := range f.Schedules {
			decoded := make([]domain.ScheduleEntry, 0, len(entries))
			for _, e := range entries {
				decoded = append(decoded, domain.ScheduleEntry{StartMS: e.StartMS, Rate: e.Rate})
			}
			settings.Schedules[name] = decoded
		}
	}

	return settings
}

package toml

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medpipe/pump-history-cli/internal/domain"
)

func newTestSettingsRepository(t *testing.T) (*SettingsRepository, string) {
	t.Helper()

	settingsPath := filepath.Join(t.TempDir(), "settings.toml")
	config := viper.New()
	config.Set("settings.path", settingsPath)

	repo, err := NewSettingsRepository(config)
	require.NoError(t, err)

	return repo, settingsPath
}

func TestSettingsRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo, _ := newTestSettingsRepository(t)

	settings := domain.Settings{
		ActiveSchedule: "standard",
		Units:          "U/hr",
		Schedules: map[string][]domain.ScheduleEntry{
			"standard": {
				{StartMS: 0, Rate: 0.75},
				{StartMS: 43_200_000, Rate: 0.85},
			},
			"workout": {
				{StartMS: 0, Rate: 0.4},
			},
		},
	}

	require.NoError(t, repo.Save(context.Background(), settings))

	got, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, settings, got)
}

func TestSettingsRepositoryMissingFile(t *testing.T) {
	t.Parallel()

	repo, _ := newTestSettingsRepository(t)

	_, err := repo.Get(context.Background())
	require.ErrorIs(t, err, domain.ErrNoSettings)
}

func TestSettingsRepositoryEmptyFileMeansNoSettings(t *testing.T) {
	t.Parallel()

	repo, settingsPath := newTestSettingsRepository(t)

	require.NoError(t, os.WriteFile(settingsPath, []byte("version = 1\n"), 0o600))

	_, err := repo.Get(context.Background())
	require.ErrorIs(t, err, domain.ErrNoSettings)
}

func TestSettingsRepositoryRejectsNewerSchemaVersion(t *testing.T) {
	t.Parallel()

	repo, settingsPath := newTestSettingsRepository(t)

	require.NoError(t, os.WriteFile(settingsPath, []byte("version = 99\n"), 0o600))

	_, err := repo.Get(context.Background())
	require.ErrorContains(t, err, "unsupported settings schema version 99")
}

func TestSettingsRepositoryOverwrite(t *testing.T) {
	t.Parallel()

	repo, _ := newTestSettingsRepository(t)

	require.NoError(t, repo.Save(context.Background(), domain.Settings{
		ActiveSchedule: "standard",
		Schedules:      map[string][]domain.ScheduleEntry{"standard": {{StartMS: 0, Rate: 0.5}}},
	}))
	require.NoError(t, repo.Save(context.Background(), domain.Settings{
		ActiveSchedule: "workout",
		Schedules:      map[string][]domain.ScheduleEntry{"workout": {{StartMS: 0, Rate: 0.3}}},
	}))

	got, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "workout", got.ActiveSchedule)
	require.Len(t, got.Schedules, 1)
}

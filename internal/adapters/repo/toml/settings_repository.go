package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/medpipe/pump-history-cli/internal/domain"
	"github.com/medpipe/pump-history-cli/internal/ports"
)

const (
	settingsPathKey = "settings.path"
	settingsFile    = "settings.toml"
)

// SettingsRepository persists the declared pump settings the reconciler
// falls back on when a session does not name its own.
type SettingsRepository struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.SettingsRepository = (*SettingsRepository)(nil)

func NewSettingsRepository(cfg *viper.Viper) (*SettingsRepository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	path := cfg.GetString(settingsPathKey)
	if path == "" {
		path = filepath.Join(homeDir, registryDir, settingsFile)
	}

	path, err = normalizeRegistryPath(path)
	if err != nil {
		return nil, err
	}

	return &SettingsRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *SettingsRepository) Get(ctx context.Context) (domain.Settings, error) {
	if err := ctx.Err(); err != nil {
		return domain.Settings{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Settings{}, domain.ErrNoSettings
		}
		return domain.Settings{}, fmt.Errorf("read settings file: %w", err)
	}

	var file settingsFileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return domain.Settings{}, err
	}

	if file.ActiveSchedule == "" && len(file.Schedules) == 0 {
		return domain.Settings{}, domain.ErrNoSettings
	}

	return fromSettingsSchema(file), nil
}

func (r *SettingsRepository) Save(ctx context.Context, settings domain.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file := toSettingsSchema(settings)
	file.applyDefaults()

	return writeTOMLFile(r.path, file)
}

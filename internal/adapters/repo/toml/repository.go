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
	configName       = "config"
	configType       = "toml"
	devicesPathKey   = "devices.path"
	registryFileMode = 0o600
	registryDirMode  = 0o700
	registryDir      = ".pumphist"
	devicesFile      = "devices.toml"
	tempFilePattern  = ".registry-*.toml.tmp"
)

// Repository stores the device registry in a TOML file under the user's
// config directory. Writes go through a temp file and rename so a crashed
// run never leaves a half-written registry.
type Repository struct {
	devicesPath string
	mu          *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.DeviceRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	defaultPath := filepath.Join(homeDir, registryDir, devicesFile)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, registryDir))
	cfg.SetDefault(devicesPathKey, defaultPath)

	err = cfg.ReadInConfig()
	if err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	devicesPath := cfg.GetString(devicesPathKey)
	if devicesPath == "" {
		return nil, errors.New("devices path is empty")
	}
	devicesPath, err = normalizeRegistryPath(devicesPath)
	if err != nil {
		return nil, err
	}

	return &Repository{devicesPath: devicesPath, mu: lockForPath(devicesPath)}, nil
}

func (r *Repository) Save(ctx context.Context, device domain.Device) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}
	file.applyDefaults()

	encoded := toSchema(device)
	updated := false
	for i := range file.Devices {
		if file.Devices[i].ID == encoded.ID {
			file.Devices[i] = encoded
			updated = true
			break
		}
	}

	if !updated {
		file.Devices = append(file.Devices, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return writeTOMLFile(r.devicesPath, file)
}

func (r *Repository) GetByID(ctx context.Context, id domain.DeviceID) (domain.Device, error) {
	if err := ctx.Err(); err != nil {
		return domain.Device{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.Device{}, err
	}

	for _, entry := range file.Devices {
		if entry.ID == string(id) {
			return fromSchema(entry), nil
		}
	}

	return domain.Device{}, domain.ErrDeviceNotFound
}

func (r *Repository) Remove(ctx context.Context, id domain.DeviceID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	kept := make([]deviceSchema, 0, len(file.Devices))
	for _, entry := range file.Devices {
		if entry.ID == string(id) {
			continue
		}
		kept = append(kept, entry)
	}
	if len(kept) == len(file.Devices) {
		return domain.ErrDeviceNotFound
	}

	file.Devices = kept
	file.applyDefaults()

	return writeTOMLFile(r.devicesPath, file)
}

func (r *Repository) List(ctx context.Context) ([]domain.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	devices := make([]domain.Device, 0, len(file.Devices))
	for _, entry := range file.Devices {
		devices = append(devices, fromSchema(entry))
	}

	return devices, nil
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.devicesPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, nil
		}
		return fileSchema{}, fmt.Errorf("read devices file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode devices file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeRegistryPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve registry path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func writeTOMLFile(path string, file any) error {
	if err := os.MkdirAll(filepath.Dir(path), registryDirMode); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tempFile.Chmod(registryFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}

	cleanup = false

	if err := os.Chmod(path, registryFileMode); err != nil {
		return fmt.Errorf("chmod file: %w", err)
	}

	return nil
}

func toSchema(device domain.Device) deviceSchema {
	return deviceSchema{
		ID:       string(device.ID),
		Alias:    device.Alias,
		Family:   device.Family,
		Timezone: device.Timezone,
	}
}

func fromSchema(entry deviceSchema) domain.Device {
	return domain.Device{
		ID:       domain.DeviceID(entry.ID),
		Alias:    entry.Alias,
		Family:   entry.Family,
		Timezone: entry.Timezone,
	}
}

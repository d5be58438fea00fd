package application

import (
	"context"
	"fmt"

	"github.com/medpipe/pump-history-cli/internal/domain"
	"github.com/medpipe/pump-history-cli/internal/ports"
)

// RegistryService administers the device registry and the stored pump
// settings the reconciler falls back on.
type RegistryService struct {
	devices  ports.DeviceRepository
	settings ports.SettingsRepository
}

func NewRegistryService(devices ports.DeviceRepository, settings ports.SettingsRepository) *RegistryService {
	return &RegistryService{devices: devices, settings: settings}
}

func (s *RegistryService) RegisterDevice(ctx context.Context, cmd RegisterDeviceCommand) (domain.Device, error) {
	device := domain.Device{
		ID:       cmd.ID,
		Alias:    cmd.Alias,
		Family:   cmd.Family,
		Timezone: cmd.Timezone,
	}
	if err := device.Validate(); err != nil {
		return domain.Device{}, fmt.Errorf("device: %w", err)
	}
	if err := s.devices.Save(ctx, device); err != nil {
		return domain.Device{}, fmt.Errorf("save device: %w", err)
	}

	return device, nil
}

func (s *RegistryService) RemoveDevice(ctx context.Context, id domain.DeviceID) error {
	if err := s.devices.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove device %s: %w", id, err)
	}

	return nil
}

func (s *RegistryService) ListDevices(ctx context.Context) ([]domain.Device, error) {
	devices, err := s.devices.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	return devices, nil
}

// ImportSettings normalizes, validates and stores a declared settings
// document, returning the form that was persisted.
func (s *RegistryService) ImportSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	normalized := settings.Normalize()
	if err := normalized.Validate(); err != nil {
		return domain.Settings{}, fmt.Errorf("settings: %w", err)
	}
	if err := s.settings.Save(ctx, normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	return normalized, nil
}

func (s *RegistryService) ShowSettings(ctx context.Context) (domain.Settings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return domain.Settings{}, err
	}

	return settings, nil
}

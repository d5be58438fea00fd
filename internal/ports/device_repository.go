package ports

import (
	"context"

	"github.com/medpipe/pump-history-cli/internal/domain"
)

type DeviceRepository interface {
	GetByID(ctx context.Context, id domain.DeviceID) (domain.Device, error)
	List(ctx context.Context) ([]domain.Device, error)
	Save(ctx context.Context, device domain.Device) error
	Remove(ctx context.Context, id domain.DeviceID) error
}

package ports

import (
	"context"

	"github.com/medpipe/pump-history-cli/internal/domain"
)

// SettingsSource resolves the pump settings a session reconciles against.
// Sources with nothing to offer return domain.ErrNoSettings.
type SettingsSource interface {
	Resolve(ctx context.Context) (domain.Settings, error)
}

type SettingsRepository interface {
	Get(ctx context.Context) (domain.Settings, error)
	Save(ctx context.Context, settings domain.Settings) error
}

package ports

import (
	"context"

	"github.com/medpipe/pump-history-cli/internal/domain"
)

type RecordSource interface {
	Load(ctx context.Context) ([]domain.Record, error)
}

package ports

import (
	"context"

	"github.com/medpipe/pump-history-cli/internal/domain"
)

type EventSink interface {
	Write(ctx context.Context, session domain.ReconciledSession) error
}

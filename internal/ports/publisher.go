package ports

import (
	"context"

	"github.com/alejandrodnm/spreadwatch/internal/domain"
)

// Publisher empuja un sample enriquecido al plano de fanout (el panel).
type Publisher interface {
	// Publish envía el sample; un fallo no es fatal para el poller.
	Publish(ctx context.Context, s domain.Sample) error
}

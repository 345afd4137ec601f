package interfaces

import (
	"context"

	"github.com/HannahMarsh/onion-routing-wsn/internal/domain/models"
)

// EventRepository persists the events of one run.
type EventRepository interface {
	SaveNode(ctx context.Context, node models.Node) error
	SaveHandshake(ctx context.Context, event models.HandshakeEvent) error
	SaveTransfer(ctx context.Context, event models.TransferEvent) error
	SaveAbort(ctx context.Context, event models.AbortEvent) error
	SaveCompletion(ctx context.Context, event models.CompletionEvent) error
}

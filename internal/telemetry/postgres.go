package telemetry

import (
	"context"
	"log/slog"

	"github.com/HannahMarsh/onion-routing-wsn/internal/domain/interfaces"
	"github.com/HannahMarsh/onion-routing-wsn/internal/domain/models"
)

// RepositoryObserver persists events through an EventRepository. A failed write is
// logged and counted; it never stops the run.
type RepositoryObserver struct {
	ctx    context.Context
	repo   interfaces.EventRepository
	failed int
}

func NewRepositoryObserver(ctx context.Context, repo interfaces.EventRepository) *RepositoryObserver {
	return &RepositoryObserver{ctx: ctx, repo: repo}
}

func (o *RepositoryObserver) Failed() int {
	return o.failed
}

func (o *RepositoryObserver) check(what string, err error) {
	if err != nil {
		o.failed++
		slog.Error("Failed to persist event", "event", what, "err", err)
	}
}

func (o *RepositoryObserver) OnNodeDetails(node models.Node) {
	o.check(EventNode, o.repo.SaveNode(o.ctx, node))
}

func (o *RepositoryObserver) OnHandshake(event models.HandshakeEvent) {
	o.check(EventHandshake, o.repo.SaveHandshake(o.ctx, event))
}

func (o *RepositoryObserver) OnSend(event models.TransferEvent) {
	o.check(EventSend, o.repo.SaveTransfer(o.ctx, event))
}

func (o *RepositoryObserver) OnReceive(event models.TransferEvent) {
	o.check(EventReceive, o.repo.SaveTransfer(o.ctx, event))
}

func (o *RepositoryObserver) OnAbort(event models.AbortEvent) {
	o.check(EventAbort, o.repo.SaveAbort(o.ctx, event))
}

func (o *RepositoryObserver) OnComplete(event models.CompletionEvent) {
	o.check(EventCompletion, o.repo.SaveCompletion(o.ctx, event))
}

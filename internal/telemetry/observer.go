// Package telemetry receives the events of a run and hands them to recorders,
// metrics, a database or a message broker.
package telemetry

import (
	"github.com/HannahMarsh/onion-routing-wsn/internal/domain/models"
	"github.com/HannahMarsh/onion-routing-wsn/internal/watchdog"
)

// Observer is told about everything that happens to handshakes and onions.
// Implementations must not call back into the nodes.
type Observer interface {
	OnNodeDetails(node models.Node)
	OnHandshake(event models.HandshakeEvent)
	OnSend(event models.TransferEvent)
	OnReceive(event models.TransferEvent)
	OnAbort(event models.AbortEvent)
	OnComplete(event models.CompletionEvent)
}

// Nop ignores every event. Embed it to implement only some methods.
type Nop struct{}

func (Nop) OnNodeDetails(models.Node)         {}
func (Nop) OnHandshake(models.HandshakeEvent) {}
func (Nop) OnSend(models.TransferEvent)       {}
func (Nop) OnReceive(models.TransferEvent)    {}
func (Nop) OnAbort(models.AbortEvent)         {}
func (Nop) OnComplete(models.CompletionEvent) {}

// Multi forwards every event to each observer in order.
type Multi []Observer

func (m Multi) OnNodeDetails(node models.Node) {
	for _, o := range m {
		o.OnNodeDetails(node)
	}
}

func (m Multi) OnHandshake(event models.HandshakeEvent) {
	for _, o := range m {
		o.OnHandshake(event)
	}
}

func (m Multi) OnSend(event models.TransferEvent) {
	for _, o := range m {
		o.OnSend(event)
	}
}

func (m Multi) OnReceive(event models.TransferEvent) {
	for _, o := range m {
		o.OnReceive(event)
	}
}

func (m Multi) OnAbort(event models.AbortEvent) {
	for _, o := range m {
		o.OnAbort(event)
	}
}

func (m Multi) OnComplete(event models.CompletionEvent) {
	for _, o := range m {
		o.OnComplete(event)
	}
}

// WatchdogHandler reports watchdog aborts to o.
func WatchdogHandler(o Observer) watchdog.AbortHandler {
	return watchdog.AbortHandlerFunc(func(a watchdog.Abort) {
		o.OnAbort(models.AbortEvent{At: a.At, OnionID: a.OnionID, HopCount: a.HopCount, ArmedBy: a.ArmedBy})
	})
}

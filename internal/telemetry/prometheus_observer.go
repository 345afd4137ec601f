package telemetry

import (
	"github.com/HannahMarsh/onion-routing-wsn/internal/domain/models"
)

// PrometheusObserver feeds the collectors in this package.
type PrometheusObserver struct {
	Nop
}

func (PrometheusObserver) OnHandshake(models.HandshakeEvent) {
	Inc(HANDSHAKES)
}

func (PrometheusObserver) OnSend(event models.TransferEvent) {
	Inc(ONIONS_SENT, event.Node)
	Observe(ONION_SIZE, float64(event.PacketSize))
}

func (PrometheusObserver) OnReceive(event models.TransferEvent) {
	Inc(ONIONS_RECEIVED, event.Node)
}

func (PrometheusObserver) OnAbort(models.AbortEvent) {
	Inc(ONIONS_ABORTED)
}

func (PrometheusObserver) OnComplete(event models.CompletionEvent) {
	Inc(ONIONS_COMPLETED, event.PathLength)
	Observe(ROUND_TRIP_TIME, event.Elapsed.Seconds())
}

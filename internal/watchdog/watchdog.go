// Package watchdog aborts onions that do not come back in time.
package watchdog

import (
	"log/slog"
	"time"

	"github.com/HannahMarsh/onion-routing-wsn/internal/sim"
	"github.com/HannahMarsh/onion-routing-wsn/internal/validator"
)

// Abort describes an onion given up on by a watchdog.
type Abort struct {
	At       time.Duration
	OnionID  uint32
	HopCount int
	ArmedAt  time.Duration
	ArmedBy  string
}

// AbortHandler is told about every abort.
type AbortHandler interface {
	OnAbort(Abort)
}

// AbortHandlerFunc adapts a function to AbortHandler.
type AbortHandlerFunc func(Abort)

func (f AbortHandlerFunc) OnAbort(a Abort) {
	f(a)
}

// Watchdog arms one check per onion send. Checks are never cancelled; a check for
// an onion that has since completed finds its hop count reached and does nothing.
type Watchdog struct {
	timer     sim.Timer
	validator validator.OnionValidator
	timeout   time.Duration
	handlers  []AbortHandler
	armed     int
	aborted   int
}

func New(timer sim.Timer, v validator.OnionValidator, timeout time.Duration, handlers ...AbortHandler) *Watchdog {
	return &Watchdog{timer: timer, validator: v, timeout: timeout, handlers: handlers}
}

// AddHandler registers another abort handler.
func (w *Watchdog) AddHandler(h AbortHandler) {
	w.handlers = append(w.handlers, h)
}

// Arm registers a send with the validator and schedules its check one timeout later.
func (w *Watchdog) Arm(sender string) {
	count := w.validator.ExpectedHopCountForNewSend()
	onionID := w.validator.ExpectedOnionID()
	armedAt := w.timer.Now()
	w.armed++
	w.timer.ScheduleAfter(w.timeout, func() {
		w.check(Abort{OnionID: onionID, HopCount: count, ArmedAt: armedAt, ArmedBy: sender})
	})
}

func (w *Watchdog) check(a Abort) {
	if w.validator.HasReceivedAtLeast(a.HopCount) {
		return
	}
	a.At = w.timer.Now()
	w.aborted++
	slog.Warn("onion timed out", "onion_id", a.OnionID, "hop_count", a.HopCount, "armed_by", a.ArmedBy, "armed_at", a.ArmedAt)
	for _, h := range w.handlers {
		h.OnAbort(a)
	}
}

// Stats returns how many checks were armed and how many of them aborted.
func (w *Watchdog) Stats() (armed, aborted int) {
	return w.armed, w.aborted
}

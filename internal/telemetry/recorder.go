package telemetry

import (
	"sync"

	"github.com/HannahMarsh/onion-routing-wsn/internal/domain/models"
	"github.com/HannahMarsh/onion-routing-wsn/pkg/cm"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// NodeCounters are the running totals kept for one node.
type NodeCounters struct {
	Sent          int `json:"sent"`
	Received      int `json:"received"`
	BytesSent     int `json:"bytes_sent"`
	BytesReceived int `json:"bytes_received"`
	Aborts        int `json:"aborts"`
}

// Recorder keeps every event in memory. Events are appended by the simulation while
// HTTP handlers read the counters, so all access is synchronized.
type Recorder struct {
	mu          sync.Mutex
	nodes       map[string]models.Node
	handshakes  []models.HandshakeEvent
	transfers   []models.TransferEvent
	aborts      []models.AbortEvent
	completions []models.CompletionEvent

	counters cm.ConcurrentMap[string, NodeCounters]
}

func NewRecorder() *Recorder {
	return &Recorder{nodes: make(map[string]models.Node)}
}

func (r *Recorder) OnNodeDetails(node models.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[node.Address] = node
}

func (r *Recorder) OnHandshake(event models.HandshakeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handshakes = append(r.handshakes, event)
}

func (r *Recorder) OnSend(event models.TransferEvent) {
	r.mu.Lock()
	r.transfers = append(r.transfers, event)
	r.mu.Unlock()
	r.counters.Update(event.Node, func(c NodeCounters) NodeCounters {
		c.Sent++
		c.BytesSent += event.PacketSize
		return c
	})
}

func (r *Recorder) OnReceive(event models.TransferEvent) {
	r.mu.Lock()
	r.transfers = append(r.transfers, event)
	r.mu.Unlock()
	r.counters.Update(event.Node, func(c NodeCounters) NodeCounters {
		c.Received++
		c.BytesReceived += event.PacketSize
		return c
	})
}

func (r *Recorder) OnAbort(event models.AbortEvent) {
	r.mu.Lock()
	r.aborts = append(r.aborts, event)
	r.mu.Unlock()
	r.counters.Update(event.ArmedBy, func(c NodeCounters) NodeCounters {
		c.Aborts++
		return c
	})
}

func (r *Recorder) OnComplete(event models.CompletionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completions = append(r.completions, event)
}

// Nodes returns the recorded nodes ordered by address.
func (r *Recorder) Nodes() []models.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := maps.Keys(r.nodes)
	slices.SortFunc(keys, func(a, b string) bool { return addressLess(a, b) })
	nodes := make([]models.Node, len(keys))
	for i, k := range keys {
		nodes[i] = r.nodes[k]
	}
	return nodes
}

func (r *Recorder) Handshakes() []models.HandshakeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.handshakes)
}

func (r *Recorder) Transfers() []models.TransferEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.transfers)
}

func (r *Recorder) Aborts() []models.AbortEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.aborts)
}

func (r *Recorder) Completions() []models.CompletionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.completions)
}

// Counters returns a snapshot of the per-node totals.
func (r *Recorder) Counters() map[string]NodeCounters {
	snapshot := make(map[string]NodeCounters)
	r.counters.Range(func(node string, c NodeCounters) bool {
		snapshot[node] = c
		return true
	})
	return snapshot
}

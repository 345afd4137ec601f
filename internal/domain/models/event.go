package models

import "time"

// Directions of a TransferEvent.
const (
	Sent     = "sent"
	Received = "received"
)

// HandshakeEvent is recorded when the sink learns a node's public key.
type HandshakeEvent struct {
	At      time.Duration `json:"at"`
	From    string        `json:"from"`
	KeySize int           `json:"key_size"`
}

// TransferEvent is one onion leaving or reaching a node.
type TransferEvent struct {
	At         time.Duration `json:"at"`
	Direction  string        `json:"direction"`
	OnionID    uint32        `json:"onion_id"`
	Node       string        `json:"node"`
	Peer       string        `json:"peer"`
	PacketSize int           `json:"packet_size"`
	HeadSize   int           `json:"head_size"`
	BodySize   int           `json:"body_size"`
}

// AbortEvent is recorded when an onion does not come back in time.
type AbortEvent struct {
	At       time.Duration `json:"at"`
	OnionID  uint32        `json:"onion_id"`
	HopCount int           `json:"hop_count"`
	ArmedBy  string        `json:"armed_by"`
}

// CompletionEvent is recorded when the sink gets an onion back.
type CompletionEvent struct {
	At                time.Duration `json:"at"`
	OnionID           uint32        `json:"onion_id"`
	PathLength        int           `json:"path_length"`
	Elapsed           time.Duration `json:"elapsed"`
	Aggregate         *int32        `json:"aggregate,omitempty"`
	ExpectedAggregate *int32        `json:"expected_aggregate,omitempty"`
}

// AggregateMatches reports whether the aggregate that came back is the one expected.
func (c CompletionEvent) AggregateMatches() bool {
	if c.Aggregate == nil || c.ExpectedAggregate == nil {
		return c.Aggregate == nil && c.ExpectedAggregate == nil
	}
	return *c.Aggregate == *c.ExpectedAggregate
}

// Package segment carries logical messages of any length over a stream transport
// whose writes are cut into fixed-size segments.
package segment

import (
	"log/slog"

	"github.com/HannahMarsh/onion-routing-wsn/internal/network"
	"github.com/pkg/errors"
)

// ErrSegmentOverrun is returned when a tagged chunk holds more bytes than its tag has left.
var ErrSegmentOverrun = errors.New("segment: chunk exceeds tagged length")

// Send writes message to conn. Messages that fit in one segment go out untagged;
// longer ones carry their total length so the receiver knows when to stop.
func Send(conn network.Conn, message []byte, mss int) error {
	var tag *network.SegmentTag
	if len(message) > mss {
		tag = &network.SegmentTag{TotalLength: uint32(len(message))}
	}
	if err := conn.Send(message, tag); err != nil {
		return errors.Wrapf(err, "segment.Send(): %d bytes to %s", len(message), conn.RemoteEndpoint())
	}
	return nil
}

// Reassembler rebuilds tagged messages from the chunks read off a node's connections.
// It holds a single buffer: when a chunk from a different sender arrives while a
// message is incomplete, the partial message is discarded.
type Reassembler struct {
	buffer    []byte
	remaining uint32
	sender    network.Address
	active    bool
}

func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// InProgress reports whether a partial message is buffered.
func (r *Reassembler) InProgress() bool {
	return r.active
}

// Receive reads the next chunk from conn. It returns complete=false when no chunk is
// available or more chunks are needed. The connection is closed once it has yielded
// a whole message.
func (r *Reassembler) Receive(conn network.Conn) (msg []byte, from network.Endpoint, complete bool, err error) {
	chunk, from, ok := conn.Recv()
	if !ok {
		return nil, from, false, nil
	}

	if chunk.Tag == nil {
		_ = conn.Close()
		return chunk.Data, from, true, nil
	}

	if !r.active || r.sender != from.Addr {
		if r.active {
			slog.Debug("discarding partial message", "sender", r.sender, "new_sender", from.Addr, "missing", r.remaining)
		}
		r.buffer = make([]byte, 0, chunk.Tag.TotalLength)
		r.remaining = chunk.Tag.TotalLength
		r.sender = from.Addr
		r.active = true
	}

	if uint32(len(chunk.Data)) > r.remaining {
		r.reset()
		_ = conn.Close()
		return nil, from, false, errors.Wrapf(ErrSegmentOverrun, "%d bytes from %s", len(chunk.Data), from)
	}

	r.buffer = append(r.buffer, chunk.Data...)
	r.remaining -= uint32(len(chunk.Data))
	if r.remaining > 0 {
		return nil, from, false, nil
	}

	msg = r.buffer
	r.reset()
	_ = conn.Close()
	return msg, from, true, nil
}

func (r *Reassembler) reset() {
	r.buffer = nil
	r.remaining = 0
	r.sender = 0
	r.active = false
}

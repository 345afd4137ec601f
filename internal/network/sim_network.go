package network

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/HannahMarsh/onion-routing-wsn/internal/sim"
	"github.com/pkg/errors"
)

const firstEphemeralPort = 49152

// SimConfig describes the links of a simulated network.
type SimConfig struct {
	MSS             int           // maximum segment size in bytes
	Latency         time.Duration // propagation delay of every segment
	BytesPerSecond  int           // serialization rate, zero for instant transmission
	DropProbability float64       // chance that a single segment is lost, which loses its whole write
	Seed            int64
}

// SimStats counts segments handled by a SimNetwork.
type SimStats struct {
	Connections int
	Segments    int
	Dropped     int
}

// SimNetwork is a stream transport whose deliveries are events on a sim.Timer.
// Writes are cut into MSS-sized segments that arrive in order on each connection.
type SimNetwork struct {
	timer     sim.Timer
	cfg       SimConfig
	rng       *rand.Rand
	listeners map[Endpoint]*simListener
	radioOff  map[Address]bool
	nextPort  map[Address]uint16
	stats     SimStats
}

func NewSimNetwork(timer sim.Timer, cfg SimConfig) (*SimNetwork, error) {
	if cfg.MSS <= 0 {
		return nil, errors.Errorf("network.NewSimNetwork(): invalid MSS %d", cfg.MSS)
	}
	if cfg.DropProbability < 0 || cfg.DropProbability >= 1 {
		return nil, errors.Errorf("network.NewSimNetwork(): drop probability %v outside [0,1)", cfg.DropProbability)
	}
	return &SimNetwork{
		timer:     timer,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		listeners: make(map[Endpoint]*simListener),
		radioOff:  make(map[Address]bool),
		nextPort:  make(map[Address]uint16),
	}, nil
}

func (n *SimNetwork) MSS() int {
	return n.cfg.MSS
}

func (n *SimNetwork) Stats() SimStats {
	return n.stats
}

func (n *SimNetwork) SetRadio(addr Address, on bool) {
	if on {
		delete(n.radioOff, addr)
	} else {
		n.radioOff[addr] = true
	}
}

func (n *SimNetwork) RadioOn(addr Address) bool {
	return !n.radioOff[addr]
}

func (n *SimNetwork) Listen(local Endpoint, accept func(Conn)) (Listener, error) {
	if _, present := n.listeners[local]; present {
		return nil, errors.Errorf("network.Listen(): %s already in use", local)
	}
	l := &simListener{net: n, local: local, accept: accept}
	n.listeners[local] = l
	return l, nil
}

// Dial opens a connection from the given address. The remote side is accepted one
// latency later; if nothing listens on remote by then, every segment is lost.
func (n *SimNetwork) Dial(from Address, remote Endpoint) (Conn, error) {
	port := n.nextPort[from]
	if port == 0 {
		port = firstEphemeralPort
	}
	n.nextPort[from] = port + 1
	n.stats.Connections++

	client := &simConn{net: n, local: Endpoint{Addr: from, Port: port}, remote: remote}
	server := &simConn{net: n, local: remote, remote: client.local}
	client.peer, server.peer = server, client
	client.txFreeAt = n.timer.Now()
	server.txFreeAt = n.timer.Now()

	n.timer.ScheduleAfter(n.cfg.Latency, func() {
		l, ok := n.listeners[remote]
		if !ok {
			slog.Debug("connection refused", "from", client.local, "to", remote)
			server.closed = true
			return
		}
		if l.accept != nil {
			l.accept(server)
		}
	})
	return client, nil
}

// write is one Send on a connection. It is delivered or lost as a whole, the way a
// stream transport hands over a write or nothing, so a receiver never sees a gap
// inside a message.
type write struct {
	segments int
	started  bool
	lost     bool
}

func (n *SimNetwork) transmit(from *simConn, data []byte, tag *SegmentTag) {
	mss := n.cfg.MSS
	w := &write{}
	var chunks []Chunk
	var deliverAt []time.Duration
	for offset := 0; offset < len(data) || offset == 0; offset += mss {
		end := offset + mss
		if end > len(data) {
			end = len(data)
		}
		segment := make([]byte, end-offset)
		copy(segment, data[offset:end])

		start := from.txFreeAt
		if now := n.timer.Now(); start < now {
			start = now
		}
		from.txFreeAt = start + n.serialization(len(segment))
		n.stats.Segments++
		if n.cfg.DropProbability > 0 && n.rng.Float64() < n.cfg.DropProbability {
			w.lost = true
		}
		chunks = append(chunks, Chunk{Data: segment, Tag: tag})
		deliverAt = append(deliverAt, from.txFreeAt+n.cfg.Latency)
		if end == len(data) {
			break
		}
	}
	w.segments = len(chunks)

	if w.lost || !n.RadioOn(from.local.Addr) {
		n.stats.Dropped += w.segments
		slog.Debug("write lost", "from", from.local, "to", from.remote, "size", len(data), "segments", w.segments)
		return
	}
	to := from.peer
	for i := range chunks {
		chunk := chunks[i]
		n.timer.ScheduleAfter(deliverAt[i]-n.timer.Now(), func() { n.deliver(to, w, chunk) })
	}
}

// deliver hands a segment to the receiving connection. Whether the receiver can take the
// write is decided on its first segment; the rest follow that decision.
func (n *SimNetwork) deliver(to *simConn, w *write, chunk Chunk) {
	if !w.started {
		w.started = true
		w.lost = to.closed || !n.RadioOn(to.local.Addr)
		if w.lost {
			n.stats.Dropped += w.segments
			slog.Debug("write lost at receiver", "to", to.local, "segments", w.segments)
		}
	}
	if w.lost || to.closed {
		return
	}
	to.rx = append(to.rx, chunk)
	if to.callback != nil {
		to.callback(to)
	}
}

func (n *SimNetwork) serialization(size int) time.Duration {
	if n.cfg.BytesPerSecond <= 0 {
		return 0
	}
	return time.Duration(int64(size) * int64(time.Second) / int64(n.cfg.BytesPerSecond))
}

type simListener struct {
	net    *SimNetwork
	local  Endpoint
	accept func(Conn)
}

func (l *simListener) Endpoint() Endpoint {
	return l.local
}

func (l *simListener) Close() error {
	if l.net.listeners[l.local] == l {
		delete(l.net.listeners, l.local)
	}
	return nil
}

type simConn struct {
	net      *SimNetwork
	local    Endpoint
	remote   Endpoint
	peer     *simConn
	rx       []Chunk
	callback func(Conn)
	closed   bool
	txFreeAt time.Duration
}

// Send queues data for transmission. Closing the sender afterwards does not cancel
// segments already in flight.
func (c *simConn) Send(data []byte, tag *SegmentTag) error {
	if c.closed {
		return errors.Errorf("network.Send(): connection %s -> %s is closed", c.local, c.remote)
	}
	c.net.transmit(c, data, tag)
	return nil
}

func (c *simConn) Recv() (Chunk, Endpoint, bool) {
	if len(c.rx) == 0 {
		return Chunk{}, c.remote, false
	}
	chunk := c.rx[0]
	c.rx = c.rx[1:]
	return chunk, c.remote, true
}

// SetRecvCallback installs the data-arrival callback. It is called once per delivered
// chunk, and once per chunk already buffered when it is installed.
func (c *simConn) SetRecvCallback(callback func(Conn)) {
	c.callback = callback
	for c.callback != nil && len(c.rx) > 0 {
		pending := len(c.rx)
		c.callback(c)
		if len(c.rx) >= pending {
			return
		}
	}
}

func (c *simConn) LocalEndpoint() Endpoint {
	return c.local
}

func (c *simConn) RemoteEndpoint() Endpoint {
	return c.remote
}

func (c *simConn) Close() error {
	c.closed = true
	c.rx = nil
	return nil
}

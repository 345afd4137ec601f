package node

import (
	"math/rand"
	"time"

	"github.com/HannahMarsh/onion-routing-wsn/internal/domain/models"
	"github.com/HannahMarsh/onion-routing-wsn/internal/network"
	"github.com/HannahMarsh/onion-routing-wsn/internal/onion"
	"github.com/HannahMarsh/onion-routing-wsn/internal/onion_model"
	"github.com/HannahMarsh/onion-routing-wsn/internal/validator"
	"github.com/HannahMarsh/onion-routing-wsn/internal/watchdog"
	"github.com/HannahMarsh/onion-routing-wsn/pkg/utils"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// OnionIssuer is the validator as seen by the sink, which decides when a new onion starts.
type OnionIssuer interface {
	validator.OnionValidator
	StartOnion() uint32
}

// SinkConfig says which onions the sink issues.
type SinkConfig struct {
	PathLengths      []int         // one onion per entry, in order
	OnionStart       time.Duration // when the first onion leaves
	Aggregate        bool
	InitialAggregate int32
	FixedLength      bool
	PaddedSize       int // onion message plus padding, when FixedLength is set
	Seed             int64
	// SensorValue reports a sensor's measurement, to check aggregates against.
	SensorValue func(network.Address) int32
}

type inFlight struct {
	onionID  uint32
	path     []network.Address
	issuedAt time.Duration
	expected *int32
}

// SinkNode collects public keys, issues onions over random paths of sensors and
// checks them when they come back.
type SinkNode struct {
	wsnNode
	sinkCfg     SinkConfig
	issuer      OnionIssuer
	rng         *rand.Rand
	publicKeys  map[network.Address]*[32]byte
	next        int
	current     *inFlight
	completions []models.CompletionEvent
	aborts      int
	skipped     int
	done        bool
	onDone      func()
}

func NewSinkNode(cfg Config, deps Deps, issuer OnionIssuer, sinkCfg SinkConfig) *SinkNode {
	deps.Validator = issuer
	return &SinkNode{
		wsnNode:    newWsnNode(cfg, deps),
		sinkCfg:    sinkCfg,
		issuer:     issuer,
		rng:        rand.New(rand.NewSource(sinkCfg.Seed)),
		publicKeys: make(map[network.Address]*[32]byte),
	}
}

// OnDone registers a function called once every planned onion has completed or aborted.
func (n *SinkNode) OnDone(f func()) {
	n.onDone = f
}

func (n *SinkNode) Done() bool {
	return n.done
}

func (n *SinkNode) Completions() []models.CompletionEvent {
	return slices.Clone(n.completions)
}

func (n *SinkNode) Aborts() int {
	return n.aborts
}

// Skipped is the number of planned onions that could not be built.
func (n *SinkNode) Skipped() int {
	return n.skipped
}

// KnownSensors returns the sensors that completed a handshake, ordered by address.
func (n *SinkNode) KnownSensors() []network.Address {
	sensors := maps.Keys(n.publicKeys)
	slices.Sort(sensors)
	return sensors
}

func (n *SinkNode) StartApplication() error {
	if err := n.listen(n.Receive); err != nil {
		return err
	}
	n.transition(Listening)
	n.deps.Timer.ScheduleAfter(n.sinkCfg.OnionStart, n.issueNext)
	return nil
}

func (n *SinkNode) StopApplication() {
	n.close()
}

// Receive handles handshakes and returning onions.
func (n *SinkNode) Receive(conn network.Conn) {
	msg, from, complete := n.receiveSegment(conn)
	if !complete {
		return
	}

	packet, err := onion_model.Unmarshal(msg)
	if err != nil {
		n.failures++
		n.log.Error("Failed to decode packet", "from", from, "err", err)
		return
	}
	if packet.IsHandshake() {
		n.handleHandshake(from.Addr, packet.Handshake)
		return
	}
	n.handleOnion(from.Addr, packet, len(msg))
}

func (n *SinkNode) handleHandshake(from network.Address, hs *onion_model.Handshake) {
	pub, err := onion.DecodePublicKey(hs.PublicKey)
	if err != nil {
		n.failures++
		n.log.Error("Rejected handshake", "from", from, "err", err)
		return
	}
	n.publicKeys[from] = pub
	n.deps.Observer.OnHandshake(models.HandshakeEvent{
		At:      n.deps.Timer.Now(),
		From:    from.String(),
		KeySize: len(hs.PublicKey),
	})
	n.log.Debug("Handshake received", "from", from)
}

func (n *SinkNode) handleOnion(from network.Address, packet *onion_model.Packet, size int) {
	if n.current == nil || packet.Head.OnionID != n.issuer.ExpectedOnionID() || packet.Head.OnionID != n.current.onionID {
		n.ghosts++
		n.log.Debug("Ghost onion dropped", "onion_id", packet.Head.OnionID, "expected", n.issuer.ExpectedOnionID())
		return
	}
	n.issuer.NotifyFullyReceived()

	now := n.deps.Timer.Now()
	n.deps.Observer.OnReceive(models.TransferEvent{
		At:         now,
		Direction:  models.Received,
		OnionID:    packet.Head.OnionID,
		Node:       n.cfg.Address.String(),
		Peer:       from.String(),
		PacketSize: size,
		HeadSize:   packet.Head.Size(),
		BodySize:   packet.Body.Size(),
	})

	completion := models.CompletionEvent{
		At:                now,
		OnionID:           n.current.onionID,
		PathLength:        len(n.current.path),
		Elapsed:           now - n.current.issuedAt,
		ExpectedAggregate: n.current.expected,
	}
	if packet.Body.HasAggregate() {
		v := *packet.Body.AggregatedValue
		completion.Aggregate = &v
	}
	if !completion.AggregateMatches() {
		n.log.Warn("Aggregate mismatch", "onion_id", completion.OnionID, "got", completion.Aggregate, "expected", completion.ExpectedAggregate)
	}
	n.completions = append(n.completions, completion)
	n.deps.Observer.OnComplete(completion)
	n.log.Info("Onion completed", "onion_id", completion.OnionID, "path_length", completion.PathLength, "elapsed", completion.Elapsed)

	n.current = nil
	n.issueNext()
}

// OnAbort moves on to the next onion when the one in flight is given up on.
func (n *SinkNode) OnAbort(a watchdog.Abort) {
	if n.current == nil || a.OnionID != n.current.onionID {
		return
	}
	n.aborts++
	n.log.Info("Onion aborted", "onion_id", a.OnionID, "armed_by", a.ArmedBy)
	n.current = nil
	n.issueNext()
}

func (n *SinkNode) issueNext() {
	for n.next < len(n.sinkCfg.PathLengths) {
		pathLength := n.sinkCfg.PathLengths[n.next]
		n.next++
		if err := n.issue(pathLength); err != nil {
			n.skipped++
			n.log.Error("Failed to issue onion", "path_length", pathLength, "err", err)
			continue
		}
		return
	}
	if !n.done {
		n.done = true
		n.log.Info("All onions issued", "completed", len(n.completions), "aborted", n.aborts, "skipped", n.skipped)
		if n.onDone != nil {
			n.onDone()
		}
	}
}

func (n *SinkNode) issue(pathLength int) error {
	sensors := n.KnownSensors()
	if pathLength <= 0 || len(sensors) < pathLength {
		return errors.Errorf("node.issue(): path of %d hops over %d known sensors", pathLength, len(sensors))
	}
	path := utils.RandomSubset(n.rng, sensors, pathLength)
	hops := utils.Map(path, func(addr network.Address) onion.Hop {
		return onion.Hop{Address: addr, PublicKey: n.publicKeys[addr]}
	})
	ciphertext, err := onion.FormOnion(hops, n.cfg.Address)
	if err != nil {
		return errors.Wrap(err, "node.issue()")
	}

	onionID := n.issuer.StartOnion()
	head := &onion_model.Head{OnionID: onionID, OnionMessage: ciphertext}
	if n.sinkCfg.FixedLength {
		padding := n.sinkCfg.PaddedSize - len(ciphertext)
		if padding < 0 {
			padding = 0
		}
		head.Padding = make([]byte, padding)
	}
	body := &onion_model.Body{}
	var expected *int32
	if n.sinkCfg.Aggregate {
		body.AggregatedValue = onion_model.Int32(n.sinkCfg.InitialAggregate)
		sum := n.sinkCfg.InitialAggregate
		for _, addr := range path {
			if n.sinkCfg.SensorValue != nil {
				sum += n.sinkCfg.SensorValue(addr)
			}
		}
		expected = &sum
	}
	packet := onion_model.NewOnion(head, body)
	msg := packet.Marshal()

	n.current = &inFlight{onionID: onionID, path: path, issuedAt: n.deps.Timer.Now(), expected: expected}
	if err = n.sendSegment(path[0], msg, true); err != nil {
		n.current = nil
		return err
	}
	n.deps.Observer.OnSend(models.TransferEvent{
		At:         n.deps.Timer.Now(),
		Direction:  models.Sent,
		OnionID:    onionID,
		Node:       n.cfg.Address.String(),
		Peer:       path[0].String(),
		PacketSize: len(msg),
		HeadSize:   head.Size(),
		BodySize:   body.Size(),
	})
	n.log.Info("Onion issued", "onion_id", onionID, "path", utils.Map(path, network.Address.String), "size", len(msg))
	return nil
}

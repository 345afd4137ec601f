package node

import (
	"github.com/HannahMarsh/onion-routing-wsn/internal/domain/models"
	"github.com/HannahMarsh/onion-routing-wsn/internal/network"
	"github.com/HannahMarsh/onion-routing-wsn/internal/onion"
	"github.com/HannahMarsh/onion-routing-wsn/internal/onion_model"
	"github.com/pkg/errors"
)

// SensorNode peels one layer off every onion it receives, adds its measurement to
// the aggregate when the onion carries one, and forwards it to the next hop.
type SensorNode struct {
	wsnNode
	keys        onion.KeyManager
	sensorValue int32
}

// NewSensorNode creates a sensor. A nil keys uses a fresh sealed-box Manager.
func NewSensorNode(cfg Config, deps Deps, keys onion.KeyManager, sensorValue int32) *SensorNode {
	if keys == nil {
		keys = onion.NewManager(nil)
	}
	return &SensorNode{
		wsnNode:     newWsnNode(cfg, deps),
		keys:        keys,
		sensorValue: sensorValue,
	}
}

func (n *SensorNode) SensorValue() int32 {
	return n.sensorValue
}

// StartApplication generates the key pair, starts listening and schedules the
// handshake with the sink.
func (n *SensorNode) StartApplication() error {
	if err := n.keys.GenerateKeyPair(); err != nil {
		return errors.Wrapf(err, "node.StartApplication(): %s", n.cfg.Address)
	}
	n.transition(KeysGenerated)

	if err := n.listen(n.Receive); err != nil {
		return err
	}

	delay := n.startDelay()
	n.deps.Timer.ScheduleAfter(delay, n.handshake)
	n.log.Debug("Sensor started", "handshake_in", delay)
	return nil
}

func (n *SensorNode) StopApplication() {
	n.close()
}

func (n *SensorNode) handshake() {
	msg := onion_model.NewHandshake(n.keys.PublicKeyToString()).Marshal()
	if err := n.sendSegment(n.cfg.Sink, msg, false); err != nil {
		n.log.Error("Failed to send handshake", "err", err)
		return
	}
	n.log.Debug("Handshake sent", "sink", n.cfg.Sink, "size", len(msg))
	// a node disabled before its handshake went out stays disabled
	if n.state == KeysGenerated {
		n.transition(HandshakeSent)
		n.transition(Listening)
	}
}

// Receive handles data arriving on conn. Once a whole onion is in, it is checked
// against the onion in flight, peeled and forwarded.
func (n *SensorNode) Receive(conn network.Conn) {
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
	if packet.Head == nil {
		n.log.Warn("Dropping packet without onion head", "from", from)
		return
	}
	if packet.Head.OnionID != n.deps.Validator.ExpectedOnionID() {
		n.ghosts++
		n.log.Debug("Ghost onion dropped", "onion_id", packet.Head.OnionID, "expected", n.deps.Validator.ExpectedOnionID())
		return
	}

	received := models.TransferEvent{
		At:         n.deps.Timer.Now(),
		Direction:  models.Received,
		OnionID:    packet.Head.OnionID,
		Node:       n.cfg.Address.String(),
		Peer:       from.Addr.String(),
		PacketSize: len(msg),
		HeadSize:   packet.Head.Size(),
		BodySize:   packet.Body.Size(),
	}

	nextHop, err := n.processHead(packet.Head)
	if err != nil {
		n.failures++
		n.log.Error("Failed to peel onion", "onion_id", packet.Head.OnionID, "err", err)
		return
	}
	n.deps.Validator.NotifyFullyReceived()
	n.deps.Observer.OnReceive(received)

	n.processBody(packet.Body)

	out := packet.Marshal()
	if err = n.sendSegment(nextHop, out, true); err != nil {
		n.log.Error("Failed to forward onion", "next_hop", nextHop, "err", err)
		return
	}
	n.deps.Observer.OnSend(models.TransferEvent{
		At:         n.deps.Timer.Now(),
		Direction:  models.Sent,
		OnionID:    packet.Head.OnionID,
		Node:       n.cfg.Address.String(),
		Peer:       nextHop.String(),
		PacketSize: len(out),
		HeadSize:   packet.Head.Size(),
		BodySize:   packet.Body.Size(),
	})
}

// processHead peels one layer and re-mounts the head around what is left. Padding,
// when present, grows by what the layer took so the onion keeps its size.
func (n *SensorNode) processHead(head *onion_model.Head) (network.Address, error) {
	outer := head.OuterLength()
	layer, err := n.keys.PeelOneLayer(head.OnionMessage)
	if err != nil {
		return 0, err
	}
	nextHop := layer.NextHopAddress()

	head.OnionMessage = layer.InnerLayer
	if head.HasPadding() {
		padding := outer - len(layer.InnerLayer)
		if padding < 0 {
			padding = 0
		}
		head.Padding = make([]byte, padding)
	}
	return nextHop, nil
}

func (n *SensorNode) processBody(body *onion_model.Body) {
	body.Aggregate(n.sensorValue)
}

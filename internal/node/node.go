// Package node implements the applications running on every node of the sensor
// network: the sink that issues onions and the sensors that relay them.
package node

import (
	"log/slog"
	"time"

	"github.com/HannahMarsh/onion-routing-wsn/internal/network"
	"github.com/HannahMarsh/onion-routing-wsn/internal/segment"
	"github.com/HannahMarsh/onion-routing-wsn/internal/sim"
	"github.com/HannahMarsh/onion-routing-wsn/internal/telemetry"
	"github.com/HannahMarsh/onion-routing-wsn/internal/validator"
	"github.com/HannahMarsh/onion-routing-wsn/internal/watchdog"
	"github.com/pkg/errors"
)

// State is where a node is in its lifecycle.
type State int

const (
	Initializing State = iota
	KeysGenerated
	HandshakeSent
	Listening
	Disabled
	Active
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case KeysGenerated:
		return "keys-generated"
	case HandshakeSent:
		return "handshake-sent"
	case Listening:
		return "listening"
	case Disabled:
		return "disabled"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// App is an application installed on a node.
type App interface {
	StartApplication() error
	StopApplication()
	Receive(conn network.Conn)
}

// Config holds the settings shared by sinks and sensors.
type Config struct {
	Address     network.Address
	Sink        network.Address
	Port        uint16
	MSS         int
	NetworkBase network.Address // start delays are counted from this address
	StartDelay  time.Duration   // start delay per address above NetworkBase
}

// Deps are the collaborators a node runs against.
type Deps struct {
	Timer     sim.Timer
	Transport network.Transport
	Radio     network.Radio
	Validator validator.OnionValidator
	Watchdog  *watchdog.Watchdog
	Observer  telemetry.Observer
}

type wsnNode struct {
	cfg         Config
	deps        Deps
	log         *slog.Logger
	state       State
	listener    network.Listener
	reassembler *segment.Reassembler
	ghosts      int
	failures    int
}

func newWsnNode(cfg Config, deps Deps) wsnNode {
	if deps.Observer == nil {
		deps.Observer = telemetry.Nop{}
	}
	return wsnNode{
		cfg:         cfg,
		deps:        deps,
		log:         slog.With("node", cfg.Address.String()),
		state:       Initializing,
		reassembler: segment.NewReassembler(),
	}
}

func (n *wsnNode) Address() network.Address {
	return n.cfg.Address
}

func (n *wsnNode) State() State {
	return n.state
}

// Ghosts is the number of stale onions this node dropped.
func (n *wsnNode) Ghosts() int {
	return n.ghosts
}

// Failures is the number of deliveries this node could not process.
func (n *wsnNode) Failures() int {
	return n.failures
}

// listen binds the node's endpoint and hands every accepted connection to receive.
func (n *wsnNode) listen(receive func(network.Conn)) error {
	local := network.Endpoint{Addr: n.cfg.Address, Port: n.cfg.Port}
	l, err := n.deps.Transport.Listen(local, func(conn network.Conn) {
		conn.SetRecvCallback(receive)
	})
	if err != nil {
		return errors.Wrapf(err, "node.listen(): failed to listen on %s", local)
	}
	n.listener = l
	return nil
}

func (n *wsnNode) close() {
	if n.listener != nil {
		_ = n.listener.Close()
		n.listener = nil
	}
}

// startDelay spreads node start-up by address so handshakes do not collide.
func (n *wsnNode) startDelay() time.Duration {
	if n.cfg.Address < n.cfg.NetworkBase {
		return 0
	}
	return time.Duration(n.cfg.Address-n.cfg.NetworkBase) * n.cfg.StartDelay
}

// sendSegment opens a connection to remote and writes message on it. Onion traffic
// arms a watchdog check first.
func (n *wsnNode) sendSegment(remote network.Address, message []byte, isOnion bool) error {
	conn, err := n.deps.Transport.Dial(n.cfg.Address, network.Endpoint{Addr: remote, Port: n.cfg.Port})
	if err != nil {
		return errors.Wrapf(err, "node.sendSegment(): failed to connect to %s", remote)
	}
	defer conn.Close()

	if isOnion && n.deps.Watchdog != nil {
		n.deps.Watchdog.Arm(n.cfg.Address.String())
	}
	return segment.Send(conn, message, n.cfg.MSS)
}

// receiveSegment returns the next whole message read from conn, if there is one.
func (n *wsnNode) receiveSegment(conn network.Conn) ([]byte, network.Endpoint, bool) {
	msg, from, complete, err := n.reassembler.Receive(conn)
	if err != nil {
		n.failures++
		n.log.Error("Failed to reassemble message", "from", from, "err", err)
		return nil, from, false
	}
	return msg, from, complete
}

func (n *wsnNode) transition(to State) {
	n.log.Debug("State changed", "from", n.state.String(), "to", to.String())
	n.state = to
}

// Disable switches the node's radio off.
func (n *wsnNode) Disable() {
	n.deps.Radio.SetRadio(n.cfg.Address, false)
	n.transition(Disabled)
}

// Activate switches the node's radio back on.
func (n *wsnNode) Activate() {
	n.deps.Radio.SetRadio(n.cfg.Address, true)
	n.transition(Active)
}

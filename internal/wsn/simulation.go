// Package wsn builds a wireless sensor network on the simulated transport and drives
// one run of the onion routing experiment over it.
package wsn

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/HannahMarsh/onion-routing-wsn/config"
	"github.com/HannahMarsh/onion-routing-wsn/internal/domain/models"
	"github.com/HannahMarsh/onion-routing-wsn/internal/network"
	"github.com/HannahMarsh/onion-routing-wsn/internal/node"
	"github.com/HannahMarsh/onion-routing-wsn/internal/onion"
	"github.com/HannahMarsh/onion-routing-wsn/internal/sim"
	"github.com/HannahMarsh/onion-routing-wsn/internal/telemetry"
	"github.com/HannahMarsh/onion-routing-wsn/internal/validator"
	"github.com/HannahMarsh/onion-routing-wsn/internal/watchdog"
	"github.com/HannahMarsh/onion-routing-wsn/pkg/utils"
	"github.com/pkg/errors"
)

// Summary is the outcome of a run.
type Summary struct {
	Onions              int
	Completed           int
	Aborted             int
	Skipped             int
	Ghosts              int
	Failures            int
	AggregateMismatches int
	HopsSent            int
	HopsReceived        int
	DisabledSensors     int
	SimulatedTime       time.Duration
	Network             network.SimStats
}

type Simulation struct {
	cfg       *config.Config
	sched     *sim.Scheduler
	net       *network.SimNetwork
	watchdog  *watchdog.Watchdog
	validator *validator.Validator
	nodes     []models.Node
	sink      *node.SinkNode
	sensors   []*node.SensorNode
}

// NewNetwork builds the simulated links described by cfg.
func NewNetwork(cfg *config.Config, sched *sim.Scheduler) (*network.SimNetwork, error) {
	return network.NewSimNetwork(sched, network.SimConfig{
		MSS:             cfg.MSS,
		Latency:         cfg.Latency(),
		BytesPerSecond:  cfg.Network.BytesPerSecond,
		DropProbability: cfg.Network.DropProbability,
		Seed:            cfg.Seed,
	})
}

// NewSimulation places the nodes, reports them to obs and installs a sink and one
// sensor per remaining node on net. Aborts reach obs before the sink moves on.
func NewSimulation(cfg *config.Config, sched *sim.Scheduler, net *network.SimNetwork, v *validator.Validator, obs telemetry.Observer) (*Simulation, error) {
	nodes, err := Topology(cfg, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return nil, err
	}
	plan := cfg.OnionPlan()
	if len(plan) == 0 {
		return nil, errors.New("wsn.NewSimulation(): empty onion plan")
	}

	s := &Simulation{
		cfg:       cfg,
		sched:     sched,
		net:       net,
		watchdog:  watchdog.New(sched, v, cfg.OnionTimeout(), telemetry.WatchdogHandler(obs)),
		validator: v,
		nodes:     nodes,
	}

	deps := node.Deps{
		Timer:     sched,
		Transport: net,
		Radio:     net,
		Validator: v,
		Watchdog:  s.watchdog,
		Observer:  obs,
	}
	sinkAddress := NetworkBase + 1
	nodeConfig := func(addr network.Address) node.Config {
		return node.Config{
			Address:     addr,
			Sink:        sinkAddress,
			Port:        uint16(cfg.Port),
			MSS:         cfg.MSS,
			NetworkBase: NetworkBase,
			StartDelay:  cfg.StartDelay(),
		}
	}

	sensors := make(map[network.Address]*node.SensorNode, len(nodes))
	for _, n := range nodes {
		obs.OnNodeDetails(n)
		addr := network.MustParseAddress(n.Address)
		if n.Role == models.RoleSensor {
			sensors[addr] = node.NewSensorNode(nodeConfig(addr), deps, nil, n.SensorValue)
			s.sensors = append(s.sensors, sensors[addr])
		}
	}
	if err = scheduleRadio(sched, cfg.RadioSchedule, sensors); err != nil {
		return nil, err
	}

	paddedSize := cfg.PaddedOnionSize
	if cfg.FixedLengthOnion && paddedSize == 0 {
		paddedSize = onion.Size(utils.Max(plan))
	}
	s.sink = node.NewSinkNode(nodeConfig(sinkAddress), deps, v, node.SinkConfig{
		PathLengths:      plan,
		OnionStart:       cfg.OnionStart(),
		Aggregate:        cfg.Aggregate,
		InitialAggregate: cfg.InitialAggregate,
		FixedLength:      cfg.FixedLengthOnion,
		PaddedSize:       paddedSize,
		Seed:             cfg.Seed,
		SensorValue: func(addr network.Address) int32 {
			if sensor, ok := sensors[addr]; ok {
				return sensor.SensorValue()
			}
			return 0
		},
	})
	s.watchdog.AddHandler(s.sink)
	s.sink.OnDone(sched.Stop)
	return s, nil
}

// scheduleRadio switches sensor radios off and on at the configured times.
func scheduleRadio(sched *sim.Scheduler, events []config.RadioEvent, sensors map[network.Address]*node.SensorNode) error {
	for _, e := range events {
		addr, err := network.ParseAddress(e.Node)
		if err != nil {
			return errors.Wrap(err, "wsn.scheduleRadio()")
		}
		sensor, ok := sensors[addr]
		if !ok {
			return errors.Errorf("wsn.scheduleRadio(): %s is not a sensor", addr)
		}
		switch e.Radio {
		case config.RadioOff:
			sched.ScheduleAfter(e.At(), sensor.Disable)
		case config.RadioOn:
			sched.ScheduleAfter(e.At(), sensor.Activate)
		default:
			return errors.Errorf("wsn.scheduleRadio(): unknown radio switch %q for %s", e.Radio, addr)
		}
	}
	return nil
}

func (s *Simulation) Nodes() []models.Node {
	return s.nodes
}

func (s *Simulation) Sink() *node.SinkNode {
	return s.sink
}

func (s *Simulation) Sensors() []*node.SensorNode {
	return s.sensors
}

func (s *Simulation) apps() []node.App {
	apps := []node.App{s.sink}
	for _, sensor := range s.sensors {
		apps = append(apps, sensor)
	}
	return apps
}

// Run starts every application and drives the scheduler until the sink has gone
// through its plan, simulation_time_s has passed or ctx is cancelled.
func (s *Simulation) Run(ctx context.Context) (Summary, error) {
	apps := s.apps()
	for _, app := range apps {
		if err := app.StartApplication(); err != nil {
			return Summary{}, errors.Wrap(err, "wsn.Run(): failed to start application")
		}
	}
	defer func() {
		for _, app := range apps {
			app.StopApplication()
		}
	}()

	slog.Info("Simulation started", "name", s.cfg.Name(), "nodes", len(s.nodes), "onions", len(s.cfg.OnionPlan()))
	err := s.sched.Run(ctx, s.cfg.SimulationTime())
	summary := s.summary()
	if err != nil {
		return summary, errors.Wrap(err, "wsn.Run()")
	}
	if !s.sink.Done() {
		slog.Warn("Simulation ended before every onion was issued", "simulated_time", summary.SimulatedTime, "pending_events", s.sched.Pending())
	}
	armed, aborted := s.watchdog.Stats()
	slog.Info("Simulation finished",
		"completed", summary.Completed,
		"aborted", summary.Aborted,
		"skipped", summary.Skipped,
		"ghosts", summary.Ghosts,
		"aggregate_mismatches", summary.AggregateMismatches,
		"hops_sent", summary.HopsSent,
		"hops_received", summary.HopsReceived,
		"watchdogs_armed", armed,
		"watchdogs_fired", aborted,
		"simulated_time", summary.SimulatedTime)
	return summary, nil
}

func (s *Simulation) summary() Summary {
	completions := s.sink.Completions()
	summary := Summary{
		Onions:        len(s.cfg.OnionPlan()),
		Completed:     len(completions),
		Aborted:       s.sink.Aborts(),
		Skipped:       s.sink.Skipped(),
		Ghosts:        s.sink.Ghosts(),
		Failures:      s.sink.Failures(),
		SimulatedTime: s.sched.Now(),
		Network:       s.net.Stats(),
	}
	summary.AggregateMismatches = utils.CountFunc(completions, func(c models.CompletionEvent) bool {
		return !c.AggregateMatches()
	})
	summary.HopsSent, summary.HopsReceived = s.validator.Counters()
	for _, sensor := range s.sensors {
		summary.Ghosts += sensor.Ghosts()
		summary.Failures += sensor.Failures()
		if sensor.State() == node.Disabled {
			summary.DisabledSensors++
		}
	}
	return summary
}

package wsn

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/HannahMarsh/onion-routing-wsn/config"
	"github.com/HannahMarsh/onion-routing-wsn/internal/domain/models"
	"github.com/HannahMarsh/onion-routing-wsn/internal/network"
	"github.com/HannahMarsh/onion-routing-wsn/internal/sim"
	"github.com/HannahMarsh/onion-routing-wsn/internal/telemetry"
	"github.com/HannahMarsh/onion-routing-wsn/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(numNodes int, paths string) *config.Config {
	cfg := &config.Config{
		Seed:          3,
		NumNodes:      numNodes,
		Topology:      config.TopologyGrid,
		CellSide:      50,
		Radius:        40,
		MSS:           536,
		Port:          4242,
		StartDelayMs:  200,
		OnionTimeoutS: 100,
		PathLengths:   paths,
		OnionRepeat:   1,
	}
	cfg.Network.LatencyMs = 2
	cfg.Network.BytesPerSecond = 250000
	return cfg
}

func newTestSimulation(t *testing.T, cfg *config.Config) (*Simulation, *telemetry.Recorder) {
	t.Helper()
	require.NoError(t, cfg.Validate())
	sched := sim.NewScheduler()
	net, err := NewNetwork(cfg, sched)
	require.NoError(t, err)
	rec := telemetry.NewRecorder()
	s, err := NewSimulation(cfg, sched, net, validator.New(), rec)
	require.NoError(t, err)
	return s, rec
}

func TestGridTopologyPutsSinkInTheCentre(t *testing.T) {
	cfg := testConfig(9, "3")
	nodes, err := Topology(cfg, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Len(t, nodes, 9)

	assert.Equal(t, models.RoleSink, nodes[0].Role)
	assert.Equal(t, "10.1.0.1", nodes[0].Address)
	assert.Equal(t, 50.0, nodes[0].X)
	assert.Equal(t, 50.0, nodes[0].Y)

	seen := make(map[[2]float64]bool)
	for i, n := range nodes {
		pos := [2]float64{n.X, n.Y}
		assert.False(t, seen[pos], "two nodes at %v", pos)
		seen[pos] = true
		if i > 0 {
			assert.Equal(t, models.RoleSensor, n.Role)
			assert.GreaterOrEqual(t, n.SensorValue, int32(0))
			assert.Less(t, n.SensorValue, int32(maxSensorValue))
		}
	}
	assert.Equal(t, "10.1.0.9", nodes[8].Address)
}

func TestDiscTopologyStaysInsideTheDisc(t *testing.T) {
	cfg := testConfig(20, "3")
	cfg.Topology = config.TopologyDisc
	nodes, err := Topology(cfg, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	require.Len(t, nodes, 20)

	discRadius := cfg.Radius * math.Sqrt(20)
	centre := nodes[0]
	assert.Equal(t, discRadius, centre.X)
	for _, n := range nodes[1:] {
		assert.LessOrEqual(t, math.Hypot(n.X-centre.X, n.Y-centre.Y), discRadius+1e-9)
	}

	again, err := Topology(cfg, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	assert.Equal(t, nodes, again)
}

func TestRunCompletesEveryOnion(t *testing.T) {
	cfg := testConfig(8, "2,3,7")
	cfg.OnionRepeat = 2
	cfg.Aggregate = true
	cfg.InitialAggregate = 1
	s, rec := newTestSimulation(t, cfg)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Onions)
	assert.Equal(t, 6, summary.Completed)
	assert.Zero(t, summary.Aborted)
	assert.Zero(t, summary.Skipped)
	assert.Zero(t, summary.Ghosts)
	assert.Zero(t, summary.AggregateMismatches)
	assert.True(t, s.Sink().Done())
	assert.Greater(t, summary.SimulatedTime, cfg.OnionStart())

	assert.Len(t, rec.Nodes(), 8)
	assert.Len(t, rec.Handshakes(), 7)
	completions := rec.Completions()
	require.Len(t, completions, 6)
	for i, want := range []int{2, 2, 3, 3, 7, 7} {
		assert.Equal(t, want, completions[i].PathLength)
		require.NotNil(t, completions[i].Aggregate)
	}
	// every hop of every onion, plus the return to the sink
	assert.Len(t, rec.Transfers(), 2*(2*(2+1)+2*(3+1)+2*(7+1)))
}

func TestRunWithFixedLengthOnions(t *testing.T) {
	cfg := testConfig(6, "1,5")
	cfg.FixedLengthOnion = true
	s, rec := newTestSimulation(t, cfg)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Completed)

	sizes := make(map[int]bool)
	for _, tr := range rec.Transfers() {
		if tr.Direction == models.Sent && tr.Node == "10.1.0.1" {
			sizes[tr.PacketSize] = true
		}
	}
	assert.Len(t, sizes, 1, "both onions leave the sink with the same size")
}

func TestSensorWithRadioOffIsNeverOnAPath(t *testing.T) {
	cfg := testConfig(6, "4,5")
	s, _ := newTestSimulation(t, cfg)
	s.Sensors()[2].Disable()

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Len(t, s.Sink().KnownSensors(), 4)
}

func TestRunStopsAtSimulationTime(t *testing.T) {
	cfg := testConfig(5, "3")
	cfg.SimulationTimeS = 1
	s, _ := newTestSimulation(t, cfg)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Second, summary.SimulatedTime)
	assert.Zero(t, summary.Completed)
	assert.False(t, s.Sink().Done())
}

func TestRunHonoursCancellation(t *testing.T) {
	s, _ := newTestSimulation(t, testConfig(5, "3"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRadioScheduleKeepsSensorOffPaths(t *testing.T) {
	cfg := testConfig(6, "4,5")
	cfg.RadioSchedule = []config.RadioEvent{{Node: "10.1.0.4", AtS: 0, Radio: config.RadioOff}}
	s, _ := newTestSimulation(t, cfg)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.DisabledSensors)
	assert.NotContains(t, s.Sink().KnownSensors(), network.MustParseAddress("10.1.0.4"))
	assert.Equal(t, summary.HopsSent, summary.HopsReceived)
}

func TestRadioScheduleSwitchesBackOn(t *testing.T) {
	cfg := testConfig(6, "4,5")
	// the handshake of 10.1.0.4 is due at 800ms
	cfg.RadioSchedule = []config.RadioEvent{
		{Node: "10.1.0.4", AtS: 0, Radio: config.RadioOff},
		{Node: "10.1.0.4", AtS: 0.5, Radio: config.RadioOn},
	}
	s, _ := newTestSimulation(t, cfg)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Completed)
	assert.Zero(t, summary.DisabledSensors)
	assert.Len(t, s.Sink().KnownSensors(), 5)
}

func TestRadioScheduleRejectsUnknownNode(t *testing.T) {
	cfg := testConfig(6, "3")
	cfg.RadioSchedule = []config.RadioEvent{{Node: "10.1.0.1", Radio: config.RadioOff}}
	sched := sim.NewScheduler()
	net, err := NewNetwork(cfg, sched)
	require.NoError(t, err)

	_, err = NewSimulation(cfg, sched, net, validator.New(), telemetry.Nop{})
	assert.Error(t, err)
}

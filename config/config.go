package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/HannahMarsh/onion-routing-wsn/internal/network"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

// Topologies nodes can be placed in.
const (
	TopologyGrid = "grid"
	TopologyDisc = "disc"
)

type Network struct {
	LatencyMs       int     `yaml:"latency_ms" env:"WSN_NETWORK_LATENCY_MS" env-default:"2"`
	BytesPerSecond  int     `yaml:"bytes_per_second" env:"WSN_NETWORK_BYTES_PER_SECOND" env-default:"250000"`
	DropProbability float64 `yaml:"drop_probability" env:"WSN_NETWORK_DROP_PROBABILITY" env-default:"0"`
}

type Output struct {
	Dir            string `yaml:"dir" env:"WSN_OUTPUT_DIR" env-default:"output"`
	PostgresDSN    string `yaml:"postgres_dsn" env:"WSN_POSTGRES_DSN"`
	AMQPURL        string `yaml:"amqp_url" env:"WSN_AMQP_URL"`
	AMQPExchange   string `yaml:"amqp_exchange" env:"WSN_AMQP_EXCHANGE" env-default:"wsn.events"`
	PrometheusPort int    `yaml:"prometheus_port" env:"WSN_PROMETHEUS_PORT" env-default:"0"`
	HoldMetricsS   int    `yaml:"hold_metrics_s" env:"WSN_HOLD_METRICS_S" env-default:"0"`
}

// Radio switch values of a RadioEvent.
const (
	RadioOff = "off"
	RadioOn  = "on"
)

// RadioEvent switches a sensor's radio at a point in simulated time.
type RadioEvent struct {
	Node  string  `yaml:"node"`
	AtS   float64 `yaml:"at_s"`
	Radio string  `yaml:"radio"`
}

func (e RadioEvent) At() time.Duration {
	return time.Duration(e.AtS * float64(time.Second))
}

type Config struct {
	Seed             int64        `yaml:"seed" env:"WSN_SEED" env-default:"1"`
	NumNodes         int          `yaml:"num_nodes" env:"WSN_NUM_NODES" env-default:"16"`
	Topology         string       `yaml:"topology" env:"WSN_TOPOLOGY" env-default:"grid"`
	CellSide         float64      `yaml:"cell_side" env:"WSN_CELL_SIDE" env-default:"50"`
	Radius           float64      `yaml:"radius" env:"WSN_RADIUS" env-default:"40"`
	MSS              int          `yaml:"mss" env:"WSN_MSS" env-default:"536"`
	Port             int          `yaml:"port" env:"WSN_PORT" env-default:"4242"`
	StartDelayMs     int          `yaml:"start_delay_ms" env:"WSN_START_DELAY_MS" env-default:"200"`
	OnionTimeoutS    int          `yaml:"onion_timeout_s" env:"WSN_ONION_TIMEOUT_S" env-default:"100"`
	PathLengths      string       `yaml:"path_lengths" env:"WSN_PATH_LENGTHS" env-default:"3,5"`
	OnionRepeat      int          `yaml:"onion_repeat" env:"WSN_ONION_REPEAT" env-default:"1"`
	OnionStartS      float64      `yaml:"onion_start_s" env:"WSN_ONION_START_S" env-default:"0"`
	Aggregate        bool         `yaml:"aggregate" env:"WSN_AGGREGATE" env-default:"false"`
	InitialAggregate int32        `yaml:"initial_aggregate" env:"WSN_INITIAL_AGGREGATE" env-default:"0"`
	FixedLengthOnion bool         `yaml:"fixed_length_onion" env:"WSN_FIXED_LENGTH_ONION" env-default:"false"`
	PaddedOnionSize  int          `yaml:"padded_onion_size" env:"WSN_PADDED_ONION_SIZE" env-default:"0"`
	SimulationTimeS  int          `yaml:"simulation_time_s" env:"WSN_SIMULATION_TIME_S" env-default:"0"`
	Network          Network      `yaml:"network"`
	Output           Output       `yaml:"output"`
	RadioSchedule    []RadioEvent `yaml:"radio_schedule"`
	LogLevel         string       `yaml:"log_level" env:"WSN_LOG_LEVEL" env-default:"info"`
}

var GlobalConfig *Config
var GlobalCtx context.Context
var GlobalCancel context.CancelFunc

// InitGlobal loads the configuration into GlobalConfig. With an empty path it looks
// for config/config.yml under the working directory, then next to this file, and
// falls back to defaults and environment variables. It returns the path it read.
func InitGlobal(path string) (string, error) {
	GlobalCtx, GlobalCancel = context.WithCancel(context.Background())

	if path == "" {
		path = findConfigFile()
	}
	cfg, err := Load(path)
	if err != nil {
		return path, err
	}
	GlobalConfig = cfg
	return path, nil
}

func findConfigFile() string {
	if dir, err := os.Getwd(); err == nil {
		if p := filepath.Join(dir, "config", "config.yml"); fileExists(p) {
			return p
		}
	}
	if _, currentFile, _, ok := runtime.Caller(0); ok {
		if p := filepath.Join(filepath.Dir(currentFile), "config.yml"); fileExists(p) {
			return p
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load reads the YAML file at path, or only the environment when path is empty,
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, errors.Wrapf(err, "config.Load(): failed to read %s", path)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, errors.Wrap(err, "config.Load(): failed to read environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.NumNodes < 2:
		return errors.Errorf("config: num_nodes must be at least 2, got %d", c.NumNodes)
	case c.NumNodes > 65000:
		return errors.Errorf("config: num_nodes must fit in 10.1.0.0/16, got %d", c.NumNodes)
	case c.Topology != TopologyGrid && c.Topology != TopologyDisc:
		return errors.Errorf("config: unknown topology %q", c.Topology)
	case c.MSS <= 0:
		return errors.Errorf("config: mss must be positive, got %d", c.MSS)
	case c.Port <= 0 || c.Port > 65535:
		return errors.Errorf("config: invalid port %d", c.Port)
	case c.OnionTimeoutS <= 0:
		return errors.Errorf("config: onion_timeout_s must be positive, got %d", c.OnionTimeoutS)
	case c.OnionRepeat <= 0:
		return errors.Errorf("config: onion_repeat must be positive, got %d", c.OnionRepeat)
	case c.Network.DropProbability < 0 || c.Network.DropProbability >= 1:
		return errors.Errorf("config: drop_probability must be in [0,1), got %v", c.Network.DropProbability)
	}
	paths, err := c.Paths()
	if err != nil {
		return err
	}
	for _, p := range paths {
		if p < 1 || p > c.NumNodes-1 {
			return errors.Errorf("config: path length %d outside 1..%d", p, c.NumNodes-1)
		}
	}
	for _, e := range c.RadioSchedule {
		if err = c.validateRadioEvent(e); err != nil {
			return err
		}
	}
	return nil
}

// validateRadioEvent accepts events for sensors only, 10.1.0.2 up to the last node.
func (c *Config) validateRadioEvent(e RadioEvent) error {
	addr, err := network.ParseAddress(e.Node)
	if err != nil {
		return errors.Wrapf(err, "config: radio_schedule node %q", e.Node)
	}
	first, last := network.MustParseAddress("10.1.0.2"), network.MustParseAddress("10.1.0.0")+network.Address(c.NumNodes)
	switch {
	case addr < first || addr > last:
		return errors.Errorf("config: radio_schedule node %s is not a sensor in %s..%s", addr, first, last)
	case e.AtS < 0:
		return errors.Errorf("config: radio_schedule time %v for %s is negative", e.AtS, addr)
	case e.Radio != RadioOff && e.Radio != RadioOn:
		return errors.Errorf("config: radio_schedule radio %q for %s must be %q or %q", e.Radio, addr, RadioOff, RadioOn)
	}
	return nil
}

// Paths parses the comma separated path lengths.
func (c *Config) Paths() ([]int, error) {
	var paths []int
	for _, field := range strings.Split(c.PathLengths, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		p, err := strconv.Atoi(field)
		if err != nil {
			return nil, errors.Wrapf(err, "config: invalid path length %q", field)
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		return nil, errors.New("config: no path lengths given")
	}
	return paths, nil
}

// OnionPlan lists the path length of every onion the sink issues, in order: each
// path length repeated onion_repeat times.
func (c *Config) OnionPlan() []int {
	paths, _ := c.Paths()
	plan := make([]int, 0, len(paths)*c.OnionRepeat)
	for _, p := range paths {
		for i := 0; i < c.OnionRepeat; i++ {
			plan = append(plan, p)
		}
	}
	return plan
}

func (c *Config) StartDelay() time.Duration {
	return time.Duration(c.StartDelayMs) * time.Millisecond
}

func (c *Config) OnionTimeout() time.Duration {
	return time.Duration(c.OnionTimeoutS) * time.Second
}

// OnionStart is when the first onion leaves. When unset, it is one second after the
// last sensor's handshake is due.
func (c *Config) OnionStart() time.Duration {
	if c.OnionStartS > 0 {
		return time.Duration(c.OnionStartS * float64(time.Second))
	}
	return time.Duration(c.NumNodes+1)*c.StartDelay() + time.Second
}

// SimulationTime bounds the run; zero means until every onion completed or aborted.
func (c *Config) SimulationTime() time.Duration {
	return time.Duration(c.SimulationTimeS) * time.Second
}

func (c *Config) Latency() time.Duration {
	return time.Duration(c.Network.LatencyMs) * time.Millisecond
}

// Name is a short label for the run.
func (c *Config) Name() string {
	paths, _ := c.Paths()
	return fmt.Sprintf("%s-%dn-seed%d-paths%s", c.Topology, c.NumNodes, c.Seed, strings.Trim(strings.Join(strings.Fields(fmt.Sprint(paths)), "_"), "[]"))
}

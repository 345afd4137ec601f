package wsn

import (
	"math"
	"math/rand"

	"github.com/HannahMarsh/onion-routing-wsn/config"
	"github.com/HannahMarsh/onion-routing-wsn/internal/domain/models"
	"github.com/HannahMarsh/onion-routing-wsn/internal/network"
	"github.com/pkg/errors"
)

// Addresses are handed out from NetworkBase+1, the sink first.
var NetworkBase = network.MustParseAddress("10.1.0.0")

const maxSensorValue = 100

type position struct {
	x, y float64
}

// Topology places numNodes nodes and assigns their addresses and sensor values.
// The first node is the sink.
func Topology(cfg *config.Config, rng *rand.Rand) ([]models.Node, error) {
	var positions []position
	switch cfg.Topology {
	case config.TopologyGrid:
		positions = gridPositions(cfg.NumNodes, cfg.CellSide)
	case config.TopologyDisc:
		positions = discPositions(cfg.NumNodes, cfg.Radius, rng)
	default:
		return nil, errors.Errorf("wsn.Topology(): unknown topology %q", cfg.Topology)
	}

	nodes := make([]models.Node, len(positions))
	for i, p := range positions {
		nodes[i] = models.Node{
			Address: (NetworkBase + network.Address(i+1)).String(),
			Role:    models.RoleSensor,
			X:       p.x,
			Y:       p.y,
		}
		if i == 0 {
			nodes[i].Role = models.RoleSink
			continue
		}
		nodes[i].SensorValue = rng.Int31n(maxSensorValue)
	}
	return nodes, nil
}

// gridPositions lays the nodes out on a square grid cellSide apart. The sink takes the
// centre cell and sensors fill the others row by row.
func gridPositions(numNodes int, cellSide float64) []position {
	side := int(math.Ceil(math.Sqrt(float64(numNodes))))
	centre := (side / 2) * (side + 1)

	cell := func(i int) position {
		return position{x: float64(i%side) * cellSide, y: float64(i/side) * cellSide}
	}
	positions := []position{cell(centre)}
	for i := 0; len(positions) < numNodes; i++ {
		if i != centre {
			positions = append(positions, cell(i))
		}
	}
	return positions
}

// discPositions scatters sensors uniformly over a disc around the sink. The disc covers
// the area of numNodes circles of the given radius, so density does not change with
// the node count.
func discPositions(numNodes int, radius float64, rng *rand.Rand) []position {
	discRadius := radius * math.Sqrt(float64(numNodes))
	positions := []position{{x: discRadius, y: discRadius}}
	for len(positions) < numNodes {
		r := discRadius * math.Sqrt(rng.Float64())
		theta := 2 * math.Pi * rng.Float64()
		positions = append(positions, position{
			x: discRadius + r*math.Cos(theta),
			y: discRadius + r*math.Sin(theta),
		})
	}
	return positions
}

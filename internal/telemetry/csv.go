package telemetry

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/HannahMarsh/onion-routing-wsn/internal/network"
	"github.com/jfcg/sorty/v2"
	"github.com/pkg/errors"
)

// Output file names written by WriteCSV.
const (
	NodesFile       = "nodes.csv"
	HandshakesFile  = "handshakes.csv"
	TransfersFile   = "transfers.csv"
	AbortsFile      = "aborts.csv"
	CompletionsFile = "completions.csv"
)

// WriteCSV writes every recorded event to dir, one file per event kind, ordered by time.
func (r *Recorder) WriteCSV(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "telemetry.WriteCSV(): failed to create %s", dir)
	}

	nodes := r.Nodes()
	rows := [][]string{{"address", "role", "x", "y", "sensor_value"}}
	for _, n := range nodes {
		rows = append(rows, []string{n.Address, n.Role, formatFloat(n.X), formatFloat(n.Y), strconv.Itoa(int(n.SensorValue))})
	}
	if err := writeRows(filepath.Join(dir, NodesFile), rows); err != nil {
		return err
	}

	handshakes := r.Handshakes()
	sortStable(len(handshakes), func(i, k int) bool { return handshakes[i].At < handshakes[k].At }, func(i, k int) {
		handshakes[i], handshakes[k] = handshakes[k], handshakes[i]
	})
	rows = [][]string{{"time_s", "from", "key_size"}}
	for _, h := range handshakes {
		rows = append(rows, []string{seconds(h.At), h.From, strconv.Itoa(h.KeySize)})
	}
	if err := writeRows(filepath.Join(dir, HandshakesFile), rows); err != nil {
		return err
	}

	transfers := r.Transfers()
	sortStable(len(transfers), func(i, k int) bool { return transfers[i].At < transfers[k].At }, func(i, k int) {
		transfers[i], transfers[k] = transfers[k], transfers[i]
	})
	rows = [][]string{{"time_s", "direction", "onion_id", "node", "peer", "packet_size", "head_size", "body_size"}}
	for _, t := range transfers {
		rows = append(rows, []string{
			seconds(t.At), t.Direction, strconv.FormatUint(uint64(t.OnionID), 10), t.Node, t.Peer,
			strconv.Itoa(t.PacketSize), strconv.Itoa(t.HeadSize), strconv.Itoa(t.BodySize),
		})
	}
	if err := writeRows(filepath.Join(dir, TransfersFile), rows); err != nil {
		return err
	}

	aborts := r.Aborts()
	rows = [][]string{{"time_s", "onion_id", "hop_count", "armed_by"}}
	for _, a := range aborts {
		rows = append(rows, []string{seconds(a.At), strconv.FormatUint(uint64(a.OnionID), 10), strconv.Itoa(a.HopCount), a.ArmedBy})
	}
	if err := writeRows(filepath.Join(dir, AbortsFile), rows); err != nil {
		return err
	}

	completions := r.Completions()
	rows = [][]string{{"time_s", "onion_id", "path_length", "elapsed_s", "aggregate", "expected_aggregate"}}
	for _, c := range completions {
		rows = append(rows, []string{
			seconds(c.At), strconv.FormatUint(uint64(c.OnionID), 10), strconv.Itoa(c.PathLength), seconds(c.Elapsed),
			optional(c.Aggregate), optional(c.ExpectedAggregate),
		})
	}
	return writeRows(filepath.Join(dir, CompletionsFile), rows)
}

// sortStable orders n items with sorty, breaking ties by original position so events
// recorded at the same instant keep their order.
func sortStable(n int, less func(i, k int) bool, swap func(i, k int)) {
	pos := make([]int, n)
	for i := range pos {
		pos[i] = i
	}
	sorty.Sort(n, func(i, k, r, s int) bool {
		if less(i, k) || (!less(k, i) && pos[i] < pos[k]) {
			if r != s {
				swap(r, s)
				pos[r], pos[s] = pos[s], pos[r]
			}
			return true
		}
		return false
	})
}

func writeRows(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "telemetry.WriteCSV(): failed to create %s", path)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err = w.WriteAll(rows); err != nil {
		return errors.Wrapf(err, "telemetry.WriteCSV(): failed to write %s", path)
	}
	return nil
}

func addressLess(a, b string) bool {
	aa, errA := network.ParseAddress(a)
	ab, errB := network.ParseAddress(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return aa < ab
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func optional(v *int32) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(int(*v))
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}

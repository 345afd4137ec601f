package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/HannahMarsh/onion-routing-wsn/internal/network"
	"github.com/HannahMarsh/onion-routing-wsn/internal/onion"
	"github.com/HannahMarsh/onion-routing-wsn/internal/onion_model"
	"github.com/HannahMarsh/onion-routing-wsn/pkg/infrastructure/logger"
	"github.com/HannahMarsh/onion-routing-wsn/pkg/utils"
	"github.com/pkg/errors"
)

var sinkAddress = network.MustParseAddress("10.1.0.1")

// Run with: go run ./cmd/onion-sizes -out output/onion_sizes.csv
func main() {
	out := flag.String("out", "output/onion_sizes.csv", "CSV file to write")
	paths := flag.String("paths", "1,3,5,10", "Comma separated path lengths")
	mss := flag.Int("mss", 536, "Maximum segment size in bytes")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logger.SetUpLogrusAndSlog(*logLevel)

	pathLengths, err := parsePaths(*paths)
	if err != nil {
		slog.Error("invalid -paths", "err", err)
		os.Exit(2)
	}

	if err = os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		slog.Error("failed to create output directory", "err", err)
		os.Exit(1)
	}
	f, err := os.Create(*out)
	if err != nil {
		slog.Error("failed to create CSV", "err", err)
		os.Exit(1)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			slog.Error("failed to close file", "err", err)
		}
	}(f)

	writer := csv.NewWriter(f)
	defer writer.Flush()

	if err = writer.Write([]string{"PathLength", "Padded", "Hop", "TotalBytes", "HeadBytes", "BodyBytes", "OnionBytes", "PaddingBytes", "Segments"}); err != nil {
		slog.Error("failed to write to writer", "err", err)
		os.Exit(1)
	}

	paddedSize := onion.Size(utils.Max(pathLengths))
	for _, l := range pathLengths {
		for _, padded := range []bool{false, true} {
			if err = measureOne(writer, l, padded, paddedSize, *mss); err != nil {
				slog.Error("measurement failed", "path_length", l, "padded", padded, "err", err)
				os.Exit(1)
			}
		}
	}
	slog.Info("onion sizes written", "file", *out)
}

func parsePaths(s string) ([]int, error) {
	var paths []int
	for _, field := range strings.Split(s, ",") {
		p, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || p <= 0 {
			return nil, errors.Errorf("invalid path length %q", field)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// measureOne forms an onion over pathLength fresh sensors and records its size as it
// leaves the sink and after every peel on the way back.
func measureOne(writer *csv.Writer, pathLength int, padded bool, paddedSize int, mss int) error {
	managers := make([]*onion.Manager, pathLength)
	hops := make([]onion.Hop, pathLength)
	for i := range managers {
		managers[i] = onion.NewManager(nil)
		if err := managers[i].GenerateKeyPair(); err != nil {
			return err
		}
		hops[i] = onion.Hop{
			Address:   sinkAddress + network.Address(i+1),
			PublicKey: managers[i].KeyPair().Public,
		}
	}

	ciphertext, err := onion.FormOnion(hops, sinkAddress)
	if err != nil {
		return err
	}
	head := &onion_model.Head{OnionID: 1, OnionMessage: ciphertext}
	if padded {
		head.Padding = make([]byte, max(paddedSize-len(ciphertext), 0))
	}
	packet := onion_model.NewOnion(head, &onion_model.Body{AggregatedValue: onion_model.Int32(0)})

	for hop := 0; ; hop++ {
		if err = writeRow(writer, pathLength, padded, hop, packet, mss); err != nil {
			return err
		}
		if hop == pathLength {
			return nil
		}
		outer := head.OuterLength()
		var layer onion.PeeledLayer
		if layer, err = managers[hop].PeelOneLayer(head.OnionMessage); err != nil {
			return errors.Wrapf(err, "peel at hop %d", hop)
		}
		head.OnionMessage = layer.InnerLayer
		if head.HasPadding() {
			head.Padding = make([]byte, max(outer-len(layer.InnerLayer), 0))
		}
		packet.Body.Aggregate(int32(hop))
	}
}

func writeRow(writer *csv.Writer, pathLength int, padded bool, hop int, packet *onion_model.Packet, mss int) error {
	total := len(packet.Marshal())
	segments := (total + mss - 1) / mss
	if err := writer.Write([]string{
		fmt.Sprint(pathLength),
		fmt.Sprint(padded),
		fmt.Sprint(hop),
		fmt.Sprint(total),
		fmt.Sprint(packet.Head.Size()),
		fmt.Sprint(packet.Body.Size()),
		fmt.Sprint(len(packet.Head.OnionMessage)),
		fmt.Sprint(len(packet.Head.Padding)),
		fmt.Sprint(segments),
	}); err != nil {
		return errors.Wrap(err, "failed to write to writer")
	}

	fmt.Printf("l=%d, padded=%v, hop=%d -> total=%dB (head=%d, body=%d) in %d segment(s)\n",
		pathLength, padded, hop, total, packet.Head.Size(), packet.Body.Size(), segments)
	return nil
}

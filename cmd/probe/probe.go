package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"serialpha/src/framing"
	"serialpha/src/grpc_control"
	"serialpha/src/interfaces"
	"serialpha/src/models"
	"serialpha/src/parser"
	"serialpha/src/profile"
	"serialpha/src/transport"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
)

type probeStats struct {
	bytes    int
	records  int
	parsed   int
	rejected int
}

// -----------------------------------------------------------------------------

// loadProfiles returns the built-in registry, extended by a document when given.
func loadProfiles(path string) (*profile.Registry, error) {
	registry := profile.NewRegistry()
	if path == "" {
		return registry, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := profile.DecodeDocument(data, path)
	if err != nil {
		return nil, err
	}
	accepted, rejected, err := registry.Import(raw)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Imported %d profiles from %s (%d rejected)\n", accepted, path, rejected)
	return registry, nil
}

// pickProfile accepts an index or an exact profile name.
func pickProfile(registry *profile.Registry, arg string) (models.MProfile, error) {
	if i, err := strconv.Atoi(arg); err == nil {
		return registry.Get(i)
	}
	for _, p := range registry.List() {
		if p.Name == arg {
			return p, nil
		}
	}
	return models.MProfile{}, fmt.Errorf("no profile named %q", arg)
}

// -----------------------------------------------------------------------------

func printPorts() {
	ports, err := transport.ListPorts()
	if err != nil {
		fmt.Printf("Ports: %v\n", err)
		return
	}
	if len(ports) == 0 {
		fmt.Println("Ports: none found")
		return
	}
	fmt.Println("Ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}
}

func printProfiles(registry *profile.Registry) {
	fmt.Println("Profiles:")
	for i, p := range registry.List() {
		fmt.Printf("  [%d] %s  %d baud, fields %v, min %d ms\n",
			i, p.Name, p.Serial.BaudRate, profile.DisplayFields(&p), profile.MinInterval(&p))
	}
}

// -----------------------------------------------------------------------------

// run reads records until limit is reached, the stream ends or ctx is done.
// Each record is written to out with its parsed measurement as JSON.
func run(ctx context.Context, opener interfaces.ITransportOpener, p models.MProfile, cfg *models.MConfig, limit int, out io.Writer) (probeStats, error) {
	var stats probeStats

	framer, err := framing.NewFramer(p.Parser.LineTerminator, cfg.Transport.MaxBufferBytes)
	if err != nil {
		return stats, err
	}
	recordParser := parser.NewParser(p)

	tr, err := opener.Open(ctx, p, cfg.Transport.Port)
	if err != nil {
		return stats, err
	}
	defer tr.Close()
	fmt.Fprintf(out, "Reading %s with profile %q\n", tr.Describe(), p.Name)

	for limit <= 0 || stats.records < limit {
		chunk, err := tr.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return stats, nil
			}
			return stats, err
		}
		stats.bytes += len(chunk.Data)

		recs, ferr := framer.Feed(chunk.Data)
		if errors.Is(ferr, framing.ErrBufferOverflow) {
			fmt.Fprintf(out, "! %v\n", ferr)
		}
		for _, rec := range recs {
			stats.records++
			m := recordParser.Parse(rec)
			if m == nil {
				stats.rejected++
				fmt.Fprintf(out, "%q -> rejected\n", rec)
			} else {
				stats.parsed++
				encoded, _ := json.Marshal(m)
				fmt.Fprintf(out, "%q -> %s\n", rec, encoded)
			}
			if limit > 0 && stats.records >= limit {
				break
			}
		}

		if chunk.EndOfStream {
			return stats, nil
		}
	}
	return stats, nil
}

// -----------------------------------------------------------------------------

// printStatus asks a running service for its acquisition state.
func printStatus(ctx context.Context, cc grpc.ClientConnInterface, out io.Writer) error {
	reply, err := grpc_control.NewClient(cc).GetStatus(ctx)
	if err != nil {
		return err
	}
	encoded, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(reply)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(encoded))
	return nil
}

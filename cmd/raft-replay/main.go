// Command raft-replay feeds recorded telemetry frames through the engine and
// opens an interactive shell for inspecting the resulting device state.
//
// The frames file contains one hex-encoded frame per line (including the
// 2-byte transport prefix); lines starting with '#' are comments. Device-type
// schemas are preloaded from a JSON file mapping type key to devinfo, so no
// live firmware link is needed.
//
// Usage:
//
//	raft-replay -frames session.hex [-schemas types.json] [-config engine.yaml] [-capture out.rcap]
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/robdobsn/raftgo/cmd/raft-replay/interactive"
	"github.com/robdobsn/raftgo/pkg/config"
	"github.com/robdobsn/raftgo/pkg/engine"
	"github.com/robdobsn/raftgo/pkg/protolog"
	"github.com/robdobsn/raftgo/pkg/schema"
)

// offlineRequester rejects RPCs: replay has no firmware link.
type offlineRequester struct{}

func (offlineRequester) Request(ctx context.Context, path string) ([]byte, error) {
	return nil, fmt.Errorf("offline replay: no firmware link for %q", path)
}

func main() {
	framesPath := flag.String("frames", "", "Hex frame log to replay (required)")
	schemasPath := flag.String("schemas", "", "JSON file mapping type key to devinfo")
	configPath := flag.String("config", "", "Engine config YAML")
	capturePath := flag.String("capture", "", "Write a protocol capture of the replay")
	verbose := flag.Bool("v", false, "Verbose diagnostics")
	flag.Parse()

	if *framesPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -frames is required")
		flag.Usage()
		os.Exit(1)
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load config")
		}
	}

	opts := []engine.Option{
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
	}
	// -capture overrides the config's captureFile; with neither set the
	// engine leaves capture disabled.
	if *capturePath != "" {
		capture, err := protolog.NewFileLogger(*capturePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open capture file")
		}
		defer capture.Close()
		opts = append(opts, engine.WithCapture(capture))
	}

	e := engine.New(offlineRequester{}, opts...)
	defer e.Close()

	if *schemasPath != "" {
		if err := loadSchemas(e, *schemasPath); err != nil {
			logger.Fatal().Err(err).Msg("failed to load schemas")
		}
	}

	frames, errors, err := replayFrames(e, *framesPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to replay frames")
	}
	fmt.Printf("Replayed %d frames (%d dropped), %d devices\n",
		frames, errors, len(e.DeviceStateMap()))

	shell, err := interactive.New(e)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start shell")
	}
	shell.Run()
}

// loadSchemas preloads the type cache from a JSON file of
// typeKey -> devinfo.
func loadSchemas(e *engine.Engine, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("schemas file parse: %w", err)
	}
	for typeKey, raw := range entries {
		info, err := schema.ParseDeviceTypeInfo(raw)
		if err != nil {
			return fmt.Errorf("schema %q: %w", typeKey, err)
		}
		e.TypeCache().Put(typeKey, info)
	}
	return nil
}

// replayFrames feeds each hex line of the frames file through the engine.
func replayFrames(e *engine.Engine, path string) (frames, dropped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 256*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raw, err := hex.DecodeString(line)
		if err != nil {
			dropped++
			continue
		}
		if err := e.HandleFrame(raw); err != nil {
			dropped++
			continue
		}
		frames++
	}
	return frames, dropped, scanner.Err()
}

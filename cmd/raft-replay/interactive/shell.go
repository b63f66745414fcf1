// Package interactive provides the raft-replay inspection shell.
package interactive

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"github.com/robdobsn/raftgo/pkg/engine"
	"github.com/robdobsn/raftgo/pkg/state"
)

// Shell is the interactive inspection loop over a replayed engine.
type Shell struct {
	engine *engine.Engine
	rl     *readline.Instance
}

// New creates the shell.
func New(e *engine.Engine) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "raft> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{engine: e, rl: rl}, nil
}

// Run starts the command loop and returns when the user exits.
func (s *Shell) Run() {
	defer s.rl.Close()

	s.printHelp()

	for {
		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "devices", "d":
			s.cmdDevices()

		case "device", "show":
			s.cmdDevice(args)

		case "stats", "s":
			s.cmdStats(args)

		case "bus", "b":
			s.cmdBus(args)

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
Raft Replay Commands:
  devices            - List devices with their online state
  device <key>       - Show a device's attributes and latest values
  stats <key>        - Show a device's sample statistics
  bus <name>         - Show the last status marker for a bus
  help               - Show this help
  quit               - Exit`)
}

// cmdDevices lists all devices.
func (s *Shell) cmdDevices() {
	keys := s.engine.DeviceKeys()
	if len(keys) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No devices")
		return
	}

	for _, key := range keys {
		dev, err := s.engine.DeviceState(key)
		if err != nil {
			continue
		}
		typeName := dev.TypeKey
		if dev.TypeInfo != nil && dev.TypeInfo.Name != "" {
			typeName = dev.TypeInfo.Name
		}
		fmt.Fprintf(s.rl.Stdout(), "  %-16s %-10s type=%s attrs=%d\n",
			key, dev.Online.String(), typeName, len(dev.Attributes))
	}
}

// cmdDevice shows one device in detail.
func (s *Shell) cmdDevice(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: device <key>")
		return
	}

	dev, err := s.engine.DeviceState(args[0])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	printDevice(s.rl.Stdout(), dev)
}

// printDevice writes the device header and attribute table.
func printDevice(w io.Writer, dev *state.DeviceState) {
	fmt.Fprintf(w, "Device %s (bus %s, addr %s)\n", dev.Key, dev.BusName, dev.Address)
	fmt.Fprintf(w, "  State: %s\n", dev.Online.String())
	if dev.TypeInfo != nil {
		fmt.Fprintf(w, "  Type:  %s", dev.TypeInfo.Name)
		if dev.TypeInfo.Desc != "" {
			fmt.Fprintf(w, " (%s)", dev.TypeInfo.Desc)
		}
		fmt.Fprintln(w)
	} else if dev.TypeKey != "" {
		fmt.Fprintf(w, "  Type:  %s (schema not resolved)\n", dev.TypeKey)
	}
	fmt.Fprintf(w, "  Samples: %d\n", len(dev.Timeline))

	names := make([]string, 0, len(dev.Attributes))
	for name := range dev.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		attr := dev.Attributes[name]
		value := attr.Display()
		if attr.Units != "" {
			value += " " + attr.Units
		}
		fmt.Fprintf(w, "  %-16s %s\n", name, value)
	}
}

// cmdStats shows one device's sample statistics.
func (s *Shell) cmdStats(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: stats <key>")
		return
	}

	stats := s.engine.Stats(args[0])
	fmt.Fprintf(s.rl.Stdout(), "  Total samples:  %d\n", stats.TotalSamples)
	fmt.Fprintf(s.rl.Stdout(), "  Window samples: %d (%dms window)\n", stats.WindowSamples, stats.WindowMs)
	fmt.Fprintf(s.rl.Stdout(), "  Rate:           %.1f Hz\n", stats.RatePerSec)
}

// cmdBus shows the last status marker for a bus.
func (s *Shell) cmdBus(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: bus <name>")
		return
	}

	status, ok := s.engine.BusStatus(args[0])
	if !ok {
		fmt.Fprintf(s.rl.Stdout(), "No status seen for bus %q\n", args[0])
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "  %s: %s\n", args[0], status)
}

// Command raft-capture is a tool for viewing and analyzing protocol capture
// files.
//
// Capture files are created by the telemetry engine when a capture file is
// configured (captureFile in the engine config, or the -capture flag of
// raft-replay).
//
// Usage:
//
//	raft-capture <command> [flags] <file.rcap>
//
// Commands:
//
//	view     View capture file in human-readable format
//	stats    Show statistics about the capture file
//
// Examples:
//
//	# View all events
//	raft-capture view session.rcap
//
//	# View only record-layer events
//	raft-capture view --layer record session.rcap
//
//	# Show statistics
//	raft-capture stats session.rcap
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/robdobsn/raftgo/cmd/raft-capture/commands"
)

const usage = `raft-capture - Telemetry Capture Analyzer

Usage:
  raft-capture <command> [flags] <file.rcap>

Commands:
  view     View capture file in human-readable format
  stats    Show statistics about the capture file

Use "raft-capture <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `raft-capture view - View capture file in human-readable format

Usage:
  raft-capture view [flags] <file.rcap>

Flags:
`)
		fs.PrintDefaults()
	}

	layer := fs.String("layer", "", "Filter by layer (frame, record, lifecycle)")
	category := fs.String("category", "", "Filter by category (data, state, error)")
	device := fs.String("device", "", "Filter by device key")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	var filter commands.ViewFilter
	filter.DeviceKey = *device

	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Layer = &l
	}

	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Category = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `raft-capture stats - Show statistics about the capture file

Usage:
  raft-capture stats <file.rcap>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

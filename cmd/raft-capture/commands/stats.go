package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/robdobsn/raftgo/pkg/protolog"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents      int
	EventsByLayer    map[protolog.Layer]int
	EventsByCategory map[protolog.Category]int
	Devices          map[string]*DeviceCaptureStats
	Errors           int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// DeviceCaptureStats holds per-device statistics.
type DeviceCaptureStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Samples   int
	LastState string
}

// RunStats analyzes the capture file and prints statistics.
func RunStats(path string, w io.Writer) error {
	events, err := protolog.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}

	stats := &Stats{
		EventsByLayer:    make(map[protolog.Layer]int),
		EventsByCategory: make(map[protolog.Category]int),
		Devices:          make(map[string]*DeviceCaptureStats),
	}

	for _, event := range events {
		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByCategory[event.Category]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		if key := eventDeviceKey(event); key != "" {
			dev, ok := stats.Devices[key]
			if !ok {
				dev = &DeviceCaptureStats{FirstSeen: event.Timestamp}
				stats.Devices[key] = dev
			}
			dev.Events++
			if event.Timestamp.After(dev.LastSeen) {
				dev.LastSeen = event.Timestamp
			}
			if event.Record != nil {
				dev.Samples += event.Record.Samples
			}
			if event.Lifecycle != nil {
				dev.LastState = event.Lifecycle.NewState
			}
		}

		if event.Error != nil {
			stats.Errors++
		}
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Telemetry Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []protolog.Layer{protolog.LayerFrame, protolog.LayerRecord, protolog.LayerLifecycle} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []protolog.Category{protolog.CategoryData, protolog.CategoryState, protolog.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Devices: %d\n", len(stats.Devices))
	if len(stats.Devices) > 0 {
		keys := make([]string, 0, len(stats.Devices))
		for key := range stats.Devices {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintln(w)
		for _, key := range keys {
			dev := stats.Devices[key]
			duration := dev.LastSeen.Sub(dev.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, %d samples, duration %s\n",
				key, dev.Events, dev.Samples, duration)
			if dev.LastState != "" {
				fmt.Fprintf(w, "           Last state: %s\n", dev.LastState)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}

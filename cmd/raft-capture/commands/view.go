// Package commands implements the raft-capture CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/robdobsn/raftgo/pkg/protolog"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *protolog.Layer
	Category  *protolog.Category
	DeviceKey string
}

// matches reports whether an event passes the filter.
func (f ViewFilter) matches(event protolog.Event) bool {
	if f.Layer != nil && event.Layer != *f.Layer {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.DeviceKey != "" && eventDeviceKey(event) != f.DeviceKey {
		return false
	}
	return true
}

// eventDeviceKey extracts the device key of an event, if it has one.
func eventDeviceKey(event protolog.Event) string {
	switch {
	case event.Record != nil:
		return event.Record.DeviceKey
	case event.Lifecycle != nil:
		return event.Lifecycle.DeviceKey
	}
	return ""
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event protolog.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")

	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = "Frame"
	case event.Record != nil:
		typeLabel = "Record"
	case event.Lifecycle != nil:
		typeLabel = "Lifecycle"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s %s %s %s\n", ts, event.Layer.String(), event.Category.String(), typeLabel)

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Record != nil:
		formatRecordDetails(w, event.Record)
	case event.Lifecycle != nil:
		formatLifecycleDetails(w, event.Lifecycle)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// formatFrameDetails writes frame-specific details.
func formatFrameDetails(w io.Writer, frame *protolog.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	fmt.Fprintf(w, "  Kind: %s", frame.Kind)
	if frame.Topic != "" {
		fmt.Fprintf(w, "  Topic: %s", frame.Topic)
	}
	if frame.Version != 0 {
		fmt.Fprintf(w, "  Version: %d", frame.Version)
	}
	fmt.Fprintln(w)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

// formatRecordDetails writes record decode details.
func formatRecordDetails(w io.Writer, rec *protolog.RecordEvent) {
	fmt.Fprintf(w, "  Device: %s\n", rec.DeviceKey)
	fmt.Fprintf(w, "  Samples: %d", rec.Samples)
	if rec.Attrs > 0 {
		fmt.Fprintf(w, "  Attrs: %d", rec.Attrs)
	}
	fmt.Fprintln(w)
}

// formatLifecycleDetails writes lifecycle change details.
func formatLifecycleDetails(w io.Writer, lc *protolog.LifecycleEvent) {
	fmt.Fprintf(w, "  Device: %s\n", lc.DeviceKey)
	if lc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", lc.OldState, lc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", lc.NewState)
	}
	if lc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", lc.Reason)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *protolog.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayerFlag parses a layer string from a command-line flag
// (case-insensitive).
func ParseLayerFlag(s string) (protolog.Layer, error) {
	switch strings.ToLower(s) {
	case "frame":
		return protolog.LayerFrame, nil
	case "record":
		return protolog.LayerRecord, nil
	case "lifecycle":
		return protolog.LayerLifecycle, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be frame, record, or lifecycle)", s)
	}
}

// ParseCategoryFlag parses a category string from a command-line flag
// (case-insensitive).
func ParseCategoryFlag(s string) (protolog.Category, error) {
	switch strings.ToLower(s) {
	case "data":
		return protolog.CategoryData, nil
	case "state":
		return protolog.CategoryState, nil
	case "error":
		return protolog.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be data, state, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	events, err := protolog.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}

	for _, event := range events {
		if !filter.matches(event) {
			continue
		}
		formatEvent(output, event)
	}
	return nil
}

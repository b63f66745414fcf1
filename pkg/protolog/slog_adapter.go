package protolog

import (
	"context"
	"log/slog"
)

// SlogAdapter writes capture events to an slog.Logger.
// Useful in development to watch protocol activity on the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter writing to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.EngineID != "" {
		attrs = append(attrs, slog.String("engine_id", event.EngineID))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.String("kind", event.Frame.Kind),
		)
		if event.Frame.Topic != "" {
			attrs = append(attrs, slog.String("topic", event.Frame.Topic))
		}
		if event.Frame.Version != 0 {
			attrs = append(attrs, slog.Int("version", event.Frame.Version))
		}
	case event.Record != nil:
		attrs = append(attrs,
			slog.String("device", event.Record.DeviceKey),
			slog.Int("samples", event.Record.Samples),
			slog.Int("attrs", event.Record.Attrs),
		)
	case event.Lifecycle != nil:
		attrs = append(attrs,
			slog.String("device", event.Lifecycle.DeviceKey),
			slog.String("old_state", event.Lifecycle.OldState),
			slog.String("new_state", event.Lifecycle.NewState),
		)
		if event.Lifecycle.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Lifecycle.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "telemetry", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)

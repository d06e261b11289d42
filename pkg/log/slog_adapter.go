package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see device traffic in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.DeviceAddr != "" {
		attrs = append(attrs, slog.String("device", event.DeviceAddr))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Packet != nil:
		attrs = append(attrs,
			slog.String("command", commandString(event.Packet.Command)),
			slog.Int("param_count", len(event.Packet.ParameterIDs)),
			slog.Bool("correlated", event.Packet.Correlated),
		)
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// commandString renders a command id in wire notation without importing
// the spp package (log is below spp in the dependency order).
func commandString(cmd uint16) string {
	const hex = "0123456789ABCDEF"
	return string([]byte{
		'0', 'x',
		hex[cmd>>12&0xF], hex[cmd>>8&0xF], hex[cmd>>4&0xF], hex[cmd&0xF],
	})
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)

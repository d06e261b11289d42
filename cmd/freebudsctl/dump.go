package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/openfreebuds/freebuds-go/pkg/log"
	"github.com/openfreebuds/freebuds-go/pkg/spp"
)

// runDump replays a CBOR protocol trace file as human-readable text on
// stdout. It is the offline counterpart of the -trace flag.
func runDump(path string, w io.Writer) error {
	reader, err := log.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	defer reader.Close()

	count := 0
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read trace event %d: %w", count+1, err)
		}
		formatEvent(w, event)
		count++
	}

	fmt.Fprintf(w, "Total events: %d\n", count)
	return nil
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [conn:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)
	dir := event.Direction.String()

	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = "Frame"
	case event.Packet != nil:
		typeLabel = "Packet"
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n", ts, connID, dir, event.Layer, typeLabel)
	if event.DeviceAddr != "" {
		fmt.Fprintf(w, "  Device: %s\n", event.DeviceAddr)
	}

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Packet != nil:
		formatPacketDetails(w, event.Packet)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatPacketDetails(w io.Writer, pkt *log.PacketEvent) {
	fmt.Fprintf(w, "  Command: %s\n", spp.Command(pkt.Command))
	if len(pkt.ParameterIDs) > 0 {
		fmt.Fprintf(w, "  Parameters: %v\n", pkt.ParameterIDs)
	}
	if pkt.Correlated {
		fmt.Fprintf(w, "  Correlated: true\n")
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Transition: %s -> %s\n", sc.OldState, sc.NewState)
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, errEvent *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", errEvent.Layer)
	fmt.Fprintf(w, "  Message: %s\n", errEvent.Message)
	if errEvent.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", errEvent.Context)
	}
}

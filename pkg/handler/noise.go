package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/openfreebuds/freebuds-go/pkg/spp"
)

// NamespaceNoise is the property store namespace noise-control state
// lives in.
const NamespaceNoise = "anc"

// ParamNoiseMode carries the single-byte noise-control mode.
const ParamNoiseMode uint8 = 1

// NoiseMode enumerates the device's noise-control modes.
type NoiseMode uint8

const (
	// NoiseOff - no active noise processing.
	NoiseOff NoiseMode = 0

	// NoiseCancellation - active noise cancellation.
	NoiseCancellation NoiseMode = 1

	// NoiseAwareness - transparency / ambient sound passthrough.
	NoiseAwareness NoiseMode = 2
)

// String returns the mode name.
func (m NoiseMode) String() string {
	switch m {
	case NoiseOff:
		return "off"
	case NoiseCancellation:
		return "cancellation"
	case NoiseAwareness:
		return "awareness"
	default:
		return "unknown"
	}
}

// Valid reports whether the mode is one the device accepts.
func (m NoiseMode) Valid() bool {
	return m <= NoiseAwareness
}

// NoiseControl tracks and changes the noise-control mode. Unlike the
// battery handler it carries no background loop: the device pushes a
// notify packet whenever the mode changes on its side.
type NoiseControl struct {
	requester Requester
	props     PropertySink
	logger    *slog.Logger
}

// NewNoiseControl creates the noise-control handler. logger may be nil.
func NewNoiseControl(requester Requester, props PropertySink, logger *slog.Logger) *NoiseControl {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &NoiseControl{
		requester: requester,
		props:     props,
		logger:    logger,
	}
}

// ID returns the handler identifier.
func (n *NoiseControl) ID() string {
	return "noise_control"
}

// Commands returns the command ids this handler claims.
func (n *NoiseControl) Commands() []spp.Command {
	return []spp.Command{spp.CmdNoiseRead, spp.CmdNoiseNotify}
}

// OnInit reads the current mode so consumers see it immediately.
func (n *NoiseControl) OnInit(ctx context.Context) error {
	if err := n.requestUpdate(ctx); err != nil {
		return fmt.Errorf("noise-control bootstrap read: %w", err)
	}
	return nil
}

// OnPackage applies a mode report, solicited or not.
func (n *NoiseControl) OnPackage(_ context.Context, pkt *spp.Packet) error {
	data, ok := pkt.Param(ParamNoiseMode)
	if !ok || len(data) < 1 {
		return nil
	}
	mode := NoiseMode(data[0])
	n.props.Merge(NamespaceNoise, map[string]any{
		"mode":      int(mode),
		"mode_name": mode.String(),
	})
	return nil
}

// SetMode asks the device to switch noise-control mode, then re-reads
// the mode so the store reflects what the device actually applied.
func (n *NoiseControl) SetMode(ctx context.Context, mode NoiseMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid noise-control mode %d", mode)
	}

	req := spp.NewPacket(spp.CmdNoiseSet, map[uint8][]byte{
		ParamNoiseMode: {byte(mode)},
	})
	if _, err := n.requester.SendPackage(ctx, req); err != nil {
		return fmt.Errorf("set noise-control mode: %w", err)
	}
	return n.requestUpdate(ctx)
}

// Cleanup has nothing to release; present for the handler contract.
func (n *NoiseControl) Cleanup(context.Context) error {
	return nil
}

func (n *NoiseControl) requestUpdate(ctx context.Context) error {
	req, err := spp.NewReadRequest(spp.CmdNoiseRead, []uint8{ParamNoiseMode})
	if err != nil {
		return err
	}
	resp, err := n.requester.SendPackage(ctx, req)
	if err != nil {
		return err
	}
	return n.OnPackage(ctx, resp)
}

package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/openfreebuds/freebuds-go/pkg/spp"
	"github.com/openfreebuds/freebuds-go/pkg/task"
)

// NamespaceBattery is the property store namespace battery state lives in.
const NamespaceBattery = "battery"

// Battery parameter ids.
const (
	// ParamBatteryGlobal carries the single-byte overall percentage.
	ParamBatteryGlobal uint8 = 1

	// ParamBatteryLevels carries left, right and case percentages on
	// device variants with dual-earbud reporting.
	ParamBatteryLevels uint8 = 2

	// ParamBatteryCharging carries charging indicators; the presence of
	// the marker byte means something is charging.
	ParamBatteryCharging uint8 = 3
)

// chargingMarker is the byte whose presence in the charging parameter
// denotes an active charge.
const chargingMarker byte = 0x01

// DefaultBatteryInterval is the default polling interval.
const DefaultBatteryInterval = 30 * time.Second

// BatteryConfig configures the battery handler.
type BatteryConfig struct {
	// DualEarbud enables decoding of per-earbud levels. False for
	// device variants that only report a global percentage.
	DualEarbud bool

	// PeriodicUpdate enables background polling.
	PeriodicUpdate bool

	// UpdateInterval is the polling interval when PeriodicUpdate is set.
	UpdateInterval time.Duration

	// StopTimeout bounds how long Cleanup waits for the polling loop.
	// Zero keeps the task package default.
	StopTimeout time.Duration
}

// Battery decodes battery state and publishes it to the property store.
type Battery struct {
	config    BatteryConfig
	requester Requester
	props     PropertySink
	alive     Liveness
	logger    *slog.Logger

	runner *task.Runner
}

// NewBattery creates the battery handler. alive and logger may be nil.
func NewBattery(config BatteryConfig, requester Requester, props PropertySink, alive Liveness, logger *slog.Logger) *Battery {
	if config.UpdateInterval <= 0 {
		config.UpdateInterval = DefaultBatteryInterval
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Battery{
		config:    config,
		requester: requester,
		props:     props,
		alive:     alive,
		logger:    logger,
	}
}

// ID returns the handler identifier.
func (b *Battery) ID() string {
	return "battery"
}

// Commands returns the command ids this handler claims.
func (b *Battery) Commands() []spp.Command {
	return []spp.Command{spp.CmdBatteryRead, spp.CmdBatteryNotify}
}

// OnInit performs the bootstrap read so battery state is available
// before any consumer looks, then starts the polling loop if configured.
func (b *Battery) OnInit(ctx context.Context) error {
	if err := b.requestUpdate(ctx); err != nil {
		return fmt.Errorf("battery bootstrap read: %w", err)
	}

	if b.config.PeriodicUpdate {
		b.runner = task.NewRunner(b.config.UpdateInterval, b.requestUpdate, b.alive, b.logger)
		b.runner.SetStopTimeout(b.config.StopTimeout)
		b.runner.Start()
		b.logger.Info("started periodic battery updates", "interval", b.config.UpdateInterval)
	}
	return nil
}

// OnPackage decodes one battery packet and merges the reported fields
// into the store. Absent parameters are simply omitted; merge semantics
// keep previously known fields intact.
func (b *Battery) OnPackage(_ context.Context, pkt *spp.Packet) error {
	out := make(map[string]any)

	if data, ok := pkt.Param(ParamBatteryGlobal); ok && len(data) == 1 {
		out["global"] = int(data[0])
	}
	if data, ok := pkt.Param(ParamBatteryLevels); ok && len(data) == 3 && b.config.DualEarbud {
		out["left"] = int(data[0])
		out["right"] = int(data[1])
		out["case"] = int(data[2])
	}
	if data, ok := pkt.Param(ParamBatteryCharging); ok && len(data) > 0 {
		out["is_charging"] = bytes.IndexByte(data, chargingMarker) >= 0
	}

	b.props.Merge(NamespaceBattery, out)
	return nil
}

// RequestUpdate asks the device for fresh battery state and applies the
// response immediately.
func (b *Battery) RequestUpdate(ctx context.Context) error {
	return b.requestUpdate(ctx)
}

func (b *Battery) requestUpdate(ctx context.Context) error {
	req, err := spp.NewReadRequest(spp.CmdBatteryRead, []uint8{
		ParamBatteryGlobal, ParamBatteryLevels, ParamBatteryCharging,
	})
	if err != nil {
		return err
	}
	resp, err := b.requester.SendPackage(ctx, req)
	if err != nil {
		return err
	}
	return b.OnPackage(ctx, resp)
}

// Cleanup stops the polling loop and waits for it to fully terminate.
// Idempotent; a handler without a loop has nothing to do.
func (b *Battery) Cleanup(context.Context) error {
	if b.runner == nil {
		return nil
	}
	if err := b.runner.Stop(); err != nil {
		return fmt.Errorf("stop battery updates: %w", err)
	}
	b.logger.Debug("battery update task cleaned up")
	return nil
}

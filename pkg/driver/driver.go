package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/openfreebuds/freebuds-go/pkg/dispatch"
	"github.com/openfreebuds/freebuds-go/pkg/eventbus"
	"github.com/openfreebuds/freebuds-go/pkg/handler"
	"github.com/openfreebuds/freebuds-go/pkg/interaction"
	"github.com/openfreebuds/freebuds-go/pkg/log"
	"github.com/openfreebuds/freebuds-go/pkg/property"
	"github.com/openfreebuds/freebuds-go/pkg/spp"
	"github.com/openfreebuds/freebuds-go/pkg/transport"
)

// Driver errors.
var (
	ErrNotStarted     = errors.New("driver not started")
	ErrAlreadyStarted = errors.New("driver already started")
)

// State represents the driver session state.
type State uint8

const (
	// StateIdle - driver created but not started.
	StateIdle State = iota

	// StateStarting - driver is starting up.
	StateStarting

	// StateRunning - driver is running normally.
	StateRunning

	// StateStopping - driver is shutting down.
	StateStopping

	// StateStopped - driver has stopped.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Driver.
type Config struct {
	// DualEarbud enables per-earbud battery decoding.
	DualEarbud bool

	// PeriodicBatteryUpdate enables background battery polling.
	PeriodicBatteryUpdate bool

	// BatteryUpdateInterval is the polling interval (default 30s).
	BatteryUpdateInterval time.Duration

	// StopTimeout bounds how long Stop waits for periodic tasks to
	// acknowledge cancellation (default 5s).
	StopTimeout time.Duration

	// RequestTimeout bounds correlated requests (default 5s).
	RequestTimeout time.Duration

	// EventQueueLen bounds each subscriber's event queue.
	// Zero means unbounded.
	EventQueueLen int

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger optionally captures protocol events for tracing.
	ProtocolLogger log.Logger
}

// Driver is one session against one device. Create with New, run with
// Start, tear down with Stop. All consumer methods are safe for
// concurrent use.
type Driver struct {
	config Config
	logger *slog.Logger
	plog   log.Logger

	transport  transport.Transport
	client     *interaction.Client
	dispatcher *dispatch.Dispatcher
	store      *property.Store
	bus        *eventbus.Bus

	battery *handler.Battery
	noise   *handler.NoiseControl

	mu       sync.Mutex
	state    State
	readDone chan struct{}
}

// New assembles a driver over an established transport. The transport
// is owned by the driver from here on; Stop closes it.
func New(t transport.Transport, config Config) (*Driver, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	plog := config.ProtocolLogger
	if plog == nil {
		plog = log.NoopLogger{}
	}

	d := &Driver{
		config:     config,
		logger:     logger,
		plog:       plog,
		transport:  t,
		client:     interaction.NewClient(t),
		dispatcher: dispatch.New(logger),
		store:      property.New(),
		bus:        eventbus.New(eventbus.Config{MaxQueueLen: config.EventQueueLen}),
		state:      StateIdle,
	}
	if config.RequestTimeout > 0 {
		d.client.SetTimeout(config.RequestTimeout)
	}

	// Every effective store write becomes one bus event.
	d.store.OnChange(func(namespace string) {
		d.bus.Emit(eventbus.KindPropertyChanged, namespace)
	})

	d.battery = handler.NewBattery(handler.BatteryConfig{
		DualEarbud:     config.DualEarbud,
		PeriodicUpdate: config.PeriodicBatteryUpdate,
		UpdateInterval: config.BatteryUpdateInterval,
		StopTimeout:    config.StopTimeout,
	}, d.client, d.store, t.Started, logger)
	d.noise = handler.NewNoiseControl(d.client, d.store, logger)

	if err := d.dispatcher.Register(d.battery); err != nil {
		return nil, fmt.Errorf("register battery handler: %w", err)
	}
	if err := d.dispatcher.Register(d.noise); err != nil {
		return nil, fmt.Errorf("register noise-control handler: %w", err)
	}
	return d, nil
}

// Start brings the session up: the read loop begins routing inbound
// packets, then every handler runs its bootstrap read so the property
// store is populated before Start returns.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.setStateLocked(StateStarting, "")
	d.readDone = make(chan struct{})
	d.mu.Unlock()

	d.client.SetNotificationHandler(func(pkt *spp.Packet) {
		d.dispatcher.Dispatch(context.Background(), pkt)
	})
	go d.readLoop()

	if err := d.dispatcher.InitAll(ctx); err != nil {
		d.teardown(context.Background())
		d.mu.Lock()
		d.setStateLocked(StateStopped, "init failed")
		d.mu.Unlock()
		return fmt.Errorf("handler init: %w", err)
	}

	d.mu.Lock()
	d.setStateLocked(StateRunning, "")
	d.mu.Unlock()
	return nil
}

// Stop shuts the session down: handlers clean up first so periodic
// tasks stop, then the transport closes and the read loop drains. Stop
// is idempotent and returns once everything has terminated.
func (d *Driver) Stop(ctx context.Context) error {
	d.mu.Lock()
	switch d.state {
	case StateIdle:
		d.setStateLocked(StateStopped, "")
		d.mu.Unlock()
		return nil
	case StateStopping, StateStopped:
		d.mu.Unlock()
		return nil
	}
	d.setStateLocked(StateStopping, "")
	d.mu.Unlock()

	err := d.teardown(ctx)

	d.mu.Lock()
	d.setStateLocked(StateStopped, "")
	d.mu.Unlock()
	return err
}

// teardown stops handlers, closes the transport and waits for the read
// loop to finish.
func (d *Driver) teardown(ctx context.Context) error {
	var errs []error
	if err := d.dispatcher.CleanupAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("handler cleanup: %w", err))
	}
	if err := d.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transport: %w", err))
	}

	d.mu.Lock()
	done := d.readDone
	d.mu.Unlock()
	if done != nil {
		<-done
	}
	return errors.Join(errs...)
}

// readLoop decodes inbound frames and routes the packets. It runs until
// the transport's packet channel closes.
func (d *Driver) readLoop() {
	for data := range d.transport.Packets() {
		pkt, err := spp.Decode(data)
		if err != nil {
			d.logger.Warn("dropping undecodable frame", "size", len(data), "error", err)
			d.logDecodeError(err)
			continue
		}
		correlated := d.client.HandleInbound(pkt)
		d.logPacket(pkt, correlated)
	}

	// Fail anything still waiting for a response.
	_ = d.client.Close()

	d.mu.Lock()
	disconnected := d.state == StateRunning
	done := d.readDone
	d.mu.Unlock()

	if disconnected {
		// The device dropped the link. Periodic tasks see liveness go
		// false, but stop them deterministically rather than waiting for
		// their next failed update.
		if err := d.dispatcher.CleanupAll(context.Background()); err != nil {
			d.logger.Warn("handler cleanup after disconnect", "error", err)
		}
		d.mu.Lock()
		d.setStateLocked(StateStopped, "transport closed")
		d.mu.Unlock()
	}

	close(done)
}

// State returns the current session state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Started reports whether the session is live end to end.
func (d *Driver) Started() bool {
	return d.State() == StateRunning && d.transport.Started()
}

// GetProperty reads one property, returning def when it is unknown.
func (d *Driver) GetProperty(namespace, key string, def any) any {
	return d.store.Get(namespace, key, def)
}

// Namespace returns a copy of one property namespace.
func (d *Driver) Namespace(namespace string) map[string]any {
	return d.store.Namespace(namespace)
}

// Snapshot returns a copy of the whole property tree.
func (d *Driver) Snapshot() map[string]map[string]any {
	return d.store.Snapshot()
}

// Subscribe registers an event bus member.
func (d *Driver) Subscribe() eventbus.MemberID {
	return d.bus.Subscribe()
}

// Unsubscribe removes an event bus member and resolves its pending wait.
func (d *Driver) Unsubscribe(id eventbus.MemberID) {
	d.bus.Unsubscribe(id)
}

// WaitForEvent blocks until the member's next event, its removal, or
// ctx cancellation.
func (d *Driver) WaitForEvent(ctx context.Context, id eventbus.MemberID) (eventbus.Event, error) {
	return d.bus.WaitForEvent(ctx, id)
}

// Battery returns the battery handler for direct operations.
func (d *Driver) Battery() *handler.Battery {
	return d.battery
}

// NoiseControl returns the noise-control handler for direct operations.
func (d *Driver) NoiseControl() *handler.NoiseControl {
	return d.noise
}

// setStateLocked transitions the state, logs it and notifies
// subscribers. Caller holds d.mu; Emit never blocks so this is safe.
func (d *Driver) setStateLocked(next State, reason string) {
	if d.state == next {
		return
	}
	prev := d.state
	d.state = next
	d.logger.Info("driver state changed", "from", prev, "to", next, "reason", reason)
	d.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: d.connectionID(),
		Layer:        log.LayerDriver,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: prev.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})
	d.bus.Emit(eventbus.KindStateChanged, next.String())
}

func (d *Driver) logPacket(pkt *spp.Packet, correlated bool) {
	d.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: d.connectionID(),
		Direction:    log.DirectionIn,
		Layer:        log.LayerCodec,
		Category:     log.CategoryMessage,
		Packet: &log.PacketEvent{
			Command:      uint16(pkt.Command),
			ParameterIDs: pkt.ParameterIDs(),
			Correlated:   correlated,
		},
	})
}

func (d *Driver) logDecodeError(err error) {
	d.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: d.connectionID(),
		Direction:    log.DirectionIn,
		Layer:        log.LayerCodec,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerCodec,
			Message: err.Error(),
		},
	})
}

func (d *Driver) connectionID() string {
	if t, ok := d.transport.(interface{ ConnectionID() string }); ok {
		return t.ConnectionID()
	}
	return ""
}

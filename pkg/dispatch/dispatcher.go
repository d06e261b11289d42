package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/openfreebuds/freebuds-go/pkg/spp"
)

// Registry errors.
var (
	// ErrCommandClaimed indicates a command id is already registered to
	// another handler.
	ErrCommandClaimed = errors.New("command already claimed")

	// ErrDuplicateHandler indicates a handler id is already registered.
	ErrDuplicateHandler = errors.New("handler id already registered")
)

// Handler processes packets for the command ids it claims.
type Handler interface {
	// ID returns the handler's stable identifier, e.g. "battery".
	ID() string

	// Commands returns the command ids this handler claims.
	Commands() []spp.Command

	// OnInit runs once at driver start. Stateful handlers perform their
	// bootstrap read here, feeding the response through OnPackage, so
	// the property store is populated before any consumer reads it.
	OnInit(ctx context.Context) error

	// OnPackage applies one inbound packet to the handler's state.
	OnPackage(ctx context.Context, pkt *spp.Packet) error

	// Cleanup releases handler resources, including any background
	// task. It must be idempotent and must not return before owned
	// tasks have fully stopped.
	Cleanup(ctx context.Context) error
}

// Dispatcher routes inbound packets to registered handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	byCmd    map[spp.Command]Handler
	handlers []Handler
	ids      map[string]struct{}
	logger   *slog.Logger
}

// New creates an empty dispatcher. logger may be nil.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		byCmd:  make(map[spp.Command]Handler),
		ids:    make(map[string]struct{}),
		logger: logger,
	}
}

// Register adds a handler, claiming all its commands. Claiming an
// already-claimed command or reusing a handler id is a configuration
// error; registration is all-or-nothing.
func (d *Dispatcher) Register(h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, dup := d.ids[h.ID()]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateHandler, h.ID())
	}
	cmds := h.Commands()
	for _, cmd := range cmds {
		if owner, claimed := d.byCmd[cmd]; claimed {
			return fmt.Errorf("%w: %s belongs to %q", ErrCommandClaimed, cmd, owner.ID())
		}
	}
	for _, cmd := range cmds {
		d.byCmd[cmd] = h
	}
	d.ids[h.ID()] = struct{}{}
	d.handlers = append(d.handlers, h)
	return nil
}

// Dispatch routes one inbound packet to the handler claiming its command.
// Unroutable commands and handler failures are logged, never surfaced:
// both come from firmware variance and must not take the driver down.
func (d *Dispatcher) Dispatch(ctx context.Context, pkt *spp.Packet) {
	d.mu.RLock()
	h, ok := d.byCmd[pkt.Command]
	d.mu.RUnlock()

	if !ok {
		d.logger.Debug("no handler for command", "command", pkt.Command.String())
		return
	}
	if err := h.OnPackage(ctx, pkt); err != nil {
		d.logger.Warn("handler failed to apply packet",
			"handler", h.ID(), "command", pkt.Command.String(), "error", err)
	}
}

// InitAll runs every handler's OnInit in registration order. The first
// failure aborts initialization; the driver decides what to do with the
// partially-initialized registry.
func (d *Dispatcher) InitAll(ctx context.Context) error {
	for _, h := range d.snapshot() {
		if err := h.OnInit(ctx); err != nil {
			return fmt.Errorf("init handler %q: %w", h.ID(), err)
		}
		d.logger.Debug("handler initialized", "handler", h.ID())
	}
	return nil
}

// CleanupAll cleans up every handler in reverse registration order and
// joins their errors. Every handler gets its chance to stop regardless
// of earlier failures.
func (d *Dispatcher) CleanupAll(ctx context.Context) error {
	handlers := d.snapshot()
	var errs []error
	for i := len(handlers) - 1; i >= 0; i-- {
		if err := handlers[i].Cleanup(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cleanup handler %q: %w", handlers[i].ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Handlers returns the registered handlers in registration order.
func (d *Dispatcher) Handlers() []Handler {
	return d.snapshot()
}

func (d *Dispatcher) snapshot() []Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Handler(nil), d.handlers...)
}

// Package interactive provides the interactive command-line interface
// for freebudsctl.
package interactive

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/chzyer/readline"

	"github.com/openfreebuds/freebuds-go/pkg/driver"
	"github.com/openfreebuds/freebuds-go/pkg/eventbus"
	"github.com/openfreebuds/freebuds-go/pkg/handler"
)

// Shell handles interactive mode for freebudsctl.
type Shell struct {
	drv *driver.Driver
	rl  *readline.Instance

	// watching enables live event printing.
	watching atomic.Bool
}

// New creates a new interactive shell over a started driver.
func New(drv *driver.Driver) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "freebuds> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{drv: drv, rl: rl}, nil
}

// Run starts the interactive command loop. It returns when the user
// quits, ctx is cancelled, or the device disconnects.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	go s.eventLoop(ctx, cancel)

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "battery", "b":
			s.cmdBattery()

		case "anc", "a":
			s.cmdANC()

		case "set-anc", "sa":
			s.cmdSetANC(ctx, args)

		case "get", "g":
			s.cmdGet(args)

		case "refresh", "r":
			s.cmdRefresh(ctx)

		case "state":
			fmt.Fprintf(s.rl.Stdout(), "Driver state: %s\n", s.drv.State())

		case "watch", "w":
			s.cmdWatch()

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

// eventLoop prints property changes while watching is enabled and shuts
// the shell down when the driver stops.
func (s *Shell) eventLoop(ctx context.Context, cancel context.CancelFunc) {
	member := s.drv.Subscribe()
	defer s.drv.Unsubscribe(member)

	for {
		event, err := s.drv.WaitForEvent(ctx, member)
		if err != nil {
			return
		}

		switch event.Kind {
		case eventbus.KindPropertyChanged:
			if !s.watching.Load() || len(event.Args) == 0 {
				continue
			}
			namespace, _ := event.Args[0].(string)
			fmt.Fprintf(s.rl.Stdout(), "[%s] %s\n", namespace, formatNamespace(s.drv.Namespace(namespace)))

		case eventbus.KindStateChanged:
			if len(event.Args) == 0 {
				continue
			}
			state, _ := event.Args[0].(string)
			fmt.Fprintf(s.rl.Stdout(), "Driver state: %s\n", state)
			if state == driver.StateStopped.String() {
				fmt.Fprintln(s.rl.Stdout(), "Device disconnected")
				cancel()
				return
			}
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `Commands:
  battery, b           Show battery levels
  anc, a               Show noise-control mode
  set-anc, sa <mode>   Set noise-control mode: off, cancellation, awareness
  get, g <ns> [key]    Read raw properties
  refresh, r           Request a fresh battery report
  state                Show driver state
  watch, w             Toggle live property change output
  help, ?              Show this help
  quit, q              Exit`)
}

func (s *Shell) cmdBattery() {
	ns := s.drv.Namespace(handler.NamespaceBattery)
	if len(ns) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No battery data yet")
		return
	}

	out := s.rl.Stdout()
	if v, ok := ns["global"]; ok {
		fmt.Fprintf(out, "Battery: %v%%\n", v)
	}
	if v, ok := ns["left"]; ok {
		fmt.Fprintf(out, "  left:  %v%%\n", v)
	}
	if v, ok := ns["right"]; ok {
		fmt.Fprintf(out, "  right: %v%%\n", v)
	}
	if v, ok := ns["case"]; ok {
		fmt.Fprintf(out, "  case:  %v%%\n", v)
	}
	if charging, ok := ns["is_charging"].(bool); ok && charging {
		fmt.Fprintln(out, "  charging")
	}
}

func (s *Shell) cmdANC() {
	mode := s.drv.GetProperty(handler.NamespaceNoise, "mode_name", nil)
	if mode == nil {
		fmt.Fprintln(s.rl.Stdout(), "No noise-control data yet")
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Noise control: %v\n", mode)
}

func (s *Shell) cmdSetANC(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: set-anc <off|cancellation|awareness>")
		return
	}

	var mode handler.NoiseMode
	switch strings.ToLower(args[0]) {
	case "off":
		mode = handler.NoiseOff
	case "cancellation", "anc":
		mode = handler.NoiseCancellation
	case "awareness", "transparency":
		mode = handler.NoiseAwareness
	default:
		fmt.Fprintf(s.rl.Stdout(), "Unknown mode: %s\n", args[0])
		return
	}

	if err := s.drv.NoiseControl().SetMode(ctx, mode); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Noise control set to %s\n", mode)
}

func (s *Shell) cmdGet(args []string) {
	out := s.rl.Stdout()
	switch len(args) {
	case 0:
		for namespace, values := range s.drv.Snapshot() {
			fmt.Fprintf(out, "[%s] %s\n", namespace, formatNamespace(values))
		}
	case 1:
		fmt.Fprintln(out, formatNamespace(s.drv.Namespace(args[0])))
	default:
		fmt.Fprintf(out, "%v\n", s.drv.GetProperty(args[0], args[1], "<unset>"))
	}
}

func (s *Shell) cmdRefresh(ctx context.Context) {
	if err := s.drv.Battery().RequestUpdate(ctx); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Failed: %v\n", err)
		return
	}
	s.cmdBattery()
}

func (s *Shell) cmdWatch() {
	next := !s.watching.Load()
	s.watching.Store(next)
	if next {
		fmt.Fprintln(s.rl.Stdout(), "Watching property changes (run 'watch' again to stop)")
	} else {
		fmt.Fprintln(s.rl.Stdout(), "Stopped watching")
	}
}

// formatNamespace renders a namespace map with stable key order.
func formatNamespace(values map[string]any) string {
	if len(values) == 0 {
		return "(empty)"
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, values[k]))
	}
	return strings.Join(pairs, " ")
}

// Package bcp implements a bridge between a pinball machine host and one
// or more media-controller peers speaking the Backbox Control Protocol:
// a bidirectional, line-oriented protocol carried over plain TCP.
package bcp

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/HarryXS/mpf/bcp/codec"
)

// Bridge is the public facade a host embeds. Every method is safe to
// call from any goroutine; they all just enqueue work onto the Router's
// single event-loop goroutine or are documented no-ops.
type Bridge struct {
	cfg    *Config
	collab Collaborators
	router *Router
	log    *log.Logger

	// disabled is true when cfg has no connections configured. Per spec
	// §7's ConfigError handling, an unconfigured bridge is not an error:
	// every public method silently does nothing.
	disabled bool
}

// Collaborators bundles every host-side interface the Router dispatches
// against, so New takes one argument instead of seven positional ones.
type Collaborators struct {
	Bus      EventBus
	Switches SwitchController
	Modes    ModeController
	Shows    ShowQueue
	Clock    Clock
	Hardware HardwarePlatform
	LEDs     LEDController
	Monitors Monitors
}

// New builds a Bridge from a static Config and its host collaborators. A
// Config with no Connections entries produces a disabled Bridge: every
// method becomes a no-op instead of returning ErrConfigNotPresent,
// matching the original's quiet self-disablement.
//
// New also wires the four host-event hooks the original's constructor
// registers directly (init_phase_1, init_phase_2, player_add_success,
// machine_reset_phase_1), plus the bcp_get_led_coordinates hook the
// supplemented get_led_coordinates feature answers.
func New(cfg *Config, collab Collaborators, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.Default()
	}
	if cfg == nil || len(cfg.Connections) == 0 {
		return &Bridge{cfg: cfg, log: logger, disabled: true}
	}
	if cfg.EventMap == nil {
		cfg.EventMap = defaultEventMap()
	}

	b := &Bridge{cfg: cfg, log: logger, collab: collab}
	b.router = NewRouter(cfg, collab.Bus, collab.Switches, collab.Modes, collab.Shows, collab.Clock, collab.Hardware, collab.LEDs, collab.Monitors, logger)

	if collab.Bus != nil {
		collab.Bus.AddHandler("init_phase_1", func(map[string]codec.Value) {
			b.router.ConfigureHardware()
		})
		collab.Bus.AddHandler("init_phase_2", func(map[string]codec.Value) {
			b.router.ReplayMachineVariables()
		})
		collab.Bus.AddHandler("player_add_success", func(kwargs map[string]codec.Value) {
			b.sendPlayerAdded(kwargs)
		})
		collab.Bus.AddHandler("machine_reset_phase_1", func(map[string]codec.Value) {
			b.router.Send("", "reset", nil, nil)
		})
		collab.Bus.AddHandler("bcp_get_led_coordinates", func(map[string]codec.Value) {
			b.sendLEDCoordinates()
		})
	}

	return b
}

// sendPlayerAdded answers the player_add_success host event with the
// canonical player_added command, matching the original's bcp_player_added.
func (b *Bridge) sendPlayerAdded(kwargs map[string]codec.Value) {
	num, ok := kwargs["player_num"]
	if !ok {
		num, ok = kwargs["num"]
		if !ok {
			return
		}
	}
	b.router.Send("", "player_added", map[string]codec.Value{"player_num": num}, nil)
}

// sendLEDCoordinates answers a bcp_get_led_coordinates host event with a
// single "set" command carrying every LED that has both x and y
// configured, delimited as "led_01:x,y;led_02:x,y;...", matching the
// original's get_led_coordinates.
func (b *Bridge) sendLEDCoordinates() {
	if b.collab.LEDs == nil {
		return
	}
	coords := b.collab.LEDs.AllLEDCoordinates()
	names := make([]string, 0, len(coords))
	for name := range coords {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		pos := coords[name]
		parts = append(parts, fmt.Sprintf("%s:%d,%d", name, pos.X, pos.Y))
	}
	b.router.Send("", "set", map[string]codec.Value{
		"led_coordinates": codec.String(strings.Join(parts, ";")),
	}, nil)
}

// Start connects to every configured peer and begins routing. It is a
// no-op on a disabled Bridge.
func (b *Bridge) Start(ctx context.Context) error {
	if b.disabled {
		return nil
	}
	return b.router.Start(ctx)
}

// Shutdown sends goodbye to every peer, closes their sockets and stops
// the Router goroutine. It is a no-op on a disabled Bridge.
func (b *Bridge) Shutdown() {
	if b.disabled {
		return
	}
	b.router.Stop()
}

// Send pushes an outbound command to one named peer, or to every
// connected peer if target is empty. It is a no-op on a disabled Bridge.
func (b *Bridge) Send(target, command string, params map[string]codec.Value) {
	if b.disabled {
		return
	}
	b.router.Send(target, command, params, nil)
}

// SendFrame pushes an outbound command carrying a binary payload, used
// for the dmd_frame/rgb_dmd_frame commands a host pushes to a peer when
// it — rather than the peer — owns the display.
func (b *Bridge) SendFrame(target, command string, frame []byte) {
	if b.disabled {
		return
	}
	b.router.Send(target, command, nil, frame)
}

// AddRegisteredTriggerEvent subscribes every connected peer to event,
// forwarding it as a "trigger" command whenever the host posts it. It is
// a no-op on a disabled Bridge.
func (b *Bridge) AddRegisteredTriggerEvent(event string) {
	if b.disabled {
		return
	}
	b.router.AddRegisteredTriggerEvent(event)
}

// RemoveRegisteredTriggerEvent undoes AddRegisteredTriggerEvent.
func (b *Bridge) RemoveRegisteredTriggerEvent(event string) {
	if b.disabled {
		return
	}
	b.router.RemoveRegisteredTriggerEvent(event)
}

// Disabled reports whether this Bridge was built from a Config with no
// connections and is therefore inert.
func (b *Bridge) Disabled() bool {
	return b.disabled
}

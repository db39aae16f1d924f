package bcp

import "github.com/HarryXS/mpf/bcp/codec"

// EventHandler receives the keyword arguments a host event was posted
// with, already decoded into codec.Value form.
type EventHandler func(kwargs map[string]codec.Value)

// EventBus is the subset of the host's event system the Router drives:
// subscribing to the events a peer asked to be notified on (register_trigger
// / add_registered_trigger_event) and posting events a peer raised.
type EventBus interface {
	AddHandler(event string, handler EventHandler)
	RemoveHandlerByEvent(event string, handler EventHandler)
	Post(event string, kwargs map[string]codec.Value)
}

// SwitchController lets the Router apply an inbound "switch" command to
// the host's logical switch state.
type SwitchController interface {
	// ProcessSwitch applies a switch transition. state is 1 for active,
	// 0 for inactive, matching the wire tag's int encoding. logical is
	// always true for a BCP-originated switch change, distinguishing it
	// from a hardware-debounced transition at the host's own input layer.
	ProcessSwitch(name string, state int, logical bool) error
	// IsActive reports the current state of a known switch, used to
	// resolve an inbound state of -1 ("flip") to a concrete 0 or 1.
	IsActive(name string) bool
	// HasSwitch reports whether name is a switch the host knows about.
	// An inbound switch message for an unknown name is logged and
	// dropped rather than forwarded to ProcessSwitch.
	HasSwitch(name string) bool
}

// ModeStartFunc is registered with the ModeController under the "mode"
// config section. The host calls it when a mode starts; the returned stop
// func is what the host calls when the mode ends, so the peer can be told
// the mode stopped too.
type ModeStartFunc func(modeName string, priority int) (stop func())

// ModeController lets the Router register itself as a start method that
// the host calls whenever a mode starts.
type ModeController interface {
	RegisterStartMethod(kind string, fn ModeStartFunc)
}

// ShowQueue lets the Router drive externally-supplied shows (the "externally
// triggered" show type whose frames a peer pushes over BCP).
type ShowQueue interface {
	AddExternalShowStart(name string, kwargs map[string]codec.Value)
	AddExternalShowStop(name string)
	AddExternalShowFrame(name string, kwargs map[string]codec.Value)
}

// Clock is the slice of the host's scheduler the Router needs: a way to
// defer work onto the host's own timeline, and the configured display
// frame rate a dmd_start handshake reports to a peer.
type Clock interface {
	ScheduleOnce(cb func(), priority int)
	MaxFPS() float64
}

// FrameSink receives successive raw DMD/RGB DMD frames.
type FrameSink func(frame []byte)

// HardwarePlatform exposes whatever physical (or virtual) DMD the host has
// configured. ConfigureDMD/ConfigureRGBDMD register the sink the Router
// calls whenever the platform itself produces a frame that needs pushing
// out to every peer; WriteDMDFrame/WriteRGBDMDFrame are the reverse path,
// called by the Router when a peer pushes a frame that needs writing to
// the physical display.
type HardwarePlatform interface {
	HasDMD() bool
	ConfigureDMD(sink FrameSink)
	WriteDMDFrame(frame []byte)
	HasRGBDMD() bool
	ConfigureRGBDMD(sink FrameSink)
	WriteRGBDMDFrame(frame []byte)
}

// LEDPosition is one LED's configured physical coordinates.
type LEDPosition struct {
	X, Y int
}

// LEDController reports the physical coordinates of every LED that has
// both an x and y configured, backing the supplemented get_led_coordinates
// snapshot.
type LEDController interface {
	AllLEDCoordinates() map[string]LEDPosition
}

// PlayerVarHandler is called on every player variable change: name of the
// variable, its new and previous value, a change delta, and the number of
// the player it changed for.
type PlayerVarHandler func(name string, value, prevValue, change codec.Value, playerNum int)

// MachineVarHandler is the machine-variable analog of PlayerVarHandler.
type MachineVarHandler func(name string, value, prevValue, change codec.Value)

// Monitors lets the Router observe player/machine variable changes (the
// outbound player_variable/player_score/machine_variable translation) and
// answer the "is this name already a player variable" question the
// player_<var> trigger-suppression rule needs.
type Monitors interface {
	RegisterPlayerMonitor(fn PlayerVarHandler)
	RegisterMachineVarMonitor(fn MachineVarHandler)
	// MachineVariables snapshots every current machine variable, used to
	// replay them to a peer once a connection is established.
	MachineVariables() map[string]codec.Value
	// CurrentPlayerVariables snapshots the variables of whichever player
	// is currently up, or nil if no game is in progress. It backs %var%
	// template substitution in EventMap entries.
	CurrentPlayerVariables() map[string]codec.Value
	// IsPlayerVar reports whether name is a variable tracked on the
	// current player, used to suppress a redundant generic trigger for
	// player_<name> when the player-variable path already covers it.
	IsPlayerVar(name string) bool
}

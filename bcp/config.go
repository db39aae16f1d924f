package bcp

import "strings"

// allVarsSentinel is the configuration value that means "send every
// variable of this kind", mirroring the original's "__all__" entry in
// player_variables/machine_variables.
const allVarsSentinel = "__all__"

// ConnectionConfig describes one configured peer endpoint. The bridge
// dials out to Host:Port; it never accepts inbound connections.
type ConnectionConfig struct {
	Name           string
	Host           string
	Port           int
	RequireHandshake bool // not read: a session is open as soon as the dial succeeds, and a peer's hello is never awaited
}

// EventMapEntry maps one host event to the BCP command and parameter
// template sent when it fires. Param values may reference the posting
// event's own kwargs with a leading '%', e.g. "%ball" forwards kwarg
// "ball" under the wire parameter key it's assigned to here.
type EventMapEntry struct {
	Command string
	Params  map[string]string
}

// Config is the full static configuration for a bridge instance: which
// peers to dial, which host events become outbound commands, and which
// state variables flow to peers automatically as they change.
type Config struct {
	// ControllerName/ControllerVersion identify the host in the hello
	// handshake's controller_name/controller_version parameters.
	ControllerName    string
	ControllerVersion string

	Connections map[string]ConnectionConfig
	EventMap    map[string]EventMapEntry

	// PlayerVariables lists the player variable names forwarded to peers
	// on every change, or contains allVarsSentinel alone to forward all of
	// them.
	PlayerVariables []string
	// MachineVariables is the machine-variable analog of PlayerVariables.
	MachineVariables []string

	// FailFastOnPeerLoss controls whether losing any one peer tears the
	// whole bridge down (the original's behavior) or only that peer.
	// The zero value is false: a dropped peer is removed while the
	// remaining peers stay connected, and Start skips a peer that fails
	// to connect. Set it to true for the tear-down behavior.
	FailFastOnPeerLoss bool
}

// sendsAllPlayerVars reports whether every player variable change should
// be forwarded, per the allVarsSentinel convention.
func (c *Config) sendsAllPlayerVars() bool {
	return containsVar(c.PlayerVariables, allVarsSentinel)
}

func (c *Config) sendsAllMachineVars() bool {
	return containsVar(c.MachineVariables, allVarsSentinel)
}

func (c *Config) sendsPlayerVar(name string) bool {
	return c.sendsAllPlayerVars() || containsVar(c.PlayerVariables, name)
}

func (c *Config) sendsMachineVar(name string) bool {
	return c.sendsAllMachineVars() || containsVar(c.MachineVariables, name)
}

func containsVar(vars []string, name string) bool {
	for _, v := range vars {
		if strings.EqualFold(v, name) {
			return true
		}
	}
	return false
}

// defaultEventMap seeds the EventMap with the vocabulary spec §9 calls
// out as dropped by the distillation but present in the original
// implementation's bcp.py: ball and player lifecycle, shot and timer
// notifications. New uses this seed only when Config.EventMap is nil; a
// caller-supplied EventMap replaces it entirely.
//
// player_added and reset are deliberately absent here: both have a
// dedicated host-event hook (player_add_success, machine_reset_phase_1)
// wired directly in bridge.go, and giving them an EventMap entry too
// would double-send them through the generic trigger path as well.
func defaultEventMap() map[string]EventMapEntry {
	return map[string]EventMapEntry{
		"ball_started": {
			Command: "ball_start",
			Params:  map[string]string{"player": "%player_num", "ball": "%ball"},
		},
		"ball_ending": {
			Command: "ball_end",
			Params:  map[string]string{},
		},
		"player_turn_started": {
			Command: "player_turn_start",
			Params:  map[string]string{"player": "%number"},
		},
		"shot_": {
			Command: "shot",
			Params:  map[string]string{"name": "%name"},
		},
		"timer_tick": {
			Command: "timer",
			Params:  map[string]string{"name": "%name", "ticks": "%ticks"},
		},
		"timer_complete": {
			Command: "timer",
			Params:  map[string]string{"name": "%name"},
		},
	}
}

// defaultRegisteredTriggers preseeds the trigger-subscription registry
// with the events bcp.py's __init__ always subscribes to a generic
// trigger forward, even before a peer issues its own register_trigger.
// player_add_success and player_score are deliberately excluded: both
// are covered by a dedicated path (the player_add_success host hook and
// the player-variable monitor's "score" special case, respectively) and
// would otherwise be double-sent.
func defaultRegisteredTriggers() []string {
	return []string{
		"ball_started",
		"ball_ending",
	}
}

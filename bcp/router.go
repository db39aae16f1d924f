package bcp

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/HarryXS/mpf/bcp/codec"
)

// inboundHandler processes one decoded command from a peer. Returning an
// error never tears the session down by itself: Router logs it (as an
// UnknownCommandError or InvalidArgumentError) and moves on, matching
// spec §7's "warn and continue" rule for per-command faults.
type inboundHandler func(r *Router, s *PeerSession, params map[string]codec.Value, payload []byte) error

// routerCommand is the envelope the facade and sessions both send onto
// the Router's single command channel, mirroring the teacher's *Event
// sent on Node.commands.
type routerCommand struct {
	kind string
	// sendTarget/sendCommand/sendParams/sendPayload: outbound send.
	sendTarget  string
	sendCommand string
	sendParams  map[string]codec.Value
	sendPayload []byte

	// triggerEvent: AddRegisteredTriggerEvent / RemoveRegisteredTriggerEvent.
	triggerEvent string

	// session: sessionClosed notification, handled only on the loop
	// goroutine so the sessions map and connection counter are never
	// touched from a session's own goroutine.
	session *PeerSession

	shutdownDone chan struct{}
}

type peerMessage struct {
	session *PeerSession
	cmd     string
	params  map[string]codec.Value
	payload []byte
}

// Router is the single goroutine that owns every PeerSession, the
// trigger-subscription registry and the outbound translation table.
// Nothing outside its own handler loop ever touches this struct's
// fields; the facade and sessions only ever communicate with it over
// channels, directly following the teacher's Node/handler split.
type Router struct {
	cfg      *Config
	bus      EventBus
	switches SwitchController
	modes    ModeController
	shows    ShowQueue
	clock    Clock
	hw       HardwarePlatform
	leds     LEDController
	monitors Monitors
	log      *log.Logger

	sessions map[string]*PeerSession
	triggers *triggerRegistry

	commands chan routerCommand
	inbox    chan peerMessage
	quit     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	activeConnections int
	volume            float64

	dispatch map[string]inboundHandler
}

// NewRouter builds a Router wired against its host collaborators but does
// not yet start its goroutine or dial any peer; call Start for that. It
// registers the Router as a mode start method and subscribes the default
// trigger vocabulary immediately, matching the original's constructor
// (these are plain field/bus setup, not goroutine-dependent).
func NewRouter(cfg *Config, bus EventBus, sw SwitchController, mc ModeController, sq ShowQueue, clk Clock, hw HardwarePlatform, leds LEDController, monitors Monitors, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}
	r := &Router{
		cfg:      cfg,
		bus:      bus,
		switches: sw,
		modes:    mc,
		shows:    sq,
		clock:    clk,
		hw:       hw,
		leds:     leds,
		monitors: monitors,
		log:      logger,
		sessions: make(map[string]*PeerSession),
		triggers: newTriggerRegistry(),
		commands: make(chan routerCommand, 256),
		inbox:    make(chan peerMessage, 256),
		quit:     make(chan struct{}),
		volume:   1.0,
	}
	r.dispatch = r.buildDispatch()
	r.registerModeStartMethod()
	r.registerMonitors()

	for _, event := range defaultRegisteredTriggers() {
		event := event
		if r.triggers.add(event) && r.bus != nil {
			r.bus.AddHandler(event, func(kwargs map[string]codec.Value) {
				r.onTriggerEvent(event, kwargs)
			})
		}
	}
	return r
}

func (r *Router) buildDispatch() map[string]inboundHandler {
	return map[string]inboundHandler{
		"switch":                          (*Router).handleSwitch,
		"trigger":                         (*Router).handleTrigger,
		"register_trigger":                (*Router).handleRegisterTrigger,
		"remove_registered_trigger_event": (*Router).handleRemoveRegisteredTrigger,
		"get":                             (*Router).handleGet,
		"set":                             (*Router).handleSet,
		"reset_complete":                  (*Router).handleResetComplete,
		"external_show_start":             (*Router).handleExternalShowStart,
		"external_show_stop":              (*Router).handleExternalShowStop,
		"external_show_frame":             (*Router).handleExternalShowFrame,
		"dmd_frame":                       (*Router).handleDMDFrame,
		"rgb_dmd_frame":                   (*Router).handleRGBDMDFrame,
		"config":                          (*Router).handleConfig,
		"shot":                            (*Router).handleShot,
		"error":                           (*Router).handleError,
	}
}

// registerModeStartMethod registers the Router as a start method under
// the "mode" config section, so it is told about every mode start
// (original: machine.mode_controller.
// register_start_method(self.bcp_mode_start, 'mode')). The returned stop
// closure is what the host calls when the mode ends.
func (r *Router) registerModeStartMethod() {
	if r.modes == nil {
		return
	}
	r.modes.RegisterStartMethod("mode", func(modeName string, priority int) (stop func()) {
		r.Send("", "mode_start", map[string]codec.Value{
			"name":     codec.String(modeName),
			"priority": codec.Int(int64(priority)),
		}, nil)
		return func() {
			r.Send("", "mode_stop", map[string]codec.Value{"name": codec.String(modeName)}, nil)
		}
	})
}

// registerMonitors hooks the Router into the host's player/machine
// variable change notifications (original: register_monitor('player', ...)
// / register_monitor('machine_vars', ...)).
func (r *Router) registerMonitors() {
	if r.monitors == nil {
		return
	}
	r.monitors.RegisterPlayerMonitor(r.onPlayerVarChange)
	r.monitors.RegisterMachineVarMonitor(r.onMachineVarChange)
}

// Start opens every configured connection and then launches the Router's
// event loop. Sessions are all established before the loop goroutine
// starts so construction of the sessions map is single-threaded; once
// the loop is running, every later mutation to Router state is either
// made from the loop goroutine itself or funneled through r.commands.
func (r *Router) Start(ctx context.Context) error {
	names := make([]string, 0, len(r.cfg.Connections))
	for name := range r.cfg.Connections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cc := r.cfg.Connections[name]
		sess := newPeerSession(cc, r, r.log)
		if err := sess.open(ctx); err != nil {
			if r.cfg.FailFastOnPeerLoss {
				return err
			}
			r.log.Printf("bcp: peer %s failed to connect: %v", name, err)
			continue
		}
		r.sessions[name] = sess
		r.activeConnections++
	}

	r.wg.Add(1)
	go r.loop()

	for _, s := range r.sessions {
		r.sendBootstrap(s)
	}
	return nil
}

// loop is the Router's only goroutine touching Router state, mirroring
// the teacher's Node.handler actor loop.
func (r *Router) loop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.quit:
			return
		case cmd := <-r.commands:
			r.handleCommand(cmd)
		case m := <-r.inbox:
			r.handlePeerMessage(m)
		}
	}
}

func (r *Router) handleCommand(cmd routerCommand) {
	switch cmd.kind {
	case "send":
		r.sendTo(cmd.sendTarget, cmd.sendCommand, cmd.sendParams, cmd.sendPayload)
	case "addTrigger":
		event := cmd.triggerEvent
		if r.triggers.add(event) && r.bus != nil {
			r.bus.AddHandler(event, func(kwargs map[string]codec.Value) {
				r.onTriggerEvent(event, kwargs)
			})
		}
	case "removeTrigger":
		if r.triggers.remove(cmd.triggerEvent) && r.bus != nil {
			r.bus.RemoveHandlerByEvent(cmd.triggerEvent, nil)
		}
	case "sessionClosed":
		r.onSessionClosed(cmd.session)
	case "configureHardware":
		r.configureHardware()
	case "replayMachineVars":
		r.replayMachineVariables()
	case "shutdown":
		r.shutdown()
		close(cmd.shutdownDone)
	}
}

func (r *Router) handlePeerMessage(m peerMessage) {
	h, ok := r.dispatch[m.cmd]
	if !ok {
		r.log.Printf("bcp: %v", &UnknownCommandError{Command: m.cmd})
		return
	}
	if err := h(r, m.session, m.params, m.payload); err != nil {
		r.log.Printf("bcp: %v", err)
	}
}

func (r *Router) sendTo(target, command string, params map[string]codec.Value, payload []byte) {
	line, err := codec.Encode(command, params)
	if err != nil {
		r.log.Printf("bcp: failed to encode outbound %s: %v", command, err)
		return
	}
	if target == "" {
		for _, s := range r.sessions {
			s.send(line, payload)
		}
		return
	}
	if s, ok := r.sessions[target]; ok {
		s.send(line, payload)
	}
}

// onTriggerEvent is the handler behind every trigger-registry
// subscription, whether seeded as a default, requested by a peer's
// register_trigger command, or added on the host's behalf via
// AddRegisteredTriggerEvent. It implements spec §8 property 6's
// suppression rule (a player_<var> event is not forwarded here if the
// player-variable monitor path already sends it) and prefers an
// EventMap translation over the generic "trigger" forward when one is
// configured for this event.
func (r *Router) onTriggerEvent(event string, kwargs map[string]codec.Value) {
	if rest, ok := strings.CutPrefix(event, "player_"); ok {
		if r.monitors != nil && r.monitors.IsPlayerVar(rest) {
			return
		}
	}
	if entry, ok := r.cfg.EventMap[event]; ok {
		r.sendEventMapEntry(entry, kwargs)
		return
	}
	r.broadcastRaw(event, kwargs)
}

// sendEventMapEntry expands one EventMapEntry's parameter templates
// against the firing event's kwargs and sends the translated command.
// A template that is exactly "%kwarg" forwards that kwarg's Value
// verbatim, preserving its type; any other template is expanded as a
// string via expandTemplate (which also substitutes "%var%" against the
// current player's variables).
func (r *Router) sendEventMapEntry(entry EventMapEntry, kwargs map[string]codec.Value) {
	params := make(map[string]codec.Value, len(entry.Params))
	for wireKey, tmpl := range entry.Params {
		if rest, ok := strings.CutPrefix(tmpl, "%"); ok && rest != "" && !strings.Contains(rest, "%") {
			if v, ok := kwargs[rest]; ok {
				params[wireKey] = v
			}
			continue
		}
		params[wireKey] = codec.String(r.expandTemplate(tmpl, kwargs))
	}
	r.sendTo("", entry.Command, params, nil)
}

// expandTemplate substitutes "%varname%" against the current player's
// variables and embedded "%kwargname" references against the firing
// event's own kwargs, matching the original's _replace_variables.
func (r *Router) expandTemplate(value string, kwargs map[string]codec.Value) string {
	if !strings.Contains(value, "%") {
		return value
	}
	if r.monitors != nil {
		for name, v := range r.monitors.CurrentPlayerVariables() {
			placeholder := "%" + name + "%"
			if strings.Contains(value, placeholder) {
				value = strings.ReplaceAll(value, placeholder, v.StringValue())
			}
		}
	}
	for name, v := range kwargs {
		placeholder := "%" + name
		if strings.Contains(value, placeholder) {
			value = strings.ReplaceAll(value, placeholder, v.StringValue())
		}
	}
	return value
}

func (r *Router) configureHardware() {
	if r.hw == nil {
		return
	}
	if r.hw.HasDMD() {
		r.hw.ConfigureDMD(func(frame []byte) {
			r.Send("", "dmd_frame", nil, frame)
		})
	}
	if r.hw.HasRGBDMD() {
		r.hw.ConfigureRGBDMD(func(frame []byte) {
			r.Send("", "rgb_dmd_frame", nil, frame)
		})
	}
}

// replayMachineVariables sends the current value of every machine
// variable to every peer, matching the original's _send_machine_vars
// (run once connections are up, per spec §4.4 "Connection lifecycle").
func (r *Router) replayMachineVariables() {
	if r.monitors == nil {
		return
	}
	for name, val := range r.monitors.MachineVariables() {
		r.sendTo("", "machine_variable", map[string]codec.Value{
			"name":  codec.String(name),
			"value": val,
		}, nil)
	}
}

// onPlayerVarChange is the Monitors player-variable callback. "score" is
// special-cased to the dedicated player_score command; every other
// variable is forwarded as player_variable only if configured to be.
func (r *Router) onPlayerVarChange(name string, value, prevValue, change codec.Value, playerNum int) {
	if name == "score" {
		r.Send("", "player_score", map[string]codec.Value{
			"value":      value,
			"prev_value": prevValue,
			"change":     change,
			"player_num": codec.Int(int64(playerNum)),
		}, nil)
		return
	}
	if r.cfg.sendsPlayerVar(name) {
		r.Send("", "player_variable", map[string]codec.Value{
			"name":       codec.String(name),
			"value":      value,
			"prev_value": prevValue,
			"change":     change,
			"player_num": codec.Int(int64(playerNum)),
		}, nil)
	}
}

func (r *Router) onMachineVarChange(name string, value, prevValue, change codec.Value) {
	if r.cfg.sendsMachineVar(name) {
		r.Send("", "machine_variable", map[string]codec.Value{
			"name":       codec.String(name),
			"value":      value,
			"prev_value": prevValue,
			"change":     change,
		}, nil)
	}
}

// sendBootstrap announces the display capabilities a newly-opened
// session can expect frames for. Sink registration itself happens once,
// in configureHardware, not per session.
func (r *Router) sendBootstrap(s *PeerSession) {
	fps := 0.0
	if r.clock != nil {
		fps = r.clock.MaxFPS()
	}
	if r.hw != nil && r.hw.HasDMD() {
		s.send(mustEncode("dmd_start", map[string]codec.Value{"fps": codec.Float(fps)}), nil)
	}
	if r.hw != nil && r.hw.HasRGBDMD() {
		s.send(mustEncode("rgb_dmd_start", map[string]codec.Value{"fps": codec.Float(fps)}), nil)
	}
}

func mustEncode(command string, params map[string]codec.Value) string {
	line, err := codec.Encode(command, params)
	if err != nil {
		return command
	}
	return line
}

// withoutKey returns a shallow copy of params with key removed.
func withoutKey(params map[string]codec.Value, key string) map[string]codec.Value {
	out := make(map[string]codec.Value, len(params))
	for k, v := range params {
		if k == key {
			continue
		}
		out[k] = v
	}
	return out
}

// --- inbound handlers -----------------------------------------------------

func (r *Router) handleSwitch(s *PeerSession, params map[string]codec.Value, _ []byte) error {
	name, ok := params["name"]
	if !ok || name.Kind != codec.KindString {
		return &InvalidArgumentError{Command: "switch", Reason: "missing name"}
	}
	state, ok := params["state"]
	if !ok || state.Kind != codec.KindInt {
		return &InvalidArgumentError{Command: "switch", Reason: "missing or non-int state"}
	}
	if r.switches == nil {
		return nil
	}
	if !r.switches.HasSwitch(name.Str) {
		r.log.Printf("bcp: peer %s sent switch message with invalid switch name: %q", s.name, name.Str)
		return nil
	}
	st := int(state.Int)
	if st == -1 {
		if r.switches.IsActive(name.Str) {
			st = 0
		} else {
			st = 1
		}
	}
	if err := r.switches.ProcessSwitch(name.Str, st, true); err != nil {
		return &InvalidArgumentError{Command: "switch", Reason: err.Error()}
	}
	return nil
}

// handleTrigger processes an inbound trigger command by posting it to the
// host event bus under its own name, then, if the peer attached a
// "callback" parameter, posting a trigger back to every peer with
// name=<callback> once the dispatch completes (spec §4.4 "trigger" row).
func (r *Router) handleTrigger(s *PeerSession, params map[string]codec.Value, _ []byte) error {
	name, ok := params["name"]
	if !ok || name.Kind != codec.KindString {
		return &InvalidArgumentError{Command: "trigger", Reason: "missing name"}
	}
	kwargs := make(map[string]codec.Value, len(params))
	var callback string
	hasCallback := false
	for k, v := range params {
		switch k {
		case "name":
			continue
		case "callback":
			if v.Kind == codec.KindString {
				callback = v.Str
				hasCallback = true
			}
			continue
		}
		kwargs[k] = v
	}
	r.bus.Post(name.Str, kwargs)
	if hasCallback {
		r.sendTo("", "trigger", map[string]codec.Value{"name": codec.String(callback)}, nil)
	}
	return nil
}

func (r *Router) handleRegisterTrigger(s *PeerSession, params map[string]codec.Value, _ []byte) error {
	event, ok := params["event"]
	if !ok || event.Kind != codec.KindString {
		return &InvalidArgumentError{Command: "register_trigger", Reason: "missing event"}
	}
	name := event.Str
	if r.triggers.add(name) && r.bus != nil {
		r.bus.AddHandler(name, func(kwargs map[string]codec.Value) {
			r.onTriggerEvent(name, kwargs)
		})
	}
	return nil
}

func (r *Router) handleRemoveRegisteredTrigger(s *PeerSession, params map[string]codec.Value, _ []byte) error {
	event, ok := params["event"]
	if !ok || event.Kind != codec.KindString {
		return &InvalidArgumentError{Command: "remove_registered_trigger_event", Reason: "missing event"}
	}
	if r.triggers.remove(event.Str) && r.bus != nil {
		r.bus.RemoveHandlerByEvent(event.Str, nil)
	}
	return nil
}

// broadcastRaw forwards an arbitrary host event straight through as a
// "trigger" command, used for triggers that have no EventMap translation
// entry.
func (r *Router) broadcastRaw(event string, kwargs map[string]codec.Value) {
	params := make(map[string]codec.Value, len(kwargs)+1)
	params["name"] = codec.String(event)
	for k, v := range kwargs {
		params[k] = v
	}
	r.sendTo("", "trigger", params, nil)
}

// handleGet processes an inbound "get" command by posting one
// "bcp_get_<name>" event per comma-separated name. A host handler is
// expected to answer with its own "set" command (spec "get"/"set" rows).
func (r *Router) handleGet(s *PeerSession, params map[string]codec.Value, _ []byte) error {
	names, ok := params["names"]
	if !ok || names.Kind != codec.KindString {
		return &InvalidArgumentError{Command: "get", Reason: "missing names"}
	}
	for _, name := range strings.Split(names.Str, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		r.bus.Post("bcp_get_"+name, nil)
	}
	return nil
}

// handleSet processes an inbound "set" command by posting one
// "bcp_set_<key>" event per parameter, each carrying that parameter's
// value under the "value" kwarg.
func (r *Router) handleSet(s *PeerSession, params map[string]codec.Value, _ []byte) error {
	for k, v := range params {
		r.bus.Post("bcp_set_"+k, map[string]codec.Value{"value": v})
	}
	return nil
}

func (r *Router) handleResetComplete(s *PeerSession, params map[string]codec.Value, _ []byte) error {
	r.bus.Post("bcp_reset_complete", nil)
	return nil
}

func (r *Router) handleExternalShowStart(s *PeerSession, params map[string]codec.Value, _ []byte) error {
	name, ok := params["name"]
	if !ok || name.Kind != codec.KindString {
		return &InvalidArgumentError{Command: "external_show_start", Reason: "missing name"}
	}
	r.shows.AddExternalShowStart(name.Str, withoutKey(params, "name"))
	return nil
}

func (r *Router) handleExternalShowStop(s *PeerSession, params map[string]codec.Value, _ []byte) error {
	name, ok := params["name"]
	if !ok || name.Kind != codec.KindString {
		return &InvalidArgumentError{Command: "external_show_stop", Reason: "missing name"}
	}
	r.shows.AddExternalShowStop(name.Str)
	return nil
}

func (r *Router) handleExternalShowFrame(s *PeerSession, params map[string]codec.Value, _ []byte) error {
	name, ok := params["name"]
	if !ok || name.Kind != codec.KindString {
		return &InvalidArgumentError{Command: "external_show_frame", Reason: "missing name"}
	}
	r.shows.AddExternalShowFrame(name.Str, withoutKey(params, "name"))
	return nil
}

// handleDMDFrame forwards an inbound frame straight to the physical DMD,
// matching the original's physical_dmd_update_callback(rawbytes).
func (r *Router) handleDMDFrame(s *PeerSession, _ map[string]codec.Value, payload []byte) error {
	if r.hw != nil {
		r.hw.WriteDMDFrame(payload)
	}
	return nil
}

func (r *Router) handleRGBDMDFrame(s *PeerSession, _ map[string]codec.Value, payload []byte) error {
	if r.hw != nil {
		r.hw.WriteRGBDMDFrame(payload)
	}
	return nil
}

// handleConfig applies a supplemented config command; currently only
// "volume" is recognized, mirroring the original's set_volume BCP
// extension.
func (r *Router) handleConfig(s *PeerSession, params map[string]codec.Value, _ []byte) error {
	vol, ok := params["volume"]
	if !ok {
		return nil
	}
	switch vol.Kind {
	case codec.KindFloat:
		r.volume = vol.Flt
	case codec.KindInt:
		r.volume = float64(vol.Int)
	default:
		return &InvalidArgumentError{Command: "config", Reason: "volume must be numeric"}
	}
	r.bus.Post("bcp_volume_change", map[string]codec.Value{"volume": codec.Float(r.volume)})
	return nil
}

func (r *Router) handleShot(s *PeerSession, params map[string]codec.Value, _ []byte) error {
	name, ok := params["name"]
	if !ok || name.Kind != codec.KindString {
		return &InvalidArgumentError{Command: "shot", Reason: "missing name"}
	}
	r.bus.Post("shot_"+name.Str, params)
	return nil
}

func (r *Router) handleError(s *PeerSession, params map[string]codec.Value, _ []byte) error {
	msg := "unspecified"
	if m, ok := params["message"]; ok && m.Kind == codec.KindString {
		msg = m.Str
	}
	r.log.Printf("bcp: peer %s reported an error: %s", s.name, msg)
	return nil
}

// --- sessionCallback -------------------------------------------------------

func (r *Router) sessionOpened(s *PeerSession) {}

// sessionClosed is called directly from a PeerSession's own goroutine, so
// it never touches Router state itself: it only hands the notification to
// the loop goroutine, which does the actual bookkeeping in
// onSessionClosed.
func (r *Router) sessionClosed(s *PeerSession) {
	select {
	case r.commands <- routerCommand{kind: "sessionClosed", session: s}:
	case <-r.quit:
	}
}

// onSessionClosed runs only on the loop goroutine. Per spec a closed
// session is always terminal for that peer; when FailFastOnPeerLoss is
// set (it is false in a zero Config) losing any one peer tears the
// whole bridge down, not just the peer that dropped.
func (r *Router) onSessionClosed(s *PeerSession) {
	if _, ok := r.sessions[s.name]; !ok {
		return
	}
	delete(r.sessions, s.name)
	r.activeConnections--
	if r.cfg.FailFastOnPeerLoss {
		go r.Stop()
	}
}

func (r *Router) handleMessage(s *PeerSession, cmd string, params map[string]codec.Value, payload []byte) {
	select {
	case r.inbox <- peerMessage{session: s, cmd: cmd, params: params, payload: payload}:
	case <-r.quit:
	}
}

func (r *Router) handleGoodbye(s *PeerSession) {
	s.stop(false)
}

func (r *Router) handleTransportError(s *PeerSession, err error) {
	r.log.Printf("bcp: %v", err)
}

func (r *Router) controllerName() string {
	if r.cfg.ControllerName == "" {
		return "mpf"
	}
	return r.cfg.ControllerName
}

func (r *Router) controllerVersion() string {
	return r.cfg.ControllerVersion
}

// --- lifecycle --------------------------------------------------------------

func (r *Router) shutdown() {
	for _, s := range r.sessions {
		s.stop(true)
	}
}

// Stop tears down every session and stops the Router's loop goroutine.
// Safe to call more than once, and from more than one goroutine at once
// (a fail-fast shutdown can be triggered by several peers erroring out
// around the same time).
func (r *Router) Stop() {
	r.stopOnce.Do(func() {
		done := make(chan struct{})
		select {
		case r.commands <- routerCommand{kind: "shutdown", shutdownDone: done}:
			<-done
		case <-r.quit:
		}
		close(r.quit)
		r.wg.Wait()
	})
}

// Send enqueues an outbound command. target == "" broadcasts to every
// connected peer.
func (r *Router) Send(target, command string, params map[string]codec.Value, payload []byte) {
	r.commands <- routerCommand{kind: "send", sendTarget: target, sendCommand: command, sendParams: params, sendPayload: payload}
}

// AddRegisteredTriggerEvent subscribes to event on behalf of a peer that
// has not (or cannot) issue its own register_trigger command.
func (r *Router) AddRegisteredTriggerEvent(event string) {
	r.commands <- routerCommand{kind: "addTrigger", triggerEvent: event}
}

// RemoveRegisteredTriggerEvent undoes AddRegisteredTriggerEvent.
func (r *Router) RemoveRegisteredTriggerEvent(event string) {
	r.commands <- routerCommand{kind: "removeTrigger", triggerEvent: event}
}

// ConfigureHardware (re-)registers the Router's DMD/RGB DMD frame sinks
// against the host's hardware platform, matching the original's
// init_phase_1 hook (_setup_dmds).
func (r *Router) ConfigureHardware() {
	r.commands <- routerCommand{kind: "configureHardware"}
}

// ReplayMachineVariables sends the current value of every machine
// variable to every peer, matching the original's init_phase_2 hook
// (_send_machine_vars, run once connections are established).
func (r *Router) ReplayMachineVariables() {
	r.commands <- routerCommand{kind: "replayMachineVars"}
}

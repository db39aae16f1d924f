package bcp

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/HarryXS/mpf/bcp/codec"
)

// newTestRouterWithPeer wires a Router against one real TCP session so
// outbound commands can be read straight off the wire, the way
// session_test.go exercises PeerSession on its own.
func newTestRouterWithPeer(t *testing.T) (*Router, *bufio.Reader, *fakeMonitors, *fakeModesCapture) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	bus := newFakeBus()
	sw := &fakeSwitches{}
	shows := &fakeShows{}
	monitors := &fakeMonitors{}
	modes := &fakeModesCapture{}
	cfg := &Config{
		Connections: map[string]ConnectionConfig{},
		EventMap:    defaultEventMap(),
	}
	r := NewRouter(cfg, bus, sw, modes, shows, fakeClock{fps: 30}, &fakeHardware{}, nil, monitors, nil)

	addr := ln.Addr().(*net.TCPAddr)
	sess := newPeerSession(ConnectionConfig{Name: "media", Host: addr.IP.String(), Port: addr.Port}, r, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sess.open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	r.sessions["media"] = sess

	var conn net.Conn
	select {
	case conn = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("server never accepted the connection")
	}
	reader := bufio.NewReader(conn)
	// The hello handshake is the first line off the wire; drain it so
	// tests only see the commands they trigger.
	if _, err := reader.ReadString('\n'); err != nil {
		t.Fatalf("reading hello: %v", err)
	}

	r.wg.Add(1)
	go r.loop()
	t.Cleanup(r.Stop)
	return r, reader, monitors, modes
}

func readLine(t *testing.T, reader *bufio.Reader) string {
	t.Helper()
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := reader.ReadString('\n')
		ch <- result{line, err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("reading line: %v", res.err)
		}
		return res.line
	case <-time.After(time.Second):
		t.Fatal("no line arrived")
		return ""
	}
}

// fakeModesCapture records the RegisterStartMethod call so tests can
// drive the mode-start/stop outbound behavior directly.
type fakeModesCapture struct {
	mu  sync.Mutex
	fn  ModeStartFunc
	kind string
}

func (m *fakeModesCapture) RegisterStartMethod(kind string, fn ModeStartFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kind = kind
	m.fn = fn
}

func (m *fakeModesCapture) started(modeName string, priority int) (stop func()) {
	m.mu.Lock()
	fn := m.fn
	m.mu.Unlock()
	return fn(modeName, priority)
}

type fakeBus struct {
	mu       sync.Mutex
	handlers map[string][]EventHandler
	posted   []postedEvent
}

type postedEvent struct {
	event  string
	kwargs map[string]codec.Value
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string][]EventHandler)}
}

func (b *fakeBus) AddHandler(event string, h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], h)
}

func (b *fakeBus) RemoveHandlerByEvent(event string, h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, event)
}

func (b *fakeBus) Post(event string, kwargs map[string]codec.Value) {
	b.mu.Lock()
	b.posted = append(b.posted, postedEvent{event: event, kwargs: kwargs})
	handlers := append([]EventHandler(nil), b.handlers[event]...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(kwargs)
	}
}

func (b *fakeBus) fire(event string, kwargs map[string]codec.Value) {
	b.Post(event, kwargs)
}

type fakeSwitches struct {
	mu     sync.Mutex
	calls  []string
	states map[string]int
	known  map[string]bool
}

func (s *fakeSwitches) ProcessSwitch(name string, state int, logical bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
	if s.states == nil {
		s.states = make(map[string]int)
	}
	s.states[name] = state
	return nil
}

func (s *fakeSwitches) IsActive(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[name] == 1
}

func (s *fakeSwitches) HasSwitch(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.known == nil {
		return true
	}
	return s.known[name]
}

type fakeModes struct{}

func (fakeModes) RegisterStartMethod(kind string, fn ModeStartFunc) {}

type fakeShows struct {
	mu     sync.Mutex
	frames []map[string]codec.Value
}

func (s *fakeShows) AddExternalShowStart(name string, kwargs map[string]codec.Value) {}
func (s *fakeShows) AddExternalShowStop(name string)                                 {}
func (s *fakeShows) AddExternalShowFrame(name string, kwargs map[string]codec.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, kwargs)
}

type fakeClock struct{ fps float64 }

func (c fakeClock) ScheduleOnce(cb func(), priority int) { cb() }
func (c fakeClock) MaxFPS() float64                      { return c.fps }

type fakeHardware struct {
	hasDMD bool
	mu     sync.Mutex
	frames [][]byte
}

func (h *fakeHardware) HasDMD() bool                  { return h.hasDMD }
func (h *fakeHardware) ConfigureDMD(sink FrameSink)    {}
func (h *fakeHardware) HasRGBDMD() bool                { return false }
func (h *fakeHardware) ConfigureRGBDMD(sink FrameSink) {}
func (h *fakeHardware) WriteDMDFrame(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, frame)
}
func (h *fakeHardware) WriteRGBDMDFrame(frame []byte) {}

type fakeMonitors struct {
	mu           sync.Mutex
	playerVars   map[string]codec.Value
	machineVars  map[string]codec.Value
	knownPlayers map[string]bool
}

func (m *fakeMonitors) RegisterPlayerMonitor(fn PlayerVarHandler)      {}
func (m *fakeMonitors) RegisterMachineVarMonitor(fn MachineVarHandler) {}
func (m *fakeMonitors) MachineVariables() map[string]codec.Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machineVars
}
func (m *fakeMonitors) CurrentPlayerVariables() map[string]codec.Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playerVars
}
func (m *fakeMonitors) IsPlayerVar(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.knownPlayers[name]
}

func newTestRouter() (*Router, *fakeBus, *fakeSwitches, *fakeShows) {
	bus := newFakeBus()
	sw := &fakeSwitches{}
	shows := &fakeShows{}
	cfg := &Config{
		Connections: map[string]ConnectionConfig{},
		EventMap:    defaultEventMap(),
	}
	r := NewRouter(cfg, bus, sw, fakeModes{}, shows, fakeClock{fps: 30}, &fakeHardware{}, nil, &fakeMonitors{}, nil)
	r.wg.Add(1)
	go r.loop()
	return r, bus, sw, shows
}

func TestRouter_SwitchCommandCallsSwitchController(t *testing.T) {
	r, _, sw, _ := newTestRouter()
	defer r.Stop()

	r.handleMessage(nil, "switch", map[string]codec.Value{
		"name":  codec.String("flipper_l"),
		"state": codec.Int(1),
	}, nil)

	deadline := time.After(time.Second)
	for {
		sw.mu.Lock()
		n := len(sw.calls)
		sw.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("switch was never processed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRouter_TriggerCommandPostsEvent(t *testing.T) {
	r, bus, _, _ := newTestRouter()
	defer r.Stop()

	r.handleMessage(nil, "trigger", map[string]codec.Value{
		"name": codec.String("some_event"),
		"x":    codec.Int(5),
	}, nil)

	deadline := time.After(time.Second)
	for {
		bus.mu.Lock()
		n := len(bus.posted)
		bus.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("trigger was never posted")
		case <-time.After(10 * time.Millisecond):
		}
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.posted[0].event != "some_event" {
		t.Errorf("expected event some_event, got %s", bus.posted[0].event)
	}
	if bus.posted[0].kwargs["x"] != codec.Int(5) {
		t.Errorf("expected kwarg x=5, got %+v", bus.posted[0].kwargs["x"])
	}
}

func TestRouter_RegisterTriggerSubscribesOnce(t *testing.T) {
	r, bus, _, _ := newTestRouter()
	defer r.Stop()

	// tilt is not in the default trigger set NewRouter subscribes, so the
	// handler observed here is the one register_trigger added.
	r.handleMessage(nil, "register_trigger", map[string]codec.Value{"event": codec.String("tilt")}, nil)
	r.handleMessage(nil, "register_trigger", map[string]codec.Value{"event": codec.String("tilt")}, nil)

	deadline := time.After(time.Second)
	for {
		bus.mu.Lock()
		n := len(bus.handlers["tilt"])
		bus.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("register_trigger never subscribed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if len(bus.handlers["tilt"]) != 1 {
		t.Errorf("expected exactly one subscription, got %d", len(bus.handlers["tilt"]))
	}
}

func TestRouter_DMDFrameForwardsToHardware(t *testing.T) {
	bus := newFakeBus()
	sw := &fakeSwitches{}
	shows := &fakeShows{}
	hw := &fakeHardware{}
	cfg := &Config{
		Connections: map[string]ConnectionConfig{},
		EventMap:    defaultEventMap(),
	}
	r := NewRouter(cfg, bus, sw, fakeModes{}, shows, fakeClock{fps: 30}, hw, nil, &fakeMonitors{}, nil)
	r.wg.Add(1)
	go r.loop()
	defer r.Stop()

	r.handleMessage(nil, "dmd_frame", map[string]codec.Value{}, []byte{1, 2, 3})

	deadline := time.After(time.Second)
	for {
		hw.mu.Lock()
		n := len(hw.frames)
		hw.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("dmd frame never forwarded")
		case <-time.After(10 * time.Millisecond):
		}
	}
	hw.mu.Lock()
	defer hw.mu.Unlock()
	if string(hw.frames[0]) != "\x01\x02\x03" {
		t.Errorf("expected payload forwarded verbatim, got %v", hw.frames[0])
	}
}

func TestRouter_UnknownCommandIsIgnoredNotFatal(t *testing.T) {
	r, _, _, _ := newTestRouter()
	defer r.Stop()

	r.handleMessage(nil, "not_a_real_command", map[string]codec.Value{}, nil)
	time.Sleep(20 * time.Millisecond) // give the loop a chance to process and not panic
}

func TestRouter_SwitchFlipsNegativeOneAgainstCurrentState(t *testing.T) {
	r, _, sw, _ := newTestRouter()
	defer r.Stop()

	sw.mu.Lock()
	sw.states = map[string]int{"flipper_l": 1}
	sw.mu.Unlock()

	r.handleMessage(nil, "switch", map[string]codec.Value{
		"name":  codec.String("flipper_l"),
		"state": codec.Int(-1),
	}, nil)

	deadline := time.After(time.Second)
	for {
		sw.mu.Lock()
		st, seen := sw.states["flipper_l"], len(sw.calls)
		sw.mu.Unlock()
		if seen == 1 {
			if st != 0 {
				t.Fatalf("expected flip to resolve to 0, got %d", st)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("switch was never processed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRouter_SwitchUnknownNameIsDropped(t *testing.T) {
	r, _, sw, _ := newTestRouter()
	defer r.Stop()

	sw.mu.Lock()
	sw.known = map[string]bool{"flipper_l": true}
	sw.mu.Unlock()

	// Handlers always receive the sending session; the unknown-name
	// warning names it.
	sess := newPeerSession(ConnectionConfig{Name: "media"}, r, nil)
	r.handleMessage(sess, "switch", map[string]codec.Value{
		"name":  codec.String("not_a_switch"),
		"state": codec.Int(1),
	}, nil)

	time.Sleep(20 * time.Millisecond)
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if len(sw.calls) != 0 {
		t.Fatalf("expected unknown switch name to be dropped, got calls %v", sw.calls)
	}
}

func TestRouter_TriggerCallbackIsRepostedAfterDispatch(t *testing.T) {
	r, reader, _, _ := newTestRouterWithPeer(t)

	r.handleMessage(nil, "trigger", map[string]codec.Value{
		"name":     codec.String("some_event"),
		"callback": codec.String("ack_some_event"),
	}, nil)

	line := readLine(t, reader)
	if line != "trigger?name=ack_some_event\n" {
		t.Fatalf("expected callback repost, got %q", line)
	}
}

func TestRouter_GetPostsBcpGetPerName(t *testing.T) {
	r, bus, _, _ := newTestRouter()
	defer r.Stop()

	r.handleMessage(nil, "get", map[string]codec.Value{"names": codec.String("volume, brightness")}, nil)

	deadline := time.After(time.Second)
	for {
		bus.mu.Lock()
		n := len(bus.posted)
		bus.mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("get never posted both events")
		case <-time.After(10 * time.Millisecond):
		}
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.posted[0].event != "bcp_get_volume" || bus.posted[1].event != "bcp_get_brightness" {
		t.Fatalf("unexpected events: %+v", bus.posted)
	}
}

func TestRouter_SetPostsBcpSetPerParam(t *testing.T) {
	r, bus, _, _ := newTestRouter()
	defer r.Stop()

	r.handleMessage(nil, "set", map[string]codec.Value{"volume": codec.Float(0.5)}, nil)

	deadline := time.After(time.Second)
	for {
		bus.mu.Lock()
		n := len(bus.posted)
		bus.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("set never posted")
		case <-time.After(10 * time.Millisecond):
		}
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.posted[0].event != "bcp_set_volume" {
		t.Fatalf("expected bcp_set_volume, got %s", bus.posted[0].event)
	}
	if bus.posted[0].kwargs["value"] != codec.Float(0.5) {
		t.Fatalf("expected value=0.5, got %+v", bus.posted[0].kwargs["value"])
	}
}

func TestRouter_ResetCompletePostsEvent(t *testing.T) {
	r, bus, _, _ := newTestRouter()
	defer r.Stop()

	r.handleMessage(nil, "reset_complete", map[string]codec.Value{}, nil)

	deadline := time.After(time.Second)
	for {
		bus.mu.Lock()
		n := len(bus.posted)
		bus.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("reset_complete never posted")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRouter_ExternalShowCommandsForwardToShowQueue(t *testing.T) {
	r, _, _, shows := newTestRouter()
	defer r.Stop()

	r.handleMessage(nil, "external_show_start", map[string]codec.Value{"name": codec.String("attract")}, nil)
	r.handleMessage(nil, "external_show_frame", map[string]codec.Value{"name": codec.String("attract"), "led_01": codec.String("ff0000")}, nil)
	r.handleMessage(nil, "external_show_stop", map[string]codec.Value{"name": codec.String("attract")}, nil)

	deadline := time.After(time.Second)
	for {
		shows.mu.Lock()
		n := len(shows.frames)
		shows.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("external_show_frame never forwarded")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRouter_ModeStartAndStopEmitOutboundCommands(t *testing.T) {
	_, reader, _, modes := newTestRouterWithPeer(t)

	stop := modes.started("attract", 100)

	line := readLine(t, reader)
	if line != "mode_start?name=attract&priority=int:100\n" {
		t.Fatalf("unexpected mode_start line: %q", line)
	}

	stop()
	line = readLine(t, reader)
	if line != "mode_stop?name=attract\n" {
		t.Fatalf("unexpected mode_stop line: %q", line)
	}
}

func TestRouter_PlayerScoreChangeEmitsPlayerScore(t *testing.T) {
	r, reader, _, _ := newTestRouterWithPeer(t)

	r.onPlayerVarChange("score", codec.Int(1500), codec.Int(1000), codec.Int(500), 1)

	line := readLine(t, reader)
	if line != "player_score?change=int:500&player_num=int:1&prev_value=int:1000&value=int:1500\n" {
		t.Fatalf("unexpected player_score line: %q", line)
	}
}

func TestRouter_PlayerVariableChangeSuppressedWhenNotConfigured(t *testing.T) {
	r, reader, _, _ := newTestRouterWithPeer(t)

	r.onPlayerVarChange("bonus", codec.Int(1), codec.Int(0), codec.Int(1), 1)
	// bonus is not in cfg.PlayerVariables, so nothing is sent for it and
	// the next line on the wire is the marker command sent after it.
	r.Send("", "reset", nil, nil)

	line := readLine(t, reader)
	if line != "reset\n" {
		t.Fatalf("expected no player_variable for an unconfigured variable, got %q", line)
	}
}

func TestRouter_MachineVariableChangeEmitsWhenConfigured(t *testing.T) {
	r, reader, _, _ := newTestRouterWithPeer(t)
	r.cfg.MachineVariables = []string{allVarsSentinel}

	r.onMachineVarChange("balls_in_play", codec.Int(2), codec.Int(1), codec.Int(1))

	line := readLine(t, reader)
	if line != "machine_variable?change=int:1&name=balls_in_play&prev_value=int:1&value=int:2\n" {
		t.Fatalf("unexpected machine_variable line: %q", line)
	}
}

func TestRouter_TriggerSuppressedForKnownPlayerVariable(t *testing.T) {
	r, reader, monitors, _ := newTestRouterWithPeer(t)
	monitors.mu.Lock()
	monitors.knownPlayers = map[string]bool{"bonus": true}
	monitors.mu.Unlock()

	r.onTriggerEvent("player_bonus", map[string]codec.Value{})
	// A suppressed trigger writes nothing, so the next line on the wire is
	// the marker command sent after it.
	r.Send("", "reset", nil, nil)

	line := readLine(t, reader)
	if line != "reset\n" {
		t.Fatalf("expected player_bonus trigger to be suppressed, got %q", line)
	}
}

func TestRouter_EventMapExpandsEmbeddedAndPlayerVarTemplates(t *testing.T) {
	r, reader, monitors, _ := newTestRouterWithPeer(t)
	monitors.playerVars = map[string]codec.Value{"name": codec.String("Ada")}
	r.cfg.EventMap["award_shown"] = EventMapEntry{
		Command: "text",
		Params:  map[string]string{"message": "Nice shot %name%, +%points pts"},
	}

	r.onTriggerEvent("award_shown", map[string]codec.Value{"points": codec.Int(500)})

	line := readLine(t, reader)
	if line != "text?message=Nice%20shot%20Ada%2C%20%2B500%20pts\n" {
		t.Fatalf("unexpected expanded line: %q", line)
	}
}

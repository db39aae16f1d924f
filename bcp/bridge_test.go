package bcp

import "testing"

func TestNew_NoConnectionsIsDisabled(t *testing.T) {
	b := New(&Config{}, Collaborators{}, nil)
	if !b.Disabled() {
		t.Fatal("expected a Bridge with no connections to be disabled")
	}

	// Every public method must be a silent no-op.
	b.Send("peer", "trigger", nil)
	b.SendFrame("peer", "dmd_frame", []byte{1})
	b.AddRegisteredTriggerEvent("some_event")
	b.RemoveRegisteredTriggerEvent("some_event")
	b.Shutdown()
}

func TestNew_NilConfigIsDisabled(t *testing.T) {
	b := New(nil, Collaborators{}, nil)
	if !b.Disabled() {
		t.Fatal("expected a nil Config to produce a disabled Bridge")
	}
}

func TestNew_WithConnectionsSeedsDefaultEventMap(t *testing.T) {
	cfg := &Config{
		Connections: map[string]ConnectionConfig{
			"media": {Name: "media", Host: "127.0.0.1", Port: 0},
		},
	}
	b := New(cfg, Collaborators{
		Bus:      newFakeBus(),
		Switches: &fakeSwitches{},
		Modes:    fakeModes{},
		Shows:    &fakeShows{},
		Clock:    fakeClock{fps: 30},
		Hardware: &fakeHardware{},
		Monitors: &fakeMonitors{},
	}, nil)
	if b.Disabled() {
		t.Fatal("expected a Bridge with connections to be enabled")
	}
	if _, ok := cfg.EventMap["ball_started"]; !ok {
		t.Fatal("expected New to seed the default event map")
	}
}

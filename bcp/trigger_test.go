package bcp

import "testing"

func TestTriggerRegistry_FirstAndLastSubscriber(t *testing.T) {
	reg := newTriggerRegistry()

	if !reg.add("ball_started") {
		t.Fatal("first add should report the first subscriber")
	}
	if reg.add("ball_started") {
		t.Fatal("second add should not report a first subscriber")
	}
	if !reg.has("ball_started") {
		t.Fatal("expected ball_started to be registered")
	}

	if reg.remove("ball_started") {
		t.Fatal("first remove with two subscribers should not report the last one")
	}
	if !reg.remove("ball_started") {
		t.Fatal("second remove should report the last subscriber")
	}
	if reg.has("ball_started") {
		t.Fatal("expected ball_started to be gone")
	}
}

func TestTriggerRegistry_CaseInsensitive(t *testing.T) {
	reg := newTriggerRegistry()
	reg.add("Ball_Started")
	if !reg.has("ball_started") {
		t.Fatal("expected case-insensitive lookup to find the event")
	}
}

func TestTriggerRegistry_RemoveUnknownIsNoop(t *testing.T) {
	reg := newTriggerRegistry()
	if reg.remove("never_added") {
		t.Fatal("removing an event with no subscribers should report false")
	}
}

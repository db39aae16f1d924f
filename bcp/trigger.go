package bcp

import "strings"

// triggerRegistry refcounts event subscriptions raised by register_trigger
// and add_registered_trigger_event so that two peers subscribing to the
// same event share one EventBus handler, and the handler is torn down
// only once the last subscriber drops it. Generalized from the refcounted
// membership tracking in the teacher's peer-group join/leave handling to
// a single flat namespace of event names instead of per-group peer sets.
type triggerRegistry struct {
	counts map[string]int
}

func newTriggerRegistry() *triggerRegistry {
	return &triggerRegistry{counts: make(map[string]int)}
}

// add records a new subscriber for event and reports whether this was the
// first one (the caller should register an EventBus handler only then).
func (t *triggerRegistry) add(event string) bool {
	key := strings.ToLower(event)
	t.counts[key]++
	return t.counts[key] == 1
}

// remove drops one subscriber for event and reports whether it was the
// last one (the caller should remove the EventBus handler only then).
func (t *triggerRegistry) remove(event string) bool {
	key := strings.ToLower(event)
	if t.counts[key] == 0 {
		return false
	}
	t.counts[key]--
	if t.counts[key] == 0 {
		delete(t.counts, key)
		return true
	}
	return false
}

func (t *triggerRegistry) has(event string) bool {
	return t.counts[strings.ToLower(event)] > 0
}

// Command bcpmonitor is a small standalone BCP peer for exercising a
// bridge from the command line: it dials one configured peer, logs every
// inbound command, and lets an operator fire host events at it by typing
// "event:<name>" on stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/HarryXS/mpf/bcp"
	"github.com/HarryXS/mpf/bcp/codec"
)

var (
	host = flag.String("host", "127.0.0.1", "media controller host to connect to")
	port = flag.Int("port", 5050, "media controller port to connect to")
	name = flag.String("name", "media", "name of the configured connection")
)

// logBus is a minimal EventBus that just records handlers and logs every
// post, standing in for a real host's event system.
type logBus struct {
	handlers map[string][]bcp.EventHandler
}

func newLogBus() *logBus { return &logBus{handlers: make(map[string][]bcp.EventHandler)} }

func (b *logBus) AddHandler(event string, h bcp.EventHandler) {
	b.handlers[event] = append(b.handlers[event], h)
}

func (b *logBus) RemoveHandlerByEvent(event string, h bcp.EventHandler) {
	delete(b.handlers, event)
}

func (b *logBus) Post(event string, kwargs map[string]codec.Value) {
	log.Printf("bcpmonitor: host event %q posted with %d kwargs", event, len(kwargs))
	for _, h := range b.handlers[event] {
		h(kwargs)
	}
}

type logSwitches struct{}

func (logSwitches) ProcessSwitch(name string, state int, logical bool) error {
	log.Printf("bcpmonitor: switch %q -> %d (logical=%v)", name, state, logical)
	return nil
}

func (logSwitches) IsActive(name string) bool  { return false }
func (logSwitches) HasSwitch(name string) bool { return true }

type noopModes struct{}

func (noopModes) RegisterStartMethod(kind string, fn bcp.ModeStartFunc) {}

type logShows struct{}

func (logShows) AddExternalShowStart(name string, kwargs map[string]codec.Value) {
	log.Printf("bcpmonitor: show %q started", name)
}
func (logShows) AddExternalShowStop(name string) {
	log.Printf("bcpmonitor: show %q stopped", name)
}
func (logShows) AddExternalShowFrame(name string, kwargs map[string]codec.Value) {}

type fixedClock struct{ fps float64 }

func (c fixedClock) ScheduleOnce(cb func(), priority int) { cb() }
func (c fixedClock) MaxFPS() float64                      { return c.fps }

type noHardware struct{}

func (noHardware) HasDMD() bool                 { return false }
func (noHardware) ConfigureDMD(bcp.FrameSink)    {}
func (noHardware) WriteDMDFrame(frame []byte)    {}
func (noHardware) HasRGBDMD() bool               { return false }
func (noHardware) ConfigureRGBDMD(bcp.FrameSink) {}
func (noHardware) WriteRGBDMDFrame(frame []byte) {}

type noMonitors struct{}

func (noMonitors) RegisterPlayerMonitor(fn bcp.PlayerVarHandler)      {}
func (noMonitors) RegisterMachineVarMonitor(fn bcp.MachineVarHandler) {}
func (noMonitors) MachineVariables() map[string]codec.Value          { return nil }
func (noMonitors) CurrentPlayerVariables() map[string]codec.Value    { return nil }
func (noMonitors) IsPlayerVar(name string) bool                      { return false }

func main() {
	flag.Parse()

	cfg := &bcp.Config{
		ControllerName:    "bcpmonitor",
		ControllerVersion: "dev",
		Connections: map[string]bcp.ConnectionConfig{
			*name: {Name: *name, Host: *host, Port: *port},
		},
		FailFastOnPeerLoss: true,
	}

	bridge := bcp.New(cfg, bcp.Collaborators{
		Bus:      newLogBus(),
		Switches: logSwitches{},
		Modes:    noopModes{},
		Shows:    logShows{},
		Clock:    fixedClock{fps: 30},
		Hardware: noHardware{},
		Monitors: noMonitors{},
	}, log.Default())

	if err := bridge.Start(context.Background()); err != nil {
		log.Fatalf("bcpmonitor: failed to connect: %v", err)
	}
	defer bridge.Shutdown()

	log.Printf("bcpmonitor: connected to %s:%d as %q", *host, *port, *name)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-sig:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			handleLine(bridge, line)
		}
	}
}

func handleLine(bridge *bcp.Bridge, line string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "event:") {
		fmt.Println("usage: event:<name>")
		return
	}
	event := strings.TrimPrefix(line, "event:")
	bridge.Send("", "trigger", map[string]codec.Value{"name": codec.String(event)})
}

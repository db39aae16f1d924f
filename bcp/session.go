package bcp

import (
	"context"
	"log"
	"net"
	"strconv"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"github.com/HarryXS/mpf/bcp/codec"
	"github.com/HarryXS/mpf/bcp/framer"
)

type sessionState int32

const (
	stateConnecting sessionState = iota
	stateOpen
	stateClosing
	stateClosed
)

const readChunkSize = 4096

// sessionCallback is the Router's side of a PeerSession. A session never
// reaches back into Router state directly: it only ever calls these
// methods, matching the teacher's peer/node split where a peer never
// touches Node fields itself.
type sessionCallback interface {
	sessionOpened(s *PeerSession)
	sessionClosed(s *PeerSession)
	handleMessage(s *PeerSession, cmd string, params map[string]codec.Value, payload []byte)
	handleGoodbye(s *PeerSession)
	handleTransportError(s *PeerSession, err error)
	controllerName() string
	controllerVersion() string
}

// PeerSession owns exactly one TCP connection to one BCP peer: dialing
// it, running the handshake, reassembling its byte stream into
// messages via a framer, and writing outbound lines back out. It holds a
// non-owning callback reference to its Router rather than a pointer to
// Router state, so a session can never reach past its own socket.
type PeerSession struct {
	name string
	cfg  ConnectionConfig
	cb   sessionCallback
	log  *log.Logger

	mu    sync.Mutex
	conn  net.Conn
	state sessionState
	fr    *framer.Framer

	closeOnce sync.Once
	done      chan struct{}
}

func newPeerSession(cfg ConnectionConfig, cb sessionCallback, logger *log.Logger) *PeerSession {
	if logger == nil {
		logger = log.Default()
	}
	return &PeerSession{
		name:  cfg.Name,
		cfg:   cfg,
		cb:    cb,
		log:   logger,
		state: stateConnecting,
		fr:    framer.New(),
		done:  make(chan struct{}),
	}
}

// open dials the configured address with a bounded exponential backoff
// (spec §9 Open Question 1: the original's busy-spin retry is replaced
// with a capped, context-aware retry here) and starts the session's
// reader goroutine once connected.
func (s *PeerSession) open(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var d net.Dialer
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)

	var conn net.Conn
	err := backoff.Retry(func() error {
		c, dialErr := d.DialContext(ctx, "tcp", addr)
		if dialErr != nil {
			return dialErr
		}
		conn = c
		return nil
	}, bo)
	if err != nil {
		return &TransportError{Peer: s.name, Op: "dial", Err: err}
	}

	s.mu.Lock()
	s.conn = conn
	s.state = stateOpen
	s.mu.Unlock()

	go s.readLoop()

	hello, err := codec.Encode("hello", map[string]codec.Value{
		"version":            codec.String(protocolVersion),
		"controller_name":    codec.String(s.cb.controllerName()),
		"controller_version": codec.String(s.cb.controllerVersion()),
	})
	if err != nil {
		return &TransportError{Peer: s.name, Op: "handshake", Err: err}
	}
	return s.send(hello, nil)
}

// protocolVersion is the advisory BCP version string sent in every hello
// handshake. Spec §1 Non-goals exclude real version negotiation; this is
// informational only.
const protocolVersion = "1.0"

// readLoop is the session's one long-lived goroutine: it blocks on
// net.Conn.Read and feeds each chunk to the framer, exactly the
// substitution the teacher's own inboxHandler goroutine makes for a
// poller-driven read loop.
func (s *PeerSession) readLoop() {
	buf := make([]byte, readChunkSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			msgs, ferr := s.fr.Feed(buf[:n])
			for _, m := range msgs {
				s.dispatch(m)
			}
			if ferr != nil {
				s.fail(&TransportError{Peer: s.name, Op: "frame", Err: ferr})
				return
			}
		}
		if err != nil {
			if s.stateOf() != stateClosing && s.stateOf() != stateClosed {
				s.fail(&TransportError{Peer: s.name, Op: "read", Err: err})
			}
			return
		}
	}
}

func (s *PeerSession) dispatch(m framer.Message) {
	cmd, params, err := codec.Decode(m.Header)
	if err != nil {
		s.log.Printf("bcp: peer %s sent an unparsable line, dropping: %v", s.name, err)
		return
	}

	switch cmd {
	case "hello":
		s.log.Printf("bcp: peer %s said hello", s.name)
	case "goodbye":
		s.cb.handleGoodbye(s)
	default:
		s.cb.handleMessage(s, cmd, params, m.Payload)
	}
}

func (s *PeerSession) stateOf() sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// send writes one already-encoded command line, followed by its newline
// terminator and any binary payload, to the peer socket.
func (s *PeerSession) send(line string, payload []byte) error {
	s.mu.Lock()
	conn := s.conn
	st := s.state
	s.mu.Unlock()

	if st != stateOpen || conn == nil {
		return &TransportError{Peer: s.name, Op: "send", Err: errSessionNotOpen}
	}

	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		s.fail(&TransportError{Peer: s.name, Op: "send", Err: err})
		return err
	}
	if len(payload) > 0 {
		if _, err := conn.Write(payload); err != nil {
			s.fail(&TransportError{Peer: s.name, Op: "send", Err: err})
			return err
		}
	}
	return nil
}

func (s *PeerSession) fail(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = stateClosed
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
		close(s.done)
		s.cb.handleTransportError(s, err)
		s.cb.sessionClosed(s)
	})
}

// stop sends a goodbye (unless peer-initiated) and closes the socket.
func (s *PeerSession) stop(sendGoodbye bool) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = stateClosing
		conn := s.conn
		s.mu.Unlock()

		if sendGoodbye && conn != nil {
			line, _ := codec.Encode("goodbye", nil)
			conn.Write([]byte(line + "\n"))
		}
		if conn != nil {
			conn.Close()
		}

		s.mu.Lock()
		s.state = stateClosed
		s.mu.Unlock()

		close(s.done)
		s.cb.sessionClosed(s)
	})
}

var errSessionNotOpen = &sessionNotOpenError{}

type sessionNotOpenError struct{}

func (*sessionNotOpenError) Error() string { return "session is not open" }

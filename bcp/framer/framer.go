// Package framer reassembles a BCP peer's raw TCP byte stream into
// complete wire messages: a header line, and an optional binary payload
// declared by an "&bytes=N" tail on that header.
package framer

import (
	"bytes"
	"strconv"
)

// Message is one fully reassembled wire message: a header line with any
// "&bytes=N" tail already stripped, and the raw payload it declared (nil
// if the header carried no binary tail).
type Message struct {
	Header  string
	Payload []byte
}

const bytesSentinel = "&bytes="

// Framer holds the append-only buffer for one peer connection. It is not
// safe for concurrent use; a PeerSession feeds it from a single reader
// goroutine.
type Framer struct {
	buf []byte
}

// New returns an empty Framer.
func New() *Framer {
	return &Framer{}
}

// Feed appends chunk to the buffer and extracts every complete message it
// now contains. A header without a trailing newline, or a declared binary
// payload shorter than promised, is left in the buffer for a later Feed
// call to complete.
//
// The "&bytes=N" sentinel is located by substring search over the whole
// header, not just its final query term — matching the source protocol's
// own fragility (spec §4.2, §9 Open Question 3): a crafted "json=" value
// that happens to contain the literal "&bytes=" will be misframed. A
// stricter last-query-element parser was considered and rejected because
// the concrete test scenarios this module is built against assume the
// substring-search behavior.
func (f *Framer) Feed(chunk []byte) ([]Message, error) {
	f.buf = append(f.buf, chunk...)

	var messages []Message
	for {
		nl := bytes.IndexByte(f.buf, '\n')
		if nl < 0 {
			break
		}

		header := f.buf[:nl]
		rest := f.buf[nl+1:]

		idx := bytes.LastIndex(header, []byte(bytesSentinel))
		if idx < 0 {
			messages = append(messages, Message{Header: string(header)})
			f.buf = rest
			continue
		}

		n, err := strconv.Atoi(string(header[idx+len(bytesSentinel):]))
		if err != nil {
			return messages, &FrameError{Reason: "malformed &bytes= length: " + err.Error()}
		}
		if n < 0 {
			return messages, &FrameError{Reason: "negative &bytes= length"}
		}

		if len(rest) < n {
			// Not enough payload bytes yet; leave everything (including
			// the header we already found) in the buffer and wait.
			break
		}

		payload := make([]byte, n)
		copy(payload, rest[:n])

		messages = append(messages, Message{
			Header:  string(header[:idx]),
			Payload: payload,
		})
		f.buf = rest[n:]
	}

	return messages, nil
}

// FrameError reports a malformed "&bytes=" length declaration.
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return "bcp framer: " + e.Reason
}

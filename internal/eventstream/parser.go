// Package eventstream implements the client side of the backend's
// server-sent-event endpoint: a long-lived streaming GET whose body is
// incrementally decoded into discrete frames and delivered, in order, to a
// consumer.
package eventstream

import (
	"bytes"
)

// DefaultEventType is the type assigned to frames that carry no event line.
const DefaultEventType = "message"

// Frame is one complete unit of the stream, delimited by a blank line. Data
// holds the concatenation of all data lines in the frame, joined with
// newlines, and is expected to decode as JSON.
type Frame struct {
	// EventType is the value of the frame's event line, or
	// DefaultEventType when the frame has none.
	EventType string

	// Data is the joined payload of the frame's data lines.
	Data []byte
}

// Parser incrementally reassembles frames from arbitrarily chunked bytes. A
// frame is only produced once its terminating blank line has been observed;
// any trailing partial frame stays buffered for the next Push. The zero
// value is ready to use.
//
// Line endings are normalized as they arrive, so CRLF pairs and lone
// carriage returns split across chunk boundaries are handled. Multi-byte
// runes split across chunks are safe as well since the buffer holds raw
// bytes and frames are only sliced at line boundaries.
type Parser struct {
	buf []byte

	// pendingCR is set when the last byte seen was a carriage return
	// that may be the first half of a CRLF pair.
	pendingCR bool
}

// Push feeds the next chunk of stream bytes to the parser and returns the
// frames completed by it, in stream order. Frames that contain no data
// lines (comment-only keep-alives, stray event lines) are dropped here.
func (p *Parser) Push(chunk []byte) []Frame {
	for _, b := range chunk {
		if p.pendingCR {
			p.pendingCR = false
			p.buf = append(p.buf, '\n')
			if b == '\n' {
				continue
			}
		}
		if b == '\r' {
			p.pendingCR = true
			continue
		}
		p.buf = append(p.buf, b)
	}

	var frames []Frame
	for {
		i := bytes.Index(p.buf, frameBoundary)
		if i < 0 {
			break
		}

		frame, ok := parseFrame(p.buf[:i])
		if ok {
			frames = append(frames, frame)
		}

		// Compact the buffer past the boundary. The frame above was
		// fully materialized by parseFrame, so the overlap is safe.
		p.buf = append(p.buf[:0], p.buf[i+2:]...)
	}

	return frames
}

// Pending reports whether a partial frame is currently buffered.
func (p *Parser) Pending() bool {
	return len(p.buf) > 0 || p.pendingCR
}

var frameBoundary = []byte("\n\n")

// parseFrame interprets the lines of one complete frame. It returns false
// for frames with no data payload, which the protocol uses as keep-alives.
func parseFrame(raw []byte) (Frame, bool) {
	eventType := DefaultEventType

	var data []byte
	sawData := false

	for _, line := range bytes.Split(raw, []byte("\n")) {
		switch {
		case len(line) == 0:
			// Stray blank line inside a frame, nothing to do.

		case line[0] == ':':
			// Comment line, used by the server as a keep-alive.

		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(trimFieldValue(line[len("event:"):]))

		case bytes.HasPrefix(line, []byte("data:")):
			value := trimFieldValue(line[len("data:"):])
			if sawData {
				data = append(data, '\n')
			}
			data = append(data, value...)
			sawData = true
		}
	}

	if !sawData {
		return Frame{}, false
	}

	return Frame{EventType: eventType, Data: data}, true
}

// trimFieldValue strips the single optional space that follows a field
// name's colon.
func trimFieldValue(v []byte) []byte {
	if len(v) > 0 && v[0] == ' ' {
		return v[1:]
	}

	return v
}

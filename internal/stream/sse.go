package stream

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// sseFrame is one dispatched server-sent event.
type sseFrame struct {
	event string
	data  []byte
}

// sseDecoder reads `event:`/`data:` framed events from a response body.
// Comment lines and fields other than event/data are ignored; multiple data
// lines within one frame are joined with newlines per the SSE format.
type sseDecoder struct {
	scanner *bufio.Scanner
}

func newSSEDecoder(r io.Reader) *sseDecoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), 1<<20)
	return &sseDecoder{scanner: s}
}

// Next returns the next complete frame, or io.EOF when the stream ends
// cleanly. A frame with no data lines (e.g. a keep-alive) is skipped.
func (d *sseDecoder) Next() (sseFrame, error) {
	var frame sseFrame
	var data [][]byte

	for d.scanner.Scan() {
		line := d.scanner.Text()

		if line == "" {
			// Blank line dispatches the accumulated frame.
			if len(data) == 0 {
				frame = sseFrame{}
				continue
			}
			frame.data = bytes.Join(data, []byte("\n"))
			return frame, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			frame.event = value
		case "data":
			data = append(data, []byte(value))
		}
	}

	if err := d.scanner.Err(); err != nil {
		return sseFrame{}, err
	}
	if len(data) > 0 {
		// Stream ended mid-frame; deliver what arrived.
		frame.data = bytes.Join(data, []byte("\n"))
		return frame, nil
	}
	return sseFrame{}, io.EOF
}

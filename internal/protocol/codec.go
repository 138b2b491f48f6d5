package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxLineBytes bounds a single request line. Diffs and conflict bodies ride
// inside params, so the limit is generous.
const maxLineBytes = 4 << 20

// ErrMalformed reports a line that could not be parsed and carried no
// recoverable id, so no error response can be addressed to it.
var ErrMalformed = errors.New("protocol: malformed request without recoverable id")

// Reader decodes newline-delimited requests from a connection.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps r with line framing.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Reader{scanner: scanner}
}

// Read returns the next request. Blank lines are skipped. A line that does
// not parse as a request but still yields an id returns that id with a
// non-nil parse error so the caller can answer with a ParseError response.
// A line with no recoverable id, including a well-formed request that simply
// omits its id, returns ErrMalformed and the connection should be closed.
// io.EOF is returned verbatim when the peer closes cleanly.
func (r *Reader) Read() (Request, json.RawMessage, error) {
	for {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return Request{}, nil, err
			}
			return Request{}, nil, io.EOF
		}
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			// The envelope did not parse. Try to salvage the id so the
			// error can be addressed to the request that caused it.
			var loose struct {
				ID json.RawMessage `json:"id"`
			}
			if idErr := json.Unmarshal(line, &loose); idErr == nil && len(loose.ID) > 0 {
				return Request{}, loose.ID, fmt.Errorf("parse request: %w", err)
			}
			return Request{}, nil, ErrMalformed
		}
		if req.Method == "" {
			if len(req.ID) > 0 {
				return Request{}, req.ID, errors.New("parse request: missing method")
			}
			return Request{}, nil, ErrMalformed
		}
		// A request without an id cannot be answered; treat it like any
		// other structurally invalid line.
		if len(req.ID) == 0 {
			return Request{}, nil, ErrMalformed
		}
		return req, req.ID, nil
	}
}

// Writer encodes newline-delimited responses.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write sends one response followed by a newline.
func (w *Writer) Write(resp Response) error {
	encoded, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	encoded = append(encoded, '\n')
	if _, err := w.w.Write(encoded); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// EncodeRequest renders a request as a single line for the client side.
func EncodeRequest(req Request) ([]byte, error) {
	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return append(encoded, '\n'), nil
}

// DecodeResponse parses one response line for the client side.
func DecodeResponse(line []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(line), &resp); err != nil {
		return Response{}, fmt.Errorf("parse response: %w", err)
	}
	return resp, nil
}

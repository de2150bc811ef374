package mcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// MaxMessageSize bounds a single JSON-RPC message on either transport.
const MaxMessageSize = 4 << 20

// ServeStdio reads newline-delimited JSON-RPC messages from r and writes one
// response line per answered message to w. Requests are handled one at a
// time in arrival order. A line longer than MaxMessageSize is discarded and
// answered with an Invalid Request error. It returns nil when r reaches EOF
// and ctx.Err() when ctx is cancelled between messages.
func ServeStdio(ctx context.Context, d *Dispatcher, r io.Reader, w io.Writer) error {
	logger := slog.With("component", "mcp", "transport", "stdio")

	br := bufio.NewReaderSize(r, 64*1024)
	out := &lineWriter{w: w}

	for {
		line, tooLong, err := readLine(br, MaxMessageSize)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if tooLong {
			logger.Warn("rejected message", "code", CodeInvalidRequest, "error", "message too large", "limit", MaxMessageSize)
			msg := fmt.Sprintf("Invalid Request: message exceeds %d bytes", MaxMessageSize)
			if err := out.write(NewErrorResponse(nil, CodeInvalidRequest, msg)); err != nil {
				return err
			}
			continue
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		reqs, batch, err := DecodeMessages(line)
		if err != nil {
			var rpcErr *RPCError
			errors.As(err, &rpcErr)
			logger.Warn("rejected message", "code", rpcErr.Code, "error", rpcErr.Message)
			if err := out.write(NewErrorResponse(nil, rpcErr.Code, rpcErr.Message)); err != nil {
				return err
			}
			continue
		}

		resps := d.HandleAll(ctx, reqs)
		data, err := EncodeResponses(resps, batch)
		if err != nil {
			logger.Error("marshal error", "error", err)
			continue
		}
		if data == nil {
			continue
		}
		if err := out.writeRaw(data); err != nil {
			return err
		}
	}
}

// readLine returns the next line without its line ending. Once a line grows
// past limit its bytes are dropped and the rest of it is consumed, so the
// stream stays aligned on the following line. A final line without a
// newline is returned before io.EOF.
func readLine(br *bufio.Reader, limit int) ([]byte, bool, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			line = append(line, chunk...)
			if len(bytes.TrimRight(line, "\r\n")) > limit {
				tooLong = true
				line = nil
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == nil:
			return bytes.TrimRight(line, "\r\n"), tooLong, nil
		case errors.Is(err, io.EOF):
			if len(line) > 0 || tooLong {
				return bytes.TrimRight(line, "\r\n"), tooLong, nil
			}
			return nil, false, io.EOF
		default:
			return nil, false, err
		}
	}
}

// lineWriter writes one JSON value per line. Writes are serialised so a
// response is never interleaved with another.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lineWriter) write(resp *Response) error {
	data, err := EncodeResponses([]*Response{resp}, false)
	if err != nil {
		return err
	}
	return lw.writeRaw(data)
}

func (lw *lineWriter) writeRaw(data []byte) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, data...)
	buf = append(buf, '\n')
	_, err := lw.w.Write(buf)
	return err
}

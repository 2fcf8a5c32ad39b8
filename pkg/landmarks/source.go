package landmarks

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"
)

// Source yields landmark frames. Next returns io.EOF when the stream ends.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// maxLineSize bounds one JSONL record (478 points as text fit easily).
const maxLineSize = 1024 * 1024

// JSONLSource reads one JSON Frame per line, e.g. from a sidecar landmark
// process writing to a pipe.
type JSONLSource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
	now     func() time.Time

	// pending is non-nil while a read is in flight; only that read's
	// goroutine touches scanner until it delivers.
	pending chan scanResult
}

type scanResult struct {
	line []byte
	err  error
}

// NewJSONLSource reads frames from r. If r is an io.Closer it is closed by Close.
func NewJSONLSource(r io.Reader) *JSONLSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	s := &JSONLSource{scanner: scanner, now: time.Now}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next returns the next frame. Frames without a timestamp are stamped with
// the read time. Next returns ctx.Err() as soon as ctx is done, even while
// the reader is blocked; the interrupted read is picked up by the next call.
func (s *JSONLSource) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		raw, err := s.scan(ctx)
		if err != nil {
			return Frame{}, err
		}
		s.line++

		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}

		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			return Frame{}, &LineError{Line: s.line, Err: err}
		}
		if f.Timestamp.IsZero() {
			f.Timestamp = s.now()
		}
		return f, nil
	}
}

func (s *JSONLSource) scan(ctx context.Context) ([]byte, error) {
	if s.pending == nil {
		ch := make(chan scanResult, 1)
		s.pending = ch
		go func() {
			if s.scanner.Scan() {
				ch <- scanResult{line: append([]byte(nil), s.scanner.Bytes()...)}
				return
			}
			err := s.scanner.Err()
			if err == nil {
				err = io.EOF
			}
			ch <- scanResult{err: err}
		}()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-s.pending:
		s.pending = nil
		return r.line, r.err
	}
}

// Close closes the underlying reader when it supports it.
func (s *JSONLSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

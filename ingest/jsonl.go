package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"shrike/core"
	"shrike/metrics"
)

// Behavior logs can carry large buffers in call arguments; lines beyond
// this limit abort the stream.
const maxLineBytes = 16 * 1024 * 1024

// JSONLReader streams behavior records from a JSON Lines log. Blank
// lines are skipped, malformed lines abort the stream with the line
// number in the error.
type JSONLReader struct {
	scanner *bufio.Scanner
	line    int
}

// NewJSONLReader wraps r. The reader is not closed by the stream.
func NewJSONLReader(r io.Reader) *JSONLReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &JSONLReader{scanner: scanner}
}

// Next returns the next event or io.EOF at the end of the log.
func (r *JSONLReader) Next(ctx context.Context) (core.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for r.scanner.Scan() {
		r.line++
		data := bytes.TrimSpace(r.scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("line %d: failed to parse behavior record: %w", r.line, err)
		}
		ev, err := env.toEvent()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		metrics.EventsIngested.WithLabelValues("jsonl").Inc()
		return ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read behavior log: %w", err)
	}
	return nil, io.EOF
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"shrike/core"
	"shrike/metrics"
)

// MsgpackReader streams behavior records from a log of concatenated
// msgpack maps.
type MsgpackReader struct {
	dec *msgpack.Decoder
}

// NewMsgpackReader wraps r. The reader is not closed by the stream.
func NewMsgpackReader(r io.Reader) *MsgpackReader {
	return &MsgpackReader{dec: msgpack.NewDecoder(r)}
}

// Next returns the next event or io.EOF at the end of the log.
func (m *MsgpackReader) Next(ctx context.Context) (core.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var env envelope
	if err := m.dec.Decode(&env); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to decode behavior record: %w", err)
	}
	ev, err := env.toEvent()
	if err != nil {
		return nil, err
	}
	metrics.EventsIngested.WithLabelValues("msgpack").Inc()
	return ev, nil
}

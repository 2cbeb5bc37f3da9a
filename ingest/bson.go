package ingest

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"

	"shrike/core"
	"shrike/metrics"
)

// Documents beyond this size indicate a corrupt or hostile log.
const maxBSONDocBytes = 16 * 1024 * 1024

// BSONReader streams behavior records from a log of concatenated BSON
// documents, each prefixed by its little-endian int32 total length as the
// monitor writes them.
type BSONReader struct {
	r io.Reader
}

// NewBSONReader wraps r. The reader is not closed by the stream.
func NewBSONReader(r io.Reader) *BSONReader {
	return &BSONReader{r: r}
}

// Next returns the next event or io.EOF at the end of the log.
func (b *BSONReader) Next(ctx context.Context) (core.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var header [4]byte
	if _, err := io.ReadFull(b.r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read document header: %w", err)
	}
	size := int(binary.LittleEndian.Uint32(header[:]))
	if size < 5 || size > maxBSONDocBytes {
		return nil, fmt.Errorf("implausible document size %d", size)
	}

	doc := make([]byte, size)
	copy(doc, header[:])
	if _, err := io.ReadFull(b.r, doc[4:]); err != nil {
		return nil, fmt.Errorf("truncated document: %w", err)
	}

	var env envelope
	if err := bson.Unmarshal(doc, &env); err != nil {
		return nil, fmt.Errorf("failed to decode behavior record: %w", err)
	}
	ev, err := env.toEvent()
	if err != nil {
		return nil, err
	}
	metrics.EventsIngested.WithLabelValues("bson").Inc()
	return ev, nil
}

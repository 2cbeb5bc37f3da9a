package core

import (
	"context"
	"io"
)

// Stream yields behavioral events in chronological order. Next returns
// io.EOF after the final event; any other error means the stream source
// failed and no further events will follow.
type Stream interface {
	Next(ctx context.Context) (Event, error)
}

// SliceStream replays an in-memory event slice. It is the stream form used
// by tests and by collaborators that already hold the full event list.
type SliceStream struct {
	events []Event
	pos    int
}

// NewSliceStream returns a stream over the given events.
func NewSliceStream(events ...Event) *SliceStream {
	return &SliceStream{events: events}
}

// Next implements Stream.
func (s *SliceStream) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.events) {
		return nil, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

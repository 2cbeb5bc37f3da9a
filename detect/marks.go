package detect

import (
	"fmt"

	"shrike/core"
	"shrike/malconf"
	"shrike/metrics"
)

// DefaultMarkCap is the number of marks a finding carries when the
// definition does not override it. The true mark count is always
// reported alongside the capped view.
const DefaultMarkCap = 50

// MarkStore is the ordered, append-only evidence log of one signature
// instance. IOC marks are deduplicated structurally; every other mark
// kind may repeat. The store is unbounded internally; capping happens at
// Finalize.
type MarkStore struct {
	registry *malconf.Registry
	marks    []core.Mark
	iocSeen  map[core.IOCMark]struct{}
}

// NewMarkStore returns an empty store. Config marks are forwarded to
// registry on success; a nil registry disables forwarding.
func NewMarkStore(registry *malconf.Registry) *MarkStore {
	return &MarkStore{registry: registry}
}

// AddCall records a call mark.
func (s *MarkStore) AddCall(pid int64, callIndex int, api string) {
	s.append(core.CallMark{PID: pid, CallIndex: callIndex, API: api})
}

// AddIOC records an IOC mark unless a structurally identical one exists.
// infoSource and description may be empty.
func (s *MarkStore) AddIOC(category, ioc, infoSource, description string) {
	mark := core.IOCMark{
		Category:    category,
		IOC:         ioc,
		InfoSource:  infoSource,
		Description: description,
	}
	if _, dup := s.iocSeen[mark]; dup {
		return
	}
	if s.iocSeen == nil {
		s.iocSeen = make(map[core.IOCMark]struct{})
	}
	s.iocSeen[mark] = struct{}{}
	s.append(mark)
}

// AddVolatility records a memory-forensics mark.
func (s *MarkStore) AddVolatility(plugin string, fields map[string]interface{}) {
	s.append(core.VolatilityMark{Plugin: plugin, Fields: fields})
}

// AddConfig records a config mark and forwards the fragment to the
// configuration registry. A fragment without a family is an error and
// records nothing.
func (s *MarkStore) AddConfig(frag malconf.Fragment) error {
	if err := frag.Validate(); err != nil {
		return fmt.Errorf("config mark: %w", err)
	}
	if s.registry != nil {
		if err := s.registry.Submit(frag); err != nil {
			return fmt.Errorf("config mark: %w", err)
		}
	}
	s.append(core.ConfigMark{Config: frag.Map()})
	return nil
}

// AddGeneric records a mark with arbitrary fields.
func (s *MarkStore) AddGeneric(fields map[string]interface{}) {
	s.append(core.GenericMark{Fields: fields})
}

func (s *MarkStore) append(m core.Mark) {
	s.marks = append(s.marks, m)
	metrics.MarksRecorded.WithLabelValues(string(m.MarkKind())).Inc()
}

// Len returns the true number of marks recorded.
func (s *MarkStore) Len() int {
	return len(s.marks)
}

// Marks returns the full uncapped mark list in insertion order.
func (s *MarkStore) Marks() []core.Mark {
	return s.marks
}

// Finalize returns the first cap marks in insertion order together with
// the true total. A non-positive cap returns everything.
func (s *MarkStore) Finalize(cap int) ([]core.Mark, int) {
	total := len(s.marks)
	if cap <= 0 || cap >= total {
		return s.marks, total
	}
	return s.marks[:cap], total
}

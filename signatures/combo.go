package signatures

import (
	"shrike/core"
	"shrike/detect"
)

var evasiveProfileDef = detect.Definition{
	Name:        "evasive_network_profile",
	Description: "Combines debugger evasion with suspicious command and control endpoints",
	Severity:    4,
	Categories:  []string{"anti-analysis", "network"},
	TTPs:        []string{"T1622", "T1071"},
	Order:       2,
}

// evasiveProfile matches when every signature it watches has matched.
// It never inspects the stream itself; the router feeds it the match
// announcements of the rest of the set.
type evasiveProfile struct {
	*detect.Base
	pending map[string]struct{}
}

func (s *evasiveProfile) Definition() detect.Definition { return evasiveProfileDef }

func (s *evasiveProfile) Init() error {
	s.pending = map[string]struct{}{
		antidebugDef.Name:         {},
		networkIndicatorsDef.Name: {},
	}
	return nil
}

func (s *evasiveProfile) OnSignature(ev *core.SignatureMatched) error {
	if _, watched := s.pending[ev.Name]; !watched {
		return nil
	}
	delete(s.pending, ev.Name)
	s.Mark(map[string]interface{}{"signature": ev.Name})
	if len(s.pending) == 0 {
		s.Match()
	}
	return nil
}

func init() {
	detect.Register(evasiveProfileDef, func(b *detect.Base) detect.Signature {
		return &evasiveProfile{Base: b}
	})
}

package signatures

import (
	"shrike/detect"
	"shrike/malconf"
)

// DarkComet builds its per-install mutex from a fixed prefix and a seven
// character campaign identifier, optionally under a session namespace.
const darkCometMutexPattern = `(Global\\|Local\\)?DC_MUTEX-[A-Z0-9]{7}`

var darkCometDef = detect.Definition{
	Name:        "darkcomet_mutex",
	Description: "Creates a mutex characteristic of the DarkComet RAT",
	Severity:    5,
	Categories:  []string{"rat"},
	Families:    []string{"darkcomet"},
	TTPs:        []string{"T1219"},
	Platform:    "windows",
}

type darkCometMutex struct {
	*detect.Base
}

func (s *darkCometMutex) Definition() detect.Definition { return darkCometDef }

func (s *darkCometMutex) OnComplete() error {
	mutex, ok := s.CheckMutex(darkCometMutexPattern, true)
	if !ok {
		return nil
	}
	s.Match()
	return s.MarkConfig(malconf.NewFragment("darkcomet").Set("mutex", mutex))
}

func init() {
	detect.Register(darkCometDef, func(b *detect.Base) detect.Signature {
		return &darkCometMutex{Base: b}
	})
}

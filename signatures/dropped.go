package signatures

import (
	"shrike/core"
	"shrike/detect"
)

var droppedOverwriteDef = detect.Definition{
	Name:        "dropped_file_overwrite",
	Description: "Overwrites a file it previously dropped, a common trick to defeat hash-based collection",
	Severity:    3,
	Categories:  []string{"stealth"},
	TTPs:        []string{"T1036"},
}

// droppedOverwrite watches payloads recovered from dropped files and
// flags paths the unpacking chain reports more than once: the file on
// disk changed between recoveries.
type droppedOverwrite struct {
	*detect.Base
	seen map[string]struct{}
}

func (s *droppedOverwrite) Definition() detect.Definition { return droppedOverwriteDef }

func (s *droppedOverwrite) Init() error {
	s.seen = make(map[string]struct{})
	return nil
}

func (s *droppedOverwrite) OnExtract(match *core.ExtractedMatch) error {
	if match.Category != core.StaticCategoryDropped || match.Path == "" {
		return nil
	}
	if _, dup := s.seen[match.Path]; !dup {
		s.seen[match.Path] = struct{}{}
		return nil
	}
	s.MarkDetailedIOC("file", match.Path, "extracted", "dropped file overwritten after recovery")
	s.Match()
	return nil
}

func init() {
	detect.Register(droppedOverwriteDef, func(b *detect.Base) detect.Signature {
		return &droppedOverwrite{Base: b}
	})
}

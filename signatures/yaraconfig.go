package signatures

import (
	"fmt"

	"shrike/core"
	"shrike/detect"
	"shrike/malconf"
)

var yaraFamilyDef = detect.Definition{
	Name:        "family_payload_scan",
	Description: "A memory dump or unpacked payload matched a known malware family rule",
	Severity:    5,
	Categories:  []string{"unpacking"},
	TTPs:        []string{"T1027"},
}

// yaraFamilyMeta are the rule metadata keys copied into the recovered
// configuration alongside the family name.
var yaraFamilyMeta = []string{"version", "campaign", "type"}

// yaraFamily turns family-annotated static rule hits into configuration
// fragments. Rules declare the family through a "family" metadata entry;
// hits without one are someone else's business.
type yaraFamily struct {
	*detect.Base
}

func (s *yaraFamily) Definition() detect.Definition { return yaraFamilyDef }

func (s *yaraFamily) OnYara(match *core.StaticMatch) error {
	family := metaString(match.Meta, "family")
	if family == "" {
		return nil
	}

	frag := malconf.NewFragment(family)
	frag.Set("rule", match.Rule)
	for _, key := range yaraFamilyMeta {
		if v := metaString(match.Meta, key); v != "" {
			frag.Set(key, v)
		}
	}
	if err := s.MarkConfig(frag); err != nil {
		return err
	}
	s.Match()
	return nil
}

func metaString(meta map[string]interface{}, key string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

func init() {
	detect.Register(yaraFamilyDef, func(b *detect.Base) detect.Signature {
		return &yaraFamily{Base: b}
	})
}

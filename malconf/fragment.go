package malconf

import (
	"errors"
	"fmt"
)

// ErrInvalidFragment is returned when a fragment is submitted without a
// family name. The submission is rejected and nothing is mutated.
var ErrInvalidFragment = errors.New("config fragment has no family")

// Fragment is a partial family configuration recovered by a collaborator
// (a signature marking configuration, or an unpacker pushing its results).
// Family is required; Fields carries arbitrary key/value extractions.
type Fragment struct {
	Family string
	Fields map[string]interface{}
}

// NewFragment returns a fragment for the given family.
func NewFragment(family string) Fragment {
	return Fragment{Family: family, Fields: make(map[string]interface{})}
}

// Set stores a field value and returns the fragment for chaining.
func (f Fragment) Set(key string, value interface{}) Fragment {
	if f.Fields == nil {
		f.Fields = make(map[string]interface{})
	}
	f.Fields[key] = value
	return f
}

// Validate checks that the fragment names a family.
func (f Fragment) Validate() error {
	if f.Family == "" {
		return ErrInvalidFragment
	}
	return nil
}

// Map renders the fragment as a flat document with the family under the
// "family" key, the shape config marks carry in findings.
func (f Fragment) Map() map[string]interface{} {
	doc := make(map[string]interface{}, len(f.Fields)+1)
	for k, v := range f.Fields {
		doc[k] = v
	}
	doc["family"] = f.Family
	return doc
}

// FragmentFromMap builds a fragment from a flat document, pulling the
// family out of the "family" key. The family may be absent or empty here;
// Submit rejects such fragments.
func FragmentFromMap(doc map[string]interface{}) Fragment {
	frag := Fragment{Fields: make(map[string]interface{}, len(doc))}
	for k, v := range doc {
		if k == "family" {
			if s, ok := v.(string); ok {
				frag.Family = s
			} else if v != nil {
				frag.Family = fmt.Sprint(v)
			}
			continue
		}
		frag.Fields[k] = v
	}
	return frag
}

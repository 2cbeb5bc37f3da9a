// Package mitre resolves tactic/technique identifiers to human-readable
// descriptions for inclusion in findings.
package mitre

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"shrike/core"
)

// Dictionary maps TTP identifiers to their descriptions. Unknown
// identifiers resolve to an empty description, never an error.
type Dictionary struct {
	descriptions map[string]core.TTPDescription
}

// New returns an empty dictionary.
func New() *Dictionary {
	return &Dictionary{descriptions: make(map[string]core.TTPDescription)}
}

// Add registers or replaces one identifier.
func (d *Dictionary) Add(id, short, long string) {
	d.descriptions[id] = core.TTPDescription{Short: short, Long: long}
}

// Describe returns the description for id, zero when unknown.
func (d *Dictionary) Describe(id string) core.TTPDescription {
	return d.descriptions[id]
}

// Known reports whether id has a description.
func (d *Dictionary) Known(id string) bool {
	_, ok := d.descriptions[id]
	return ok
}

// Len returns the number of registered identifiers.
func (d *Dictionary) Len() int {
	return len(d.descriptions)
}

// Resolve renders descriptions for every given identifier. Each id gets
// an entry; unknown ids carry a zero description so the report still
// names them.
func (d *Dictionary) Resolve(ids []string) map[string]core.TTPDescription {
	out := make(map[string]core.TTPDescription, len(ids))
	for _, id := range ids {
		out[id] = d.descriptions[id]
	}
	return out
}

// LoadFile reads a YAML dictionary of the form
//
//	T1057:
//	  short: Process Discovery
//	  long: Adversaries may attempt to get information about processes.
//
// and merges it over the receiver, replacing duplicate identifiers.
func (d *Dictionary) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read ttp dictionary: %w", err)
	}
	var raw map[string]core.TTPDescription
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse ttp dictionary %s: %w", path, err)
	}
	for id, desc := range raw {
		d.descriptions[id] = desc
	}
	return nil
}

// Load reads a YAML dictionary from path into a fresh dictionary.
func Load(path string) (*Dictionary, error) {
	d := New()
	if err := d.LoadFile(path); err != nil {
		return nil, err
	}
	return d, nil
}

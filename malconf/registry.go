// Package malconf accumulates malware configuration fragments recovered
// during an analysis into canonical per-family records. Fragments arrive
// from signatures (config marks) and from unpacking collaborators; each
// field is merged under one of four policies (singleton, list, keyed
// crypto material, extra) after synonym normalization.
package malconf

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"shrike/metrics"
)

// Conflict records a rejected second value for a singleton field. The
// first value is retained; the conflict is non-fatal.
type Conflict struct {
	Family   string      `json:"family"`
	Key      string      `json:"key"`
	Existing interface{} `json:"existing"`
	Rejected interface{} `json:"rejected"`
}

// Record is the canonical accumulation of every fragment submitted for
// one family. Accessors return live internal state; callers must not
// mutate it and, when submissions may still be in flight, must read
// through the Registry instead.
type Record struct {
	Family string

	singletons map[string]interface{}
	lists      map[string][]string
	cryptoKeys map[string][]string
	extra      map[string][]interface{}
}

func newRecord(family string) *Record {
	return &Record{
		Family:     family,
		singletons: make(map[string]interface{}),
		lists:      make(map[string][]string),
		cryptoKeys: make(map[string][]string),
		extra:      make(map[string][]interface{}),
	}
}

// Singleton returns the value of a single-entry field.
func (rec *Record) Singleton(key string) (interface{}, bool) {
	v, ok := rec.singletons[key]
	return v, ok
}

// List returns the ordered values of a multi-entry field.
func (rec *Record) List(key string) []string {
	return rec.lists[key]
}

// CryptoKeys returns the accumulated material for one key kind, e.g.
// "rc4key".
func (rec *Record) CryptoKeys(kind string) []string {
	return rec.cryptoKeys[kind]
}

// Extra returns the values collected under an unclassified key.
func (rec *Record) Extra(key string) []interface{} {
	return rec.extra[key]
}

// Map renders the record in its canonical document shape: singletons at
// the top level, list fields as ordered slices, crypto material under
// "key", unclassified fields under "extra".
func (rec *Record) Map() map[string]interface{} {
	doc := map[string]interface{}{
		"family": rec.Family,
	}
	for k, v := range rec.singletons {
		doc[k] = v
	}
	for k, vs := range rec.lists {
		doc[k] = append([]string(nil), vs...)
	}
	if len(rec.cryptoKeys) > 0 {
		keys := make(map[string]interface{}, len(rec.cryptoKeys))
		for k, vs := range rec.cryptoKeys {
			keys[k] = append([]string(nil), vs...)
		}
		doc["key"] = keys
	}
	if len(rec.extra) > 0 {
		extra := make(map[string]interface{}, len(rec.extra))
		for k, vs := range rec.extra {
			extra[k] = append([]interface{}(nil), vs...)
		}
		doc["extra"] = extra
	}
	return doc
}

// Registry owns all family records of one analysis. It is safe for
// concurrent use: signature dispatch and unpacking collaborators may
// submit from different goroutines.
type Registry struct {
	log *zap.SugaredLogger

	mu        sync.Mutex
	entries   []Fragment
	families  map[string]*Record
	order     []string
	conflicts []Conflict
}

// NewRegistry returns an empty registry. A nil logger disables logging.
func NewRegistry(logger *zap.SugaredLogger) *Registry {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Registry{
		log:      logger,
		families: make(map[string]*Record),
	}
}

// Submit merges one fragment into its family record. The first fragment
// naming a family creates the record and fixes the family's position in
// the listing order. Fragments without a family are rejected with
// ErrInvalidFragment and mutate nothing.
func (r *Registry) Submit(frag Fragment) error {
	if err := frag.Validate(); err != nil {
		r.log.Errorw("rejected malware config fragment",
			"error", err,
			"fields", len(frag.Fields),
		)
		metrics.FragmentsRejected.Inc()
		return fmt.Errorf("submit config fragment: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, frag)

	rec, ok := r.families[frag.Family]
	if !ok {
		rec = newRecord(frag.Family)
		r.families[frag.Family] = rec
		r.order = append(r.order, frag.Family)
	}

	for key, value := range frag.Fields {
		r.mergeField(rec, key, value)
	}

	metrics.FragmentsSubmitted.Inc()
	return nil
}

func (r *Registry) mergeField(rec *Record, rawKey string, value interface{}) {
	if emptyValue(value) {
		return
	}
	key, pol := classify(rawKey)

	switch pol {
	case policySkip:
		return

	case policySingleton:
		existing, ok := rec.singletons[key]
		if ok {
			if !reflect.DeepEqual(existing, value) {
				r.log.Errorw("duplicate value for config field",
					"family", rec.Family,
					"key", key,
					"existing", existing,
					"rejected", value,
				)
				r.conflicts = append(r.conflicts, Conflict{
					Family:   rec.Family,
					Key:      key,
					Existing: existing,
					Rejected: value,
				})
				metrics.MergeConflicts.Inc()
			}
			return
		}
		rec.singletons[key] = value

	case policyList:
		for _, v := range stringValues(value) {
			rec.lists[key] = appendUniqueString(rec.lists[key], v)
		}

	case policyCryptoKey:
		for _, v := range stringValues(value) {
			rec.cryptoKeys[key] = appendUniqueString(rec.cryptoKeys[key], v)
		}

	case policyExtra:
		rec.extra[key] = appendUniqueValue(rec.extra[key], value)
	}
}

// Get traverses the record of family by successive keys and returns the
// value found there. The second return is false as soon as any level is
// absent or the terminal value is empty. Get never panics.
func (r *Registry) Get(family string, keys ...string) (interface{}, bool) {
	r.mu.Lock()
	rec, ok := r.families[family]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	cur := interface{}(rec.Map())
	r.mu.Unlock()

	for _, key := range keys {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	if emptyValue(cur) {
		return nil, false
	}
	return cur, true
}

// Family returns the record for name, or nil when no fragment has named
// that family yet.
func (r *Registry) Family(name string) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.families[name]
}

// Records returns all family records in first-insertion order.
func (r *Registry) Records() []*Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Record, 0, len(r.order))
	for _, family := range r.order {
		out = append(out, r.families[family])
	}
	return out
}

// Maps renders all family records in first-insertion order. The returned
// documents are detached copies safe to serialize or mutate.
func (r *Registry) Maps() []map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(r.order))
	for _, family := range r.order {
		out = append(out, r.families[family].Map())
	}
	return out
}

// Conflicts returns every singleton conflict observed so far.
func (r *Registry) Conflicts() []Conflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Conflict(nil), r.conflicts...)
}

// Entries returns the raw fragments accepted so far, in submission order.
func (r *Registry) Entries() []Fragment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Fragment(nil), r.entries...)
}

// Len returns the number of distinct families recorded.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func appendUniqueString(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

func appendUniqueValue(values []interface{}, v interface{}) []interface{} {
	for _, existing := range values {
		if reflect.DeepEqual(existing, v) {
			return values
		}
	}
	return append(values, v)
}

package malconf

import (
	"fmt"
	"reflect"
)

// fieldPolicy is the merge policy applied to one fragment key.
type fieldPolicy int

const (
	// policySkip drops the key entirely.
	policySkip fieldPolicy = iota
	// policySingleton stores one value, first submission wins.
	policySingleton
	// policyList appends to an ordered deduplicated list.
	policyList
	// policyCryptoKey appends to the per-key-kind bucket of keyed
	// cryptographic material.
	policyCryptoKey
	// policyExtra appends to a deduplicated list under the literal key in
	// the extra bucket. Fallback for every unclassified key.
	policyExtra
)

// skipKeys are dropped before any other policy applies. "family" is the
// record identity, "extra" is reserved for the output bucket.
var skipKeys = map[string]struct{}{
	"family": {},
	"extra":  {},
}

// synonyms normalizes alternate spellings before classification.
var synonyms = map[string]string{
	"cncs":       "cnc",
	"urls":       "url",
	"user-agent": "user_agent",
}

// fieldPolicies classifies every recognized key. Keys absent from the
// table fall through to policyExtra.
var fieldPolicies = map[string]fieldPolicy{
	"type":     policySingleton,
	"version":  policySingleton,
	"magic":    policySingleton,
	"campaign": policySingleton,

	"cnc":        policyList,
	"url":        policyList,
	"mutex":      policyList,
	"user_agent": policyList,
	"referrer":   policyList,

	"des3key": policyCryptoKey,
	"rc4key":  policyCryptoKey,
	"xorkey":  policyCryptoKey,
	"pubkey":  policyCryptoKey,
	"privkey": policyCryptoKey,
	"iv":      policyCryptoKey,
}

// classify resolves the policy for a raw fragment key. Precedence is
// fixed: skip, then synonym normalization, then the policy table, then
// the extra fallback. The normalized key is returned alongside.
func classify(key string) (string, fieldPolicy) {
	if _, ok := skipKeys[key]; ok {
		return key, policySkip
	}
	if norm, ok := synonyms[key]; ok {
		key = norm
	}
	if p, ok := fieldPolicies[key]; ok {
		return key, p
	}
	return key, policyExtra
}

// emptyValue reports whether a fragment value carries no information and
// should be ignored before policy dispatch.
func emptyValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case int:
		return t == 0
	case int32:
		return t == 0
	case int64:
		return t == 0
	case float32:
		return t == 0
	case float64:
		return t == 0
	case []byte:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

// stringValues coerces a fragment value into its element strings: a
// scalar becomes a one-element slice, sequences yield one string per
// element, byte slices decode as text. Empty elements are dropped.
func stringValues(v interface{}) []string {
	var out []string
	appendOne := func(e interface{}) {
		var s string
		switch t := e.(type) {
		case nil:
			return
		case string:
			s = t
		case []byte:
			s = string(t)
		case fmt.Stringer:
			s = t.String()
		default:
			s = fmt.Sprint(t)
		}
		if s != "" {
			out = append(out, s)
		}
	}

	switch t := v.(type) {
	case []string:
		for _, e := range t {
			appendOne(e)
		}
	case []interface{}:
		for _, e := range t {
			appendOne(e)
		}
	case []byte:
		appendOne(t)
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			for i := 0; i < rv.Len(); i++ {
				appendOne(rv.Index(i).Interface())
			}
			break
		}
		appendOne(v)
	}
	return out
}

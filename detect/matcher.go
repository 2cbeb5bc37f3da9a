// Package detect implements the signature engine: pattern matching over
// behavioral artifacts, evidence collection, event routing to signature
// instances and aggregation of matched instances into findings.
package detect

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"shrike/metrics"
)

// DefaultRegexTimeout bounds a single pattern evaluation. Patterns with
// catastrophic backtracking abort with ErrRegexTimeout instead of
// stalling the analysis.
const DefaultRegexTimeout = 500 * time.Millisecond

// DefaultPatternCacheSize is the number of compiled patterns kept hot.
const DefaultPatternCacheSize = 1024

// DefaultMaxPatternLength bounds accepted pattern sources.
const DefaultMaxPatternLength = 4096

// ErrRegexTimeout reports a pattern evaluation aborted by MatchTimeout.
var ErrRegexTimeout = errors.New("regex evaluation timeout")

// MatcherOptions tune a Matcher. Zero values select the defaults.
type MatcherOptions struct {
	Timeout          time.Duration
	CacheSize        int
	MaxPatternLength int
}

// Matcher checks a literal or pattern against candidate strings. Literal
// comparison is case-insensitive equality. Pattern comparison compiles
// the pattern case-insensitively with anchored-at-start semantics: a
// candidate matches only when the pattern matches from its first
// character, trailing content need not be consumed.
//
// Compiled patterns are kept in an LRU cache shared across signature
// instances; Matcher is safe for concurrent use.
type Matcher struct {
	log        *zap.SugaredLogger
	timeout    time.Duration
	maxPattern int
	cache      *lru.Cache[string, *regexp2.Regexp]
}

// NewMatcher returns a Matcher with the given options applied over the
// defaults. A nil logger disables logging.
func NewMatcher(logger *zap.SugaredLogger, opts MatcherOptions) (*Matcher, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRegexTimeout
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultPatternCacheSize
	}
	if opts.MaxPatternLength <= 0 {
		opts.MaxPatternLength = DefaultMaxPatternLength
	}
	cache, err := lru.New[string, *regexp2.Regexp](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create pattern cache: %w", err)
	}
	return &Matcher{
		log:        logger,
		timeout:    opts.Timeout,
		maxPattern: opts.MaxPatternLength,
		cache:      cache,
	}, nil
}

// MatchOne returns one arbitrary matching candidate and whether anything
// matched. Callers must not rely on which candidate is returned when more
// than one matches.
func (m *Matcher) MatchOne(pattern string, regex bool, candidates ...string) (string, bool) {
	set := m.matchSet(pattern, regex, candidates)
	if len(set) == 0 {
		return "", false
	}
	return set[0], true
}

// MatchAll returns the full deduplicated match set. The order of the
// returned elements is unspecified.
func (m *Matcher) MatchAll(pattern string, regex bool, candidates ...string) []string {
	return m.matchSet(pattern, regex, candidates)
}

func (m *Matcher) matchSet(pattern string, regex bool, candidates []string) []string {
	var (
		out  []string
		seen map[string]struct{}
	)
	for _, candidate := range candidates {
		var matched bool
		if regex {
			matched = m.matchRegex(pattern, candidate)
		} else {
			matched = strings.EqualFold(pattern, candidate)
		}
		if !matched {
			continue
		}
		if seen == nil {
			seen = make(map[string]struct{})
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}
	return out
}

func (m *Matcher) matchRegex(pattern, input string) bool {
	re, err := m.compile(pattern)
	if err != nil {
		m.log.Warnw("unusable pattern", "pattern", pattern, "error", err)
		return false
	}

	matched, err := re.MatchString(input)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "timeout") {
			metrics.RegexTimeouts.Inc()
			m.log.Warnw("pattern evaluation timed out",
				"pattern", pattern,
				"timeout", m.timeout,
				"input_length", len(input),
			)
			return false
		}
		m.log.Warnw("pattern evaluation failed", "pattern", pattern, "error", err)
		return false
	}
	return matched
}

// compile returns the cached compiled form of pattern, compiling and
// caching it on first use. The pattern is wrapped to anchor at the start
// of the candidate, reproducing match-from-first-character semantics.
func (m *Matcher) compile(pattern string) (*regexp2.Regexp, error) {
	if len(pattern) > m.maxPattern {
		return nil, fmt.Errorf("pattern exceeds %d bytes", m.maxPattern)
	}
	if re, ok := m.cache.Get(pattern); ok {
		metrics.PatternCacheHits.Inc()
		return re, nil
	}
	metrics.PatternCacheMisses.Inc()

	re, err := regexp2.Compile(`\A(?:`+pattern+`)`, regexp2.IgnoreCase)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	re.MatchTimeout = m.timeout

	m.cache.Add(pattern, re)
	return re, nil
}

package detect

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := NewMatcher(zap.NewNop().Sugar(), MatcherOptions{})
	require.NoError(t, err)
	return m
}

func TestMatcherLiteralIsCaseInsensitive(t *testing.T) {
	m := newTestMatcher(t)

	value, ok := m.MatchOne("evil.exe", false, "EVIL.EXE")
	assert.True(t, ok)
	assert.Equal(t, "EVIL.EXE", value)

	_, ok = m.MatchOne("evil.exe", false, "C:\\Windows\\evil.exe")
	assert.False(t, ok, "literal mode compares whole values, not substrings")
}

func TestMatcherRegexAnchorsAtStart(t *testing.T) {
	m := newTestMatcher(t)

	_, ok := m.MatchOne("abc.*", true, "ABCDEF")
	assert.True(t, ok, "anchored prefix should match regardless of case")

	_, ok = m.MatchOne("abc.*", true, "XABCDEF")
	assert.False(t, ok, "pattern must match from the first character")

	// A full-string match is not required, only a prefix.
	value, ok := m.MatchOne("abc", true, "abcdef")
	assert.True(t, ok)
	assert.Equal(t, "abcdef", value)
}

func TestMatcherMatchAllKeepsCandidateOrder(t *testing.T) {
	m := newTestMatcher(t)

	values := m.MatchAll(".*\\.exe$", true, "b.exe", "a.exe", "c.dll", "b.exe")
	assert.Equal(t, []string{"b.exe", "a.exe"}, values)
}

func TestMatcherMatchAllDedupesExactValues(t *testing.T) {
	m := newTestMatcher(t)

	values := m.MatchAll("foo", false, "foo", "FOO", "foo")
	assert.Equal(t, []string{"foo", "FOO"}, values)
}

func TestMatcherFirstMatchWins(t *testing.T) {
	m := newTestMatcher(t)

	value, ok := m.MatchOne("mutex_.*", true, "other", "Mutex_A", "mutex_b")
	assert.True(t, ok)
	assert.Equal(t, "Mutex_A", value)
}

func TestMatcherInvalidPatternNeverMatches(t *testing.T) {
	m := newTestMatcher(t)

	_, ok := m.MatchOne("([", true, "([", "anything")
	assert.False(t, ok)
	assert.Empty(t, m.MatchAll("([", true, "value"))
}

func TestMatcherRejectsOversizedPatterns(t *testing.T) {
	m := newTestMatcher(t)

	pattern := strings.Repeat("a", DefaultMaxPatternLength+1)
	_, ok := m.MatchOne(pattern, true, strings.Repeat("a", 16))
	assert.False(t, ok)
}

func TestMatcherCachesCompiledPatterns(t *testing.T) {
	m := newTestMatcher(t)

	for i := 0; i < 3; i++ {
		_, ok := m.MatchOne("cache.*", true, "cached-value")
		assert.True(t, ok)
	}
	assert.Equal(t, 1, m.cache.Len())

	m.MatchOne("other.*", true, "other-value")
	assert.Equal(t, 2, m.cache.Len())
}

func TestMatcherTimesOutOnCatastrophicPattern(t *testing.T) {
	m, err := NewMatcher(zap.NewNop().Sugar(), MatcherOptions{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	subject := strings.Repeat("a", 64) + "!"
	start := time.Now()
	_, ok := m.MatchOne("(a+)+$", true, subject)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 10*time.Second, "timeout should abort the backtracking search")
}

package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shrike/core"
	"shrike/malconf"
)

func TestMarkStoreKeepsArrivalOrder(t *testing.T) {
	s := NewMarkStore(nil)
	s.AddCall(100, 7, "CreateMutexW")
	s.AddIOC("url", "http://evil.test/gate.php", "", "")
	s.AddGeneric(map[string]interface{}{"note": "observed"})

	marks := s.Marks()
	require.Len(t, marks, 3)
	assert.Equal(t, core.MarkKindCall, marks[0].MarkKind())
	assert.Equal(t, core.MarkKindIOC, marks[1].MarkKind())
	assert.Equal(t, core.MarkKindGeneric, marks[2].MarkKind())

	call := marks[0].(core.CallMark)
	assert.Equal(t, int64(100), call.PID)
	assert.Equal(t, 7, call.CallIndex)
	assert.Equal(t, "CreateMutexW", call.API)
}

func TestMarkStoreDedupesStructurallyEqualIOCs(t *testing.T) {
	s := NewMarkStore(nil)
	s.AddIOC("domain", "evil.test", "", "")
	s.AddIOC("domain", "evil.test", "", "")
	assert.Equal(t, 1, s.Len())

	// A differing description is a distinct observation.
	s.AddIOC("domain", "evil.test", "", "seen in dropper traffic")
	assert.Equal(t, 2, s.Len())

	// Same value under another category is distinct too.
	s.AddIOC("url", "evil.test", "", "")
	assert.Equal(t, 3, s.Len())
}

func TestMarkStoreCallMarksAreNotDeduped(t *testing.T) {
	s := NewMarkStore(nil)
	s.AddCall(1, 3, "NtCreateFile")
	s.AddCall(1, 3, "NtCreateFile")
	assert.Equal(t, 2, s.Len())
}

func TestMarkStoreFinalizeCapsButCountsAll(t *testing.T) {
	s := NewMarkStore(nil)
	for i := 0; i < 60; i++ {
		s.AddCall(1, i, "NtWriteFile")
	}

	marks, total := s.Finalize(50)
	assert.Len(t, marks, 50)
	assert.Equal(t, 60, total)
	assert.Equal(t, 0, marks[0].(core.CallMark).CallIndex)
	assert.Equal(t, 49, marks[49].(core.CallMark).CallIndex)

	all, total := s.Finalize(0)
	assert.Len(t, all, 60)
	assert.Equal(t, 60, total)
}

func TestMarkStoreConfigForwardsToRegistry(t *testing.T) {
	registry := malconf.NewRegistry(nil)
	s := NewMarkStore(registry)

	frag := malconf.NewFragment("zeus").Set("cnc", "10.0.0.1")
	require.NoError(t, s.AddConfig(frag))

	require.Equal(t, 1, registry.Len())
	rec := registry.Family("zeus")
	require.NotNil(t, rec)
	assert.Equal(t, []string{"10.0.0.1"}, rec.List("cnc"))

	mark := s.Marks()[0].(core.ConfigMark)
	assert.Equal(t, "zeus", mark.Config["family"])
}

func TestMarkStoreConfigWithoutFamilyIsRejected(t *testing.T) {
	registry := malconf.NewRegistry(nil)
	s := NewMarkStore(registry)

	err := s.AddConfig(malconf.Fragment{Fields: map[string]interface{}{"cnc": "10.0.0.1"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, malconf.ErrInvalidFragment)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, registry.Len())
}

func TestMarkStoreVolatilityMarkShape(t *testing.T) {
	s := NewMarkStore(nil)
	s.AddVolatility("malfind", map[string]interface{}{"pid": 4})

	doc := s.Marks()[0].Map()
	assert.Equal(t, "volatility", doc["type"])
	assert.Equal(t, "malfind", doc["plugin"])
	assert.Equal(t, 4, doc["pid"])
}

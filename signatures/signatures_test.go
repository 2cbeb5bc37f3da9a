package signatures

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shrike/core"
	"shrike/detect"
	"shrike/mitre"
)

// singleCatalog returns a catalog holding only the signature under test,
// so the rest of the built-in set cannot interfere.
func singleCatalog(t *testing.T, def detect.Definition, f detect.Factory) *detect.Catalog {
	t.Helper()
	c := detect.NewCatalog()
	require.NoError(t, c.Register(def, f))
	return c
}

func newEngine(t *testing.T, cfg detect.EngineConfig) *detect.Engine {
	t.Helper()
	e, err := detect.NewEngine(cfg)
	require.NoError(t, err)
	return e
}

func runStream(t *testing.T, e *detect.Engine, events ...core.Event) {
	t.Helper()
	require.NoError(t, e.Run(context.Background(), core.NewSliceStream(events...)))
}

func findingNames(findings []core.Finding) []string {
	names := make([]string, 0, len(findings))
	for _, f := range findings {
		names = append(names, f.Name)
	}
	return names
}

func TestBuiltinSetRegistered(t *testing.T) {
	want := []string{
		"antidebug_api",
		"mass_file_activity",
		"darkcomet_mutex",
		"network_suspicious_endpoints",
		"family_payload_scan",
		"evasive_network_profile",
		"dropped_file_overwrite",
	}
	assert.ElementsMatch(t, want, definitionNames(detect.DefaultCatalog.Definitions()))
}

func TestBuiltinTTPsResolve(t *testing.T) {
	dict := mitre.Builtin()
	for _, def := range detect.DefaultCatalog.Definitions() {
		for _, id := range def.TTPs {
			assert.True(t, dict.Known(id), "%s references unknown technique %s", def.Name, id)
		}
	}
}

func definitionNames(defs []detect.Definition) []string {
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	return names
}

func TestAntidebugMatchesProbeCall(t *testing.T) {
	c := singleCatalog(t, antidebugDef, func(b *detect.Base) detect.Signature {
		return &antidebug{Base: b}
	})
	e := newEngine(t, detect.EngineConfig{Catalog: c})
	runStream(t, e,
		&core.Call{PID: 1, CallIndex: 0, API: "NtCreateFile", Category: "file"},
		&core.Call{PID: 1, CallIndex: 1, API: "IsDebuggerPresent", Category: "system"},
		&core.Call{PID: 1, CallIndex: 2, API: "CheckRemoteDebuggerPresent", Category: "system"},
	)

	findings := e.Findings()
	require.Len(t, findings, 1)
	assert.Equal(t, "antidebug_api", findings[0].Name)
	// The Done verdict ends call delivery after the first probe.
	require.Len(t, findings[0].Marks, 1)
	assert.Equal(t, "IsDebuggerPresent", findings[0].Marks[0]["api"])
	assert.Equal(t, "Debugger Evasion", findings[0].TTP["T1622"].Short)
}

func TestAntidebugIgnoresBenignInformationClasses(t *testing.T) {
	c := singleCatalog(t, antidebugDef, func(b *detect.Base) detect.Signature {
		return &antidebug{Base: b}
	})
	e := newEngine(t, detect.EngineConfig{Catalog: c})
	runStream(t, e,
		&core.Call{PID: 1, API: "NtQueryInformationProcess", Category: "process",
			Arguments: map[string]interface{}{"information_class": "0"}},
		&core.Call{PID: 1, API: "NtSetInformationThread", Category: "process",
			Arguments: map[string]interface{}{"information_class": "9"}},
	)
	assert.Empty(t, e.Findings())
}

func TestAntidebugDebugPortQuery(t *testing.T) {
	c := singleCatalog(t, antidebugDef, func(b *detect.Base) detect.Signature {
		return &antidebug{Base: b}
	})
	e := newEngine(t, detect.EngineConfig{Catalog: c})
	runStream(t, e,
		&core.Call{PID: 1, API: "NtQueryInformationProcess", Category: "process",
			Arguments: map[string]interface{}{"information_class": 7}},
	)
	require.Len(t, e.Findings(), 1)
}

func TestMassFileActivityAboveThreshold(t *testing.T) {
	c := singleCatalog(t, massFileDef, func(b *detect.Base) detect.Signature {
		return &massFileActivity{Base: b}
	})
	e := newEngine(t, detect.EngineConfig{Catalog: c})

	var events []core.Event
	for i := 0; i < massFileWriteThreshold; i++ {
		events = append(events, &core.Call{
			PID: 1, CallIndex: i, API: "NtWriteFile", Category: "file", Status: true,
			Arguments: map[string]interface{}{"filepath": fmt.Sprintf(`C:\docs\%d.txt`, i)},
		})
	}
	runStream(t, e, events...)

	findings := e.Findings()
	require.Len(t, findings, 1)
	require.Len(t, findings[0].Marks, 1)
	assert.Equal(t, "generic", findings[0].Marks[0]["type"])
	assert.Equal(t, massFileWriteThreshold, findings[0].Marks[0]["files_written"])
}

func TestMassFileActivityIgnoresFailedAndScarceCalls(t *testing.T) {
	c := singleCatalog(t, massFileDef, func(b *detect.Base) detect.Signature {
		return &massFileActivity{Base: b}
	})
	e := newEngine(t, detect.EngineConfig{Catalog: c})

	var events []core.Event
	for i := 0; i < massFileWriteThreshold; i++ {
		// Failed writes do not count towards the threshold.
		events = append(events, &core.Call{
			PID: 1, CallIndex: i, API: "NtWriteFile", Category: "file", Status: false,
		})
	}
	events = append(events, &core.Call{
		PID: 1, API: "NtWriteFile", Category: "file", Status: true,
	})
	runStream(t, e, events...)

	assert.Empty(t, e.Findings())
}

func TestDarkCometMutexRecoversConfig(t *testing.T) {
	c := singleCatalog(t, darkCometDef, func(b *detect.Base) detect.Signature {
		return &darkCometMutex{Base: b}
	})
	results := core.NewResults()
	results.AddArtifact(1208, core.ActionMutex, `DC_MUTEX-F54S21D`)
	results.AddArtifact(1208, core.ActionMutex, `Shell.CMutex`)

	e := newEngine(t, detect.EngineConfig{Catalog: c, Results: results})
	runStream(t, e)

	findings := e.Findings()
	require.Len(t, findings, 1)
	assert.Equal(t, "darkcomet_mutex", findings[0].Name)
	require.Len(t, findings[0].Marks, 1)
	assert.Equal(t, map[string]interface{}{
		"type":   "config",
		"config": map[string]interface{}{"family": "darkcomet", "mutex": "DC_MUTEX-F54S21D"},
	}, findings[0].Marks[0])

	// The fragment also reached the shared registry.
	v, ok := e.Configuration().Get("darkcomet", "mutex")
	require.True(t, ok)
	assert.Equal(t, []string{"DC_MUTEX-F54S21D"}, v)
}

func TestDarkCometMutexStaysQuiet(t *testing.T) {
	c := singleCatalog(t, darkCometDef, func(b *detect.Base) detect.Signature {
		return &darkCometMutex{Base: b}
	})
	results := core.NewResults()
	results.AddArtifact(1208, core.ActionMutex, `Local\MSCTF.Asm.MutexDefault1`)

	e := newEngine(t, detect.EngineConfig{Catalog: c, Results: results})
	runStream(t, e)
	assert.Empty(t, e.Findings())
}

func TestNetworkIndicatorsCollectIOCs(t *testing.T) {
	c := singleCatalog(t, networkIndicatorsDef, func(b *detect.Base) detect.Signature {
		return &networkIndicators{Base: b}
	})
	results := core.NewResults()
	results.Network.Domains = []core.DomainLookup{
		{Domain: "cdn.example.com", IP: "93.184.216.34"},
		{Domain: "panel.no-ip.biz", IP: "185.220.10.4"},
		{Domain: "backup.duckdns.org", IP: "185.220.10.5"},
	}
	results.Network.HTTP = []core.HTTPRequest{
		{Method: "GET", Host: "cdn.example.com", URI: "http://cdn.example.com/jquery.js"},
		{Method: "POST", Host: "185.220.10.4", URI: "http://185.220.10.4/gate.php"},
	}

	e := newEngine(t, detect.EngineConfig{Catalog: c, Results: results})
	runStream(t, e)

	findings := e.Findings()
	require.Len(t, findings, 1)

	var iocs []string
	for _, mark := range findings[0].Marks {
		require.Equal(t, "ioc", mark["type"])
		iocs = append(iocs, mark["ioc"].(string))
	}
	assert.ElementsMatch(t, []string{
		"panel.no-ip.biz",
		"backup.duckdns.org",
		"http://185.220.10.4/gate.php",
	}, iocs)
}

func TestNetworkIndicatorsIgnoreOrdinaryTraffic(t *testing.T) {
	c := singleCatalog(t, networkIndicatorsDef, func(b *detect.Base) detect.Signature {
		return &networkIndicators{Base: b}
	})
	results := core.NewResults()
	results.Network.Domains = []core.DomainLookup{{Domain: "www.msftncsi.com"}}
	results.Network.HTTP = []core.HTTPRequest{
		{Method: "GET", URI: "http://www.msftncsi.com/ncsi.txt"},
	}

	e := newEngine(t, detect.EngineConfig{Catalog: c, Results: results})
	runStream(t, e)
	assert.Empty(t, e.Findings())
}

func TestYaraFamilyConfigFromMeta(t *testing.T) {
	c := singleCatalog(t, yaraFamilyDef, func(b *detect.Base) detect.Signature {
		return &yaraFamily{Base: b}
	})
	e := newEngine(t, detect.EngineConfig{Catalog: c})
	runStream(t, e,
		&core.StaticMatch{
			Category: core.StaticCategoryProcmem,
			Rule:     "zeus_unpacked",
			Meta:     map[string]interface{}{"family": "zeus", "version": "2.1.0"},
		},
		// No family annotation, not this signature's business.
		&core.StaticMatch{
			Category: core.StaticCategoryDropped,
			Rule:     "suspicious_packer",
			Meta:     map[string]interface{}{"author": "lab"},
		},
	)

	findings := e.Findings()
	require.Len(t, findings, 1)
	require.Len(t, findings[0].Marks, 1)
	cfg := findings[0].Marks[0]["config"].(map[string]interface{})
	assert.Equal(t, "zeus", cfg["family"])
	assert.Equal(t, "2.1.0", cfg["version"])
	assert.Equal(t, "zeus_unpacked", cfg["rule"])

	version, ok := e.Configuration().Get("zeus", "version")
	require.True(t, ok)
	assert.Equal(t, "2.1.0", version)
}

func TestEvasiveProfileNeedsBothComponents(t *testing.T) {
	c := detect.NewCatalog()
	require.NoError(t, c.Register(antidebugDef, func(b *detect.Base) detect.Signature {
		return &antidebug{Base: b}
	}))
	require.NoError(t, c.Register(networkIndicatorsDef, func(b *detect.Base) detect.Signature {
		return &networkIndicators{Base: b}
	}))
	require.NoError(t, c.Register(evasiveProfileDef, func(b *detect.Base) detect.Signature {
		return &evasiveProfile{Base: b}
	}))

	results := core.NewResults()
	results.Network.Domains = []core.DomainLookup{{Domain: "panel.no-ip.biz"}}

	e := newEngine(t, detect.EngineConfig{Catalog: c, Results: results})
	runStream(t, e, &core.Call{PID: 1, API: "IsDebuggerPresent", Category: "system"})

	names := findingNames(e.Findings())
	assert.ElementsMatch(t, []string{
		"antidebug_api",
		"network_suspicious_endpoints",
		"evasive_network_profile",
	}, names)

	for _, f := range e.Findings() {
		if f.Name != "evasive_network_profile" {
			continue
		}
		require.Len(t, f.Marks, 2)
		var observed []string
		for _, mark := range f.Marks {
			observed = append(observed, mark["signature"].(string))
		}
		assert.ElementsMatch(t, []string{"antidebug_api", "network_suspicious_endpoints"}, observed)
	}
}

func TestEvasiveProfileSingleComponentIsNotEnough(t *testing.T) {
	c := detect.NewCatalog()
	require.NoError(t, c.Register(antidebugDef, func(b *detect.Base) detect.Signature {
		return &antidebug{Base: b}
	}))
	require.NoError(t, c.Register(evasiveProfileDef, func(b *detect.Base) detect.Signature {
		return &evasiveProfile{Base: b}
	}))

	e := newEngine(t, detect.EngineConfig{Catalog: c})
	runStream(t, e, &core.Call{PID: 1, API: "IsDebuggerPresent", Category: "system"})

	assert.ElementsMatch(t, []string{"antidebug_api"}, findingNames(e.Findings()))
}

func TestDroppedOverwriteFlagsRepeatedPath(t *testing.T) {
	c := singleCatalog(t, droppedOverwriteDef, func(b *detect.Base) detect.Signature {
		return &droppedOverwrite{Base: b}
	})
	e := newEngine(t, detect.EngineConfig{Catalog: c})
	path := `C:\Users\victim\AppData\Local\Temp\payload.exe`
	runStream(t, e,
		&core.ExtractedMatch{Category: core.StaticCategoryDropped, PID: 1, Path: path},
		&core.ExtractedMatch{Category: core.StaticCategoryDropped, PID: 1, Path: `C:\other.exe`},
		&core.ExtractedMatch{Category: core.StaticCategoryDropped, PID: 1, Path: path},
	)

	findings := e.Findings()
	require.Len(t, findings, 1)
	require.Len(t, findings[0].Marks, 1)
	assert.Equal(t, path, findings[0].Marks[0]["ioc"])
}

func TestDroppedOverwriteIgnoresOtherCategories(t *testing.T) {
	c := singleCatalog(t, droppedOverwriteDef, func(b *detect.Base) detect.Signature {
		return &droppedOverwrite{Base: b}
	})
	e := newEngine(t, detect.EngineConfig{Catalog: c})
	path := `C:\Users\victim\AppData\Local\Temp\payload.exe`
	runStream(t, e,
		&core.ExtractedMatch{Category: core.StaticCategoryExtracted, PID: 1, Path: path},
		&core.ExtractedMatch{Category: core.StaticCategoryExtracted, PID: 1, Path: path},
	)
	assert.Empty(t, e.Findings())
}

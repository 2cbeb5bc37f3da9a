package signatures

import (
	"shrike/core"
	"shrike/detect"
)

// debuggerProbeAPIs are the monitored calls used to discover an attached
// debugger. The information-class APIs appear in benign code too and are
// only counted when queried for one of the debug classes.
var debuggerProbeAPIs = []string{
	"IsDebuggerPresent",
	"CheckRemoteDebuggerPresent",
	"NtQueryInformationProcess",
	"NtSetInformationThread",
	"OutputDebugStringA",
	"OutputDebugStringW",
}

var antidebugDef = detect.Definition{
	Name:           "antidebug_api",
	Description:    "Checks for the presence of a debugger through API calls known to be used for debugger detection",
	Severity:       3,
	Categories:     []string{"anti-analysis"},
	TTPs:           []string{"T1622"},
	FilterAPINames: debuggerProbeAPIs,
}

type antidebug struct {
	*detect.Base
}

func (s *antidebug) Definition() detect.Definition { return antidebugDef }

func (s *antidebug) OnCall(call *core.Call) (detect.Verdict, error) {
	if !isDebuggerProbe(call) {
		return detect.Continue, nil
	}
	s.MarkCall()
	s.Match()
	return detect.Done, nil
}

func isDebuggerProbe(call *core.Call) bool {
	switch call.API {
	case "NtQueryInformationProcess":
		switch call.ArgString("information_class") {
		// ProcessDebugPort, ProcessDebugObjectHandle, ProcessDebugFlags.
		case "7", "30", "31":
			return true
		}
		return false
	case "NtSetInformationThread":
		// ThreadHideFromDebugger.
		return call.ArgString("information_class") == "17"
	}
	return true
}

func init() {
	detect.Register(antidebugDef, func(b *detect.Base) detect.Signature {
		return &antidebug{Base: b}
	})
}

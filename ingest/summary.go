package ingest

import (
	"context"

	"shrike/core"
)

// artifactRule maps one monitored API to the summary action it feeds and
// the call argument holding the artifact value.
type artifactRule struct {
	action string
	arg    string
}

var artifactRules = map[string]artifactRule{
	"NtCreateFile":          {core.ActionFileOpened, "filepath"},
	"NtOpenFile":            {core.ActionFileOpened, "filepath"},
	"NtWriteFile":           {core.ActionFileWritten, "filepath"},
	"NtReadFile":            {core.ActionFileRead, "filepath"},
	"DeleteFileW":           {core.ActionFileDeleted, "filepath"},
	"NtDeleteFile":          {core.ActionFileDeleted, "filepath"},
	"MoveFileWithProgressW": {core.ActionFileDeleted, "oldfilepath"},

	"RegOpenKeyExA":    {core.ActionRegkeyOpened, "regkey"},
	"RegOpenKeyExW":    {core.ActionRegkeyOpened, "regkey"},
	"RegCreateKeyExW":  {core.ActionRegkeyOpened, "regkey"},
	"RegSetValueExA":   {core.ActionRegkeyWritten, "regkey"},
	"RegSetValueExW":   {core.ActionRegkeyWritten, "regkey"},
	"NtSetValueKey":    {core.ActionRegkeyWritten, "regkey"},
	"RegQueryValueExA": {core.ActionRegkeyRead, "regkey"},
	"RegQueryValueExW": {core.ActionRegkeyRead, "regkey"},
	"NtQueryValueKey":  {core.ActionRegkeyRead, "regkey"},
	"RegDeleteKeyA":    {core.ActionRegkeyDeleted, "regkey"},
	"RegDeleteKeyW":    {core.ActionRegkeyDeleted, "regkey"},
	"RegDeleteValueW":  {core.ActionRegkeyDeleted, "regkey"},

	"CreateMutexA":   {core.ActionMutex, "mutex_name"},
	"CreateMutexW":   {core.ActionMutex, "mutex_name"},
	"NtCreateMutant": {core.ActionMutex, "mutex_name"},

	"LoadLibraryA":   {core.ActionDLLLoaded, "module_name"},
	"LoadLibraryW":   {core.ActionDLLLoaded, "module_name"},
	"LoadLibraryExA": {core.ActionDLLLoaded, "module_name"},
	"LoadLibraryExW": {core.ActionDLLLoaded, "module_name"},
	"LdrLoadDll":     {core.ActionDLLLoaded, "module_name"},

	"CreateProcessInternalW": {core.ActionCommandLine, "command_line"},
	"ShellExecuteExW":        {core.ActionCommandLine, "filepath"},

	"IWbemServices_ExecQuery": {core.ActionWMIQuery, "query"},
	"CoCreateInstance":        {core.ActionGUIDUsed, "clsid"},
}

// Summarizer passes a stream through unchanged while folding its records
// into a results tree, so that completion-phase signatures can query the
// behavioral summary the calls produced.
type Summarizer struct {
	stream  core.Stream
	results *core.Results
}

// NewSummarizer wraps stream, recording into results.
func NewSummarizer(stream core.Stream, results *core.Results) *Summarizer {
	return &Summarizer{stream: stream, results: results}
}

// Next forwards the underlying stream's next event after folding it.
func (s *Summarizer) Next(ctx context.Context) (core.Event, error) {
	ev, err := s.stream.Next(ctx)
	if err != nil {
		return nil, err
	}
	s.fold(ev)
	return ev, nil
}

func (s *Summarizer) fold(ev core.Event) {
	switch ev := ev.(type) {
	case *core.ProcessSwitch:
		s.results.EnsureProcess(ev.PID, ev.PPID, ev.ProcessName, ev.FirstSeen)
	case *core.Call:
		s.foldCall(ev)
	case *core.ExtractedMatch:
		s.results.Extracted = append(s.results.Extracted, core.ExtractedPayload{
			Category: ev.Category,
			PID:      ev.PID,
			Path:     ev.Path,
			Info:     ev.Info,
		})
	}
}

func (s *Summarizer) foldCall(call *core.Call) {
	s.results.EnsureProcess(call.PID, 0, "", call.Time)
	rule, ok := artifactRules[call.API]
	if !ok {
		return
	}
	value := call.ArgString(rule.arg)
	if value == "" {
		return
	}
	action := rule.action
	if !call.Status && action == core.ActionFileOpened {
		action = core.ActionFileFailed
	}
	s.results.AddArtifact(call.PID, action, value)
}

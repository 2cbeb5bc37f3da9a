package core

import "time"

// Summary action keys recorded by the monitor. Signatures address
// behavioral artifacts through these names.
const (
	ActionFileOpened  = "file_opened"
	ActionFileWritten = "file_written"
	ActionFileRead    = "file_read"
	ActionFileDeleted = "file_deleted"
	ActionFileExists  = "file_exists"
	ActionFileFailed  = "file_failed"

	ActionRegkeyOpened  = "regkey_opened"
	ActionRegkeyWritten = "regkey_written"
	ActionRegkeyRead    = "regkey_read"
	ActionRegkeyDeleted = "regkey_deleted"

	ActionMutex       = "mutex"
	ActionDLLLoaded   = "dll_loaded"
	ActionCommandLine = "command_line"
	ActionWMIQuery    = "wmi_query"
	ActionGUIDUsed    = "guid"
)

// DefaultFileActions is the action set file checks consult when the caller
// does not narrow it.
var DefaultFileActions = []string{
	ActionFileOpened, ActionFileWritten,
	ActionFileRead, ActionFileDeleted,
	ActionFileExists, ActionFileFailed,
}

// DefaultRegistryActions is the action set registry checks consult when the
// caller does not narrow it.
var DefaultRegistryActions = []string{
	ActionRegkeyWritten, ActionRegkeyOpened,
	ActionRegkeyRead, ActionRegkeyDeleted,
}

// Target describes the sample under analysis.
type Target struct {
	Category string `json:"category" bson:"category"`
	Name     string `json:"name,omitempty" bson:"name,omitempty"`
	Path     string `json:"path,omitempty" bson:"path,omitempty"`
	URL      string `json:"url,omitempty" bson:"url,omitempty"`
	MD5      string `json:"md5,omitempty" bson:"md5,omitempty"`
	SHA1     string `json:"sha1,omitempty" bson:"sha1,omitempty"`
	SHA256   string `json:"sha256,omitempty" bson:"sha256,omitempty"`
}

// ProcessSummary aggregates the behavioral artifacts of one monitored
// process, keyed by action.
type ProcessSummary struct {
	PID         int64               `json:"pid" bson:"pid"`
	PPID        int64               `json:"ppid" bson:"ppid"`
	ProcessName string              `json:"process_name" bson:"process_name"`
	FirstSeen   time.Time           `json:"first_seen" bson:"first_seen"`
	Summary     map[string][]string `json:"summary" bson:"summary"`
}

// DomainLookup is one resolved domain observed on the wire.
type DomainLookup struct {
	Domain string `json:"domain" bson:"domain"`
	IP     string `json:"ip,omitempty" bson:"ip,omitempty"`
}

// HTTPRequest is one HTTP transaction observed on the wire.
type HTTPRequest struct {
	Method string `json:"method,omitempty" bson:"method,omitempty"`
	Host   string `json:"host,omitempty" bson:"host,omitempty"`
	URI    string `json:"uri" bson:"uri"`
	UA     string `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
}

// Network aggregates network-level artifacts of the analysis.
type Network struct {
	Hosts   []string       `json:"hosts,omitempty" bson:"hosts,omitempty"`
	Domains []DomainLookup `json:"domains,omitempty" bson:"domains,omitempty"`
	HTTP    []HTTPRequest  `json:"http,omitempty" bson:"http,omitempty"`
}

// DroppedFile is a file written to disk by the sample and collected after
// the run.
type DroppedFile struct {
	Name     string  `json:"name" bson:"name"`
	Path     string  `json:"path,omitempty" bson:"path,omitempty"`
	FileType string  `json:"file_type,omitempty" bson:"file_type,omitempty"`
	SHA256   string  `json:"sha256,omitempty" bson:"sha256,omitempty"`
	PIDs     []int64 `json:"pids,omitempty" bson:"pids,omitempty"`
}

// ExtractedPayload is a payload recovered by the unpacking chain.
type ExtractedPayload struct {
	Category string                 `json:"category" bson:"category"`
	PID      int64                  `json:"pid" bson:"pid"`
	Path     string                 `json:"path,omitempty" bson:"path,omitempty"`
	Info     map[string]interface{} `json:"info,omitempty" bson:"info,omitempty"`
}

// Results is the structured results tree of one analysis. Signatures query
// it through their evaluation context; the ingestion layer populates it
// while replaying a behavior log.
type Results struct {
	Target    Target                 `json:"target" bson:"target"`
	Processes []*ProcessSummary      `json:"processes,omitempty" bson:"processes,omitempty"`
	Summary   map[string][]string    `json:"summary,omitempty" bson:"summary,omitempty"`
	Network   Network                `json:"network,omitempty" bson:"network,omitempty"`
	Dropped   []DroppedFile          `json:"dropped,omitempty" bson:"dropped,omitempty"`
	Extracted []ExtractedPayload     `json:"extracted,omitempty" bson:"extracted,omitempty"`
	Memory    map[string]interface{} `json:"memory,omitempty" bson:"memory,omitempty"`

	procIndex map[int64]*ProcessSummary
}

// NewResults returns an empty results tree ready for population.
func NewResults() *Results {
	return &Results{
		Summary:   make(map[string][]string),
		Memory:    make(map[string]interface{}),
		procIndex: make(map[int64]*ProcessSummary),
	}
}

// EnsureProcess returns the summary for pid, creating it on first sight.
func (r *Results) EnsureProcess(pid, ppid int64, name string, firstSeen time.Time) *ProcessSummary {
	if r.procIndex == nil {
		r.procIndex = make(map[int64]*ProcessSummary)
	}
	if p, ok := r.procIndex[pid]; ok {
		// Backfill identity fields a bare call record could not supply.
		if p.ProcessName == "" && name != "" {
			p.ProcessName = name
		}
		if p.PPID == 0 && ppid != 0 {
			p.PPID = ppid
		}
		return p
	}
	p := &ProcessSummary{
		PID:         pid,
		PPID:        ppid,
		ProcessName: name,
		FirstSeen:   firstSeen,
		Summary:     make(map[string][]string),
	}
	r.procIndex[pid] = p
	r.Processes = append(r.Processes, p)
	return p
}

// Process returns the summary for pid, or nil when the process was never
// observed.
func (r *Results) Process(pid int64) *ProcessSummary {
	if r.procIndex == nil {
		r.rebuildProcIndex()
	}
	return r.procIndex[pid]
}

// rebuildProcIndex restores the pid index after external construction,
// e.g. a Results literal assembled by a test or decoded from a report.
func (r *Results) rebuildProcIndex() {
	r.procIndex = make(map[int64]*ProcessSummary, len(r.Processes))
	for _, p := range r.Processes {
		r.procIndex[p.PID] = p
	}
}

// AddArtifact records value under the action key for both the process and
// the global summary. Values already present for that action are skipped.
func (r *Results) AddArtifact(pid int64, action, value string) {
	if value == "" {
		return
	}
	if p := r.Process(pid); p != nil {
		p.Summary[action] = appendUnique(p.Summary[action], value)
	}
	if r.Summary == nil {
		r.Summary = make(map[string][]string)
	}
	r.Summary[action] = appendUnique(r.Summary[action], value)
}

// SummaryValues returns the global summary values for one action.
func (r *Results) SummaryValues(action string) []string {
	return r.Summary[action]
}

// SummaryByPID collects summary values for the given actions, restricted
// to pid when pid is non-zero.
func (r *Results) SummaryByPID(pid int64, actions ...string) []string {
	var out []string
	for _, p := range r.Processes {
		if pid != 0 && p.PID != pid {
			continue
		}
		for _, action := range actions {
			out = append(out, p.Summary[action]...)
		}
	}
	return out
}

// Files returns file paths touched by the analysis. A zero pid means all
// processes; a nil action list means the default file action set.
func (r *Results) Files(pid int64, actions []string) []string {
	if actions == nil {
		actions = DefaultFileActions
	}
	return r.SummaryByPID(pid, actions...)
}

// RegistryKeys returns registry keys touched by the analysis. A zero pid
// means all processes; a nil action list means the default registry action
// set.
func (r *Results) RegistryKeys(pid int64, actions []string) []string {
	if actions == nil {
		actions = DefaultRegistryActions
	}
	return r.SummaryByPID(pid, actions...)
}

// Mutexes returns mutex names created or opened during the analysis.
func (r *Results) Mutexes(pid int64) []string {
	return r.SummaryByPID(pid, ActionMutex)
}

// DLLsLoaded returns libraries loaded during the analysis.
func (r *Results) DLLsLoaded(pid int64) []string {
	return r.SummaryByPID(pid, ActionDLLLoaded)
}

// CommandLines returns every command line observed.
func (r *Results) CommandLines() []string {
	return r.SummaryValues(ActionCommandLine)
}

// Hosts returns every contacted host address.
func (r *Results) Hosts() []string {
	return r.Network.Hosts
}

// DomainNames returns the distinct resolved domain names.
func (r *Results) DomainNames() []string {
	var out []string
	seen := make(map[string]struct{}, len(r.Network.Domains))
	for _, d := range r.Network.Domains {
		if _, ok := seen[d.Domain]; ok {
			continue
		}
		seen[d.Domain] = struct{}{}
		out = append(out, d.Domain)
	}
	return out
}

// RequestedURIs returns the distinct URIs requested over HTTP.
func (r *Results) RequestedURIs() []string {
	var out []string
	seen := make(map[string]struct{}, len(r.Network.HTTP))
	for _, h := range r.Network.HTTP {
		if _, ok := seen[h.URI]; ok {
			continue
		}
		seen[h.URI] = struct{}{}
		out = append(out, h.URI)
	}
	return out
}

// TargetHashes returns the hashes of the submitted file, empty for URL
// targets.
func (r *Results) TargetHashes() []string {
	if r.Target.Category != "file" {
		return nil
	}
	var out []string
	for _, h := range []string{r.Target.MD5, r.Target.SHA1, r.Target.SHA256} {
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

// Volatility returns the output of one memory-forensics plugin, or the
// whole memory section when plugin is empty.
func (r *Results) Volatility(plugin string) interface{} {
	if plugin == "" {
		return r.Memory
	}
	return r.Memory[plugin]
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

package detect

import (
	"go.uber.org/zap"

	"shrike/core"
	"shrike/malconf"
	"shrike/mitre"
)

// Verdict is the explicit return of a call handler: whether the instance
// wants further call events. The zero value is Continue.
type Verdict int

const (
	// Continue keeps the instance subscribed to call events.
	Continue Verdict = iota
	// Done unsubscribes the instance from further call events. Other
	// event kinds are still delivered until the instance matches or the
	// stream ends.
	Done
)

// Signature is the minimal contract of a detection rule implementation:
// it names its static definition. Event interest is declared by
// additionally implementing the capability interfaces below; a kind whose
// interface is not implemented is never offered to the signature.
type Signature interface {
	Definition() Definition
}

// Initializer runs once before any event is delivered.
type Initializer interface {
	Init() error
}

// CallHandler receives monitored API calls that pass the definition's
// interest filters.
type CallHandler interface {
	OnCall(call *core.Call) (Verdict, error)
}

// ProcessHandler receives process switches.
type ProcessHandler interface {
	OnProcess(ps *core.ProcessSwitch) error
}

// YaraHandler receives static-scan matches.
type YaraHandler interface {
	OnYara(match *core.StaticMatch) error
}

// ExtractHandler receives unpacked payload matches.
type ExtractHandler interface {
	OnExtract(match *core.ExtractedMatch) error
}

// SignatureObserver receives the matches of other signatures evaluating
// at an equal or lower order.
type SignatureObserver interface {
	OnSignature(matched *core.SignatureMatched) error
}

// Completer runs once after the stream is exhausted, on every instance
// that was ever active, matched or not. Late evidence and verdicts based
// on accumulated counters belong here.
type Completer interface {
	OnComplete() error
}

// Factory builds a fresh signature handler bound to one analysis. The
// base carries the evaluation context and must be embedded or retained
// by the returned handler.
type Factory func(base *Base) Signature

// Definition is the static metadata of a detection rule. Definitions are
// value objects: the engine copies them per instance and never mutates
// them, and handlers must treat them as read-only.
type Definition struct {
	Name        string   `yaml:"name" json:"name" validate:"required"`
	Description string   `yaml:"description" json:"description"`
	Severity    int      `yaml:"severity" json:"severity" validate:"min=1,max=5"`
	Order       int      `yaml:"order" json:"order" validate:"min=0"`
	Categories  []string `yaml:"categories" json:"categories,omitempty"`
	Families    []string `yaml:"families" json:"families,omitempty"`
	Authors     []string `yaml:"authors" json:"authors,omitempty"`
	References  []string `yaml:"references" json:"references,omitempty"`
	Platform    string   `yaml:"platform" json:"platform,omitempty"`
	Disabled    bool     `yaml:"disabled" json:"disabled,omitempty"`
	TTPs        []string `yaml:"ttps" json:"ttps,omitempty"`

	// Interest filters for call events. An empty set accepts everything
	// on its dimension; a non-empty set must contain the call's value.
	FilterAPINames   []string `yaml:"filter_apinames" json:"filter_apinames,omitempty"`
	FilterCategories []string `yaml:"filter_categories" json:"filter_categories,omitempty"`

	// MarkCap bounds the marks carried by the finding. Zero selects
	// DefaultMarkCap.
	MarkCap int `yaml:"markcap" json:"markcap,omitempty" validate:"min=0"`

	// Monitor version constraints, informational.
	Minimum string `yaml:"minimum" json:"minimum,omitempty"`
	Maximum string `yaml:"maximum" json:"maximum,omitempty"`
}

// normalized returns the definition with defaults applied.
func (d Definition) normalized() Definition {
	if d.MarkCap == 0 {
		d.MarkCap = DefaultMarkCap
	}
	return d
}

// Context gives a signature instance access to the analysis it is bound
// to.
type Context interface {
	// Results returns the structured analysis results tree.
	Results() *core.Results
	// Configuration returns the shared malware configuration registry.
	Configuration() *malconf.Registry
	// TTPs returns the technique dictionary of this analysis.
	TTPs() *mitre.Dictionary
	// Logger returns the analysis logger.
	Logger() *zap.SugaredLogger
}

// Base is the per-instance runtime a signature handler builds on: the
// analysis context, the evidence log, the shared value matcher and the
// current evaluation cursor. Signature implementations embed the *Base
// their factory receives.
type Base struct {
	ctx     Context
	matcher *Matcher
	marks   *MarkStore

	matched bool

	// Evaluation cursor, updated by the router as events are delivered.
	pid  int64
	cid  int
	call *core.Call
}

func newBase(ctx Context, matcher *Matcher, marks *MarkStore) *Base {
	return &Base{ctx: ctx, matcher: matcher, marks: marks}
}

// Results returns the analysis results tree.
func (b *Base) Results() *core.Results {
	return b.ctx.Results()
}

// Configuration returns the shared configuration registry.
func (b *Base) Configuration() *malconf.Registry {
	return b.ctx.Configuration()
}

// Logger returns the analysis logger.
func (b *Base) Logger() *zap.SugaredLogger {
	return b.ctx.Logger()
}

// Match sets the matched flag. The router announces the transition to
// observing signatures after the current handler returns.
func (b *Base) Match() {
	b.matched = true
}

// Matched reports whether the instance has declared a match.
func (b *Base) Matched() bool {
	return b.matched
}

// CurrentPID returns the pid of the process whose events are being
// delivered.
func (b *Base) CurrentPID() int64 {
	return b.pid
}

// CurrentCallIndex returns the index of the call being delivered.
func (b *Base) CurrentCallIndex() int {
	return b.cid
}

// CurrentCall returns the call being delivered, nil outside call
// delivery.
func (b *Base) CurrentCall() *core.Call {
	return b.call
}

func (b *Base) setProcess(pid int64) {
	b.pid = pid
}

func (b *Base) setCall(call *core.Call) {
	b.pid = call.PID
	b.cid = call.CallIndex
	b.call = call
}

// MarkCall records the call currently being delivered as evidence.
func (b *Base) MarkCall() {
	api := ""
	if b.call != nil {
		api = b.call.API
	}
	b.marks.AddCall(b.pid, b.cid, api)
}

// MarkIOC records an indicator of compromise as evidence. Structurally
// identical IOCs are recorded once.
func (b *Base) MarkIOC(category, ioc string) {
	b.marks.AddIOC(category, ioc, "", "")
}

// MarkDetailedIOC records an IOC with its source and description.
func (b *Base) MarkDetailedIOC(category, ioc, infoSource, description string) {
	b.marks.AddIOC(category, ioc, infoSource, description)
}

// MarkVolatility records memory-forensics output as evidence.
func (b *Base) MarkVolatility(plugin string, fields map[string]interface{}) {
	b.marks.AddVolatility(plugin, fields)
}

// MarkConfig records a recovered family configuration and submits it to
// the shared registry. A fragment without a family is an error; returning
// it from the handler faults the instance.
func (b *Base) MarkConfig(frag malconf.Fragment) error {
	return b.marks.AddConfig(frag)
}

// Mark records arbitrary evidence fields.
func (b *Base) Mark(fields map[string]interface{}) {
	b.marks.AddGeneric(fields)
}

// MarkCount returns the number of marks recorded so far.
func (b *Base) MarkCount() int {
	return b.marks.Len()
}

// HasMarks reports whether any evidence has been recorded.
func (b *Base) HasMarks() bool {
	return b.marks.Len() > 0
}

// Match helpers over the shared value matcher.

// MatchOne checks pattern against the candidates and returns one
// arbitrary match.
func (b *Base) MatchOne(pattern string, regex bool, candidates ...string) (string, bool) {
	return b.matcher.MatchOne(pattern, regex, candidates...)
}

// MatchAll checks pattern against the candidates and returns the full
// match set.
func (b *Base) MatchAll(pattern string, regex bool, candidates ...string) []string {
	return b.matcher.MatchAll(pattern, regex, candidates...)
}

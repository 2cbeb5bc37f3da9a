package detect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"go.uber.org/zap"

	"shrike/core"
	"shrike/malconf"
	"shrike/metrics"
	"shrike/mitre"
)

// ErrEngineFinished is returned when Run is called twice on one engine.
// Engines are bound to a single analysis and are never reused.
var ErrEngineFinished = errors.New("engine already evaluated its stream")

// Instance is one runtime instantiation of a signature bound to an
// analysis: the handler object, its evidence log and its routing state.
type Instance struct {
	def  Definition
	sig  Signature
	base *Base

	initializer Initializer
	onCall      CallHandler
	onProcess   ProcessHandler
	onYara      YaraHandler
	onExtract   ExtractHandler
	onSignature SignatureObserver
	completer   Completer

	apiFilter map[string]struct{}
	catFilter map[string]struct{}

	callActive bool
	announced  bool
	faulted    bool
}

// Name returns the signature name.
func (inst *Instance) Name() string { return inst.def.Name }

// Definition returns the signature's static definition.
func (inst *Instance) Definition() Definition { return inst.def }

// Matched reports whether the instance declared a match.
func (inst *Instance) Matched() bool { return inst.base.Matched() }

// Faulted reports whether a handler failure excluded this instance.
func (inst *Instance) Faulted() bool { return inst.faulted }

// skipDelivery reports whether ordinary events are withheld: matched and
// faulted instances receive nothing further except completion.
func (inst *Instance) skipDelivery() bool {
	return inst.faulted || inst.base.Matched()
}

// wantsCall applies the interest filters. Each non-empty filter must
// contain the call's value on its dimension; empty filters accept all.
func (inst *Instance) wantsCall(call *core.Call) bool {
	if len(inst.apiFilter) > 0 {
		if _, ok := inst.apiFilter[call.API]; !ok {
			return false
		}
	}
	if len(inst.catFilter) > 0 {
		if _, ok := inst.catFilter[call.Category]; !ok {
			return false
		}
	}
	return true
}

// EngineConfig assembles an engine. Nil fields select defaults: the
// default catalog, an empty results tree, a fresh configuration registry,
// the builtin TTP dictionary and a default matcher.
type EngineConfig struct {
	Catalog  *Catalog
	Results  *core.Results
	Config   *malconf.Registry
	TTPs     *mitre.Dictionary
	Matcher  *Matcher
	Platform string
	// MarkCap is a global ceiling on marks carried per finding. Zero
	// leaves per-signature caps in effect; a lower per-signature cap
	// still wins.
	MarkCap int
	Logger  *zap.SugaredLogger
}

// Engine routes one analysis's event stream to its signature instances
// and aggregates the outcome. Evaluation is single-threaded: handlers run
// to completion per event, in instance evaluation order. An Engine is not
// safe for concurrent use and serves exactly one analysis.
type Engine struct {
	log      *zap.SugaredLogger
	matcher  *Matcher
	results  *core.Results
	config   *malconf.Registry
	ttps     *mitre.Dictionary
	platform string
	markCap  int

	instances   []*Instance
	diagnostics []core.Diagnostic
	ran         bool
}

// NewEngine instantiates every enabled signature whose platform matches
// and binds it to the analysis context.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	matcher := cfg.Matcher
	if matcher == nil {
		var err error
		matcher, err = NewMatcher(logger, MatcherOptions{})
		if err != nil {
			return nil, err
		}
	}
	results := cfg.Results
	if results == nil {
		results = core.NewResults()
	}
	config := cfg.Config
	if config == nil {
		config = malconf.NewRegistry(logger)
	}
	ttps := cfg.TTPs
	if ttps == nil {
		ttps = mitre.Builtin()
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = DefaultCatalog
	}

	e := &Engine{
		log:      logger,
		matcher:  matcher,
		results:  results,
		config:   config,
		ttps:     ttps,
		platform: cfg.Platform,
		markCap:  cfg.MarkCap,
	}

	for _, reg := range catalog.registrations() {
		def := reg.Definition
		if def.Disabled {
			continue
		}
		if def.Platform != "" && cfg.Platform != "" && def.Platform != cfg.Platform {
			continue
		}
		e.addInstance(reg)
	}
	return e, nil
}

func (e *Engine) addInstance(reg Registration) {
	base := newBase(e, e.matcher, NewMarkStore(e.config))
	sig := reg.New(base)
	if sig == nil {
		e.log.Errorw("signature factory returned nil, skipping", "signature", reg.Definition.Name)
		return
	}
	inst := &Instance{
		def:        reg.Definition,
		sig:        sig,
		base:       base,
		apiFilter:  stringSet(reg.Definition.FilterAPINames),
		catFilter:  stringSet(reg.Definition.FilterCategories),
		callActive: true,
	}
	inst.initializer, _ = sig.(Initializer)
	inst.onCall, _ = sig.(CallHandler)
	inst.onProcess, _ = sig.(ProcessHandler)
	inst.onYara, _ = sig.(YaraHandler)
	inst.onExtract, _ = sig.(ExtractHandler)
	inst.onSignature, _ = sig.(SignatureObserver)
	inst.completer, _ = sig.(Completer)
	e.instances = append(e.instances, inst)
}

// Context implementation handed to signature bases.

// Results returns the analysis results tree.
func (e *Engine) Results() *core.Results { return e.results }

// Configuration returns the shared configuration registry.
func (e *Engine) Configuration() *malconf.Registry { return e.config }

// TTPs returns the technique dictionary of this analysis.
func (e *Engine) TTPs() *mitre.Dictionary { return e.ttps }

// Logger returns the analysis logger.
func (e *Engine) Logger() *zap.SugaredLogger { return e.log }

// Run drains the stream, delivering each event to the interested
// instances in evaluation order, then runs the completion phase. A
// cancelled context abandons the analysis without running completion
// handlers. Handler failures never abort the run; they fault the
// offending instance only.
func (e *Engine) Run(ctx context.Context, stream core.Stream) error {
	if e.ran {
		return ErrEngineFinished
	}
	e.ran = true

	start := time.Now()
	defer func() {
		metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	}()

	for _, inst := range e.instances {
		if inst.initializer == nil || inst.faulted {
			continue
		}
		e.invoke(inst, "init", func() error { return inst.initializer.Init() })
	}

	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("event stream: %w", err)
		}
		e.dispatch(ev)
	}

	e.complete()

	matched := 0
	for _, inst := range e.instances {
		if !inst.faulted && inst.base.Matched() {
			matched++
		}
	}
	metrics.FindingsPerAnalysis.Observe(float64(matched))
	return nil
}

func (e *Engine) dispatch(ev core.Event) {
	metrics.EventsRouted.WithLabelValues(string(ev.Kind())).Inc()

	switch ev := ev.(type) {
	case *core.Call:
		e.dispatchCall(ev)
	case *core.ProcessSwitch:
		e.dispatchProcess(ev)
	case *core.StaticMatch:
		e.dispatchYara(ev)
	case *core.ExtractedMatch:
		e.dispatchExtract(ev)
	case *core.SignatureMatched:
		// Injected by an external collaborator; routed like our own
		// match announcements.
		e.deliverSignature(ev, nil)
	default:
		e.log.Warnw("dropping event of unknown kind", "kind", ev.Kind())
	}
}

func (e *Engine) dispatchCall(call *core.Call) {
	for _, inst := range e.instances {
		if inst.skipDelivery() || inst.onCall == nil || !inst.callActive {
			continue
		}
		if !inst.wantsCall(call) {
			continue
		}
		inst.base.setCall(call)
		verdict := Continue
		e.invoke(inst, "call", func() error {
			v, err := inst.onCall.OnCall(call)
			verdict = v
			return err
		})
		if inst.faulted {
			continue
		}
		if verdict == Done {
			inst.callActive = false
		}
		e.checkTransition(inst)
	}
}

func (e *Engine) dispatchProcess(ps *core.ProcessSwitch) {
	for _, inst := range e.instances {
		if inst.skipDelivery() {
			continue
		}
		inst.base.setProcess(ps.PID)
		if inst.onProcess == nil {
			continue
		}
		e.invoke(inst, "process", func() error { return inst.onProcess.OnProcess(ps) })
		if !inst.faulted {
			e.checkTransition(inst)
		}
	}
}

func (e *Engine) dispatchYara(match *core.StaticMatch) {
	for _, inst := range e.instances {
		if inst.skipDelivery() || inst.onYara == nil {
			continue
		}
		e.invoke(inst, "yara", func() error { return inst.onYara.OnYara(match) })
		if !inst.faulted {
			e.checkTransition(inst)
		}
	}
}

func (e *Engine) dispatchExtract(match *core.ExtractedMatch) {
	for _, inst := range e.instances {
		if inst.skipDelivery() || inst.onExtract == nil {
			continue
		}
		e.invoke(inst, "extract", func() error { return inst.onExtract.OnExtract(match) })
		if !inst.faulted {
			e.checkTransition(inst)
		}
	}
}

// complete runs the completion phase: every instance that was ever
// active is notified once, matched or not. Matches declared here are
// still announced to observers.
func (e *Engine) complete() {
	for _, inst := range e.instances {
		if inst.faulted || inst.completer == nil {
			continue
		}
		e.invoke(inst, "complete", func() error { return inst.completer.OnComplete() })
		if !inst.faulted {
			e.checkTransition(inst)
		}
	}
}

// checkTransition announces a fresh matched-flag transition to observers.
func (e *Engine) checkTransition(inst *Instance) {
	if inst.faulted || inst.announced || !inst.base.Matched() {
		return
	}
	inst.announced = true
	metrics.SignatureMatches.WithLabelValues(inst.def.Name).Inc()
	e.log.Infow("signature matched",
		"signature", inst.def.Name,
		"severity", inst.def.Severity,
	)
	e.deliverSignature(&core.SignatureMatched{Name: inst.def.Name}, inst)
}

// deliverSignature offers a match announcement to every still-active
// observer in evaluation order. Matches declared during delivery are
// announced recursively, preserving order.
func (e *Engine) deliverSignature(ev *core.SignatureMatched, origin *Instance) {
	for _, other := range e.instances {
		if other == origin || other.skipDelivery() || other.onSignature == nil {
			continue
		}
		e.invoke(other, "signature", func() error { return other.onSignature.OnSignature(ev) })
		if !other.faulted {
			e.checkTransition(other)
		}
	}
}

// invoke runs one handler with fault isolation: an error return or a
// panic faults the instance and evaluation of everything else continues.
func (e *Engine) invoke(inst *Instance, during string, fn func() error) {
	metrics.SignatureEvaluations.WithLabelValues(inst.def.Name).Inc()
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			e.fault(inst, during, fmt.Errorf("panic: %v", r), string(buf[:n]))
		}
	}()
	if err := fn(); err != nil {
		e.fault(inst, during, err, "")
	}
}

func (e *Engine) fault(inst *Instance, during string, err error, stack string) {
	inst.faulted = true
	metrics.SignatureFaults.WithLabelValues(inst.def.Name).Inc()

	fields := []interface{}{
		"signature", inst.def.Name,
		"event", during,
		"error", err,
	}
	if stack != "" {
		fields = append(fields, "stack", stack)
	}
	e.log.Errorw("signature instance faulted", fields...)

	e.diagnostics = append(e.diagnostics, core.Diagnostic{
		Signature: inst.def.Name,
		Event:     during,
		Error:     err.Error(),
	})
}

func stringSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

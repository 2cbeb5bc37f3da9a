package detect

import (
	"shrike/core"
)

// Findings collects one finding per matched instance, in instance
// evaluation order. Faulted instances are excluded even when their
// matched flag was set before the fault.
func (e *Engine) Findings() []core.Finding {
	var findings []core.Finding
	for _, inst := range e.instances {
		if inst.faulted || !inst.base.Matched() {
			continue
		}
		findings = append(findings, e.finding(inst))
	}
	return findings
}

func (e *Engine) finding(inst *Instance) core.Finding {
	limit := inst.def.MarkCap
	if e.markCap > 0 && e.markCap < limit {
		limit = e.markCap
	}
	marks, total := inst.base.marks.Finalize(limit)
	docs := make([]map[string]interface{}, 0, len(marks))
	for _, m := range marks {
		docs = append(docs, m.Map())
	}
	return core.Finding{
		Name:        inst.def.Name,
		Description: inst.def.Description,
		Severity:    inst.def.Severity,
		Families:    copyStrings(inst.def.Families),
		References:  copyStrings(inst.def.References),
		TTP:         e.ttps.Resolve(inst.def.TTPs),
		Marks:       docs,
		MarkCount:   total,
	}
}

// Diagnostics returns the fault records accumulated during the run.
func (e *Engine) Diagnostics() []core.Diagnostic {
	out := make([]core.Diagnostic, len(e.diagnostics))
	copy(out, e.diagnostics)
	return out
}

// Report assembles the analysis report: findings, extracted family
// configurations, diagnostics and the resulting score.
func (e *Engine) Report() *core.Report {
	rep := core.NewReport()
	rep.Target = e.results.Target
	rep.Findings = e.Findings()
	if rep.Findings == nil {
		rep.Findings = []core.Finding{}
	}
	rep.Families = e.config.Maps()
	rep.Diagnostics = e.Diagnostics()
	rep.ComputeScore()
	return rep
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

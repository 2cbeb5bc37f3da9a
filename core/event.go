// Package core defines the shared data model for behavioral analysis:
// events, evidence marks, findings, reports and the analysis results tree.
package core

import (
	"fmt"
	"time"
)

// EventKind identifies the variant of an Event.
type EventKind string

const (
	EventKindCall      EventKind = "call"
	EventKindProcess   EventKind = "process"
	EventKindYara      EventKind = "yara"
	EventKindExtract   EventKind = "extract"
	EventKindSignature EventKind = "signature"
)

// Event is one entry in the chronological behavioral stream of an analysis.
// Events are immutable once constructed and are delivered in a fixed order.
type Event interface {
	Kind() EventKind
}

// Call is a single monitored API invocation observed inside the sandbox.
type Call struct {
	PID       int64                  `json:"pid" bson:"pid"`
	CallIndex int                    `json:"call_index" bson:"call_index"`
	API       string                 `json:"api" bson:"api"`
	Category  string                 `json:"category" bson:"category"`
	Status    bool                   `json:"status" bson:"status"`
	Return    interface{}            `json:"return,omitempty" bson:"return,omitempty"`
	Arguments map[string]interface{} `json:"arguments,omitempty" bson:"arguments,omitempty"`
	Time      time.Time              `json:"time" bson:"time"`
}

// Kind implements Event.
func (*Call) Kind() EventKind { return EventKindCall }

// Argument returns the named call argument and whether it was present.
func (c *Call) Argument(name string) (interface{}, bool) {
	v, ok := c.Arguments[name]
	return v, ok
}

// ArgString returns the named argument rendered as a string, or "" when
// the argument is absent.
func (c *Call) ArgString(name string) string {
	v, ok := c.Arguments[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// ProcessSwitch signals that subsequent calls belong to a different
// monitored process.
type ProcessSwitch struct {
	PID         int64     `json:"pid" bson:"pid"`
	PPID        int64     `json:"ppid" bson:"ppid"`
	ProcessName string    `json:"process_name" bson:"process_name"`
	FirstSeen   time.Time `json:"first_seen" bson:"first_seen"`
}

// Kind implements Event.
func (*ProcessSwitch) Kind() EventKind { return EventKindProcess }

// Static-scan match categories.
const (
	StaticCategoryExtracted = "extracted"
	StaticCategoryProcmem   = "procmem"
	StaticCategoryDropped   = "dropped"
)

// StaticMatch reports a static-scan rule hit against an artifact produced
// during the analysis (an extracted payload, a process memory dump, or a
// dropped file).
type StaticMatch struct {
	Category string                 `json:"category" bson:"category"`
	FilePath string                 `json:"file_path" bson:"file_path"`
	Rule     string                 `json:"rule" bson:"rule"`
	Meta     map[string]interface{} `json:"meta,omitempty" bson:"meta,omitempty"`
	Strings  []string               `json:"strings,omitempty" bson:"strings,omitempty"`
}

// Kind implements Event.
func (*StaticMatch) Kind() EventKind { return EventKindYara }

// ExtractedMatch reports a payload recovered by the unpacking chain.
type ExtractedMatch struct {
	Category string                 `json:"category" bson:"category"`
	PID      int64                  `json:"pid" bson:"pid"`
	Path     string                 `json:"path,omitempty" bson:"path,omitempty"`
	Info     map[string]interface{} `json:"info,omitempty" bson:"info,omitempty"`
}

// Kind implements Event.
func (*ExtractedMatch) Kind() EventKind { return EventKindExtract }

// SignatureMatched announces that a lower-order signature matched, so that
// signatures evaluating later in the same pass can react to it.
type SignatureMatched struct {
	Name string `json:"name" bson:"name"`
}

// Kind implements Event.
func (*SignatureMatched) Kind() EventKind { return EventKindSignature }

// Package ingest decodes recorded behavior logs into event streams and
// folds them into the analysis results tree. Logs are produced by the
// sandbox monitor in JSON Lines, BSON or msgpack framing; every format
// carries the same records.
package ingest

import (
	"fmt"
	"time"

	"shrike/core"
)

// Record type discriminators used on the wire.
const (
	recordCall      = "call"
	recordProcess   = "process"
	recordYara      = "yara"
	recordExtract   = "extract"
	recordSignature = "signature"
)

// envelope is the wire form of one behavior record. All formats decode
// into it before conversion to a typed event.
type envelope struct {
	Type string `json:"type" bson:"type" msgpack:"type"`

	PID       int64                  `json:"pid,omitempty" bson:"pid,omitempty" msgpack:"pid,omitempty"`
	PPID      int64                  `json:"ppid,omitempty" bson:"ppid,omitempty" msgpack:"ppid,omitempty"`
	CallIndex int                    `json:"cid,omitempty" bson:"cid,omitempty" msgpack:"cid,omitempty"`
	API       string                 `json:"api,omitempty" bson:"api,omitempty" msgpack:"api,omitempty"`
	Category  string                 `json:"category,omitempty" bson:"category,omitempty" msgpack:"category,omitempty"`
	Status    bool                   `json:"status,omitempty" bson:"status,omitempty" msgpack:"status,omitempty"`
	Return    interface{}            `json:"return,omitempty" bson:"return,omitempty" msgpack:"return,omitempty"`
	Arguments map[string]interface{} `json:"args,omitempty" bson:"args,omitempty" msgpack:"args,omitempty"`
	Time      float64                `json:"time,omitempty" bson:"time,omitempty" msgpack:"time,omitempty"`

	ProcessName string  `json:"process_name,omitempty" bson:"process_name,omitempty" msgpack:"process_name,omitempty"`
	FirstSeen   float64 `json:"first_seen,omitempty" bson:"first_seen,omitempty" msgpack:"first_seen,omitempty"`

	Path    string                 `json:"path,omitempty" bson:"path,omitempty" msgpack:"path,omitempty"`
	Rule    string                 `json:"rule,omitempty" bson:"rule,omitempty" msgpack:"rule,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty" bson:"meta,omitempty" msgpack:"meta,omitempty"`
	Strings []string               `json:"strings,omitempty" bson:"strings,omitempty" msgpack:"strings,omitempty"`
	Info    map[string]interface{} `json:"info,omitempty" bson:"info,omitempty" msgpack:"info,omitempty"`

	Name string `json:"name,omitempty" bson:"name,omitempty" msgpack:"name,omitempty"`
}

// toEvent converts the decoded record into its typed event.
func (env *envelope) toEvent() (core.Event, error) {
	switch env.Type {
	case recordCall:
		return &core.Call{
			PID:       env.PID,
			CallIndex: env.CallIndex,
			API:       env.API,
			Category:  env.Category,
			Status:    env.Status,
			Return:    env.Return,
			Arguments: env.Arguments,
			Time:      epochTime(env.Time),
		}, nil
	case recordProcess:
		return &core.ProcessSwitch{
			PID:         env.PID,
			PPID:        env.PPID,
			ProcessName: env.ProcessName,
			FirstSeen:   epochTime(env.FirstSeen),
		}, nil
	case recordYara:
		return &core.StaticMatch{
			Category: env.Category,
			FilePath: env.Path,
			Rule:     env.Rule,
			Meta:     env.Meta,
			Strings:  env.Strings,
		}, nil
	case recordExtract:
		return &core.ExtractedMatch{
			Category: env.Category,
			PID:      env.PID,
			Path:     env.Path,
			Info:     env.Info,
		}, nil
	case recordSignature:
		return &core.SignatureMatched{Name: env.Name}, nil
	case "":
		return nil, fmt.Errorf("behavior record without a type")
	default:
		return nil, fmt.Errorf("unknown behavior record type %q", env.Type)
	}
}

// epochTime converts monitor timestamps (fractional epoch seconds) to
// time.Time. Zero stays the zero time.
func epochTime(sec float64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	s := int64(sec)
	ns := int64((sec - float64(s)) * 1e9)
	return time.Unix(s, ns)
}

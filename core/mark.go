package core

// MarkKind identifies the variant of a Mark.
type MarkKind string

const (
	MarkKindCall       MarkKind = "call"
	MarkKindIOC        MarkKind = "ioc"
	MarkKindVolatility MarkKind = "volatility"
	MarkKindConfig     MarkKind = "config"
	MarkKindGeneric    MarkKind = "generic"
)

// Mark is one piece of recorded evidence supporting a signature match.
// Map renders the mark as a plain document with a "type" discriminator,
// which is the shape findings carry and reports persist.
type Mark interface {
	MarkKind() MarkKind
	Map() map[string]interface{}
}

// CallMark cites one monitored API call as match evidence.
type CallMark struct {
	PID       int64  `json:"pid" bson:"pid"`
	CallIndex int    `json:"call_index" bson:"call_index"`
	API       string `json:"api" bson:"api"`
}

// MarkKind implements Mark.
func (CallMark) MarkKind() MarkKind { return MarkKindCall }

// Map implements Mark.
func (m CallMark) Map() map[string]interface{} {
	return map[string]interface{}{
		"type":       string(MarkKindCall),
		"pid":        m.PID,
		"call_index": m.CallIndex,
		"api":        m.API,
	}
}

// IOCMark cites a discrete indicator of compromise. Two IOC marks with
// identical field values are considered the same piece of evidence and are
// stored only once per signature instance.
type IOCMark struct {
	Category    string `json:"category" bson:"category"`
	IOC         string `json:"ioc" bson:"ioc"`
	InfoSource  string `json:"info_source,omitempty" bson:"info_source,omitempty"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
}

// MarkKind implements Mark.
func (IOCMark) MarkKind() MarkKind { return MarkKindIOC }

// Map implements Mark.
func (m IOCMark) Map() map[string]interface{} {
	doc := map[string]interface{}{
		"type":     string(MarkKindIOC),
		"category": m.Category,
		"ioc":      m.IOC,
	}
	if m.InfoSource != "" {
		doc["info_source"] = m.InfoSource
	}
	if m.Description != "" {
		doc["description"] = m.Description
	}
	return doc
}

// VolatilityMark cites output of a memory-forensics plugin.
type VolatilityMark struct {
	Plugin string                 `json:"plugin" bson:"plugin"`
	Fields map[string]interface{} `json:"fields,omitempty" bson:"fields,omitempty"`
}

// MarkKind implements Mark.
func (VolatilityMark) MarkKind() MarkKind { return MarkKindVolatility }

// Map implements Mark.
func (m VolatilityMark) Map() map[string]interface{} {
	doc := map[string]interface{}{
		"type":   string(MarkKindVolatility),
		"plugin": m.Plugin,
	}
	for k, v := range m.Fields {
		doc[k] = v
	}
	return doc
}

// ConfigMark carries a recovered family configuration fragment. The same
// fragment is forwarded to the configuration registry when the mark is
// recorded.
type ConfigMark struct {
	Config map[string]interface{} `json:"config" bson:"config"`
}

// MarkKind implements Mark.
func (ConfigMark) MarkKind() MarkKind { return MarkKindConfig }

// Map implements Mark.
func (m ConfigMark) Map() map[string]interface{} {
	return map[string]interface{}{
		"type":   string(MarkKindConfig),
		"config": m.Config,
	}
}

// GenericMark carries arbitrary evidence fields.
type GenericMark struct {
	Fields map[string]interface{} `json:"fields,omitempty" bson:"fields,omitempty"`
}

// MarkKind implements Mark.
func (GenericMark) MarkKind() MarkKind { return MarkKindGeneric }

// Map implements Mark.
func (m GenericMark) Map() map[string]interface{} {
	doc := map[string]interface{}{
		"type": string(MarkKindGeneric),
	}
	for k, v := range m.Fields {
		doc[k] = v
	}
	return doc
}

package core

// TTPDescription is the human-readable rendering of one tactic/technique
// identifier.
type TTPDescription struct {
	Short string `json:"short" bson:"short"`
	Long  string `json:"long" bson:"long"`
}

// Finding is the structured record emitted for one matched signature.
// Marks holds at most the signature's mark cap; MarkCount is the true
// number of marks recorded before capping.
type Finding struct {
	Name        string                    `json:"name" bson:"name"`
	Description string                    `json:"description" bson:"description"`
	Severity    int                       `json:"severity" bson:"severity"`
	Families    []string                  `json:"families" bson:"families"`
	References  []string                  `json:"references" bson:"references"`
	TTP         map[string]TTPDescription `json:"ttp" bson:"ttp"`
	Marks       []map[string]interface{}  `json:"marks" bson:"marks"`
	MarkCount   int                       `json:"markcount" bson:"markcount"`
}

package schema

// TableRole is the inferred semantic role of a table.
type TableRole string

const (
	RoleUser        TableRole = "user"
	RoleContent     TableRole = "content"
	RoleAssociation TableRole = "association"
	RoleAuth        TableRole = "auth"
	RoleSystem      TableRole = "system"
)

// TablePattern records the evidence-scored role inferred for a table during
// introspection. A confidence below the acceptance threshold means "no
// opinion", not "wrong".
type TablePattern struct {
	Table      string              `yaml:"table" json:"table"`
	Role       TableRole           `yaml:"role" json:"role"`
	Confidence float64             `yaml:"confidence" json:"confidence"`
	Evidence   []string            `yaml:"evidence,omitempty" json:"evidence,omitempty"`
	FieldMap   map[string][]string `yaml:"field_map,omitempty" json:"fieldMap,omitempty"`
}

// FrameworkGuess is the confidence-scored fingerprint of the application
// framework that generated the schema.
type FrameworkGuess struct {
	Name       string   `yaml:"name" json:"name"`
	Confidence float64  `yaml:"confidence" json:"confidence"`
	Evidence   []string `yaml:"evidence,omitempty" json:"evidence,omitempty"`
}

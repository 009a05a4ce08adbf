package metadata

import "strings"

// Model is a statically registered entity type that endpoints can read in
// model mode. Relations are declared explicitly; nothing is discovered at
// runtime.
type Model struct {
	Name       string      `json:"name"`
	Table      string      `json:"table"`
	PrimaryKey string      `json:"primary_key"`
	Relations  []*Relation `json:"relations,omitempty"`
}

const (
	BelongsTo  = "belongs_to"
	HasOne     = "has_one"
	HasMany    = "has_many"
	ManyToMany = "many_to_many"
)

type Relation struct {
	Name          string `json:"name"`
	Type          string `json:"type"` // belongs_to, has_one, has_many, many_to_many
	Target        string `json:"target"`
	ForeignKey    string `json:"foreign_key,omitempty"`
	OwnerKey      string `json:"owner_key,omitempty"`
	JoinTable     string `json:"join_table,omitempty"`
	SourceJoinKey string `json:"source_join_key,omitempty"`
	TargetJoinKey string `json:"target_join_key,omitempty"`
}

// GetRelation returns the relation with the given name, or nil.
// Names are matched case-insensitively because config keys are lowercased.
func (m *Model) GetRelation(name string) *Relation {
	for _, rel := range m.Relations {
		if strings.EqualFold(rel.Name, name) {
			return rel
		}
	}
	return nil
}

// RelationNames returns all relation names in declaration order.
func (m *Model) RelationNames() []string {
	names := make([]string, len(m.Relations))
	for i, rel := range m.Relations {
		names[i] = rel.Name
	}
	return names
}

func (r *Relation) IsManyToMany() bool {
	return r.Type == ManyToMany
}

func (r *Relation) IsBelongsTo() bool {
	return r.Type == BelongsTo
}

// IsToMany returns true if the relation yields a list rather than one record.
func (r *Relation) IsToMany() bool {
	return r.Type == HasMany || r.Type == ManyToMany
}

// ParentKey returns the column on the owning model used to match related rows.
func (r *Relation) ParentKey(parent *Model) string {
	if r.IsBelongsTo() {
		return r.ForeignKey
	}
	if r.OwnerKey != "" {
		return r.OwnerKey
	}
	return parent.PrimaryKey
}

// ChildKey returns the column on the target model matched against ParentKey.
// Not used for many_to_many, which goes through the join table.
func (r *Relation) ChildKey(target *Model) string {
	if !r.IsBelongsTo() {
		return r.ForeignKey
	}
	if r.OwnerKey != "" {
		return r.OwnerKey
	}
	return target.PrimaryKey
}

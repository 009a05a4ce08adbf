package metadata

// Wildcard is the column list sentinel meaning "all columns, no projection".
const Wildcard = "*"

// Endpoint is a configured read-only view exposed at /api/<Route>.
type Endpoint struct {
	Key     string
	Route   string
	Source  DataSource // nil when neither table nor model is configured
	Columns []string
	Auth    *AuthOverride
}

// Valid reports whether the endpoint has a data source and may be served.
func (e *Endpoint) Valid() bool {
	return e.Source != nil
}

// Wildcard reports whether the endpoint selects all columns.
func (e *Endpoint) Wildcard() bool {
	return IsWildcard(e.Columns)
}

// IsWildcard reports whether a column list is empty or exactly ["*"].
func IsWildcard(columns []string) bool {
	return len(columns) == 0 || (len(columns) == 1 && columns[0] == Wildcard)
}

// DataSource is either a TableSource or a ModelSource.
type DataSource interface {
	dataSource()
}

// TableSource reads a table directly, with optional manual joins.
type TableSource struct {
	Table string
	Joins []JoinSpec
}

// ModelSource reads a registered model with eager-loaded relations.
type ModelSource struct {
	Model     string
	Relations []RelationLoad
}

func (TableSource) dataSource() {}
func (ModelSource) dataSource() {}

const (
	JoinInner = "join"
	JoinLeft  = "left_join"
)

// JoinSpec is a manual join in table mode. Table and ForeignKey are kept as
// configured and sanitized when the query is built.
type JoinSpec struct {
	Table      string   `mapstructure:"table"`
	Type       string   `mapstructure:"type"`
	ForeignKey string   `mapstructure:"foreign_key"`
	Columns    []string `mapstructure:"columns"`
	Alias      string   `mapstructure:"alias"`
}

// IsLeft reports whether the join is a left outer join. Anything other than
// "left_join" is an inner join.
func (j JoinSpec) IsLeft() bool {
	return j.Type == JoinLeft
}

// RelationLoad is one eager-load request in model mode. Path may be dotted
// for nested relations; Columns restricts the related columns when non-empty.
type RelationLoad struct {
	Path    string
	Columns []string
}

package engine

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"mini-api/internal/metadata"
	"mini-api/internal/store"
)

// relationNode is one relation to eager-load. Dotted paths become nested
// nodes; children are loaded against this node's rows. Table and key names
// are sanitized copies of the model configuration.
type relationNode struct {
	rel      *metadata.Relation
	target   *metadata.Model
	columns  []string // nil loads every column
	children []*relationNode

	table     string
	parentKey string
	childKey  string // matched against parentKey; the target primary key for many_to_many
	joinTable string
	sourceKey string
	targetKey string
}

func newRelationNode(parent *metadata.Model, rel *metadata.Relation, target *metadata.Model) (*relationNode, error) {
	n := &relationNode{
		rel:       rel,
		target:    target,
		table:     SanitizeIdentifier(target.Table),
		parentKey: SanitizeIdentifier(rel.ParentKey(parent)),
	}
	required := []string{n.table, n.parentKey}
	if rel.IsManyToMany() {
		n.childKey = SanitizeIdentifier(target.PrimaryKey)
		n.joinTable = SanitizeIdentifier(rel.JoinTable)
		n.sourceKey = SanitizeIdentifier(rel.SourceJoinKey)
		n.targetKey = SanitizeIdentifier(rel.TargetJoinKey)
		required = append(required, n.childKey, n.joinTable, n.sourceKey, n.targetKey)
	} else {
		n.childKey = SanitizeIdentifier(rel.ChildKey(target))
		required = append(required, n.childKey)
	}
	for _, name := range required {
		if name == "" {
			return nil, fmt.Errorf("relation %s: invalid table or key name", rel.Name)
		}
	}
	return n, nil
}

func (n *relationNode) child(rel *metadata.Relation) *relationNode {
	for _, c := range n.children {
		if c.rel == rel {
			return c
		}
	}
	return nil
}

// buildRelationTree resolves relation load requests against the model
// registry. Unknown relation names are skipped with a warning; the column
// restriction applies to the relation named by the full path.
func buildRelationTree(reg *metadata.Registry, model *metadata.Model, loads []metadata.RelationLoad, logger *zap.Logger) []*relationNode {
	if logger == nil {
		logger = zap.NewNop()
	}
	root := &relationNode{target: model}

	for _, load := range loads {
		cur := root
		segments := strings.Split(load.Path, ".")
		for i, seg := range segments {
			seg = strings.TrimSpace(seg)
			rel := cur.target.GetRelation(seg)
			if rel == nil {
				logger.Warn("skipping unknown relation",
					zap.String("model", cur.target.Name), zap.String("relation", seg),
					zap.String("path", load.Path))
				break
			}
			next := cur.child(rel)
			if next == nil {
				target := reg.GetModel(rel.Target)
				if target == nil {
					logger.Warn("skipping relation with unregistered target",
						zap.String("relation", rel.Name), zap.String("target", rel.Target))
					break
				}
				var err error
				next, err = newRelationNode(cur.target, rel, target)
				if err != nil {
					logger.Warn("skipping relation", zap.String("path", load.Path), zap.Error(err))
					break
				}
				cur.children = append(cur.children, next)
			}
			if i == len(segments)-1 && !metadata.IsWildcard(load.Columns) {
				next.columns = load.Columns
			}
			cur = next
		}
	}
	return root.children
}

// parentKeys returns the columns a set of nodes needs on the parent rows.
func parentKeys(nodes []*relationNode) []string {
	keys := make([]string, 0, len(nodes))
	for _, n := range nodes {
		keys = append(keys, n.parentKey)
	}
	return keys
}

func relationNames(nodes []*relationNode) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.rel.Name
	}
	return names
}

// selectList returns the select expressions for a model query and the
// projection list to apply afterwards. Key columns needed for matching are
// selected even when not requested; projection drops them again. A nil
// projection list means all columns were selected.
func selectList(d store.Dialect, columns []string, keys []string, logger *zap.Logger) ([]string, []string) {
	if metadata.IsWildcard(columns) {
		return []string{"*"}, nil
	}

	seen := make(map[string]bool, len(columns)+len(keys))
	var selects, visible []string
	for _, col := range columns {
		if !IsPlainIdentifier(col) {
			logger.Warn("skipping column that is not a plain identifier", zap.String("column", col))
			continue
		}
		if !seen[col] {
			seen[col] = true
			selects = append(selects, d.QuoteIdentifier(col))
		}
		visible = append(visible, col)
	}
	for _, k := range keys {
		if k != "" && !seen[k] {
			seen[k] = true
			selects = append(selects, d.QuoteIdentifier(k))
		}
	}
	if visible == nil {
		visible = []string{}
	}
	return selects, visible
}

// relationLoader runs eager-load queries on one connection.
type relationLoader struct {
	store  *store.Store
	q      store.Querier
	logger *zap.Logger
}

// LoadRelations attaches each node's related rows to rows, one IN query per
// relation level. To-many relations get a list, to-one relations an object
// or nil.
func (l *relationLoader) LoadRelations(ctx context.Context, rows []map[string]any, nodes []*relationNode) error {
	if len(rows) == 0 {
		return nil
	}
	for _, n := range nodes {
		if err := l.load(ctx, rows, n); err != nil {
			return err
		}
	}
	return nil
}

func (l *relationLoader) load(ctx context.Context, rows []map[string]any, n *relationNode) error {
	parentKey := n.parentKey
	ids := collectValues(rows, parentKey)

	grouped := map[string][]map[string]any{}
	if len(ids) > 0 {
		var err error
		if n.rel.IsManyToMany() {
			grouped, err = l.fetchManyToMany(ctx, n, ids)
		} else {
			grouped, err = l.fetchDirect(ctx, n, ids)
		}
		if err != nil {
			return err
		}
	}

	for _, row := range rows {
		related := grouped[keyString(row[parentKey])]
		if row[parentKey] == nil {
			related = nil
		}
		if n.rel.IsToMany() {
			if related == nil {
				related = []map[string]any{}
			}
			row[n.rel.Name] = related
		} else if len(related) > 0 {
			row[n.rel.Name] = related[0]
		} else {
			row[n.rel.Name] = nil
		}
	}
	return nil
}

// fetchDirect loads belongs_to, has_one and has_many rows grouped by the
// value of the matching key.
func (l *relationLoader) fetchDirect(ctx context.Context, n *relationNode, ids []any) (map[string][]map[string]any, error) {
	d := l.store.Dialect
	childKey := n.childKey

	keys := append(parentKeys(n.children), childKey)
	selects, visible := selectList(d, n.columns, keys, l.logger)

	b := sq.Select(selects...).
		From(d.QuoteIdentifier(n.table)).
		Where(sq.Eq{d.QuoteIdentifier(childKey): ids})
	childRows, err := l.store.Select(ctx, l.q, b)
	if err != nil {
		return nil, fmt.Errorf("load relation %s: %w", n.rel.Name, err)
	}

	if err := l.LoadRelations(ctx, childRows, n.children); err != nil {
		return nil, err
	}

	grouped := make(map[string][]map[string]any)
	keep := relationNames(n.children)
	for _, child := range childRows {
		k := keyString(child[childKey])
		grouped[k] = append(grouped[k], ProjectRow(child, visible, keep))
	}
	return grouped, nil
}

// fetchManyToMany goes through the join table and groups target rows by
// source key.
func (l *relationLoader) fetchManyToMany(ctx context.Context, n *relationNode, ids []any) (map[string][]map[string]any, error) {
	d := l.store.Dialect

	jb := sq.Select(d.QuoteIdentifier(n.sourceKey), d.QuoteIdentifier(n.targetKey)).
		From(d.QuoteIdentifier(n.joinTable)).
		Where(sq.Eq{d.QuoteIdentifier(n.sourceKey): ids})
	joinRows, err := l.store.Select(ctx, l.q, jb)
	if err != nil {
		return nil, fmt.Errorf("load join table %s: %w", n.joinTable, err)
	}
	if len(joinRows) == 0 {
		return map[string][]map[string]any{}, nil
	}

	targetIDs := collectValues(joinRows, n.targetKey)
	pk := n.childKey

	keys := append(parentKeys(n.children), pk)
	selects, visible := selectList(d, n.columns, keys, l.logger)
	tb := sq.Select(selects...).
		From(d.QuoteIdentifier(n.table)).
		Where(sq.Eq{d.QuoteIdentifier(pk): targetIDs})
	targetRows, err := l.store.Select(ctx, l.q, tb)
	if err != nil {
		return nil, fmt.Errorf("load relation %s: %w", n.rel.Name, err)
	}

	if err := l.LoadRelations(ctx, targetRows, n.children); err != nil {
		return nil, err
	}

	keep := relationNames(n.children)
	byPK := make(map[string]map[string]any, len(targetRows))
	for _, tr := range targetRows {
		byPK[keyString(tr[pk])] = ProjectRow(tr, visible, keep)
	}

	grouped := make(map[string][]map[string]any)
	for _, jr := range joinRows {
		sid := keyString(jr[n.sourceKey])
		if target, ok := byPK[keyString(jr[n.targetKey])]; ok {
			grouped[sid] = append(grouped[sid], target)
		}
	}
	return grouped, nil
}

func keyString(v any) string {
	return fmt.Sprintf("%v", v)
}

func collectValues(rows []map[string]any, field string) []any {
	seen := make(map[string]bool)
	var values []any
	for _, row := range rows {
		v := row[field]
		if v == nil {
			continue
		}
		s := keyString(v)
		if !seen[s] {
			seen[s] = true
			values = append(values, v)
		}
	}
	return values
}

package engine

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"mini-api/internal/metadata"
	"mini-api/internal/store"
)

// AliasGroup collects the result keys of one aliased join.
type AliasGroup struct {
	Alias string
	Keys  []string
}

// TablePlan is a table-mode query ready to run, plus what is needed to shape
// its rows afterwards.
type TablePlan struct {
	Table   string
	Query   sq.SelectBuilder
	Joins   int // joins actually applied
	Groups  []AliasGroup
	Columns []string // projection list, nil for wildcard
}

// BuildTablePlan sanitizes the table source and builds its select. Joins whose
// table or foreign key sanitize to empty are skipped, as are join column
// expressions that are not plain identifiers.
func BuildTablePlan(src metadata.TableSource, columns []string, d store.Dialect, logger *zap.Logger) (*TablePlan, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	table := SanitizeIdentifier(src.Table)
	if table == "" {
		return nil, ConfigurationError(MsgInvalidTable)
	}

	plan := &TablePlan{Table: table}
	wildcard := metadata.IsWildcard(columns)

	var selects []string
	if wildcard {
		selects = append(selects, d.QuoteIdentifier(table)+".*")
	} else {
		for _, col := range columns {
			if !IsPlainIdentifier(col) {
				logger.Warn("skipping column that is not a plain identifier",
					zap.String("table", table), zap.String("column", col))
				continue
			}
			selects = append(selects, store.Qualify(d, table, col))
			plan.Columns = append(plan.Columns, col)
		}
		if len(selects) == 0 {
			return nil, fmt.Errorf("table %s: no selectable columns", table)
		}
	}

	b := sq.Select(selects...).From(d.QuoteIdentifier(table))

	for i, j := range src.Joins {
		joinTable := SanitizeIdentifier(j.Table)
		fk := SanitizeIdentifier(j.ForeignKey)
		if joinTable == "" || fk == "" {
			logger.Warn("skipping join with empty table or foreign key",
				zap.String("table", table), zap.Int("index", i))
			continue
		}

		clause := fmt.Sprintf("%s ON %s = %s",
			d.QuoteIdentifier(joinTable),
			store.Qualify(d, table, fk),
			store.Qualify(d, joinTable, "id"))
		if j.IsLeft() {
			b = b.LeftJoin(clause)
		} else {
			b = b.Join(clause)
		}
		plan.Joins++

		var keys []string
		for _, expr := range j.Columns {
			expr = strings.TrimSpace(expr)
			if !IsSafeJoinColumn(expr) {
				logger.Warn("rejecting join column expression",
					zap.String("join", joinTable), zap.String("expression", expr))
				continue
			}
			b = b.Column(expr)
			keys = append(keys, ResultKey(expr))
		}
		if j.Alias != "" {
			plan.Groups = append(plan.Groups, AliasGroup{Alias: j.Alias, Keys: keys})
		}
	}

	plan.Query = b.PlaceholderFormat(d.Placeholder())
	return plan, nil
}

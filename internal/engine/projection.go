package engine

import "slices"

// GroupJoinAliases moves the keys of each alias group out of the flat row
// into a nested object under the alias. Groups sharing an alias are merged
// into one object. Keys not claimed by any group stay at the top level. The
// row is modified in place and returned.
func GroupJoinAliases(row map[string]any, groups []AliasGroup) map[string]any {
	grouped := make(map[string]map[string]any, len(groups))
	for _, g := range groups {
		nested, ok := grouped[g.Alias]
		if !ok {
			nested = make(map[string]any, len(g.Keys))
			grouped[g.Alias] = nested
		}
		for _, k := range g.Keys {
			if v, ok := row[k]; ok {
				nested[k] = v
				delete(row, k)
			}
		}
		row[g.Alias] = nested
	}
	return row
}

// ProjectRow keeps only the keys listed in columns or keep. A nil columns
// list means wildcard and the row is returned untouched.
func ProjectRow(row map[string]any, columns []string, keep []string) map[string]any {
	if columns == nil {
		return row
	}
	out := make(map[string]any, len(columns)+len(keep))
	for _, k := range columns {
		if v, ok := row[k]; ok {
			out[k] = v
		}
	}
	for _, k := range keep {
		if v, ok := row[k]; ok {
			out[k] = v
		}
	}
	return out
}

func groupNames(groups []AliasGroup) []string {
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		if !slices.Contains(names, g.Alias) {
			names = append(names, g.Alias)
		}
	}
	return names
}

package sortplan

import "github.com/indexbridge/z3950gateway/internal/query"

// ComposePQF builds the Type-1/PQF sort query (spec §4.8's "Type-1/PQF
// path"): an @or-over-@set composition of the input sets, plus a YAZ
// sortspec string built from the sort keys to attach as the search's
// sort option.
func ComposePQF(setNames []string, keys []SortKey) (pqfQuery string, yazSortSpec string) {
	pqfQuery = query.ComposePQFOr(setNames)
	specs := make([]string, len(keys))
	for i, k := range keys {
		specs[i] = k.YAZ()
	}
	yazSortSpec = joinSpace(specs)
	return pqfQuery, yazSortSpec
}

func joinSpace(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

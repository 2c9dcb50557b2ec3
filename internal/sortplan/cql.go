package sortplan

import (
	"github.com/indexbridge/z3950gateway/internal/diag"
	"github.com/indexbridge/z3950gateway/internal/query"
)

// ComposeCQL builds the CQL sort query (spec §4.8's "CQL path"): an
// or-composition of the input sets exactly as RSID emission would render
// each one, then either an embedded `sortby` clause (SRU >= 1.2) or a
// YAZ sortspec meant to be attached as a connection option (SRU 1.1).
//
// sruAtLeast12 selects which of the two attachment strategies applies.
// When false, extraSortOption carries the YAZ sortspec the caller must
// set on the back-end connection before executing cqlQuery; when true,
// extraSortOption is empty because the sortby clause is already embedded.
func ComposeCQL(setNames []string, keys []SortKey, useMap map[int]string, sruAtLeast12 bool, rs query.ResultSetLookup) (cqlQuery string, extraSortOption string, err *diag.Error) {
	terms := make([]string, len(setNames))
	for i, name := range setNames {
		t, terr := query.CompileCQL(query.Rsid{SetName: name}, useMap, rs)
		if terr != nil {
			return "", "", terr
		}
		terms[i] = t
	}
	body := terms[0]
	for _, t := range terms[1:] {
		body += " or " + t
	}
	cqlQuery = "(" + body + ")"

	if sruAtLeast12 {
		sortby, serr := cqlSortSpec(keys, useMap)
		if serr != nil {
			return "", "", serr
		}
		return cqlQuery + " sortby " + sortby, "", nil
	}

	specs := make([]string, len(keys))
	for i, k := range keys {
		specs[i] = k.YAZ()
	}
	return cqlQuery, joinSpace(specs), nil
}

func cqlSortSpec(keys []SortKey, useMap map[int]string) (string, *diag.Error) {
	parts := make([]string, len(keys))
	for i, k := range keys {
		s, err := k.CQL(useMap)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return joinSpace(parts), nil
}

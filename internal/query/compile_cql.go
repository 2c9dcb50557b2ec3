package query

import (
	"github.com/indexbridge/z3950gateway/internal/diag"
)

// ResultSetLookup resolves a named result set for RSID emission (spec
// §4.3's "RSID emission" rule). internal/session's registry satisfies it.
type ResultSetLookup interface {
	// Lookup returns the compiled query text, the back-end rsid (empty if
	// none), and the database's resultsetid policy ("fallback", "id", or
	// "search"), or ok=false if the set name is unknown.
	Lookup(setName string) (qtext, rsid, policy string, ok bool)
}

// CompileCQL renders an RPN tree as a CQL query string for a database
// whose search.map is useMap (nil means "no map configured": Use
// integers are used literally as index names).
func CompileCQL(n Node, useMap map[int]string, rs ResultSetLookup) (string, *diag.Error) {
	switch v := n.(type) {
	case Term:
		return compileCQLTerm(v, useMap)
	case Rsid:
		return compileCQLRsid(v, rs)
	case And:
		return compileCQLBool(v.Left, v.Right, "and", useMap, rs)
	case Or:
		return compileCQLBool(v.Left, v.Right, "or", useMap, rs)
	case AndNot:
		return compileCQLBool(v.Left, v.Right, "not", useMap, rs)
	default:
		return "", diag.New(diag.UnsupportedSearch, "unrecognized query node")
	}
}

func compileCQLBool(left, right Node, op string, useMap map[int]string, rs ResultSetLookup) (string, *diag.Error) {
	l, err := CompileCQL(left, useMap, rs)
	if err != nil {
		return "", err
	}
	r, err := CompileCQL(right, useMap, rs)
	if err != nil {
		return "", err
	}
	return "(" + l + " " + op + " " + r + ")", nil
}

func compileCQLTerm(t Term, useMap map[int]string) (string, *diag.Error) {
	use, haveUse, err := UseAttr(t)
	if err != nil {
		return "", err
	}
	index, err := indexName(use, haveUse, useMap)
	if err != nil {
		return "", err
	}
	ta, err := extractTermAttrs(t, relationSymbolCQL)
	if err != nil {
		return "", err
	}
	term := decorateTerm(t.Value, ta)

	switch {
	case index != "" && ta.relation != "":
		return index + " " + ta.relation + " " + term, nil
	case index != "":
		return index + " = " + term, nil
	case ta.relation != "":
		return "cql.serverChoice " + ta.relation + " " + term, nil
	default:
		return "cql.serverChoice = " + term, nil
	}
}

func compileCQLRsid(r Rsid, rs ResultSetLookup) (string, *diag.Error) {
	qtext, rsid, policy, ok := rs.Lookup(r.SetName)
	if !ok {
		return "", diag.New(diag.ResultSetDoesNotExist, r.SetName)
	}
	if rsid != "" && policy != "search" {
		return `cql.resultSetId="` + rsid + `"`, nil
	}
	if policy != "id" {
		return "(" + qtext + ")", nil
	}
	return "", diag.New(diag.ResultSetNoRSID, r.SetName)
}

// compileSolrRsid mirrors compileCQLRsid for the Solr dialect (spec §4.3 "the
// Solr analogue").
func compileSolrRsid(r Rsid, rs ResultSetLookup) (string, *diag.Error) {
	qtext, rsid, policy, ok := rs.Lookup(r.SetName)
	if !ok {
		return "", diag.New(diag.ResultSetDoesNotExist, r.SetName)
	}
	if rsid != "" && policy != "search" {
		return `solr.resultSetId="` + rsid + `"`, nil
	}
	if policy != "id" {
		return "(" + qtext + ")", nil
	}
	return "", diag.New(diag.ResultSetNoRSID, r.SetName)
}

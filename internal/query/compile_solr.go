package query

import (
	"github.com/indexbridge/z3950gateway/internal/diag"
)

// CompileSolr renders an RPN tree as a Solr query string. Position and
// Completeness attributes are accepted but ignored, per spec §4.3.
func CompileSolr(n Node, useMap map[int]string, rs ResultSetLookup) (string, *diag.Error) {
	switch v := n.(type) {
	case Term:
		return compileSolrTerm(v, useMap)
	case Rsid:
		return compileSolrRsid(v, rs)
	case And:
		return compileSolrBool(v.Left, v.Right, "AND", useMap, rs)
	case Or:
		return compileSolrBool(v.Left, v.Right, "OR", useMap, rs)
	case AndNot:
		return compileSolrBool(v.Left, v.Right, "NOT", useMap, rs)
	default:
		return "", diag.New(diag.UnsupportedSearch, "unrecognized query node")
	}
}

func compileSolrBool(left, right Node, op string, useMap map[int]string, rs ResultSetLookup) (string, *diag.Error) {
	l, err := CompileSolr(left, useMap, rs)
	if err != nil {
		return "", err
	}
	r, err := CompileSolr(right, useMap, rs)
	if err != nil {
		return "", err
	}
	return "(" + l + " " + op + " " + r + ")", nil
}

// solrRange renders a Solr range expression for the BIB-1 Relation value.
// Relation=3 (equality) is deliberately rendered as the bare term rather
// than an "undefined expr" (spec §9 open question: reimplemented as the
// fix the spec recommends).
func solrRange(relation int, term string) (string, *diag.Error) {
	switch relation {
	case 1:
		return "{* TO " + term + "}", nil
	case 2:
		return "[* TO " + term + "]", nil
	case 3:
		return term, nil
	case 4:
		return "[" + term + " TO *]", nil
	case 5:
		return "{" + term + " TO *}", nil
	case 6, 100, 101, 102:
		// Not-equal and the fuzzy relations have no Solr range analogue;
		// spec §4.3 only enumerates 1-5 for Solr. Treat as equality.
		return term, nil
	default:
		return "", diag.Newf(diag.UnsupportedRelation, "%d", relation)
	}
}

func compileSolrTerm(t Term, useMap map[int]string) (string, *diag.Error) {
	use, haveUse, err := UseAttr(t)
	if err != nil {
		return "", err
	}
	field, err := indexName(use, haveUse, useMap)
	if err != nil {
		return "", err
	}
	if field == "" {
		field = "text"
	}

	relation := 3
	if v, ok := attrValue(t, 2); ok {
		relation = v
	}
	term := t.Value
	if v, ok := attrValue(t, 5); ok {
		tr, terr := decodeTruncation(v)
		if terr != nil {
			return "", terr
		}
		switch {
		case tr.left && tr.right:
			term = "*" + term + "*"
		case tr.left:
			term = "*" + term
		case tr.right:
			term = term + "*"
		}
	}
	for _, a := range t.Attrs {
		if a.Set != "" && a.Set != diag.OID_Bib1 {
			return "", diag.Newf(diag.UnsupportedAttributeSet, "%s", a.Set)
		}
		if a.Type != 1 && a.Type != 2 && a.Type != 3 && a.Type != 4 && a.Type != 5 && a.Type != 6 {
			return "", diag.Newf(diag.UnsupportedAttributeType, "%d", a.Type)
		}
	}

	expr, err := solrRange(relation, term)
	if err != nil {
		return "", err
	}
	return field + ":" + expr, nil
}

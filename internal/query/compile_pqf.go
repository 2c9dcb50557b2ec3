package query

import (
	"fmt"
	"strings"

	"github.com/indexbridge/z3950gateway/internal/diag"
)

// CompilePQF renders an RPN tree as PQF (spec §4.4's "raw PQF (default)"
// dialect, and the operand form the Sort handler composes over @set
// clauses in spec §4.8). Attribute validation follows the same BIB-1-only
// rule as the CQL/Solr compilers even though PQF carries attributes
// verbatim, since a foreign attribute set still can't be expressed under
// this gateway's single attribute-set assumption.
func CompilePQF(n Node) (string, *diag.Error) {
	switch v := n.(type) {
	case Term:
		return compilePQFTerm(v)
	case Rsid:
		return `@set "` + v.SetName + `"`, nil
	case And:
		return compilePQFBool("@and", v.Left, v.Right)
	case Or:
		return compilePQFBool("@or", v.Left, v.Right)
	case AndNot:
		return compilePQFBool("@not", v.Left, v.Right)
	default:
		return "", diag.New(diag.UnsupportedSearch, "unrecognized query node")
	}
}

func compilePQFBool(op string, left, right Node) (string, *diag.Error) {
	l, err := CompilePQF(left)
	if err != nil {
		return "", err
	}
	r, err := CompilePQF(right)
	if err != nil {
		return "", err
	}
	return op + " " + l + " " + r, nil
}

func compilePQFTerm(t Term) (string, *diag.Error) {
	var b strings.Builder
	for _, a := range t.Attrs {
		if a.Set != "" && a.Set != diag.OID_Bib1 {
			return "", diag.Newf(diag.UnsupportedAttributeSet, "%s", a.Set)
		}
		fmt.Fprintf(&b, "@attr %d=%d ", a.Type, a.Value)
	}
	term := t.Value
	if strings.ContainsAny(term, " \t\"") {
		term = `"` + strings.ReplaceAll(term, `"`, `\"`) + `"`
	}
	b.WriteString(term)
	return b.String(), nil
}

// ComposePQFOr builds the "@or over @set" composition Sort uses to search
// across multiple input result sets in one PQF query (spec §4.8's
// "Type-1/PQF path"). setNames must be non-empty.
func ComposePQFOr(setNames []string) string {
	expr := `@set "` + setNames[0] + `"`
	for _, name := range setNames[1:] {
		expr = `@or ` + expr + ` @set "` + name + `"`
	}
	return expr
}

// Package query compiles a decoded Z39.50 Type-1 RPN query tree into a
// target back-end query string — CQL, a Solr expression, or PQF — per
// spec §4.3. The tree itself is a tagged sum type (spec §9's redesign
// note) rather than the teacher's monkey-patched node classes.
package query

import (
	"fmt"

	"github.com/indexbridge/z3950gateway/internal/diag"
)

// Attr is a single BIB-1 (or, if Set is non-empty and not OID_Bib1, a
// foreign attribute-set) attribute on a Term.
type Attr struct {
	Type  int
	Value int
	// Set is the attribute's OID. Empty is treated as BIB-1; the wire
	// layer fills it in only when the RPN query declares a different
	// attribute set.
	Set string
}

// Node is the sum type over Type-1 RPN tree variants (spec §4.3/§9).
type Node interface {
	isNode()
}

// Term is a leaf: attributes plus a search term.
type Term struct {
	Attrs []Attr
	Value string
}

// Rsid is a leaf referencing a previously named result set by name,
// usable as a query term (spec §4.3 "RSID emission").
type Rsid struct {
	SetName string
}

// And, Or, AndNot are the three RPN boolean operators.
type And struct{ Left, Right Node }
type Or struct{ Left, Right Node }
type AndNot struct{ Left, Right Node }

func (Term) isNode()   {}
func (Rsid) isNode()   {}
func (And) isNode()    {}
func (Or) isNode()     {}
func (AndNot) isNode() {}

// UseAttr returns the Use (type 1) attribute value of a Term, along with
// whether one was present. It also validates that every attribute on the
// term belongs to BIB-1 (spec §4.3 step 2 / §8 "BIB-1 only" invariant).
func UseAttr(t Term) (int, bool, *diag.Error) {
	haveUse := false
	useVal := 0
	for _, a := range t.Attrs {
		if a.Set != "" && a.Set != diag.OID_Bib1 {
			return 0, false, diag.Newf(diag.UnsupportedAttributeSet, "%s", a.Set)
		}
		if a.Type == 1 {
			haveUse = true
			useVal = a.Value
		}
	}
	return useVal, haveUse, nil
}

// attrValue returns the value of the first attribute of the given type,
// or ok=false if absent.
func attrValue(t Term, attrType int) (int, bool) {
	for _, a := range t.Attrs {
		if a.Type == attrType {
			return a.Value, true
		}
	}
	return 0, false
}

// relationSymbolCQL maps BIB-1 Relation (type 2) to a CQL relation
// operator (spec §4.3).
func relationSymbolCQL(v int) (string, *diag.Error) {
	switch v {
	case 1:
		return "<", nil
	case 2:
		return "<=", nil
	case 3:
		return "=", nil
	case 4:
		return ">=", nil
	case 5:
		return ">", nil
	case 6:
		return "<>", nil
	case 100:
		return "=/phonetic", nil
	case 101:
		return "=/stem", nil
	case 102:
		return "=/relevant", nil
	default:
		return "", diag.Newf(diag.UnsupportedRelation, "%d", v)
	}
}

// truncation describes the decorations a Truncation (type 5) attribute
// applies to a term's rendered text.
type truncation struct {
	left, right bool
	substitute  bool // 101: '#' -> '?'
	ccl         bool // 104: Z39.58 CCL style
}

func decodeTruncation(v int) (truncation, *diag.Error) {
	switch v {
	case 1:
		return truncation{right: true}, nil
	case 2:
		return truncation{left: true}, nil
	case 3:
		return truncation{left: true, right: true}, nil
	case 100:
		return truncation{}, nil
	case 101:
		return truncation{substitute: true}, nil
	case 104:
		return truncation{ccl: true}, nil
	default:
		return truncation{}, diag.Newf(diag.UnsupportedTruncation, "%d", v)
	}
}

// anchor describes anchoring implied by a Position (type 3) attribute.
type anchor struct {
	left, right bool
}

func decodePosition(v int) (anchor, *diag.Error) {
	switch v {
	case 1, 2:
		return anchor{left: true}, nil
	case 3:
		return anchor{}, nil
	default:
		return anchor{}, diag.Newf(diag.UnsupportedPosition, "%d", v)
	}
}

// applyCompleteness merges a Completeness (type 6) attribute's implied
// anchoring into an existing anchor.
func applyCompleteness(a anchor, v int) (anchor, *diag.Error) {
	switch v {
	case 1:
		return a, nil
	case 2, 3:
		a.left, a.right = true, true
		return a, nil
	default:
		return a, diag.Newf(diag.UnsupportedCompleteness, "%d", v)
	}
}

// termAttrs is everything §4.3 step 2 extracts from a Term's attribute
// list besides the Use attribute.
type termAttrs struct {
	relation   string // "" if no Relation attribute present
	anchor     anchor
	trunc      truncation
	hasTrunc   bool
}

func extractTermAttrs(t Term, relationSym func(int) (string, *diag.Error)) (termAttrs, *diag.Error) {
	var out termAttrs
	for _, a := range t.Attrs {
		switch a.Type {
		case 1: // Use, handled by caller
		case 2:
			sym, err := relationSym(a.Value)
			if err != nil {
				return out, err
			}
			out.relation = sym
		case 3:
			anc, err := decodePosition(a.Value)
			if err != nil {
				return out, err
			}
			out.anchor.left = out.anchor.left || anc.left
			out.anchor.right = out.anchor.right || anc.right
		case 4:
			// Structure: ignored (spec §4.3).
		case 5:
			tr, err := decodeTruncation(a.Value)
			if err != nil {
				return out, err
			}
			out.trunc = tr
			out.hasTrunc = true
		case 6:
			anc, err := applyCompleteness(out.anchor, a.Value)
			if err != nil {
				return out, err
			}
			out.anchor = anc
		default:
			return out, diag.Newf(diag.UnsupportedAttributeType, "%d", a.Type)
		}
	}
	return out, nil
}

// decorateTerm applies truncation wildcards and anchor carets, then
// quotes the term if it needs it (spec §4.3 step 3).
func decorateTerm(term string, ta termAttrs) string {
	s := term
	if ta.hasTrunc {
		switch {
		case ta.trunc.substitute:
			s = replaceAll(s, "#", "?")
		case ta.trunc.ccl:
			s = cclTruncate(s)
		case ta.trunc.left && ta.trunc.right:
			s = "*" + s + "*"
		case ta.trunc.left:
			s = "*" + s
		case ta.trunc.right:
			s = s + "*"
		}
	}
	if ta.anchor.left {
		s = "^" + s
	}
	if ta.anchor.right {
		s = s + "^"
	}
	if needsQuoting(s) {
		s = `"` + s + `"`
	}
	return s
}

func needsQuoting(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '"', '/', '=':
			return true
		}
	}
	return false
}

func replaceAll(s, old, new string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if string(r) == old {
			out = append(out, []rune(new)...)
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}

// cclTruncate implements Truncation=104 (Z39.58 CCL style): '#' becomes
// '?' first, then any run of the form \?\d? becomes '*'.
func cclTruncate(s string) string {
	s = replaceAll(s, "#", "?")
	out := make([]byte, 0, len(s))
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] == '?' {
			j := i + 1
			if j < len(b) && b[j] >= '0' && b[j] <= '9' {
				j++
			}
			out = append(out, '*')
			i = j - 1
			continue
		}
		out = append(out, b[i])
	}
	return string(out)
}

func indexName(use int, haveUse bool, mapUse map[int]string) (string, *diag.Error) {
	if !haveUse {
		return "", nil
	}
	if mapUse == nil {
		// The `search.map` fallback: the raw integer is used literally.
		// Correct only when the back-end itself uses numeric access
		// points (spec §9 flags this as a configuration contract, not
		// a bug to hide).
		return fmt.Sprintf("%d", use), nil
	}
	name, ok := mapUse[use]
	if !ok {
		return "", diag.Newf(diag.UnsupportedUseAttribute, "%d", use)
	}
	return name, nil
}

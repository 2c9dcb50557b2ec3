// Package sortplan extracts a dialect-neutral sort key from a Sort
// request's SEQUENCE entry, then renders it as either a YAZ sortspec
// string or a CQL sortby clause (spec §4.8/§9's "single pass returning
// an abstract SortKey" note).
package sortplan

import (
	"strconv"

	"github.com/indexbridge/z3950gateway/internal/diag"
)

// Request is one entry of a Sort service's SEQUENCE list, named after
// the wire fields spec §4.8 enumerates.
type Request struct {
	SortField        string // literal access point, used verbatim if set
	ElementSpecType  string // used if SortField is empty
	ElementSpecValue string
	AttrSet          string // BIB-1 OID, or empty to mean BIB-1
	UseAttr          int
	HaveUseAttr      bool
	Relation         int // 0 => descending, anything else => ascending (spec example)
	Case             int // 0 => respect case ("s"), anything else => ignore case ("i")
	Missing          string
}

type kind int

const (
	kindLiteral kind = iota
	kindElementSpec
	kindUseAttr
)

// SortKey is the abstract, dialect-neutral key spec §9 asks for.
type SortKey struct {
	kind        kind
	literal     string
	useAttr     int
	ascending   bool
	respectCase bool
	missing     string
}

// Extract performs the single pass over a Request that both dialect
// renderers share (spec §9).
func Extract(r Request) (SortKey, *diag.Error) {
	sk := SortKey{
		ascending:   r.Relation != 0,
		respectCase: r.Case == 0,
		missing:     r.Missing,
	}
	switch {
	case r.SortField != "":
		sk.kind = kindLiteral
		sk.literal = r.SortField
	case r.ElementSpecType != "":
		sk.kind = kindElementSpec
		sk.literal = r.ElementSpecType + "=" + r.ElementSpecValue
	default:
		if r.AttrSet != "" && r.AttrSet != diag.OID_Bib1 {
			return SortKey{}, diag.Newf(diag.UnsupportedAttributeSet, "%s", r.AttrSet)
		}
		if !r.HaveUseAttr {
			return SortKey{}, diag.New(diag.IllegalSortRelation, "no access point in sort key")
		}
		sk.kind = kindUseAttr
		sk.useAttr = r.UseAttr
	}
	return sk, nil
}

// YAZ renders the key as a YAZ sortspec fragment (spec §4.8 "YAZ
// sortspec per key"). MISSING is not expressible in this dialect.
func (sk SortKey) YAZ() string {
	var ap string
	switch sk.kind {
	case kindLiteral:
		ap = sk.literal
	case kindElementSpec:
		ap = sk.literal
	case kindUseAttr:
		ap = "1=" + strconv.Itoa(sk.useAttr)
	}
	dir := "<"
	if sk.ascending {
		dir = ">"
	}
	c := "s"
	if !sk.respectCase {
		c = "i"
	}
	return ap + " " + dir + c
}

// CQL renders the key as a CQL sort index plus /sort.* modifiers (spec
// §4.8 "CQL sortspec per key"). useMap resolves a Use attribute through
// the database's search.map, exactly like the query compiler.
func (sk SortKey) CQL(useMap map[int]string) (string, *diag.Error) {
	var index string
	switch sk.kind {
	case kindLiteral, kindElementSpec:
		index = sk.literal
	case kindUseAttr:
		if useMap == nil {
			index = strconv.Itoa(sk.useAttr)
		} else {
			name, ok := useMap[sk.useAttr]
			if !ok {
				return "", diag.Newf(diag.UnsupportedUseAttribute, "%d", sk.useAttr)
			}
			index = name
		}
	}
	dirMod := "/sort.descending"
	if sk.ascending {
		dirMod = "/sort.ascending"
	}
	caseMod := "/sort.ignoreCase"
	if sk.respectCase {
		caseMod = "/sort.respectCase"
	}
	missingMod := "/sort.missingOmit"
	switch sk.missing {
	case "fail":
		missingMod = "/sort.missingFail"
	case "":
		missingMod = "/sort.missingValue=UNSPECIFIED"
	case "omit":
		missingMod = "/sort.missingOmit"
	}
	return index + dirMod + caseMod + missingMod, nil
}

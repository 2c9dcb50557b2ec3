package sortplan

import (
	"testing"
)

type fakeLookup struct {
	sets map[string]struct {
		qtext, rsid, policy string
	}
}

func (f fakeLookup) Lookup(name string) (string, string, string, bool) {
	e, ok := f.sets[name]
	if !ok {
		return "", "", "", false
	}
	return e.qtext, e.rsid, e.policy, true
}

func TestExtractUseAttrSortKey(t *testing.T) {
	req := Request{HaveUseAttr: true, UseAttr: 4, Relation: 0, Case: 0}
	sk, err := Extract(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sk.YAZ() != "1=4 <s" {
		t.Errorf("got %q, want %q", sk.YAZ(), "1=4 <s")
	}
}

func TestExtractSortFieldLiteral(t *testing.T) {
	req := Request{SortField: "title", Relation: 0, Case: 0}
	sk, err := Extract(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sk.YAZ() != "title <s" {
		t.Errorf("got %q, want %q", sk.YAZ(), "title <s")
	}
}

func TestExtractForeignAttrSetFails(t *testing.T) {
	req := Request{HaveUseAttr: true, UseAttr: 4, AttrSet: "1.2.3.4"}
	_, err := Extract(req)
	if err == nil || err.Code != 121 {
		t.Fatalf("expected 121, got %v", err)
	}
}

func TestExtractNoAccessPointFails(t *testing.T) {
	req := Request{}
	_, err := Extract(req)
	if err == nil || err.Code != 237 {
		t.Fatalf("expected 237, got %v", err)
	}
}

func TestSortViaCQLResearchSRU11(t *testing.T) {
	lookup := fakeLookup{sets: map[string]struct{ qtext, rsid, policy string }{
		"A": {qtext: "<qtext-A>", policy: "fallback"},
		"B": {qtext: "<qtext-B>", policy: "fallback"},
	}}
	sk, err := Extract(Request{SortField: "title", Relation: 0, Case: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cqlQuery, sortOpt, cerr := ComposeCQL([]string{"A", "B"}, []SortKey{sk}, nil, false, lookup)
	if cerr != nil {
		t.Fatalf("unexpected error: %v", cerr)
	}
	want := "((<qtext-A>) or (<qtext-B>))"
	if cqlQuery != want {
		t.Errorf("got %q, want %q", cqlQuery, want)
	}
	if sortOpt != "title <s" {
		t.Errorf("got sort option %q, want %q", sortOpt, "title <s")
	}
}

func TestSortViaCQLEmbeddedSortbySRU12(t *testing.T) {
	lookup := fakeLookup{sets: map[string]struct{ qtext, rsid, policy string }{
		"A": {rsid: "7", policy: "fallback"},
	}}
	sk, _ := Extract(Request{HaveUseAttr: true, UseAttr: 4, Relation: 1, Case: 0})
	cqlQuery, sortOpt, cerr := ComposeCQL([]string{"A"}, []SortKey{sk}, map[int]string{4: "title"}, true, lookup)
	if cerr != nil {
		t.Fatalf("unexpected error: %v", cerr)
	}
	if sortOpt != "" {
		t.Errorf("expected embedded sortby to leave no extra option, got %q", sortOpt)
	}
	want := `(cql.resultSetId="7") sortby title/sort.ascending/sort.respectCase/sort.missingValue=UNSPECIFIED`
	if cqlQuery != want {
		t.Errorf("got %q, want %q", cqlQuery, want)
	}
}

func TestComposePQFOverSets(t *testing.T) {
	sk, _ := Extract(Request{SortField: "title", Relation: 0, Case: 0})
	pqfQuery, yaz := ComposePQF([]string{"A", "B"}, []SortKey{sk})
	if pqfQuery != `@or @set "A" @set "B"` {
		t.Errorf("got %q", pqfQuery)
	}
	if yaz != "title <s" {
		t.Errorf("got %q", yaz)
	}
}

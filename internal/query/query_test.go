package query

import "testing"

type fakeLookup struct {
	qtext, rsid, policy string
	ok                  bool
}

func (f fakeLookup) Lookup(setName string) (string, string, string, bool) {
	return f.qtext, f.rsid, f.policy, f.ok
}

func TestCompileCQLSimpleSearch(t *testing.T) {
	useMap := map[int]string{4: "title"}
	term := Term{Attrs: []Attr{{Type: 1, Value: 4}, {Type: 2, Value: 3}, {Type: 5, Value: 1}}, Value: "war"}
	got, err := CompileCQL(term, useMap, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "title = war*" {
		t.Errorf("got %q, want %q", got, "title = war*")
	}
}

func TestCompileCQLAndComposesInfix(t *testing.T) {
	a := Term{Attrs: []Attr{{Type: 1, Value: 4}}, Value: "war"}
	b := Term{Attrs: []Attr{{Type: 1, Value: 4}}, Value: "peace"}
	useMap := map[int]string{4: "title"}
	left, _ := CompileCQL(a, useMap, nil)
	right, _ := CompileCQL(b, useMap, nil)
	got, err := CompileCQL(And{Left: a, Right: b}, useMap, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "(" + left + " and " + right + ")"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCompileCQLNoIndexNoRelation(t *testing.T) {
	term := Term{Attrs: []Attr{{Type: 5, Value: 1}}, Value: "term"}
	got, err := CompileCQL(term, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "cql.serverChoice = term*" {
		t.Errorf("got %q", got)
	}
}

func TestCompileCQLNoIndexWithRelation(t *testing.T) {
	term := Term{Attrs: []Attr{{Type: 2, Value: 4}, {Type: 5, Value: 1}}, Value: "term"}
	got, err := CompileCQL(term, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "cql.serverChoice >= term*" {
		t.Errorf("got %q", got)
	}
}

func TestCompileCQLRsidWithKnownRsid(t *testing.T) {
	lookup := fakeLookup{qtext: "title = war*", rsid: "42", policy: "fallback", ok: true}
	got, err := CompileCQL(Rsid{SetName: "default"}, nil, lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `cql.resultSetId="42"` {
		t.Errorf("got %q", got)
	}
}

func TestCompileCQLRsidFallsBackToQtext(t *testing.T) {
	lookup := fakeLookup{qtext: "title = war*", rsid: "", policy: "fallback", ok: true}
	got, err := CompileCQL(Rsid{SetName: "default"}, nil, lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "(title = war*)" {
		t.Errorf("got %q", got)
	}
}

func TestCompileCQLRsidPolicyIDWithoutRsidFails(t *testing.T) {
	lookup := fakeLookup{qtext: "x", rsid: "", policy: "id", ok: true}
	_, err := CompileCQL(Rsid{SetName: "default"}, nil, lookup)
	if err == nil || err.Code != 18 {
		t.Fatalf("expected diagnostic 18, got %v", err)
	}
}

func TestCompileCQLRsidUnknownSet(t *testing.T) {
	lookup := fakeLookup{ok: false}
	_, err := CompileCQL(Rsid{SetName: "missing"}, nil, lookup)
	if err == nil || err.Code != 128 {
		t.Fatalf("expected diagnostic 128, got %v", err)
	}
}

func TestCompileCQLMissingUseMapping(t *testing.T) {
	term := Term{Attrs: []Attr{{Type: 1, Value: 99}}, Value: "x"}
	_, err := CompileCQL(term, map[int]string{4: "title"}, nil)
	if err == nil || err.Code != 114 {
		t.Fatalf("expected diagnostic 114, got %v", err)
	}
}

func TestCompileCQLForeignAttributeSet(t *testing.T) {
	term := Term{Attrs: []Attr{{Type: 1, Value: 4, Set: "1.2.3.4"}}, Value: "x"}
	_, err := CompileCQL(term, nil, nil)
	if err == nil || err.Code != 121 {
		t.Fatalf("expected diagnostic 121, got %v", err)
	}
}

func TestCompileCQLUnknownRelation(t *testing.T) {
	term := Term{Attrs: []Attr{{Type: 2, Value: 999}}, Value: "x"}
	_, err := CompileCQL(term, nil, nil)
	if err == nil || err.Code != 117 {
		t.Fatalf("expected diagnostic 117, got %v", err)
	}
}

func TestCompileSolrRangeQuery(t *testing.T) {
	useMap := map[int]string{30: "year"}
	term := Term{Attrs: []Attr{{Type: 1, Value: 30}, {Type: 2, Value: 2}}, Value: "2000"}
	got, err := CompileSolr(term, useMap, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "year:[* TO 2000]" {
		t.Errorf("got %q", got)
	}
}

func TestCompileSolrRelation1(t *testing.T) {
	useMap := map[int]string{4: "title"}
	term := Term{Attrs: []Attr{{Type: 1, Value: 4}, {Type: 2, Value: 1}}, Value: "foo"}
	got, err := CompileSolr(term, useMap, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "title:{* TO foo}" {
		t.Errorf("got %q, want title:{* TO foo}", got)
	}
}

func TestCompileSolrEqualityIsExplicitlyFielded(t *testing.T) {
	useMap := map[int]string{4: "title"}
	term := Term{Attrs: []Attr{{Type: 1, Value: 4}, {Type: 2, Value: 3}}, Value: "war"}
	got, err := CompileSolr(term, useMap, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "title:war" {
		t.Errorf("got %q, want title:war (not an undefined expr)", got)
	}
}

func TestCompilePQFTermWithAttributes(t *testing.T) {
	term := Term{Attrs: []Attr{{Type: 1, Value: 4}, {Type: 2, Value: 3}}, Value: "war"}
	got, err := CompilePQF(term)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "@attr 1=4 @attr 2=3 war" {
		t.Errorf("got %q", got)
	}
}

func TestCompilePQFAndNesting(t *testing.T) {
	a := Term{Attrs: []Attr{{Type: 1, Value: 4}}, Value: "war"}
	b := Term{Attrs: []Attr{{Type: 1, Value: 4}}, Value: "peace"}
	got, err := CompilePQF(And{Left: a, Right: b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "@and @attr 1=4 war @attr 1=4 peace" {
		t.Errorf("got %q", got)
	}
}

func TestComposePQFOrOverSets(t *testing.T) {
	got := ComposePQFOr([]string{"A", "B"})
	want := `@or @set "A" @set "B"`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCCLTruncation(t *testing.T) {
	got := cclTruncate("col#lect#2ion")
	if got != "col*lect*ion" {
		t.Errorf("got %q", got)
	}
}

func TestDecorateTermQuotesWhitespace(t *testing.T) {
	got := decorateTerm("hello world", termAttrs{})
	if got != `"hello world"` {
		t.Errorf("got %q", got)
	}
}

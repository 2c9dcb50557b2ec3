package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/indexbridge/z3950gateway/internal/config"
	"github.com/indexbridge/z3950gateway/internal/query"
	"github.com/indexbridge/z3950gateway/internal/session"
)

func warTerm() query.Node {
	return query.Term{
		Attrs: []query.Attr{
			{Type: 1, Value: 4},
			{Type: 2, Value: 3},
			{Type: 5, Value: 1},
		},
		Value: "war",
	}
}

// TestSearchScenario1SimpleCQL is spec §8 scenario 1.
func TestSearchScenario1SimpleCQL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("operation") {
		case "explain":
			w.Write([]byte(`<explainResponse/>`))
		case "searchRetrieve":
			if !strings.Contains(r.URL.Query().Get("query"), "title = war*") {
				t.Errorf("expected compiled query %q, got %q", "title = war*", r.URL.Query().Get("query"))
			}
			w.Write([]byte(`<searchRetrieveResponse><numberOfRecords>42</numberOfRecords></searchRetrieveResponse>`))
		}
	}))
	defer srv.Close()

	cfg := config.GatewayConfig{Databases: map[string]config.DatabaseConfig{
		"books": {
			Name: "books",
			ZURL: srv.URL,
			Search: config.SearchConfig{
				QueryType: "cql",
				Map:       map[int]config.UseMapEntry{4: {Index: "title"}},
			},
		},
	}}
	sess := session.New(cfg)
	defer sess.Close()

	resp, derr := Search(context.Background(), sess, SearchRequest{
		DatabaseNames: []string{"books"},
		SetName:       "default",
		Query:         warTerm(),
	})
	if derr != nil {
		t.Fatalf("search failed: %v", derr)
	}
	if resp.Hits != 42 {
		t.Errorf("got hits %d, want 42", resp.Hits)
	}
	rs, ok := sess.ResultSet("default")
	if !ok || rs.Hits != 42 {
		t.Errorf("expected a bound result set with 42 hits, got %+v ok=%v", rs, ok)
	}
}

// TestSearchScenario2SolrRange is spec §8 scenario 2.
func TestSearchScenario2SolrRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/select") {
			return
		}
		q := r.URL.Query().Get("q")
		if q == "*:*" && r.URL.Query().Get("wt") == "" {
			// solrConn.Connect's reachability probe, not the compiled search.
			return
		}
		if q != "year:[* TO 2000]" {
			t.Errorf("expected compiled query %q, got %q", "year:[* TO 2000]", q)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{"numFound": 5},
		})
	}))
	defer srv.Close()

	cfg := config.GatewayConfig{Databases: map[string]config.DatabaseConfig{
		"cdrom": {
			Name: "cdrom",
			ZURL: srv.URL,
			Search: config.SearchConfig{
				QueryType: "solr",
				Map:       map[int]config.UseMapEntry{30: {Index: "year"}},
			},
		},
	}}
	sess := session.New(cfg)
	defer sess.Close()

	resp, derr := Search(context.Background(), sess, SearchRequest{
		DatabaseNames: []string{"cdrom"},
		SetName:       "default",
		Query: query.Term{
			Attrs: []query.Attr{{Type: 1, Value: 30}, {Type: 2, Value: 2}},
			Value: "2000",
		},
	})
	if derr != nil {
		t.Fatalf("search failed: %v", derr)
	}
	if resp.Hits != 5 {
		t.Errorf("got hits %d, want 5", resp.Hits)
	}
}

func TestSearchNonDefaultSetNameRejected(t *testing.T) {
	cfg := config.GatewayConfig{Databases: map[string]config.DatabaseConfig{
		"books": {Name: "books", NoNamedResultSets: true, ZURL: "z3950://127.0.0.1:1"},
	}}
	sess := session.New(cfg)
	defer sess.Close()

	_, derr := Search(context.Background(), sess, SearchRequest{
		DatabaseNames: []string{"books"},
		SetName:       "myset",
		Query:         warTerm(),
	})
	if derr == nil || derr.Code != 22 {
		t.Fatalf("expected diagnostic 22, got %v", derr)
	}
}

// TestVirtualDatabaseMissingAddress is spec §8 scenario 6.
func TestVirtualDatabaseMissingAddress(t *testing.T) {
	sess := session.New(config.GatewayConfig{})
	defer sess.Close()

	_, derr := Search(context.Background(), sess, SearchRequest{
		DatabaseNames: []string{"cfg:timeout=30"},
		SetName:       "default",
		Query:         warTerm(),
	})
	if derr == nil || derr.Code != 1 {
		t.Fatalf("expected diagnostic 1, got %v", derr)
	}
	if derr.AddInfo != "cfg:timeout=30" {
		t.Errorf("expected addinfo to carry the original string, got %q", derr.AddInfo)
	}
}

// TestFetchUnsupportedSyntax is spec §8 scenario 5.
func TestFetchUnsupportedSyntax(t *testing.T) {
	db := config.DatabaseConfig{
		Name:         "books",
		USMARCRecord: []config.FieldSpec{{XPath: "title", Content: "245$a"}},
	}

	resp, derr := dispatchSyntax([]byte(`<r/>`), db, "grs-1")
	if derr == nil || derr.Code != 238 {
		t.Fatalf("expected diagnostic 238, got %v resp=%v", derr, resp)
	}
	if derr.AddInfo != "usmarc,xml" {
		t.Errorf("expected addinfo %q, got %q", "usmarc,xml", derr.AddInfo)
	}
}

func TestPresentOutOfRange(t *testing.T) {
	sess := session.New(config.GatewayConfig{})
	defer sess.Close()
	sess.Bind("default", &session.ResultSet{SetName: "default", Hits: 5})

	_, derr := Present(sess, PresentRequest{SetName: "default", Start: 4, Number: 5})
	if derr == nil || derr.Code != 13 {
		t.Fatalf("expected diagnostic 13, got %v", derr)
	}

	_, derr = Present(sess, PresentRequest{SetName: "default", Start: 1, Number: 5})
	if derr != nil {
		t.Fatalf("expected in-range present to succeed, got %v", derr)
	}
}

func TestPresentMissingResultSet(t *testing.T) {
	sess := session.New(config.GatewayConfig{})
	defer sess.Close()
	_, derr := Present(sess, PresentRequest{SetName: "nope", Start: 1, Number: 1})
	if derr == nil || derr.Code != 128 {
		t.Fatalf("expected diagnostic 128, got %v", derr)
	}
}

func TestDeleteIsANoOp(t *testing.T) {
	sess := session.New(config.GatewayConfig{})
	resp, derr := Delete(sess, DeleteRequest{SetNames: []string{"default"}})
	if derr != nil {
		t.Fatalf("delete should never fail, got %v", derr)
	}
	_ = resp
}

func TestInitMissingCredentialsRejectedWithoutHTTPCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sess := session.New(config.GatewayConfig{})
	defer sess.Close()

	_, derr := Init(context.Background(), sess, InitRequest{
		Username: "",
		Password: "",
		Config:   config.GatewayConfig{Authentication: srv.URL + "?user={user}&pass={pass}"},
	})
	if derr == nil || derr.Code != 1014 {
		t.Fatalf("expected diagnostic 1014, got %v", derr)
	}
	if derr.AddInfo != "credentials not supplied" {
		t.Errorf("expected addinfo %q, got %q", "credentials not supplied", derr.AddInfo)
	}
	if called {
		t.Error("expected authenticate to never reach the HTTP side-channel with no credentials")
	}
}

func TestInitBadCredentialsRejectedByHTTPCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	sess := session.New(config.GatewayConfig{})
	defer sess.Close()

	_, derr := Init(context.Background(), sess, InitRequest{
		Username: "alice",
		Password: "wrong",
		Config:   config.GatewayConfig{Authentication: srv.URL + "?user={user}&pass={pass}"},
	})
	if derr == nil || derr.Code != 1014 {
		t.Fatalf("expected diagnostic 1014, got %v", derr)
	}
	if derr.AddInfo != "credentials are bad" {
		t.Errorf("expected addinfo %q, got %q", "credentials are bad", derr.AddInfo)
	}
}

func TestInitGoodCredentialsAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sess := session.New(config.GatewayConfig{})
	defer sess.Close()

	resp, derr := Init(context.Background(), sess, InitRequest{
		Username: "alice",
		Password: "secret",
		Config:   config.GatewayConfig{Authentication: srv.URL + "?user={user}&pass={pass}"},
	})
	if derr != nil {
		t.Fatalf("expected acceptance, got %v", derr)
	}
	if !resp.Accepted {
		t.Error("expected Accepted to be true")
	}
}

func TestSRUAtLeast12(t *testing.T) {
	cases := map[string]bool{"1.1": false, "1.2": true, "2.0": true, "": false, "garbage": false}
	for v, want := range cases {
		if got := sruAtLeast12(v); got != want {
			t.Errorf("sruAtLeast12(%q) = %v, want %v", v, got, want)
		}
	}
}

package zoom

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// mockZ3950Server is a minimal in-process Z39.50 server, in the
// teacher's own client_test.go style.
type mockZ3950Server struct {
	listener net.Listener
	addr     string
}

func newMockZ3950Server(t *testing.T) *mockZ3950Server {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &mockZ3950Server{listener: l, addr: l.Addr().String()}
	go s.serve()
	return s
}

func (s *mockZ3950Server) Close() { s.listener.Close() }

func (s *mockZ3950Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *mockZ3950Server) handle(conn net.Conn) {
	defer conn.Close()
	for {
		pkt, err := ber.ReadPacket(conn)
		if err != nil {
			return
		}
		var resp *ber.Packet
		switch pkt.Tag {
		case 20:
			resp = ber.Encode(ber.ClassContext, ber.TypeConstructed, 21, nil, "InitializeResponse")
			resp.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, true, "Result"))
		case 22:
			resp = ber.Encode(ber.ClassContext, ber.TypeConstructed, 23, nil, "SearchResponse")
			resp.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 23, 42, "Count"))
		case 24:
			resp = ber.Encode(ber.ClassContext, ber.TypeConstructed, 25, nil, "PresentResponse")
			records := ber.Encode(ber.ClassContext, ber.TypeConstructed, 28, nil, "Records")
			octet := ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "<record/>", "Body")
			records.AppendChild(octet)
			resp.AppendChild(records)
		default:
			resp = ber.Encode(ber.ClassContext, ber.TypeConstructed, 48, nil, "Close")
		}
		conn.Write(resp.Bytes())
	}
}

func TestPQFConnConnectSearchAndRecord(t *testing.T) {
	srv := newMockZ3950Server(t)
	defer srv.Close()

	conn := newPQFConn("z3950://" + srv.addr)
	ctx := context.Background()
	if derr := conn.Connect(ctx); derr != nil {
		t.Fatalf("connect failed: %v", derr)
	}
	defer conn.Close()

	result, derr := conn.Search(ctx, `@attr 1=4 war`)
	if derr != nil {
		t.Fatalf("search failed: %v", derr)
	}
	if result.Hits != 42 {
		t.Errorf("got hits %d, want 42", result.Hits)
	}

	rec, derr := conn.Record(ctx, 1)
	if derr != nil {
		t.Fatalf("record failed: %v", derr)
	}
	if !strings.Contains(string(rec), "<record/>") {
		t.Errorf("expected wrapped record body, got %q", rec)
	}
}

func TestPQFConnConnectFailure(t *testing.T) {
	conn := newPQFConn("z3950://127.0.0.1:1")
	derr := conn.Connect(context.Background())
	if derr == nil {
		t.Fatal("expected a connect error")
	}
	if derr.Code != 109 {
		t.Errorf("expected diagnostic 109, got %d", derr.Code)
	}
}

func TestCQLConnSearchAndRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("operation") {
		case "explain":
			w.Write([]byte(`<explainResponse/>`))
		case "searchRetrieve":
			if r.URL.Query().Get("maximumRecords") == "0" {
				w.Write([]byte(`<searchRetrieveResponse><numberOfRecords>7</numberOfRecords></searchRetrieveResponse>`))
				return
			}
			w.Write([]byte(`<searchRetrieveResponse><records><record><recordData><record><leader>x</leader></record></recordData></record></records></searchRetrieveResponse>`))
		}
	}))
	defer srv.Close()

	conn := newCQLConn(srv.URL)
	ctx := context.Background()
	if derr := conn.Connect(ctx); derr != nil {
		t.Fatalf("connect failed: %v", derr)
	}
	result, derr := conn.Search(ctx, "title = war*")
	if derr != nil {
		t.Fatalf("search failed: %v", derr)
	}
	if result.Hits != 7 {
		t.Errorf("got hits %d, want 7", result.Hits)
	}
	rec, derr := conn.Record(ctx, 1)
	if derr != nil {
		t.Fatalf("record failed: %v", derr)
	}
	if !strings.Contains(string(rec), `str name="marcxml"`) {
		t.Errorf("expected marcxml envelope, got %q", rec)
	}
}

func TestCQLConnDiagnosticTranslation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<searchRetrieveResponse><diagnostics><diagnostic><uri>info:srw/diagnostic/1/64</uri><message>no such database</message></diagnostic></diagnostics></searchRetrieveResponse>`))
	}))
	defer srv.Close()

	conn := newCQLConn(srv.URL)
	_, derr := conn.Search(context.Background(), "cql.serverChoice = x")
	if derr == nil || derr.Code != 235 {
		t.Fatalf("expected diagnostic 235, got %v", derr)
	}
}

func TestSolrConnSearchAndRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/select") {
			rows := r.URL.Query().Get("rows")
			body := map[string]any{
				"response": map[string]any{
					"numFound": 3,
				},
			}
			if rows == "1" {
				body["response"] = map[string]any{
					"numFound": 3,
					"docs":     []map[string]any{{"marcxml": "<record/>"}},
				}
			}
			json.NewEncoder(w).Encode(body)
		}
	}))
	defer srv.Close()

	conn := newSolrConn(srv.URL)
	ctx := context.Background()
	if derr := conn.Connect(ctx); derr != nil {
		t.Fatalf("connect failed: %v", derr)
	}
	result, derr := conn.Search(ctx, "title:war")
	if derr != nil {
		t.Fatalf("search failed: %v", derr)
	}
	if result.Hits != 3 {
		t.Errorf("got hits %d, want 3", result.Hits)
	}
	rec, derr := conn.Record(ctx, 1)
	if derr != nil {
		t.Fatalf("record failed: %v", derr)
	}
	if !strings.Contains(string(rec), "<record/>") {
		t.Errorf("expected marcxml body, got %q", rec)
	}
}

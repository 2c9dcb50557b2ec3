package zoom

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/indexbridge/z3950gateway/internal/diag"
)

// cqlConn is the SRU back-end connector (spec §4's "cqlConn — SRU over
// HTTP", used when search.querytype: cql). It speaks searchRetrieve and
// scan over plain net/http + encoding/xml, following the pack's own
// approach to consuming XML HTTP responses directly rather than through
// a higher-level client.
type cqlConn struct {
	baseURL    string
	httpClient *http.Client
	options    map[string]string
	lastQuery  string
	lastHits   int
	sruVersion string
}

func newCQLConn(zurl string) *cqlConn {
	return &cqlConn{baseURL: zurl, httpClient: &http.Client{}, options: make(map[string]string), sruVersion: "1.2"}
}

func (c *cqlConn) SetOption(key, value string) {
	c.options[key] = value
	if key == "sru_version" {
		c.sruVersion = value
	}
}

func (c *cqlConn) Connect(ctx context.Context) *diag.Error {
	// SRU is stateless HTTP; "connecting" is a reachability probe via an
	// explain request, mirroring how the teacher treats Z39.50 Init as
	// the point where a dead target is discovered.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?operation=explain&version="+c.sruVersion, nil)
	if err != nil {
		return wrapConnect(c.baseURL, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wrapConnect(c.baseURL, err)
	}
	resp.Body.Close()
	return nil
}

func (c *cqlConn) Close() error { return nil }

type sruSearchResponse struct {
	NumberOfRecords int             `xml:"numberOfRecords"`
	Records         []sruRecord     `xml:"records>record"`
	Diagnostics     []sruDiagnostic `xml:"diagnostics>diagnostic"`
}

type sruRecord struct {
	RecordData sruRecordData `xml:"recordData"`
}

type sruRecordData struct {
	Inner string `xml:",innerxml"`
}

type sruDiagnostic struct {
	URI     string `xml:"uri"`
	Message string `xml:"message"`
}

func (c *cqlConn) Search(ctx context.Context, queryText string) (SearchResult, *diag.Error) {
	c.lastQuery = queryText
	body, derr := c.get(ctx, url.Values{
		"operation":      {"searchRetrieve"},
		"version":        {c.sruVersion},
		"query":          {queryText},
		"maximumRecords": {"0"},
		"recordSchema":   {c.options["schema"]},
	})
	if derr != nil {
		return SearchResult{}, derr
	}
	var resp sruSearchResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return SearchResult{}, wrapOther(c.baseURL, fmt.Errorf("decode searchRetrieve response: %w", err))
	}
	if derr := diagnosticError(resp.Diagnostics); derr != nil {
		return SearchResult{}, derr
	}
	c.lastHits = resp.NumberOfRecords
	return SearchResult{Hits: resp.NumberOfRecords, RSID: ""}, nil
}

func (c *cqlConn) Record(ctx context.Context, offset int) ([]byte, *diag.Error) {
	body, derr := c.get(ctx, url.Values{
		"operation":      {"searchRetrieve"},
		"version":        {c.sruVersion},
		"query":          {c.lastQuery},
		"startRecord":    {strconv.Itoa(offset)},
		"maximumRecords": {"1"},
		"recordSchema":   {c.options["schema"]},
	})
	if derr != nil {
		return nil, derr
	}
	if derr := detectSRWDiagnostic(body); derr != nil {
		return nil, derr
	}
	var resp sruSearchResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, wrapOther(c.baseURL, fmt.Errorf("decode fetch response: %w", err))
	}
	if derr := diagnosticError(resp.Diagnostics); derr != nil {
		return nil, derr
	}
	if len(resp.Records) == 0 {
		return nil, diag.New(diag.PresentOutOfRange, strconv.Itoa(offset))
	}
	return []byte(`<doc><str name="marcxml">` + resp.Records[0].RecordData.Inner + `</str></doc>`), nil
}

func (c *cqlConn) Scan(ctx context.Context, queryText string, number, position, stepSize int) (ScanResult, *diag.Error) {
	body, derr := c.get(ctx, url.Values{
		"operation":        {"scan"},
		"version":          {c.sruVersion},
		"scanClause":       {queryText},
		"maximumTerms":     {strconv.Itoa(number)},
		"responsePosition": {strconv.Itoa(position)},
	})
	if derr != nil {
		return ScanResult{}, derr
	}
	type termEntry struct {
		Value           string `xml:"value"`
		NumberOfRecords int    `xml:"numberOfRecords"`
	}
	type scanResponse struct {
		Terms       []termEntry     `xml:"terms>term"`
		Diagnostics []sruDiagnostic `xml:"diagnostics>diagnostic"`
	}
	var resp scanResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return ScanResult{}, wrapOther(c.baseURL, fmt.Errorf("decode scan response: %w", err))
	}
	if derr := diagnosticError(resp.Diagnostics); derr != nil {
		return ScanResult{}, derr
	}
	entries := make([]ScanEntry, len(resp.Terms))
	for i, t := range resp.Terms {
		entries[i] = ScanEntry{Term: t.Value, Count: t.NumberOfRecords}
	}
	_ = stepSize // SRU scan has no step-size analogue; kept for interface parity.
	return ScanResult{Entries: entries, Partial: len(entries) != number}, nil
}

func (c *cqlConn) SRUVersion() string { return c.sruVersion }

func (c *cqlConn) get(ctx context.Context, params url.Values) ([]byte, *diag.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, wrapOther(c.baseURL, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapConnect(c.baseURL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapOther(c.baseURL, err)
	}
	return body, nil
}

// diagnosticError translates an SRU response's own <diagnostics> block
// (spec §7's "SRW diagnostic-set" failure kind).
func diagnosticError(diags []sruDiagnostic) *diag.Error {
	if len(diags) == 0 {
		return nil
	}
	code := srwDiagnosticCode(diags[0].URI)
	return diag.Translate(diag.FromSRW(code, diags[0].Message))
}

// detectSRWDiagnostic implements the "heuristically check the XML for an
// SRW diagnostic element" fallback (spec §4.5), for back-ends old enough
// not to report per-record errors any other way.
func detectSRWDiagnostic(body []byte) *diag.Error {
	type wrapper struct {
		XMLName xml.Name
		URI     string `xml:"uri"`
		Message string `xml:"message"`
	}
	var w wrapper
	if err := xml.Unmarshal(body, &w); err != nil {
		return nil
	}
	if w.XMLName.Local != "diagnostic" && w.XMLName.Space != "http://www.loc.gov/zing/srw/diagnostic/" {
		return nil
	}
	return diag.Translate(diag.FromSRW(srwDiagnosticCode(w.URI), w.Message))
}

func srwDiagnosticCode(uri string) int {
	const prefix = "info:srw/diagnostic/1/"
	if len(uri) > len(prefix) {
		n, err := strconv.Atoi(uri[len(prefix):])
		if err == nil {
			return n
		}
	}
	return 2
}

package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/indexbridge/z3950gateway/internal/diag"
)

// solrConn is the Solr back-end connector (spec §4's "solrConn — Solr
// /select over HTTP with JSON responses", used when
// search.querytype: solr).
type solrConn struct {
	baseURL    string
	httpClient *http.Client
	options    map[string]string
	lastQuery  string
}

func newSolrConn(zurl string) *solrConn {
	return &solrConn{baseURL: zurl, httpClient: &http.Client{}, options: make(map[string]string)}
}

func (c *solrConn) SetOption(key, value string) { c.options[key] = value }

func (c *solrConn) Connect(ctx context.Context) *diag.Error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/select?q=*:*&rows=0", nil)
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

func (c *solrConn) Close() error { return nil }

type solrSelectResponse struct {
	ResponseHeader struct {
		Status int `json:"status"`
	} `json:"responseHeader"`
	Response struct {
		NumFound int              `json:"numFound"`
		Docs     []map[string]any `json:"docs"`
	} `json:"response"`
	Error *struct {
		Msg string `json:"msg"`
	} `json:"error"`
}

func (c *solrConn) Search(ctx context.Context, queryText string) (SearchResult, *diag.Error) {
	c.lastQuery = queryText
	resp, derr := c.query(ctx, queryText, 0, 0)
	if derr != nil {
		return SearchResult{}, derr
	}
	return SearchResult{Hits: resp.Response.NumFound, RSID: ""}, nil
}

func (c *solrConn) Record(ctx context.Context, offset int) ([]byte, *diag.Error) {
	resp, derr := c.query(ctx, c.lastQuery, offset-1, 1)
	if derr != nil {
		return nil, derr
	}
	if len(resp.Response.Docs) == 0 {
		return nil, diag.New(diag.PresentOutOfRange, strconv.Itoa(offset))
	}
	inner, _ := docToMarcxmlField(resp.Response.Docs[0])
	return []byte(`<doc><str name="marcxml">` + inner + `</str></doc>`), nil
}

// docToMarcxmlField extracts the "marcxml" stored field a Solr schema
// conventionally carries the record body in, matching the fixed envelope
// spec §4.5 dispatches all record extraction against.
func docToMarcxmlField(doc map[string]any) (string, bool) {
	v, ok := doc["marcxml"]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func (c *solrConn) Scan(ctx context.Context, queryText string, number, position, stepSize int) (ScanResult, *diag.Error) {
	// Solr's terms component is the scan analogue; the field is inferred
	// from the "field:value" query shape the compiler always produces.
	field := "text"
	if i := indexOfColon(queryText); i > 0 {
		field = queryText[:i]
	}
	params := url.Values{
		"terms":       {"true"},
		"terms.fl":    {field},
		"terms.limit": {strconv.Itoa(number)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/terms?"+params.Encode(), nil)
	if err != nil {
		return ScanResult{}, wrapOther(c.baseURL, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ScanResult{}, wrapConnect(c.baseURL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ScanResult{}, wrapOther(c.baseURL, err)
	}
	var parsed struct {
		Terms map[string][]json.RawMessage `json:"terms"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ScanResult{}, wrapOther(c.baseURL, fmt.Errorf("decode terms response: %w", err))
	}
	flat := parsed.Terms[field]
	var entries []ScanEntry
	for i := 0; i+1 < len(flat); i += 2 {
		var term string
		var count int
		json.Unmarshal(flat[i], &term)
		json.Unmarshal(flat[i+1], &count)
		entries = append(entries, ScanEntry{Term: term, Count: count})
	}
	_ = position
	_ = stepSize
	return ScanResult{Entries: entries, Partial: len(entries) != number}, nil
}

func (c *solrConn) SRUVersion() string { return "" }

func (c *solrConn) query(ctx context.Context, q string, start, rows int) (*solrSelectResponse, *diag.Error) {
	params := url.Values{
		"q":     {q},
		"start": {strconv.Itoa(start)},
		"rows":  {strconv.Itoa(rows)},
		"wt":    {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/select?"+params.Encode(), nil)
	if err != nil {
		return nil, wrapOther(c.baseURL, err)
	}
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapConnect(c.baseURL, err)
	}
	defer httpResp.Body.Close()
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, wrapOther(c.baseURL, err)
	}
	var resp solrSelectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapOther(c.baseURL, fmt.Errorf("decode solr response: %w", err))
	}
	if resp.Error != nil {
		return nil, diag.FromZOOM(resp.Error.Msg)
	}
	return &resp, nil
}

func indexOfColon(s string) int {
	for i, r := range s {
		if r == ':' {
			return i
		}
	}
	return -1
}

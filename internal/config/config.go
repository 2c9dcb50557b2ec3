// Package config loads and models the gateway's configuration: the
// per-database catalog, global search defaults, and the optional
// authentication URL template (spec §3/§6).
//
// The distilled spec describes the file as "originally XML"; this
// gateway loads it as YAML instead (see SPEC_FULL.md's AMBIENT STACK
// section for why), using the same schema shape.
package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/indexbridge/z3950gateway/internal/diag"
)

// OptionValue is the `{content: ...}` wrapper spec §6 says option leaves
// carry.
type OptionValue struct {
	Content string `yaml:"content"`
}

// SchemaConfig is one entry of a DatabaseConfig's `schema` map (spec §3).
type SchemaConfig struct {
	SRU      string `yaml:"sru"`
	Encoding string `yaml:"encoding"`
	Format   string `yaml:"format"`
}

// UseMapEntry is one entry of a DatabaseConfig's `search.map` (spec §3).
type UseMapEntry struct {
	Index string `yaml:"index"`
}

// SearchConfig is the `search` block, both global (inherited) and
// per-database (spec §3).
type SearchConfig struct {
	QueryType string              `yaml:"querytype"` // "cql", "solr", or "" for PQF
	Map       map[int]UseMapEntry `yaml:"map"`
}

// UseMap flattens Map to the plain map[int]string the query and
// sortplan packages take.
func (s SearchConfig) UseMap() map[int]string {
	if s.Map == nil {
		return nil
	}
	out := make(map[int]string, len(s.Map))
	for k, v := range s.Map {
		out[k] = v.Index
	}
	return out
}

// FieldSpec is one `{xpath, content}` pair driving the record converter
// (spec §4.7).
type FieldSpec struct {
	XPath   string `yaml:"xpath"`
	Content string `yaml:"content"`
}

// DatabaseConfig is one database's full configuration (spec §3).
type DatabaseConfig struct {
	Name                string                   `yaml:"-"`
	ZURL                string                   `yaml:"zurl"`
	Search              SearchConfig             `yaml:"search"`
	NoNamedResultSets   bool                     `yaml:"nonamedresultsets"`
	ResultSetID         string                   `yaml:"resultsetid"` // "fallback" (default), "id", "search"
	Schema              map[string]SchemaConfig  `yaml:"schema"`
	Charset             string                   `yaml:"charset"`
	Option              map[string]OptionValue   `yaml:"option"`
	USMARCRecord        []FieldSpec              `yaml:"usmarc-record"`
	GRS1Record          []FieldSpec              `yaml:"grs1-record"`
	SUTRSRecord         []FieldSpec              `yaml:"sutrs-record"`
	ExplicitAvailability bool                    `yaml:"option.explicit_availability"`
}

// ResultSetIDPolicy returns the configured policy, defaulting to
// "fallback" per spec §3.
func (d DatabaseConfig) ResultSetIDPolicy() string {
	if d.ResultSetID == "" {
		return "fallback"
	}
	return d.ResultSetID
}

// SupportedSyntaxes returns the record syntaxes this database has a
// field spec for, sorted, for use in a 238 diagnostic's addinfo (spec
// §4.7/§8).
func (d DatabaseConfig) SupportedSyntaxes() []string {
	var out []string
	out = append(out, "xml") // XML is always passthrough-supported.
	if len(d.USMARCRecord) > 0 {
		out = append(out, "usmarc")
	}
	if len(d.GRS1Record) > 0 {
		out = append(out, "grs-1")
	}
	if len(d.SUTRSRecord) > 0 {
		out = append(out, "sutrs")
	}
	sort.Strings(out)
	return out
}

// TelemetryConfig drives the process's OpenTelemetry tracer, letting an
// installation name itself in its own trace backend and control sampling
// volume without touching the OTEL_* environment directly.
type TelemetryConfig struct {
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRatio  float64 `yaml:"sample_ratio"` // 0 < ratio <= 1; 0 means "use the default"
}

// GatewayConfig is the process-wide configuration (spec §3).
type GatewayConfig struct {
	Databases      map[string]DatabaseConfig `yaml:"database"`
	Authentication string                    `yaml:"authentication"`
	Search         SearchConfig              `yaml:"search"`
	Telemetry      TelemetryConfig           `yaml:"telemetry"`
}

type fileShape struct {
	Database       []rawDatabase   `yaml:"database"`
	Authentication string          `yaml:"authentication"`
	Search         SearchConfig    `yaml:"search"`
	Telemetry      TelemetryConfig `yaml:"telemetry"`
}

type rawDatabase struct {
	Name string `yaml:"name"`
	DatabaseConfig `yaml:",inline"`
}

// Load reads and parses a GatewayConfig from a YAML file at path (spec
// §6's "configuration file" surface, minus the assumed-external XML
// parser this spec treats as out of scope).
func Load(path string) (*GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes into a GatewayConfig, inheriting the global
// search block into any per-database config that doesn't override it.
func Parse(data []byte) (*GatewayConfig, error) {
	var raw fileShape
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}
	cfg := &GatewayConfig{
		Databases:      make(map[string]DatabaseConfig, len(raw.Database)),
		Authentication: raw.Authentication,
		Search:         raw.Search,
		Telemetry:      raw.Telemetry,
	}
	for _, db := range raw.Database {
		dc := db.DatabaseConfig
		dc.Name = db.Name
		if dc.Search.QueryType == "" && dc.Search.Map == nil {
			dc.Search = cfg.Search
		}
		cfg.Databases[db.Name] = dc
	}
	return cfg, nil
}

// Resolve implements spec §4.2's database resolution rule for a single
// request database name. A `cfg:` name with no address is a diagnostic
// 1; a configured database is returned as stored, without checking its
// ZURL.
func (g *GatewayConfig) Resolve(names []string) (DatabaseConfig, *diag.Error) {
	if len(names) > 1 {
		return DatabaseConfig{}, diag.New(diag.TooManyDatabases, fmt.Sprintf("%d databases requested", len(names)))
	}
	if len(names) == 0 {
		return DatabaseConfig{}, diag.New(diag.TooManyDatabases, "no database requested")
	}
	name := names[0]
	if strings.HasPrefix(name, "cfg:") {
		return parseVirtualDatabase(name, g.Search)
	}
	dc, ok := g.Databases[name]
	if !ok {
		return DatabaseConfig{}, diag.New(diag.DatabaseDoesNotExist, name)
	}
	return dc, nil
}

// parseVirtualDatabase implements the `cfg:k=v&k=v&…` syntax (spec §4.2,
// §6).
func parseVirtualDatabase(raw string, globalSearch SearchConfig) (DatabaseConfig, *diag.Error) {
	body := strings.TrimPrefix(raw, "cfg:")
	values, err := url.ParseQuery(strings.ReplaceAll(body, ";", "&"))
	if err != nil {
		return DatabaseConfig{}, diag.New(diag.ConfigError, raw)
	}
	dc := DatabaseConfig{
		Name:        raw,
		ResultSetID: "fallback",
		Search:      globalSearch,
		Option:      make(map[string]OptionValue),
	}
	address := ""
	timeout := "120"
	sru := "get"
	for k, vs := range values {
		v := ""
		if len(vs) > 0 {
			v = vs[len(vs)-1]
		}
		switch k {
		case "address":
			address = v
		case "timeout":
			timeout = v
		case "sru":
			sru = v
		default:
			dc.Option[k] = OptionValue{Content: v}
		}
	}
	if address == "" {
		return DatabaseConfig{}, diag.New(diag.ConfigError, raw)
	}
	dc.ZURL = address
	dc.Option["timeout"] = OptionValue{Content: timeout}
	dc.Option["sru"] = OptionValue{Content: sru}
	return dc, nil
}

// parseTimeout reads a database's `timeout` option as an integer;
// virtual databases always carry one as a string option.
func parseTimeout(dc DatabaseConfig) (int, bool) {
	v, ok := dc.Option["timeout"]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v.Content)
	if err != nil {
		return 0, false
	}
	return n, true
}

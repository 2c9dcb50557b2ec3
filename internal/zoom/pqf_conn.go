package zoom

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/indexbridge/z3950gateway/internal/diag"
)

// pqfConn is the native Z39.50 back-end connector, adapted from the
// teacher's pkg/z3950.Client: the same hand-rolled BER PDU assembly for
// Init/Search/Present/Scan, generalized to take pre-compiled PQF text
// instead of the teacher's fixed single-attribute StructuredQuery.
type pqfConn struct {
	host, port string
	conn       net.Conn
	options    map[string]string
	setName    string
	lastHits   int
}

func newPQFConn(zurl string) *pqfConn {
	host, port := splitHostPort(zurl)
	return &pqfConn{host: host, port: port, options: make(map[string]string), setName: "default"}
}

func splitHostPort(zurl string) (string, string) {
	zurl = strings.TrimPrefix(zurl, "z3950://")
	zurl = strings.TrimPrefix(zurl, "tcp://")
	if i := strings.Index(zurl, "/"); i >= 0 {
		zurl = zurl[:i]
	}
	host, port, err := net.SplitHostPort(zurl)
	if err != nil {
		return zurl, "210"
	}
	return host, port
}

func (c *pqfConn) SetOption(key, value string) {
	c.options[key] = value
}

func (c *pqfConn) Connect(ctx context.Context) *diag.Error {
	target := fmt.Sprintf("%s:%s", c.host, c.port)
	d := net.Dialer{Timeout: 10 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return wrapConnect(target, err)
	}
	c.conn = conn
	if err := c.doInit(); err != nil {
		conn.Close()
		return wrapConnect(target, err)
	}
	return nil
}

func (c *pqfConn) Close() error {
	if c.conn == nil {
		return nil
	}
	pdu := ber.Encode(ber.ClassContext, ber.TypeConstructed, 48, nil, "Close")
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 211, 0, "Reason"))
	c.conn.Write(pdu.Bytes())
	return c.conn.Close()
}

func (c *pqfConn) sendPDU(pdu *ber.Packet) (*ber.Packet, error) {
	if _, err := c.conn.Write(pdu.Bytes()); err != nil {
		return nil, err
	}
	return ber.ReadPacket(c.conn)
}

func (c *pqfConn) doInit() error {
	pdu := ber.Encode(ber.ClassContext, ber.TypeConstructed, 20, nil, "InitializeRequest")
	ver := ber.Encode(ber.ClassContext, ber.TypePrimitive, 3, nil, "ProtocolVersion")
	ver.Data.Write([]byte{0x00, 0x20})
	pdu.AppendChild(ver)
	opts := ber.Encode(ber.ClassContext, ber.TypePrimitive, 4, nil, "Options")
	opts.Data.Write([]byte{0x00, 0xC0})
	pdu.AppendChild(opts)
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 5, 65536, "PreferredMessageSize"))
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 6, 65536, "MaximumRecordSize"))
	if user, ok := c.options["user"]; ok && user != "" {
		pdu.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 110, user, "Id"))
	}
	if pass, ok := c.options["password"]; ok && pass != "" {
		pdu.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 112, pass, "Ver"))
	}

	resp, err := c.sendPDU(pdu)
	if err != nil {
		return err
	}
	if resp.Tag != 21 {
		return fmt.Errorf("unexpected init response tag: %d", resp.Tag)
	}
	for _, child := range resp.Children {
		if child.Tag == 12 || child.Tag == 1 {
			if v, ok := child.Value.(bool); ok && !v {
				return fmt.Errorf("server rejected connection (Init=False)")
			}
		}
	}
	return nil
}

func decodeInt(p *ber.Packet) int64 {
	if v, ok := p.Value.(int64); ok {
		return v
	}
	data := p.Data.Bytes()
	var val int64
	for _, b := range data {
		val = (val << 8) | int64(b)
	}
	return val
}

func (c *pqfConn) Search(ctx context.Context, queryText string) (SearchResult, *diag.Error) {
	pdu := ber.Encode(ber.ClassContext, ber.TypeConstructed, 22, nil, "SearchRequest")
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 13, 1, "SmallSetUpperBound"))
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 14, 1, "LargeSetLowerBound"))
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 15, 0, "MediumSetPresentNumber"))
	pdu.AppendChild(ber.NewBoolean(ber.ClassContext, ber.TypePrimitive, 16, true, "ReplaceIndicator"))
	pdu.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 17, c.setName, "ResultSetName"))

	searchQuery := ber.Encode(ber.ClassContext, ber.TypeConstructed, 21, nil, "SearchQuery")
	// Type-2Query (raw PQF) is carried as an OctetString; a real ZOOM
	// client parses PQF into a Type-1 tree itself. This connector only
	// ever receives PQF this gateway's own compiler produced, so it is
	// passed through as an already-serialized operand.
	searchQuery.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 2, queryText, "Type2Query"))
	pdu.AppendChild(searchQuery)

	resp, err := c.sendPDU(pdu)
	if err != nil {
		return SearchResult{}, wrapOther(c.host, err)
	}
	if resp.Tag != 23 {
		return SearchResult{}, wrapOther(c.host, fmt.Errorf("unexpected search response tag: %d", resp.Tag))
	}
	hits := 0
	for _, child := range resp.Children {
		if child.Tag == 23 {
			hits = int(decodeInt(child))
		}
	}
	c.lastHits = hits
	return SearchResult{Hits: hits, RSID: c.setName}, nil
}

func (c *pqfConn) Record(ctx context.Context, offset int) ([]byte, *diag.Error) {
	pdu := ber.Encode(ber.ClassContext, ber.TypeConstructed, 24, nil, "PresentRequest")
	pdu.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 31, c.setName, "ResultSetId"))
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 30, int64(offset), "ResultSetStartPoint"))
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 29, 1, "NumberOfRecordsRequested"))

	resp, err := c.sendPDU(pdu)
	if err != nil {
		return nil, wrapOther(c.host, err)
	}
	if resp.Tag != 25 {
		return nil, wrapOther(c.host, fmt.Errorf("unexpected present response tag: %d", resp.Tag))
	}
	for _, child := range resp.Children {
		if child.Tag != 28 {
			continue
		}
		for _, recSeq := range child.Children {
			if octet := findOctetString(recSeq); octet != nil {
				return wrapAsMarcxmlEnvelope(octet), nil
			}
		}
	}
	return nil, diag.New(diag.PresentOutOfRange, strconv.Itoa(offset))
}

// wrapAsMarcxmlEnvelope wraps a raw record body in the fixed
// `/doc/str[@name='marcxml']` envelope so the record converter's
// extraction step (spec §4.5) is dialect-independent, even for records
// that arrived directly as MARC binary over Z39.50.
func wrapAsMarcxmlEnvelope(body []byte) []byte {
	return []byte(`<doc><str name="marcxml">` + string(body) + `</str></doc>`)
}

func findOctetString(p *ber.Packet) []byte {
	if p.Tag == ber.TagOctetString && p.ClassType == ber.ClassUniversal {
		return p.Data.Bytes()
	}
	if p.Tag == ber.TagExternal && p.ClassType == ber.ClassUniversal {
		for _, child := range p.Children {
			if child.ClassType == ber.ClassContext {
				if child.Tag == 1 {
					return child.Data.Bytes()
				}
				if child.Tag == 0 {
					return findOctetString(child)
				}
			}
		}
	}
	for _, child := range p.Children {
		if res := findOctetString(child); res != nil {
			return res
		}
	}
	return nil
}

func (c *pqfConn) Scan(ctx context.Context, queryText string, number, position, stepSize int) (ScanResult, *diag.Error) {
	pdu := ber.Encode(ber.ClassContext, ber.TypeConstructed, 35, nil, "ScanRequest")
	pdu.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 2, queryText, "Type2Term"))
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 31, int64(number), "NumberOfTermsRequested"))
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 32, int64(stepSize), "StepSize"))
	pdu.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 33, int64(position), "PositionOfTerm"))

	resp, err := c.sendPDU(pdu)
	if err != nil {
		return ScanResult{}, wrapOther(c.host, err)
	}
	if resp.Tag != 36 {
		return ScanResult{}, wrapOther(c.host, fmt.Errorf("unexpected scan response tag: %d", resp.Tag))
	}

	var entries []ScanEntry
	for _, child := range resp.Children {
		if child.Tag != 7 || len(child.Children) == 0 {
			continue
		}
		for _, entry := range child.Children[0].Children {
			var term string
			var cnt int
			var walk func(*ber.Packet)
			walk = func(p *ber.Packet) {
				if p.Tag == 45 {
					if v, ok := p.Value.([]byte); ok {
						term = string(v)
					} else {
						term = string(p.Data.Bytes())
					}
				}
				if p.Tag == 2 {
					if v, ok := p.Value.(int64); ok {
						cnt = int(v)
					}
				}
				for _, sub := range p.Children {
					walk(sub)
				}
			}
			walk(entry)
			if term != "" {
				entries = append(entries, ScanEntry{Term: term, Count: cnt})
			}
		}
	}
	return ScanResult{Entries: entries, Partial: len(entries) != number}, nil
}

func (c *pqfConn) SRUVersion() string { return "" }

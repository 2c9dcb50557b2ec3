package record

import "encoding/xml"

// envelopeDoc mirrors the fixed `/doc/str[@name='marcxml']` shape every
// zoom.Conn wraps its raw record bytes in (spec §4.5), regardless of
// whether the underlying back-end spoke Z39.50, SRU, or Solr.
type envelopeDoc struct {
	Str struct {
		Name  string `xml:"name,attr"`
		Inner string `xml:",innerxml"`
	} `xml:"str"`
}

// ExtractEnvelope pulls the inner bibliographic-record XML out of the
// fixed marcxml envelope, preserving its raw markup for the syntax
// converters below to parse in turn. charsetHint is the owning
// database's configured `charset` value, if any.
func ExtractEnvelope(data []byte, charsetHint string) ([]byte, error) {
	var doc envelopeDoc
	if err := xml.Unmarshal(NormalizeXML(data, charsetHint), &doc); err != nil {
		return nil, err
	}
	return []byte(doc.Str.Inner), nil
}

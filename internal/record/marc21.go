package record

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/indexbridge/z3950gateway/internal/config"
)

const (
	fieldTerminator  = 0x1e
	recordTerminator = 0x1d
	subfieldDelim    = 0x1f
)

// contentSpec is a parsed `content` value: `tag[/i1[/i2]][$subtag]`
// (spec §4.7).
type contentSpec struct {
	tag        string
	ind1, ind2 byte
	subtag     byte
	hasSubtag  bool
}

func parseContentSpec(content string) contentSpec {
	spec := contentSpec{ind1: ' ', ind2: ' '}
	rest := content
	if i := strings.IndexByte(rest, '$'); i >= 0 {
		if i+1 < len(rest) {
			spec.subtag = rest[i+1]
			spec.hasSubtag = true
		}
		rest = rest[:i]
	}
	parts := strings.Split(rest, "/")
	spec.tag = parts[0]
	if len(parts) > 1 && len(parts[1]) > 0 {
		spec.ind1 = parts[1][0]
	}
	if len(parts) > 2 && len(parts[2]) > 0 {
		spec.ind2 = parts[2][0]
	}
	return spec
}

func (s contentSpec) isControl() bool {
	return strings.HasPrefix(s.tag, "00")
}

// marcField is one field being assembled: a control field's raw value, or
// a data field's indicators plus accumulated subfields.
type marcField struct {
	tag        string
	control    string
	isControl  bool
	ind1, ind2 byte
	subfields  []subfield
}

type subfield struct {
	code byte
	val  string
}

func (f *marcField) hasSubtag(code byte) bool {
	for _, sf := range f.subfields {
		if sf.code == code {
			return true
		}
	}
	return false
}

// BuildMARC21 renders a back-end XML record as binary ISO 2709 driven by
// a per-database field spec list (spec §4.7's MARC21 rule). The `full`
// content short-circuits to a verbatim MARC-XML->MARC21 conversion.
func BuildMARC21(xmlData []byte, specs []config.FieldSpec, charsetHint string) ([]byte, error) {
	for _, spec := range specs {
		if spec.Content == "full" {
			return fullMARCXML(xmlData, charsetHint)
		}
	}

	root, err := parseXML(NormalizeXML(xmlData, charsetHint))
	if err != nil {
		return nil, fmt.Errorf("record: parsing xml: %w", err)
	}

	var fields []*marcField
	findByTag := func(tag string) *marcField {
		for _, f := range fields {
			if f.tag == tag {
				return f
			}
		}
		return nil
	}

	for _, spec := range specs {
		value := strings.TrimSpace(strings.Trim(EvalOne(root, spec.XPath), "\n\r"))
		if value == "" {
			continue
		}
		cs := parseContentSpec(spec.Content)
		if cs.isControl() {
			fields = append(fields, &marcField{tag: cs.tag, control: value, isControl: true})
			continue
		}
		if !cs.hasSubtag {
			continue
		}
		existing := findByTag(cs.tag)
		if existing == nil || existing.hasSubtag(cs.subtag) {
			nf := &marcField{tag: cs.tag, ind1: cs.ind1, ind2: cs.ind2}
			nf.subfields = append(nf.subfields, subfield{code: cs.subtag, val: value})
			fields = append(fields, nf)
			continue
		}
		existing.subfields = append(existing.subfields, subfield{code: cs.subtag, val: value})
	}

	return serializeMARC(fields), nil
}

func serializeMARC(fields []*marcField) []byte {
	var data, dir bytes.Buffer
	for _, f := range fields {
		start := data.Len()
		if f.isControl {
			data.WriteString(f.control)
			data.WriteByte(fieldTerminator)
		} else {
			data.WriteByte(f.ind1)
			data.WriteByte(f.ind2)
			for _, sf := range f.subfields {
				data.WriteByte(subfieldDelim)
				data.WriteByte(sf.code)
				data.WriteString(sf.val)
			}
			data.WriteByte(fieldTerminator)
		}
		length := data.Len() - start
		fmt.Fprintf(&dir, "%s%04d%05d", padTag(f.tag), length, start)
	}
	baseAddr := 24 + dir.Len() + 1
	recLen := baseAddr + data.Len() + 1
	leader := fmt.Sprintf("%05dnam a22%05d z 4500", recLen, baseAddr)

	out := make([]byte, 0, recLen)
	out = append(out, []byte(leader)...)
	out = append(out, dir.Bytes()...)
	out = append(out, fieldTerminator)
	out = append(out, data.Bytes()...)
	out = append(out, recordTerminator)
	return out
}

func padTag(tag string) string {
	if len(tag) >= 3 {
		return tag[:3]
	}
	return strings.Repeat("0", 3-len(tag)) + tag
}

// fullMARCXML re-parses a MARC-XML document (<record><leader/>
// <controlfield tag="..">/<datafield tag=".." ind1=".." ind2="..">
// <subfield code="..">) and emits its control and data fields, in order,
// as binary MARC21 — the `full` short-circuit (spec §4.7, and the
// round-trip law in spec §8: `to_marc21(R)` equals `MARC-XML->MARC21(R)`
// for a full-passthrough field list). The record's <leader> is not
// carried over: serializeMARC writes its own fixed leader.
func fullMARCXML(xmlData []byte, charsetHint string) ([]byte, error) {
	root, err := parseXML(NormalizeXML(xmlData, charsetHint))
	if err != nil {
		return nil, fmt.Errorf("record: parsing marcxml: %w", err)
	}
	recordNode := findDescendant(root, "record")
	if recordNode == nil {
		return nil, fmt.Errorf("record: no <record> element in marcxml")
	}
	var fields []*marcField
	for _, c := range recordNode.children {
		switch c.name {
		case "controlfield":
			fields = append(fields, &marcField{tag: c.attrs["tag"], control: c.text, isControl: true})
		case "datafield":
			f := &marcField{tag: c.attrs["tag"], ind1: indByte(c.attrs["ind1"]), ind2: indByte(c.attrs["ind2"])}
			for _, sc := range c.children {
				if sc.name != "subfield" {
					continue
				}
				code := sc.attrs["code"]
				if code == "" {
					continue
				}
				f.subfields = append(f.subfields, subfield{code: code[0], val: sc.text})
			}
			fields = append(fields, f)
		}
	}
	return serializeMARC(fields), nil
}

func indByte(s string) byte {
	if s == "" {
		return ' '
	}
	return s[0]
}

func findDescendant(n *node, name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
		if found := findDescendant(c, name); found != nil {
			return found
		}
	}
	return nil
}

// PatchExplicitAvailability implements the `option.explicit_availability`
// rule (spec §3/§4.5): add subfield q to every 952 field that lacks one.
func PatchExplicitAvailability(data []byte) []byte {
	fields, leaderLen, err := decomposeMARC(data)
	if err != nil {
		return data
	}
	changed := false
	for _, f := range fields {
		if f.tag != "952" || f.isControl {
			continue
		}
		if !f.hasSubtag('q') {
			f.subfields = append(f.subfields, subfield{code: 'q', val: "1"})
			changed = true
		}
	}
	if !changed {
		return data
	}
	_ = leaderLen
	return serializeMARC(fields)
}

func decomposeMARC(data []byte) ([]*marcField, int, error) {
	if len(data) < 24 {
		return nil, 0, fmt.Errorf("record: marc record too short")
	}
	leader := string(data[:24])
	baseAddr, err := strconv.Atoi(strings.TrimSpace(leader[12:17]))
	if err != nil {
		return nil, 0, fmt.Errorf("record: bad base address: %w", err)
	}
	dirEnd := baseAddr - 1
	if dirEnd > len(data) || dirEnd < 24 {
		return nil, 0, fmt.Errorf("record: bad directory bounds")
	}
	directory := data[24:dirEnd]
	var fields []*marcField
	for i := 0; i+12 <= len(directory); i += 12 {
		entry := directory[i : i+12]
		tag := string(entry[:3])
		length, _ := strconv.Atoi(string(entry[3:7]))
		start, _ := strconv.Atoi(string(entry[7:12]))
		fs, fe := baseAddr+start, baseAddr+start+length
		if fe > len(data) {
			continue
		}
		raw := bytes.TrimSuffix(data[fs:fe], []byte{fieldTerminator})
		if strings.HasPrefix(tag, "00") {
			fields = append(fields, &marcField{tag: tag, control: string(raw), isControl: true})
			continue
		}
		if len(raw) < 2 {
			continue
		}
		f := &marcField{tag: tag, ind1: raw[0], ind2: raw[1]}
		for _, part := range bytes.Split(raw[2:], []byte{subfieldDelim}) {
			if len(part) == 0 {
				continue
			}
			f.subfields = append(f.subfields, subfield{code: part[0], val: string(part[1:])})
		}
		fields = append(fields, f)
	}
	return fields, baseAddr, nil
}

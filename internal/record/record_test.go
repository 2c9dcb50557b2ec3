package record

import (
	"strings"
	"testing"

	"github.com/indexbridge/z3950gateway/internal/config"
)

const sampleXML = `<doc>
  <str name="id">rec-1</str>
  <str name="title">War and Peace</str>
  <str name="author">Tolstoy</str>
</doc>`

func TestBuildMARC21ControlFieldsOnly(t *testing.T) {
	specs := []config.FieldSpec{
		{XPath: "//str[@name='id']", Content: "001"},
	}
	out, err := BuildMARC21([]byte(sampleXML), specs, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields, _, err := decomposeMARC(out)
	if err != nil {
		t.Fatalf("decompose failed: %v", err)
	}
	if len(fields) != 1 {
		t.Fatalf("expected exactly one field, got %d", len(fields))
	}
	if !fields[0].isControl || fields[0].control != "rec-1" {
		t.Errorf("got field %+v", fields[0])
	}
}

func TestBuildMARC21DataFieldGrouping(t *testing.T) {
	specs := []config.FieldSpec{
		{XPath: "//str[@name='title']", Content: "245$a"},
		{XPath: "//str[@name='author']", Content: "245$c"},
	}
	out, err := BuildMARC21([]byte(sampleXML), specs, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields, _, err := decomposeMARC(out)
	if err != nil {
		t.Fatalf("decompose failed: %v", err)
	}
	if len(fields) != 1 {
		t.Fatalf("expected both subfields grouped into one 245 field, got %d fields", len(fields))
	}
	f := fields[0]
	if len(f.subfields) != 2 || f.subfields[0].val != "War and Peace" || f.subfields[1].val != "Tolstoy" {
		t.Errorf("got subfields %+v", f.subfields)
	}
}

func TestBuildMARC21SecondFieldWithSameSubtagStartsNewField(t *testing.T) {
	specs := []config.FieldSpec{
		{XPath: "//str[@name='title']", Content: "650$a"},
		{XPath: "//str[@name='author']", Content: "650$a"},
	}
	out, err := BuildMARC21([]byte(sampleXML), specs, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields, _, err := decomposeMARC(out)
	if err != nil {
		t.Fatalf("decompose failed: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected two separate 650 fields (subtag collision), got %d", len(fields))
	}
}

const sampleMARCXML = `<record>
  <leader>00000nam a2200000 a 4500</leader>
  <controlfield tag="001">rec-1</controlfield>
  <datafield tag="245" ind1="1" ind2="0">
    <subfield code="a">War and Peace</subfield>
  </datafield>
</record>`

func TestBuildMARC21FullShortCircuit(t *testing.T) {
	specs := []config.FieldSpec{{Content: "full"}}
	out, err := BuildMARC21([]byte(sampleMARCXML), specs, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields, _, err := decomposeMARC(out)
	if err != nil {
		t.Fatalf("decompose failed: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].control != "rec-1" {
		t.Errorf("got control field %q", fields[0].control)
	}
	if fields[1].subfields[0].val != "War and Peace" {
		t.Errorf("got datafield subfields %+v", fields[1].subfields)
	}
}

func TestBuildGRS1CollapsesNewlines(t *testing.T) {
	xmlData := `<doc><str name="title">War
and Peace</str></doc>`
	specs := []config.FieldSpec{{XPath: "//str[@name='title']", Content: "245"}}
	out, err := BuildGRS1([]byte(xmlData), specs, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "245 War and Peace\n" {
		t.Errorf("got %q", out)
	}
}

func TestBuildSUTRSNestedBlocks(t *testing.T) {
	out, err := BuildSUTRS([]byte(sampleXML), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "str = rec-1") {
		t.Errorf("expected scalar dump in output, got %q", out)
	}
}

func TestPatchExplicitAvailabilityAddsMissingSubfieldQ(t *testing.T) {
	fields := []*marcField{
		{tag: "952", ind1: ' ', ind2: ' ', subfields: []subfield{{code: 'a', val: "Main"}}},
	}
	data := serializeMARC(fields)
	patched := PatchExplicitAvailability(data)
	got, _, err := decomposeMARC(patched)
	if err != nil {
		t.Fatalf("decompose failed: %v", err)
	}
	if !got[0].hasSubtag('q') {
		t.Errorf("expected subfield q to be added, got %+v", got[0].subfields)
	}
}

func TestPatchExplicitAvailabilityLeavesExistingSubfieldQ(t *testing.T) {
	fields := []*marcField{
		{tag: "952", ind1: ' ', ind2: ' ', subfields: []subfield{{code: 'q', val: "0"}}},
	}
	data := serializeMARC(fields)
	patched := PatchExplicitAvailability(data)
	got, _, err := decomposeMARC(patched)
	if err != nil {
		t.Fatalf("decompose failed: %v", err)
	}
	if len(got[0].subfields) != 1 || got[0].subfields[0].val != "0" {
		t.Errorf("expected existing subfield q untouched, got %+v", got[0].subfields)
	}
}

package record

import (
	"strings"

	"github.com/indexbridge/z3950gateway/internal/config"
)

// BuildGRS1 renders a back-end XML record as GRS-1: one "tag data\n" line
// per field-spec match, with embedded newlines in the matched data
// collapsed to spaces (spec §4.7).
func BuildGRS1(xmlData []byte, specs []config.FieldSpec, charsetHint string) (string, error) {
	root, err := parseXML(NormalizeXML(xmlData, charsetHint))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, spec := range specs {
		for _, v := range Eval(root, spec.XPath) {
			v = collapseNewlines(v)
			if v == "" {
				continue
			}
			b.WriteString(spec.Content)
			b.WriteByte(' ')
			b.WriteString(v)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

func collapseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

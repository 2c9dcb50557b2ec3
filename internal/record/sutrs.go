package record

import "strings"

// BuildSUTRS renders a back-end XML record's element tree as SUTRS: a
// recursive indented dump, "name = value" for scalar (childless)
// elements, braced blocks for nested ones (spec §4.7). A sequence of
// same-named siblings that happens to have exactly one member is dumped
// the same as a plain nested element — there is no separate list syntax
// to unwrap out of.
func BuildSUTRS(xmlData []byte, charsetHint string) (string, error) {
	root, err := parseXML(NormalizeXML(xmlData, charsetHint))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, c := range root.children {
		dumpSUTRS(&b, c, 0)
	}
	return b.String(), nil
}

func dumpSUTRS(b *strings.Builder, n *node, level int) {
	indent := strings.Repeat("\t", level)
	if len(n.children) == 0 {
		b.WriteString(indent)
		b.WriteString(n.name)
		b.WriteString(" = ")
		b.WriteString(strings.TrimSpace(n.text))
		b.WriteByte('\n')
		return
	}
	b.WriteString(indent)
	b.WriteString(n.name)
	b.WriteString(" {\n")
	for _, c := range n.children {
		dumpSUTRS(b, c, level+1)
	}
	b.WriteString(indent)
	b.WriteString("}\n")
}

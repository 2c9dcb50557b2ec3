package record

import (
	"encoding/xml"
	"strings"
)

// node is a minimal parsed-XML tree, built directly from a token stream
// rather than reflecting into Go structs — the field-spec syntax needs to
// walk arbitrary, unknown-shaped back-end XML.
type node struct {
	name     string
	attrs    map[string]string
	children []*node
	text     string
}

func parseXML(data []byte) (*node, error) {
	dec := xml.NewDecoder(strings.NewReader(string(data)))
	root := &node{name: "#root"}
	stack := []*node{root}
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local, attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				n.attrs[a.Name.Local] = a.Value
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			cur := stack[len(stack)-1]
			cur.text += string(t)
		}
	}
	return root, nil
}

// step is one path component: an element-name match (or "*" for any),
// an optional [@attr='value'] predicate, and whether it's reached via a
// descendant search ("//" before it).
type step struct {
	name       string
	attrName   string
	attrValue  string
	hasAttrEq  bool
	descendant bool
}

func parseSteps(xpath string) []step {
	parts := strings.Split(xpath, "/")
	var steps []step
	descendant := false
	for _, p := range parts {
		if p == "" {
			descendant = true
			continue
		}
		s := step{descendant: descendant}
		descendant = false
		if i := strings.Index(p, "["); i >= 0 && strings.HasSuffix(p, "]") {
			s.name = p[:i]
			pred := p[i+1 : len(p)-1]
			pred = strings.TrimPrefix(pred, "@")
			if eq := strings.Index(pred, "="); eq >= 0 {
				s.hasAttrEq = true
				s.attrName = strings.TrimSpace(pred[:eq])
				s.attrValue = strings.Trim(strings.TrimSpace(pred[eq+1:]), `'"`)
			}
		} else {
			s.name = p
		}
		steps = append(steps, s)
	}
	return steps
}

func matches(n *node, s step) bool {
	if s.name != "*" && n.name != s.name {
		return false
	}
	if s.hasAttrEq {
		if n.attrs[s.attrName] != s.attrValue {
			return false
		}
	}
	return true
}

func walk(nodes []*node, steps []step) []*node {
	if len(steps) == 0 {
		return nodes
	}
	s := steps[0]
	var next []*node
	if s.name == "@" || strings.HasPrefix(s.name, "@") {
		// Attribute-only step; handled by the caller via Eval, not here.
		return nodes
	}
	for _, n := range nodes {
		if s.descendant {
			var collect func(*node)
			collect = func(cur *node) {
				for _, c := range cur.children {
					if matches(c, s) {
						next = append(next, c)
					}
					collect(c)
				}
			}
			collect(n)
		} else {
			for _, c := range n.children {
				if matches(c, s) {
					next = append(next, c)
				}
			}
		}
	}
	return walk(next, steps[1:])
}

// Eval evaluates a small XPath subset (child/descendant element steps
// with an optional [@attr='value'] predicate, and a trailing "@attr" for
// attribute extraction) against root and returns matching text or
// attribute values. This is the "xpath" half of a field spec (spec §4.7).
func Eval(root *node, xpath string) []string {
	steps := parseSteps(xpath)
	if len(steps) == 0 {
		return nil
	}
	last := steps[len(steps)-1]
	if strings.HasPrefix(last.name, "@") {
		attrName := strings.TrimPrefix(last.name, "@")
		matched := walk([]*node{root}, steps[:len(steps)-1])
		out := make([]string, 0, len(matched))
		for _, n := range matched {
			if v, ok := n.attrs[attrName]; ok {
				out = append(out, v)
			}
		}
		return out
	}
	matched := walk([]*node{root}, steps)
	out := make([]string, 0, len(matched))
	for _, n := range matched {
		out = append(out, n.text)
	}
	return out
}

// EvalOne is a convenience for the common single-match case, returning
// "" when there is no match.
func EvalOne(root *node, xpath string) string {
	vs := Eval(root, xpath)
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

package ncparse

import "strings"

// Emit renders a Tree back to .ncds source text. Combined with Parse, this
// supports the parser round-trip property: Parse(Emit(t)) must reproduce an
// equivalent tree.
func Emit(t *Tree) string {
	var b strings.Builder
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		b.WriteString(strings.Repeat(" ", depth*4))
		b.WriteString(string(n.Marker))
		b.WriteString(" ")
		b.WriteString(n.Name)
		for _, a := range n.Annotations {
			b.WriteString(" | ")
			switch a.Kind {
			case Syntactical:
				b.WriteString("?{" + a.Name + "}: " + a.Value)
			default:
				if a.Value == "" {
					b.WriteString("%{" + a.Name + "}")
				} else {
					b.WriteString("%{" + a.Name + "}: " + a.Value)
				}
			}
		}
		b.WriteString("\n")
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	visit(t.Root, 0)
	return b.String()
}

package compiler

import (
	"strings"

	"normcode/internal/ncparse"
)

func setAnnotation(n *ncparse.Node, name, value string) {
	for i, a := range n.Annotations {
		if a.Kind == ncparse.Referential && a.Name == name {
			n.Annotations[i].Value = value
			return
		}
	}
	n.Annotations = append(n.Annotations, ncparse.Annotation{Kind: ncparse.Referential, Name: name, Value: value})
}

func hasAnnotation(n *ncparse.Node, name string) bool {
	_, ok := n.Annotation(name)
	return ok
}

func isSemanticOp(kind string) bool {
	return kind == Imperative.String() || kind == Judgement.String()
}

// Recompose is Post-Formalization sub-pass (a) (spec.md §4.4.3): for
// semantic ops, attach the paradigm/faculty wiring annotations. Syntactic
// ops (Assigning/Grouping/Timing/Looping) get nothing attached here.
func Recompose(tree *ncparse.Tree) error {
	tree.Walk(func(n *ncparse.Node) {
		if !n.IsFunctional() || !isSemanticOp(n.SequenceKind) {
			return
		}
		if !hasAnnotation(n, "norm_input") {
			setAnnotation(n, "norm_input", derivedParadigmID(n))
		}
		if !hasAnnotation(n, "v_input_norm") {
			setAnnotation(n, "v_input_norm", "prompt_location")
		}
		if !hasAnnotation(n, "h_input_norm") {
			setAnnotation(n, "h_input_norm", "in-memory")
		}
		if !hasAnnotation(n, "body_faculty") {
			setAnnotation(n, "body_faculty", "default")
		}
	})
	return nil
}

// derivedParadigmID produces a mechanical paradigm id placeholder from a
// functional concept's text, following the h_/v_/c_/o_ naming scheme of
// spec.md §4.5. Real paradigm resolution happens in internal/paradigm's
// loader; this is only the id Recompose can determine without it.
func derivedParadigmID(n *ncparse.Node) string {
	name := strings.Trim(n.Name, "{}<>()")
	name = strings.ReplaceAll(name, "::", "")
	if name == "" {
		name = "generic"
	}
	return "c_" + name + "-o_Literal"
}

// isLeafGroundConcept reports whether n is a leaf value/context concept
// that still needs a provisioning demand attached.
func isLeafGroundConcept(n *ncparse.Node) bool {
	return (n.IsValue() || n.IsContext()) && len(n.Children) == 0
}

// Provision is Post-Formalization sub-pass (b) (spec.md §4.4.3): attach
// demands for ground concepts and, for semantic ops, external template
// paths. These are demands only: no compiler pass, Activation included,
// checks that the paths they name exist.
func Provision(tree *ncparse.Tree) error {
	tree.Walk(func(n *ncparse.Node) {
		if isLeafGroundConcept(n) {
			if hasAnnotation(n, "file_location") || hasAnnotation(n, "literal") {
				return
			}
			signifier := strings.Trim(n.Name, "{}<>()")
			setAnnotation(n, "literal", "%{literal<$% "+signifier+">}")
		}
		if n.IsFunctional() && isSemanticOp(n.SequenceKind) && !hasAnnotation(n, "v_input_provision") {
			setAnnotation(n, "v_input_provision", "templates/"+derivedParadigmID(n)+".tmpl")
		}
	})
	return nil
}

// ReconfirmSyntax is Post-Formalization sub-pass (c) (spec.md §4.4.3):
// attach reference shape metadata and flag invariant loop-state containers.
func ReconfirmSyntax(tree *ncparse.Tree) error {
	tree.Walk(func(n *ncparse.Node) {
		if n.IsFunctional() {
			return
		}
		axes, shape, elem := inferRefMetadata(n)
		setAnnotation(n, "ref_axes", axes)
		setAnnotation(n, "ref_shape", shape)
		setAnnotation(n, "ref_element", elem)

		if n.Parent != nil && n.IsContext() {
			for _, sib := range n.Parent.Children {
				if sib.IsFunctional() && sib.SequenceKind == Looping.String() {
					setAnnotation(n, "is_invariant", "true")
					break
				}
			}
		}
	})
	return nil
}

func inferRefMetadata(n *ncparse.Node) (axes, shape, elem string) {
	switch n.SemanticKind {
	case ncparse.SemanticRelation:
		return "item", "(N,)", "Concrete"
	case ncparse.SemanticProposition:
		return "_none_axis", "(1,)", "Sign"
	default:
		return "_none_axis", "(1,)", "Concrete"
	}
}

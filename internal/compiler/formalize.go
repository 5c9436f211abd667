package compiler

import (
	"strconv"
	"strings"

	"normcode/internal/ncparse"
)

// Formalize is Pass 2 (spec.md §4.4.2). It mutates tree in place, assigning
// a unique FlowIndex and a SequenceKind string to every node, and rejects
// any value concept nested under a functional concept.
func Formalize(tree *ncparse.Tree) error {
	if tree == nil || tree.Root == nil {
		return &PassError{Pass: "Formalize", Node: "<root>", Reason: "empty tree"}
	}
	tree.Root.FlowIndex = "1"
	return formalizeChildren(tree.Root)
}

func formalizeChildren(n *ncparse.Node) error {
	for i, child := range n.Children {
		child.FlowIndex = n.FlowIndex + "." + strconv.Itoa(i+1)

		if child.IsFunctional() {
			if len(child.Children) > 0 {
				return &PassError{Pass: "Formalize", Node: child.FlowIndex, Reason: "value concepts may not nest under a functional concept"}
			}
			kind := classifySequenceKind(child.Name)
			child.SequenceKind = kind.String()
		}

		if err := formalizeChildren(child); err != nil {
			return err
		}
	}
	return nil
}

// classifySequenceKind inspects a functional concept's text per spec.md
// §4.4.2: syntactic operators ($ assigning, & grouping, @ timing, *
// looping) take precedence over the default ::() Imperative / ::<...> or
// <{...}> Judgement forms. Legacy aliases (bare ::() without explicit flow
// markers) are upgraded to their canonical kind here rather than carried
// forward, per the formalizer's mandate to normalize before activation.
func classifySequenceKind(text string) SequenceKind {
	switch {
	case strings.Contains(text, "$"):
		return Assigning
	case strings.Contains(text, "&"):
		return Grouping
	case strings.Contains(text, "@"):
		return Timing
	case strings.Contains(text, "*"):
		return Looping
	case strings.Contains(text, "<{") && strings.Contains(text, "}>"):
		return Judgement
	case strings.Contains(text, "::<"):
		return Judgement
	default:
		// Covers ::() and the "imperative_in_composition" legacy alias:
		// both are normalized to the single canonical Imperative kind.
		return Imperative
	}
}

// assignMarkerOf extracts the Assigning operator character following the
// leading $ in a functional concept's text.
func assignMarkerOf(text string) AssignMarker {
	idx := strings.Index(text, "$")
	if idx < 0 || idx+1 >= len(text) {
		return ""
	}
	for _, m := range []AssignMarker{AssignAlias, AssignLiteral, AssignFirst, AssignAppend, AssignSelect} {
		if strings.HasPrefix(text[idx+1:], string(m)) {
			return m
		}
	}
	return ""
}

// groupMarkerOf extracts the Grouping operator word following the leading &.
func groupMarkerOf(text string) GroupMarker {
	switch {
	case strings.Contains(text, "&in"):
		return GroupIn
	case strings.Contains(text, "&across"):
		return GroupAcross
	default:
		return ""
	}
}

// timingMarkerOf extracts the Timing operator word following the leading @.
func timingMarkerOf(text string) TimingMarker {
	switch {
	case strings.Contains(text, "@if!"):
		return TimingIfBang
	case strings.Contains(text, "@if"):
		return TimingIf
	case strings.Contains(text, "@after"):
		return TimingAfter
	default:
		return ""
	}
}

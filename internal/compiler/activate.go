package compiler

import (
	"strings"

	"normcode/internal/ncparse"
	"normcode/internal/refalgebra"
)

func sanitizeName(name string) string {
	r := strings.NewReplacer("{", "", "}", "", "[", "", "]", "", "<", "", ">", "", "(", "", ")", "", ":", "_", " ", "_", "*", "star")
	out := r.Replace(name)
	if out == "" {
		return "anon"
	}
	return out
}

// Activate is Pass 4 (spec.md §4.4.4). It consumes the fully annotated
// tree and produces the Concept and Inference repositories the
// orchestrator resolves against at run time.
func Activate(tree *ncparse.Tree) (*ConceptRepo, *InferenceRepo, error) {
	concepts := NewConceptRepo()
	inferences := NewInferenceRepo()

	var err error
	tree.Walk(func(n *ncparse.Node) {
		if err != nil {
			return
		}
		id := conceptID(n)
		if _, exists := concepts.Concepts[id]; !exists {
			concepts.Concepts[id] = &Concept{
				ID:           id,
				Name:         n.Name,
				SemanticKind: string(n.SemanticKind),
				IsFunction:   n.IsFunctional(),
			}
		}

		if !n.IsFunctional() {
			return
		}

		wi, buildErr := buildWorkingInterpretation(n)
		if buildErr != nil {
			err = buildErr
			return
		}

		inf := &Inference{
			ID:                    n.FlowIndex,
			FunctionalConceptID:   id,
			SequenceKind:          wi.Kind(),
			WorkingInterpretation: wi,
		}
		if n.Parent != nil {
			inf.OutputConceptID = conceptID(n.Parent)
			for _, sib := range n.Parent.Children {
				if sib == n {
					continue
				}
				sid := conceptID(sib)
				if sib.IsValue() {
					inf.ValueConceptIDs = append(inf.ValueConceptIDs, sid)
				} else if sib.IsContext() {
					inf.ContextConceptIDs = append(inf.ContextConceptIDs, sid)
				}
			}
		}
		inferences.Inferences[n.FlowIndex] = inf
	})
	if err != nil {
		return nil, nil, err
	}
	return concepts, inferences, nil
}

func conceptID(n *ncparse.Node) string {
	prefix := "c-"
	if n.IsFunctional() {
		prefix = "fc-"
	}
	return prefix + sanitizeName(n.Name)
}

func buildWorkingInterpretation(n *ncparse.Node) (WorkingInterpretation, error) {
	switch n.SequenceKind {
	case Imperative.String():
		return buildImperativeWI(n), nil
	case Judgement.String():
		return buildJudgementWI(n), nil
	case Assigning.String():
		return buildAssigningWI(n)
	case Grouping.String():
		return buildGroupingWI(n), nil
	case Timing.String():
		return buildTimingWI(n)
	case Looping.String():
		return buildLoopingWI(n), nil
	default:
		return SimpleWI{}, nil
	}
}

func buildImperativeWI(n *ncparse.Node) ImperativeWI {
	paradigm, _ := n.Annotation("norm_input")
	faculty, _ := n.Annotation("body_faculty")
	order := map[string]int{}
	if n.Parent != nil {
		pos := 1
		for _, sib := range n.Parent.Children {
			if sib == n || !(sib.IsValue() || sib.IsContext()) {
				continue
			}
			order[sib.Name] = pos
			pos++
		}
	}
	return ImperativeWI{
		Paradigm:    paradigm.Value,
		BodyFaculty: faculty.Value,
		ValueOrder:  order,
	}
}

func buildJudgementWI(n *ncparse.Node) JudgementWI {
	base := buildImperativeWI(n)
	target := ""
	if n.Parent != nil {
		for _, sib := range n.Parent.Children {
			if sib != n && sib.IsValue() {
				target = strings.Trim(sib.Name, "{}<>()")
				break
			}
		}
	}
	return JudgementWI{
		ImperativeWI: base,
		AssertionCondition: AssertionCondition{
			Quantifier: "all",
			Target:     target,
			Expected:   true,
		},
	}
}

func buildAssigningWI(n *ncparse.Node) (AssigningWI, error) {
	marker := assignMarkerOf(n.Name)
	if marker == "" {
		return AssigningWI{}, &PassError{Pass: "Activate", Node: n.FlowIndex, Reason: "assigning inference has no recognizable $ marker"}
	}
	wi := AssigningWI{Marker: marker}
	switch marker {
	case AssignLiteral:
		if ann, ok := n.Annotation("face_value"); ok {
			wi.FaceValue = ann.Value
		}
		if ann, ok := n.Annotation("axis_names"); ok {
			wi.AxisNames = strings.Split(ann.Value, ",")
		}
	case AssignFirst:
		if ann, ok := n.Annotation("assign_sources"); ok {
			wi.AssignSource = strings.Split(ann.Value, ",")
		} else if n.Parent != nil && len(n.Parent.Children) > 1 {
			wi.AssignSource = n.Parent.Children[1].Name
		}
	case AssignAppend:
		if ann, ok := n.Annotation("assign_source"); ok {
			wi.AssignSource = ann.Value
		}
		if ann, ok := n.Annotation("assign_destination"); ok {
			wi.AssignDestination = ann.Value
		}
		if ann, ok := n.Annotation("by_axes"); ok {
			wi.ByAxes = strings.Split(ann.Value, ",")
		}
	case AssignSelect:
		if ann, ok := n.Annotation("selector"); ok {
			wi.Selector = ann.Value
		}
	}
	return wi, nil
}

func buildGroupingWI(n *ncparse.Node) GroupingWI {
	wi := GroupingWI{Marker: groupMarkerOf(n.Name), ByAxes: map[string][]refalgebra.Axis{}}

	if n.Parent != nil {
		for _, sib := range n.Parent.Children {
			if sib == n || !(sib.IsValue() || sib.IsContext()) {
				continue
			}
			wi.Sources = append(wi.Sources, sib.Name)
			if ann, ok := sib.Annotation("by_axes"); ok {
				var axes []refalgebra.Axis
				for _, a := range strings.Split(ann.Value, ",") {
					axes = append(axes, refalgebra.Axis(a))
				}
				wi.ByAxes[sib.Name] = axes
			}
		}
	}

	// option precedence: per-concept %{collapse_in_grouping} > functional
	// %{by_axes} > inline %-[...] > default _none_axis is resolved by
	// internal/sequence's GR stage at run time; Activation only records
	// create_axis from the explicit %+(name) annotation, per spec.md §4.4.4.
	if ann, ok := n.Annotation("create_axis"); ok && ann.Value != "" {
		v := ann.Value
		wi.CreateAxis = &v
	}
	return wi
}

func buildTimingWI(n *ncparse.Node) (TimingWI, error) {
	marker := timingMarkerOf(n.Name)
	if marker == "" {
		return TimingWI{}, &PassError{Pass: "Activate", Node: n.FlowIndex, Reason: "timing inference has no recognizable @ marker"}
	}
	condition := ""
	if ann, ok := n.Annotation("condition"); ok {
		condition = ann.Value
	} else if n.Parent != nil {
		for _, sib := range n.Parent.Children {
			if sib != n && (sib.IsValue() || sib.IsContext()) {
				condition = strings.Trim(sib.Name, "{}<>()")
				break
			}
		}
	}
	return TimingWI{Marker: marker, Condition: condition}, nil
}

func buildLoopingWI(n *ncparse.Node) LoopingWI {
	wi := LoopingWI{InLoopConcept: map[string]int{}}
	if ann, ok := n.Annotation("loop_index"); ok {
		wi.LoopIndex = ann.Value
	}
	if ann, ok := n.Annotation("group_base"); ok {
		wi.GroupBase = ann.Value
	}
	if n.Parent != nil && len(n.Parent.Children) > 1 {
		base := n.Parent.Children[1]
		wi.LoopBaseConcept = base.Name
		wi.CurrentLoopBaseConcept = base.Name
		wi.ConceptToInfer = n.Parent.Name
		wi.InLoopConcept[base.Name] = 0
	}
	return wi
}

package sequence

import (
	"context"
	"fmt"

	"normcode/internal/compiler"
	"normcode/internal/refalgebra"
)

// assigningSequence implements AR: spec.md §4.4.4's five marker-specific
// rewrites of a Reference, with no perception and no paradigm involved —
// Assigning sequences only ever move data the run already has in hand.
type assigningSequence struct{}

func (assigningSequence) Run(ctx context.Context, rc RunContext) (Outcome, error) {
	wi, ok := rc.Inference.WorkingInterpretation.(compiler.AssigningWI)
	if !ok {
		return Outcome{}, fmt.Errorf("assigning: inference %s has no AssigningWI", rc.Inference.ID)
	}
	switch wi.Marker {
	case compiler.AssignAlias:
		return assignAlias(rc)
	case compiler.AssignLiteral:
		return assignLiteral(wi)
	case compiler.AssignFirst:
		return assignFirst(rc, wi)
	case compiler.AssignAppend:
		return assignAppend(rc, wi)
	case compiler.AssignSelect:
		return assignSelect(rc, wi)
	default:
		return Outcome{}, fmt.Errorf("assigning: unknown marker %q", wi.Marker)
	}
}

// assignAlias ("=") passes a single named input Reference through
// unchanged, the Copy/Set AR case spec.md §4.4.4 names "alias: no-op on
// the payload, rebinds only the owning concept."
func assignAlias(rc RunContext) (Outcome, error) {
	if len(rc.Inputs) != 1 {
		return Outcome{}, fmt.Errorf("assigning: alias marker expects exactly one input, got %d", len(rc.Inputs))
	}
	for _, ref := range rc.Inputs {
		return Outcome{Output: refalgebra.Copy(ref)}, nil
	}
	return Outcome{}, nil
}

// assignLiteral ("%") wraps FaceValue as-written into a Reference shaped
// by AxisNames (each sized 1), or a bare singleton when AxisNames is
// empty.
func assignLiteral(wi compiler.AssigningWI) (Outcome, error) {
	if len(wi.AxisNames) == 0 {
		return Outcome{Output: refalgebra.Singleton(refalgebra.ConcreteElement(wi.FaceValue))}, nil
	}
	axes := make([]refalgebra.Axis, len(wi.AxisNames))
	shape := make(refalgebra.Shape, len(wi.AxisNames))
	for i, a := range wi.AxisNames {
		axes[i] = refalgebra.Axis(a)
		shape[i] = 1
	}
	ref, err := refalgebra.New(axes, shape)
	if err != nil {
		return Outcome{}, err
	}
	idx := make(map[refalgebra.Axis]int, len(axes))
	for _, a := range axes {
		idx[a] = 0
	}
	if err := refalgebra.Set(ref, refalgebra.ConcreteElement(wi.FaceValue), idx); err != nil {
		return Outcome{}, err
	}
	return Outcome{Output: ref}, nil
}

func sourceNames(src interface{}) ([]string, error) {
	switch v := src.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	default:
		return nil, fmt.Errorf("assigning: unsupported AssignSource type %T", src)
	}
}

// assignFirst (".") takes the all-zero-index element of the single named
// source Reference, the "first" projection spec.md §4.4.4 describes.
func assignFirst(rc RunContext, wi compiler.AssigningWI) (Outcome, error) {
	names, err := sourceNames(wi.AssignSource)
	if err != nil {
		return Outcome{}, err
	}
	if len(names) != 1 {
		return Outcome{}, fmt.Errorf("assigning: first marker expects exactly one source, got %d", len(names))
	}
	ref, ok := rc.Inputs[names[0]]
	if !ok {
		return Outcome{}, fmt.Errorf("assigning: unknown source %q", names[0])
	}
	e, err := refalgebra.Get(ref, map[refalgebra.Axis]int{})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Output: refalgebra.Singleton(e)}, nil
}

// assignAppend ("+") appends every named source onto AssignDestination
// along ByAxes[0] (NoneAxis when ByAxes is empty), in source order, via
// the total Append operation.
func assignAppend(rc RunContext, wi compiler.AssigningWI) (Outcome, error) {
	names, err := sourceNames(wi.AssignSource)
	if err != nil {
		return Outcome{}, err
	}
	dest, ok := rc.Inputs[wi.AssignDestination]
	if !ok {
		return Outcome{}, fmt.Errorf("assigning: unknown destination %q", wi.AssignDestination)
	}
	result := refalgebra.Copy(dest)
	for _, name := range names {
		src, ok := rc.Inputs[name]
		if !ok {
			return Outcome{}, fmt.Errorf("assigning: unknown source %q", name)
		}
		axis := refalgebra.NoneAxis
		if len(wi.ByAxes) > 0 {
			axis = refalgebra.Axis(wi.ByAxes[0])
		}
		result, err = refalgebra.Append(result, src, axis)
		if err != nil {
			return Outcome{}, err
		}
	}
	return Outcome{Output: result}, nil
}

// assignSelect ("-") projects the source named by Selector out of the
// single input Reference via Slice, collapsing every other axis.
func assignSelect(rc RunContext, wi compiler.AssigningWI) (Outcome, error) {
	if len(rc.Inputs) != 1 {
		return Outcome{}, fmt.Errorf("assigning: select marker expects exactly one input, got %d", len(rc.Inputs))
	}
	var ref *refalgebra.Reference
	for _, r := range rc.Inputs {
		ref = r
	}
	keep := []refalgebra.Axis{refalgebra.Axis(wi.Selector)}
	sliced, err := refalgebra.Slice(ref, keep)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Output: sliced}, nil
}

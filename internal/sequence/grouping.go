package sequence

import (
	"context"
	"fmt"

	"normcode/internal/compiler"
	"normcode/internal/refalgebra"
)

// groupingSequence implements GR: spec.md §8's grouping shape law is that
// the output shares exactly the axes named in ByAxes plus, when CreateAxis
// is set, one new axis sized len(Sources).
type groupingSequence struct{}

func (groupingSequence) Run(ctx context.Context, rc RunContext) (Outcome, error) {
	wi, ok := rc.Inference.WorkingInterpretation.(compiler.GroupingWI)
	if !ok {
		return Outcome{}, fmt.Errorf("grouping: inference %s has no GroupingWI", rc.Inference.ID)
	}

	refs := make([]*refalgebra.Reference, 0, len(wi.Sources))
	for _, name := range wi.Sources {
		ref, ok := rc.Inputs[name]
		if !ok {
			return Outcome{}, fmt.Errorf("grouping: unknown source %q", name)
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return Outcome{}, fmt.Errorf("grouping: no sources named")
	}

	grouped, err := refalgebra.CrossProduct(refs)
	if err != nil {
		return Outcome{}, err
	}

	keep := byAxesKeep(wi)
	if len(keep) > 0 {
		grouped, err = refalgebra.Slice(grouped, keep)
		if err != nil {
			return Outcome{}, err
		}
	}

	if wi.CreateAxis != nil {
		grouped, err = stackAlongNewAxis(refs, refalgebra.Axis(*wi.CreateAxis))
		if err != nil {
			return Outcome{}, err
		}
	}

	return Outcome{Output: grouped}, nil
}

// byAxesKeep flattens wi.ByAxes (option precedence "in" over "across"
// keeps the union of every named axis list) into the axis set Slice keeps.
func byAxesKeep(wi compiler.GroupingWI) []refalgebra.Axis {
	seen := map[refalgebra.Axis]bool{}
	var keep []refalgebra.Axis
	for _, list := range wi.ByAxes {
		for _, a := range list {
			if !seen[a] {
				seen[a] = true
				keep = append(keep, a)
			}
		}
	}
	return keep
}

// stackAlongNewAxis realizes CreateAxis: the grouping's sources, already
// cross-producted above to check shape compatibility, are restacked along
// a brand-new leading axis named by CreateAxis via Join, and the sources'
// degenerate NoneAxis is then collapsed away.
func stackAlongNewAxis(refs []*refalgebra.Reference, axis refalgebra.Axis) (*refalgebra.Reference, error) {
	joined, err := refalgebra.Join(refs, axis)
	if err != nil {
		return nil, err
	}
	keep := []refalgebra.Axis{axis}
	for _, a := range joined.Axes[1:] {
		if a != refalgebra.NoneAxis {
			keep = append(keep, a)
		}
	}
	if len(keep) == len(joined.Axes) {
		return joined, nil
	}
	return refalgebra.Slice(joined, keep)
}

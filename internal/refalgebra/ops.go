package refalgebra

import "fmt"

// Get projects a partial index onto a Reference and returns the element at
// that position. Axes absent from idx are treated as projected to index 0
// (this is exact for size-1 axes and is the chosen broadcast rule for
// larger ones, matching spec.md §4.1's "missing axes project/broadcast").
func Get(r *Reference, idx map[Axis]int) (Element, error) {
	if err := r.validateIndices(idx); err != nil {
		return Element{}, err
	}
	coords := make([]int, len(r.Axes))
	for i, a := range r.Axes {
		if v, ok := idx[a]; ok {
			coords[i] = v
		}
	}
	return r.Elements[r.flatIndex(coords)], nil
}

// Set mutates the element at idx in place. The shape must already
// accommodate idx; Set never grows a Reference (use Append for that).
func Set(r *Reference, value Element, idx map[Axis]int) error {
	if err := r.validateIndices(idx); err != nil {
		return err
	}
	coords := make([]int, len(r.Axes))
	for i, a := range r.Axes {
		if v, ok := idx[a]; ok {
			coords[i] = v
		}
	}
	r.Elements[r.flatIndex(coords)] = value
	return nil
}

// Copy returns a deep, independent clone of r.
func Copy(r *Reference) *Reference {
	out := &Reference{
		Axes:     append([]Axis(nil), r.Axes...),
		Shape:    append(Shape(nil), r.Shape...),
		Elements: append([]Element(nil), r.Elements...),
	}
	return out
}

// Slice restricts r to the named axes. Every collapsed axis (one not in
// keep) must have size 1 or Slice fails with ShapeError. An empty keep
// list yields a shape-(1,) Reference on NoneAxis whose single element
// wraps the entire original Reference.
func Slice(r *Reference, keep []Axis) (*Reference, error) {
	if len(keep) == 0 {
		return Singleton(ConcreteElement(Copy(r))), nil
	}
	keepPos := make([]int, len(keep))
	keepShape := make(Shape, len(keep))
	for i, a := range keep {
		pos := r.axisIndex(a)
		if pos < 0 {
			return nil, &ShapeError{Reason: fmt.Sprintf("slice: unknown axis %q", a)}
		}
		keepPos[i] = pos
		keepShape[i] = r.Shape[pos]
	}
	for i, a := range r.Axes {
		collapsed := true
		for _, k := range keep {
			if k == a {
				collapsed = false
				break
			}
		}
		if collapsed && r.Shape[i] != 1 {
			return nil, &ShapeError{Reason: fmt.Sprintf("slice: collapsed axis %q has size %d, want 1", a, r.Shape[i])}
		}
	}

	out, err := New(keep, keepShape)
	if err != nil {
		return nil, err
	}
	total := size(keepShape)
	fullCoords := make([]int, len(r.Axes))
	for flat := 0; flat < total; flat++ {
		rem := flat
		outCoords := make([]int, len(keep))
		for i := len(keep) - 1; i >= 0; i-- {
			outCoords[i] = rem % keepShape[i]
			rem /= keepShape[i]
		}
		for i, pos := range keepPos {
			fullCoords[pos] = outCoords[i]
		}
		out.Elements[flat] = r.Elements[r.flatIndex(fullCoords)]
	}
	return out, nil
}

func axisSet(axes []Axis) map[Axis]bool {
	m := make(map[Axis]bool, len(axes))
	for _, a := range axes {
		m[a] = true
	}
	return m
}

func hasAxis(axes []Axis, a Axis) bool {
	for _, x := range axes {
		if x == a {
			return true
		}
	}
	return false
}

// Append implements the three patterns of spec.md §4.1:
// (a) both refs have by_axis: target axis grows, elements aligned on shared axes.
// (b) only target has by_axis: other is broadcast in as the new trailing slice.
// (c) target lacks by_axis: a new axis is created and other is broadcast across it.
func Append(target, other *Reference, byAxis Axis) (*Reference, error) {
	targetHas := hasAxis(target.Axes, byAxis)
	otherHas := hasAxis(other.Axes, byAxis)

	switch {
	case targetHas && otherHas:
		return appendGrow(target, other, byAxis)
	case targetHas && !otherHas:
		return appendBroadcastSlice(target, other, byAxis)
	default:
		return appendNewAxis(target, other, byAxis)
	}
}

func appendGrow(target, other *Reference, byAxis Axis) (*Reference, error) {
	tPos := target.axisIndex(byAxis)
	oPos := other.axisIndex(byAxis)
	if len(target.Axes) != len(other.Axes) {
		return nil, &AxisMismatch{Reason: "append: axis sets differ in length"}
	}
	for i, a := range target.Axes {
		if a == byAxis {
			continue
		}
		op := other.axisIndex(a)
		if op < 0 {
			return nil, &AxisMismatch{Reason: fmt.Sprintf("append: other is missing shared axis %q", a)}
		}
		if target.Shape[i] != other.Shape[op] {
			return nil, &AxisMismatch{Reason: fmt.Sprintf("append: axis %q size mismatch %d != %d", a, target.Shape[i], other.Shape[op])}
		}
	}

	newShape := append(Shape(nil), target.Shape...)
	newShape[tPos] = target.Shape[tPos] + other.Shape[oPos]
	out, err := New(target.Axes, newShape)
	if err != nil {
		return nil, err
	}

	n := size(newShape)
	for flat := 0; flat < n; flat++ {
		coords := unflatten(flat, newShape)
		if coords[tPos] < target.Shape[tPos] {
			srcCoords := append([]int(nil), coords...)
			out.Elements[flat] = target.Elements[target.flatIndex(srcCoords)]
		} else {
			srcCoords := make([]int, len(other.Axes))
			for i, a := range target.Axes {
				op := other.axisIndex(a)
				if a == byAxis {
					srcCoords[op] = coords[i] - target.Shape[tPos]
				} else {
					srcCoords[op] = coords[i]
				}
			}
			out.Elements[flat] = other.Elements[other.flatIndex(srcCoords)]
		}
	}
	return out, nil
}

func appendBroadcastSlice(target, other *Reference, byAxis Axis) (*Reference, error) {
	tPos := target.axisIndex(byAxis)
	otherIsBroadcastSingleton := len(other.Axes) == 1 && other.Axes[0] == NoneAxis && other.Shape[0] == 1

	if !otherIsBroadcastSingleton {
		for i, a := range target.Axes {
			if a == byAxis {
				continue
			}
			op := other.axisIndex(a)
			if op < 0 {
				return nil, &AxisMismatch{Reason: fmt.Sprintf("append: other is missing axis %q required to form the new slice", a)}
			}
			if target.Shape[i] != other.Shape[op] {
				return nil, &AxisMismatch{Reason: fmt.Sprintf("append: axis %q size mismatch %d != %d", a, target.Shape[i], other.Shape[op])}
			}
		}
	}

	newShape := append(Shape(nil), target.Shape...)
	newShape[tPos]++
	out, err := New(target.Axes, newShape)
	if err != nil {
		return nil, err
	}

	n := size(newShape)
	for flat := 0; flat < n; flat++ {
		coords := unflatten(flat, newShape)
		if coords[tPos] < target.Shape[tPos] {
			out.Elements[flat] = target.Elements[target.flatIndex(coords)]
			continue
		}
		if otherIsBroadcastSingleton {
			out.Elements[flat] = other.Elements[0]
			continue
		}
		srcCoords := make([]int, len(other.Axes))
		for i, a := range target.Axes {
			if a == byAxis {
				continue
			}
			srcCoords[other.axisIndex(a)] = coords[i]
		}
		out.Elements[flat] = other.Elements[other.flatIndex(srcCoords)]
	}
	return out, nil
}

func appendNewAxis(target, other *Reference, byAxis Axis) (*Reference, error) {
	otherHas := hasAxis(other.Axes, byAxis)
	newLen := 1
	if otherHas {
		newLen = other.Shape[other.axisIndex(byAxis)]
	}

	outAxes := append(append([]Axis(nil), target.Axes...), byAxis)
	outShape := append(append(Shape(nil), target.Shape...), newLen)
	out, err := New(outAxes, outShape)
	if err != nil {
		return nil, err
	}

	n := size(outShape)
	newPos := len(outAxes) - 1
	for flat := 0; flat < n; flat++ {
		coords := unflatten(flat, outShape)
		otherCoords := make([]int, len(other.Axes))
		ok := true
		for i, a := range other.Axes {
			if a == byAxis {
				otherCoords[i] = coords[newPos]
				continue
			}
			pos := -1
			for j, ta := range target.Axes {
				if ta == a {
					pos = j
					break
				}
			}
			if pos < 0 {
				ok = false
				break
			}
			otherCoords[i] = coords[pos]
		}
		if !ok {
			out.Elements[flat] = SkipElement()
			continue
		}
		out.Elements[flat] = other.Elements[other.flatIndex(otherCoords)]
	}
	return out, nil
}

func unflatten(flat int, shape Shape) []int {
	coords := make([]int, len(shape))
	rem := flat
	for i := len(shape) - 1; i >= 0; i-- {
		coords[i] = rem % shape[i]
		rem /= shape[i]
	}
	return coords
}

// CrossProduct aligns refs on their shared axes (which must match in size)
// and takes the union of non-shared axes. Every output element is the
// ordered list of each input's element at the projected position, or Skip
// if any projected element is Skip.
func CrossProduct(refs []*Reference) (*Reference, error) {
	if len(refs) == 0 {
		return nil, &AxisMismatch{Reason: "cross_product: no inputs"}
	}
	counts := map[Axis]int{}
	sizes := map[Axis]int{}
	var order []Axis
	for _, r := range refs {
		for i, a := range r.Axes {
			if counts[a] == 0 {
				order = append(order, a)
			}
			if existing, ok := sizes[a]; ok && existing != r.Shape[i] {
				return nil, &AxisMismatch{Reason: fmt.Sprintf("cross_product: axis %q size mismatch %d != %d", a, existing, r.Shape[i])}
			}
			sizes[a] = r.Shape[i]
			counts[a]++
		}
	}

	var outAxes []Axis
	var outShape Shape
	for _, a := range order {
		if counts[a] > 1 {
			outAxes = append(outAxes, a)
			outShape = append(outShape, sizes[a])
		}
	}
	for _, a := range order {
		if counts[a] == 1 {
			outAxes = append(outAxes, a)
			outShape = append(outShape, sizes[a])
		}
	}

	out, err := New(outAxes, outShape)
	if err != nil {
		return nil, err
	}
	n := size(outShape)
	for flat := 0; flat < n; flat++ {
		coords := unflatten(flat, outShape)
		coordOf := make(map[Axis]int, len(outAxes))
		for i, a := range outAxes {
			coordOf[a] = coords[i]
		}
		list := make(List, len(refs))
		anySkip := false
		for i, r := range refs {
			idx := make(map[Axis]int, len(r.Axes))
			for _, a := range r.Axes {
				idx[a] = coordOf[a]
			}
			e, err := Get(r, idx)
			if err != nil {
				return nil, err
			}
			if e.IsSkip() {
				anySkip = true
			}
			list[i] = e
		}
		if anySkip {
			out.Elements[flat] = SkipElement()
		} else {
			out.Elements[flat] = ConcreteElement(list)
		}
	}
	return out, nil
}

// Join requires all inputs to share identical axes and shape, and stacks
// them along a new axis prepended at position 0.
func Join(refs []*Reference, newAxis Axis) (*Reference, error) {
	if len(refs) == 0 {
		return nil, &AxisMismatch{Reason: "join: no inputs"}
	}
	first := refs[0]
	for _, r := range refs[1:] {
		if len(r.Axes) != len(first.Axes) {
			return nil, &AxisMismatch{Reason: "join: axis count mismatch"}
		}
		for i := range first.Axes {
			if r.Axes[i] != first.Axes[i] || r.Shape[i] != first.Shape[i] {
				return nil, &AxisMismatch{Reason: fmt.Sprintf("join: inputs disagree on axis %q", first.Axes[i])}
			}
		}
	}

	outAxes := append([]Axis{newAxis}, first.Axes...)
	outShape := append(Shape{len(refs)}, first.Shape...)
	out, err := New(outAxes, outShape)
	if err != nil {
		return nil, err
	}
	perRef := size(first.Shape)
	for k, r := range refs {
		copy(out.Elements[k*perRef:(k+1)*perRef], r.Elements)
	}
	return out, nil
}

// OpFunc is a unary function applied by CrossAction. It may return a
// []interface{} to signal a list result, which CrossAction expands along
// resultAxis.
type OpFunc func(val interface{}) (interface{}, error)

// CrossAction applies every function in funcsRef to every value in valsRef,
// producing the Cartesian product over both References' own axes. If any
// invocation returns a []interface{}, resultAxis (required in that case)
// is prepended to the output axes with that list's length.
func CrossAction(funcsRef, valsRef *Reference, resultAxis Axis) (*Reference, error) {
	outAxes := append(append([]Axis(nil), funcsRef.Axes...), valsRef.Axes...)
	outShape := append(append(Shape(nil), funcsRef.Shape...), valsRef.Shape...)
	base, err := New(outAxes, outShape)
	if err != nil {
		return nil, err
	}

	n := size(outShape)
	results := make([]interface{}, n)
	skip := make([]bool, n)
	listLen := -1

	for flat := 0; flat < n; flat++ {
		coords := unflatten(flat, outShape)
		fCoords := coords[:len(funcsRef.Axes)]
		vCoords := coords[len(funcsRef.Axes):]
		fElem := funcsRef.Elements[funcsRef.flatIndex(fCoords)]
		vElem := valsRef.Elements[valsRef.flatIndex(vCoords)]
		if fElem.IsSkip() || vElem.IsSkip() {
			skip[flat] = true
			continue
		}
		fnVal, ok := fElem.Value()
		if !ok {
			return nil, &ShapeError{Reason: "cross_action: function element is not a concrete OpFunc"}
		}
		fn, ok := fnVal.(OpFunc)
		if !ok {
			return nil, &ShapeError{Reason: "cross_action: function element does not hold an OpFunc"}
		}
		val, hasVal := vElem.Value()
		if !hasVal {
			return nil, &ShapeError{Reason: "cross_action: value element is unmaterialized (still a Sign)"}
		}
		res, err := fn(val)
		if err != nil {
			return nil, err
		}
		if list, ok := res.([]interface{}); ok {
			if listLen == -1 {
				listLen = len(list)
			} else if listLen != len(list) {
				return nil, &ShapeError{Reason: "cross_action: function results have inconsistent list lengths"}
			}
		}
		results[flat] = res
	}

	if listLen == -1 {
		for flat := 0; flat < n; flat++ {
			if skip[flat] {
				base.Elements[flat] = SkipElement()
			} else {
				base.Elements[flat] = ConcreteElement(results[flat])
			}
		}
		return base, nil
	}

	if resultAxis == "" {
		return nil, &ShapeError{Reason: "cross_action: function returned a list but no resultAxis was given"}
	}
	finalAxes := append([]Axis{resultAxis}, outAxes...)
	finalShape := append(Shape{listLen}, outShape...)
	out, err := New(finalAxes, finalShape)
	if err != nil {
		return nil, err
	}
	for flat := 0; flat < n; flat++ {
		for k := 0; k < listLen; k++ {
			dst := k*n + flat
			if skip[flat] {
				out.Elements[dst] = SkipElement()
				continue
			}
			list, _ := results[flat].([]interface{})
			if list == nil {
				out.Elements[dst] = ConcreteElement(results[flat])
				continue
			}
			out.Elements[dst] = ConcreteElement(list[k])
		}
	}
	return out, nil
}

// ElementFunc combines the values at one aligned coordinate across every
// input Reference. idx is non-nil only when index_awareness is requested.
type ElementFunc func(values []interface{}, idx map[Axis]int) (interface{}, error)

// ElementAction applies fn element-wise over refs, which must all share
// identical axes and shape.
func ElementAction(fn ElementFunc, refs []*Reference, indexAwareness bool) (*Reference, error) {
	if len(refs) == 0 {
		return nil, &AxisMismatch{Reason: "element_action: no inputs"}
	}
	first := refs[0]
	for _, r := range refs[1:] {
		if len(r.Axes) != len(first.Axes) {
			return nil, &AxisMismatch{Reason: "element_action: axis count mismatch"}
		}
		for i := range first.Axes {
			if r.Axes[i] != first.Axes[i] || r.Shape[i] != first.Shape[i] {
				return nil, &AxisMismatch{Reason: fmt.Sprintf("element_action: inputs disagree on axis %q", first.Axes[i])}
			}
		}
	}

	out, err := New(first.Axes, first.Shape)
	if err != nil {
		return nil, err
	}
	n := size(first.Shape)
	for flat := 0; flat < n; flat++ {
		anySkip := false
		values := make([]interface{}, len(refs))
		for i, r := range refs {
			e := r.Elements[flat]
			if e.IsSkip() {
				anySkip = true
				break
			}
			v, ok := e.Value()
			if !ok {
				return nil, &ShapeError{Reason: "element_action: element is unmaterialized (still a Sign)"}
			}
			values[i] = v
		}
		if anySkip {
			out.Elements[flat] = SkipElement()
			continue
		}
		var idx map[Axis]int
		if indexAwareness {
			idx = make(map[Axis]int, len(first.Axes))
			coords := unflatten(flat, first.Shape)
			for i, a := range first.Axes {
				idx[a] = coords[i]
			}
		}
		res, err := fn(values, idx)
		if err != nil {
			return nil, err
		}
		out.Elements[flat] = ConcreteElement(res)
	}
	return out, nil
}

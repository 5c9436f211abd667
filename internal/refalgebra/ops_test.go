package refalgebra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNew(t *testing.T, axes []Axis, shape Shape) *Reference {
	t.Helper()
	r, err := New(axes, shape)
	require.NoError(t, err)
	return r
}

func TestGetSetRoundTrip(t *testing.T) {
	r := mustNew(t, []Axis{"digit"}, Shape{3})
	require.NoError(t, Set(r, ConcreteElement(7), map[Axis]int{"digit": 1}))

	e, err := Get(r, map[Axis]int{"digit": 1})
	require.NoError(t, err)
	v, ok := e.Value()
	require.True(t, ok)
	assert.Equal(t, 7, v)

	e0, err := Get(r, map[Axis]int{"digit": 0})
	require.NoError(t, err)
	assert.True(t, e0.IsSkip())
}

func TestGetMissingAxisProjectsToZero(t *testing.T) {
	r := mustNew(t, []Axis{"digit"}, Shape{1})
	require.NoError(t, Set(r, ConcreteElement(9), map[Axis]int{"digit": 0}))

	e, err := Get(r, map[Axis]int{})
	require.NoError(t, err)
	v, _ := e.Value()
	assert.Equal(t, 9, v)
}

func TestGetUnknownAxisIsShapeError(t *testing.T) {
	r := mustNew(t, []Axis{"digit"}, Shape{3})
	_, err := Get(r, map[Axis]int{"bogus": 0})
	var shapeErr *ShapeError
	assert.ErrorAs(t, err, &shapeErr)
}

func TestCopyIsIndependent(t *testing.T) {
	r := mustNew(t, []Axis{"digit"}, Shape{2})
	require.NoError(t, Set(r, ConcreteElement(1), map[Axis]int{"digit": 0}))

	c := Copy(r)
	require.NoError(t, Set(c, ConcreteElement(99), map[Axis]int{"digit": 0}))

	orig, _ := Get(r, map[Axis]int{"digit": 0})
	cp, _ := Get(c, map[Axis]int{"digit": 0})
	v1, _ := orig.Value()
	v2, _ := cp.Value()
	assert.Equal(t, 1, v1)
	assert.Equal(t, 99, v2)
}

func TestSliceCollapsesDegenerateAxes(t *testing.T) {
	r := mustNew(t, []Axis{"row", "col"}, Shape{2, 1})
	require.NoError(t, Set(r, ConcreteElement("a"), map[Axis]int{"row": 0, "col": 0}))
	require.NoError(t, Set(r, ConcreteElement("b"), map[Axis]int{"row": 1, "col": 0}))

	sliced, err := Slice(r, []Axis{"row"})
	require.NoError(t, err)
	assert.Equal(t, Shape{2}, sliced.Shape)

	e, _ := Get(sliced, map[Axis]int{"row": 1})
	v, _ := e.Value()
	assert.Equal(t, "b", v)
}

func TestSliceNonDegenerateCollapseFails(t *testing.T) {
	r := mustNew(t, []Axis{"row", "col"}, Shape{2, 2})
	_, err := Slice(r, []Axis{"row"})
	var shapeErr *ShapeError
	assert.ErrorAs(t, err, &shapeErr)
}

func TestSliceEmptyKeepWrapsWholeReference(t *testing.T) {
	r := mustNew(t, []Axis{"digit"}, Shape{2})
	wrapped, err := Slice(r, nil)
	require.NoError(t, err)
	assert.Equal(t, Shape{1}, wrapped.Shape)
	assert.Equal(t, []Axis{NoneAxis}, wrapped.Axes)

	v, ok := wrapped.Elements[0].Value()
	require.True(t, ok)
	inner, ok := v.(*Reference)
	require.True(t, ok)
	assert.Equal(t, r.Shape, inner.Shape)
}

func TestAppendGrowBothHaveAxis(t *testing.T) {
	a := mustNew(t, []Axis{"digit"}, Shape{2})
	require.NoError(t, Set(a, ConcreteElement(1), map[Axis]int{"digit": 0}))
	require.NoError(t, Set(a, ConcreteElement(2), map[Axis]int{"digit": 1}))

	b := mustNew(t, []Axis{"digit"}, Shape{1})
	require.NoError(t, Set(b, ConcreteElement(3), map[Axis]int{"digit": 0}))

	out, err := Append(a, b, "digit")
	require.NoError(t, err)
	assert.Equal(t, Shape{3}, out.Shape)

	for i, want := range []int{1, 2, 3} {
		e, err := Get(out, map[Axis]int{"digit": i})
		require.NoError(t, err)
		v, _ := e.Value()
		assert.Equal(t, want, v)
	}
}

func TestAppendBroadcastSliceOnlyTargetHasAxis(t *testing.T) {
	target := mustNew(t, []Axis{"digit"}, Shape{1})
	require.NoError(t, Set(target, ConcreteElement(1), map[Axis]int{"digit": 0}))

	other := Singleton(ConcreteElement(5))

	out, err := Append(target, other, "digit")
	require.NoError(t, err)
	assert.Equal(t, Shape{2}, out.Shape)

	e0, _ := Get(out, map[Axis]int{"digit": 0})
	e1, _ := Get(out, map[Axis]int{"digit": 1})
	v0, _ := e0.Value()
	v1, _ := e1.Value()
	assert.Equal(t, 1, v0)
	assert.Equal(t, 5, v1)
}

func TestAppendNewAxisWhenTargetLacksIt(t *testing.T) {
	target := mustNew(t, []Axis{"row"}, Shape{1})
	require.NoError(t, Set(target, ConcreteElement("r0"), map[Axis]int{"row": 0}))

	other := mustNew(t, []Axis{"col"}, Shape{2})
	require.NoError(t, Set(other, ConcreteElement("c0"), map[Axis]int{"col": 0}))
	require.NoError(t, Set(other, ConcreteElement("c1"), map[Axis]int{"col": 1}))

	out, err := Append(target, other, "col")
	require.NoError(t, err)
	assert.ElementsMatch(t, []Axis{"row", "col"}, out.Axes)
}

func TestCrossProductSkipPropagationTotality(t *testing.T) {
	a := mustNew(t, []Axis{"x"}, Shape{2})
	require.NoError(t, Set(a, ConcreteElement(1), map[Axis]int{"x": 0}))
	// index x=1 left as Skip deliberately.

	b := mustNew(t, []Axis{"y"}, Shape{1})
	require.NoError(t, Set(b, ConcreteElement(10), map[Axis]int{"y": 0}))

	out, err := CrossProduct([]*Reference{a, b})
	require.NoError(t, err)
	assert.ElementsMatch(t, []Axis{"x", "y"}, out.Axes)

	e, err := Get(out, map[Axis]int{"x": 0, "y": 0})
	require.NoError(t, err)
	require.False(t, e.IsSkip())
	list, ok := e.Value()
	require.True(t, ok)
	pair := list.(List)
	v0, _ := pair[0].Value()
	v1, _ := pair[1].Value()
	assert.Equal(t, 1, v0)
	assert.Equal(t, 10, v1)

	skipped, err := Get(out, map[Axis]int{"x": 1, "y": 0})
	require.NoError(t, err)
	assert.True(t, skipped.IsSkip())
}

func TestCrossProductSharedAxisSizeMismatch(t *testing.T) {
	a := mustNew(t, []Axis{"x"}, Shape{2})
	b := mustNew(t, []Axis{"x"}, Shape{3})
	_, err := CrossProduct([]*Reference{a, b})
	var mismatch *AxisMismatch
	assert.ErrorAs(t, err, &mismatch)
}

func TestJoinStacksAlongNewLeadingAxis(t *testing.T) {
	a := mustNew(t, []Axis{"digit"}, Shape{2})
	require.NoError(t, Set(a, ConcreteElement(1), map[Axis]int{"digit": 0}))
	require.NoError(t, Set(a, ConcreteElement(2), map[Axis]int{"digit": 1}))

	b := mustNew(t, []Axis{"digit"}, Shape{2})
	require.NoError(t, Set(b, ConcreteElement(3), map[Axis]int{"digit": 0}))
	require.NoError(t, Set(b, ConcreteElement(4), map[Axis]int{"digit": 1}))

	out, err := Join([]*Reference{a, b}, "branch")
	require.NoError(t, err)
	assert.Equal(t, []Axis{"branch", "digit"}, out.Axes)
	assert.Equal(t, Shape{2, 2}, out.Shape)

	e, err := Get(out, map[Axis]int{"branch": 1, "digit": 0})
	require.NoError(t, err)
	v, _ := e.Value()
	assert.Equal(t, 3, v)
}

func TestJoinRequiresIdenticalShape(t *testing.T) {
	a := mustNew(t, []Axis{"digit"}, Shape{2})
	b := mustNew(t, []Axis{"digit"}, Shape{3})
	_, err := Join([]*Reference{a, b}, "branch")
	var mismatch *AxisMismatch
	assert.ErrorAs(t, err, &mismatch)
}

func TestCrossActionAppliesCartesianProduct(t *testing.T) {
	funcs := mustNew(t, []Axis{"op"}, Shape{1})
	require.NoError(t, Set(funcs, ConcreteElement(OpFunc(func(v interface{}) (interface{}, error) {
		return v.(int) * 2, nil
	})), map[Axis]int{"op": 0}))

	vals := mustNew(t, []Axis{"digit"}, Shape{2})
	require.NoError(t, Set(vals, ConcreteElement(3), map[Axis]int{"digit": 0}))
	require.NoError(t, Set(vals, ConcreteElement(4), map[Axis]int{"digit": 1}))

	out, err := CrossAction(funcs, vals, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []Axis{"op", "digit"}, out.Axes)

	e, err := Get(out, map[Axis]int{"op": 0, "digit": 1})
	require.NoError(t, err)
	v, _ := e.Value()
	assert.Equal(t, 8, v)
}

func TestCrossActionSkipPropagatesFromEitherInput(t *testing.T) {
	funcs := mustNew(t, []Axis{"op"}, Shape{1})
	require.NoError(t, Set(funcs, ConcreteElement(OpFunc(func(v interface{}) (interface{}, error) {
		return v, nil
	})), map[Axis]int{"op": 0}))

	vals := mustNew(t, []Axis{"digit"}, Shape{1}) // left as Skip

	out, err := CrossAction(funcs, vals, "")
	require.NoError(t, err)
	e, err := Get(out, map[Axis]int{"op": 0, "digit": 0})
	require.NoError(t, err)
	assert.True(t, e.IsSkip())
}

func TestCrossActionListResultExpandsResultAxis(t *testing.T) {
	funcs := mustNew(t, []Axis{"op"}, Shape{1})
	require.NoError(t, Set(funcs, ConcreteElement(OpFunc(func(v interface{}) (interface{}, error) {
		n := v.(int)
		return []interface{}{n, n * n}, nil
	})), map[Axis]int{"op": 0}))

	vals := mustNew(t, []Axis{"digit"}, Shape{1})
	require.NoError(t, Set(vals, ConcreteElement(3), map[Axis]int{"digit": 0}))

	out, err := CrossAction(funcs, vals, "result")
	require.NoError(t, err)
	assert.Equal(t, []Axis{"result", "op", "digit"}, out.Axes)
	assert.Equal(t, Shape{2, 1, 1}, out.Shape)

	e0, err := Get(out, map[Axis]int{"result": 0, "op": 0, "digit": 0})
	require.NoError(t, err)
	e1, err := Get(out, map[Axis]int{"result": 1, "op": 0, "digit": 0})
	require.NoError(t, err)
	v0, _ := e0.Value()
	v1, _ := e1.Value()
	assert.Equal(t, 3, v0)
	assert.Equal(t, 9, v1)
}

func TestElementActionCombinesAlignedInputs(t *testing.T) {
	a := mustNew(t, []Axis{"digit"}, Shape{2})
	require.NoError(t, Set(a, ConcreteElement(1), map[Axis]int{"digit": 0}))
	require.NoError(t, Set(a, ConcreteElement(2), map[Axis]int{"digit": 1}))

	b := mustNew(t, []Axis{"digit"}, Shape{2})
	require.NoError(t, Set(b, ConcreteElement(10), map[Axis]int{"digit": 0}))
	require.NoError(t, Set(b, ConcreteElement(20), map[Axis]int{"digit": 1}))

	sum := func(values []interface{}, idx map[Axis]int) (interface{}, error) {
		return values[0].(int) + values[1].(int), nil
	}

	out, err := ElementAction(sum, []*Reference{a, b}, false)
	require.NoError(t, err)

	e, err := Get(out, map[Axis]int{"digit": 1})
	require.NoError(t, err)
	v, _ := e.Value()
	assert.Equal(t, 22, v)
}

func TestElementActionSkipPropagatesTotally(t *testing.T) {
	a := mustNew(t, []Axis{"digit"}, Shape{1}) // Skip
	b := mustNew(t, []Axis{"digit"}, Shape{1})
	require.NoError(t, Set(b, ConcreteElement(1), map[Axis]int{"digit": 0}))

	identity := func(values []interface{}, idx map[Axis]int) (interface{}, error) {
		return values[0], nil
	}

	out, err := ElementAction(identity, []*Reference{a, b}, false)
	require.NoError(t, err)
	e, _ := Get(out, map[Axis]int{"digit": 0})
	assert.True(t, e.IsSkip())
}

func TestElementActionIndexAwareness(t *testing.T) {
	a := mustNew(t, []Axis{"digit"}, Shape{3})
	require.NoError(t, Set(a, ConcreteElement(0), map[Axis]int{"digit": 0}))
	require.NoError(t, Set(a, ConcreteElement(0), map[Axis]int{"digit": 1}))
	require.NoError(t, Set(a, ConcreteElement(0), map[Axis]int{"digit": 2}))

	withIndex := func(values []interface{}, idx map[Axis]int) (interface{}, error) {
		return idx["digit"], nil
	}

	out, err := ElementAction(withIndex, []*Reference{a}, true)
	require.NoError(t, err)
	e, _ := Get(out, map[Axis]int{"digit": 2})
	v, _ := e.Value()
	assert.Equal(t, 2, v)
}

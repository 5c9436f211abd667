// Package refalgebra implements NormCode's named-axis tensor algebra: the
// Reference container and the total operations (get/set/copy/slice/append/
// cross_product/join/cross_action/element_action) that sequences use to
// move data between concepts. Every operation propagates the Skip sentinel
// rather than erroring on missing data.
package refalgebra

import (
	"encoding/json"
	"fmt"
)

// Axis names one dimension of a Reference.
type Axis string

// NoneAxis is the reserved degenerate axis used for singleton References.
const NoneAxis Axis = "_none_axis"

// Shape is the ordered list of dimension sizes, one per Axis.
type Shape []int

// Sign is the minimal perceptual-sign shape the algebra needs to know
// about: it is transmuted by the caller (internal/perception), not here.
// Kept as an interface to avoid a dependency from refalgebra on perception.
type Sign interface {
	String() string
}

// Element is a tagged union: exactly one of Concrete/Sign/IsSkip is "set".
type Element struct {
	skip    bool
	sign    Sign
	value   interface{}
	isValue bool
}

// SkipElement is the Skip sentinel element.
func SkipElement() Element { return Element{skip: true} }

// ConcreteElement wraps a materialized value.
func ConcreteElement(v interface{}) Element { return Element{value: v, isValue: true} }

// SignElement wraps an unmaterialized perceptual sign.
func SignElement(s Sign) Element { return Element{sign: s} }

// IsSkip reports whether this element is the Skip sentinel.
func (e Element) IsSkip() bool { return e.skip }

// IsSign reports whether this element still carries an unmaterialized sign.
func (e Element) IsSign() bool { return !e.skip && !e.isValue }

// Value returns the concrete value and whether one is present.
func (e Element) Value() (interface{}, bool) { return e.value, e.isValue }

// SignValue returns the sign and whether one is present.
func (e Element) SignValue() (Sign, bool) { return e.sign, e.IsSign() }

// rawSign is a checkpoint-resume-only Sign: it carries nothing but the
// String() text a real Sign produced at checkpoint time. It lets a
// Reference round-trip through JSON without refalgebra depending on
// internal/perception's concrete Sign type.
type rawSign string

func (s rawSign) String() string { return string(s) }

// elementJSON is Element's wire shape: exactly one of Value/Sign is set,
// or Skip is true.
type elementJSON struct {
	Skip  bool            `json:"skip,omitempty"`
	Sign  string          `json:"sign,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON lets a Reference serialize for checkpointing. A Sign
// element is persisted as its String() text only, since a sign not yet
// materialized carries no state beyond its own grammar; an inference
// left unmaterialized at checkpoint time is re-run from scratch on
// resume, not re-hydrated from its sign text.
func (e Element) MarshalJSON() ([]byte, error) {
	switch {
	case e.skip:
		return json.Marshal(elementJSON{Skip: true})
	case e.IsSign():
		return json.Marshal(elementJSON{Sign: e.sign.String()})
	default:
		raw, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		return json.Marshal(elementJSON{Value: raw})
	}
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var wire elementJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch {
	case wire.Skip:
		*e = SkipElement()
	case wire.Sign != "":
		*e = SignElement(rawSign(wire.Sign))
	default:
		var v interface{}
		if len(wire.Value) > 0 {
			if err := json.Unmarshal(wire.Value, &v); err != nil {
				return err
			}
		}
		*e = ConcreteElement(v)
	}
	return nil
}

// List wraps a cross_product output element: an ordered list of
// sub-elements, one per input Reference.
type List []Element

func (e Element) String() string {
	switch {
	case e.skip:
		return "SKIP"
	case e.IsSign():
		return e.sign.String()
	default:
		return fmt.Sprintf("%v", e.value)
	}
}

// Reference is the multi-dimensional container bound to a concept at
// runtime. Axes and Shape are kept in lock-step: len(Axes) == len(Shape).
// Elements is row-major over Shape in Axes order.
type Reference struct {
	Axes     []Axis
	Shape    Shape
	Elements []Element
}

// New builds a Reference, filling every position with Skip. It returns a
// ShapeError if axes and shape lengths disagree, or any axis name repeats,
// or any shape entry is not strictly positive.
func New(axes []Axis, shape Shape) (*Reference, error) {
	if len(axes) != len(shape) {
		return nil, &ShapeError{Reason: fmt.Sprintf("len(axes)=%d != len(shape)=%d", len(axes), len(shape))}
	}
	seen := make(map[Axis]bool, len(axes))
	for _, a := range axes {
		if seen[a] {
			return nil, &ShapeError{Reason: fmt.Sprintf("duplicate axis %q", a)}
		}
		seen[a] = true
	}
	for i, s := range shape {
		if s <= 0 {
			return nil, &ShapeError{Reason: fmt.Sprintf("shape[%d]=%d is not strictly positive", i, s)}
		}
	}
	n := size(shape)
	elems := make([]Element, n)
	for i := range elems {
		elems[i] = SkipElement()
	}
	return &Reference{
		Axes:     append([]Axis(nil), axes...),
		Shape:    append(Shape(nil), shape...),
		Elements: elems,
	}, nil
}

// Singleton builds a shape-(1,) Reference on NoneAxis holding one element.
func Singleton(e Element) *Reference {
	return &Reference{Axes: []Axis{NoneAxis}, Shape: Shape{1}, Elements: []Element{e}}
}

func size(shape Shape) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// axisIndex returns the position of axis in r.Axes, or -1.
func (r *Reference) axisIndex(a Axis) int {
	for i, ax := range r.Axes {
		if ax == a {
			return i
		}
	}
	return -1
}

// strides returns the row-major stride for each axis position.
func (r *Reference) strides() []int {
	st := make([]int, len(r.Shape))
	acc := 1
	for i := len(r.Shape) - 1; i >= 0; i-- {
		st[i] = acc
		acc *= r.Shape[i]
	}
	return st
}

// flatIndex computes the flat offset for a full coordinate vector (one
// index per axis, in r.Axes order).
func (r *Reference) flatIndex(coords []int) int {
	st := r.strides()
	off := 0
	for i, c := range coords {
		off += c * st[i]
	}
	return off
}

// validateIndices checks a partial index map names only known axes and
// every named index is in range.
func (r *Reference) validateIndices(idx map[Axis]int) error {
	for a, i := range idx {
		pos := r.axisIndex(a)
		if pos < 0 {
			return &ShapeError{Reason: fmt.Sprintf("unknown axis %q", a)}
		}
		if i < 0 || i >= r.Shape[pos] {
			return &ShapeError{Reason: fmt.Sprintf("index %d out of range for axis %q (size %d)", i, a, r.Shape[pos])}
		}
	}
	return nil
}

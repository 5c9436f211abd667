// Package compiler implements NormCode's four-pass compiler pipeline:
// Derivation, Formalization, Post-Formalization, and Activation. Each pass
// is a pure rewrite of an *ncparse.Tree; Activate is the only pass that
// produces the two JSON repositories the orchestrator consumes.
package compiler

import "normcode/internal/refalgebra"

// SequenceKind is the closed set of agent-sequence kinds a functional
// concept can compile to.
type SequenceKind int

const (
	Imperative SequenceKind = iota
	Judgement
	Assigning
	Grouping
	Timing
	Looping
	Simple
)

func (k SequenceKind) String() string {
	switch k {
	case Imperative:
		return "Imperative"
	case Judgement:
		return "Judgement"
	case Assigning:
		return "Assigning"
	case Grouping:
		return "Grouping"
	case Timing:
		return "Timing"
	case Looping:
		return "Looping"
	case Simple:
		return "Simple"
	default:
		return "UnknownSequenceKind"
	}
}

// WorkingInterpretation is the closed sum type spec.md §4.4.4 tunes per
// sequence kind. Concrete types are unexported-marker-gated so only this
// package can author new variants.
type WorkingInterpretation interface {
	workingInterpretation()
	Kind() SequenceKind
}

// ValueSelector names one of the packed/source/key/index/unpack selection
// strategies spec.md §4.4.4 allows on an Imperative value binding.
type ValueSelector struct {
	Strategy string // "packed" | "source" | "key" | "index" | "unpack"
	Arg      string
}

// ImperativeWI is the Working Interpretation for Imperative sequences.
type ImperativeWI struct {
	Paradigm               string
	BodyFaculty            string
	ValueOrder             map[string]int
	ValueSelectors         map[string]ValueSelector
	CreateAxisOnListOutput string
}

func (ImperativeWI) workingInterpretation() {}
func (ImperativeWI) Kind() SequenceKind     { return Imperative }

// AssertionCondition is Judgement's extra field over Imperative.
type AssertionCondition struct {
	Quantifier string // "all" | "any" | "for-each" | ...
	Target     string
	Expected   bool
}

// JudgementWI embeds ImperativeWI (All of Imperative's fields) plus the
// quantified assertion condition TIA evaluates.
type JudgementWI struct {
	ImperativeWI
	AssertionCondition AssertionCondition
}

func (JudgementWI) workingInterpretation() {}
func (JudgementWI) Kind() SequenceKind     { return Judgement }

// AssignMarker is the closed set of Assigning sequence operators.
type AssignMarker string

const (
	AssignAlias   AssignMarker = "="
	AssignLiteral AssignMarker = "%"
	AssignFirst   AssignMarker = "."
	AssignAppend  AssignMarker = "+"
	AssignSelect  AssignMarker = "-"
)

// AssigningWI is the Working Interpretation for Assigning sequences. Only
// the fields relevant to Marker are meaningfully populated; the others are
// left zero.
type AssigningWI struct {
	Marker            AssignMarker
	FaceValue         string   // % marker: kept literal, e.g. "%(1)" stays "%(1)"
	AxisNames         []string // % marker
	AssignSource      interface{} // . and + markers: string or []string
	AssignDestination string      // + marker
	ByAxes            []string    // + marker
	Selector          string      // - marker
}

func (AssigningWI) workingInterpretation() {}
func (AssigningWI) Kind() SequenceKind     { return Assigning }

// GroupMarker is the closed set of Grouping sequence operators.
type GroupMarker string

const (
	GroupIn     GroupMarker = "in"
	GroupAcross GroupMarker = "across"
)

// GroupingWI is the Working Interpretation for Grouping sequences.
type GroupingWI struct {
	Marker     GroupMarker
	Sources    []string
	CreateAxis *string // nil => output shape (1,); non-nil => shape (N,) named by *CreateAxis
	ByAxes     map[string][]refalgebra.Axis
}

func (GroupingWI) workingInterpretation() {}
func (GroupingWI) Kind() SequenceKind     { return Grouping }

// TimingMarker is the closed set of Timing sequence operators.
type TimingMarker string

const (
	TimingIf      TimingMarker = "if"
	TimingIfBang  TimingMarker = "if!"
	TimingAfter   TimingMarker = "after"
)

// TimingWI is the Working Interpretation for Timing sequences.
type TimingWI struct {
	Marker    TimingMarker
	Condition string
}

func (TimingWI) workingInterpretation() {}
func (TimingWI) Kind() SequenceKind     { return Timing }

// LoopingWI is the Working Interpretation for Looping sequences.
type LoopingWI struct {
	LoopIndex              string
	LoopBaseConcept        string
	CurrentLoopBaseConcept string
	GroupBase              string
	InLoopConcept          map[string]int // concept name -> iteration offset
	ConceptToInfer         string
}

func (LoopingWI) workingInterpretation() {}
func (LoopingWI) Kind() SequenceKind     { return Looping }

// SimpleWI is the pass-through Working Interpretation, kept in the enum
// for test infrastructure; the compiler never emits it from real source.
type SimpleWI struct{}

func (SimpleWI) workingInterpretation() {}
func (SimpleWI) Kind() SequenceKind     { return Simple }

// Concept is one entry of the Concept Repository: one per distinct concept
// name, value or function.
type Concept struct {
	ID           string // "c-..." for value concepts, "fc-..." for function concepts
	Name         string
	SemanticKind string
	NaturalName  string
	IsFunction   bool
}

// ConceptRepo is the Activation output naming every concept a plan refers
// to, keyed by ID.
type ConceptRepo struct {
	Concepts map[string]*Concept
}

// NewConceptRepo returns an empty, ready-to-populate repository.
func NewConceptRepo() *ConceptRepo {
	return &ConceptRepo{Concepts: map[string]*Concept{}}
}

// Inference is one entry of the Inference Repository: one per inference
// line (functional concept + its value/context children).
type Inference struct {
	ID                    string // flow index, e.g. "1.1"
	FunctionalConceptID   string
	OutputConceptID       string // the inference's parent node's concept; empty for the plan root
	SequenceKind          SequenceKind
	WorkingInterpretation WorkingInterpretation
	ValueConceptIDs       []string
	ContextConceptIDs     []string
}

// InferenceRepo is the Activation output naming every inference line,
// keyed by flow index.
type InferenceRepo struct {
	Inferences map[string]*Inference
}

// NewInferenceRepo returns an empty, ready-to-populate repository.
func NewInferenceRepo() *InferenceRepo {
	return &InferenceRepo{Inferences: map[string]*Inference{}}
}

package compiler

import (
	"time"

	"normcode/internal/ncparse"
)

// PassStat records one pass's timing, mirroring the teacher's
// CompilationStats per-phase timing in internal/prompt/compiler.go.
type PassStat struct {
	Name     string
	Duration time.Duration
}

// Stats accumulates PassStat entries across a full pipeline run.
type Stats struct {
	Passes []PassStat
}

func (s *Stats) record(name string, start time.Time) {
	s.Passes = append(s.Passes, PassStat{Name: name, Duration: time.Since(start)})
}

// Total returns the summed duration of every recorded pass.
func (s *Stats) Total() time.Duration {
	var total time.Duration
	for _, p := range s.Passes {
		total += p.Duration
	}
	return total
}

// Compile runs the full four-pass compiler end to end, timing each pass.
// Passes may be collapsed per spec.md §4.4 "so long as their invariants
// hold at the output"; Compile always runs the full six-function sequence
// since NormCode's passes are cheap pure tree rewrites.
func Compile(source string) (*ConceptRepo, *InferenceRepo, *Stats, error) {
	stats := &Stats{}

	start := time.Now()
	tree, err := Derive(source)
	stats.record("Derive", start)
	if err != nil {
		return nil, nil, stats, err
	}

	start = time.Now()
	err = Formalize(tree)
	stats.record("Formalize", start)
	if err != nil {
		return nil, nil, stats, err
	}

	for _, pass := range []struct {
		name string
		fn   func(*ncparse.Tree) error
	}{
		{"Recompose", Recompose},
		{"Provision", Provision},
		{"ReconfirmSyntax", ReconfirmSyntax},
	} {
		start = time.Now()
		err = pass.fn(tree)
		stats.record(pass.name, start)
		if err != nil {
			return nil, nil, stats, err
		}
	}

	start = time.Now()
	concepts, inferences, err := Activate(tree)
	stats.record("Activate", start)
	if err != nil {
		return nil, nil, stats, err
	}

	return concepts, inferences, stats, nil
}

package compiler

import "fmt"

// PassError names the pass in which a compile-time rewrite failed, wrapping
// the underlying cause (often an *ncparse.ParseError when re-parsing
// intermediate annotated source, or a structural invariant violation this
// package raises directly).
type PassError struct {
	Pass   string
	Node   string // human-readable node identity, e.g. flow index or name
	Reason string
	Cause  error
}

func (e *PassError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("compiler: %s pass failed at %s: %s: %v", e.Pass, e.Node, e.Reason, e.Cause)
	}
	return fmt.Sprintf("compiler: %s pass failed at %s: %s", e.Pass, e.Node, e.Reason)
}

func (e *PassError) Unwrap() error { return e.Cause }

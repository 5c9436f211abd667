package paradigm

import "fmt"

// ParadigmNotFound reports a Loader miss.
type ParadigmNotFound struct{ ID string }

func (e *ParadigmNotFound) Error() string { return fmt.Sprintf("paradigm: %q not found", e.ID) }

// ParadigmSchemaError reports a paradigm document that failed to decode or
// validate against the declarative schema.
type ParadigmSchemaError struct {
	ID     string
	Reason string
}

func (e *ParadigmSchemaError) Error() string {
	return fmt.Sprintf("paradigm: schema error in %q: %s", e.ID, e.Reason)
}

// ToolNotRegistered reports a step naming a tool the FacultyRegistry
// doesn't carry, grounded on the teacher's tool_registry.go error of the
// same shape.
type ToolNotRegistered struct{ Name string }

func (e *ToolNotRegistered) Error() string {
	return fmt.Sprintf("paradigm: tool %q is not registered", e.Name)
}

// CompositionContextError reports a composition-time step attempting to
// reference a vertical (MFP) step result, which spec.md §4.5 forbids:
// "C5 has no access to mid-MFP step results from within the composition
// plan."
type CompositionContextError struct{ Step, Ref string }

func (e *CompositionContextError) Error() string {
	return fmt.Sprintf("paradigm: composition step %q referenced %q, which is only visible during vertical setup", e.Step, e.Ref)
}

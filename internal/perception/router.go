package perception

import "context"

// BodyFaculty materializes a Sign into a concrete value. Implementations
// own whatever I/O or external call the norm requires.
type BodyFaculty interface {
	Transmute(ctx context.Context, sign Sign) (interface{}, error)
}

// PerceptionRouter maps a Norm to the BodyFaculty responsible for it. It is
// built once at construction and never mutated afterward, mirroring the
// teacher's client_factory.go provider-detection-and-binding pattern
// generalized from "provider name -> LLM client" to "norm -> body faculty".
type PerceptionRouter struct {
	faculties map[Norm]BodyFaculty
}

// NewPerceptionRouter builds a read-only router from a norm->faculty map.
// The map is copied so later mutation of the caller's map has no effect.
func NewPerceptionRouter(faculties map[Norm]BodyFaculty) *PerceptionRouter {
	copied := make(map[Norm]BodyFaculty, len(faculties))
	for k, v := range faculties {
		copied[k] = v
	}
	return &PerceptionRouter{faculties: copied}
}

// Transmute routes sign to its faculty and materializes it. This is the
// only path by which sequences touch I/O, per spec.md §4.2.
func (r *PerceptionRouter) Transmute(ctx context.Context, sign Sign) (interface{}, error) {
	faculty, ok := r.faculties[sign.Norm]
	if !ok {
		return nil, &RouterError{Norm: sign.Norm, Kind: UnknownNorm}
	}
	val, err := faculty.Transmute(ctx, sign)
	if err != nil {
		return nil, &RouterError{Norm: sign.Norm, Kind: FacultyFailure, Cause: err}
	}
	return val, nil
}

// Norms reports the set of norms this router can service, useful for
// paradigm validation before a run starts.
func (r *PerceptionRouter) Norms() []Norm {
	out := make([]Norm, 0, len(r.faculties))
	for n := range r.faculties {
		out = append(out, n)
	}
	return out
}

package paradigm

import (
	"context"
	"strings"
)

// ToolFunc is one named capability a paradigm step can invoke.
type ToolFunc func(ctx context.Context, args []interface{}) (interface{}, error)

// FacultyRegistry resolves a fully-qualified tool name to its ToolFunc,
// mirroring the teacher's internal/core/tool_registry.go name-to-function
// registry.
type FacultyRegistry interface {
	Tool(name string) (ToolFunc, bool)
}

// MapRegistry is the simplest FacultyRegistry: a static name->ToolFunc map.
type MapRegistry map[string]ToolFunc

func (r MapRegistry) Tool(name string) (ToolFunc, bool) {
	fn, ok := r[name]
	return fn, ok
}

// stepContext holds named step results. Vertical and composition steps
// each get their own disjoint instance so composition-time steps cannot
// observe vertical (MFP) results directly, per spec.md §4.5.
type stepContext map[string]interface{}

func (c stepContext) resolveArgs(args []string) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		if strings.HasPrefix(a, "$") {
			out[i] = c[strings.TrimPrefix(a, "$")]
			continue
		}
		out[i] = a
	}
	return out
}

// RunVertical executes F_V: the paradigm's vertical setup steps (MFP),
// e.g. strip_sign -> read_now -> create_template_function. All resource
// reads must happen here, never inside the composition plan.
func RunVertical(ctx context.Context, p *Paradigm, registry FacultyRegistry, verticalInputs map[string]interface{}) (stepContext, error) {
	vctx := stepContext{}
	for k, v := range verticalInputs {
		vctx[k] = v
	}
	for _, step := range p.VerticalSteps {
		fn, ok := registry.Tool(step.Tool)
		if !ok {
			return nil, &ToolNotRegistered{Name: step.Tool}
		}
		res, err := fn(ctx, vctx.resolveArgs(step.Args))
		if err != nil {
			return nil, err
		}
		vctx[step.Name] = res
	}
	return vctx, nil
}

// Phi is the composed callable F_C produces: apply it to runtime values
// perceived by MVP to get TVA's result.
type Phi func(ctx context.Context, runtime map[string]interface{}) (interface{}, error)

// BuildComposition realizes F_C: it orders the horizontal plan's c_ steps
// into a single callable. vctx is deliberately NOT visible to step
// argument resolution inside the returned Phi — referencing a name that
// only exists in vctx fails with CompositionContextError at build time.
func BuildComposition(p *Paradigm, registry FacultyRegistry, vctx stepContext) (Phi, error) {
	for _, step := range p.CompositionSteps {
		if _, ok := registry.Tool(step.Tool); !ok {
			return nil, &ToolNotRegistered{Name: step.Tool}
		}
		for _, a := range step.Args {
			if !strings.HasPrefix(a, "$") {
				continue
			}
			ref := strings.TrimPrefix(a, "$")
			if _, inVertical := vctx[ref]; inVertical {
				if !referencedByEarlierStep(p.CompositionSteps, step, ref) {
					return nil, &CompositionContextError{Step: step.Name, Ref: ref}
				}
			}
		}
	}

	steps := p.CompositionSteps
	return func(ctx context.Context, runtime map[string]interface{}) (interface{}, error) {
		cctx := stepContext{}
		for k, v := range runtime {
			cctx[k] = v
		}
		var last interface{}
		for _, step := range steps {
			fn, _ := registry.Tool(step.Tool)
			res, err := fn(ctx, cctx.resolveArgs(step.Args))
			if err != nil {
				return nil, err
			}
			cctx[step.Name] = res
			last = res
		}
		return last, nil
	}, nil
}

// referencedByEarlierStep allows a composition step to reference a name
// that collides with a vertical-context key only if an earlier
// composition step already produced that same name itself (i.e. the
// composition plan is self-sufficient and the collision is coincidental).
func referencedByEarlierStep(steps []Step, current Step, name string) bool {
	for _, s := range steps {
		if s.Name == current.Name {
			return false
		}
		if s.Name == name {
			return true
		}
	}
	return false
}

// Package paradigm implements NormCode's declarative composition engine:
// a Paradigm names horizontal/vertical inputs, composition steps, and an
// output format; the engine realizes spec.md §4.5's decomposition
// Output = (F_C(F_V(S, V_spec), H_plan))(V_runtime).
package paradigm

// Paradigm is the declarative JSON document spec.md §4.5 names
// [h_...][v_...]-c_...-o_....json.
type Paradigm struct {
	ID                 string   `json:"id"`
	HorizontalInputs   []string `json:"h_inputs"`
	VerticalInputs     []string `json:"v_inputs,omitempty"`
	CompositionSteps   []Step   `json:"c_steps"`
	VerticalSteps      []Step   `json:"v_steps,omitempty"`
	OutputFormat       string   `json:"o_format"`
}

// Step is one named tool invocation in a paradigm's vertical or
// composition plan. Arg values are either literal strings or "$name"
// references into the running context (vertical context for v_ steps,
// composition context plus horizontal inputs for c_ steps).
type Step struct {
	Name string   `json:"name"` // the context key this step's result is stored under
	Tool string   `json:"tool"` // fully-qualified FacultyRegistry tool name
	Args []string `json:"args"`
}

// recognizedOutputPrefixes enumerates the output suffixes spec.md §4.5
// recognizes; any output that is not itself a perceptual sign must start
// with "Literal".
var recognizedOutputPrefixes = []string{
	"o_Literal", "o_LiteralStatus", "o_Boolean", "o_ListLiteral", "o_FileLocation",
}

// ValidateOutputFormat checks o_format against the recognized suffixes.
func (p *Paradigm) ValidateOutputFormat() error {
	for _, prefix := range recognizedOutputPrefixes {
		if p.OutputFormat == prefix {
			return nil
		}
	}
	return &ParadigmSchemaError{ID: p.ID, Reason: "unrecognized output format " + p.OutputFormat}
}

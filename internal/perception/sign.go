// Package perception implements NormCode's Perceptual Sign grammar and the
// PerceptionRouter that lazily materializes signs into concrete values by
// routing them to norm-specific body faculties.
package perception

import (
	"fmt"
	"regexp"
)

// signPattern is the bit-exact grammar from spec.md §4.2/§6:
// %{<norm>}<id>?(<signifier>), id optional hex up to 8 chars, norm and
// signifier excluding their own balancing delimiters.
var signPattern = regexp.MustCompile(`^%\{([^{}]+)\}([0-9a-f]{0,8})?\(([^()]*)\)$`)

// Norm names a body faculty family, e.g. "file_location" or "literal".
type Norm string

// Well-known norms named by spec.md §1/§4.2.
const (
	NormFileLocation   Norm = "file_location"
	NormPromptLocation Norm = "prompt_location"
	NormScriptLocation Norm = "script_location"
	NormSavePath       Norm = "save_path"
	NormTruthValue     Norm = "truth_value"
	NormLiteral        Norm = "literal"
	NormInMemory       Norm = "in-memory"
)

// Sign is a lightweight pointer into a body faculty: norm selects the
// faculty, ID is a short opaque lineage tag, Signifier is the payload.
type Sign struct {
	Norm      Norm
	ID        string
	Signifier string
}

// String renders a Sign back to its canonical %{norm}id(signifier) form.
func (s Sign) String() string {
	return fmt.Sprintf("%%{%s}%s(%s)", s.Norm, s.ID, s.Signifier)
}

// ParseSign parses the bit-exact grammar. It never returns a partially
// populated Sign: either parsing fully succeeds or it fails with a
// GrammarError naming the offending text.
func ParseSign(text string) (Sign, error) {
	m := signPattern.FindStringSubmatch(text)
	if m == nil {
		return Sign{}, &GrammarError{Text: text, Reason: "does not match %{norm}id?(signifier)"}
	}
	return Sign{Norm: Norm(m[1]), ID: m[2], Signifier: m[3]}, nil
}

// StripSign returns the raw signifier payload without invoking any
// faculty. Paradigms use this during vertical setup to read paths that
// are not meant to be transmuted.
func StripSign(s Sign) string {
	return s.Signifier
}

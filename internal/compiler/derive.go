package compiler

import "normcode/internal/ncparse"

// Derive is Pass 1 (spec.md §4.4.1). It parses already-marked-up source
// into a draft inference tree. Deriving a draft tree from unstructured
// natural language is an authoring-UX concern spec.md's Non-goals exclude;
// Derive's job here is purely the bottom-up structural parse.
func Derive(source string) (*ncparse.Tree, error) {
	tree, err := ncparse.Parse(source)
	if err != nil {
		return nil, &PassError{Pass: "Derive", Node: "<source>", Reason: "parse failed", Cause: err}
	}
	return tree, nil
}

// Package toolkit provides the default FacultyRegistry the CLI wires into
// every run: a small, fixed set of named capabilities paradigm steps can
// invoke, grounded on the teacher's internal/core/tool_registry.go
// name->capability binding but simplified to paradigm.ToolFunc's shape
// (no shard affinity, no binary hashing - a paradigm step is a pure
// function call, not an external process registration).
package toolkit

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"normcode/internal/paradigm"
)

// Builtin returns the registry every "normcode run" wires in by default.
// A paradigm document that needs something beyond this set supplies its
// own registry; Builtin only covers the generic text/number plumbing
// common to most paradigms' vertical and composition steps.
func Builtin() paradigm.MapRegistry {
	return paradigm.MapRegistry{
		"strip_sign":  toolStripSign,
		"concat":      toolConcat,
		"to_upper":    toolToUpper,
		"to_lower":    toolToLower,
		"trim":        toolTrim,
		"to_int":      toolToInt,
		"to_string":   toolToString,
		"add":         toolAdd,
		"identity":    toolIdentity,
		"join_lines":  toolJoinLines,
		"split_lines": toolSplitLines,
	}
}

func toolStripSign(_ context.Context, args []interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("toolkit: strip_sign takes exactly 1 arg, got %d", len(args))
	}
	return fmt.Sprint(args[0]), nil
}

func toolConcat(_ context.Context, args []interface{}) (interface{}, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(fmt.Sprint(a))
	}
	return b.String(), nil
}

func toolToUpper(_ context.Context, args []interface{}) (interface{}, error) {
	s, err := requireString(args, "to_upper")
	if err != nil {
		return nil, err
	}
	return strings.ToUpper(s), nil
}

func toolToLower(_ context.Context, args []interface{}) (interface{}, error) {
	s, err := requireString(args, "to_lower")
	if err != nil {
		return nil, err
	}
	return strings.ToLower(s), nil
}

func toolTrim(_ context.Context, args []interface{}) (interface{}, error) {
	s, err := requireString(args, "trim")
	if err != nil {
		return nil, err
	}
	return strings.TrimSpace(s), nil
}

func toolToInt(_ context.Context, args []interface{}) (interface{}, error) {
	s, err := requireString(args, "to_int")
	if err != nil {
		return nil, err
	}
	return strconv.Atoi(strings.TrimSpace(s))
}

func toolToString(_ context.Context, args []interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("toolkit: to_string takes exactly 1 arg, got %d", len(args))
	}
	return fmt.Sprint(args[0]), nil
}

func toolAdd(_ context.Context, args []interface{}) (interface{}, error) {
	sum := 0
	for _, a := range args {
		n, err := asInt(a)
		if err != nil {
			return nil, err
		}
		sum += n
	}
	return sum, nil
}

func toolIdentity(_ context.Context, args []interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("toolkit: identity takes exactly 1 arg, got %d", len(args))
	}
	return args[0], nil
}

func toolJoinLines(_ context.Context, args []interface{}) (interface{}, error) {
	lines := make([]string, len(args))
	for i, a := range args {
		lines[i] = fmt.Sprint(a)
	}
	return strings.Join(lines, "\n"), nil
}

func toolSplitLines(_ context.Context, args []interface{}) (interface{}, error) {
	s, err := requireString(args, "split_lines")
	if err != nil {
		return nil, err
	}
	return strings.Split(s, "\n"), nil
}

func requireString(args []interface{}, tool string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("toolkit: %s takes exactly 1 arg, got %d", tool, len(args))
	}
	return fmt.Sprint(args[0]), nil
}

func asInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("toolkit: cannot interpret %v (%T) as int", v, v)
	}
}

package perception

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// LiteralFaculty transmutes literal/in-memory/truth_value signs without any
// I/O: the signifier itself (or a typed parse of it) is the value.
type LiteralFaculty struct {
	// Memory backs the in-memory norm: a caller-populated id->value table,
	// so sequences can stash an intermediate value and hand back a Sign
	// pointing at it instead of re-serializing it into a signifier string.
	Memory map[string]interface{}
}

func (f *LiteralFaculty) Transmute(_ context.Context, sign Sign) (interface{}, error) {
	switch sign.Norm {
	case NormTruthValue:
		return strconv.ParseBool(strings.ToLower(sign.Signifier))
	case NormInMemory:
		if f.Memory == nil {
			return nil, &FacultyError{Op: "in-memory lookup", Reason: "no memory table configured"}
		}
		v, ok := f.Memory[sign.Signifier]
		if !ok {
			return nil, &FacultyError{Op: "in-memory lookup", Reason: "key " + sign.Signifier + " not found"}
		}
		return v, nil
	case NormLiteral:
		return sign.Signifier, nil
	default:
		return nil, &FacultyError{Op: "literal transmute", Reason: "unsupported norm " + string(sign.Norm)}
	}
}

// FilesystemFaculty transmutes file_location signs by reading the named
// file, and save_path signs by returning the path itself (the caller is
// responsible for writing to it; the faculty only resolves/validates it).
type FilesystemFaculty struct {
	Root string // optional base directory signifiers are resolved against
}

func (f *FilesystemFaculty) Transmute(ctx context.Context, sign Sign) (interface{}, error) {
	path := f.resolve(sign.Signifier)
	switch sign.Norm {
	case NormFileLocation:
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &FacultyError{Op: "read file", Reason: err.Error()}
		}
		return string(data), nil
	case NormSavePath:
		if _, err := os.Stat(f.resolveDir(path)); err != nil {
			return nil, &FacultyError{Op: "resolve save path", Reason: err.Error()}
		}
		return path, nil
	default:
		return nil, &FacultyError{Op: "filesystem transmute", Reason: "unsupported norm " + string(sign.Norm)}
	}
}

func (f *FilesystemFaculty) resolve(signifier string) string {
	if f.Root == "" || strings.HasPrefix(signifier, "/") {
		return signifier
	}
	return f.Root + "/" + signifier
}

func (f *FilesystemFaculty) resolveDir(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "."
	}
	return path[:idx]
}

// ScriptFaculty transmutes script_location signs by shelling out to the
// named script, with the run's cancellation token wired through
// exec.CommandContext so a cancelled run kills in-flight faculty calls.
type ScriptFaculty struct {
	// Shell is the interpreter invoked with the script path as its sole
	// argument, defaulting to "/bin/sh" when empty.
	Shell string
}

func (f *ScriptFaculty) Transmute(ctx context.Context, sign Sign) (interface{}, error) {
	if sign.Norm != NormScriptLocation {
		return nil, &FacultyError{Op: "script transmute", Reason: "unsupported norm " + string(sign.Norm)}
	}
	shell := f.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.CommandContext(ctx, shell, sign.Signifier)
	out, err := cmd.Output()
	if err != nil {
		return nil, &FacultyError{Op: "run script " + sign.Signifier, Reason: err.Error()}
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// PromptLocationFaculty transmutes prompt_location signs by reading a
// template file's contents. It is the one faculty MFP may call during
// paradigm vertical setup (spec.md §4.5).
type PromptLocationFaculty struct {
	Root string
}

func (f *PromptLocationFaculty) Transmute(_ context.Context, sign Sign) (interface{}, error) {
	if sign.Norm != NormPromptLocation {
		return nil, &FacultyError{Op: "prompt transmute", Reason: "unsupported norm " + string(sign.Norm)}
	}
	path := sign.Signifier
	if f.Root != "" && !strings.HasPrefix(path, "/") {
		path = f.Root + "/" + path
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FacultyError{Op: "read prompt template", Reason: err.Error()}
	}
	return string(data), nil
}

// FacultyError wraps a faculty-internal failure before the router rewraps
// it as RouterError{Kind: FacultyFailure}.
type FacultyError struct {
	Op     string
	Reason string
}

func (e *FacultyError) Error() string {
	return "perception: " + e.Op + ": " + e.Reason
}

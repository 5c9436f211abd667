package paradigm

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeParadigmFile(t *testing.T, dir, id string, p Paradigm) {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644))
}

func TestFSLoaderLoadsAndValidates(t *testing.T) {
	dir := t.TempDir()
	writeParadigmFile(t, dir, "c_extract-o_Literal", Paradigm{OutputFormat: "o_Literal"})

	loader := &FSLoader{Dir: dir}
	p, err := loader.Load("c_extract-o_Literal")
	require.NoError(t, err)
	assert.Equal(t, "c_extract-o_Literal", p.ID)
}

func TestFSLoaderMissingFileIsParadigmNotFound(t *testing.T) {
	loader := &FSLoader{Dir: t.TempDir()}
	_, err := loader.Load("missing")
	var notFound *ParadigmNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestFSLoaderRejectsUnrecognizedOutputFormat(t *testing.T) {
	dir := t.TempDir()
	writeParadigmFile(t, dir, "bad", Paradigm{OutputFormat: "o_Nonsense"})

	loader := &FSLoader{Dir: dir}
	_, err := loader.Load("bad")
	var schemaErr *ParadigmSchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func echoTool(_ context.Context, args []interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, nil
	}
	return args[0], nil
}

func TestBuildCompositionUnregisteredToolFails(t *testing.T) {
	p := &Paradigm{CompositionSteps: []Step{{Name: "out", Tool: "nope"}}}
	_, err := BuildComposition(p, MapRegistry{}, stepContext{})
	var notRegistered *ToolNotRegistered
	assert.ErrorAs(t, err, &notRegistered)
}

func TestBuildCompositionRejectsVerticalContextLeak(t *testing.T) {
	registry := MapRegistry{"echo": echoTool}
	p := &Paradigm{CompositionSteps: []Step{{Name: "out", Tool: "echo", Args: []string{"$template"}}}}

	vctx := stepContext{"template": "hello"}
	_, err := BuildComposition(p, registry, vctx)
	var compErr *CompositionContextError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "template", compErr.Ref)
}

func TestRunVerticalThenBuildCompositionEndToEnd(t *testing.T) {
	registry := MapRegistry{"echo": echoTool}
	p := &Paradigm{
		VerticalSteps:    []Step{{Name: "template", Tool: "echo", Args: []string{"say hi"}}},
		CompositionSteps: []Step{{Name: "generated", Tool: "echo", Args: []string{"$input"}}},
	}

	vctx, err := RunVertical(context.Background(), p, registry, nil)
	require.NoError(t, err)
	assert.Equal(t, "say hi", vctx["template"])

	phi, err := BuildComposition(p, registry, vctx)
	require.NoError(t, err)

	out, err := phi(context.Background(), map[string]interface{}{"input": "runtime value"})
	require.NoError(t, err)
	assert.Equal(t, "runtime value", out)
}

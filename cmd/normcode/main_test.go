package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"testing"

	"go.uber.org/zap"

	"normcode/internal/compiler"
)

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	fn()

	_ = w.Close()
	os.Stdout = origOut
	return <-done
}

func TestParseStrategyAcceptsEveryKnownName(t *testing.T) {
	cases := map[string]interface{ String() string }{}
	_ = cases
	for name, want := range map[string]int{"patch": 0, "overwrite": 1, "fillgaps": 2} {
		got, err := parseStrategy(name)
		if err != nil {
			t.Fatalf("parseStrategy(%q): %v", name, err)
		}
		if int(got) != want {
			t.Fatalf("parseStrategy(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestParseStrategyRejectsUnknownName(t *testing.T) {
	if _, err := parseStrategy("bogus"); err == nil {
		t.Fatal("expected an error for an unknown strategy name")
	}
}

func TestSeedGroundConceptsBindsOnlyUnproducedConcepts(t *testing.T) {
	concepts := compiler.NewConceptRepo()
	concepts.Concepts["c-a"] = &compiler.Concept{ID: "c-a", Name: "a"}
	concepts.Concepts["c-b"] = &compiler.Concept{ID: "c-b", Name: "b"}

	inferences := compiler.NewInferenceRepo()
	inferences.Inferences["1"] = &compiler.Inference{ID: "1", OutputConceptID: "c-b", ValueConceptIDs: []string{"c-a"}}

	dir := t.TempDir()
	inputPath := dir + "/input.json"
	data, _ := json.Marshal(map[string]interface{}{"a": 5, "b": 99})
	if err := os.WriteFile(inputPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	seed, err := seedGroundConcepts(concepts, inferences, inputPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := seed["c-b"]; ok {
		t.Fatal("c-b is produced by inference 1 and must not be seeded even though the input file names it")
	}
	v, ok := seed["c-a"].Elements[0].Value()
	if !ok {
		t.Fatal("expected a concrete value for c-a")
	}
	if int(v.(float64)) != 5 {
		t.Fatalf("expected c-a = 5, got %v", v)
	}
}

func TestSeedGroundConceptsWithoutInputLeavesEverythingUnbound(t *testing.T) {
	concepts := compiler.NewConceptRepo()
	concepts.Concepts["c-a"] = &compiler.Concept{ID: "c-a", Name: "a"}
	inferences := compiler.NewInferenceRepo()

	seed, err := seedGroundConcepts(concepts, inferences, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(seed) != 0 {
		t.Fatalf("expected no seeded concepts, got %d", len(seed))
	}
}

func TestRunValidateReportsOkForWellFormedSource(t *testing.T) {
	logger = zap.NewNop()
	dir := t.TempDir()
	path := dir + "/plan.ncds"
	source := ":<: {result}\n" +
		"    <= extract::()\n" +
		"    <- {input}\n"
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}

	output := captureOutput(t, func() {
		_ = runValidate(nil, []string{path})
	})
	if output == "" {
		t.Fatal("expected validate to print a result line")
	}
}

package toolkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinConcatJoinsArgsInOrder(t *testing.T) {
	reg := Builtin()
	fn, ok := reg.Tool("concat")
	require.True(t, ok)

	out, err := fn(context.Background(), []interface{}{"foo", "-", 2})
	require.NoError(t, err)
	assert.Equal(t, "foo-2", out)
}

func TestBuiltinToIntParsesTrimmedString(t *testing.T) {
	reg := Builtin()
	fn, ok := reg.Tool("to_int")
	require.True(t, ok)

	out, err := fn(context.Background(), []interface{}{"  42 "})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestBuiltinAddSumsMixedIntAndStringArgs(t *testing.T) {
	reg := Builtin()
	fn, ok := reg.Tool("add")
	require.True(t, ok)

	out, err := fn(context.Background(), []interface{}{1, "2", 3})
	require.NoError(t, err)
	assert.Equal(t, 6, out)
}

func TestBuiltinAddRejectsUnparsableArg(t *testing.T) {
	reg := Builtin()
	fn, _ := reg.Tool("add")

	_, err := fn(context.Background(), []interface{}{"not-a-number"})
	assert.Error(t, err)
}

func TestBuiltinSplitLinesThenJoinLinesRoundTrips(t *testing.T) {
	reg := Builtin()
	split, _ := reg.Tool("split_lines")
	join, _ := reg.Tool("join_lines")

	parts, err := split(context.Background(), []interface{}{"a\nb\nc"})
	require.NoError(t, err)

	out, err := join(context.Background(), toArgs(parts.([]string)))
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc", out)
}

func toArgs(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func TestBuiltinIdentityReturnsArgUnchanged(t *testing.T) {
	reg := Builtin()
	fn, _ := reg.Tool("identity")

	out, err := fn(context.Background(), []interface{}{42})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestBuiltinUnknownToolIsAbsent(t *testing.T) {
	reg := Builtin()
	_, ok := reg.Tool("nonexistent")
	assert.False(t, ok)
}

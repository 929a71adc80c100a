package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return New(zerolog.Nop())
}

func TestCallWrapsScalarResult(t *testing.T) {
	r := newTestRegistry()
	r.Register(Spec{
		Name:    "text.upper",
		Inputs:  []Param{{Name: "text", Type: TypeString, Required: true}},
		Outputs: []string{"upper"},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		s, _ := args["text"].(string)
		return strings.ToUpper(s), nil
	})

	got, err := r.Call(context.Background(), "text.upper", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"upper": "HI"}, got)
}

func TestCallPassesObjectsThrough(t *testing.T) {
	r := newTestRegistry()
	r.Register(Spec{Name: "obj"}, func(ctx context.Context, args map[string]any) (any, error) {
		return map[string]any{"a": 1, "b": 2}, nil
	})
	type payload struct{ N int }
	r.Register(Spec{Name: "strct"}, func(ctx context.Context, args map[string]any) (any, error) {
		return payload{N: 7}, nil
	})

	got, err := r.Call(context.Background(), "obj", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, got)

	got, err = r.Call(context.Background(), "strct", nil)
	require.NoError(t, err)
	assert.Equal(t, payload{N: 7}, got)
}

func TestCallFiltersUndeclaredInputs(t *testing.T) {
	r := newTestRegistry()
	var seen map[string]any
	r.Register(Spec{
		Name:   "echo",
		Inputs: []Param{{Name: "keep", Type: TypeString}},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		seen = args
		return nil, nil
	})

	_, err := r.Call(context.Background(), "echo", map[string]any{"keep": "yes", "drop": "no"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"keep": "yes"}, seen)
}

func TestRegisterLastWriteWins(t *testing.T) {
	r := newTestRegistry()
	r.Register(Spec{Name: "dup"}, func(ctx context.Context, args map[string]any) (any, error) {
		return "first", nil
	})
	r.Register(Spec{Name: "dup"}, func(ctx context.Context, args map[string]any) (any, error) {
		return "second", nil
	})

	got, err := r.Call(context.Background(), "dup", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"result": "second"}, got)
}

func TestCallUnknownFunction(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Call(context.Background(), "ghost", nil)
	require.Error(t, err)
	assert.True(t, IsNotRegistered(err))
	assert.False(t, IsNotRegistered(errors.New("other")))
}

func TestSpecsFilterByScope(t *testing.T) {
	r := newTestRegistry()
	nop := func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }
	r.Register(Spec{Name: "pm.list", Scope: ScopeModules}, nop)
	r.Register(Spec{Name: "wf.embed", Scope: ScopeWorkflow}, nop)
	r.Register(Spec{Name: "hidden", Scope: ScopeInternal}, nop)

	exposed := r.Specs(ScopeModules, ScopeWorkflow)
	require.Len(t, exposed, 2)
	assert.Equal(t, "pm.list", exposed[0].Name)
	assert.Equal(t, "wf.embed", exposed[1].Name)

	all := r.Specs()
	assert.Len(t, all, 3)
}

func TestHandlerErrorPropagates(t *testing.T) {
	r := newTestRegistry()
	boom := errors.New("boom")
	r.Register(Spec{Name: "fail"}, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, boom
	})
	_, err := r.Call(context.Background(), "fail", nil)
	assert.ErrorIs(t, err, boom)
}

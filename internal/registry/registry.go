// Package registry holds the named functions the gateway exposes. Every
// externally callable operation is registered here with a typed signature;
// the HTTP and WebSocket layers only ever dispatch through it.
package registry

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Scope controls where the gateway exposes a registered function.
type Scope int

const (
	// ScopeInternal functions are callable in-process only; the gateway
	// never turns them into routes.
	ScopeInternal Scope = iota
	// ScopeModules functions appear under /api/modules.
	ScopeModules
	// ScopeWorkflow functions appear under /api/workflow.
	ScopeWorkflow
)

// Parameter type names understood by the gateway's request validation.
const (
	TypeString = "string"
	TypeNumber = "number"
	TypeBool   = "bool"
	TypeObject = "object"
	TypeArray  = "array"
	TypeBytes  = "bytes"
)

// Param declares one named input of a function.
type Param struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Required bool   `json:"required"`
}

// Spec describes a registered function. Inputs must be declared explicitly;
// arguments outside the declared set are dropped before the handler runs.
type Spec struct {
	Name        string   `json:"name"`
	Scope       Scope    `json:"-"`
	Inputs      []Param  `json:"inputs"`
	Outputs     []string `json:"outputs"`
	Description string   `json:"description,omitempty"`
}

// Handler is the function body. It receives only declared inputs.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Registry is a concurrency-safe name-to-function table.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Handler
	specs map[string]Spec
	log   zerolog.Logger
}

// New returns an empty registry.
func New(log zerolog.Logger) *Registry {
	return &Registry{
		funcs: make(map[string]Handler),
		specs: make(map[string]Spec),
		log:   log.With().Str("component", "registry").Logger(),
	}
}

// Register adds fn under spec.Name. Re-registering a name replaces the
// previous entry; the newest registration wins. Empty outputs default to
// ["result"].
func (r *Registry) Register(spec Spec, fn Handler) {
	if len(spec.Outputs) == 0 {
		spec.Outputs = []string{"result"}
	}
	r.mu.Lock()
	if _, exists := r.funcs[spec.Name]; exists {
		r.log.Warn().Str("function", spec.Name).Msg("overwriting registered function")
	}
	r.funcs[spec.Name] = fn
	r.specs[spec.Name] = spec
	r.mu.Unlock()
	r.log.Debug().Str("function", spec.Name).Msg("function registered")
}

// Call invokes name with args filtered down to its declared inputs. Scalar
// results are wrapped into an object keyed by the function's single output
// name (or "result"); map and struct results pass through unchanged.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	spec := r.specs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotRegistered(name)
	}
	filtered := make(map[string]any, len(spec.Inputs))
	for _, in := range spec.Inputs {
		if v, present := args[in.Name]; present {
			filtered[in.Name] = v
		}
	}
	result, err := fn(ctx, filtered)
	if err != nil {
		return nil, err
	}
	return wrapResult(result, spec.Outputs), nil
}

// Spec returns the declared signature of name.
func (r *Registry) Spec(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	return spec, ok
}

// Specs returns the specs in the given scopes, sorted by name. With no
// scopes it returns everything.
func (r *Registry) Specs(scopes ...Scope) []Spec {
	want := make(map[Scope]bool, len(scopes))
	for _, s := range scopes {
		want[s] = true
	}
	r.mu.RLock()
	out := make([]Spec, 0, len(r.specs))
	for _, spec := range r.specs {
		if len(scopes) == 0 || want[spec.Scope] {
			out = append(out, spec)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func wrapResult(result any, outputs []string) any {
	if isObject(result) {
		return result
	}
	key := "result"
	if len(outputs) == 1 {
		key = outputs[0]
	}
	return map[string]any{key: result}
}

func isObject(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Struct || rv.Kind() == reflect.Map
}

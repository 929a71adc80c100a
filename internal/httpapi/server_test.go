package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"projectd/internal/registry"
)

func newTestServer(t *testing.T) (*Server, *registry.Registry) {
	t.Helper()
	reg := registry.New(zerolog.Nop())
	reg.Register(registry.Spec{
		Name:    "text.upper",
		Scope:   registry.ScopeModules,
		Inputs:  []registry.Param{{Name: "text", Type: registry.TypeString, Required: true}},
		Outputs: []string{"result"},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		s, _ := args["text"].(string)
		return strings.ToUpper(s), nil
	})
	reg.Register(registry.Spec{
		Name:   "project.describe",
		Scope:  registry.ScopeModules,
		Inputs: []registry.Param{{Name: "project_name", Type: registry.TypeString, Required: true}},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return map[string]any{"name": args["project_name"]}, nil
	})
	reg.Register(registry.Spec{
		Name:   "bundle.size",
		Scope:  registry.ScopeWorkflow,
		Inputs: []registry.Param{{Name: "payload", Type: registry.TypeBytes, Required: true}},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		data, _ := args["payload"].([]byte)
		return len(data), nil
	})
	reg.Register(registry.Spec{
		Name:  "secret.peek",
		Scope: registry.ScopeInternal,
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return "hidden", nil
	})

	hub := NewHub(zerolog.Nop())
	return New(reg, hub, Config{}, zerolog.Nop()), reg
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("response not JSON: %v: %s", err, rec.Body.String())
		}
	}
	return rec, decoded
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := doJSON(t, s.Handler(), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if body["status"] != "healthy" || body["timestamp"] == "" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestFunctionRoutesByScope(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := doJSON(t, s.Handler(), http.MethodPost, "/api/modules/text/upper", `{"text":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %v", rec.Code, body)
	}
	if body["result"] != "HI" {
		t.Fatalf("unexpected result: %v", body)
	}

	// workflow scope lands under /api/workflow
	req := httptest.NewRequest(http.MethodPost, "/api/workflow/bundle/size", strings.NewReader("abcd"))
	req.Header.Set("Content-Type", "application/octet-stream")
	rec2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("raw body dispatch: status %d body %s", rec2.Code, rec2.Body.String())
	}
	var sized map[string]any
	if err := json.Unmarshal(rec2.Body.Bytes(), &sized); err != nil {
		t.Fatal(err)
	}
	if sized["result"] != float64(4) {
		t.Fatalf("expected size 4, got %v", sized)
	}

	// internal scope has no route
	req3 := httptest.NewRequest(http.MethodGet, "/api/modules/secret/peek", nil)
	rec3 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec3, req3)
	if rec3.Code != http.StatusNotFound {
		t.Fatalf("internal function exposed: %d", rec3.Code)
	}
}

func TestMissingRequiredField(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := doJSON(t, s.Handler(), http.MethodPost, "/api/modules/text/upper", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if body["error_code"] != "MISSING_REQUIRED" {
		t.Fatalf("unexpected error payload: %v", body)
	}
	missing, _ := body["missing"].([]any)
	if len(missing) != 1 || missing[0] != "text" {
		t.Fatalf("missing list wrong: %v", body["missing"])
	}
}

func TestTypeMismatchIs422(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := doJSON(t, s.Handler(), http.MethodPost, "/api/modules/text/upper", `{"text":5}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d: %v", rec.Code, body)
	}
	if body["error_code"] != "INVALID_TYPE" {
		t.Fatalf("unexpected error payload: %v", body)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := doJSON(t, s.Handler(), http.MethodPost, "/api/modules/text/upper", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if body["error_code"] != "INVALID_JSON" {
		t.Fatalf("unexpected error payload: %v", body)
	}
}

func TestQueryParamsAndCamelCaseFolding(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := doJSON(t, s.Handler(), http.MethodGet,
		"/api/modules/project/describe?projectName=demo", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %v", rec.Code, body)
	}
	if body["name"] != "demo" {
		t.Fatalf("camelCase query not folded: %v", body)
	}
}

func TestInfoEndpointListsFunctions(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := doJSON(t, s.Handler(), http.MethodGet, "/api/info", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if body["routes"] != float64(3) {
		t.Fatalf("expected 3 exposed routes, got %v", body["routes"])
	}
	functions, _ := body["functions"].([]any)
	for _, f := range functions {
		fn, _ := f.(map[string]any)
		if fn["name"] == "secret.peek" {
			t.Fatal("internal function listed in /api/info")
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	// record at least one request so the counter vec has a series
	doJSON(t, s.Handler(), http.MethodGet, "/api/health", "")
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "projectd_http_requests_total") {
		t.Fatal("expected projectd http metrics in exposition")
	}
}

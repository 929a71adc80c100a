package api

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"projectd/internal/httpapi"
	"projectd/internal/manager"
	"projectd/internal/registry"
)

func TestAllOperationsRegistered(t *testing.T) {
	reg := registry.New(zerolog.Nop())
	mgr := manager.New(manager.Config{ProjectsDir: t.TempDir()}, zerolog.Nop())
	hub := httpapi.NewHub(zerolog.Nop())

	RegisterProjectManager(reg, mgr)
	RegisterImageBinding(reg)
	RegisterGateway(reg, hub)

	want := []string{
		"project_manager.start_project",
		"project_manager.stop_project",
		"project_manager.restart_project",
		"project_manager.get_status",
		"project_manager.get_ports",
		"project_manager.health_check",
		"project_manager.get_managed_projects",
		"project_manager.import_project",
		"project_manager.delete_project",
		"project_manager.update_ports",
		"project_manager.refresh_projects",
		"project_manager.install_project",
		"project_manager.get_project_config",
		"project_manager.validate_config_script",
		"project_manager.embed_zip_into_image",
		"project_manager.extract_zip_from_image",
		"project_manager.import_project_from_image",
		"gateway.broadcast",
	}
	for _, name := range want {
		spec, ok := reg.Spec(name)
		if !ok {
			t.Fatalf("operation %s not registered", name)
		}
		if spec.Scope != registry.ScopeModules {
			t.Fatalf("operation %s has wrong scope", name)
		}
	}
	for _, name := range []string{"image_binding.embed", "image_binding.extract", "image_binding.info"} {
		spec, ok := reg.Spec(name)
		if !ok {
			t.Fatalf("workflow %s not registered", name)
		}
		if spec.Scope != registry.ScopeWorkflow {
			t.Fatalf("workflow %s has wrong scope", name)
		}
	}
}

func TestGetStatusUnknownProjectReturnsErrorObject(t *testing.T) {
	reg := registry.New(zerolog.Nop())
	mgr := manager.New(manager.Config{ProjectsDir: t.TempDir()}, zerolog.Nop())
	RegisterProjectManager(reg, mgr)

	res, err := reg.Call(context.Background(), "project_manager.get_status",
		map[string]any{"project_name": "ghost"})
	if err != nil {
		t.Fatalf("missing project must not escape as a transport error: %v", err)
	}
	body, ok := res.(map[string]any)
	if !ok || body["error"] == nil {
		t.Fatalf("expected an error object, got %v", res)
	}
}

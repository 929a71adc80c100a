// Package api registers the daemon's public operations with the function
// registry. Only what this package registers is reachable from the gateway;
// everything else stays internal.
package api

import (
	"context"
	"encoding/base64"
	"strconv"

	"projectd/internal/manager"
	"projectd/internal/registry"
)

// RegisterProjectManager exposes every orchestrator operation under the
// project_manager namespace.
func RegisterProjectManager(reg *registry.Registry, mgr *manager.Manager) {
	projectName := registry.Param{Name: "project_name", Type: registry.TypeString, Required: true}
	component := registry.Param{Name: "component", Type: registry.TypeString}

	reg.Register(registry.Spec{
		Name:        "project_manager.start_project",
		Scope:       registry.ScopeModules,
		Inputs:      []registry.Param{projectName, component},
		Description: "start a managed project's components",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return mgr.StartProject(argString(args, "project_name"), componentArg(args)), nil
	})

	reg.Register(registry.Spec{
		Name:        "project_manager.stop_project",
		Scope:       registry.ScopeModules,
		Inputs:      []registry.Param{projectName, component},
		Description: "stop a managed project's components",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return mgr.StopProject(argString(args, "project_name"), componentArg(args)), nil
	})

	reg.Register(registry.Spec{
		Name:        "project_manager.restart_project",
		Scope:       registry.ScopeModules,
		Inputs:      []registry.Param{projectName, component},
		Description: "restart a managed project's components",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return mgr.RestartProject(argString(args, "project_name"), componentArg(args)), nil
	})

	reg.Register(registry.Spec{
		Name:        "project_manager.get_status",
		Scope:       registry.ScopeModules,
		Inputs:      []registry.Param{{Name: "project_name", Type: registry.TypeString}},
		Description: "freshly probed status for one project or all of them",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		name := argString(args, "project_name")
		if name == "" {
			return mgr.AllStatuses(ctx), nil
		}
		st, err := mgr.Status(ctx, name)
		if err != nil {
			if manager.IsProjectNotFound(err) {
				return map[string]any{"error": err.Error()}, nil
			}
			return nil, err
		}
		return st, nil
	})

	reg.Register(registry.Spec{
		Name:        "project_manager.get_ports",
		Scope:       registry.ScopeModules,
		Description: "port reservations and the processes behind them",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return mgr.PortUsage(), nil
	})

	reg.Register(registry.Spec{
		Name:        "project_manager.health_check",
		Scope:       registry.ScopeModules,
		Description: "run a full health check across all projects",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return mgr.HealthCheck(ctx), nil
	})

	reg.Register(registry.Spec{
		Name:        "project_manager.get_managed_projects",
		Scope:       registry.ScopeModules,
		Outputs:     []string{"projects"},
		Description: "list every managed project with a fresh manifest",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return mgr.ManagedProjects(), nil
	})

	reg.Register(registry.Spec{
		Name:  "project_manager.import_project",
		Scope: registry.ScopeModules,
		Inputs: []registry.Param{
			{Name: "project_archive", Type: registry.TypeBytes, Required: true},
			{Name: "filename", Type: registry.TypeString},
		},
		Description: "import a project from a zip archive",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return mgr.ImportArchive(argBytes(args, "project_archive"), argString(args, "filename")), nil
	})

	reg.Register(registry.Spec{
		Name:        "project_manager.delete_project",
		Scope:       registry.ScopeModules,
		Inputs:      []registry.Param{projectName},
		Description: "stop a project and remove its directory",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return mgr.DeleteProject(argString(args, "project_name")), nil
	})

	reg.Register(registry.Spec{
		Name:  "project_manager.update_ports",
		Scope: registry.ScopeModules,
		Inputs: []registry.Param{
			projectName,
			{Name: "ports", Type: registry.TypeObject, Required: true},
		},
		Description: "reassign a project's port reservations",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		ports, _ := args["ports"].(map[string]any)
		return mgr.UpdatePorts(
			argString(args, "project_name"),
			argInt(ports["frontend_dev"]),
			argInt(ports["api_gateway"]),
		), nil
	})

	reg.Register(registry.Spec{
		Name:        "project_manager.refresh_projects",
		Scope:       registry.ScopeModules,
		Description: "rescan the projects root from scratch",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return mgr.Refresh(), nil
	})

	reg.Register(registry.Spec{
		Name:        "project_manager.install_project",
		Scope:       registry.ScopeModules,
		Inputs:      []registry.Param{projectName},
		Description: "check required tools and install dependencies",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return mgr.InstallDependencies(argString(args, "project_name")), nil
	})

	reg.Register(registry.Spec{
		Name:        "project_manager.get_project_config",
		Scope:       registry.ScopeModules,
		Inputs:      []registry.Param{projectName},
		Description: "a project's manifest, re-read from disk",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		mf, err := mgr.ProjectConfig(argString(args, "project_name"))
		if err != nil {
			if manager.IsProjectNotFound(err) {
				return map[string]any{"error": err.Error()}, nil
			}
			return nil, err
		}
		return mf, nil
	})

	reg.Register(registry.Spec{
		Name:        "project_manager.validate_config_script",
		Scope:       registry.ScopeModules,
		Inputs:      []registry.Param{projectName},
		Description: "statically validate a project's manifest",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return mgr.ValidateManifest(argString(args, "project_name")), nil
	})

	reg.Register(registry.Spec{
		Name:  "project_manager.embed_zip_into_image",
		Scope: registry.ScopeModules,
		Inputs: []registry.Param{
			{Name: "image", Type: registry.TypeBytes, Required: true},
			{Name: "archive", Type: registry.TypeBytes, Required: true},
			{Name: "image_name", Type: registry.TypeString},
			{Name: "archive_name", Type: registry.TypeString},
		},
		Description: "bundle a project archive into a PNG",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return mgr.EmbedArchive(
			argBytes(args, "image"),
			argBytes(args, "archive"),
			argString(args, "image_name"),
			argString(args, "archive_name"),
		), nil
	})

	reg.Register(registry.Spec{
		Name:  "project_manager.extract_zip_from_image",
		Scope: registry.ScopeModules,
		Inputs: []registry.Param{
			{Name: "image", Type: registry.TypeBytes, Required: true},
		},
		Description: "pull the embedded archive out of a PNG",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return mgr.ExtractArchive(argBytes(args, "image")), nil
	})

	reg.Register(registry.Spec{
		Name:  "project_manager.import_project_from_image",
		Scope: registry.ScopeModules,
		Inputs: []registry.Param{
			{Name: "image", Type: registry.TypeBytes, Required: true},
		},
		Description: "import the project archive embedded in a PNG",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return mgr.ImportFromImage(argBytes(args, "image")), nil
	})
}

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func componentArg(args map[string]any) string {
	if c := argString(args, "component"); c != "" {
		return c
	}
	return "all"
}

func argBytes(args map[string]any, key string) []byte {
	switch v := args[key].(type) {
	case []byte:
		return v
	case string:
		if data, err := base64.StdEncoding.DecodeString(v); err == nil {
			return data
		}
		return []byte(v)
	}
	return nil
}

func argInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

package api

import (
	"context"
	"encoding/base64"
	"errors"

	"projectd/internal/imagebind"
	"projectd/internal/registry"
)

// RegisterImageBinding exposes the PNG bundle codec as standalone workflow
// functions, independent of any managed project.
func RegisterImageBinding(reg *registry.Registry) {
	imageInput := registry.Param{Name: "image", Type: registry.TypeBytes, Required: true}

	reg.Register(registry.Spec{
		Name:  "image_binding.embed",
		Scope: registry.ScopeWorkflow,
		Inputs: []registry.Param{
			imageInput,
			{Name: "file", Type: registry.TypeBytes, Required: true},
			{Name: "filename", Type: registry.TypeString},
		},
		Outputs:     []string{"image_base64"},
		Description: "embed a file into a PNG bundle chunk",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		name := argString(args, "filename")
		if name == "" {
			name = "file.bin"
		}
		out, err := imagebind.Embed(argBytes(args, "image"), []imagebind.File{{
			Name: name,
			Data: argBytes(args, "file"),
		}})
		if err != nil {
			return nil, err
		}
		return base64.StdEncoding.EncodeToString(out), nil
	})

	reg.Register(registry.Spec{
		Name:        "image_binding.extract",
		Scope:       registry.ScopeWorkflow,
		Inputs:      []registry.Param{imageInput},
		Outputs:     []string{"files"},
		Description: "extract every embedded file from a PNG",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		files, err := imagebind.Extract(argBytes(args, "image"))
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(files))
		for _, f := range files {
			out = append(out, map[string]any{
				"name":           f.Name,
				"type":           f.Type,
				"size":           len(f.Data),
				"content_base64": base64.StdEncoding.EncodeToString(f.Data),
			})
		}
		return out, nil
	})

	reg.Register(registry.Spec{
		Name:        "image_binding.info",
		Scope:       registry.ScopeWorkflow,
		Inputs:      []registry.Param{imageInput},
		Description: "describe a PNG's embedded bundle without decoding it",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		image := argBytes(args, "image")
		infos, err := imagebind.ListEmbedded(image)
		if errors.Is(err, imagebind.ErrNoBundle) {
			return map[string]any{"has_embedded": false, "files": []any{}}, nil
		}
		if err != nil {
			return nil, err
		}
		return map[string]any{"has_embedded": true, "files": infos}, nil
	})
}

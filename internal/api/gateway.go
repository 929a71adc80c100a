package api

import (
	"context"

	"projectd/internal/httpapi"
	"projectd/internal/registry"
)

// RegisterGateway exposes gateway-level capabilities: pushing a message to
// every connected WebSocket client.
func RegisterGateway(reg *registry.Registry, hub *httpapi.Hub) {
	reg.Register(registry.Spec{
		Name:  "gateway.broadcast",
		Scope: registry.ScopeModules,
		Inputs: []registry.Param{
			{Name: "message", Type: registry.TypeObject, Required: true},
		},
		Description: "broadcast a message to all WebSocket clients",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		sent := hub.Broadcast(args["message"])
		return map[string]any{"broadcasted": true, "connections": sent}, nil
	})
}

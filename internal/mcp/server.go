package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return 1
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("musclemap", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("musclemap weekly muscle-volume server. Query per-muscle set-equivalents for a week or a day and classify exercise names into muscle groups. All data is scoped to the authenticated user."),
	)

	h := &handlers{ds: ds, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolWeeklyVolume, Handler: h.weeklyVolume},
		server.ServerTool{Tool: toolDailyVolume, Handler: h.dailyVolume},
		server.ServerTool{Tool: toolClassifyExercises, Handler: h.classifyExercises},
	)

	s.AddResources(
		server.ServerResource{Resource: resMuscleCatalog, Handler: h.muscleCatalog},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

var resMuscleCatalog = mcp.NewResource(
	"musclemap://muscle_catalog",
	"Muscle Catalog",
	mcp.WithResourceDescription("The 14 tracked muscle groups with labels, weekly target set ranges and body view"),
	mcp.WithMIMEType("application/json"),
)

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
	s := server.NewMCPServer("RepCycle", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("RepCycle strength training planner. Manage exercises with their one-rep max, track which muscle groups are trained in the current cycle, advance through the light/medium/heavy/deload rotation and compute target weights. All data is scoped to the authenticated user."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
		server.ServerTool{Tool: toolAddExercise, Handler: h.addExercise},
		server.ServerTool{Tool: toolUpdateExercise, Handler: h.updateExercise},
		server.ServerTool{Tool: toolDeleteExercise, Handler: h.deleteExercise},
		server.ServerTool{Tool: toolGetTrainingState, Handler: h.getTrainingState},
		server.ServerTool{Tool: toolMarkGroupDone, Handler: h.markGroupDone},
		server.ServerTool{Tool: toolMarkGroupRetrain, Handler: h.markGroupRetrain},
		server.ServerTool{Tool: toolFinishCycle, Handler: h.finishCycle},
		server.ServerTool{Tool: toolGetTrainingPlan, Handler: h.getTrainingPlan},
		server.ServerTool{Tool: toolComputeTargetWeight, Handler: h.computeTargetWeight},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resCatalog, Handler: h.catalog},
		server.ServerResource{Resource: resExport, Handler: h.export},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resCatalog = mcp.NewResource(
	"repcycle://catalog",
	"Catalog",
	mcp.WithResourceDescription("Muscle groups, the cycle rotation and each cycle's %1RM, rep range and set count"),
	mcp.WithMIMEType("application/json"),
)

var resExport = mcp.NewResource(
	"repcycle://export",
	"Export",
	mcp.WithResourceDescription("The full profile snapshot: exercises, trained groups and current cycle"),
	mcp.WithMIMEType("application/json"),
)

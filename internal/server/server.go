package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/meltforce/repcycle/internal/mcp"
	"github.com/meltforce/repcycle/internal/training"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	users    UserStore
	profiles *training.Profiles
	log      *slog.Logger
	apiKey   string
	whois    whoIser
	router   chi.Router
}

// New creates a new Server with all routes configured.
func New(users UserStore, profiles *training.Profiles, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		users:    users,
		profiles: profiles,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale switches identity from the local dev user to tailnet WhoIs.
func (s *Server) SetTailscale(lc whoIser) {
	s.whois = lc
}

// SetMCP mounts the MCP server at /mcp over streamable HTTP. Tool calls run
// as the caller resolved by the identity middleware.
func (s *Server) SetMCP(m *mcpserver.MCPServer) {
	h := mcpserver.NewStreamableHTTPServer(m,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return mcp.WithUserID(ctx, userIDFromContext(r))
		}),
	)
	s.router.Handle("/mcp", h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/me", s.handleMe)
		r.Get("/catalog", s.handleCatalog)

		r.Get("/exercises", s.handleListExercises)
		r.Post("/exercises", s.handleAddExercise)
		r.Patch("/exercises/{id}", s.handleUpdateExercise)
		r.Delete("/exercises/{id}", s.handleDeleteExercise)
		r.Get("/exercises/{id}/weight", s.handleTargetWeight)

		r.Get("/training", s.handleTrainingStatus)
		r.Post("/training/groups/{group}/done", s.handleGroupDone)
		r.Post("/training/groups/{group}/retrain", s.handleGroupRetrain)
		r.Post("/training/finish", s.handleFinish)
		r.Get("/training/plan", s.handlePlan)

		r.Get("/export", s.handleExport)
		// both replace the whole profile
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/import", s.handleImport)
			r.Post("/default-plan", s.handleDefaultPlan)
		})
	})
}

// identity picks Tailscale identity once a local client is set.
func (s *Server) identity(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.whois == nil {
			dev.ServeHTTP(w, r)
			return
		}
		TailscaleIdentity(s.whois, s.users, s.log)(next).ServeHTTP(w, r)
	})
}

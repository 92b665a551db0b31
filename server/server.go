package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/greenfolio/auth-core/csrf"
	"github.com/greenfolio/auth-core/internal/config"
	"github.com/greenfolio/auth-core/rbac"
	"github.com/greenfolio/auth-core/routes"
	"github.com/greenfolio/auth-core/sessions"
	"github.com/greenfolio/auth-core/token/refresh"
	"github.com/greenfolio/auth-core/users"
)

// Repos holds all repository dependencies for the Server.
type Repos struct {
	Users    users.UserRepo
	Sessions sessions.Repo
	Metrics  MetricsRepo
}

// Server hosts the auth and admin API surface.
type Server struct {
	env    string // Environment (e.g., "DEV", "production")
	mux    *http.ServeMux
	routes []string
	config config.Config
	repos  Repos
	tokens *refresh.Manager
	csrf   *csrf.Service
	gate   *rbac.Gate
	logger zerolog.Logger
}

// New wires the server from its collaborators and registers all routes.
func New(cfg config.Config, repos Repos, tokens *refresh.Manager, csrfService *csrf.Service) (*Server, error) {
	if repos.Users == nil {
		return nil, fmt.Errorf("[Server New] Users repo is required")
	}
	if repos.Sessions == nil {
		return nil, fmt.Errorf("[Server New] Sessions repo is required")
	}
	if repos.Metrics == nil {
		return nil, fmt.Errorf("[Server New] Metrics repo is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("[Server New] token manager is required")
	}
	if csrfService == nil {
		return nil, fmt.Errorf("[Server New] csrf service is required")
	}

	s := &Server{
		mux:    http.NewServeMux(),
		config: cfg,
		repos:  repos,
		tokens: tokens,
		csrf:   csrfService,
		logger: log.With().Str("component", "server").Logger(),
	}
	s.env = cfg.GetEnv()
	s.gate = rbac.NewGate(
		repos.Sessions,
		tokens,
		rbac.UserRepoRoleStore{Users: repos.Users},
		cfg.GetSessionCookieName(),
	)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) initRoutes() {
	// Auth API routes
	s.RegisterRouteFunc("POST "+routes.RouteAuthSignIn, ChainMiddleware(s.SignInHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+routes.RouteAuthSignOut, ChainMiddleware(s.SignOutHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+routes.RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+routes.RouteAuthSession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+routes.RouteAuthCSRF, ChainMiddleware(s.CSRFHandler(), s.APIMiddleware()...))

	// Admin API routes (role-gated; mutations additionally pass the CSRF
	// double-submit check)
	s.RegisterRouteFunc("GET "+routes.RouteAdminMetrics,
		ChainMiddleware(s.gate.Require(users.RoleAdmin, users.RoleModerator)(s.AdminMetricsHandler()), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+routes.RouteAdminUsers,
		ChainMiddleware(s.gate.Require(users.RoleAdmin)(s.AdminUsersListHandler()), s.APIMiddleware()...))
	s.RegisterRouteFunc("PATCH "+routes.RouteAdminUsers,
		ChainMiddleware(s.gate.Require(users.RoleAdmin)(s.AdminUsersPatchHandler()),
			append(s.APIMiddleware(), s.csrf.Middleware(s.gate.ResolveUser))...))
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.logger.Info().Str("method", parts[0]).Str("path", parts[1]).Msg("route registered")
		} else {
			s.logger.Info().Str("path", parts[0]).Msg("route registered")
		}
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"schoolhub/internal/auth"
	"schoolhub/internal/config"
	"schoolhub/internal/content"
	"schoolhub/internal/db"
	"schoolhub/internal/ws"
)

const (
	authRequestsPerMinute = 10
	wsUpgradesPerMinute   = 10
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Database *db.DB
	Auth     *auth.Manager
	Content  *content.Manager
	JWT      *auth.JWTService
	Hub      *ws.Hub
}

type Server struct {
	router *chi.Mux
	config *config.Config
}

func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	trust, err := parseProxyTrust(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("configuring trusted proxies: %w", err)
	}

	authLimiter := rateLimit(trust, authRequestsPerMinute, time.Minute)
	wsUpgradeLimiter := rateLimit(trust, wsUpgradesPerMinute, time.Minute)

	authHandler := NewAuthHandler(deps.Auth, deps.JWT, deps.Hub)
	userHandler := NewUserHandler(deps.Auth, deps.Hub)
	contentHandler := NewContentHandler(deps.Content)
	healthHandler := NewHealthHandler(deps.Database)
	authMiddleware := NewAuthMiddleware(deps.JWT, deps.Auth)
	wsHandler := NewWebSocketHandler(deps.Hub, authMiddleware, cfg.Server.AllowedOrigins)

	r := chi.NewRouter()
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	r.Use(securityHeadersMiddleware)

	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(maxBodySizeMiddleware(1 << 20)) // 1 MB

		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/register", authHandler.Register)
			r.With(authLimiter).Post("/login", authHandler.Login)
			r.Get("/session", authHandler.Session)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.Post("/logout", authHandler.Logout)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", userHandler.GetAll)
				r.Get("/me", userHandler.GetMe)
				r.Patch("/me", userHandler.UpdateMe)
				r.Delete("/me", userHandler.DeleteMe)
			})

			r.Route("/posts", func(r chi.Router) {
				r.Get("/", contentHandler.ListPosts)
				r.Post("/", contentHandler.CreatePost)
				r.Post("/{postID}/like", contentHandler.LikePost)
				r.Post("/{postID}/comments", contentHandler.AddComment)
			})

			r.Route("/clubs", func(r chi.Router) {
				r.Get("/", contentHandler.ListClubs)
				r.Post("/", contentHandler.CreateClub)
				r.Post("/{clubID}/members", contentHandler.JoinClub)
				r.Delete("/{clubID}/members", contentHandler.LeaveClub)
			})

			r.Route("/events", func(r chi.Router) {
				r.Get("/", contentHandler.ListEvents)
				r.Post("/", contentHandler.CreateEvent)
				r.Post("/{eventID}/rsvp", contentHandler.RsvpEvent)
				r.Delete("/{eventID}/rsvp", contentHandler.CancelRsvp)
			})

			r.Route("/chats", func(r chi.Router) {
				r.Get("/", contentHandler.ListChats)
				r.Post("/", contentHandler.CreateChat)
				r.Get("/{chatID}", contentHandler.GetChat)
				r.Post("/{chatID}/messages", contentHandler.SendMessage)
			})
		})
	})

	r.With(wsUpgradeLimiter).Get("/ws", wsHandler.ServeWS)

	return &Server{
		router: r,
		config: cfg,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// corsMiddleware admits requests without an Origin, from loopback origins and
// from the configured allow list. Entries ending in "*" match by prefix.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if !originAllowed(origin, allowedOrigins) {
					writeError(w, http.StatusForbidden, ErrCodeInvalidRequest, "Origin not allowed")
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(origin string, allowedOrigins []string) bool {
	if isLoopbackOrigin(origin) {
		return true
	}
	for _, allowed := range allowedOrigins {
		if originMatchesAllowed(origin, allowed) {
			return true
		}
	}
	return false
}

func originMatchesAllowed(origin, allowed string) bool {
	if prefix, ok := strings.CutSuffix(allowed, "*"); ok {
		return strings.HasPrefix(origin, prefix)
	}
	return origin == allowed
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return false
	}
	if u.Hostname() == "localhost" {
		return true
	}
	ip := net.ParseIP(u.Hostname())
	return ip != nil && ip.IsLoopback()
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}

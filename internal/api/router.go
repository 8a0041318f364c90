package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"notely/internal/auth"
	"notely/internal/blob"
	"notely/internal/config"
	"notely/internal/constants"
	"notely/internal/db"
	"notely/internal/notes"
)

const jsonBodyLimitBytes = 1 << 20

type ServerDeps struct {
	Config   *config.Config
	Database *db.DB
	Manager  *auth.Manager
	Notes    *notes.Service
	Blobs    blob.Store
	BlobRepo *db.BlobRepository
	// NotesQuery serves GraphQL note searches on GET /notes.
	NotesQuery http.Handler
	// HealthChecks are pinged by GET /health after the database check.
	HealthChecks []HealthCheck
}

type Server struct {
	router *chi.Mux
	config *config.Config
}

func NewServer(deps ServerDeps) (*Server, error) {
	cfg := deps.Config

	ipResolver, err := NewClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("initializing client ip resolver: %w", err)
	}

	authHandler := NewAuthHandler(deps.Manager)
	uploadHandler := NewUploadHandler(deps.Manager, deps.Blobs, deps.BlobRepo, cfg.Server.BaseURL)
	noteHandler := NewNoteHandler(deps.Notes)
	mediaHandler := NewMediaHandler(deps.BlobRepo, deps.Blobs)
	checks := append([]HealthCheck{{Name: "database", Ping: deps.Database.PingContext}}, deps.HealthChecks...)
	healthHandler := NewHealthHandler(checks...)

	authMiddleware := NewAuthMiddleware(deps.Manager)
	authLimiter := rateLimitMiddleware(cfg.RateLimit.AuthRequests, cfg.RateLimit.AuthWindow, ipResolver)

	r := chi.NewRouter()
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	r.Use(securityHeadersMiddleware)
	r.Use(rateLimitMiddleware(cfg.RateLimit.Requests, cfg.RateLimit.Window, ipResolver))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		notFound(w, fmt.Sprintf("Route %s %s not found", r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		notFound(w, fmt.Sprintf("Route %s %s not found", r.Method, r.URL.Path))
	})

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusOK, fmt.Sprintf("Welcome to %s API", cfg.Server.Name))
	})
	r.Get("/health", healthHandler.Check)
	r.Get("/media/{blobID}", mediaHandler.GetBlob)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(maxBodySizeMiddleware(jsonBodyLimitBytes))
			r.Use(authLimiter)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/forget-password", authHandler.ForgetPassword)
			r.Post("/reset-password", authHandler.ResetPassword)
		})

		// Logout reads the token itself so it can report revoked and
		// invalid tokens with its own messages.
		r.With(maxBodySizeMiddleware(jsonBodyLimitBytes)).Post("/logout", authHandler.Logout)

		r.With(authMiddleware.RequireAuth).Patch("/upload-profile-pic", uploadHandler.UploadProfilePicture)
	})

	r.Route("/notes", func(r chi.Router) {
		r.Use(authMiddleware.RequireAuth)
		r.Use(maxBodySizeMiddleware(jsonBodyLimitBytes))
		if deps.NotesQuery != nil {
			r.Get("/", deps.NotesQuery.ServeHTTP)
		}
		r.Post("/", noteHandler.Create)
		r.Delete("/{noteID}", noteHandler.Delete)
		r.Post("/{noteID}/summarize", noteHandler.Summarize)
	})

	return &Server{
		router: r,
		config: cfg,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// corsMiddleware rejects cross-origin requests from unknown origins with 403
// and lets cors.Handler answer preflights and set the response headers for
// the rest.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	headers := cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return isAllowedOrigin(origin, allowedOrigins)
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", TokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return func(next http.Handler) http.Handler {
		withHeaders := headers(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && !isAllowedOrigin(origin, allowedOrigins) {
				writeError(w, http.StatusForbidden, constants.ErrCodeInvalidRequest, "Not allowed by CORS")
				return
			}
			withHeaders.ServeHTTP(w, r)
		})
	}
}

func isAllowedOrigin(origin string, allowedOrigins []string) bool {
	if slices.Contains(allowedOrigins, origin) {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
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
		w.Header().Set("X-XSS-Protection", "0")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Cross-Origin-Resource-Policy", "same-origin")
		w.Header().Set("X-DNS-Prefetch-Control", "off")
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

// Package server provides the HTTP API for the gigmatch assignment service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonathan/gigmatch/internal/assignment"
	"github.com/jonathan/gigmatch/internal/logger"
	"github.com/jonathan/gigmatch/internal/server/middleware"
	"github.com/jonathan/gigmatch/internal/server/ratelimit"
	"github.com/jonathan/gigmatch/internal/sweep"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	manager    *assignment.Manager
	sweeper    *sweep.Sweeper
	jwtService *JWTService
	limiter    ratelimit.Limiter
	log        *logrus.Logger
	cfg        Config
}

// Config holds server configuration
type Config struct {
	Addr        string
	CORSOrigins []string
	CronSecret  string // enables POST /internal/sweep when set
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Manager *assignment.Manager
	Sweeper *sweep.Sweeper
	JWT     *JWTService
	Limiter ratelimit.Limiter // limits respond calls; nil disables
	Logger  *logrus.Logger
}

// New creates a new server instance
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		manager:    deps.Manager,
		sweeper:    deps.Sweeper,
		jwtService: deps.JWT,
		limiter:    deps.Limiter,
		log:        deps.Logger,
		cfg:        cfg,
	}
	if s.log == nil {
		s.log = logger.GetHTTPLogger()
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewMemoryLimiter(ratelimit.Config{})
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.withLogging)
	r.Use(chimw.Recoverer)
	r.Use(s.withCORS())

	r.Get("/health", s.handleHealth)

	r.With(middleware.CronSecret(s.cfg.CronSecret)).Post("/internal/sweep", s.handleSweep)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(s.jwtService.AsTokenValidator()))

		r.Route("/projects", func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleClient, middleware.RoleAdmin))
			r.Post("/", s.handleCreateProject)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetProject)
				r.Get("/batches/active", s.handleActiveBatch)
				r.Post("/batches", s.handleComposeBatch)
				r.Post("/refresh", s.handleRefreshBatch)
				r.Post("/invites", s.handleInviteDeveloper)
				r.Post("/close", s.handleCloseProject)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleDeveloper))
			r.With(s.withRateLimit).Post("/candidates/{id}/respond", s.handleRespond)
			r.Get("/developers/me/invitations", s.handlePendingInvitations)
			r.Get("/developers/me/activity", s.handleRecentActivity)
		})
	})

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.httpServer.Addr).Info("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if stopper, ok := s.limiter.(interface{ Stop() }); ok {
		stopper.Stop()
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) withCORS() func(http.Handler) http.Handler {
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: len(origins) > 0 && origins[0] != "*",
		MaxAge:           300,
	})
}

// withLogging logs each request with its status and duration.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		fields := logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  chimw.GetReqID(r.Context()),
		}
		entry := s.log.WithFields(fields)
		switch {
		case ww.Status() >= 500:
			entry.Error("request failed")
		case ww.Status() >= 400:
			entry.Warn("request rejected")
		default:
			entry.Debug("request served")
		}
	})
}

// withRateLimit limits callers by authenticated user, falling back to IP.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := s.extractClientID(r)
		allowed, info := s.limiter.Allow(r.Context(), key)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractClientID identifies the caller for rate limiting.
func (s *Server) extractClientID(r *http.Request) string {
	if userID, err := middleware.GetUserID(r); err == nil {
		return "user:" + userID.String()
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}
	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds())
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

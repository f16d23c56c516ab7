// Package server assembles the HTTP router and runs the API server.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/debemdeboas/war-room/internal/api"
	"github.com/debemdeboas/war-room/internal/auth"
	"github.com/debemdeboas/war-room/internal/config"
	"github.com/debemdeboas/war-room/internal/middleware"
	"github.com/debemdeboas/war-room/internal/routes"
	"github.com/debemdeboas/war-room/internal/sse"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

var serverLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	serverLogger = l
}

type Deps struct {
	Config   *config.Config
	API      *api.Handler
	Provider auth.Provider
	Events   *sse.SSEClients
	Metrics  *middleware.Metrics
	Logger   zerolog.Logger

	// Webhooks receives hosted auth provider events. Optional.
	Webhooks http.HandlerFunc
	// UploadsDir is served under /uploads/ when set.
	UploadsDir string
}

type Server struct {
	cfg    *config.Config
	router chi.Router
}

// New builds the router. ctx bounds background work owned by the router, such as rate limiter eviction.
func New(ctx context.Context, d Deps) *Server {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	r.Use(middleware.SecureHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.Server.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-None-Match"},
		ExposedHeaders:   []string{"ETag", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.NoCache)
	r.Use(d.Provider.Middleware())

	r.Get(routes.Health, api.Health)
	if d.Metrics != nil {
		r.Handle(routes.Metrics, d.Metrics.Handler())
		if d.Events != nil {
			d.Metrics.GaugeFunc("sse_clients", "Connected event stream clients.", func() float64 {
				return float64(d.Events.Len())
			})
		}
	}

	if d.Events != nil {
		r.Get(routes.Events, streamHandler(d.Events))
	}
	if d.Webhooks != nil {
		r.Post(routes.WebhookUser, d.Webhooks)
	}
	if d.UploadsDir != "" {
		r.Handle(routes.UploadsFiles, uploadsHandler(d.UploadsDir))
	}

	window := time.Minute
	d.API.Register(r, api.Limits{
		SignIn: middleware.NewRateLimiter(ctx, d.Config.RateLimit.SignInPerMinute, window).Limit,
		Public: middleware.NewRateLimiter(ctx, d.Config.RateLimit.PublicPerMinute, window).Limit,
	})

	return &Server{cfg: d.Config, router: r}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		serverLogger.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	serverLogger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// streamHandler lifts the write deadline so event streams outlive WriteTimeout.
func streamHandler(events *sse.SSEClients) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
			zerolog.Ctx(r.Context()).Debug().Err(err).Msg("Could not clear write deadline for event stream")
		}
		events.Handler(w, r)
	}
}

func uploadsHandler(dir string) http.Handler {
	fs := http.StripPrefix(config.UploadsUrlPath, http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "public, max-age=86400")
		fs.ServeHTTP(w, r)
	})
}

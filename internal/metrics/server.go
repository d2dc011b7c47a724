package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const defaultPort = 8088

// Config holds metrics server configuration
type Config struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled,omitempty" envconfig:"ENABLED" default:"true"`
	Host    string `mapstructure:"host" json:"host,omitempty" envconfig:"HOST"`
	Port    int    `mapstructure:"port" json:"port,omitempty" envconfig:"PORT" default:"8088"`
	Token   string `mapstructure:"token" json:"token,omitempty" envconfig:"TOKEN"`
}

// Addr returns the listen address, falling back to the default port.
func (c Config) Addr() string {
	port := c.Port
	if port <= 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// Server exposes /metrics and /health
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

func bearerAuthMiddleware(handler http.Handler, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providedToken := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if providedToken != token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func NewServer(cfg Config, logger *logrus.Logger, registry *prometheus.Registry) *Server {
	mux := http.NewServeMux()

	var metricsHandler http.Handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	if cfg.Token != "" {
		metricsHandler = bearerAuthMiddleware(metricsHandler, cfg.Token)
		logger.Info("Metrics endpoint authentication enabled")
	}
	mux.Handle("/metrics", metricsHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  15 * time.Second,
		},
		logger: logger.WithField("pkg", "metrics").Logger,
	}
}

// Run serves until ctx is done, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s.logger.Info("Shutting down metrics server")
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Errorf("metrics server shutdown error: %v", err)
		}
	}()

	s.logger.Infof("Starting metrics server on %s", s.server.Addr)
	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("s.server.ListenAndServe: %w", err)
	}
	return nil
}

// NewMetricsServer registers the given services with a fresh registry and
// returns a server for it, or nil when metrics are disabled.
func NewMetricsServer(cfg Config, services []string, logger *logrus.Logger) *Server {
	if !cfg.Enabled {
		logger.Info("Metrics server disabled")
		return nil
	}

	registry := prometheus.NewRegistry()
	RegisterMetrics(services, registry, logger)
	return NewServer(cfg, logger, registry)
}

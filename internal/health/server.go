// Package health runs the minimal liveness endpoint hosting platforms
// probe: any GET gets a 200 with a static body.
package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":10000"
	}
	return c
}

type Server struct {
	mu  sync.Mutex
	log zerolog.Logger
	srv *http.Server
	ln  net.Listener
}

func NewServer(log zerolog.Logger) *Server {
	return &Server{log: log.With().Str("component", "health").Logger()}
}

func (s *Server) Start(cfg Config) error {
	cfg = cfg.withDefaults()
	if !cfg.Enabled {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok: bot is running"))
	})

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.srv = srv
	s.ln = ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn().Err(err).Msg("health server stopped unexpectedly")
		}
	}()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("health endpoint listening")
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Addr returns the bound address, empty when not running. Tests use it to
// probe the listener.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/matheus3301/convo/internal/status"
)

// AdminServer serves /metrics and /healthz over HTTP when metrics_addr is set.
// A nil *AdminServer is valid and does nothing.
type AdminServer struct {
	srv      *http.Server
	listener net.Listener
	logger   *zap.Logger
}

// NewAdminServer binds the admin listener. It returns nil when disabled.
func NewAdminServer(p Params, machine *status.Machine, logger *zap.Logger) (*AdminServer, error) {
	if p.Config.MetricsAddr == "" {
		return nil, nil
	}
	listener, err := net.Listen("tcp", p.Config.MetricsAddr)
	if err != nil {
		return nil, err
	}
	return &AdminServer{
		srv: &http.Server{
			Handler:           NewAdminRouter(p.ProfileName, machine),
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: listener,
		logger:   logger,
	}, nil
}

// NewAdminRouter builds the admin HTTP routes.
func NewAdminRouter(profileName string, machine *status.Machine) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		state := machine.Current()
		code := http.StatusOK
		if state != status.Live {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"profile": profileName,
			"link":    state,
			"since":   machine.Since().UTC().Format(time.RFC3339),
		})
	})
	return r
}

// Addr returns the bound address, or "" when disabled.
func (a *AdminServer) Addr() string {
	if a == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Start serves in the background.
func (a *AdminServer) Start() {
	if a == nil {
		return
	}
	a.logger.Info("admin HTTP starting", zap.String("addr", a.Addr()))
	go func() {
		if err := a.srv.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("admin HTTP error", zap.Error(err))
		}
	}()
}

// Stop shuts the listener down.
func (a *AdminServer) Stop(ctx context.Context) {
	if a == nil {
		return
	}
	if err := a.srv.Shutdown(ctx); err != nil {
		a.logger.Warn("admin HTTP shutdown", zap.Error(err))
	}
}

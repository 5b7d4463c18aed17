package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// Probe reports extra fields for the health body. It must not block.
type Probe func() map[string]any

func NormalizeListen(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}

func Handler(component string, probe Probe) http.Handler {
	started := time.Now()
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status":         "ok",
			"component":      component,
			"uptime_seconds": int64(time.Since(started).Seconds()),
		}
		if probe != nil {
			for k, v := range probe() {
				body[k] = v
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	return mux
}

// StartServer listens on addr and serves /healthz until ctx is done or the
// returned server is shut down.
func StartServer(ctx context.Context, logger *slog.Logger, addr string, component string, probe Probe) (*http.Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:           Handler(component, probe),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("health_server_start", "addr", ln.Addr().String(), "component", component)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("health_server_error", "addr", addr, "error", err.Error())
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv, nil
}

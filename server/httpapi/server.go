// Package httpapi exposes the observability endpoints of the mail
// service: prometheus metrics and a liveness probe. It never exposes
// mailbox or account data.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plumemail/plume/logger"
)

// Server represents the HTTP observability server
type Server struct {
	addr   string
	server *http.Server
}

// ServerOptions holds configuration options for the HTTP server
type ServerOptions struct {
	Addr string
}

// New creates a new HTTP observability server
func New(options ServerOptions) *Server {
	s := &Server{addr: options.Addr}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the HTTP server until ctx is cancelled. Fatal errors are
// reported on errChan.
func Start(ctx context.Context, options ServerOptions, errChan chan error) {
	server := New(options)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.server.Shutdown(shutdownCtx)
	}()

	logger.Info("HTTP observability server listening", "addr", options.Addr)
	if err := server.server.ListenAndServe(); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		errChan <- err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

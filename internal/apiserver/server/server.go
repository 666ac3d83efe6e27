/*
Copyright 2026 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


// The file implements the local invoke server: the function endpoint plus health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"k8s.io/klog/v2"

	"github.com/llm-d-incubation/batch-job-submitter/internal/apiserver/common"
	"github.com/llm-d-incubation/batch-job-submitter/internal/apiserver/health"
	"github.com/llm-d-incubation/batch-job-submitter/internal/apiserver/invoke"
	"github.com/llm-d-incubation/batch-job-submitter/internal/apiserver/metrics"
	"github.com/llm-d-incubation/batch-job-submitter/internal/apiserver/middleware"
	"github.com/llm-d-incubation/batch-job-submitter/internal/submitter/config"
	utls "github.com/llm-d-incubation/batch-job-submitter/internal/util/tls"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	httpServer *http.Server
	tlsEnabled bool
}

// New builds the server. deps are checked by the health endpoint.
func New(cfg *config.SubmitterConfig, fn invoke.Function, deps map[string]health.Pinger) (*Server, error) {
	healthHandler := health.NewHealthApiHandler()
	for name, dep := range deps {
		healthHandler.WithDependency(name, dep)
	}

	mux := http.NewServeMux()
	for _, h := range []common.ApiHandler{
		invoke.NewInvokeApiHandler(fn),
		healthHandler,
		metrics.NewMetricsApiHandler(),
	} {
		common.RegisterHandler(mux, h)
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:              cfg.ListenAddress,
			Handler:           middleware.RequestMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	if cfg.TLSCertFile != "" {
		tlsConfig, err := utls.GetTlsConfig(utls.LOAD_TYPE_SERVER, false, cfg.TLSCertFile, cfg.TLSKeyFile, "")
		if err != nil {
			return nil, fmt.Errorf("failed to load tls config: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
		s.tlsEnabled = true
	}
	return s, nil
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	logger := klog.FromContext(ctx)

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		logger.Info("invoke server listening", "addr", ln.Addr().String(), "tls", s.tlsEnabled)
		if s.tlsEnabled {
			errCh <- s.httpServer.ServeTLS(ln, "", "")
		} else {
			errCh <- s.httpServer.Serve(ln)
		}
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down invoke server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down invoke server: %w", err)
	}
	return nil
}

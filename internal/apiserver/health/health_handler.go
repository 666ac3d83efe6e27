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


// The file provides HTTP handlers for health check endpoints.
// The endpoint reports OK when every registered dependency answers a ping.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/llm-d-incubation/batch-job-submitter/internal/apiserver/common"
	"github.com/llm-d-incubation/batch-job-submitter/internal/util/logging"
)

const (
	HealthPath = "/health"

	pingTimeout = 2 * time.Second
)

// Pinger is a dependency the server cannot work without.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthApiHandler struct {
	deps map[string]Pinger
}

func NewHealthApiHandler() *HealthApiHandler {
	return &HealthApiHandler{deps: map[string]Pinger{}}
}

// WithDependency adds a named dependency to the health check.
func (c *HealthApiHandler) WithDependency(name string, p Pinger) *HealthApiHandler {
	c.deps[name] = p
	return c
}

func (c *HealthApiHandler) GetRoutes() []common.Route {
	return []common.Route{
		{
			Method:      http.MethodGet,
			Pattern:     HealthPath,
			HandlerFunc: c.HealthHandler,
		},
		{
			Method:      http.MethodHead,
			Pattern:     HealthPath,
			HandlerFunc: c.HealthHandler,
		},
	}
}

func (c *HealthApiHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetRequestLogger(r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	for name, dep := range c.deps {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		err := dep.Ping(ctx)
		cancel()
		if err != nil {
			logger.Error(err, "Health check failed", "dependency", name)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("UNAVAILABLE: " + name))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Status int32

const (
	StatusStarting Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

const DefaultPort = 8090

type Response struct {
	Healthy bool `json:"healthy"`
	// Failing lists readiness conditions that are currently false. Only set
	// on /readyz.
	Failing []string `json:"failing,omitempty"`
}

type Config struct {
	Port int `mapstructure:"port"`
}

// Server answers /healthz, /readyz and /livez. Readiness needs the server
// to be healthy and every registered check to pass.
type Server struct {
	port   int
	status atomic.Int32
	checks sync.Map // map[string]*readyCheck
	server *http.Server
}

// readyCheck is evaluated on every /readyz request. ready holds the last
// result so changes can be logged.
type readyCheck struct {
	check func() bool
	ready atomic.Bool
}

func NewServer(config Config) *Server {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	return &Server{port: config.Port}
}

func (s *Server) SetStatus(status Status) {
	if Status(s.status.Swap(int32(status))) != status {
		slog.Info("Health status changed", slog.String("status", status.String()))
	}
}

func (s *Server) GetStatus() Status {
	return Status(s.status.Load())
}

// SetReadyCheck registers a named readiness gate, replacing any check of
// the same name. check is called on every /readyz request, so it must be
// cheap and safe for concurrent use.
func (s *Server) SetReadyCheck(name string, check func() bool) {
	rc := &readyCheck{check: check}
	rc.ready.Store(true)
	s.checks.Store(name, rc)
}

func (s *Server) failingConditions() []string {
	var failing []string
	s.checks.Range(func(key, value any) bool {
		name, rc := key.(string), value.(*readyCheck)
		ok := rc.check()
		if rc.ready.Swap(ok) != ok {
			slog.Info("Ready condition changed", slog.String("condition", name), slog.Bool("ready", ok))
		}
		if !ok {
			failing = append(failing, name)
		}
		return true
	})
	sort.Strings(failing)
	return failing
}

func (s *Server) IsReady() bool {
	return s.GetStatus() == StatusHealthy && len(s.failingConditions()) == 0
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeResponse(w, Response{Healthy: s.GetStatus() == StatusHealthy})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		failing := s.failingConditions()
		writeResponse(w, Response{
			Healthy: s.GetStatus() == StatusHealthy && len(failing) == 0,
			Failing: failing,
		})
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		writeResponse(w, Response{Healthy: s.GetStatus() != StatusUnhealthy})
	})
	return mux
}

// Start serves until ctx is cancelled, then shuts the listener down.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("Starting health check server", slog.Int("port", s.port))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("health check server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	return s.Stop()
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	slog.Info("Stopping health check server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func writeResponse(w http.ResponseWriter, response Response) {
	w.Header().Set("Content-Type", "application/json")
	if response.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode health check response", slog.Any("error", err))
	}
}

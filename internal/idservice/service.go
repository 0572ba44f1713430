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

// Package idservice exposes one shared generator over HTTP for callers that
// cannot link the idgen package directly.
package idservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/flakeid/internal/idgen"
	"github.com/cardinalhq/flakeid/internal/shard"
)

// MaxBatch is the most IDs one request may ask for: one millisecond's
// worth of sequence space.
const MaxBatch = int(idgen.MaxSequence) + 1

// ClockCondition is the readiness check that fails while the clock reads
// before the last millisecond an ID was issued for, i.e. while NextID would
// refuse with a rollback error.
const ClockCondition = "clock_monotonic"

// ReadinessReporter accepts readiness checks. *healthcheck.Server
// satisfies it.
type ReadinessReporter interface {
	SetReadyCheck(name string, check func() bool)
}

type Service struct {
	gen        *idgen.Generator
	sharder    *shard.Sharder
	readiness  ReadinessReporter
	requestIDs *idgen.ULIDGenerator
	meters     metric.MeterProvider
	metrics    *instruments
	tracer     trace.Tracer
}

type Option func(*Service)

func WithReadiness(r ReadinessReporter) Option {
	return func(s *Service) { s.readiness = r }
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(tracerName) }
}

// WithMeterProvider overrides the global OpenTelemetry meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meters = mp }
}

func NewService(gen *idgen.Generator, sharder *shard.Sharder, opts ...Option) (*Service, error) {
	if gen == nil {
		return nil, errors.New("generator cannot be nil")
	}
	if sharder == nil {
		return nil, errors.New("sharder cannot be nil")
	}

	s := &Service{
		gen:        gen,
		sharder:    sharder,
		requestIDs: idgen.NewULIDGenerator(),
		meters:     otel.GetMeterProvider(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}

	m, err := newInstruments(s.meters.Meter(meterName), gen)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	s.metrics = m

	if s.readiness != nil {
		s.readiness.SetReadyCheck(ClockCondition, s.clockMonotonic)
	}
	return s, nil
}

// Generate issues n IDs. It stops at the first clock rollback and returns
// the error without any of the IDs issued before it.
func (s *Service) Generate(ctx context.Context, n int) ([]idgen.ID, error) {
	if n < 1 || n > MaxBatch {
		return nil, fmt.Errorf("count must be between 1 and %d, got %d", MaxBatch, n)
	}

	ids := make([]idgen.ID, 0, n)
	for range n {
		id, err := s.gen.NextID()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Service) clockMonotonic() bool {
	return s.gen.ClockBehind() == 0
}

// Run serves the API on addr until ctx is cancelled.
func (s *Service) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting id service", slog.String("address", addr),
			slog.Int64("workerID", s.gen.WorkerID()),
			slog.Int64("dataCenterID", s.gen.DataCenterID()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down id service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

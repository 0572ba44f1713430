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

package idservice

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/flakeid/internal/idgen"
)

const (
	meterName  = "github.com/cardinalhq/flakeid/idservice"
	tracerName = "github.com/cardinalhq/flakeid/idservice"
)

type instruments struct {
	requestDuration metric.Float64Histogram
	attrs           attribute.Set
}

func newInstruments(meter metric.Meter, gen *idgen.Generator) (*instruments, error) {
	m := &instruments{
		attrs: attribute.NewSet(
			attribute.Int64("worker_id", gen.WorkerID()),
			attribute.Int64("datacenter_id", gen.DataCenterID()),
		),
	}

	issued, err := meter.Int64ObservableCounter(
		"flakeid.ids.issued",
		metric.WithDescription("IDs issued by this generator"),
		metric.WithUnit("{id}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ids.issued counter: %w", err)
	}

	rollbacks, err := meter.Int64ObservableCounter(
		"flakeid.clock.rollbacks",
		metric.WithDescription("Calls refused because the clock moved backwards"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create clock.rollbacks counter: %w", err)
	}

	exhausted, err := meter.Int64ObservableCounter(
		"flakeid.sequence.exhausted",
		metric.WithDescription("Times the per-millisecond sequence ran out and the generator waited for the clock"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sequence.exhausted counter: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := gen.Stats()
		set := metric.WithAttributeSet(m.attrs)
		o.ObserveInt64(issued, stats.Issued, set)
		o.ObserveInt64(rollbacks, stats.Rollbacks, set)
		o.ObserveInt64(exhausted, stats.SequenceExhausted, set)
		return nil
	}, issued, rollbacks, exhausted)
	if err != nil {
		return nil, fmt.Errorf("failed to register generator callback: %w", err)
	}

	m.requestDuration, err = meter.Float64Histogram(
		"flakeid.request.duration",
		metric.WithDescription("Duration of id service HTTP requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request.duration histogram: %w", err)
	}

	return m, nil
}

func (m *instruments) recordRequest(ctx context.Context, route string, status int, d time.Duration) {
	m.requestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("route", route),
		attribute.Int("status", status),
	))
}

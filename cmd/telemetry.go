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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/cardinalhq/flakeid/internal/idgen"
)

// myInstanceID identifies this process in logs. It is a ULID rather than a
// snowflake id so it does not consume the generator's sequence space.
var myInstanceID = idgen.NewULIDGenerator().Make(time.Now())

// setupTelemetry configures slog and, when enabled through the environment,
// the OpenTelemetry SDK. The returned context is cancelled on SIGINT or
// SIGTERM; the returned func flushes and shuts telemetry down.
func setupTelemetry(servicename string, gen *idgen.Generator) (context.Context, func() error, error) {
	doneCtx, doneCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	f := func() error {
		doneCancel()
		return nil
	}

	attrs := []any{
		slog.String("service", servicename),
		slog.String("instanceID", myInstanceID),
		slog.Int64("workerID", gen.WorkerID()),
		slog.Int64("dataCenterID", gen.DataCenterID()),
	}

	if os.Getenv("OTEL_SERVICE_NAME") != "" && os.Getenv("ENABLE_OTLP_TELEMETRY") == "true" {
		slog.SetDefault(slog.New(slogmulti.Fanout(
			newLogHandler(),
			otelslog.NewHandler(servicename),
		)).With(attrs...))
		slog.Info("OpenTelemetry exporting enabled")

		otelShutdown, err := telemetry.SetupOTelSDK(doneCtx)
		if err != nil {
			doneCancel()
			return doneCtx, nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
		}

		if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(10 * time.Second)); err != nil {
			slog.Warn("failed to start runtime metrics", slog.Any("error", err))
		}
		if err := host.Start(); err != nil {
			slog.Warn("failed to start host metrics", slog.Any("error", err))
		}

		f = func() error {
			defer doneCancel()
			slog.Info("Shutting down OpenTelemetry SDK")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return otelShutdown(ctx)
		}
	} else {
		slog.SetDefault(slog.New(newLogHandler()).With(attrs...))
	}

	return doneCtx, f, nil
}

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
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/flakeid/config"
	"github.com/cardinalhq/flakeid/internal/debugging"
	"github.com/cardinalhq/flakeid/internal/healthcheck"
	"github.com/cardinalhq/flakeid/internal/idservice"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve ids over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			gen, err := newGenerator(cfg)
			if err != nil {
				return err
			}
			sharder, err := newSharder(cfg)
			if err != nil {
				return err
			}

			doneCtx, doneFx, err := setupTelemetry("flakeid", gen)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			debugging.RunPprof(doneCtx, cfg.Debug.PprofPort)

			healthServer := healthcheck.NewServer(cfg.Health)
			svc, err := idservice.NewService(gen, sharder, idservice.WithReadiness(healthServer))
			if err != nil {
				return finishServe(fmt.Errorf("failed to create id service: %w", err), doneFx)
			}

			g, gctx := errgroup.WithContext(doneCtx)
			g.Go(func() error {
				return healthServer.Start(gctx)
			})
			g.Go(func() error {
				return svc.Run(gctx, ":"+strconv.Itoa(cfg.Server.Port))
			})

			healthServer.SetStatus(healthcheck.StatusHealthy)

			runErr := g.Wait()
			if doneCtx.Err() != nil {
				// Signalled shutdown; servers stopping is expected.
				runErr = nil
			} else if runErr != nil {
				healthServer.SetStatus(healthcheck.StatusUnhealthy)
			}
			return finishServe(runErr, doneFx)
		},
	}
	cmd.Flags().Int("port", config.DefaultServerPort, "port for the id API")
	cmd.Flags().Int("health-port", healthcheck.DefaultPort, "port for health checks")
	cmd.Flags().Int("pprof-port", 0, "port for pprof, 0 to disable")

	rootCmd.AddCommand(cmd)
}

// finishServe shuts telemetry down and reports its failure together with
// whatever stopped the servers.
func finishServe(runErr error, shutdownTelemetry func() error) error {
	var errs *multierror.Error
	if runErr != nil {
		errs = multierror.Append(errs, runErr)
	}
	if err := shutdownTelemetry(); err != nil {
		slog.Error("Error shutting down telemetry", slog.Any("error", err))
		errs = multierror.Append(errs, fmt.Errorf("failed to shut down telemetry: %w", err))
	}
	return errs.ErrorOrNil()
}

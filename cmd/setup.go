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

	"github.com/spf13/cobra"

	"github.com/cardinalhq/flakeid/config"
	"github.com/cardinalhq/flakeid/internal/idgen"
	"github.com/cardinalhq/flakeid/internal/shard"
)

// loadConfig reads config for cmd, with cmd's flags taking precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newGenerator(cfg *config.Config) (*idgen.Generator, error) {
	gen, err := idgen.New(cfg.Generator.WorkerID, cfg.Generator.DataCenterID)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}
	slog.Debug("Created generator",
		slog.Int64("workerID", gen.WorkerID()),
		slog.Int64("dataCenterID", gen.DataCenterID()))
	return gen, nil
}

func newSharder(cfg *config.Config) (*shard.Sharder, error) {
	s, err := shard.New(cfg.Shard.Tables)
	if err != nil {
		return nil, fmt.Errorf("failed to create sharder: %w", err)
	}
	return s, nil
}

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
	"bufio"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/flakeid/internal/idgen"
)

func init() {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print new ids, one per line",
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
			count, _ := c.Flags().GetInt("count")
			format, _ := c.Flags().GetString("format")
			return writeIDs(c.OutOrStdout(), gen, count, format)
		},
	}
	cmd.Flags().IntP("count", "n", 1, "number of ids to generate")
	cmd.Flags().String("format", "decimal", "output format: decimal or base36")

	rootCmd.AddCommand(cmd)
}

func writeIDs(w io.Writer, gen *idgen.Generator, count int, format string) error {
	if count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", count)
	}
	render, err := idFormatter(format)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	for range count {
		id, err := gen.NextID()
		if err != nil {
			_ = bw.Flush()
			return fmt.Errorf("failed to generate id: %w", err)
		}
		if _, err := fmt.Fprintln(bw, render(id)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func idFormatter(format string) (func(idgen.ID) string, error) {
	switch format {
	case "", "decimal":
		return idgen.ID.String, nil
	case "base36":
		return idgen.ID.Base36, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want decimal or base36)", format)
	}
}

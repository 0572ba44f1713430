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
	"io"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/flakeid/internal/idgen"
	"github.com/cardinalhq/flakeid/internal/shard"
)

func init() {
	cmd := &cobra.Command{
		Use:   "shard <table>",
		Short: "Print the numbered table a key or id belongs in",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			sharder, err := newSharder(cfg)
			if err != nil {
				return err
			}
			var key, rawID *string
			if c.Flags().Changed("key") {
				v, _ := c.Flags().GetString("key")
				key = &v
			}
			if c.Flags().Changed("id") {
				v, _ := c.Flags().GetString("id")
				rawID = &v
			}
			return writeShard(c.OutOrStdout(), sharder, args[0], key, rawID)
		},
	}
	cmd.Flags().String("key", "", "string key to place")
	cmd.Flags().String("id", "", "decimal id to place")
	cmd.MarkFlagsMutuallyExclusive("key", "id")
	cmd.MarkFlagsOneRequired("key", "id")

	rootCmd.AddCommand(cmd)
}

// writeShard prints the table for exactly one of key or rawID.
func writeShard(w io.Writer, sharder *shard.Sharder, base string, key, rawID *string) error {
	switch {
	case key != nil && rawID == nil:
		_, err := fmt.Fprintln(w, sharder.Table(base, *key))
		return err
	case rawID != nil && key == nil:
		id, err := idgen.ParseID(*rawID)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, sharder.TableForID(base, id))
		return err
	default:
		return fmt.Errorf("exactly one of key or id is required")
	}
}

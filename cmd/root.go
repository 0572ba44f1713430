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
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flakeid",
	Short: "Generate time-ordered 64-bit ids",
	Long: `Generate, decode and shard 64-bit time-ordered ids. Each running
generator must be given a (datacenter id, worker id) pair that no other
generator uses at the same time.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		slog.SetDefault(slog.New(newLogHandler()))
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.Int64("worker-id", 0, "worker id of this generator (0-31)")
	pf.Int64("datacenter-id", 0, "datacenter id of this generator (0-31)")
	pf.Int("shard-tables", 1, "number of tables a sharded table is split into")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// logOutput is where every command logs. Standard output is kept for
// command results so they can be piped.
var logOutput io.Writer = os.Stderr

func newLogHandler() slog.Handler {
	return slog.NewTextHandler(logOutput, logOptions())
}

// logOptions enables debug logging when DEBUG or FLAKEID_DEBUG is set.
func logOptions() *slog.HandlerOptions {
	if os.Getenv("DEBUG") != "" || os.Getenv("FLAKEID_DEBUG") != "" {
		return &slog.HandlerOptions{Level: slog.LevelDebug}
	}
	return nil
}

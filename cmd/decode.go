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
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/flakeid/internal/idgen"
)

func init() {
	cmd := &cobra.Command{
		Use:   "decode <id>...",
		Short: "Split ids into timestamp, datacenter, worker and sequence",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			base36, _ := c.Flags().GetBool("base36")
			asJSON, _ := c.Flags().GetBool("json")
			return writeDecoded(c.OutOrStdout(), args, base36, asJSON)
		},
	}
	cmd.Flags().Bool("base36", false, "ids are base36 encoded")
	cmd.Flags().Bool("json", false, "print one JSON object per id")

	rootCmd.AddCommand(cmd)
}

type decoded struct {
	ID   string `json:"id"`
	Time string `json:"time"`
	idgen.Parts
}

func writeDecoded(w io.Writer, args []string, base36, asJSON bool) error {
	parse := idgen.ParseID
	if base36 {
		parse = idgen.ParseBase36
	}

	rows := make([]decoded, 0, len(args))
	for _, arg := range args {
		id, err := parse(arg)
		if err != nil {
			return err
		}
		rows = append(rows, decoded{
			ID:    id.String(),
			Time:  id.Time().Format(time.RFC3339Nano),
			Parts: id.Decompose(),
		})
	}

	if asJSON {
		enc := json.NewEncoder(w)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tDATACENTER\tWORKER\tSEQUENCE")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", row.ID, row.Time, row.DataCenterID, row.WorkerID, row.Sequence)
	}
	return tw.Flush()
}

package receiver

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/compose-network/receiver-deployer/configs"
	"github.com/compose-network/receiver-deployer/internal/deployment"
	fsjson "github.com/compose-network/receiver-deployer/internal/infra/filesystem/json"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var RecordsCMD = &cobra.Command{
	Use:   "records",
	Short: "Show the contracts recorded per network",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configs.Values.Deployer.RecordsFile
		store := deployment.NewStore(path, fsjson.NewReader(), fsjson.NewWriter())

		record, err := store.Load()
		if err != nil {
			return err
		}

		return PrintRecord(cmd.OutOrStdout(), path, record)
	},
}

// PrintRecord writes one block per network with its recorded fields in sorted order.
// Entries that are not objects are printed as raw JSON.
func PrintRecord(w io.Writer, path string, record deployment.Record) error {
	if len(record) == 0 {
		fmt.Fprintf(w, "no deployments recorded in %s\n", path)
		return nil
	}

	network := color.New(color.FgCyan, color.Bold).SprintFunc()
	for _, name := range record.Networks() {
		fields, _, err := record.Fields(name)
		if err != nil {
			fmt.Fprintf(w, "%s %s\n", network(name+":"), record[name])
			continue
		}

		fmt.Fprintln(w, network(name))
		for _, key := range slices.Sorted(maps.Keys(fields)) {
			fmt.Fprintf(w, "  %s: %v\n", key, fields[key])
		}
	}

	return nil
}

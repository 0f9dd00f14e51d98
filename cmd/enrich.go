package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newEnrichCmd creates the 'enrich' subcommand.
func newEnrichCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Looks up IMDb ids for stored records",
		Long: `Reads the input store, searches for every record without an imdb_id and
writes all records, enriched where a match was found, to the output file.
Progress is saved every enrich.save_interval records.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config().Enrich
			if input == "" {
				input = cfg.Input
			}
			if output == "" {
				output = cfg.Output
			}

			in, err := appInstance.OpenStore(cmd.Context(), input)
			if err != nil {
				return err
			}
			records, err := in.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load %s: %w", input, err)
			}
			runner, err := appInstance.BuildEnricher(cmd.Context(), output)
			if err != nil {
				return err
			}
			_, stats, err := runner.Run(cmd.Context(), records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"skipped %d, fetched %d, failed %d of %d in %s; saved to %s\n",
				stats.Skipped, stats.Fetched, stats.Failed, stats.Total, stats.Duration.Round(time.Millisecond), output,
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "store to read (default enrich.input)")
	cmd.Flags().StringVar(&output, "output", "", "file to write (default enrich.output)")
	return cmd
}

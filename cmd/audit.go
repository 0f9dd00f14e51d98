package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newAuditCmd creates the 'audit' subcommand.
func newAuditCmd() *cobra.Command {
	var (
		fix  bool
		file string
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Reports duplicate records in the store and optionally removes them",
		Long: `Scans the record store for records repeating the URL or normalized title
of an earlier record. With --fix the first occurrence is kept, the original
file is backed up next to itself and the cleaned store is saved.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if file == "" {
				file = appInstance.Config().Store.Path
			}
			auditor, err := appInstance.BuildAuditor(cmd.Context(), file)
			if err != nil {
				return err
			}
			result, err := auditor.Run(cmd.Context(), fix)
			if err != nil {
				return fmt.Errorf("audit %s: %w", file, err)
			}

			out := cmd.OutOrStdout()
			r := result.Report
			fmt.Fprintf(out, "records: %d, unique urls: %d, unique titles: %d\n", r.Total, r.UniqueURLs, r.UniqueTitles)
			fmt.Fprintf(out, "url duplicates: %d, title duplicates: %d\n", len(r.URLDuplicates), len(r.TitleDuplicates))
			if result.BackupPath != "" {
				fmt.Fprintf(out, "removed %d, remaining %d, backup %s\n", result.Removed, result.Remaining, result.BackupPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&fix, "fix", "f", false, "remove duplicates, keeping the first occurrence")
	cmd.Flags().StringVar(&file, "file", "", "store to audit (default store.path)")
	return cmd
}

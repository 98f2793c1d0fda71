package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"opsledger/internal/adapters/export"
	"opsledger/internal/blob"
)

// NewAuditCommand creates the audit command group.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect, clear, and export the audit trail",
	}
	cmd.AddCommand(newAuditListCommand(rootOpts))
	cmd.AddCommand(newAuditClearCommand(rootOpts))
	cmd.AddCommand(newAuditExportCommand(rootOpts))
	return cmd
}

func newAuditListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List audit entries, most recent first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			entries := svc.ListAudit(cmd.Context())
			return emit(cmd, rootOpts, entries, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tACTION\tBY\tDETAILS")
				for _, e := range entries {
					details := ""
					if len(e.Details) > 0 {
						details = fmt.Sprintf("%v", e.Details)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.By, details)
				}
				_ = tw.Flush()
			})
		},
	}
}

func newAuditClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Discard all audit entries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			removed, err := svc.ClearAudit(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d entr(ies)\n", removed)
			return nil
		},
	}
}

func newAuditExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "export",
		Short:         "Write the audit trail to the configured blob store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			blobs, err := blob.Open(cmd.Context())
			if err != nil {
				return fmt.Errorf("open blob store: %w", err)
			}
			exporter := export.NewExporter(svc.Store(), blobs)
			info, err := exporter.ExportAudit(cmd.Context())
			if err != nil {
				return err
			}
			return emit(cmd, rootOpts, info, func(w io.Writer) {
				fmt.Fprintf(w, "exported %d bytes to %s (%s)\n", info.Size, info.Key, blobs.Driver())
			})
		},
	}
}

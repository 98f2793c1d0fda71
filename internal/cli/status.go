package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command, a one-screen dashboard.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show the dashboard: session, stats, and recent activity",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			snap, err := svc.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			return emit(cmd, rootOpts, snap, func(w io.Writer) {
				if snap.Session != nil {
					fmt.Fprintf(w, "signed in: %s (%s)\n", snap.Session.Name, snap.Session.Role)
				} else {
					fmt.Fprintln(w, "signed out")
				}
				fmt.Fprintf(w, "skus: %d  units on hand: %d  pending: %d  awaiting delivery: %d\n",
					snap.Stats.SKUs, snap.Stats.UnitsOnHand, snap.Stats.PendingRequests, snap.Stats.AwaitingDelivery)
				if len(snap.RecentActivity) > 0 {
					fmt.Fprintln(w, "recent activity:")
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					for _, e := range snap.RecentActivity {
						fmt.Fprintf(tw, "  %s\t%s\t%s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.By)
					}
					_ = tw.Flush()
				}
			})
		},
	}
}

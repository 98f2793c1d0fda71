package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"opsledger/internal/core"
)

// RequestCreateOptions holds flags for request create.
type RequestCreateOptions struct {
	*RootOptions
	Lines []string
}

// NewRequestCommand creates the request command group.
func NewRequestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "request",
		Aliases: []string{"pr"},
		Short:   "Author and progress purchase requests",
	}
	cmd.AddCommand(newRequestCreateCommand(rootOpts))
	cmd.AddCommand(newRequestListCommand(rootOpts))
	cmd.AddCommand(newRequestViewCommand(rootOpts))
	cmd.AddCommand(newRequestApproveCommand(rootOpts))
	cmd.AddCommand(newRequestDeliverCommand(rootOpts))
	return cmd
}

// parseLine decodes "item|sku|qty|unitCost". SKU and unit cost may be empty.
func parseLine(raw string) (core.RequestLine, error) {
	parts := strings.Split(raw, "|")
	if len(parts) < 3 || len(parts) > 4 {
		return core.RequestLine{}, fmt.Errorf("line %q: want item|sku|qty or item|sku|qty|unitCost", raw)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return core.RequestLine{}, fmt.Errorf("line %q: bad quantity: %w", raw, err)
	}
	line := core.RequestLine{
		Item: strings.TrimSpace(parts[0]),
		SKU:  strings.TrimSpace(parts[1]),
		Qty:  qty,
	}
	if len(parts) == 4 {
		line.UnitCost = strings.TrimSpace(parts[3])
	}
	return line, nil
}

func newRequestCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RequestCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "create",
		Short:         "Submit a purchase request",
		Example:       `  opsledger request create --line "Cement 40kg|CEM-40|40|7.50" --line "Pipe 50mm||12"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines := make([]core.RequestLine, 0, len(opts.Lines))
			for _, raw := range opts.Lines {
				line, err := parseLine(raw)
				if err != nil {
					return err
				}
				lines = append(lines, line)
			}

			svc, closer, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			created, _, err := svc.CreateRequest(cmd.Context(), lines)
			if err != nil {
				return err
			}
			return emit(cmd, rootOpts, created, func(w io.Writer) {
				fmt.Fprintf(w, "created %s with %d line(s)\n", created.ID, len(created.Lines))
			})
		},
	}

	cmd.Flags().StringArrayVar(&opts.Lines, "line", nil, `request line as "item|sku|qty|unitCost"`)
	_ = cmd.MarkFlagRequired("line")

	return cmd
}

func newRequestListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List purchase requests, most recent first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			requests := svc.ListRequests(cmd.Context())
			return emit(cmd, rootOpts, requests, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tREQUESTER\tSTATUS\tLINES\tCREATED")
				for _, r := range requests {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.Requester, r.Status, len(r.Lines), r.CreatedAt.Format("2006-01-02 15:04"))
				}
				_ = tw.Flush()
			})
		},
	}
}

func newRequestViewCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "view <id>",
		Short:         "Show a purchase request with its lines",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			request, err := svc.Request(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return emit(cmd, rootOpts, request, func(w io.Writer) {
				fmt.Fprintf(w, "%s by %s, %s, created %s\n", request.ID, request.Requester, request.Status, request.CreatedAt.Format("2006-01-02 15:04"))
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ITEM\tSKU\tQTY\tUNIT COST")
				for _, line := range request.Lines {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", line.Item, line.SKU, line.Qty, line.UnitCost)
				}
				_ = tw.Flush()
			})
		},
	}
}

func newRequestApproveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "approve <id>",
		Short:         "Approve a pending request (office role)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			approved, _, err := svc.ApproveRequest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return emit(cmd, rootOpts, approved, func(w io.Writer) {
				fmt.Fprintf(w, "approved %s\n", approved.ID)
			})
		},
	}
}

func newRequestDeliverCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "deliver <id>",
		Short:         "Record the delivery of an approved request",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			delivered, record, _, err := svc.DeliverRequest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := struct {
				Request  core.PurchaseRequest `json:"request"`
				Delivery core.Delivery        `json:"delivery"`
			}{delivered, record}
			return emit(cmd, rootOpts, out, func(w io.Writer) {
				fmt.Fprintf(w, "delivered %s, recorded delivery %s (%d line(s))\n", delivered.ID, record.ID, len(record.Lines))
			})
		},
	}
}

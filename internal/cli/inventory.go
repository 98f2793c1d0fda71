package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"opsledger/internal/core"
)

// InventoryItemOptions holds flags shared by inventory add and update.
type InventoryItemOptions struct {
	*RootOptions
	Name   string
	SKU    string
	OnHand int
	Min    int
	Max    int
}

// NewInventoryCommand creates the inventory command group.
func NewInventoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Inspect and maintain stocked items",
	}
	cmd.AddCommand(newInventoryListCommand(rootOpts))
	cmd.AddCommand(newInventoryAddCommand(rootOpts))
	cmd.AddCommand(newInventoryUpdateCommand(rootOpts))
	cmd.AddCommand(newInventoryRemoveCommand(rootOpts))
	return cmd
}

func newInventoryListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List inventory items",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			items := svc.ListInventory(cmd.Context())
			return emit(cmd, rootOpts, items, func(w io.Writer) {
				writeInventoryTable(w, items)
			})
		},
	}
}

func newInventoryAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InventoryItemOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "add",
		Short:         "Add a stocked item",
		Example:       `  opsledger inventory add --name "Gravel 20mm" --sku GRV-20 --onhand 80 --min 20 --max 300`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			created, _, err := svc.AddInventoryItem(cmd.Context(), core.InventoryItem{
				Name:   opts.Name,
				SKU:    opts.SKU,
				OnHand: opts.OnHand,
				Min:    opts.Min,
				Max:    opts.Max,
			})
			if err != nil {
				return err
			}
			return emit(cmd, rootOpts, created, func(w io.Writer) {
				fmt.Fprintf(w, "added %s (%s)\n", created.Name, created.ID)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "item name")
	cmd.Flags().StringVar(&opts.SKU, "sku", "", "stock keeping unit")
	cmd.Flags().IntVar(&opts.OnHand, "onhand", 0, "on-hand count")
	cmd.Flags().IntVar(&opts.Min, "min", 0, "reorder threshold")
	cmd.Flags().IntVar(&opts.Max, "max", 0, "stock ceiling")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newInventoryUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InventoryItemOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "update <id>",
		Short:         "Update a stocked item",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			flags := cmd.Flags()
			updated, _, err := svc.UpdateInventoryItem(cmd.Context(), args[0], func(item *core.InventoryItem) error {
				if flags.Changed("name") {
					item.Name = opts.Name
				}
				if flags.Changed("sku") {
					item.SKU = opts.SKU
				}
				if flags.Changed("onhand") {
					item.OnHand = opts.OnHand
				}
				if flags.Changed("min") {
					item.Min = opts.Min
				}
				if flags.Changed("max") {
					item.Max = opts.Max
				}
				return nil
			})
			if err != nil {
				return err
			}
			return emit(cmd, rootOpts, updated, func(w io.Writer) {
				fmt.Fprintf(w, "updated %s (%s)\n", updated.Name, updated.ID)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "item name")
	cmd.Flags().StringVar(&opts.SKU, "sku", "", "stock keeping unit")
	cmd.Flags().IntVar(&opts.OnHand, "onhand", 0, "on-hand count")
	cmd.Flags().IntVar(&opts.Min, "min", 0, "reorder threshold")
	cmd.Flags().IntVar(&opts.Max, "max", 0, "stock ceiling")

	return cmd
}

func newInventoryRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <id>",
		Short:         "Remove a stocked item",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			if _, err := svc.RemoveInventoryItem(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}

func writeInventoryTable(w io.Writer, items []core.InventoryItem) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSKU\tONHAND\tMIN\tMAX")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n", item.ID, item.Name, item.SKU, item.OnHand, item.Min, item.Max)
	}
	_ = tw.Flush()
}

// Package cli implements the opsledger command tree. Every invocation is
// single-shot: state, including the signed-in session, lives in the
// persistent store between runs.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"opsledger/internal/core"
	"opsledger/internal/infra/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the opsledger CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "opsledger",
		Short: "Inventory and purchase request tracker",
		Long: `opsledger tracks inventory, purchase requests, deliveries, and an
append-only audit trail. Site users author purchase requests, office users
approve them, and recorded deliveries replenish inventory.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewInventoryCommand(opts))
	cmd.AddCommand(NewRequestCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// openService wires the store, rules engine, and logger from the
// environment. The caller must invoke the returned closer.
func openService(opts *RootOptions) (*core.Service, func(), error) {
	cfg := logging.FromEnv()
	if opts.Verbose && cfg.Level == "" {
		cfg.Level = "debug"
	}
	log := logging.New(cfg)

	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	closer := func() {
		if c, ok := store.(io.Closer); ok {
			_ = c.Close()
		}
	}
	return core.NewService(store, core.WithLogger(log)), closer, nil
}

// emit renders v according to the selected format. The text renderer is used
// as-is; JSON marshals v with indentation.
func emit(cmd *cobra.Command, opts *RootOptions, v any, text func(w io.Writer)) error {
	if opts.Format == "json" {
		payload, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return nil
	}
	text(cmd.OutOrStdout())
	return nil
}

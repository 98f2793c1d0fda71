package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Password string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in and persist the session",
		Example: `  opsledger login site.alex --password password
  opsledger login office.mia --password password`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := openService(opts.RootOptions)
			if err != nil {
				return err
			}
			defer closer()

			session, err := svc.Authenticate(cmd.Context(), args[0], opts.Password)
			if err != nil {
				return err
			}
			return emit(cmd, opts.RootOptions, session, func(w io.Writer) {
				fmt.Fprintf(w, "signed in as %s (%s)\n", session.Name, session.Role)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Sign out and clear the session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer closer()

			if err := svc.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

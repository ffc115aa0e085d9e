package cli

import (
	"github.com/dmitrijs2005/famledger/internal/shared"
	"github.com/spf13/cobra"
)

// getPassword is an indirection so tests can skip the terminal.
var getPassword = GetPassword

func (r *runner) registerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "register <user>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := r.app
			password, err := getPassword(a.out)
			if err != nil {
				return err
			}
			defer shared.WipeByteArray(password)

			id, err := a.auth.Register(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			a.printf("Registered %s (%s)\n", args[0], id)
			return nil
		},
	}
}

func (r *runner) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login <user>",
		Short: "Log in; falls back to the cached credentials when offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := r.app
			password, err := getPassword(a.out)
			if err != nil {
				return err
			}
			defer shared.WipeByteArray(password)

			id, online, err := a.auth.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			a.dropSession(cmd.Context())

			mode := "online"
			if !online {
				mode = "offline"
			}
			a.printf("Logged in as %s (%s)\n", id.UserName, mode)
			return nil
		},
	}
}

func (r *runner) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached login; local data and unsynced changes stay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r.app.dropSession(cmd.Context())
			if err := r.app.auth.Logout(cmd.Context()); err != nil {
				return err
			}
			r.app.printf("Logged out\n")
			return nil
		},
	}
}

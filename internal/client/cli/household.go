package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (r *runner) householdCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "household",
		Aliases: []string{"hh"},
		Short:   "Manage households and members",
	}

	var role string
	addMember := &cobra.Command{
		Use:   "add-member <user>",
		Short: "Invite a user to the selected household",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := r.app
			if _, err := a.identity(cmd.Context()); err != nil {
				return err
			}
			h, err := a.households.Current(cmd.Context())
			if err != nil {
				return err
			}
			m, err := a.households.AddMember(cmd.Context(), h, args[0], role)
			if err != nil {
				return err
			}
			a.printf("Added %s as %s\n", args[0], m.Role)
			return nil
		},
	}
	addMember.Flags().StringVar(&role, "role", "", "member role (owner or member)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a household and select it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a := r.app
				if _, err := a.identity(cmd.Context()); err != nil {
					return err
				}
				h, err := a.households.Create(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				a.dropSession(cmd.Context())
				a.printf("Created household %s (%s)\n", h.Name, h.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "use <id>",
			Short: "Select the household later commands act on",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a := r.app
				if _, err := a.identity(cmd.Context()); err != nil {
					return err
				}
				if err := a.households.Use(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.dropSession(cmd.Context())
				a.printf("Using household %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List the households you belong to",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a := r.app
				if _, err := a.identity(cmd.Context()); err != nil {
					return err
				}
				list, err := a.households.List(cmd.Context())
				if err != nil {
					return err
				}
				current, _ := a.households.Current(cmd.Context())

				tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "\tID\tNAME")
				for _, h := range list {
					mark := ""
					if h.ID == current {
						mark = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", mark, h.ID, h.Name)
				}
				return tw.Flush()
			},
		},
		addMember,
		&cobra.Command{
			Use:   "members",
			Short: "Show the members of the selected household",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a := r.app
				h, err := a.households.Current(cmd.Context())
				if err != nil {
					return err
				}
				if _, err := a.identity(cmd.Context()); err == nil {
					if err := a.households.RefreshMembers(cmd.Context(), h); err != nil {
						a.log.Debug(cmd.Context(), "member refresh failed, showing cache", "error", err)
					}
				}
				list, err := a.households.Members(cmd.Context(), h)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "USER\tID\tROLE")
				for _, m := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", m.UserName, m.UserID, m.Role)
				}
				return tw.Flush()
			},
		},
	)
	return cmd
}

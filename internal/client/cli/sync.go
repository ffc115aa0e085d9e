package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/spf13/cobra"
)

func (r *runner) syncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push pending changes and pull remote ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := r.app.Session(cmd.Context())
			if err != nil {
				return err
			}
			res, err := s.Engine.TriggerSync(cmd.Context())
			if err != nil {
				return err
			}
			r.app.printf("synced %d, pulled %d, conflicts %d, failed %d\n",
				res.Synced, res.Pulled, res.Conflicts, res.Failed)
			return nil
		},
	}
}

func (r *runner) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync state, queue depth and counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := r.app
			s, err := a.Session(cmd.Context())
			if err != nil {
				return err
			}
			s.Reporter.SetOnline(cmd.Context(), a.auth.Ping(cmd.Context()) == nil)
			st, err := s.Reporter.Status(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(a.out, st, s.Reporter.Metrics())
			return nil
		},
	}
}

func (r *runner) conflictsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List open conflicts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := r.app.Session(cmd.Context())
			if err != nil {
				return err
			}
			list, err := s.Engine.Conflicts(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				r.app.printf("no conflicts\n")
				return nil
			}
			printConflicts(r.app.out, list)
			return nil
		},
	}
}

func (r *runner) resolveCommand() *cobra.Command {
	var merged string
	cmd := &cobra.Command{
		Use:   "resolve <conflict-id> <local|remote|merge>",
		Short: "Settle a conflict",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := r.app.Session(cmd.Context())
			if err != nil {
				return err
			}
			res, err := models.ParseResolution(args[1])
			if err != nil {
				return err
			}
			var payload json.RawMessage
			if merged != "" {
				if payload, err = parsePayload(merged); err != nil {
					return err
				}
			}
			rec, err := s.Engine.ResolveConflict(cmd.Context(), args[0], res, payload)
			if err != nil {
				return err
			}
			r.app.printf("Resolved %s: %s is at version %d\n", args[0], rec.ID, rec.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&merged, "payload", "", "merged JSON payload (merge only)")
	return cmd
}

func (r *runner) historyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the retained versions of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := r.app.Session(cmd.Context())
			if err != nil {
				return err
			}
			snaps, err := s.Engine.GetVersionHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSnapshots(r.app.out, snaps)
			return nil
		},
	}
}

func (r *runner) revertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revert <id> <version>",
		Short: "Write an old version's payload as a new version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := r.app.Session(cmd.Context())
			if err != nil {
				return err
			}
			v, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: version %q", common.ErrInvalidArgument, args[1])
			}
			rec, err := s.Engine.RevertToVersion(cmd.Context(), args[0], v)
			if err != nil {
				return err
			}
			r.app.printf("Reverted %s to the content of version %d (now version %d)\n", rec.ID, v, rec.Version)
			return nil
		},
	}
}

func (r *runner) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay connected, sync continuously and print events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := r.app
			s, err := a.Session(cmd.Context())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			events, cancel := s.Reporter.Subscribe(0)
			defer cancel()
			go func() {
				for e := range events {
					line := fmt.Sprintf("%s %s", e.At.Local().Format(timeLayout), e.Type)
					if e.EntityID != "" {
						line += fmt.Sprintf(" %s/%s", e.EntityType, e.EntityID)
					}
					if e.Synced > 0 {
						line += fmt.Sprintf(" synced=%d", e.Synced)
					}
					if e.Err != "" {
						line += " error=" + e.Err
					}
					a.printf("%s\n", line)
				}
			}()

			return s.Watch(ctx, a.config.SyncInterval)
		},
	}
}

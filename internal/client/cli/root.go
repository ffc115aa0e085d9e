package cli

import (
	"context"

	"github.com/dmitrijs2005/famledger/internal/client/config"
	"github.com/spf13/cobra"
)

// AppFactory builds the App once flags are parsed.
type AppFactory func(ctx context.Context, c *config.Config) (*App, error)

type runner struct {
	cfg     *config.Config
	factory AppFactory
	app     *App
}

func (r *runner) ensureApp(ctx context.Context) error {
	if r.app != nil {
		return nil
	}
	app, err := r.factory(ctx, r.cfg)
	if err != nil {
		return err
	}
	r.app = app
	return nil
}

func (r *runner) close(ctx context.Context) error {
	if r.app == nil {
		return nil
	}
	err := r.app.Close(ctx)
	r.app = nil
	return err
}

// Execute runs the command line args against a fresh command tree and
// releases the App afterwards.
func Execute(ctx context.Context, cfg *config.Config, factory AppFactory, args []string) error {
	r := &runner{cfg: cfg, factory: factory}
	defer r.close(context.WithoutCancel(ctx))

	root := r.rootCommand(true)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (r *runner) rootCommand(withShell bool) *cobra.Command {
	root := &cobra.Command{
		Use:           "famledger",
		Short:         "Shared household finance ledger that works offline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return r.ensureApp(cmd.Context())
		},
	}
	r.cfg.BindFlags(root.PersistentFlags())

	root.AddCommand(
		r.registerCommand(),
		r.loginCommand(),
		r.logoutCommand(),
		r.householdCommand(),
		r.addCommand(),
		r.updateCommand(),
		r.deleteCommand(),
		r.showCommand(),
		r.listCommand(),
		r.syncCommand(),
		r.statusCommand(),
		r.conflictsCommand(),
		r.resolveCommand(),
		r.historyCommand(),
		r.revertCommand(),
		r.watchCommand(),
		r.receiptCommand(),
	)
	if withShell {
		root.AddCommand(r.shellCommand())
	}
	return root
}

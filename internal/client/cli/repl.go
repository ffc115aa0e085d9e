package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// runREPL reads a line at a time, splits it into words and hands them to
// exec. The loop ends on EOF or "exit"/"quit". Command errors are printed
// and the loop carries on.
func runREPL(ctx context.Context, exec func(ctx context.Context, args []string) error, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("famledger %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "exit", "quit":
			printlnFn("Bye!")
			return
		case "shell":
			printlnFn("Already in the shell")
			continue
		}

		if err := exec(ctx, parts); err != nil {
			printlnFn("Error:", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (r *runner) shellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive mode; keeps the session and realtime feed open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := r.app
			if s, err := a.Session(cmd.Context()); err == nil {
				if err := s.Start(cmd.Context()); err != nil {
					a.log.Warn(cmd.Context(), "realtime not started", "error", err)
				}
			}

			printlnFn("FamLedger shell (type 'help' for commands)")
			exec := func(ctx context.Context, args []string) error {
				root := r.rootCommand(false)
				root.SetArgs(args)
				root.SetOut(a.out)
				return root.ExecuteContext(ctx)
			}
			runREPL(cmd.Context(), exec, func() string { return a.statusLine(cmd.Context()) }, bufio.NewScanner(os.Stdin))
			return nil
		},
	}
}

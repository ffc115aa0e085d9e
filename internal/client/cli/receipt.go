package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func (r *runner) receiptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receipt",
		Short: "Attach or fetch receipt scans",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "attach <record-id> <file>",
			Short: "Upload a file and link it from the record",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				a := r.app
				s, err := a.Session(cmd.Context())
				if err != nil {
					return err
				}
				rec, err := s.AttachReceipt(cmd.Context(), a.remote, args[0], args[1])
				if err != nil {
					return err
				}
				a.printf("Attached receipt to %s (version %d)\n", rec.ID, rec.Version)
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <record-id> <out-file>",
			Short: "Download the receipt linked from the record",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				a := r.app
				s, err := a.Session(cmd.Context())
				if err != nil {
					return err
				}
				f, err := os.Create(args[1])
				if err != nil {
					return err
				}
				defer f.Close()

				n, err := s.FetchReceipt(cmd.Context(), a.remote, args[0], f)
				if err != nil {
					return err
				}
				a.printf("Saved %d bytes to %s\n", n, args[1])
				return nil
			},
		},
	)
	return cmd
}

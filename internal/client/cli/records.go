package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/famledger/internal/client/pagination"
	"github.com/dmitrijs2005/famledger/internal/client/repositories/records"
	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/spf13/cobra"
)

// payloadArg takes the payload from args[i] or, when absent, from stdin.
func (a *App) payloadArg(args []string, i int) (json.RawMessage, error) {
	if len(args) > i {
		return parsePayload(args[i])
	}
	return GetPayload(a.reader, a.out)
}

func (r *runner) addCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <expense|budget|event|category> [payload]",
		Short: "Create a record",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := r.app
			s, err := a.Session(cmd.Context())
			if err != nil {
				return err
			}
			payload, err := a.payloadArg(args, 1)
			if err != nil {
				return err
			}
			rec, err := s.Gateway.Create(cmd.Context(), s.UserID, s.HouseholdID, args[0], payload)
			if err != nil {
				return err
			}
			a.printf("Created %s %s\n", rec.EntityType, rec.ID)
			return nil
		},
	}
}

func (r *runner) updateCommand() *cobra.Command {
	var version int64
	cmd := &cobra.Command{
		Use:   "update <id> [payload]",
		Short: "Replace the payload of a record",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := r.app
			s, err := a.Session(cmd.Context())
			if err != nil {
				return err
			}
			expected := version
			if expected == 0 {
				cur, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				expected = cur.Version
			}
			payload, err := a.payloadArg(args, 1)
			if err != nil {
				return err
			}
			rec, err := s.Gateway.Update(cmd.Context(), s.UserID, args[0], payload, expected)
			if err != nil {
				return err
			}
			a.printf("Updated %s to version %d\n", rec.ID, rec.Version)
			return nil
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "expected current version (defaults to the local one)")
	return cmd
}

func (r *runner) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := r.app.Session(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := s.Gateway.SoftDelete(cmd.Context(), s.UserID, args[0])
			if err != nil {
				return err
			}
			r.app.printf("Deleted %s (version %d)\n", rec.ID, rec.Version)
			return nil
		},
	}
}

func (r *runner) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record, deleted or not",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := r.app.Session(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRecord(r.app.out, rec)
			return nil
		},
	}
}

type listFlags struct {
	entityType string
	createdBy  string
	where      []string
	since      string
	deleted    bool
	sort       string
	desc       bool
	limit      int
	cursor     string
}

// filters turns the flag values into reader filters. A where value that
// parses as JSON is compared as that value, anything else as a string.
func (f *listFlags) filters() (pagination.Filters, error) {
	out := pagination.Filters{
		EntityType:     f.entityType,
		CreatedBy:      f.createdBy,
		IncludeDeleted: f.deleted,
	}
	for _, w := range f.where {
		k, v, ok := strings.Cut(w, "=")
		if !ok || k == "" {
			return out, fmt.Errorf("%w: --where wants field=value, got %q", common.ErrInvalidArgument, w)
		}
		if out.PayloadEquals == nil {
			out.PayloadEquals = map[string]any{}
		}
		var val any
		if err := json.Unmarshal([]byte(v), &val); err != nil {
			val = v
		}
		out.PayloadEquals[k] = val
	}
	if f.since != "" {
		t, err := time.Parse(time.RFC3339, f.since)
		if err != nil {
			return out, fmt.Errorf("%w: --since: %v", common.ErrInvalidArgument, err)
		}
		out.UpdatedSince = &t
	}
	return out, nil
}

func (r *runner) listCommand() *cobra.Command {
	f := &listFlags{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records one page at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := r.app
			s, err := a.Session(cmd.Context())
			if err != nil {
				return err
			}
			filters, err := f.filters()
			if err != nil {
				return err
			}
			dir := pagination.Asc
			if f.desc {
				dir = pagination.Desc
			}

			page, err := s.Reader.Page(cmd.Context(), s.HouseholdID, filters, f.sort, dir, f.limit, f.cursor)
			if err != nil {
				return err
			}
			printRecords(a.out, page.Items)
			if page.NextCursor != "" {
				a.printf("next page: --cursor %s\n", page.NextCursor)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.entityType, "type", "t", "", "only this entity type")
	fl.StringVar(&f.createdBy, "created-by", "", "only records created by this user id")
	fl.StringArrayVarP(&f.where, "where", "w", nil, "payload field=value (repeatable)")
	fl.StringVar(&f.since, "since", "", "only records updated at or after this RFC3339 time")
	fl.BoolVar(&f.deleted, "deleted", false, "include soft-deleted records")
	fl.StringVarP(&f.sort, "sort", "s", records.SortUpdatedAt, "created_at, updated_at, version or payload.<field>")
	fl.BoolVar(&f.desc, "desc", false, "sort descending")
	fl.IntVarP(&f.limit, "limit", "n", pagination.DefaultLimit, "page size")
	fl.StringVar(&f.cursor, "cursor", "", "cursor from the previous page")
	return cmd
}

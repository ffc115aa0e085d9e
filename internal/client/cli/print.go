package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/famledger/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

func printRecord(w io.Writer, r *models.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", r.ID)
	fmt.Fprintf(tw, "type:\t%s\n", r.EntityType)
	fmt.Fprintf(tw, "version:\t%d\n", r.Version)
	fmt.Fprintf(tw, "created:\t%s by %s\n", r.CreatedAt.Local().Format(timeLayout), r.CreatedBy)
	fmt.Fprintf(tw, "updated:\t%s by %s\n", r.UpdatedAt.Local().Format(timeLayout), r.UpdatedBy)
	if r.Deleted() {
		fmt.Fprintf(tw, "deleted:\t%s\n", r.DeletedAt.Local().Format(timeLayout))
	}
	fmt.Fprintf(tw, "payload:\t%s\n", r.Payload)
	_ = tw.Flush()
}

func printRecords(w io.Writer, items []*models.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tVER\tUPDATED\tPAYLOAD")
	for _, r := range items {
		payload := string(r.Payload)
		if r.Deleted() {
			payload = "(deleted) " + payload
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.EntityType, r.Version,
			r.UpdatedAt.Local().Format(timeLayout), payload)
	}
	_ = tw.Flush()
}

func printSnapshots(w io.Writer, snaps []*models.VersionSnapshot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VER\tACTOR\tRECORDED\tPAYLOAD")
	for _, s := range snaps {
		if s.Skipped() > 0 {
			fmt.Fprintf(tw, "%d-%d\t\t\t(not seen on this device)\n", s.PrevVersion+1, s.Version-1)
		}
		payload := string(s.Payload)
		if s.Deleted {
			payload = "(deleted)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Version, s.Actor, s.RecordedAt.Local().Format(timeLayout), payload)
	}
	_ = tw.Flush()
}

func printConflicts(w io.Writer, list []*models.Conflict) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENTITY\tLOCAL\tREMOTE\tDETECTED")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s/%s\tv%d %s\tv%d %s\t%s\n", c.ID, c.EntityType, c.EntityID,
			c.LocalVersion, side(c.LocalPayload, c.LocalDeleted),
			c.RemoteVersion, side(c.RemotePayload, c.RemoteDeleted),
			c.DetectedAt.Local().Format(timeLayout))
	}
	_ = tw.Flush()
}

func side(payload []byte, deleted bool) string {
	if deleted {
		return "(deleted)"
	}
	return string(payload)
}

func printStatus(w io.Writer, st *models.SyncStatus, m models.SyncMetrics) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "state:\t%s\n", st.State)
	fmt.Fprintf(tw, "online:\t%t\n", st.IsOnline)
	fmt.Fprintf(tw, "pending changes:\t%d\n", st.PendingChanges)
	fmt.Fprintf(tw, "conflicts:\t%d\n", st.Conflicts)
	last := "never"
	if st.LastSyncTime != nil {
		last = st.LastSyncTime.Local().Format(time.RFC3339)
	}
	fmt.Fprintf(tw, "last sync:\t%s\n", last)
	fmt.Fprintf(tw, "synced / detected / resolved / failures:\t%d / %d / %d / %d\n",
		m.MutationsSynced, m.ConflictsDetected, m.ConflictsResolved, m.SyncFailures)
	_ = tw.Flush()
}

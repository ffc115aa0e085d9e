// Package mutation is the only code path that writes records.
//
// Every accepted write runs in one SQLite transaction that:
//
//  1. loads the current record and checks it (exists, not deleted, actor is a
//     household member, expected version is current);
//  2. stores the record with version+1 and fresh update stamps;
//  3. appends exactly one version snapshot and applies history retention;
//  4. hands a pending mutation to the sync queue.
//
// The internal path used by the sync engine (ApplyRemote, Rebase) skips the
// access gate because the remote has already authorized those writes, and
// does not enqueue anything for the adopted remote state.
package mutation

// Package cli is the FamLedger command-line client.
//
// Every invocation builds a cobra command tree over a lazily created App:
// the server client, the local SQLite replica and the account services. The
// household session (gateway, sync engine, reporter, realtime) is opened on
// the first command that needs it.
//
// Commands:
//   - register, login (offline fallback), logout
//   - household create/use/list/add-member/members
//   - add, update, delete, show, list
//   - sync, status, conflicts, resolve, history, revert
//   - watch, receipt attach/get
//   - shell, an interactive prompt that runs the commands above
//
// Execute is the entry point; BuildApp is the production AppFactory.
package cli

// Package client talks to the FamLedger server.
//
// GRPCClient wraps the Ledger gRPC service: account calls (Register, GetSalt,
// Login), household management, the record channel used by the sync engine
// (FetchCurrentVersion, FetchRecord, ApplyWrite, Pull), receipt URLs and a
// health-based Ping. An interceptor attaches the access token to every call
// and transparently refreshes it once when the server reports it expired.
// Subscribe opens the server's websocket change feed.
//
// Errors come back as the sentinels of package common (ErrUnauthorized,
// ErrNotFound, ErrVersionConflict, ErrNetwork, ...), so callers match them
// with errors.Is.
package client

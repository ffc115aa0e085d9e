// Package records is the versioned record store of the local replica.
//
// Overview
//
// The store is deliberately dumb: Get, Put and Query move whole records in and
// out of SQLite and know nothing about versions, history or sync. Put is a
// single upsert statement, so a concurrent Get never observes a half-written
// record. Versioning rules live in the mutation gateway, which is the only
// caller allowed to Put.
//
// Page is the SQL backing of the paginated reader: keyset pagination over a
// single sort key with the record id as tie-breaker.
//
// Timestamps are stored as UTC unix nanoseconds. Payloads are stored as JSON
// text so that payload fields can be filtered and sorted with json_extract.
package records

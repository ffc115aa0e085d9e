// Package models defines server-side rows that never leave the server.
// Records, households and members use the shared internal/models types.
package models

import "time"

// User is an account. Verifier is derived client-side from the password
// and Salt; the password itself never reaches the server.
type User struct {
	ID        string
	UserName  string
	Salt      []byte
	Verifier  []byte
	CreatedAt time.Time
}

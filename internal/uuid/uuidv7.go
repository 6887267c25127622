// Package uuid generates the primary keys used by every table.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a time-ordered UUIDv7 string. UUIDv7 keeps inserts clustered
// at the end of the primary key index.
//
// If the random source fails, it falls back to a random UUIDv4.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.NewString()
	}
	return id.String()
}

// Valid reports whether s parses as a UUID of any version.
func Valid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}

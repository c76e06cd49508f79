// internal/storage/entry.go
package storage

import "github.com/google/uuid"

// newEntryID mints the identifier used to reference a single guest-submitted
// entry in approval transitions.
func newEntryID() string {
	return uuid.New().String()
}

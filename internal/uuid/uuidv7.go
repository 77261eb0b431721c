package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a UUIDv7 string. Primary keys are v7 so that ledger entries,
// stock movements and sales sort by creation time on their id alone.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		// The only failure mode is the random source; a v4 key keeps
		// inserts working and merely loses time ordering.
		return googleuuid.New().String()
	}
	return id.String()
}

package models

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// tempPrefix marks optimistic entries awaiting server acknowledgment.
const tempPrefix = "tmp-"

// NewTempID generates a sortable temporary id for an optimistic entry.
// The ULID keeps temporary ids ordered by creation time, which keeps the
// tail of the log stable while several sends are in flight.
func NewTempID() string {
	return tempPrefix + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// IsTempID reports whether id was generated by NewTempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}

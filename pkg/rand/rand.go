// Package rand generates identifiers for backend resources.
package rand

import (
	"strings"

	"github.com/google/uuid"
)

// UUIDHex returns a random UUID without dashes.
func UUIDHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ID16 returns a random 16 character hex identifier.
func ID16() string {
	return UUIDHex()[:16]
}

// UUID returns a random dashed UUID, used as record ID.
func UUID() string {
	return uuid.NewString()
}

package domain

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// ProvisionalIDPrefix marks client-generated temporary message ids.
// Durable ids are 24-char lowercase hex ObjectIDs assigned by the store,
// so the two formats can never collide.
const ProvisionalIDPrefix = "temp-"

// IsDurableID reports whether s has the shape of a store-assigned
// message id. Any id of unknown provenance (live-push payloads, URL
// params) must pass this check before it is used against persistence
// endpoints; a provisional-looking id routes to the local-only path.
func IsDurableID(s string) bool {
	if len(s) != 24 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// IsProvisionalID reports whether s is a client-generated temporary id.
func IsProvisionalID(s string) bool {
	return strings.HasPrefix(s, ProvisionalIDPrefix)
}

// NewProvisionalID generates a temporary message id for optimistic
// display. Uniqueness is only required within one client.
func NewProvisionalID() string {
	return fmt.Sprintf("%s%d-%04d", ProvisionalIDPrefix, time.Now().UnixMilli(), rand.Intn(10000))
}

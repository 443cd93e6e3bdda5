package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewSessionID builds a page-visit session identifier: a millisecond
// timestamp plus a random suffix, unique per visit and opaque to clients.
func NewSessionID() string {
	suffix := make([]byte, 5)
	if _, err := rand.Read(suffix); err != nil {
		// The timestamp alone still distinguishes sequential visits.
		return fmt.Sprintf("session_%d_0", time.Now().UnixMilli())
	}
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}

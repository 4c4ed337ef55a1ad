// Package eventid derives deterministic identifiers for custody journal
// events.
package eventid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Compute computes a deterministic event_id using SHA256.
// Formula: SHA256(vault_id|kind|seq|timestamp_ms)
// Returns hex-encoded hash (64 characters).
func Compute(vaultID, kind string, seq uint64, timestampMs int64) string {
	data := fmt.Sprintf("%s|%s|%d|%d", vaultID, kind, seq, timestampMs)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

package jobs

import (
	"crypto/rand"
	"encoding/hex"
)

// newApprovalToken returns 32 random bytes hex-encoded: unguessable, opaque,
// and looked up rather than parsed.
func newApprovalToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

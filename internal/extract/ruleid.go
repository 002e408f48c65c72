package extract

import (
	"crypto/sha1" // #nosec G505 -- non-cryptographic, stable ID derivation only
	"encoding/hex"
	"fmt"
)

// RuleID derives a stable deterministic rule key from a rule's document,
// section and body. Used when the extractor leaves a rule unkeyed, so
// reingesting identical bytes yields identical keys.
func RuleID(docID, section, body string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%s", docID, section, body))) // #nosec G401
	return hex.EncodeToString(sum[:])[:16]
}

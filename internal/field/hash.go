package field

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainSnapshot is the domain prefix for snapshot content tags.
// The version suffix enables future algorithm migration.
const DomainSnapshot = "inkwell/snapshot/v1"

// SnapshotETag computes a content-addressed revision tag for a field map.
// Format: SHA256(domain + 0x00 + canonical JSON). The null separator
// prevents domain/data boundary ambiguity.
//
// Two maps that Dirty would consider equal-modulo-emptiness may still hash
// differently (an absent field vs an empty string); stores should normalize
// before tagging if that distinction matters to them.
func SnapshotETag(m Map) (string, error) {
	canonical, err := MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("SnapshotETag: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(DomainSnapshot))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

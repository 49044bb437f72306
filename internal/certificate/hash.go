package certificate

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// HashPrefix marks stored integrity hashes with the algorithm used.
const HashPrefix = "sha256:"

// canonicalVersion versions the serialization below. Any change to field
// order, encoding or separator requires a new version string so hashes minted
// under v1 keep verifying.
const canonicalVersion = "wcert.v1"

// canonicalString is the fixed, documented serialization the integrity hash
// covers: version, sale id, buyer reference, property reference, unit count
// and issuance time (RFC3339Nano, UTC), pipe-separated in that order.
func canonicalString(c *Certificate) string {
	return strings.Join([]string{
		canonicalVersion,
		c.SaleID.String(),
		c.BuyerRef,
		c.PropertyRef,
		fmt.Sprintf("%d", c.UnitCount),
		c.IssuedAt.UTC().Format(time.RFC3339Nano),
	}, "|")
}

// ComputeIntegrityHash derives the certificate fingerprint from the immutable
// fields. Deterministic and collision-resistant; stored alongside the fields
// it covers so verification can recompute and compare without trusting any
// single stored value in isolation.
func ComputeIntegrityHash(c *Certificate) string {
	sum := sha256.Sum256([]byte(canonicalString(c)))
	return HashPrefix + hex.EncodeToString(sum[:])
}

// HashMatches recomputes the hash from the certificate's own stored fields
// and compares it to the stored hash in constant time.
func HashMatches(c *Certificate) bool {
	recomputed := ComputeIntegrityHash(c)
	return subtle.ConstantTimeCompare([]byte(recomputed), []byte(c.IntegrityHash)) == 1
}

// IsHashInput reports whether a verification query is a hash rather than a
// shareable code.
func IsHashInput(s string) bool {
	return strings.HasPrefix(s, HashPrefix)
}

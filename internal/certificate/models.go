package certificate

import (
	"time"

	"weekchain/pkg/domain"
)

// Certificate is the publicly verifiable record asserting that a specific
// sale was genuinely issued by the platform. All fields except Revoked are
// immutable after issuance; IntegrityHash is computed once at mint time and
// never recomputed in storage, so any later mismatch between the stored hash
// and a recomputation from the stored fields is itself a tamper signal.
type Certificate struct {
	Code          string
	SaleID        domain.SaleID
	BuyerRef      string
	PropertyRef   string
	UnitCount     int
	IssuedAt      time.Time
	IntegrityHash string
	Revoked       bool
}

// Verdict is the explicit outcome of a public verification call. Verdicts are
// values, never errors: the public page differentiates all four.
type Verdict string

const (
	VerdictValid    Verdict = "valid"
	VerdictNotFound Verdict = "not_found"
	VerdictRevoked  Verdict = "revoked"
	VerdictTampered Verdict = "tampered"
)

// VerificationResult is the public view returned to unauthenticated callers.
// It carries only fields already intended for public display; buyer identity
// and internal ids never appear here.
type VerificationResult struct {
	Verdict     Verdict
	PropertyRef string
	UnitCount   int
	IssuedAt    *time.Time
	Revoked     bool
}

// PublicListing is one row of the public transparency feed. BuyerRef is
// excluded by construction; the caller's redaction layer owns any
// initials-level identifier it wants to display.
type PublicListing struct {
	PropertyRef string
	UnitCount   int
	Season      string
	Amount      string
	IssuedAt    time.Time
	Verified    bool
}

package wasm

import (
	"errors"
	"fmt"

	"github.com/capiscio/wascap/pkg/token"
)

// Errors returned by the embedder.
var (
	// ErrMalformedModule indicates a structurally invalid module or more
	// than one claims section.
	ErrMalformedModule = errors.New("malformed module")

	// ErrHashMismatch indicates an authentic token that was issued for
	// different module bytes.
	ErrHashMismatch = errors.New("module hash does not match claims")
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedModule, fmt.Sprintf(format, args...))
}

// Outcome is the terminal state of verifying a module's claims.
type Outcome int

const (
	OutcomeUnchecked Outcome = iota
	OutcomeStructurallyInvalid
	OutcomeNoClaims
	OutcomeSignatureInvalid
	OutcomeHashMismatch
	OutcomeExpired
	OutcomeNotYetValid
	OutcomeValid
)

// String returns a stable identifier for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeStructurallyInvalid:
		return "STRUCTURALLY_INVALID"
	case OutcomeNoClaims:
		return "NO_CLAIMS"
	case OutcomeSignatureInvalid:
		return "SIGNATURE_INVALID"
	case OutcomeHashMismatch:
		return "HASH_MISMATCH"
	case OutcomeExpired:
		return "EXPIRED"
	case OutcomeNotYetValid:
		return "NOT_YET_VALID"
	case OutcomeValid:
		return "VALID"
	default:
		return "UNCHECKED"
	}
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// OutOfWindow reports whether o is an authentic token outside its
// validity window.
func (o Outcome) OutOfWindow() bool {
	return o == OutcomeExpired || o == OutcomeNotYetValid
}

// OutcomeOf maps a verification error to its outcome. A nil error maps
// to OutcomeUnchecked because the window flags are not visible here.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeUnchecked
	case errors.Is(err, ErrMalformedModule), errors.Is(err, token.ErrMalformed):
		return OutcomeStructurallyInvalid
	case errors.Is(err, token.ErrSignatureInvalid):
		return OutcomeSignatureInvalid
	case errors.Is(err, ErrHashMismatch):
		return OutcomeHashMismatch
	default:
		return OutcomeUnchecked
	}
}

func hashMismatch(recorded, actual string) error {
	if recorded == "" {
		return fmt.Errorf("%w: claims record no module hash, module hashes to %s", ErrHashMismatch, actual)
	}
	return fmt.Errorf("%w: claims bind %s, module hashes to %s", ErrHashMismatch, recorded, actual)
}

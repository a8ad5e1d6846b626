package wasm

import (
	"time"

	"github.com/capiscio/wascap/pkg/token"
	"go.uber.org/zap"
)

// Verification is the result of verifying a module's claims. Verify
// always returns one, even alongside an error, so callers can report
// what was found.
type Verification struct {
	// Outcome is the terminal state of the check.
	Outcome Outcome `json:"outcome"`

	// Token is the extracted token; empty when none was found.
	Token string `json:"token,omitempty"`

	// ModuleHash is the hash recomputed from the module bytes.
	ModuleHash string `json:"module_hash,omitempty"`

	// HashMatches is true when ModuleHash equals the hash in the claims.
	HashMatches bool `json:"hash_matches"`

	// Report is the token validation report. It is set for
	// HashMismatch, Expired, NotYetValid and Valid outcomes.
	Report *token.Report `json:"report,omitempty"`
}

// Valid reports whether the module may be trusted at the check time.
func (v *Verification) Valid() bool {
	return v.Outcome == OutcomeValid
}

// Verify extracts the token from module, validates it at now and checks
// that it is bound to these module bytes.
//
// Checks run in order: structure, signature, module hash, then the
// validity window. Window problems set Outcome to Expired or NotYetValid
// without an error. A module without claims yields OutcomeNoClaims and
// no error.
func (e *Embedder) Verify(module []byte, now time.Time) (*Verification, error) {
	v := &Verification{}

	x, err := e.Extract(module)
	if err != nil {
		v.Outcome = OutcomeStructurallyInvalid
		return v, err
	}
	if x == nil {
		v.Outcome = OutcomeNoClaims
		return v, nil
	}
	v.Token = x.Token
	v.ModuleHash = x.ModuleHash

	report, err := token.Validate(x.Token, now)
	if err != nil {
		v.Outcome = OutcomeOf(err)
		e.logger.Debug("token rejected", zap.Stringer("outcome", v.Outcome), zap.Error(err))
		return v, err
	}
	v.Report = report

	recorded := report.Claims.ModuleHash()
	v.HashMatches = recorded == x.ModuleHash
	if !v.HashMatches {
		v.Outcome = OutcomeHashMismatch
		return v, hashMismatch(recorded, x.ModuleHash)
	}

	switch {
	case report.Expired:
		v.Outcome = OutcomeExpired
	case report.CannotUseYet:
		v.Outcome = OutcomeNotYetValid
	default:
		v.Outcome = OutcomeValid
	}
	e.logger.Debug("verified module",
		zap.Stringer("outcome", v.Outcome),
		zap.String("subject", report.Claims.Subject),
	)
	return v, nil
}

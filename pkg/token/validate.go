package token

import (
	"encoding/json"
	"time"

	"github.com/capiscio/wascap/pkg/claims"
	"github.com/dustin/go-humanize"
)

// Report is the outcome of validating a token. Expired and CannotUseYet
// describe the validity window; they are not errors, so an authentic but
// out-of-window token still produces a Report.
type Report struct {
	// Claims are the verified claims.
	Claims *claims.Claims `json:"claims"`

	// SignatureValid is true for every Report returned without error.
	SignatureValid bool `json:"signature_valid"`

	// Expired is true when now is after the expiry.
	Expired bool `json:"expired"`

	// CannotUseYet is true when now is before not-before.
	CannotUseYet bool `json:"cannot_use_yet"`

	// ExpiresHuman is "never" or a time relative to the validation time.
	ExpiresHuman string `json:"expires_human"`

	// NotBeforeHuman is "immediately" or a time relative to the validation time.
	NotBeforeHuman string `json:"not_before_human"`
}

// InWindow reports whether the token is usable at the validation time.
func (r *Report) InWindow() bool {
	return !r.Expired && !r.CannotUseYet
}

// Validate parses tok, verifies its signature against the issuer's
// public identifier and evaluates the validity window at now.
//
// Errors are ErrMalformed (structure, encoding or incomplete claims) and
// ErrSignatureInvalid. Expired and not-yet-valid tokens are reported in
// the returned Report.
func Validate(tok string, now time.Time) (*Report, error) {
	// Step 1: Parse and read unverified claims to learn the issuer.
	jwsObj, unverified, sigErr, err := parse(tok)
	if err != nil {
		return nil, err
	}
	if sigErr != nil {
		return nil, WrapError(ErrCodeSignatureInvalid, "signature segment is not canonical base64url", sigErr)
	}

	// Step 2: Verify the signature with the issuer's own identifier.
	payload, err := jwsObj.Verify(issuerVerifier{issuer: unverified.Issuer})
	if err != nil {
		return nil, WrapError(ErrCodeSignatureInvalid, "signature verification failed", err)
	}

	// Step 3: Re-read the verified payload.
	var verified claims.Claims
	if err := json.Unmarshal(payload, &verified); err != nil {
		return nil, WrapError(ErrCodeMalformed, "failed to unmarshal verified claims", err)
	}

	// Step 4: Window flags, evaluated last.
	nowUnix := now.Unix()
	report := &Report{
		Claims:         &verified,
		SignatureValid: true,
		ExpiresHuman:   ExpiresHuman(&verified, now),
		NotBeforeHuman: NotBeforeHuman(&verified, now),
	}
	if verified.Expires != nil && nowUnix > *verified.Expires {
		report.Expired = true
	}
	if verified.NotBefore != nil && nowUnix < *verified.NotBefore {
		report.CannotUseYet = true
	}
	return report, nil
}

// ExpiresHuman renders the expiry of c relative to now, or "never".
func ExpiresHuman(c *claims.Claims, now time.Time) string {
	exp, ok := c.ExpiresAt()
	if !ok {
		return "never"
	}
	return relative(exp, now)
}

// NotBeforeHuman renders the not-before bound of c relative to now, or
// "immediately".
func NotBeforeHuman(c *claims.Claims, now time.Time) string {
	nbf, ok := c.NotBeforeAt()
	if !ok {
		return "immediately"
	}
	return relative(nbf, now)
}

func relative(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// Package token encodes capability claims as compact signed tokens and
// validates them.
//
// A token is a compact JWS: three unpadded base64url segments joined by
// dots. The protected header is always {"alg":"EdDSA","typ":"jwt"}; the
// payload is the JSON encoding of claims.Claims. The issuer's did:key is
// the verification key, so validation needs no key lookup.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/capiscio/wascap/pkg/claims"
	"github.com/go-jose/go-jose/v4"
)

// Type is the value of the "typ" header.
const Type = "jwt"

// Algorithm is the only accepted signing algorithm.
const Algorithm = jose.EdDSA

// Signer is the key material needed to issue a token. keys.KeyPair
// satisfies it.
type Signer interface {
	// PublicKey returns the public identifier that verifies signatures.
	PublicKey() string

	// Sign signs data. Verification-only key material returns an error.
	Sign(data []byte) ([]byte, error)
}

// Encode signs c with signer and returns the compact token.
//
// The signer's public identifier must equal c.Issuer, otherwise the
// resulting token could never validate.
func Encode(c *claims.Claims, signer Signer) (string, error) {
	if c == nil {
		return "", NewError(ErrCodeSigningFailed, "no claims to sign")
	}
	if signer == nil {
		return "", NewError(ErrCodeSigningFailed, "no signer")
	}
	if err := c.Check(); err != nil {
		return "", WrapError(ErrCodeSigningFailed, "claims are not signable", err)
	}
	if signer.PublicKey() != c.Issuer {
		return "", NewError(ErrCodeSigningFailed, fmt.Sprintf("signer %s is not the issuer %s", signer.PublicKey(), c.Issuer))
	}

	// 1. Create Signer
	jwsSigner, err := jose.NewSigner(
		jose.SigningKey{Algorithm: Algorithm, Key: opaqueSigner{signer}},
		(&jose.SignerOptions{}).WithType(Type),
	)
	if err != nil {
		return "", WrapError(ErrCodeSigningFailed, "failed to create signer", err)
	}

	// 2. Marshal Claims
	payload, err := json.Marshal(c)
	if err != nil {
		return "", WrapError(ErrCodeSigningFailed, "failed to marshal claims", err)
	}

	// 3. Sign
	jwsObj, err := jwsSigner.Sign(payload)
	if err != nil {
		return "", WrapError(ErrCodeSigningFailed, "failed to sign payload", err)
	}

	// 4. Serialize to Compact JWS
	tok, err := jwsObj.CompactSerialize()
	if err != nil {
		return "", WrapError(ErrCodeSigningFailed, "failed to serialize JWS", err)
	}
	return tok, nil
}

// DecodeUnverified parses tok and returns its claims without checking
// the signature. Use it for diagnostics only.
func DecodeUnverified(tok string) (*claims.Claims, error) {
	_, c, _, err := parse(tok)
	return c, err
}

// placeholderSignature stands in for a signature segment that is not
// canonical so the header and payload can still be parsed.
const placeholderSignature = "AA"

// parse checks the token structure and decodes the claims. Structural
// problems are returned as err. A signature segment that is not canonical
// base64url is reported separately as sigErr, since the segments around
// it are intact.
func parse(tok string) (jwsObj *jose.JSONWebSignature, c *claims.Claims, sigErr, err error) {
	segments := strings.Split(tok, ".")
	if len(segments) != 3 {
		return nil, nil, nil, NewError(ErrCodeMalformed, fmt.Sprintf("expected 3 segments, got %d", len(segments)))
	}

	compact := tok
	if sigErr = checkSignatureSegment(segments[2]); sigErr != nil {
		compact = segments[0] + "." + segments[1] + "." + placeholderSignature
	}

	jwsObj, err = jose.ParseSignedCompact(compact, []jose.SignatureAlgorithm{Algorithm})
	if err != nil {
		return nil, nil, nil, WrapError(ErrCodeMalformed, "failed to parse JWS", err)
	}
	if len(jwsObj.Signatures) != 1 {
		return nil, nil, nil, NewError(ErrCodeMalformed, fmt.Sprintf("expected one signature, got %d", len(jwsObj.Signatures)))
	}

	c = &claims.Claims{}
	if err := json.Unmarshal(jwsObj.UnsafePayloadWithoutVerification(), c); err != nil {
		return nil, nil, nil, WrapError(ErrCodeMalformed, "failed to unmarshal claims", err)
	}
	if err := c.Check(); err != nil {
		return nil, nil, nil, WrapError(ErrCodeMalformed, "claims are incomplete", err)
	}
	return jwsObj, c, sigErr, nil
}

// checkSignatureSegment accepts only canonical unpadded base64url: every
// character in the alphabet and unused trailing bits zero, so each
// distinct segment decodes to a distinct signature.
func checkSignatureSegment(seg string) error {
	// Strict decoding still skips CR and LF.
	if strings.ContainsAny(seg, "\r\n") {
		return errors.New("line break in signature segment")
	}
	_, err := base64.RawURLEncoding.Strict().DecodeString(seg)
	return err
}

package token

import (
	"errors"
	"fmt"

	"github.com/capiscio/wascap/pkg/keys"
	"github.com/go-jose/go-jose/v4"
)

// opaqueSigner lets go-jose sign through a Signer without seeing the
// private key.
type opaqueSigner struct {
	s Signer
}

func (o opaqueSigner) Public() *jose.JSONWebKey { return nil }

func (o opaqueSigner) Algs() []jose.SignatureAlgorithm {
	return []jose.SignatureAlgorithm{Algorithm}
}

func (o opaqueSigner) SignPayload(payload []byte, alg jose.SignatureAlgorithm) ([]byte, error) {
	if alg != Algorithm {
		return nil, fmt.Errorf("unsupported algorithm %s", alg)
	}
	return o.s.Sign(payload)
}

var errBadSignature = errors.New("signature does not match issuer key")

// issuerVerifier verifies against a public identifier through keys.Verify.
type issuerVerifier struct {
	issuer string
}

func (v issuerVerifier) VerifyPayload(payload, signature []byte, alg jose.SignatureAlgorithm) error {
	if alg != Algorithm {
		return fmt.Errorf("unsupported algorithm %s", alg)
	}
	ok, err := keys.Verify(v.issuer, payload, signature)
	if err != nil {
		return fmt.Errorf("issuer is not a verification key: %w", err)
	}
	if !ok {
		return errBadSignature
	}
	return nil
}

package wasm_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/capiscio/wascap/pkg/caps"
	"github.com/capiscio/wascap/pkg/claims"
	"github.com/capiscio/wascap/pkg/keys"
	"github.com/capiscio/wascap/pkg/token"
	"github.com/capiscio/wascap/pkg/wasm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEmbedExtractVerify(t *testing.T) {
	ids := newIdentities(t)
	unsigned := unsignedModule()
	original := append([]byte(nil), unsigned...)

	embedder := wasm.NewEmbedder(wasm.Options{Logger: zaptest.NewLogger(t)})
	signed, err := embedder.Embed(unsigned, ids.config(), ids.issuer)
	require.NoError(t, err)
	assert.Equal(t, original, unsigned, "input must not be mutated")
	assert.Greater(t, len(signed), len(unsigned))

	extracted, err := embedder.Extract(signed)
	require.NoError(t, err)
	require.NotNil(t, extracted)

	wantHash, err := wasm.ComputeHash(unsigned)
	require.NoError(t, err)
	assert.Equal(t, wantHash, extracted.ModuleHash)

	c, err := extracted.Claims()
	require.NoError(t, err)
	assert.Equal(t, ids.issuer.PublicKey(), c.Issuer)
	assert.Equal(t, ids.module.PublicKey(), c.Subject)
	assert.Equal(t, wantHash, c.ModuleHash())

	v, err := embedder.Verify(signed, time.Now())
	require.NoError(t, err)
	assert.Equal(t, wasm.OutcomeValid, v.Outcome)
	assert.True(t, v.Valid())
	assert.True(t, v.HashMatches)
	assert.Equal(t, extracted.Token, v.Token)
	require.NotNil(t, v.Report)
	assert.True(t, v.Report.SignatureValid)
	assert.Equal(t, "never", v.Report.ExpiresHuman)
	assert.Equal(t, "immediately", v.Report.NotBeforeHuman)
	assert.True(t, v.Report.Claims.HasCapability(caps.Messaging))
	assert.True(t, v.Report.Claims.HasCapability(caps.KeyValue))
}

func TestStrippedSignedModuleEqualsUnsigned(t *testing.T) {
	ids := newIdentities(t)
	unsigned := unsignedModule()

	signed, err := wasm.Embed(unsigned, ids.config(), ids.issuer)
	require.NoError(t, err)

	stripped, err := wasm.Strip(signed)
	require.NoError(t, err)
	assert.Equal(t, unsigned, stripped)

	signedHash, err := wasm.ComputeHash(signed)
	require.NoError(t, err)
	unsignedHash, err := wasm.ComputeHash(unsigned)
	require.NoError(t, err)
	assert.Equal(t, unsignedHash, signedHash)
	assert.Len(t, signedHash, 64)
}

func TestEmbedPlacement(t *testing.T) {
	ids := newIdentities(t)

	t.Run("after preamble", func(t *testing.T) {
		signed, err := wasm.Embed(unsignedModule(), ids.config(), ids.issuer)
		require.NoError(t, err)

		sections, err := wasm.Scan(signed)
		require.NoError(t, err)
		require.Len(t, sections, 6)
		assert.True(t, sections[0].IsClaims())
		assert.Equal(t, wasm.PreambleSize, sections[0].Start)
		assert.Equal(t, "name", sections[5].Name, "trailing name section stays last")
	})

	t.Run("after leading custom sections", func(t *testing.T) {
		dylink := wasm.EncodeCustomSection("dylink.0", []byte{0x01, 0x00})
		m := module(dylink, typeSection, funcSection, exportSection, codeSection)

		signed, err := wasm.Embed(m, ids.config(), ids.issuer)
		require.NoError(t, err)

		sections, err := wasm.Scan(signed)
		require.NoError(t, err)
		require.Len(t, sections, 6)
		assert.Equal(t, "dylink.0", sections[0].Name)
		assert.True(t, sections[1].IsClaims())
		assert.Equal(t, byte(1), sections[2].ID)
	})
}

func TestExtractIdempotent(t *testing.T) {
	ids := newIdentities(t)
	signed, err := wasm.Embed(unsignedModule(), ids.config(), ids.issuer)
	require.NoError(t, err)
	snapshot := append([]byte(nil), signed...)

	first, err := wasm.Extract(signed)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := wasm.Extract(signed)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, snapshot, signed)
}

func TestExtractNoClaims(t *testing.T) {
	extracted, err := wasm.Extract(unsignedModule())
	assert.NoError(t, err)
	assert.Nil(t, extracted)

	v, err := wasm.Verify(unsignedModule(), time.Now())
	assert.NoError(t, err)
	assert.Equal(t, wasm.OutcomeNoClaims, v.Outcome)
	assert.Nil(t, v.Report)
	assert.False(t, v.Valid())
}

func TestReembedReplaces(t *testing.T) {
	first := newIdentities(t)
	second := newIdentities(t)

	once, err := wasm.Embed(unsignedModule(), first.config(), first.issuer)
	require.NoError(t, err)

	cfg := second.config()
	cfg.Capabilities = []string{caps.HTTPServer}
	twice, err := wasm.Embed(once, cfg, second.issuer)
	require.NoError(t, err)

	assert.Len(t, claimsSections(t, twice), 1)

	v, err := wasm.Verify(twice, time.Now())
	require.NoError(t, err)
	assert.Equal(t, wasm.OutcomeValid, v.Outcome)
	assert.Equal(t, second.issuer.PublicKey(), v.Report.Claims.Issuer)
	assert.Equal(t, []string{caps.HTTPServer}, v.Report.Claims.Capabilities())

	unsignedHash, err := wasm.ComputeHash(unsignedModule())
	require.NoError(t, err)
	assert.Equal(t, unsignedHash, v.ModuleHash)
}

func TestDuplicateClaimsSections(t *testing.T) {
	ids := newIdentities(t)
	signed, err := wasm.Embed(unsignedModule(), ids.config(), ids.issuer)
	require.NoError(t, err)

	extracted, err := wasm.Extract(signed)
	require.NoError(t, err)
	doubled := append(append([]byte(nil), signed...), wasm.EncodeCustomSection(wasm.ClaimsSectionName, []byte(extracted.Token))...)

	_, err = wasm.Extract(doubled)
	assert.ErrorIs(t, err, wasm.ErrMalformedModule)

	v, err := wasm.Verify(doubled, time.Now())
	assert.ErrorIs(t, err, wasm.ErrMalformedModule)
	assert.Equal(t, wasm.OutcomeStructurallyInvalid, v.Outcome)
}

func TestTamperDetection(t *testing.T) {
	ids := newIdentities(t)
	signed, err := wasm.Embed(unsignedModule(), ids.config(), ids.issuer)
	require.NoError(t, err)

	sections, err := wasm.Scan(signed)
	require.NoError(t, err)

	var claimsSection wasm.Section
	for _, s := range sections {
		if s.IsClaims() {
			claimsSection = s
		}
	}

	inData := func(i int) bool {
		for _, s := range sections {
			if !s.IsClaims() && i >= s.DataStart && i < s.End {
				return true
			}
		}
		return false
	}

	for i := range signed {
		if i >= claimsSection.Start && i < claimsSection.End {
			continue
		}
		tampered := append([]byte(nil), signed...)
		tampered[i] ^= 0x01

		v, err := wasm.Verify(tampered, time.Now())
		assert.NotEqual(t, wasm.OutcomeValid, v.Outcome, "byte %d", i)
		if inData(i) {
			assert.ErrorIs(t, err, wasm.ErrHashMismatch, "byte %d", i)
			assert.Equal(t, wasm.OutcomeHashMismatch, v.Outcome, "byte %d", i)
			require.NotNil(t, v.Report, "byte %d", i)
			assert.True(t, v.Report.SignatureValid, "byte %d", i)
			assert.False(t, v.HashMatches, "byte %d", i)
		}
	}
}

func TestAppendedSectionDetected(t *testing.T) {
	ids := newIdentities(t)
	signed, err := wasm.Embed(unsignedModule(), ids.config(), ids.issuer)
	require.NoError(t, err)

	patched := append(append([]byte(nil), signed...), section(11, []byte{0x00})...)
	v, err := wasm.Verify(patched, time.Now())
	assert.ErrorIs(t, err, wasm.ErrHashMismatch)
	assert.Equal(t, wasm.OutcomeHashMismatch, v.Outcome)
}

func TestVerifyWindow(t *testing.T) {
	ids := newIdentities(t)
	T := time.Unix(1_700_000_000, 0)

	cfg := ids.config()
	cfg.NotBefore = T.Add(-10 * time.Second)
	cfg.Expires = T.Add(10 * time.Second)

	embedder := wasm.NewEmbedder(wasm.Options{Now: fixedClock(T.Add(-time.Hour))})
	signed, err := embedder.Embed(unsignedModule(), cfg, ids.issuer)
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want wasm.Outcome
	}{
		{"not yet valid", T.Add(-20 * time.Second), wasm.OutcomeNotYetValid},
		{"valid", T, wasm.OutcomeValid},
		{"expired", T.Add(20 * time.Second), wasm.OutcomeExpired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := embedder.Verify(signed, tc.now)
			require.NoError(t, err)
			assert.Equal(t, tc.want, v.Outcome)
			assert.True(t, v.HashMatches)
			assert.Equal(t, tc.want.OutOfWindow(), !v.Report.InWindow())
			assert.Equal(t, T.Add(-time.Hour).Unix(), v.Report.Claims.IssuedAt)
		})
	}
}

func TestVerifyForgedSignature(t *testing.T) {
	ids := newIdentities(t)
	signed, err := wasm.Embed(unsignedModule(), ids.config(), ids.issuer)
	require.NoError(t, err)

	extracted, err := wasm.Extract(signed)
	require.NoError(t, err)

	// The last characters of the signature segment, including the one
	// whose low bits are padding.
	tok := extracted.Token
	for i := len(tok) - 4; i < len(tok); i++ {
		for bit := 0; bit < 8; bit++ {
			forged := []byte(tok)
			forged[i] ^= 1 << bit

			v, err := wasm.Verify(withToken(t, signed, string(forged)), time.Now())
			assert.NotEqual(t, wasm.OutcomeValid, v.Outcome, "char %d bit %d", i, bit)
			if forged[i] == '.' {
				assert.Equal(t, wasm.OutcomeStructurallyInvalid, v.Outcome, "char %d bit %d", i, bit)
				continue
			}
			assert.ErrorIs(t, err, token.ErrSignatureInvalid, "char %d bit %d", i, bit)
			assert.Equal(t, wasm.OutcomeSignatureInvalid, v.Outcome, "char %d bit %d", i, bit)
			assert.Nil(t, v.Report, "char %d bit %d", i, bit)
		}
	}
}

func TestVerifyGarbageToken(t *testing.T) {
	v, err := wasm.Verify(withToken(t, unsignedModule(), "not a token"), time.Now())
	assert.ErrorIs(t, err, token.ErrMalformed)
	assert.Equal(t, wasm.OutcomeStructurallyInvalid, v.Outcome)
	assert.Equal(t, "not a token", v.Token)
}

func TestVerifyTokenNotBoundToModule(t *testing.T) {
	ids := newIdentities(t)

	// A valid token that was never produced by embedding.
	c, err := claims.New(ids.config(), time.Now())
	require.NoError(t, err)
	tok, err := token.Encode(c, ids.issuer)
	require.NoError(t, err)

	v, err := wasm.Verify(withToken(t, unsignedModule(), tok), time.Now())
	assert.ErrorIs(t, err, wasm.ErrHashMismatch)
	assert.Equal(t, wasm.OutcomeHashMismatch, v.Outcome)
	assert.True(t, v.Report.SignatureValid)
}

func TestTokenMovedToOtherModule(t *testing.T) {
	ids := newIdentities(t)
	signed, err := wasm.Embed(unsignedModule(), ids.config(), ids.issuer)
	require.NoError(t, err)
	extracted, err := wasm.Extract(signed)
	require.NoError(t, err)

	other := module(typeSection, funcSection, codeSection)
	v, err := wasm.Verify(withToken(t, other, extracted.Token), time.Now())
	assert.ErrorIs(t, err, wasm.ErrHashMismatch)
	assert.Equal(t, wasm.OutcomeHashMismatch, v.Outcome)
}

func TestEmbedClaims(t *testing.T) {
	ids := newIdentities(t)
	c, err := claims.New(ids.config(), time.Now())
	require.NoError(t, err)

	signed, err := wasm.EmbedClaims(unsignedModule(), c, ids.issuer)
	require.NoError(t, err)
	assert.Empty(t, c.ModuleHash(), "caller's claims must not be mutated")

	v, err := wasm.Verify(signed, time.Now())
	require.NoError(t, err)
	assert.Equal(t, wasm.OutcomeValid, v.Outcome)
	assert.Equal(t, c.ID, v.Report.Claims.ID)
}

func TestEmbedErrors(t *testing.T) {
	ids := newIdentities(t)

	t.Run("malformed module", func(t *testing.T) {
		_, err := wasm.Embed([]byte("not wasm"), ids.config(), ids.issuer)
		assert.ErrorIs(t, err, wasm.ErrMalformedModule)
	})

	t.Run("missing subject", func(t *testing.T) {
		cfg := ids.config()
		cfg.Subject = ""
		_, err := wasm.Embed(unsignedModule(), cfg, ids.issuer)
		assert.ErrorIs(t, err, claims.ErrMissingField)
	})

	t.Run("invalid window", func(t *testing.T) {
		cfg := ids.config()
		cfg.NotBefore = time.Now().Add(time.Hour)
		cfg.Expires = time.Now()
		_, err := wasm.Embed(unsignedModule(), cfg, ids.issuer)
		assert.ErrorIs(t, err, claims.ErrInvalidWindow)
	})

	t.Run("verification only key", func(t *testing.T) {
		pubOnly, err := keys.FromPublicKey(keys.RoleAccount, ids.issuer.PublicKey())
		require.NoError(t, err)
		_, err = wasm.Embed(unsignedModule(), ids.config(), pubOnly)
		assert.ErrorIs(t, err, token.ErrSigningFailure)
	})

	t.Run("nil claims", func(t *testing.T) {
		_, err := wasm.EmbedClaims(unsignedModule(), nil, ids.issuer)
		assert.ErrorIs(t, err, token.ErrSigningFailure)
	})
}

func TestEmbedDoesNotAliasInput(t *testing.T) {
	ids := newIdentities(t)
	unsigned := unsignedModule()

	signed, err := wasm.Embed(unsigned, ids.config(), ids.issuer)
	require.NoError(t, err)

	for i := range signed {
		signed[i] = 0
	}
	assert.True(t, bytes.Equal(unsignedModule(), unsigned))
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		err  error
		want wasm.Outcome
	}{
		{nil, wasm.OutcomeUnchecked},
		{wasm.ErrMalformedModule, wasm.OutcomeStructurallyInvalid},
		{token.ErrMalformed, wasm.OutcomeStructurallyInvalid},
		{token.ErrSignatureInvalid, wasm.OutcomeSignatureInvalid},
		{wasm.ErrHashMismatch, wasm.OutcomeHashMismatch},
		{assert.AnError, wasm.OutcomeUnchecked},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, wasm.OutcomeOf(tt.err))
		})
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "VALID", wasm.OutcomeValid.String())
	assert.Equal(t, "HASH_MISMATCH", wasm.OutcomeHashMismatch.String())
	assert.Equal(t, "UNCHECKED", wasm.Outcome(99).String())

	text, err := wasm.OutcomeExpired.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "EXPIRED", string(text))
	assert.True(t, wasm.OutcomeNotYetValid.OutOfWindow())
	assert.False(t, wasm.OutcomeValid.OutOfWindow())
}

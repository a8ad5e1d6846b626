package wasm_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/capiscio/wascap/pkg/caps"
	"github.com/capiscio/wascap/pkg/claims"
	"github.com/capiscio/wascap/pkg/keys"
	"github.com/capiscio/wascap/pkg/wasm"
	"github.com/stretchr/testify/require"
)

var preamble = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// section encodes one section with a LEB128 size prefix.
func section(id byte, payload []byte) []byte {
	out := []byte{id}
	out = binary.AppendUvarint(out, uint64(len(payload)))
	return append(out, payload...)
}

func module(sections ...[]byte) []byte {
	out := append([]byte(nil), preamble...)
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

var (
	// (type (func))
	typeSection = section(1, []byte{0x01, 0x60, 0x00, 0x00})
	// one function of type 0
	funcSection = section(3, []byte{0x01, 0x00})
	// (export "run" (func 0))
	exportSection = section(7, []byte{0x01, 0x03, 'r', 'u', 'n', 0x00, 0x00})
	// body: no locals, nop, end
	codeSection = section(10, []byte{0x01, 0x03, 0x00, 0x01, 0x0b})
	// name section with a module name subsection
	nameSection = wasm.EncodeCustomSection("name", []byte{0x00, 0x05, 0x04, 'l', 'o', 'o', 'p'})
)

// unsignedModule is a small valid module ending with a name section.
func unsignedModule() []byte {
	return module(typeSection, funcSection, exportSection, codeSection, nameSection)
}

type identities struct {
	issuer *keys.KeyPair
	module *keys.KeyPair
}

func newIdentities(t *testing.T) identities {
	t.Helper()
	issuer, err := keys.NewAccount()
	require.NoError(t, err)
	mod, err := keys.NewModule()
	require.NoError(t, err)
	return identities{issuer: issuer, module: mod}
}

func (id identities) config() claims.Config {
	return claims.Config{
		Issuer:       id.issuer.PublicKey(),
		Subject:      id.module.PublicKey(),
		Capabilities: []string{caps.Messaging, caps.KeyValue},
		Tags:         []string{"fixture"},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// claimsSections returns the claims sections in m.
func claimsSections(t *testing.T, m []byte) []wasm.Section {
	t.Helper()
	sections, err := wasm.Scan(m)
	require.NoError(t, err)
	var out []wasm.Section
	for _, s := range sections {
		if s.IsClaims() {
			out = append(out, s)
		}
	}
	return out
}

// withToken replaces the claims in m with a raw claims section holding tok.
func withToken(t *testing.T, m []byte, tok string) []byte {
	t.Helper()
	stripped, err := wasm.Strip(m)
	require.NoError(t, err)
	out := append([]byte(nil), stripped[:wasm.PreambleSize]...)
	out = append(out, wasm.EncodeCustomSection(wasm.ClaimsSectionName, []byte(tok))...)
	return append(out, stripped[wasm.PreambleSize:]...)
}

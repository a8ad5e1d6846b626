// Package wasm embeds capability tokens in WebAssembly modules and
// extracts and verifies them.
//
// The token lives in a custom section named "jwt". Custom sections carry
// no executable meaning, so a signed module runs exactly like the
// unsigned one. The token records a SHA-256 hash of the module with the
// claims section removed; Verify recomputes that hash to detect bytes
// changed after signing.
//
// Only the section table is read: preamble plus length-prefixed sections.
// Instructions are never decoded.
package wasm

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/capiscio/wascap/pkg/claims"
	"github.com/capiscio/wascap/pkg/token"
	"go.uber.org/zap"
)

// Options configures an Embedder.
type Options struct {
	// Logger receives debug output. Nil disables logging.
	Logger *zap.Logger

	// Now overrides the issue time stamped on embedded claims.
	Now func() time.Time
}

// Embedder embeds, extracts and verifies claims tokens. It holds no
// mutable state and is safe for concurrent use.
type Embedder struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewEmbedder creates an Embedder.
func NewEmbedder(opts Options) *Embedder {
	e := &Embedder{logger: opts.Logger, now: opts.Now}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

var defaultEmbedder = NewEmbedder(Options{})

// Extracted is a token found in a module.
type Extracted struct {
	// Token is the compact token string from the claims section.
	Token string

	// ModuleHash is the hash of the module with the claims section
	// removed, for comparison with the hash recorded in the claims.
	ModuleHash string

	// Section is where the claims section was found.
	Section Section
}

// Claims decodes the token without verifying it.
func (x *Extracted) Claims() (*claims.Claims, error) {
	return token.DecodeUnverified(x.Token)
}

// Strip returns a copy of module with every claims section removed.
func Strip(module []byte) ([]byte, error) {
	stripped, _, err := strip(module)
	return stripped, err
}

// ComputeHash returns the hash that claims embedded in module are bound
// to: upper-case hex SHA-256 of the module with claims sections removed.
func ComputeHash(module []byte) (string, error) {
	stripped, _, err := strip(module)
	if err != nil {
		return "", err
	}
	return hashBytes(stripped), nil
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// strip removes all claims sections and reports the ones it found.
func strip(module []byte) ([]byte, []Section, error) {
	sections, err := Scan(module)
	if err != nil {
		return nil, nil, err
	}

	var found []Section
	out := make([]byte, 0, len(module))
	out = append(out, module[:PreambleSize]...)
	for _, sec := range sections {
		if sec.IsClaims() {
			found = append(found, sec)
			continue
		}
		out = append(out, module[sec.Start:sec.End]...)
	}
	return out, found, nil
}

// insertionOffset returns where a new claims section goes in an unsigned
// module: after the preamble and any leading custom sections (a leading
// "dylink.0" or "name" section must stay first), before the first
// non-custom section.
func insertionOffset(sections []Section) int {
	off := PreambleSize
	for _, sec := range sections {
		if !sec.IsCustom() {
			break
		}
		off = sec.End
	}
	return off
}

// Embed signs claims built from cfg into module and returns the signed
// bytes. Any claims section already present is replaced. The module
// hash in cfg is overwritten and IssuedAt is the embedder's clock.
func (e *Embedder) Embed(module []byte, cfg claims.Config, signer token.Signer) ([]byte, error) {
	stripped, hash, err := e.canonical(module)
	if err != nil {
		return nil, err
	}

	cfg.ModuleHash = hash
	c, err := claims.New(cfg, e.now())
	if err != nil {
		return nil, err
	}
	return e.sign(stripped, c, signer)
}

// EmbedClaims is Embed for claims that are already built. The returned
// module's token carries a copy of c with the module hash filled in.
func (e *Embedder) EmbedClaims(module []byte, c *claims.Claims, signer token.Signer) ([]byte, error) {
	if c == nil {
		return nil, token.NewError(token.ErrCodeSigningFailed, "no claims to sign")
	}
	stripped, hash, err := e.canonical(module)
	if err != nil {
		return nil, err
	}
	return e.sign(stripped, c.WithModuleHash(hash), signer)
}

func (e *Embedder) canonical(module []byte) ([]byte, string, error) {
	stripped, replaced, err := strip(module)
	if err != nil {
		return nil, "", err
	}
	if len(replaced) > 0 {
		e.logger.Debug("replacing existing claims", zap.Int("sections", len(replaced)))
	}
	return stripped, hashBytes(stripped), nil
}

func (e *Embedder) sign(stripped []byte, c *claims.Claims, signer token.Signer) ([]byte, error) {
	tok, err := token.Encode(c, signer)
	if err != nil {
		return nil, err
	}

	sections, err := Scan(stripped)
	if err != nil {
		return nil, err
	}
	at := insertionOffset(sections)
	section := EncodeCustomSection(ClaimsSectionName, []byte(tok))

	out := make([]byte, 0, len(stripped)+len(section))
	out = append(out, stripped[:at]...)
	out = append(out, section...)
	out = append(out, stripped[at:]...)

	e.logger.Debug("embedded claims",
		zap.String("subject", c.Subject),
		zap.String("issuer", c.Issuer),
		zap.String("module_hash", c.ModuleHash()),
		zap.Int("offset", at),
		zap.Int("size", len(out)),
	)
	return out, nil
}

// Extract finds the claims token in module. It returns nil and no error
// when the module carries no claims, and ErrMalformedModule when the
// module is structurally invalid or has more than one claims section.
// module is not modified.
func (e *Embedder) Extract(module []byte) (*Extracted, error) {
	stripped, found, err := strip(module)
	if err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		e.logger.Debug("module carries no claims")
		return nil, nil
	case 1:
	default:
		return nil, malformed("found %d %q custom sections, want at most one", len(found), ClaimsSectionName)
	}

	sec := found[0]
	x := &Extracted{
		Token:      string(sec.Data(module)),
		ModuleHash: hashBytes(stripped),
		Section:    sec,
	}
	e.logger.Debug("extracted claims",
		zap.Int("offset", sec.Start),
		zap.Int("section_bytes", sec.Size()),
		zap.Int("token_bytes", len(x.Token)),
		zap.String("module_hash", x.ModuleHash),
	)
	return x, nil
}

// Embed signs claims into module with the default embedder.
func Embed(module []byte, cfg claims.Config, signer token.Signer) ([]byte, error) {
	return defaultEmbedder.Embed(module, cfg, signer)
}

// EmbedClaims embeds prebuilt claims with the default embedder.
func EmbedClaims(module []byte, c *claims.Claims, signer token.Signer) ([]byte, error) {
	return defaultEmbedder.EmbedClaims(module, c, signer)
}

// Extract finds the claims token in module with the default embedder.
func Extract(module []byte) (*Extracted, error) {
	return defaultEmbedder.Extract(module)
}

// Verify checks the claims in module at now with the default embedder.
func Verify(module []byte, now time.Time) (*Verification, error) {
	return defaultEmbedder.Verify(module, now)
}

package claims

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Config describes the claims to build. Issuer and Subject are required;
// every other field is optional. A zero NotBefore or Expires leaves that
// bound unset. Both bounds are stored as whole unix seconds; the ordering
// check uses the full values first.
type Config struct {
	Issuer  string
	Subject string

	// Capabilities may contain duplicates; they collapse into a set.
	// URIs are not checked against any list of known capabilities.
	Capabilities []string

	// Tags keep their order.
	Tags []string

	NotBefore time.Time
	Expires   time.Time

	// ID defaults to a random UUID.
	ID string

	Name     string
	Version  string
	Revision int

	// ModuleHash is normally filled in by the embedder.
	ModuleHash string
}

// New builds Claims from cfg, stamping them as issued at now.
//
// It returns ErrMissingField if Issuer or Subject is empty and
// ErrInvalidWindow if NotBefore is later than Expires.
func New(cfg Config, now time.Time) (*Claims, error) {
	c := &Claims{
		ID:       cfg.ID,
		IssuedAt: now.Unix(),
		Issuer:   cfg.Issuer,
		Subject:  cfg.Subject,
		Metadata: &Metadata{
			ModuleHash:   cfg.ModuleHash,
			Tags:         normalizeTags(cfg.Tags),
			Capabilities: normalizeCapabilities(cfg.Capabilities),
			Name:         cfg.Name,
			Version:      cfg.Version,
			Revision:     cfg.Revision,
		},
	}
	if !cfg.Expires.IsZero() {
		exp := cfg.Expires.Unix()
		c.Expires = &exp
	}
	if !cfg.NotBefore.IsZero() {
		nbf := cfg.NotBefore.Unix()
		c.NotBefore = &nbf
	}

	if err := c.Check(); err != nil {
		return nil, err
	}
	// Sub-second bounds may collapse to the same second above.
	if !cfg.NotBefore.IsZero() && !cfg.Expires.IsZero() && cfg.NotBefore.After(cfg.Expires) {
		return nil, invalidWindow(cfg.NotBefore, cfg.Expires)
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return c, nil
}

// normalizeCapabilities sorts and deduplicates. Empty input becomes nil
// so that claims survive a JSON round trip unchanged.
func normalizeCapabilities(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

func normalizeTags(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return slices.Clone(in)
}

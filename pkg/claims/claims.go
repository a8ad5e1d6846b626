// Package claims defines the capability claims carried by a signed
// WebAssembly module: who issued them, which module they describe, which
// capabilities the module may use, and when the grant is valid.
//
// Claims are built once with New and never mutated afterwards.
package claims

import (
	"slices"
	"time"
)

// Claims is the payload of a capability token. Timestamps are unix
// seconds; nil Expires means the claims never expire and nil NotBefore
// means they are valid immediately.
type Claims struct {
	// Expires is when the claims stop being usable.
	Expires *int64 `json:"exp,omitempty"`

	// ID uniquely identifies this claim instance.
	ID string `json:"jti"`

	// IssuedAt is when the claims were created.
	IssuedAt int64 `json:"iat"`

	// Issuer is the did:key of the account that signed the claims.
	Issuer string `json:"iss"`

	// Subject is the did:key of the module the claims describe.
	Subject string `json:"sub"`

	// NotBefore is when the claims start being usable.
	NotBefore *int64 `json:"nbf,omitempty"`

	// Metadata holds the capability grant itself.
	Metadata *Metadata `json:"wascap,omitempty"`
}

// Metadata is the module-specific part of the claims.
type Metadata struct {
	// ModuleHash is the upper-case hex SHA-256 of the module bytes with
	// the claims section removed. Set only when the claims are embedded.
	ModuleHash string `json:"hash,omitempty"`

	// Tags are free-form, human-facing labels.
	Tags []string `json:"tags,omitempty"`

	// Capabilities is a set of capability URIs, sorted when built by New.
	Capabilities []string `json:"caps,omitempty"`

	Name     string `json:"name,omitempty"`
	Version  string `json:"ver,omitempty"`
	Revision int    `json:"rev,omitempty"`
}

// Capabilities returns a copy of the granted capability URIs, sorted.
func (c *Claims) Capabilities() []string {
	if c.Metadata == nil {
		return nil
	}
	return slices.Clone(c.Metadata.Capabilities)
}

// Tags returns a copy of the tags in their original order.
func (c *Claims) Tags() []string {
	if c.Metadata == nil {
		return nil
	}
	return slices.Clone(c.Metadata.Tags)
}

// HasCapability reports whether uri was granted.
func (c *Claims) HasCapability(uri string) bool {
	if c.Metadata == nil {
		return false
	}
	// Decoded claims are not guaranteed to be sorted.
	return slices.Contains(c.Metadata.Capabilities, uri)
}

// ModuleHash returns the recorded module hash, or "" if none.
func (c *Claims) ModuleHash() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata.ModuleHash
}

// ExpiresAt returns the expiry time and whether one is set.
func (c *Claims) ExpiresAt() (time.Time, bool) {
	if c.Expires == nil {
		return time.Time{}, false
	}
	return time.Unix(*c.Expires, 0), true
}

// NotBeforeAt returns the not-before time and whether one is set.
func (c *Claims) NotBeforeAt() (time.Time, bool) {
	if c.NotBefore == nil {
		return time.Time{}, false
	}
	return time.Unix(*c.NotBefore, 0), true
}

// IssuedAtTime returns IssuedAt as a time.Time.
func (c *Claims) IssuedAtTime() time.Time {
	return time.Unix(c.IssuedAt, 0)
}

// WithModuleHash returns a copy of c with hash recorded as the module
// hash. The receiver is left untouched.
func (c *Claims) WithModuleHash(hash string) *Claims {
	out := c.clone()
	if out.Metadata == nil {
		out.Metadata = &Metadata{}
	}
	out.Metadata.ModuleHash = hash
	return out
}

// Check verifies the invariants New enforces. It is used on claims that
// arrive from outside, e.g. decoded from a token.
func (c *Claims) Check() error {
	if c.Issuer == "" {
		return missing("issuer")
	}
	if c.Subject == "" {
		return missing("subject")
	}
	if c.NotBefore != nil && c.Expires != nil && *c.NotBefore > *c.Expires {
		return invalidWindow(time.Unix(*c.NotBefore, 0), time.Unix(*c.Expires, 0))
	}
	return nil
}

func (c *Claims) clone() *Claims {
	out := *c
	if c.Expires != nil {
		v := *c.Expires
		out.Expires = &v
	}
	if c.NotBefore != nil {
		v := *c.NotBefore
		out.NotBefore = &v
	}
	if c.Metadata != nil {
		md := *c.Metadata
		md.Tags = slices.Clone(c.Metadata.Tags)
		md.Capabilities = slices.Clone(c.Metadata.Capabilities)
		out.Metadata = &md
	}
	return &out
}

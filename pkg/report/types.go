// Package report renders the result of inspecting a signed module.
package report

import (
	"time"

	"github.com/capiscio/wascap/pkg/caps"
	"github.com/capiscio/wascap/pkg/wasm"
)

// Issue severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue codes that are not verification outcomes.
const (
	CodeNoExpiry          = "NO_EXPIRY"
	CodeUnknownCapability = "UNKNOWN_CAPABILITY"
)

// InspectionResult contains everything known about a module's claims.
type InspectionResult struct {
	File        string         `json:"file,omitempty" yaml:"file,omitempty"`
	ModuleBytes int            `json:"moduleBytes" yaml:"moduleBytes"`
	Success     bool           `json:"success" yaml:"success"`
	Outcome     wasm.Outcome   `json:"outcome" yaml:"outcome"`
	ModuleHash  string         `json:"moduleHash,omitempty" yaml:"moduleHash,omitempty"`
	HashMatches bool           `json:"hashMatches" yaml:"hashMatches"`
	CheckedAt   time.Time      `json:"checkedAt" yaml:"checkedAt"`
	Token       string         `json:"token,omitempty" yaml:"token,omitempty"`
	Claims      *ClaimsSummary `json:"claims,omitempty" yaml:"claims,omitempty"`
	Issues      []Issue        `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// ClaimsSummary is the display form of a token's claims.
type ClaimsSummary struct {
	Issuer       string       `json:"issuer" yaml:"issuer"`
	Subject      string       `json:"subject" yaml:"subject"`
	ID           string       `json:"id" yaml:"id"`
	IssuedAt     time.Time    `json:"issuedAt" yaml:"issuedAt"`
	Expires      string       `json:"expires" yaml:"expires"`
	NotBefore    string       `json:"notBefore" yaml:"notBefore"`
	Capabilities []Capability `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Tags         []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
	Name         string       `json:"name,omitempty" yaml:"name,omitempty"`
	Version      string       `json:"version,omitempty" yaml:"version,omitempty"`
	Revision     int          `json:"revision,omitempty" yaml:"revision,omitempty"`
}

// Capability pairs a capability URI with its friendly name.
type Capability struct {
	URI  string `json:"uri" yaml:"uri"`
	Name string `json:"name" yaml:"name"`
}

// Issue represents a specific problem found during inspection.
type Issue struct {
	Code     string `json:"code" yaml:"code"`
	Message  string `json:"message" yaml:"message"`
	Severity string `json:"severity" yaml:"severity"` // "error", "warning"
}

// AddError adds an error issue to the result.
func (r *InspectionResult) AddError(code, message string) {
	r.Issues = append(r.Issues, Issue{
		Code:     code,
		Message:  message,
		Severity: SeverityError,
	})
	r.Success = false
}

// AddWarning adds a warning issue to the result.
func (r *InspectionResult) AddWarning(code, message string) {
	r.Issues = append(r.Issues, Issue{
		Code:     code,
		Message:  message,
		Severity: SeverityWarning,
	})
}

// New builds an InspectionResult from a verification and the error
// Verify returned with it. The raw token is kept only when raw is set.
func New(file string, module []byte, v *wasm.Verification, verifyErr error, checkedAt time.Time, raw bool) *InspectionResult {
	r := &InspectionResult{
		File:        file,
		ModuleBytes: len(module),
		CheckedAt:   checkedAt,
	}
	if v == nil {
		r.Outcome = wasm.OutcomeOf(verifyErr)
		r.AddError(r.Outcome.String(), errMessage(verifyErr, "module was not checked"))
		return r
	}

	r.Outcome = v.Outcome
	r.Success = v.Valid()
	r.ModuleHash = v.ModuleHash
	r.HashMatches = v.HashMatches
	if raw {
		r.Token = v.Token
	}

	if v.Report != nil {
		r.Claims = summarize(v)
		if v.Report.Claims.Expires == nil {
			r.AddWarning(CodeNoExpiry, "token never expires")
		}
		for _, c := range v.Report.Claims.Capabilities() {
			if !caps.IsWellKnown(c) {
				r.AddWarning(CodeUnknownCapability, "capability "+c+" is not well known")
			}
		}
	}

	switch v.Outcome {
	case wasm.OutcomeValid:
	case wasm.OutcomeNoClaims:
		r.AddError(v.Outcome.String(), "module carries no claims")
	case wasm.OutcomeExpired:
		r.AddError(v.Outcome.String(), "token expired "+v.Report.ExpiresHuman)
	case wasm.OutcomeNotYetValid:
		r.AddError(v.Outcome.String(), "token cannot be used until "+v.Report.NotBeforeHuman)
	default:
		r.AddError(v.Outcome.String(), errMessage(verifyErr, "verification failed"))
	}
	return r
}

func summarize(v *wasm.Verification) *ClaimsSummary {
	c := v.Report.Claims
	s := &ClaimsSummary{
		Issuer:    c.Issuer,
		Subject:   c.Subject,
		ID:        c.ID,
		IssuedAt:  c.IssuedAtTime().UTC(),
		Expires:   v.Report.ExpiresHuman,
		NotBefore: v.Report.NotBeforeHuman,
		Tags:      c.Tags(),
	}
	for _, uri := range c.Capabilities() {
		s.Capabilities = append(s.Capabilities, Capability{URI: uri, Name: caps.Describe(uri)})
	}
	if md := c.Metadata; md != nil {
		s.Name = md.Name
		s.Version = md.Version
		s.Revision = md.Revision
	}
	return s
}

func errMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	return err.Error()
}

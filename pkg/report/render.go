package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Format selects how a result is written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Write renders r to w in the given format.
func Write(w io.Writer, r *InspectionResult, format Format) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatYAML:
		return WriteYAML(w, r)
	case FormatText, "":
		return WriteText(w, r)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *InspectionResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// WriteYAML writes r as YAML.
func WriteYAML(w io.Writer, r *InspectionResult) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(r); err != nil {
		return err
	}
	return encoder.Close()
}

// WriteText writes r for a terminal.
func WriteText(w io.Writer, r *InspectionResult) error {
	var b strings.Builder

	if r.Success {
		b.WriteString("✅ MODULE CLAIMS VALID\n")
	} else {
		b.WriteString("❌ MODULE CLAIMS NOT VALID\n")
	}

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	if r.File != "" {
		fmt.Fprintf(tw, "File:\t%s (%s)\n", r.File, humanize.Bytes(uint64(r.ModuleBytes)))
	} else {
		fmt.Fprintf(tw, "Size:\t%s\n", humanize.Bytes(uint64(r.ModuleBytes)))
	}
	fmt.Fprintf(tw, "Outcome:\t%s\n", r.Outcome)
	if r.ModuleHash != "" {
		fmt.Fprintf(tw, "Module hash:\t%s\n", r.ModuleHash)
		fmt.Fprintf(tw, "Hash matches:\t%s\n", yesNo(r.HashMatches))
	}

	if c := r.Claims; c != nil {
		fmt.Fprintf(tw, "Account:\t%s\n", c.Issuer)
		fmt.Fprintf(tw, "Module:\t%s\n", c.Subject)
		fmt.Fprintf(tw, "Token ID:\t%s\n", c.ID)
		fmt.Fprintf(tw, "Issued:\t%s\n", humanize.RelTime(c.IssuedAt, r.CheckedAt, "ago", "from now"))
		fmt.Fprintf(tw, "Expires:\t%s\n", c.Expires)
		fmt.Fprintf(tw, "Can be used:\t%s\n", c.NotBefore)
		if c.Name != "" {
			fmt.Fprintf(tw, "Name:\t%s\n", c.Name)
		}
		if c.Version != "" || c.Revision != 0 {
			fmt.Fprintf(tw, "Version:\t%s (%d)\n", c.Version, c.Revision)
		}
		if len(c.Capabilities) > 0 {
			names := make([]string, len(c.Capabilities))
			for i, cp := range c.Capabilities {
				names[i] = cp.Name
			}
			fmt.Fprintf(tw, "Capabilities:\t%s\n", strings.Join(names, ", "))
		}
		if len(c.Tags) > 0 {
			fmt.Fprintf(tw, "Tags:\t%s\n", strings.Join(c.Tags, ", "))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.Token != "" {
		fmt.Fprintf(&b, "\nToken:\n%s\n", r.Token)
	}

	if len(r.Issues) > 0 {
		b.WriteString("\nISSUES FOUND:\n")
		for _, issue := range r.Issues {
			icon := "⚠️"
			if issue.Severity == SeverityError {
				icon = "❌"
			}
			fmt.Fprintf(&b, "%s [%s] %s: %s\n", icon, issue.Code, issue.Severity, issue.Message)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

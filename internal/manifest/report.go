package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

var ErrUnknownFormat = errors.New("manifest: unknown report format")

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Report is the result of checking one manifest.
type Report struct {
	Path    string  `json:"path" yaml:"path"`
	Entries []Entry `json:"entries" yaml:"entries"`
	Skipped int     `json:"skipped" yaml:"skipped"`
	Issues  []Issue `json:"issues" yaml:"issues"`
}

func NewReport(path string, m *Manifest) Report {
	return Report{Path: path, Entries: m.Entries, Skipped: m.Skipped, Issues: m.Validate()}
}

// OK reports whether the manifest has no error issues.
func (r Report) OK() bool {
	return !HasErrors(r.Issues)
}

func (r Report) Encode(w io.Writer, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return r.encodeText(w)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func (r Report) encodeText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tPROJECT\tCONSTRAINT\tMARKER\tCOMMENT")
	for _, e := range r.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.Line, e.Project, dash(e.Constraint), dash(e.Marker), dash(e.Comment))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, i := range r.Issues {
		if _, err := fmt.Fprintf(w, "%s:%d: %s: %s: %s\n", r.Path, i.Line, i.Severity, i.Project, i.Message); err != nil {
			return err
		}
	}
	errs, warns := 0, 0
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			errs++
		} else {
			warns++
		}
	}
	_, err := fmt.Fprintf(w, "%d entries, %d skipped, %d errors, %d warnings\n", len(r.Entries), r.Skipped, errs, warns)
	return err
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

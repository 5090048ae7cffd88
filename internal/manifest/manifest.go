// Package manifest parses and checks pip requirement manifests: one PEP 508
// dependency specifier per line, with optional version constraints,
// environment markers and trailing comments.
//
// Entry order is significant to the installers that consume a manifest, so
// every operation here keeps file order.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"deps.dev/util/pypi"
)

var (
	ErrInvalidSpecifier = errors.New("manifest: invalid specifier")
	ErrUnsupportedLine  = errors.New("manifest: unsupported line")
)

// Entry is one dependency line. Name is the project name as written and
// Project its canonical PyPI form. URL holds a direct reference
// ("name @ url"), which excludes a version constraint.
type Entry struct {
	Line       int      `json:"line" yaml:"line"`
	Raw        string   `json:"raw" yaml:"raw"`
	Name       string   `json:"name" yaml:"name"`
	Project    string   `json:"project" yaml:"project"`
	Extras     []string `json:"extras,omitempty" yaml:"extras,omitempty"`
	Constraint string   `json:"constraint,omitempty" yaml:"constraint,omitempty"`
	URL        string   `json:"url,omitempty" yaml:"url,omitempty"`
	Marker     string   `json:"marker,omitempty" yaml:"marker,omitempty"`
	Comment    string   `json:"comment,omitempty" yaml:"comment,omitempty"`
}

type Manifest struct {
	Entries []Entry
	// Skipped counts blank and comment-only lines.
	Skipped int
}

type LineError struct {
	Line int
	Text string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ParseError lists every line that failed to parse.
type ParseError struct {
	Path   string
	Errors []LineError
}

func (e *ParseError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, le := range e.Errors {
		parts = append(parts, le.Error())
	}
	prefix := "manifest"
	if e.Path != "" {
		prefix = "manifest " + e.Path
	}
	return fmt.Sprintf("%s: %d invalid line(s): %s", prefix, len(e.Errors), strings.Join(parts, "; "))
}

func (e *ParseError) Unwrap() []error {
	out := make([]error, 0, len(e.Errors))
	for _, le := range e.Errors {
		out = append(out, le.Err)
	}
	return out
}

// Parse reads a manifest. When some lines fail, the entries that parsed
// are returned together with a *ParseError.
func Parse(r io.Reader) (*Manifest, error) {
	m := &Manifest{Entries: []Entry{}}
	var perr ParseError

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		start := lineNo
		text := sc.Text()
		// A trailing backslash joins the next line.
		for strings.HasSuffix(text, `\`) && sc.Scan() {
			lineNo++
			text = strings.TrimSuffix(text, `\`) + sc.Text()
		}

		body, comment := splitComment(text)
		if body == "" {
			m.Skipped++
			continue
		}
		entry, err := parseEntry(start, body, comment)
		if err != nil {
			perr.Errors = append(perr.Errors, LineError{Line: start, Text: text, Err: err})
			continue
		}
		entry.Raw = strings.TrimSpace(text)
		m.Entries = append(m.Entries, entry)
	}
	if err := sc.Err(); err != nil {
		return m, fmt.Errorf("manifest: read: %w", err)
	}
	if len(perr.Errors) > 0 {
		return m, &perr
	}
	return m, nil
}

func ParseFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer f.Close()
	m, err := Parse(f)
	var perr *ParseError
	if errors.As(err, &perr) {
		perr.Path = path
	}
	return m, err
}

// splitComment separates a line from a comment that starts the line or
// follows whitespace. A '#' inside a token, as in a URL fragment, stays.
func splitComment(line string) (string, string) {
	for i := 0; i < len(line); i++ {
		if line[i] != '#' {
			continue
		}
		if i == 0 || line[i-1] == ' ' || line[i-1] == '\t' {
			return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:])
		}
	}
	return strings.TrimSpace(line), ""
}

func parseEntry(line int, body, comment string) (Entry, error) {
	if strings.HasPrefix(body, "-") {
		return Entry{}, fmt.Errorf("%w: pip option %q", ErrUnsupportedLine, strings.Fields(body)[0])
	}
	spec, url, isURL := splitDirectReference(body)
	if isURL && url == "" {
		return Entry{}, fmt.Errorf("%w: empty URL after @", ErrInvalidSpecifier)
	}
	dep, err := pypi.ParseDependency(spec)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrInvalidSpecifier, err)
	}
	return Entry{
		Line:       line,
		Name:       declaredName(spec),
		Project:    dep.Name,
		Extras:     splitExtras(dep.Extras),
		Constraint: strings.TrimSpace(dep.Constraint),
		URL:        url,
		Marker:     strings.TrimSpace(dep.Environment),
		Comment:    comment,
	}, nil
}

// declaredName returns the project name as the line spells it.
func declaredName(body string) string {
	end := strings.IndexAny(body, " \t[(;<=!~>@")
	if end < 0 {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(body[:end])
}

// splitDirectReference pulls the URL out of "name[extras] @ url ; marker"
// and returns the line without it. A marker after a URL must be preceded
// by whitespace, since ';' is legal inside a URL.
func splitDirectReference(body string) (spec, url string, ok bool) {
	at := strings.IndexByte(body, '@')
	if at < 0 || strings.ContainsAny(body[:at], ";<=!~>(") {
		return body, "", false
	}
	spec = strings.TrimSpace(body[:at])
	rest := strings.TrimSpace(body[at+1:])
	url = rest
	for i := 1; i < len(rest); i++ {
		if rest[i] == ';' && (rest[i-1] == ' ' || rest[i-1] == '\t') {
			url = strings.TrimSpace(rest[:i])
			spec += rest[i:]
			break
		}
	}
	return spec, url, true
}

func splitExtras(raw string) []string {
	var out []string
	for _, e := range strings.Split(raw, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Projects returns the canonical project names in file order.
func (m *Manifest) Projects() []string {
	out := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		out = append(out, e.Project)
	}
	return out
}

// Applicable returns the entries whose marker holds in env, in file order.
// Entries without a marker always apply.
func (m *Manifest) Applicable(env Environment) ([]Entry, error) {
	out := make([]Entry, 0, len(m.Entries))
	for _, e := range m.Entries {
		if e.Marker == "" {
			out = append(out, e)
			continue
		}
		marker, err := ParseMarker(e.Marker)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", e.Line, err)
		}
		ok, err := marker.Evaluate(env)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", e.Line, err)
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

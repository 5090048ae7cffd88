package manifest

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danmuck/ovsfront/internal/testutil/testlog"
)

func TestParseFileKeepsOrderAndComments(t *testing.T) {
	testlog.Start(t)
	m, err := ParseFile(filepath.Join("testdata", "requirements.txt"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Skipped != 4 {
		t.Fatalf("skipped=%d want 4", m.Skipped)
	}

	want := []string{"babel", "eventlet", "oslo-log", "oslo-utils", "ovs", "ovs", "retrying", "six"}
	if diff := cmp.Diff(want, m.Projects()); diff != "" {
		t.Fatalf("projects (-want +got):\n%s", diff)
	}

	first := m.Entries[0]
	if first.Line != 5 || first.Name != "Babel" || first.Comment != "BSD" {
		t.Fatalf("unexpected first entry: %+v", first)
	}
	if first.Raw != "Babel!=2.4.0,>=2.3.4 # BSD" {
		t.Fatalf("raw=%q", first.Raw)
	}
	if first.Marker != "" {
		t.Fatalf("unexpected marker %q", first.Marker)
	}

	licenses := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		licenses = append(licenses, e.Comment)
	}
	wantLicenses := []string{"BSD", "MIT", "Apache-2.0", "Apache-2.0", "Apache-2.0", "Apache-2.0", "Apache-2.0", "MIT"}
	if diff := cmp.Diff(wantLicenses, licenses); diff != "" {
		t.Fatalf("licenses (-want +got):\n%s", diff)
	}
	if m.Entries[4].Marker == "" || m.Entries[5].Marker == "" {
		t.Fatalf("markers not kept: %q %q", m.Entries[4].Marker, m.Entries[5].Marker)
	}
	if strings.Contains(m.Entries[4].Constraint, "python_version") {
		t.Fatalf("marker leaked into constraint %q", m.Entries[4].Constraint)
	}
}

func TestParseSkipsCommentOnlyLines(t *testing.T) {
	testlog.Start(t)
	m, err := Parse(strings.NewReader("# header\n\n   \n\t# indented\nsix # MIT\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(m.Entries) != 1 || m.Skipped != 4 {
		t.Fatalf("entries=%d skipped=%d", len(m.Entries), m.Skipped)
	}
	if e := m.Entries[0]; e.Line != 5 || e.Project != "six" || e.Constraint != "" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestParseCollectsLineErrors(t *testing.T) {
	testlog.Start(t)
	src := "six>=1.9.0\n-r other.txt\n==1.0\nretrying>=1.2.3\n"
	m, err := Parse(strings.NewReader(src))

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	lines := []int{}
	for _, le := range perr.Errors {
		lines = append(lines, le.Line)
	}
	if diff := cmp.Diff([]int{2, 3}, lines); diff != "" {
		t.Fatalf("error lines (-want +got):\n%s", diff)
	}
	if !errors.Is(err, ErrUnsupportedLine) || !errors.Is(err, ErrInvalidSpecifier) {
		t.Fatalf("error should wrap both causes: %v", err)
	}
	if diff := cmp.Diff([]string{"six", "retrying"}, m.Projects()); diff != "" {
		t.Fatalf("parsed projects (-want +got):\n%s", diff)
	}
}

func TestParseFileNamesPathInErrors(t *testing.T) {
	testlog.Start(t)
	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatalf("expected open error")
	}
}

func TestParseJoinsContinuationLines(t *testing.T) {
	testlog.Start(t)
	m, err := Parse(strings.NewReader("eventlet!=0.18.3,\\\n>=0.18.2 # MIT\nsix\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(m.Entries) != 2 {
		t.Fatalf("entries=%d", len(m.Entries))
	}
	if e := m.Entries[0]; e.Line != 1 || e.Comment != "MIT" {
		t.Fatalf("unexpected joined entry %+v", e)
	}
	if m.Entries[1].Line != 3 {
		t.Fatalf("line numbering after continuation: %d", m.Entries[1].Line)
	}
}

func TestParseKeepsDeclaredName(t *testing.T) {
	testlog.Start(t)
	src := "oslo.log>=3.22.0\nPyYAML [ssl] ==3.12\nZope.Interface\nx ===1.0-custom\n"
	m, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	type names struct{ Name, Project, Constraint string }
	got := []names{}
	for _, e := range m.Entries {
		got = append(got, names{e.Name, e.Project, e.Constraint})
	}
	want := []names{
		{"oslo.log", "oslo-log", ">=3.22.0"},
		{"PyYAML", "pyyaml", "==3.12"},
		{"Zope.Interface", "zope-interface", ""},
		{"x", "x", "===1.0-custom"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entries (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ssl"}, m.Entries[1].Extras); diff != "" {
		t.Fatalf("extras (-want +got):\n%s", diff)
	}
	if issues := m.Validate(); len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}
}

func TestParseDirectReference(t *testing.T) {
	testlog.Start(t)
	src := "Pip[extra] @ https://example.com/pip.whl#sha1=abc ; python_version >= '3.4'\nsix@ file:///tmp/six.tar.gz\nbad @\n"
	m, err := Parse(strings.NewReader(src))

	var perr *ParseError
	if !errors.As(err, &perr) || len(perr.Errors) != 1 || perr.Errors[0].Line != 3 {
		t.Fatalf("expected one error on line 3, got %v", err)
	}
	if !errors.Is(err, ErrInvalidSpecifier) {
		t.Fatalf("expected ErrInvalidSpecifier, got %v", err)
	}
	if len(m.Entries) != 2 {
		t.Fatalf("entries=%d", len(m.Entries))
	}

	first := m.Entries[0]
	if first.Name != "Pip" || first.Project != "pip" || first.URL != "https://example.com/pip.whl#sha1=abc" {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if first.Constraint != "" || first.Marker != "python_version >= '3.4'" {
		t.Fatalf("constraint=%q marker=%q", first.Constraint, first.Marker)
	}
	if diff := cmp.Diff([]string{"extra"}, first.Extras); diff != "" {
		t.Fatalf("extras (-want +got):\n%s", diff)
	}
	if second := m.Entries[1]; second.Name != "six" || second.URL != "file:///tmp/six.tar.gz" || second.Marker != "" {
		t.Fatalf("unexpected second entry %+v", second)
	}
	if issues := m.Validate(); len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}
}

func TestSplitComment(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		in, body, comment string
	}{
		{in: "six # MIT", body: "six", comment: "MIT"},
		{in: "# only", body: "", comment: "only"},
		{in: "six\t#  Apache-2.0  ", body: "six", comment: "Apache-2.0"},
		{in: "pkg @ https://example.com/p.zip#sha1=abc", body: "pkg @ https://example.com/p.zip#sha1=abc"},
		{in: "   ", body: ""},
	}
	for _, tt := range tests {
		body, comment := splitComment(tt.in)
		if body != tt.body || comment != tt.comment {
			t.Fatalf("splitComment(%q)=%q,%q want %q,%q", tt.in, body, comment, tt.body, tt.comment)
		}
	}
}

func TestApplicableFiltersByMarker(t *testing.T) {
	testlog.Start(t)
	m, err := ParseFile(filepath.Join("testdata", "requirements.txt"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	py27, err := m.Applicable(Environment{"python_version": "2.7"})
	if err != nil {
		t.Fatalf("applicable: %v", err)
	}
	py35, err := m.Applicable(Environment{"python_version": "3.5"})
	if err != nil {
		t.Fatalf("applicable: %v", err)
	}

	lines := func(entries []Entry) []int {
		out := []int{}
		for _, e := range entries {
			out = append(out, e.Line)
		}
		return out
	}
	if diff := cmp.Diff([]int{5, 6, 7, 8, 9, 11, 12}, lines(py27)); diff != "" {
		t.Fatalf("py27 lines (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{5, 6, 7, 8, 10, 11, 12}, lines(py35)); diff != "" {
		t.Fatalf("py35 lines (-want +got):\n%s", diff)
	}

	if _, err := m.Applicable(Environment{}); !errors.Is(err, ErrUnknownVariable) {
		t.Fatalf("expected ErrUnknownVariable, got %v", err)
	}
}

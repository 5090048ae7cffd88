package manifest

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danmuck/ovsfront/internal/testutil/testlog"
)

func TestValidateCleanManifest(t *testing.T) {
	testlog.Start(t)
	m, err := ParseFile(filepath.Join("testdata", "requirements.txt"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if issues := m.Validate(); len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}
}

func TestValidateReportsIssuesInLineOrder(t *testing.T) {
	testlog.Start(t)
	m := &Manifest{Entries: []Entry{
		{Line: 1, Project: "eventlet", Constraint: "!=0.18.3,>=0.18.2"},
		{Line: 2, Project: "six", Constraint: ">=2,<1"},
		{Line: 3, Project: "babel", Constraint: ">>1"},
		{Line: 4, Project: "ovs", Marker: "python_version = '2.7'"},
		{Line: 5, Project: "eventlet"},
		{Line: 6, Project: "ovs", Marker: "python_version>='3.4'"},
		{Line: 7, Project: "ovs", Marker: `python_version >= "3.4"`},
		{Line: 8, Project: "oslo-log", Constraint: "==1.0,!=1.0"},
		{Line: 9, Project: "oslo-utils", Constraint: "===1.0-custom"},
		{Line: 10, Project: "retrying", Constraint: "==1.3.3,>=1.2"},
	}}

	issues := m.Validate()
	type summary struct {
		Line     int
		Severity Severity
	}
	got := make([]summary, 0, len(issues))
	for _, i := range issues {
		got = append(got, summary{Line: i.Line, Severity: i.Severity})
	}
	want := []summary{
		{Line: 2, Severity: SeverityError},
		{Line: 3, Severity: SeverityError},
		{Line: 4, Severity: SeverityError},
		{Line: 5, Severity: SeverityWarning},
		{Line: 7, Severity: SeverityWarning},
		{Line: 8, Severity: SeverityError},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issues (-want +got):\n%s", diff)
	}
	if !strings.Contains(issues[0].Message, "matches no version") {
		t.Fatalf("unexpected message %q", issues[0].Message)
	}
	if !strings.Contains(issues[3].Message, "line 1") {
		t.Fatalf("duplicate should name the first line: %q", issues[3].Message)
	}
	if !strings.Contains(issues[5].Message, "1.0 is excluded") {
		t.Fatalf("unexpected pin message %q", issues[5].Message)
	}
	if !HasErrors(issues) {
		t.Fatalf("expected errors")
	}
	if HasErrors(issues[3:5]) {
		t.Fatalf("warnings alone are not errors")
	}
}

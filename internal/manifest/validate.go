package manifest

import (
	"fmt"
	"strings"

	"deps.dev/util/semver"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type Issue struct {
	Line     int      `json:"line" yaml:"line"`
	Project  string   `json:"project" yaml:"project"`
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
}

// Validate checks each entry's constraint and marker and reports projects
// listed twice under the same marker. Issues come in line order.
func (m *Manifest) Validate() []Issue {
	issues := []Issue{}
	type seenKey struct{ project, marker string }
	seen := map[seenKey]int{}

	for _, e := range m.Entries {
		add := func(sev Severity, format string, args ...any) {
			issues = append(issues, Issue{Line: e.Line, Project: e.Project, Severity: sev, Message: fmt.Sprintf(format, args...)})
		}

		if e.Constraint != "" {
			if msg := checkConstraint(e.Constraint); msg != "" {
				add(SeverityError, "%s", msg)
			}
		}

		marker := e.Marker
		if e.Marker != "" {
			parsed, err := ParseMarker(e.Marker)
			if err != nil {
				add(SeverityError, "invalid marker: %v", err)
			} else {
				marker = parsed.Canonical()
			}
		}

		key := seenKey{project: e.Project, marker: marker}
		if first, ok := seen[key]; ok {
			add(SeverityWarning, "duplicate of line %d", first)
		} else {
			seen[key] = e.Line
		}
	}
	return issues
}

// checkConstraint returns a message when constraint is malformed or can
// match nothing. Arbitrary equality clauses ("===") compare as strings and
// are only checked for a value.
func checkConstraint(constraint string) string {
	var clauses []string
	for _, clause := range strings.Split(constraint, ",") {
		clause = strings.TrimSpace(clause)
		if !strings.HasPrefix(clause, "===") {
			clauses = append(clauses, clause)
			continue
		}
		if strings.TrimSpace(strings.TrimPrefix(clause, "===")) == "" {
			return fmt.Sprintf("invalid constraint %q: === needs a value", constraint)
		}
	}
	if len(clauses) == 0 {
		return ""
	}

	c, err := semver.PyPI.ParseConstraint(strings.Join(clauses, ","))
	if err != nil {
		return fmt.Sprintf("invalid constraint %q: %v", constraint, err)
	}
	if c.Set().Empty() {
		return fmt.Sprintf("constraint %q matches no version", constraint)
	}
	for _, clause := range clauses {
		if !strings.HasPrefix(clause, "==") {
			continue
		}
		pin, err := semver.PyPI.Parse(strings.TrimSpace(strings.TrimPrefix(clause, "==")))
		if err != nil || pin.IsWildcard() || pin.IsPrerelease() {
			continue
		}
		if !c.MatchVersion(pin) {
			return fmt.Sprintf("constraint %q matches no version: %s is excluded", constraint, pin)
		}
	}
	return ""
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

package manifest

import (
	"errors"
	"testing"

	"github.com/danmuck/ovsfront/internal/testutil/testlog"
)

func TestMarkerEvaluate(t *testing.T) {
	testlog.Start(t)
	env := Environment{
		"python_version":      "2.7",
		"python_full_version": "2.7.12",
		"sys_platform":        "linux2",
		"os_name":             "posix",
		"platform_machine":    "x86_64",
	}
	tests := []struct {
		marker string
		want   bool
	}{
		{marker: `python_version=='2.7'`, want: true},
		{marker: `python_version == "3.4"`, want: false},
		{marker: `python_version>='3.4'`, want: false},
		{marker: `python_version < '3'`, want: true},
		{marker: `python_version > '2.10'`, want: false},
		{marker: `'2.6' < python_version`, want: true},
		{marker: `python_full_version ~= '2.7.0'`, want: true},
		{marker: `python_full_version ~= '2.8'`, want: false},
		{marker: `sys_platform == 'linux2' and os_name == 'posix'`, want: true},
		{marker: `sys_platform == 'win32' or os_name == 'posix'`, want: true},
		{marker: `sys_platform == 'win32' or (os_name == 'nt' and python_version < '3')`, want: false},
		{marker: `'linux' in sys_platform`, want: true},
		{marker: `platform_machine not in 'arm64 aarch64'`, want: true},
		{marker: `os_name === 'posix'`, want: true},
		{marker: `os_name != 'nt'`, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.marker, func(t *testing.T) {
			m, err := ParseMarker(tt.marker)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			got, err := m.Evaluate(env)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}

func TestMarkerShortCircuits(t *testing.T) {
	testlog.Start(t)
	m, err := ParseMarker(`os_name == 'posix' or python_version < '3'`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := m.Evaluate(Environment{"os_name": "posix"})
	if err != nil || !got {
		t.Fatalf("or should short-circuit: got=%v err=%v", got, err)
	}
}

func TestParseMarkerErrors(t *testing.T) {
	testlog.Start(t)
	tests := map[string]error{
		`python_version`:                     ErrInvalidMarker,
		`python_version ==`:                  ErrInvalidMarker,
		`python_version = '2.7'`:             ErrInvalidMarker,
		`python_version == '2.7`:             ErrInvalidMarker,
		`(python_version == '2.7'`:           ErrInvalidMarker,
		`python_version == '2.7' and`:        ErrInvalidMarker,
		`'a' == 'b'`:                         ErrInvalidMarker,
		`os_name not 'posix'`:                ErrInvalidMarker,
		`python_version == '2.7' extra`:      ErrInvalidMarker,
		`python_implementation == 'CPython'`: ErrUnknownVariable,
	}
	for marker, want := range tests {
		t.Run(marker, func(t *testing.T) {
			if _, err := ParseMarker(marker); !errors.Is(err, want) {
				t.Fatalf("expected %v, got %v", want, err)
			}
		})
	}
}

func TestMarkerEvaluateErrors(t *testing.T) {
	testlog.Start(t)
	m, err := ParseMarker(`os_name ~= 'posix'`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := m.Evaluate(Environment{"os_name": "posix"}); !errors.Is(err, ErrInvalidMarker) {
		t.Fatalf("expected ErrInvalidMarker, got %v", err)
	}
	if _, err := m.Evaluate(Environment{}); !errors.Is(err, ErrUnknownVariable) {
		t.Fatalf("expected ErrUnknownVariable, got %v", err)
	}
}

func TestParseEnvironment(t *testing.T) {
	testlog.Start(t)
	env, err := ParseEnvironment([]string{"python_version=3.11", " sys_platform = linux "})
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if env["python_version"] != "3.11" || env["sys_platform"] != "linux" {
		t.Fatalf("unexpected env %v", env)
	}
	if _, err := ParseEnvironment([]string{"python_version"}); !errors.Is(err, ErrInvalidMarker) {
		t.Fatalf("expected ErrInvalidMarker, got %v", err)
	}
	if _, err := ParseEnvironment([]string{"pyver=3"}); !errors.Is(err, ErrUnknownVariable) {
		t.Fatalf("expected ErrUnknownVariable, got %v", err)
	}
}

func TestMarkerCanonical(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		a, b string
	}{
		{a: "python_version>='3.4'", b: `python_version >= "3.4"`},
		{a: "(os_name=='posix' and python_version<'3')", b: "os_name == 'posix'  and  python_version < '3'"},
		{a: "'linux' in sys_platform or os_name=='nt'", b: `"linux" in sys_platform or (os_name == "nt")`},
	}
	for _, tt := range tests {
		a, err := ParseMarker(tt.a)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.a, err)
		}
		b, err := ParseMarker(tt.b)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.b, err)
		}
		if a.Canonical() != b.Canonical() {
			t.Fatalf("canonical forms differ: %q vs %q", a.Canonical(), b.Canonical())
		}
	}

	m, err := ParseMarker("python_version<'3' or os_name=='nt' and platform_system!='Windows'")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := `python_version < "3" or (os_name == "nt" and platform_system != "Windows")`
	if got := m.Canonical(); got != want {
		t.Fatalf("canonical=%q want %q", got, want)
	}
}

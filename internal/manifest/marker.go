package manifest

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"deps.dev/util/semver"
)

var (
	ErrInvalidMarker   = errors.New("manifest: invalid marker")
	ErrUnknownVariable = errors.New("manifest: unknown marker variable")
)

// markerVariables are the PEP 508 environment marker names. The value
// marks variables compared as versions.
var markerVariables = map[string]bool{
	"os_name":                        false,
	"sys_platform":                   false,
	"platform_machine":               false,
	"platform_python_implementation": false,
	"platform_release":               false,
	"platform_system":                false,
	"platform_version":               false,
	"python_version":                 true,
	"python_full_version":            true,
	"implementation_name":            false,
	"implementation_version":         true,
	"extra":                          false,
}

// MarkerVariables lists the recognized marker variable names.
func MarkerVariables() []string {
	out := make([]string, 0, len(markerVariables))
	for name := range markerVariables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Environment maps marker variables to their values on a target.
type Environment map[string]string

// ParseEnvironment reads key=value pairs.
func ParseEnvironment(pairs []string) (Environment, error) {
	env := Environment{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: environment entry %q is not key=value", ErrInvalidMarker, p)
		}
		if _, known := markerVariables[k]; !known {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, k)
		}
		env[k] = strings.TrimSpace(v)
	}
	return env, nil
}

// Marker is a parsed environment marker expression.
type Marker struct {
	src  string
	root markerNode
}

func (m Marker) String() string {
	return m.src
}

// Canonical renders the parsed expression with uniform spacing and quoting,
// so markers that differ only in layout render the same.
func (m Marker) Canonical() string {
	if m.root == nil {
		return ""
	}
	if b, ok := m.root.(boolNode); ok {
		return b.join()
	}
	return m.root.canonical()
}

// Evaluate reports whether the marker holds in env. A variable missing
// from env is an error.
func (m Marker) Evaluate(env Environment) (bool, error) {
	if m.root == nil {
		return true, nil
	}
	return m.root.eval(env)
}

type markerNode interface {
	eval(env Environment) (bool, error)
	canonical() string
}

type boolNode struct {
	and         bool
	left, right markerNode
}

func (n boolNode) eval(env Environment) (bool, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return false, err
	}
	if n.and && !l {
		return false, nil
	}
	if !n.and && l {
		return true, nil
	}
	return n.right.eval(env)
}

func (n boolNode) join() string {
	op := " or "
	if n.and {
		op = " and "
	}
	return n.left.canonical() + op + n.right.canonical()
}

func (n boolNode) canonical() string {
	return "(" + n.join() + ")"
}

type operand struct {
	variable string
	literal  string
}

func (o operand) value(env Environment) (string, error) {
	if o.variable == "" {
		return o.literal, nil
	}
	v, ok := env[o.variable]
	if !ok {
		return "", fmt.Errorf("%w: %s not set", ErrUnknownVariable, o.variable)
	}
	return v, nil
}

func (o operand) canonical() string {
	if o.variable != "" {
		return o.variable
	}
	return strconv.Quote(o.literal)
}

type compareNode struct {
	left, right operand
	op          string
}

func (n compareNode) canonical() string {
	return n.left.canonical() + " " + n.op + " " + n.right.canonical()
}

func (n compareNode) eval(env Environment) (bool, error) {
	l, err := n.left.value(env)
	if err != nil {
		return false, err
	}
	r, err := n.right.value(env)
	if err != nil {
		return false, err
	}

	switch n.op {
	case "in":
		return strings.Contains(r, l), nil
	case "not in":
		return !strings.Contains(r, l), nil
	case "===":
		return l == r, nil
	}

	if markerVariables[n.left.variable] || markerVariables[n.right.variable] {
		if ok, matched := compareVersions(n.left.variable != "", l, n.op, r); ok {
			return matched, nil
		}
	}
	return compareStrings(l, n.op, r)
}

var flipped = map[string]string{"<": ">", "<=": ">=", ">": "<", ">=": "<=", "==": "==", "!=": "!="}

// compareVersions evaluates l op r as PyPI versions. ok is false when the
// operands are not versions.
func compareVersions(varOnLeft bool, l, op, r string) (ok bool, matched bool) {
	version, bound := l, r
	if !varOnLeft {
		f, canFlip := flipped[op]
		if !canFlip {
			return false, false
		}
		version, bound, op = r, l, f
	}
	if _, err := semver.PyPI.Parse(version); err != nil {
		return false, false
	}
	c, err := semver.PyPI.ParseConstraint(op + bound)
	if err != nil {
		return false, false
	}
	return true, c.Match(version)
}

func compareStrings(l, op, r string) (bool, error) {
	switch op {
	case "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	default:
		return false, fmt.Errorf("%w: operator %s needs version operands, got %q and %q", ErrInvalidMarker, op, l, r)
	}
}

// ParseMarker parses a PEP 508 marker expression.
func ParseMarker(s string) (Marker, error) {
	toks, err := lexMarker(s)
	if err != nil {
		return Marker{}, err
	}
	p := &markerParser{src: s, toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return Marker{}, err
	}
	if !p.done() {
		return Marker{}, p.errorf("unexpected %q", p.peek().text)
	}
	return Marker{src: strings.TrimSpace(s), root: root}, nil
}

type tokenKind int

const (
	tokEOF   tokenKind = -1
	tokIdent tokenKind = iota
	tokString
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var markerOps = []string{"===", "==", "!=", "<=", ">=", "~=", "<", ">"}

func lexMarker(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '\'' || c == '"':
			end := strings.IndexByte(s[i+1:], c)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated string at %d in %q", ErrInvalidMarker, i, s)
			}
			toks = append(toks, token{kind: tokString, text: s[i+1 : i+1+end], pos: i})
			i += end + 2
		case isIdentByte(c):
			j := i
			for j < len(s) && (isIdentByte(s[j]) || s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: s[i:j], pos: i})
			i = j
		default:
			op := ""
			for _, candidate := range markerOps {
				if strings.HasPrefix(s[i:], candidate) {
					op = candidate
					break
				}
			}
			if op == "" {
				return nil, fmt.Errorf("%w: unexpected %q at %d in %q", ErrInvalidMarker, c, i, s)
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		}
	}
	return toks, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

type markerParser struct {
	src  string
	toks []token
	pos  int
}

func (p *markerParser) done() bool {
	return p.pos >= len(p.toks)
}

func (p *markerParser) peek() token {
	if p.done() {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *markerParser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *markerParser) keyword(word string) bool {
	t := p.peek()
	if t.kind == tokIdent && t.text == word {
		p.pos++
		return true
	}
	return false
}

func (p *markerParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s in %q", ErrInvalidMarker, fmt.Sprintf(format, args...), p.src)
}

func (p *markerParser) parseOr() (markerNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = boolNode{and: false, left: left, right: right}
	}
	return left, nil
}

func (p *markerParser) parseAnd() (markerNode, error) {
	left, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		right, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		left = boolNode{and: true, left: left, right: right}
	}
	return left, nil
}

func (p *markerParser) parseExpr() (markerNode, error) {
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRParen {
			return nil, p.errorf("missing )")
		}
		return inner, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	op, err := p.parseOp()
	if err != nil {
		return nil, err
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if left.variable == "" && right.variable == "" {
		return nil, p.errorf("comparison of two literals")
	}
	return compareNode{left: left, op: op, right: right}, nil
}

func (p *markerParser) parseOperand() (operand, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return operand{literal: t.text}, nil
	case tokIdent:
		if _, ok := markerVariables[t.text]; !ok {
			return operand{}, fmt.Errorf("%w: %s in %q", ErrUnknownVariable, t.text, p.src)
		}
		return operand{variable: t.text}, nil
	case tokEOF:
		return operand{}, p.errorf("unexpected end")
	default:
		return operand{}, p.errorf("unexpected %q", t.text)
	}
}

func (p *markerParser) parseOp() (string, error) {
	t := p.next()
	switch {
	case t.kind == tokOp:
		return t.text, nil
	case t.kind == tokIdent && t.text == "in":
		return "in", nil
	case t.kind == tokIdent && t.text == "not":
		if p.keyword("in") {
			return "not in", nil
		}
		return "", p.errorf("expected in after not")
	case t.kind == tokEOF:
		return "", p.errorf("missing operator")
	default:
		return "", p.errorf("unexpected %q, want an operator", t.text)
	}
}

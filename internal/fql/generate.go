package fql

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Generate renders an AST as canonical FQL.
//
// For any string s already in canonical form, Generate(Parse(s)) == s.
// A nested group with a single child is rendered as that child, so
// regenerating the output of Generate is idempotent.
//
// Trees that break the node invariants return a *GenerateError.
func Generate(g *Group) (string, error) {
	if g == nil {
		return "", &GenerateError{Message: "nil group"}
	}
	if err := Validate(g); err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := writeNode(&sb, unwrap(g), true); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// MustGenerate is like Generate but panics on error.
// Use only in tests or for trees produced by Parse.
func MustGenerate(g *Group) string {
	s, err := Generate(g)
	if err != nil {
		panic(err)
	}
	return s
}

// Normalize parses input and renders it back in canonical form.
func Normalize(input string) (string, error) {
	g, err := Parse(input)
	if err != nil {
		return "", err
	}
	return Generate(g)
}

// unwrap collapses groups with exactly one child into that child.
func unwrap(n Node) Node {
	for {
		g, ok := n.(*Group)
		if !ok || len(g.Children) != 1 {
			return n
		}
		n = g.Children[0]
	}
}

func writeNode(sb *strings.Builder, n Node, top bool) error {
	switch node := n.(type) {
	case *Condition:
		return writeCondition(sb, node)
	case *Group:
		if !top {
			sb.WriteByte('(')
		}
		for i, child := range node.Children {
			if i > 0 {
				sb.WriteByte(' ')
				sb.WriteString(string(node.Operator))
				sb.WriteByte(' ')
			}
			if err := writeNode(sb, unwrap(child), false); err != nil {
				return err
			}
		}
		if !top {
			sb.WriteByte(')')
		}
		return nil
	default:
		return &GenerateError{Message: fmt.Sprintf("unsupported node type %T", n)}
	}
}

func writeCondition(sb *strings.Builder, c *Condition) error {
	path, err := renderPath(c)
	if err != nil {
		return err
	}

	switch {
	case c.Operator == OpExists:
		sb.WriteString(path + " != null")
		return nil

	case c.Operator == OpNotExists:
		sb.WriteString(path + " = null")
		return nil

	case c.Operator.Comparison():
		value, err := renderValue(c.Value)
		if err != nil {
			return err
		}
		sb.WriteString(path + " " + string(c.Operator) + " " + value)
		return nil
	}

	// Pattern operators: contains, starts_with, ends_with and negations.
	s, ok := c.Value.(String)
	if !ok {
		return &GenerateError{Message: fmt.Sprintf("%s condition requires a string value", c.Operator)}
	}

	fn, pattern := funcContains, string(s)
	switch c.Operator.Positive() {
	case OpStartsWith:
		fn, pattern = funcMatch, pattern+wildcard
	case OpEndsWith:
		fn, pattern = funcMatch, wildcard+pattern
	}
	if fn == funcMatch && strings.Count(pattern, wildcard) != 1 {
		return &GenerateError{Message: fmt.Sprintf("%s value %q must not contain %s", c.Operator, s, wildcard)}
	}

	if c.Operator.Negated() {
		sb.WriteByte('!')
	}
	sb.WriteString(fn + "(" + path + ", " + quote(pattern) + ")")
	return nil
}

// renderPath is the inverse of classifyPath.
func renderPath(c *Condition) (string, error) {
	switch c.Type {
	case TypeEventType:
		return "type", nil
	case TypeEvent, TypeName, TypeUserID:
		return string(c.Type), nil
	case TypeEventProperty, TypeEventTrait:
		if !validName(c.Name) {
			return "", &GenerateError{Message: fmt.Sprintf("invalid %s name %q", c.Type, c.Name)}
		}
		if c.Type == TypeEventProperty {
			return propertiesPrefix + c.Name, nil
		}
		return traitsPrefix + c.Name, nil
	default:
		return "", &GenerateError{Message: fmt.Sprintf("invalid condition type %q", c.Type)}
	}
}

// validName reports whether name lexes back as part of a single path token.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r == utf8.RuneError || !isIdentChar(r) {
			return false
		}
	}
	return true
}

func renderValue(v Value) (string, error) {
	switch val := v.(type) {
	case String:
		return quote(string(val)), nil
	case Number:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", &GenerateError{Message: fmt.Sprintf("number %v has no FQL form", f)}
		}
		return formatNumber(val), nil
	case Bool:
		if val {
			return "true", nil
		}
		return "false", nil
	default:
		return "", &GenerateError{Message: fmt.Sprintf("unsupported value type %T", v)}
	}
}

// quote wraps s in double quotes, escaping only '"' and '\'.
func quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	sb.WriteByte('"')
	return sb.String()
}

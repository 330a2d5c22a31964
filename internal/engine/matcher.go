package engine

import (
	"strings"

	"github.com/valyala/fastjson"

	"github.com/roach88/fql/internal/event"
	"github.com/roach88/fql/internal/fql"
)

// Match reports whether ev satisfies the subscription tree g.
//
// Semantics per operator:
//   - = and != compare by JSON type; a number never equals a string.
//   - <, <=, >, >= hold only when both sides are numbers.
//   - contains, starts_with, ends_with hold only on string fields and are
//     case-sensitive; their not_ forms are the plain negation, so a missing
//     field satisfies not_contains.
//   - exists holds when the field is present and not null.
//
// A nil group matches nothing.
func Match(g *fql.Group, ev *event.Event) bool {
	if g == nil || ev == nil {
		return false
	}
	return matchNode(g, ev)
}

func matchNode(n fql.Node, ev *event.Event) bool {
	switch node := n.(type) {
	case *fql.Group:
		return matchGroup(node, ev)
	case *fql.Condition:
		return matchCondition(node, ev)
	default:
		return false
	}
}

// matchGroup short-circuits in child order.
func matchGroup(g *fql.Group, ev *event.Event) bool {
	switch g.Operator {
	case fql.And:
		for _, child := range g.Children {
			if !matchNode(child, ev) {
				return false
			}
		}
		return len(g.Children) > 0
	case fql.Or:
		for _, child := range g.Children {
			if matchNode(child, ev) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func matchCondition(c *fql.Condition, ev *event.Event) bool {
	field := resolve(c, ev)

	switch c.Operator {
	case fql.OpExists:
		return present(field)
	case fql.OpNotExists:
		return !present(field)
	case fql.OpEqual:
		return equal(field, c.Value)
	case fql.OpNotEqual:
		return !equal(field, c.Value)
	case fql.OpLess, fql.OpLessEqual, fql.OpGreater, fql.OpGreaterEqual:
		return compare(field, c.Operator, c.Value)
	}

	if c.Operator.Negated() {
		return !matchPattern(field, c.Operator.Positive(), c.Value)
	}
	return matchPattern(field, c.Operator, c.Value)
}

// resolve finds the event field a condition inspects.
func resolve(c *fql.Condition, ev *event.Event) *fastjson.Value {
	switch c.Type {
	case fql.TypeEventType:
		return ev.Field(event.FieldType)
	case fql.TypeEvent:
		return ev.Field(event.FieldEvent)
	case fql.TypeName:
		return ev.Field(event.FieldName)
	case fql.TypeUserID:
		return ev.Field(event.FieldUserID)
	case fql.TypeEventProperty:
		return ev.Property(c.Name)
	case fql.TypeEventTrait:
		return ev.Trait(c.Name)
	default:
		return nil
	}
}

func present(v *fastjson.Value) bool {
	return v != nil && v.Type() != fastjson.TypeNull
}

func equal(v *fastjson.Value, want fql.Value) bool {
	if v == nil {
		return false
	}
	switch w := want.(type) {
	case fql.String:
		return v.Type() == fastjson.TypeString && string(v.GetStringBytes()) == string(w)
	case fql.Number:
		return v.Type() == fastjson.TypeNumber && v.GetFloat64() == float64(w)
	case fql.Bool:
		switch v.Type() {
		case fastjson.TypeTrue:
			return bool(w)
		case fastjson.TypeFalse:
			return !bool(w)
		}
	}
	return false
}

func compare(v *fastjson.Value, op fql.Operator, want fql.Value) bool {
	n, ok := want.(fql.Number)
	if !ok || v == nil || v.Type() != fastjson.TypeNumber {
		return false
	}
	got, limit := v.GetFloat64(), float64(n)

	switch op {
	case fql.OpLess:
		return got < limit
	case fql.OpLessEqual:
		return got <= limit
	case fql.OpGreater:
		return got > limit
	case fql.OpGreaterEqual:
		return got >= limit
	}
	return false
}

func matchPattern(v *fastjson.Value, op fql.Operator, want fql.Value) bool {
	s, ok := want.(fql.String)
	if !ok || v == nil || v.Type() != fastjson.TypeString {
		return false
	}
	got := string(v.GetStringBytes())

	switch op {
	case fql.OpContains:
		return strings.Contains(got, string(s))
	case fql.OpStartsWith:
		return strings.HasPrefix(got, string(s))
	case fql.OpEndsWith:
		return strings.HasSuffix(got, string(s))
	}
	return false
}

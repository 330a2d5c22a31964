package fql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Node is a sealed interface for AST nodes.
// Only *Group and *Condition implement it.
type Node interface {
	fqlNode() // Marker method - seals interface to this package
}

// ConditionType identifies which part of an event a Condition inspects.
type ConditionType string

const (
	TypeEventType     ConditionType = "event-type"
	TypeEvent         ConditionType = "event"
	TypeName          ConditionType = "name"
	TypeUserID        ConditionType = "userId"
	TypeEventProperty ConditionType = "event-property"
	TypeEventTrait    ConditionType = "event-trait"
)

// Named reports whether conditions of this type carry a Name.
func (t ConditionType) Named() bool {
	return t == TypeEventProperty || t == TypeEventTrait
}

// Valid reports whether t is a known condition type.
func (t ConditionType) Valid() bool {
	switch t {
	case TypeEventType, TypeEvent, TypeName, TypeUserID, TypeEventProperty, TypeEventTrait:
		return true
	}
	return false
}

// Operator is the predicate applied by a Condition.
type Operator string

const (
	OpEqual         Operator = "="
	OpNotEqual      Operator = "!="
	OpLess          Operator = "<"
	OpLessEqual     Operator = "<="
	OpGreater       Operator = ">"
	OpGreaterEqual  Operator = ">="
	OpExists        Operator = "exists"
	OpNotExists     Operator = "not_exists"
	OpContains      Operator = "contains"
	OpNotContains   Operator = "not_contains"
	OpStartsWith    Operator = "starts_with"
	OpNotStartsWith Operator = "not_starts_with"
	OpEndsWith      Operator = "ends_with"
	OpNotEndsWith   Operator = "not_ends_with"
)

// negated maps each pattern operator to its "not_" counterpart.
var negated = map[Operator]Operator{
	OpContains:   OpNotContains,
	OpStartsWith: OpNotStartsWith,
	OpEndsWith:   OpNotEndsWith,
}

// Negate returns the negated form of a pattern operator.
// Operators without a negated form are returned unchanged.
func (o Operator) Negate() Operator {
	if n, ok := negated[o]; ok {
		return n
	}
	return o
}

// Negated reports whether o is one of the not_* pattern operators.
func (o Operator) Negated() bool {
	return o == OpNotContains || o == OpNotStartsWith || o == OpNotEndsWith
}

// Positive returns the non-negated form of a pattern operator.
func (o Operator) Positive() Operator {
	switch o {
	case OpNotContains:
		return OpContains
	case OpNotStartsWith:
		return OpStartsWith
	case OpNotEndsWith:
		return OpEndsWith
	}
	return o
}

// Existence reports whether o is exists or not_exists.
func (o Operator) Existence() bool {
	return o == OpExists || o == OpNotExists
}

// Comparison reports whether o is one of the six comparison operators.
func (o Operator) Comparison() bool {
	switch o {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	}
	return false
}

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	switch o {
	case OpContains, OpNotContains, OpStartsWith, OpNotStartsWith, OpEndsWith, OpNotEndsWith:
		return true
	}
	return o.Comparison() || o.Existence()
}

// GroupOperator joins the children of a Group.
type GroupOperator string

const (
	And GroupOperator = "and"
	Or  GroupOperator = "or"
)

// Value is a sealed interface for condition values.
// Only String, Number and Bool implement it.
type Value interface {
	fqlValue() // Sealed
}

// String is a quoted literal. It stays a string even when it looks numeric.
type String string

func (String) fqlValue() {}

// Number is an unquoted numeric literal.
type Number float64

func (Number) fqlValue() {}

// Bool is an unquoted true or false literal.
type Bool bool

func (Bool) fqlValue() {}

// Condition is a leaf predicate.
//
// Value is nil exactly when Operator is exists or not_exists.
// Name is set exactly when Type is event-property or event-trait.
type Condition struct {
	Type     ConditionType
	Name     string
	Operator Operator
	Value    Value
}

func (*Condition) fqlNode() {}

// Group combines its children with a single boolean operator.
// A Group always has at least one child; child order is preserved.
type Group struct {
	Operator GroupOperator
	Children []Node
}

func (*Group) fqlNode() {}

// NewGroup creates a group with the given children.
func NewGroup(op GroupOperator, children ...Node) *Group {
	return &Group{Operator: op, Children: children}
}

// jsonCondition is the wire shape of a Condition.
type jsonCondition struct {
	Type     ConditionType   `json:"type"`
	Name     string          `json:"name,omitempty"`
	Operator Operator        `json:"operator"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// jsonGroup is the wire shape of a Group.
type jsonGroup struct {
	Type     string            `json:"type"`
	Operator GroupOperator     `json:"operator"`
	Children []json.RawMessage `json:"children"`
}

// MarshalJSON encodes the condition as
// {"type":...,"name":...,"operator":...,"value":...}.
func (c *Condition) MarshalJSON() ([]byte, error) {
	out := jsonCondition{Type: c.Type, Name: c.Name, Operator: c.Operator}
	if c.Value != nil {
		raw, err := marshalValue(c.Value)
		if err != nil {
			return nil, err
		}
		out.Value = raw
	}
	return encodeJSON(out, "")
}

// MarshalJSON encodes the group as {"type":"group","operator":...,"children":[...]}.
func (g *Group) MarshalJSON() ([]byte, error) {
	out := jsonGroup{Type: "group", Operator: g.Operator, Children: make([]json.RawMessage, 0, len(g.Children))}
	for i, child := range g.Children {
		raw, err := encodeJSON(child, "")
		if err != nil {
			return nil, fmt.Errorf("children[%d]: %w", i, err)
		}
		out.Children = append(out.Children, raw)
	}
	return encodeJSON(out, "")
}

// Marshal encodes a node as compact JSON without HTML escaping.
func Marshal(n Node) ([]byte, error) {
	return encodeJSON(n, "")
}

// MarshalIndent encodes a node as indented JSON without HTML escaping,
// so comparison operators stay readable.
func MarshalIndent(n Node) ([]byte, error) {
	return encodeJSON(n, "  ")
}

// encodeJSON marshals v without HTML escaping. encoding/json escapes
// '<' and '>' by default, which would mangle comparison operators.
func encodeJSON(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON decodes a group and its descendants.
func (g *Group) UnmarshalJSON(data []byte) error {
	node, err := UnmarshalNode(data)
	if err != nil {
		return err
	}
	group, ok := node.(*Group)
	if !ok {
		return fmt.Errorf("expected group, got condition")
	}
	*g = *group
	return nil
}

// UnmarshalNode decodes a Group or Condition from its JSON shape.
// The result is structurally decoded only; use Validate to check invariants.
func UnmarshalNode(data []byte) (Node, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	if head.Type == "group" {
		var raw jsonGroup
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		g := &Group{Operator: raw.Operator, Children: make([]Node, 0, len(raw.Children))}
		for i, childData := range raw.Children {
			child, err := UnmarshalNode(childData)
			if err != nil {
				return nil, fmt.Errorf("children[%d]: %w", i, err)
			}
			g.Children = append(g.Children, child)
		}
		return g, nil
	}

	var raw jsonCondition
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	c := &Condition{Type: raw.Type, Name: raw.Name, Operator: raw.Operator}
	if len(raw.Value) > 0 && string(raw.Value) != "null" {
		v, err := unmarshalValue(raw.Value)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		c.Value = v
	}
	return c, nil
}

func marshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case String:
		return encodeJSON(string(val), "")
	case Number:
		return []byte(formatNumber(val)), nil
	case Bool:
		return json.Marshal(bool(val))
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

func unmarshalValue(data []byte) (Value, error) {
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, fmt.Errorf("unsupported value %s", string(data))
		}
		return Number(n), nil
	}
}

// formatNumber renders a number in its shortest decimal form without exponent.
func formatNumber(n Number) string {
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}

// Validate checks the structural invariants of a node tree:
// groups are non-empty and use and/or, conditions carry a value unless they
// test existence, and only property and trait conditions carry a name.
func Validate(n Node) error {
	switch node := n.(type) {
	case *Group:
		if node == nil {
			return &GenerateError{Message: "nil group"}
		}
		if node.Operator != And && node.Operator != Or {
			return &GenerateError{Message: fmt.Sprintf("invalid group operator %q", node.Operator)}
		}
		if len(node.Children) == 0 {
			return &GenerateError{Message: "group has no children"}
		}
		for _, child := range node.Children {
			if err := Validate(child); err != nil {
				return err
			}
		}
		return nil
	case *Condition:
		if node == nil {
			return &GenerateError{Message: "nil condition"}
		}
		return validateCondition(node)
	default:
		return &GenerateError{Message: fmt.Sprintf("unsupported node type %T", n)}
	}
}

func validateCondition(c *Condition) error {
	if !c.Type.Valid() {
		return &GenerateError{Message: fmt.Sprintf("invalid condition type %q", c.Type)}
	}
	if !c.Operator.Valid() {
		return &GenerateError{Message: fmt.Sprintf("invalid operator %q", c.Operator)}
	}
	if c.Type.Named() && c.Name == "" {
		return &GenerateError{Message: fmt.Sprintf("%s condition requires a name", c.Type)}
	}
	if !c.Type.Named() && c.Name != "" {
		return &GenerateError{Message: fmt.Sprintf("%s condition must not carry a name", c.Type)}
	}
	if c.Operator.Existence() {
		if c.Value != nil {
			return &GenerateError{Message: fmt.Sprintf("%s condition must not carry a value", c.Operator)}
		}
		return nil
	}
	if c.Value == nil {
		return &GenerateError{Message: fmt.Sprintf("%s condition requires a value", c.Operator)}
	}
	if !c.Operator.Comparison() {
		if _, ok := c.Value.(String); !ok {
			return &GenerateError{Message: fmt.Sprintf("%s condition requires a string value", c.Operator)}
		}
	}
	return nil
}

// Package querysql compiles FQL subscription trees to parameterized SQLite.
//
// The compiled predicate runs over a JSON column holding the raw event and
// uses json_type/json_extract, so stored events can be filtered with the
// same semantics Match applies in memory.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/fql/internal/fql"
)

// DefaultColumn is the JSON column that holds the event payload.
const DefaultColumn = "payload"

// missingType stands in for json_type of an absent path, so every
// predicate evaluates to 0 or 1 and never to NULL.
const missingType = "'missing'"

// SQLCompiler compiles FQL trees to SQLite predicates.
//
// CRITICAL: All values and JSON paths are parameterized, never interpolated.
// CRITICAL: Every SELECT carries an ORDER BY with a deterministic tiebreaker.
type SQLCompiler struct {
	// Column is the JSON column to query. It is interpolated and must be a
	// trusted identifier.
	Column string
}

// NewSQLCompiler creates a compiler over the given JSON column.
// An empty column selects DefaultColumn.
func NewSQLCompiler(column string) *SQLCompiler {
	if column == "" {
		column = DefaultColumn
	}
	return &SQLCompiler{Column: column}
}

// Compile is shorthand for NewSQLCompiler(DefaultColumn).Compile(g).
func Compile(g *fql.Group) (string, []any, error) {
	return NewSQLCompiler(DefaultColumn).Compile(g)
}

// Compile converts g into a WHERE-clause fragment and its parameters.
func (c *SQLCompiler) Compile(g *fql.Group) (string, []any, error) {
	if g == nil {
		return "", nil, fmt.Errorf("cannot compile nil group")
	}
	if err := fql.Validate(g); err != nil {
		return "", nil, fmt.Errorf("compile: %w", err)
	}

	var params []any
	sql, err := c.compileNode(g, &params, true)
	if err != nil {
		return "", nil, err
	}
	return sql, params, nil
}

// CompileSelect builds a full SELECT over table filtered by g.
// Rows are ordered by seq, then id, for deterministic results.
func (c *SQLCompiler) CompileSelect(table string, columns []string, g *fql.Group) (string, []any, error) {
	where, params, err := c.Compile(g)
	if err != nil {
		return "", nil, err
	}

	selectClause := "*"
	if len(columns) > 0 {
		selectClause = strings.Join(columns, ", ")
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY seq ASC, id COLLATE BINARY ASC",
		selectClause, table, where)
	return sql, params, nil
}

func (c *SQLCompiler) compileNode(n fql.Node, params *[]any, top bool) (string, error) {
	switch node := n.(type) {
	case *fql.Group:
		return c.compileGroup(node, params, top)
	case *fql.Condition:
		return c.compileCondition(node, params)
	default:
		return "", fmt.Errorf("unsupported node type: %T", n)
	}
}

func (c *SQLCompiler) compileGroup(g *fql.Group, params *[]any, top bool) (string, error) {
	sep := " AND "
	if g.Operator == fql.Or {
		sep = " OR "
	}

	parts := make([]string, 0, len(g.Children))
	for _, child := range g.Children {
		sql, err := c.compileNode(child, params, false)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}

	sql := strings.Join(parts, sep)
	if top || len(parts) == 1 {
		return sql, nil
	}
	return "(" + sql + ")", nil
}

// compileCondition mirrors the in-memory evaluator: comparisons are
// type-strict, ordering is numeric only, patterns are string only.
//
// Parameters are appended in the order their placeholders appear.
func (c *SQLCompiler) compileCondition(cond *fql.Condition, params *[]any) (string, error) {
	paths, err := candidatePaths(cond)
	if err != nil {
		return "", err
	}

	switch cond.Operator {
	case fql.OpExists:
		return fmt.Sprintf("%s NOT IN ('null', %s)", c.typeExpr(paths, params), missingType), nil
	case fql.OpNotExists:
		return fmt.Sprintf("%s IN ('null', %s)", c.typeExpr(paths, params), missingType), nil
	case fql.OpEqual:
		return c.compileEqual(cond.Value, paths, params)
	case fql.OpNotEqual:
		sql, err := c.compileEqual(cond.Value, paths, params)
		if err != nil {
			return "", err
		}
		return "NOT " + sql, nil
	}

	if cond.Operator.Comparison() {
		n, ok := cond.Value.(fql.Number)
		if !ok {
			return "0", nil
		}
		typeExpr := c.typeExpr(paths, params)
		valueExpr := c.valueExpr(paths, params)
		*params = append(*params, float64(n))
		return fmt.Sprintf("(%s IN ('integer', 'real') AND %s %s ?)", typeExpr, valueExpr, cond.Operator), nil
	}

	s, ok := cond.Value.(fql.String)
	if !ok {
		return "", fmt.Errorf("%s condition requires a string value", cond.Operator)
	}
	typeExpr := c.typeExpr(paths, params)

	var sql string
	switch cond.Operator.Positive() {
	case fql.OpContains:
		valueExpr := c.valueExpr(paths, params)
		*params = append(*params, string(s))
		sql = fmt.Sprintf("(%s = 'text' AND instr(%s, ?) > 0)", typeExpr, valueExpr)
	case fql.OpStartsWith:
		valueExpr := c.valueExpr(paths, params)
		*params = append(*params, string(s), string(s))
		sql = fmt.Sprintf("(%s = 'text' AND substr(%s, 1, length(?)) = ?)", typeExpr, valueExpr)
	case fql.OpEndsWith:
		lengthExpr := c.valueExpr(paths, params)
		*params = append(*params, string(s))
		substrExpr := c.valueExpr(paths, params)
		offsetExpr := c.valueExpr(paths, params)
		*params = append(*params, string(s), string(s))
		sql = fmt.Sprintf("(%s = 'text' AND length(%s) >= length(?) AND substr(%s, length(%s) - length(?) + 1) = ?)",
			typeExpr, lengthExpr, substrExpr, offsetExpr)
	default:
		return "", fmt.Errorf("unsupported operator %q", cond.Operator)
	}

	if cond.Operator.Negated() {
		return "NOT " + sql, nil
	}
	return sql, nil
}

func (c *SQLCompiler) compileEqual(v fql.Value, paths []string, params *[]any) (string, error) {
	typeExpr := c.typeExpr(paths, params)

	switch val := v.(type) {
	case fql.String:
		valueExpr := c.valueExpr(paths, params)
		*params = append(*params, string(val))
		return fmt.Sprintf("(%s = 'text' AND %s = ?)", typeExpr, valueExpr), nil
	case fql.Number:
		valueExpr := c.valueExpr(paths, params)
		*params = append(*params, float64(val))
		return fmt.Sprintf("(%s IN ('integer', 'real') AND %s = ?)", typeExpr, valueExpr), nil
	case fql.Bool:
		if val {
			return fmt.Sprintf("(%s = 'true')", typeExpr), nil
		}
		return fmt.Sprintf("(%s = 'false')", typeExpr), nil
	default:
		return "", fmt.Errorf("unsupported value type: %T", v)
	}
}

// typeExpr is json_type of the first present candidate path, or 'missing'.
func (c *SQLCompiler) typeExpr(paths []string, params *[]any) string {
	parts := make([]string, 0, len(paths)+1)
	for _, p := range paths {
		parts = append(parts, fmt.Sprintf("json_type(%s, ?)", c.Column))
		*params = append(*params, p)
	}
	parts = append(parts, missingType)
	return "COALESCE(" + strings.Join(parts, ", ") + ")"
}

// valueExpr is json_extract of the first present candidate path.
func (c *SQLCompiler) valueExpr(paths []string, params *[]any) string {
	if len(paths) == 1 {
		*params = append(*params, paths[0])
		return fmt.Sprintf("json_extract(%s, ?)", c.Column)
	}

	var sb strings.Builder
	sb.WriteString("CASE")
	for _, p := range paths {
		fmt.Fprintf(&sb, " WHEN json_type(%s, ?) IS NOT NULL THEN json_extract(%s, ?)", c.Column, c.Column)
		*params = append(*params, p, p)
	}
	sb.WriteString(" END")
	return sb.String()
}

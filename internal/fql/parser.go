package fql

import (
	"fmt"
	"strconv"
	"strings"
)

// Grammar:
//
//	expr          := orExpr
//	orExpr        := andExpr ( "or" andExpr )*
//	andExpr       := term ( "and" term )*
//	term          := "(" expr ")" | condition
//	condition     := pathCondition | funcCondition
//	pathCondition := path comparisonOp ( value | "null" )
//	funcCondition := [ "!" ] ( "contains" | "match" ) "(" path "," string ")"

// Path prefixes for property and trait conditions.
const (
	propertiesPrefix = "properties."
	traitsPrefix     = "traits."
)

// fixedPaths maps bare paths to their condition types.
var fixedPaths = map[string]ConditionType{
	"type":   TypeEventType,
	"event":  TypeEvent,
	"name":   TypeName,
	"userId": TypeUserID,
}

// Function names accepted in funcCondition.
const (
	funcContains = "contains"
	funcMatch    = "match"
)

// wildcard is the only pattern character understood by match().
const wildcard = "*"

// Parser parses FQL token streams into an AST.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse parses an FQL string into its AST.
//
// The root is always a *Group; a single condition is wrapped in an "and"
// group with one child. Any failure is returned as a *ParseError and no
// partial tree is returned. Parse never panics.
func Parse(input string) (root *Group, err error) {
	defer func() {
		if r := recover(); r != nil {
			root = nil
			err = &ParseError{Code: ErrCodeInternal, Message: fmt.Sprint(r)}
		}
	}()

	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}

	p := &Parser{tokens: tokens}
	if p.current().Type == TokenEOF {
		return nil, newParseError(ErrCodeEmpty, 0, "empty expression")
	}

	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	switch tok := p.current(); tok.Type {
	case TokenEOF:
	case TokenRParen:
		return nil, newParseError(ErrCodeUnbalancedParens, tok.Offset, "unexpected ')'")
	default:
		return nil, newParseError(ErrCodeUnexpectedToken, tok.Offset, "unexpected %s %q", tok.Type, tok.Value)
	}

	if g, ok := node.(*Group); ok {
		return g, nil
	}
	return NewGroup(And, node), nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or for inputs known to be valid.
func MustParse(input string) *Group {
	g, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return g
}

// ParseResult is the all-or-nothing outcome of parsing a subscription.
// Exactly one of Group and Err is set.
type ParseResult struct {
	Group *Group
	Err   error
}

// OK reports whether parsing succeeded.
func (r ParseResult) OK() bool {
	return r.Err == nil
}

// ParseResultOf parses input and packs the outcome into a ParseResult.
func ParseResultOf(input string) ParseResult {
	g, err := Parse(input)
	if err != nil {
		return ParseResult{Err: err}
	}
	return ParseResult{Group: g}
}

func (p *Parser) current() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return p.tokens[len(p.tokens)-1] // EOF
}

func (p *Parser) advance() Token {
	tok := p.current()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.current()
	if tok.Type != tt {
		if tok.Type == TokenEOF && tt == TokenRParen {
			return tok, newParseError(ErrCodeUnbalancedParens, tok.Offset, "expected ')' but reached end of input")
		}
		return tok, p.unexpected(tok, "expected "+tt.String())
	}
	p.advance()
	return tok, nil
}

func (p *Parser) unexpected(tok Token, context string) *ParseError {
	if tok.Type == TokenEOF {
		return newParseError(ErrCodeUnexpectedToken, tok.Offset, "%s but reached end of input", context)
	}
	return newParseError(ErrCodeUnexpectedToken, tok.Offset, "%s but got %s %q", context, tok.Type, tok.Value)
}

// parseOr handles "or" chains (lowest precedence).
func (p *Parser) parseOr() (Node, error) {
	return p.parseChain(Or, TokenOr, p.parseAnd)
}

// parseAnd handles "and" chains.
func (p *Parser) parseAnd() (Node, error) {
	return p.parseChain(And, TokenAnd, p.parseTerm)
}

// parseChain collects operands joined by sep into one flat group.
// A single operand is returned as-is.
func (p *Parser) parseChain(op GroupOperator, sep TokenType, operand func() (Node, error)) (Node, error) {
	first, err := operand()
	if err != nil {
		return nil, err
	}

	nodes := []Node{first}
	for p.current().Type == sep {
		p.advance()
		next, err := operand()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, next)
	}

	if len(nodes) == 1 {
		return first, nil
	}
	return NewGroup(op, nodes...), nil
}

// parseTerm handles a parenthesized expression or a single condition.
func (p *Parser) parseTerm() (Node, error) {
	tok := p.current()
	switch tok.Type {
	case TokenLParen:
		p.advance()
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return node, nil

	case TokenRParen:
		return nil, newParseError(ErrCodeUnbalancedParens, tok.Offset, "unexpected ')'")

	case TokenBang:
		p.advance()
		return p.parseFunc(true)

	case TokenIdent:
		if p.isFuncCall() {
			return p.parseFunc(false)
		}
		return p.parsePathCondition()

	default:
		return nil, p.unexpected(tok, "expected condition")
	}
}

// isFuncCall reports whether the current identifier starts contains( or match(.
func (p *Parser) isFuncCall() bool {
	name := p.current().Value
	if name != funcContains && name != funcMatch {
		return false
	}
	next := p.pos + 1
	return next < len(p.tokens) && p.tokens[next].Type == TokenLParen
}

// parsePathCondition parses `path op value`, including the null shorthands.
func (p *Parser) parsePathCondition() (Node, error) {
	pathTok := p.advance()
	cond, err := classifyPath(pathTok)
	if err != nil {
		return nil, err
	}

	opTok := p.current()
	op, ok := comparisonOps[opTok.Type]
	if !ok {
		return nil, p.unexpected(opTok, fmt.Sprintf("expected comparison operator after %s", pathTok.Value))
	}
	p.advance()

	valTok := p.current()
	switch valTok.Type {
	case TokenEOF, TokenAnd, TokenOr, TokenRParen:
		return nil, newParseError(ErrCodeMissingValue, valTok.Offset, msgValueMissing)

	case TokenNull:
		p.advance()
		switch op {
		case OpNotEqual:
			cond.Operator = OpExists
		case OpEqual:
			cond.Operator = OpNotExists
		default:
			return nil, newParseError(ErrCodeUnexpectedToken, valTok.Offset, "null can only be compared with = or !=")
		}
		return cond, nil
	}

	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	cond.Operator = op
	cond.Value = value
	return cond, nil
}

// parseValue converts the current literal token into a Value.
// Quoted literals stay strings; unquoted numbers and booleans keep their type.
func (p *Parser) parseValue() (Value, error) {
	tok := p.current()
	switch tok.Type {
	case TokenString:
		p.advance()
		return String(tok.Value), nil
	case TokenNumber:
		n, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, newParseError(ErrCodeUnexpectedToken, tok.Offset, "invalid number %q", tok.Value)
		}
		p.advance()
		return Number(n), nil
	case TokenTrue, TokenFalse:
		p.advance()
		return Bool(tok.Type == TokenTrue), nil
	default:
		return nil, p.unexpected(tok, "expected value")
	}
}

// parseFunc parses contains(path, "x") and match(path, "x*"), optionally
// negated by a leading "!".
func (p *Parser) parseFunc(negate bool) (Node, error) {
	nameTok := p.current()
	if nameTok.Type != TokenIdent || (nameTok.Value != funcContains && nameTok.Value != funcMatch) {
		return nil, p.unexpected(nameTok, "expected contains or match after '!'")
	}
	p.advance()

	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}

	pathTok := p.current()
	if pathTok.Type != TokenIdent {
		return nil, p.unexpected(pathTok, fmt.Sprintf("expected path in %s()", nameTok.Value))
	}
	p.advance()
	cond, err := classifyPath(pathTok)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenComma); err != nil {
		return nil, err
	}

	valTok := p.current()
	switch valTok.Type {
	case TokenString:
		p.advance()
	case TokenEOF, TokenRParen:
		return nil, newParseError(ErrCodeMissingValue, valTok.Offset, msgValueMissing)
	default:
		return nil, p.unexpected(valTok, fmt.Sprintf("expected string in %s()", nameTok.Value))
	}

	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}

	if nameTok.Value == funcContains {
		cond.Operator = OpContains
		cond.Value = String(valTok.Value)
	} else {
		op, value, err := desugarPattern(valTok)
		if err != nil {
			return nil, err
		}
		cond.Operator = op
		cond.Value = String(value)
	}

	if negate {
		cond.Operator = cond.Operator.Negate()
	}
	return cond, nil
}

// desugarPattern turns "X*" into starts_with X and "*X" into ends_with X.
// Any other placement or count of wildcards is rejected.
func desugarPattern(tok Token) (Operator, string, error) {
	pattern := tok.Value
	leading := strings.HasPrefix(pattern, wildcard)
	trailing := strings.HasSuffix(pattern, wildcard)

	if leading == trailing {
		return "", "", newParseError(ErrCodeInvalidPattern, tok.Offset,
			"match pattern %q must have exactly one leading or trailing %s", pattern, wildcard)
	}

	var op Operator
	var value string
	if trailing {
		op, value = OpStartsWith, strings.TrimSuffix(pattern, wildcard)
	} else {
		op, value = OpEndsWith, strings.TrimPrefix(pattern, wildcard)
	}

	if strings.Contains(value, wildcard) {
		return "", "", newParseError(ErrCodeInvalidPattern, tok.Offset,
			"match pattern %q must not contain interior %s", pattern, wildcard)
	}
	return op, value, nil
}

// classifyPath maps a path token to a condition with Type (and Name) set.
func classifyPath(tok Token) (*Condition, error) {
	path := tok.Value
	if t, ok := fixedPaths[path]; ok {
		return &Condition{Type: t}, nil
	}
	if name, ok := strings.CutPrefix(path, propertiesPrefix); ok && name != "" {
		return &Condition{Type: TypeEventProperty, Name: name}, nil
	}
	if name, ok := strings.CutPrefix(path, traitsPrefix); ok && name != "" {
		return &Condition{Type: TypeEventTrait, Name: name}, nil
	}
	return nil, newParseError(ErrCodeUnsupportedPath, tok.Offset, "unsupported path %q", path)
}

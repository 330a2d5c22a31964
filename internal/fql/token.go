package fql

import "fmt"

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenString
	TokenNumber
	TokenNull
	TokenTrue
	TokenFalse
	TokenAnd
	TokenOr
	TokenEq  // =
	TokenNeq // !=
	TokenLt  // <
	TokenLte // <=
	TokenGt  // >
	TokenGte // >=
	TokenBang
	TokenLParen
	TokenRParen
	TokenComma
)

var tokenNames = map[TokenType]string{
	TokenEOF:    "end of input",
	TokenIdent:  "identifier",
	TokenString: "string",
	TokenNumber: "number",
	TokenNull:   "null",
	TokenTrue:   "true",
	TokenFalse:  "false",
	TokenAnd:    "and",
	TokenOr:     "or",
	TokenEq:     "=",
	TokenNeq:    "!=",
	TokenLt:     "<",
	TokenLte:    "<=",
	TokenGt:     ">",
	TokenGte:    ">=",
	TokenBang:   "!",
	TokenLParen: "(",
	TokenRParen: ")",
	TokenComma:  ",",
}

// String returns a readable name for the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token represents a lexical token.
// For strings, Value holds the decoded literal without quotes.
type Token struct {
	Type   TokenType
	Value  string
	Offset int
}

// comparisonOps maps comparison tokens to condition operators.
var comparisonOps = map[TokenType]Operator{
	TokenEq:  OpEqual,
	TokenNeq: OpNotEqual,
	TokenLt:  OpLess,
	TokenLte: OpLessEqual,
	TokenGt:  OpGreater,
	TokenGte: OpGreaterEqual,
}

// keywords are reserved identifiers. FQL keywords are lowercase only.
var keywords = map[string]TokenType{
	"and":   TokenAnd,
	"or":    TokenOr,
	"null":  TokenNull,
	"true":  TokenTrue,
	"false": TokenFalse,
}

package fql

import (
	"errors"
	"fmt"
)

// ParseErrorCode categorizes parse errors.
type ParseErrorCode string

const (
	// ErrCodeEmpty indicates the input contained no expression.
	ErrCodeEmpty ParseErrorCode = "EMPTY_EXPRESSION"

	// ErrCodeUnexpectedToken indicates a token that does not fit the grammar.
	ErrCodeUnexpectedToken ParseErrorCode = "UNEXPECTED_TOKEN"

	// ErrCodeMissingValue indicates a comparison without a right-hand side.
	ErrCodeMissingValue ParseErrorCode = "MISSING_VALUE"

	// ErrCodeUnterminatedString indicates a string literal without a closing quote.
	ErrCodeUnterminatedString ParseErrorCode = "UNTERMINATED_STRING"

	// ErrCodeInvalidCharacter indicates a character the lexer does not recognize.
	ErrCodeInvalidCharacter ParseErrorCode = "INVALID_CHARACTER"

	// ErrCodeUnsupportedPath indicates a path that maps to no condition type.
	ErrCodeUnsupportedPath ParseErrorCode = "UNSUPPORTED_PATH"

	// ErrCodeInvalidPattern indicates a match() pattern without exactly one
	// leading or trailing wildcard.
	ErrCodeInvalidPattern ParseErrorCode = "INVALID_PATTERN"

	// ErrCodeUnbalancedParens indicates a missing or extra parenthesis.
	ErrCodeUnbalancedParens ParseErrorCode = "UNBALANCED_PARENS"

	// ErrCodeInternal indicates a fault recovered at the Parse boundary.
	ErrCodeInternal ParseErrorCode = "INTERNAL"
)

// msgValueMissing is reported when a comparison has no right-hand side.
const msgValueMissing = "Value token is missing"

// ParseError is returned by Parse for any malformed input.
// No partial AST is ever returned alongside it.
type ParseError struct {
	// Code identifies the error category.
	Code ParseErrorCode

	// Message is a human-readable description.
	Message string

	// Offset is the byte offset in the input where the error was detected.
	Offset int
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Message, e.Offset)
}

// IsParseError returns true if err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func newParseError(code ParseErrorCode, offset int, format string, args ...any) *ParseError {
	return &ParseError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Offset:  offset,
	}
}

// GenerateError is returned by Generate for ASTs that break node invariants.
// These are programmer errors: a tree produced by Parse never triggers one.
type GenerateError struct {
	Message string
}

// Error implements the error interface.
func (e *GenerateError) Error() string {
	return "generate: " + e.Message
}

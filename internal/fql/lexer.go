package fql

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Lexer tokenizes FQL input.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize returns every token of the input, ending with TokenEOF.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Offset: l.pos}, nil
	}

	start := l.pos
	ch := l.input[l.pos]

	switch ch {
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Value: "(", Offset: start}, nil
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Value: ")", Offset: start}, nil
	case ',':
		l.pos++
		return Token{Type: TokenComma, Value: ",", Offset: start}, nil
	case '=':
		l.pos++
		return Token{Type: TokenEq, Value: "=", Offset: start}, nil
	case '!':
		if l.peek(1) == '=' {
			l.pos += 2
			return Token{Type: TokenNeq, Value: "!=", Offset: start}, nil
		}
		l.pos++
		return Token{Type: TokenBang, Value: "!", Offset: start}, nil
	case '<':
		if l.peek(1) == '=' {
			l.pos += 2
			return Token{Type: TokenLte, Value: "<=", Offset: start}, nil
		}
		l.pos++
		return Token{Type: TokenLt, Value: "<", Offset: start}, nil
	case '>':
		if l.peek(1) == '=' {
			l.pos += 2
			return Token{Type: TokenGte, Value: ">=", Offset: start}, nil
		}
		l.pos++
		return Token{Type: TokenGt, Value: ">", Offset: start}, nil
	case '"':
		return l.readString()
	}

	if isDigit(ch) || (ch == '-' && isDigit(l.peek(1))) {
		return l.readNumber(), nil
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	if isIdentStart(r) {
		return l.readIdent(), nil
	}

	l.pos += size
	return Token{}, newParseError(ErrCodeInvalidCharacter, start, "unexpected character %q", r)
}

func (l *Lexer) peek(n int) byte {
	if l.pos+n < len(l.input) {
		return l.input[l.pos+n]
	}
	return 0
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += size
	}
}

// readString reads a double-quoted literal and decodes its escapes.
// The value is NFC-normalized, so composed and decomposed spellings of the
// same text produce the same literal.
func (l *Lexer) readString() (Token, error) {
	start := l.pos
	l.pos++ // skip opening quote

	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch ch {
		case '"':
			l.pos++ // skip closing quote
			return Token{Type: TokenString, Value: norm.NFC.String(sb.String()), Offset: start}, nil
		case '\\':
			if l.pos+1 >= len(l.input) {
				return Token{}, newParseError(ErrCodeUnterminatedString, start, "unterminated string")
			}
			if l.input[l.pos+1] == 'u' {
				r, err := l.readUnicodeEscape()
				if err != nil {
					return Token{}, err
				}
				sb.WriteRune(r)
				continue
			}
			decoded, ok := unescape(l.input[l.pos+1])
			if !ok {
				return Token{}, newParseError(ErrCodeInvalidCharacter, l.pos, "invalid escape sequence \\%c", l.input[l.pos+1])
			}
			sb.WriteByte(decoded)
			l.pos += 2
		default:
			sb.WriteByte(ch)
			l.pos++
		}
	}

	return Token{}, newParseError(ErrCodeUnterminatedString, start, "unterminated string")
}

func unescape(ch byte) (byte, bool) {
	switch ch {
	case '"', '\\', '/':
		return ch, true
	case 'b':
		return '\b', true
	case 'f':
		return '\f', true
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	}
	return 0, false
}

// readUnicodeEscape decodes \uXXXX at l.pos, joining a surrogate pair
// written as two escapes. An unpaired surrogate decodes to U+FFFD.
func (l *Lexer) readUnicodeEscape() (rune, error) {
	r, err := l.readHex4()
	if err != nil {
		return 0, err
	}
	if !utf16.IsSurrogate(r) {
		return r, nil
	}
	if l.peek(0) == '\\' && l.peek(1) == 'u' {
		save := l.pos
		low, err := l.readHex4()
		if err == nil {
			if pair := utf16.DecodeRune(r, low); pair != utf8.RuneError {
				return pair, nil
			}
		}
		l.pos = save
	}
	return utf8.RuneError, nil
}

// readHex4 consumes \uXXXX at l.pos.
func (l *Lexer) readHex4() (rune, error) {
	escStart := l.pos
	if l.pos+6 > len(l.input) {
		return 0, newParseError(ErrCodeInvalidCharacter, escStart, "invalid unicode escape")
	}
	n, err := strconv.ParseUint(l.input[l.pos+2:l.pos+6], 16, 32)
	if err != nil {
		return 0, newParseError(ErrCodeInvalidCharacter, escStart, "invalid unicode escape \\u%s", l.input[l.pos+2:l.pos+6])
	}
	l.pos += 6
	return rune(n), nil
}

func (l *Lexer) readNumber() Token {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.peek(0) == '.' && isDigit(l.peek(1)) {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	return Token{Type: TokenNumber, Value: l.input[start:l.pos], Offset: start}
}

// readIdent reads an identifier or dotted path, e.g. properties.price.
func (l *Lexer) readIdent() Token {
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !isIdentChar(r) {
			break
		}
		l.pos += size
	}
	value := l.input[start:l.pos]

	if kw, ok := keywords[value]; ok {
		return Token{Type: kw, Value: value, Offset: start}
	}
	return Token{Type: TokenIdent, Value: value, Offset: start}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '$'
}

func isIdentChar(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '.' || r == '-'
}

package query

import (
	"strings"
	"unicode"
)

// TokenType represents the type of a lexer token.
type TokenType int

const (
	TokenEOF      TokenType = iota
	TokenName               // step, property and function names: s-ramp, xsd, importedXsds
	TokenSlash              // /
	TokenAt                 // @
	TokenDot                // .
	TokenColon              // :
	TokenComma              // ,
	TokenStar               // *
	TokenLParen             // (
	TokenRParen             // )
	TokenLBracket           // [
	TokenRBracket           // ]
	TokenEq                 // =
	TokenNeq                // !=
	TokenLt                 // <
	TokenLte                // <=
	TokenGt                 // >
	TokenGte                // >=
	TokenString             // 'quoted' or "quoted"
	TokenNumber             // 42, -3.5, 1e10
	TokenDate               // 2024-01-02
	TokenDateTime           // 2024-01-02T10:00:00Z
	TokenError              // error token
)

var tokenNames = map[TokenType]string{
	TokenEOF:      "end of query",
	TokenName:     "name",
	TokenSlash:    "'/'",
	TokenAt:       "'@'",
	TokenDot:      "'.'",
	TokenColon:    "':'",
	TokenComma:    "','",
	TokenStar:     "'*'",
	TokenLParen:   "'('",
	TokenRParen:   "')'",
	TokenLBracket: "'['",
	TokenRBracket: "']'",
	TokenEq:       "'='",
	TokenNeq:      "'!='",
	TokenLt:       "'<'",
	TokenLte:      "'<='",
	TokenGt:       "'>'",
	TokenGte:      "'>='",
	TokenString:   "string literal",
	TokenNumber:   "number",
	TokenDate:     "date",
	TokenDateTime: "date-time",
	TokenError:    "invalid token",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "unknown"
}

// Token represents a lexer token.
type Token struct {
	Type  TokenType
	Value string // unquoted value for strings, raw text otherwise
	Pos   int
}

// Lexer tokenizes a query string.
type Lexer struct {
	input string
	pos   int
	start int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	l.start = l.pos
	ch := l.input[l.pos]

	switch ch {
	case '/':
		return l.single(TokenSlash)
	case '@':
		return l.single(TokenAt)
	case ':':
		return l.single(TokenColon)
	case ',':
		return l.single(TokenComma)
	case '*':
		return l.single(TokenStar)
	case '(':
		return l.single(TokenLParen)
	case ')':
		return l.single(TokenRParen)
	case '[':
		return l.single(TokenLBracket)
	case ']':
		return l.single(TokenRBracket)
	case '=':
		return l.single(TokenEq)
	case '!':
		if l.peekByte(1) == '=' {
			l.pos += 2
			return Token{Type: TokenNeq, Value: "!=", Pos: l.start}
		}
		l.pos++
		return Token{Type: TokenError, Value: "!", Pos: l.start}
	case '<':
		if l.peekByte(1) == '=' {
			l.pos += 2
			return Token{Type: TokenLte, Value: "<=", Pos: l.start}
		}
		return l.single(TokenLt)
	case '>':
		if l.peekByte(1) == '=' {
			l.pos += 2
			return Token{Type: TokenGte, Value: ">=", Pos: l.start}
		}
		return l.single(TokenGt)
	case '\'', '"':
		return l.scanString(ch)
	case '.':
		// ".5" is a number, a lone "." is the context item.
		if isDigit(l.peekByte(1)) {
			return l.scanNumber()
		}
		return l.single(TokenDot)
	case '-':
		if isDigit(l.peekByte(1)) {
			return l.scanNumber()
		}
		l.pos++
		return Token{Type: TokenError, Value: "-", Pos: l.start}
	default:
		if isDigit(ch) {
			if l.looksLikeDate() {
				return l.scanDate()
			}
			return l.scanNumber()
		}
		if isNameStart(ch) {
			return l.scanName()
		}
		l.pos++
		return Token{Type: TokenError, Value: string(ch), Pos: l.start}
	}
}

func (l *Lexer) single(t TokenType) Token {
	l.pos++
	return Token{Type: t, Value: l.input[l.start:l.pos], Pos: l.start}
}

func (l *Lexer) peekByte(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

func (l *Lexer) scanName() Token {
	start := l.pos
	for l.pos < len(l.input) && isNameChar(l.input[l.pos]) {
		l.pos++
	}
	return Token{Type: TokenName, Value: l.input[start:l.pos], Pos: start}
}

// scanString scans a quoted literal. The quote character is escaped by doubling it.
func (l *Lexer) scanString(quote byte) Token {
	start := l.pos
	l.pos++ // opening quote

	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == quote {
			if l.peekByte(1) == quote {
				sb.WriteByte(quote)
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: TokenString, Value: sb.String(), Pos: start}
		}
		sb.WriteByte(c)
		l.pos++
	}

	return Token{Type: TokenError, Value: "unterminated string literal", Pos: start}
}

func (l *Lexer) scanNumber() Token {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			l.pos++
		}
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	return Token{Type: TokenNumber, Value: l.input[start:l.pos], Pos: start}
}

// looksLikeDate reports whether the input at pos starts with YYYY-MM-DD.
func (l *Lexer) looksLikeDate() bool {
	if l.pos+10 > len(l.input) {
		return false
	}
	s := l.input[l.pos : l.pos+10]
	for i := 0; i < 10; i++ {
		switch i {
		case 4, 7:
			if s[i] != '-' {
				return false
			}
		default:
			if !isDigit(s[i]) {
				return false
			}
		}
	}
	return true
}

// scanDate scans an ISO date, optionally followed by a 'T' time part and zone.
// Validation of the value is left to the parser.
func (l *Lexer) scanDate() Token {
	start := l.pos
	l.pos += 10
	if l.pos >= len(l.input) || l.input[l.pos] != 'T' {
		return Token{Type: TokenDate, Value: l.input[start:l.pos], Pos: start}
	}
	l.pos++
	for l.pos < len(l.input) && isDateTimeChar(l.input[l.pos]) {
		l.pos++
	}
	return Token{Type: TokenDateTime, Value: l.input[start:l.pos], Pos: start}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isNameStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		ch == '_'
}

func isNameChar(ch byte) bool {
	return isNameStart(ch) || isDigit(ch) || ch == '-'
}

func isDateTimeChar(ch byte) bool {
	return isDigit(ch) || ch == ':' || ch == '.' || ch == 'Z' || ch == '+' || ch == '-'
}

// IsName reports whether s is a valid step, property or function name.
func IsName(s string) bool {
	if s == "" || !isNameStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isNameChar(s[i]) {
			return false
		}
	}
	return true
}

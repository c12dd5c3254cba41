// Package pascal provides the flat tokenizer shared by the stub extractor,
// the unit header scanner and the uses clause parser. It does not build a
// syntax tree; callers scan the token stream for the few patterns they need.
package pascal

import "strings"

// TokenKind classifies a Token.
type TokenKind int

const (
	EOF TokenKind = iota
	Ident
	Number
	String
	Symbol
)

func (k TokenKind) String() string {
	switch k {
	case EOF:
		return "eof"
	case Ident:
		return "ident"
	case Number:
		return "number"
	case String:
		return "string"
	case Symbol:
		return "symbol"
	}
	return "invalid"
}

// Token is a lexical element with its byte span in the source.
type Token struct {
	Kind TokenKind
	// Text is the token's source text. For escaped identifiers (&begin) the
	// leading ampersand is removed.
	Text   string
	Offset int
	End    int
	// Escaped marks an &-prefixed identifier, which never acts as a keyword.
	Escaped bool
}

// Is reports whether t is the unescaped identifier or keyword word,
// compared case-insensitively.
func (t Token) Is(word string) bool {
	return t.Kind == Ident && !t.Escaped && strings.EqualFold(t.Text, word)
}

// IsSymbol reports whether t is the punctuation s.
func (t Token) IsSymbol(s string) bool {
	return t.Kind == Symbol && t.Text == s
}

// Normalize maps an identifier to its index key. Pascal identifiers are
// case-insensitive; this is the only place the folding rule lives.
func Normalize(name string) string {
	return strings.ToLower(name)
}

// Lexer produces tokens from Pascal source, skipping whitespace, comments
// and compiler directives.
type Lexer struct {
	src []byte
	pos int
}

// NewLexer returns a Lexer positioned at the start of src.
func NewLexer(src []byte) *Lexer {
	return &Lexer{src: src}
}

// Tokenize returns every token in src, excluding the trailing EOF.
func Tokenize(src []byte) []Token {
	l := NewLexer(src)
	var toks []Token
	for {
		tok := l.Next()
		if tok.Kind == EOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

// Next returns the next token, or a token of kind EOF at end of input.
func (l *Lexer) Next() Token {
	l.skipTrivia()
	if l.pos >= len(l.src) {
		return Token{Kind: EOF, Offset: len(l.src), End: len(l.src)}
	}

	start := l.pos
	c := l.src[l.pos]
	switch {
	case isIdentStart(c):
		l.pos++
		l.consumeIdent()
		return l.token(Ident, start)
	case c == '&' && l.pos+1 < len(l.src) && isIdentStart(l.src[l.pos+1]):
		l.pos++
		l.consumeIdent()
		return Token{Kind: Ident, Text: string(l.src[start+1 : l.pos]), Offset: start, End: l.pos, Escaped: true}
	case isDigit(c):
		l.consumeDecimal()
		return l.token(Number, start)
	case c == '$':
		l.pos++
		for l.pos < len(l.src) && isHexDigit(l.src[l.pos]) {
			l.pos++
		}
		return l.token(Number, start)
	case c == '%' || c == '&':
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		if l.pos == start+1 {
			return l.token(Symbol, start)
		}
		return l.token(Number, start)
	case c == '\'':
		l.consumeQuoted()
		return l.token(String, start)
	case c == '#':
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == '$' {
			l.pos++
			for l.pos < len(l.src) && isHexDigit(l.src[l.pos]) {
				l.pos++
			}
		} else {
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
		return l.token(String, start)
	}

	// Two-character operators. Comparison operators stay single characters so
	// that generic brackets such as "TList<T>=class" split cleanly.
	if l.pos+1 < len(l.src) {
		pair := string(l.src[l.pos : l.pos+2])
		if pair == ":=" || pair == ".." {
			l.pos += 2
			return l.token(Symbol, start)
		}
	}
	l.pos++
	return l.token(Symbol, start)
}

func (l *Lexer) token(kind TokenKind, start int) Token {
	return Token{Kind: kind, Text: string(l.src[start:l.pos]), Offset: start, End: l.pos}
}

func (l *Lexer) skipTrivia() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == '\v':
			l.pos++
		case c == '/' && l.peek(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '{':
			l.pos = skipPast(l.src, l.pos+1, "}")
		case c == '(' && l.peek(1) == '*':
			l.pos = skipPast(l.src, l.pos+2, "*)")
		default:
			return
		}
	}
}

func (l *Lexer) peek(n int) byte {
	if l.pos+n < len(l.src) {
		return l.src[l.pos+n]
	}
	return 0
}

func (l *Lexer) consumeIdent() {
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
}

func (l *Lexer) consumeDecimal() {
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	// A fraction needs a digit after the dot; "1..10" is a range.
	if l.pos+1 < len(l.src) && l.src[l.pos] == '.' && isDigit(l.src[l.pos+1]) {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		next := l.pos + 1
		if next < len(l.src) && (l.src[next] == '+' || l.src[next] == '-') {
			next++
		}
		if next < len(l.src) && isDigit(l.src[next]) {
			l.pos = next
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
	}
}

// consumeQuoted consumes a single-quoted literal where '' escapes a quote.
// Literals never span lines; an unterminated one stops at the newline.
func (l *Lexer) consumeQuoted() {
	l.pos++
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\'':
			if l.peek(1) == '\'' {
				l.pos += 2
				continue
			}
			l.pos++
			return
		case '\n':
			return
		}
		l.pos++
	}
}

// skipPast returns the position just after the first occurrence of closer
// at or after from, or len(src) when the comment is unterminated.
func skipPast(src []byte, from int, closer string) int {
	if from > len(src) {
		return len(src)
	}
	idx := strings.Index(string(src[from:]), closer)
	if idx < 0 {
		return len(src)
	}
	return from + idx + len(closer)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// IdentifierAt returns the identifier token whose span covers offset.
func IdentifierAt(src []byte, offset int) (Token, bool) {
	if offset < 0 || offset > len(src) {
		return Token{}, false
	}
	l := NewLexer(src)
	for {
		tok := l.Next()
		if tok.Kind == EOF || tok.Offset > offset {
			return Token{}, false
		}
		if tok.Kind == Ident && offset >= tok.Offset && offset < tok.End {
			return tok, true
		}
	}
}

// Package tokenize implements a language-agnostic heuristic tokenizer. It
// is explicitly not a real per-language lexer/parser; its edge cases are
// pinned exactly so independent reimplementations stay stable.
package tokenize

import "github.com/asynkron/dupsentry/internal/fingerprint"

// Kind tags a token's syntactic category.
type Kind uint8

const (
	Ident Kind = iota
	Number
	String
	Keyword
	Punct
)

// Token is one lexeme with its source line span. StartLine and EndLine
// coincide for every token except multi-line strings and (rarely)
// multi-line block comments, whose content is discarded but whose
// consumption still advances the line counter for subsequent tokens.
type Token struct {
	Kind      Kind
	Text      string // populated for Keyword (the keyword) and Punct (the single character); empty otherwise
	StartLine uint32
	EndLine   uint32
}

// Key is the comparable, line-independent identity of a token used for
// duplicate matching. Spec section 4.7's token-span detector defines token
// equality as "the tag plus, for KEYWORD/PUNCT, the payload" — so two
// identifiers or two numeric literals with different spellings are always
// equal, letting renamed variables and changed literals still match, while
// distinct keywords and distinct punctuation never do.
type Key struct {
	Kind Kind
	Text string
}

// Key extracts t's matching identity, discarding line information.
func (t Token) Key() Key { return Key{Kind: t.Kind, Text: t.Text} }

// Hash returns a 64-bit fingerprint of a token key, suitable as the
// element-hash function passed to winnow.Fingerprints.
func (k Key) Hash() uint64 {
	buf := make([]byte, 0, len(k.Text)+1)
	buf = append(buf, byte(k.Kind))
	buf = append(buf, k.Text...)
	return fingerprint.FNV1a64(buf)
}

var keywords = map[string]struct{}{
	"if": {}, "else": {}, "for": {}, "while": {}, "do": {}, "switch": {}, "case": {},
	"break": {}, "continue": {}, "return": {}, "let": {}, "const": {}, "var": {},
	"function": {}, "fn": {}, "def": {}, "class": {}, "struct": {}, "enum": {},
	"interface": {}, "impl": {}, "trait": {}, "public": {}, "private": {}, "protected": {},
	"static": {}, "async": {}, "await": {}, "yield": {}, "new": {}, "try": {}, "catch": {},
	"finally": {}, "throw": {}, "import": {}, "export": {}, "from": {}, "as": {}, "in": {}, "of": {},
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isAlnum(b byte) bool { return isAlpha(b) || isDigit(b) }

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\v', '\f', '\n':
		return true
	default:
		return false
	}
}

// Tokenize lexes data into a heuristic token stream.
func Tokenize(data []byte) []Token {
	var toks []Token
	n := len(data)
	i := 0
	line := uint32(1)
	atLineStart := true

	for i < n {
		b := data[i]

		if b == '\n' {
			line++
			i++
			atLineStart = true
			continue
		}
		if isSpace(b) {
			i++
			continue
		}

		wasAtLineStart := atLineStart
		atLineStart = false

		// Line comments: // and -- anywhere; # only at line start.
		if b == '/' && i+1 < n && data[i+1] == '/' {
			i += 2
			for i < n && data[i] != '\n' {
				i++
			}
			continue
		}
		if b == '-' && i+1 < n && data[i+1] == '-' {
			i += 2
			for i < n && data[i] != '\n' {
				i++
			}
			continue
		}
		if b == '#' && wasAtLineStart {
			i++
			for i < n && data[i] != '\n' {
				i++
			}
			continue
		}

		// Block comments, may span lines.
		if b == '/' && i+1 < n && data[i+1] == '*' {
			i += 2
			for i+1 < n {
				if data[i] == '\n' {
					line++
					atLineStart = true
				}
				if data[i] == '*' && data[i+1] == '/' {
					i += 2
					break
				}
				i++
			}
			if i >= n {
				i = n
			}
			continue
		}

		// Strings: ', ", or `; backslash escapes; may span lines.
		if b == '\'' || b == '"' || b == '`' {
			quote := b
			startLine := line
			i++
			for i < n {
				c := data[i]
				if c == '\n' {
					line++
				}
				if c == '\\' && i+1 < n {
					i += 2
					continue
				}
				if c == quote {
					i++
					break
				}
				i++
			}
			toks = append(toks, Token{Kind: String, StartLine: startLine, EndLine: line})
			continue
		}

		// Identifiers and keywords.
		if isAlpha(b) {
			start := i
			i++
			for i < n && isAlnum(data[i]) {
				i++
			}
			lexeme := string(data[start:i])
			if _, ok := keywords[lexeme]; ok {
				toks = append(toks, Token{Kind: Keyword, Text: lexeme, StartLine: line, EndLine: line})
			} else {
				toks = append(toks, Token{Kind: Ident, StartLine: line, EndLine: line})
			}
			continue
		}

		// Numbers: decimal, hex, binary, octal, floats with exponent.
		if isDigit(b) {
			start := i
			i++
			if b == '0' && i < n && (data[i] == 'x' || data[i] == 'X') {
				i++
				for i < n && (isHexDigit(data[i]) || data[i] == '_') {
					i++
				}
			} else if b == '0' && i < n && (data[i] == 'b' || data[i] == 'B') {
				i++
				for i < n && (data[i] == '0' || data[i] == '1' || data[i] == '_') {
					i++
				}
			} else if b == '0' && i < n && (data[i] == 'o' || data[i] == 'O') {
				i++
				for i < n && (data[i] >= '0' && data[i] <= '7' || data[i] == '_') {
					i++
				}
			} else {
				for i < n && (isDigit(data[i]) || data[i] == '_') {
					i++
				}
				if i < n && data[i] == '.' && i+1 < n && isDigit(data[i+1]) {
					i++
					for i < n && (isDigit(data[i]) || data[i] == '_') {
						i++
					}
				}
				if i < n && (data[i] == 'e' || data[i] == 'E') {
					j := i + 1
					if j < n && (data[j] == '+' || data[j] == '-') {
						j++
					}
					if j < n && isDigit(data[j]) {
						i = j
						for i < n && isDigit(data[i]) {
							i++
						}
					}
				}
			}
			_ = start
			toks = append(toks, Token{Kind: Number, StartLine: line, EndLine: line})
			continue
		}

		// Everything else: one punctuation token per ASCII byte.
		toks = append(toks, Token{Kind: Punct, Text: string(b), StartLine: line, EndLine: line})
		i++
	}

	return toks
}

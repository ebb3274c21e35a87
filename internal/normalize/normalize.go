// Package normalize derives four normalized views of a scanned file's
// bytes: whitespace-stripped bytes, the word-char stream (with
// per-character source line numbers), the line-token stream, and (via the
// sibling tokenize package) the source token stream.
package normalize

import "github.com/asynkron/dupsentry/internal/fingerprint"

// isASCIIWhitespace matches the exact octet set: 0x09,0x0A,0x0B,0x0C,0x0D,0x20.
func isASCIIWhitespace(b byte) bool {
	switch b {
	case 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x20:
		return true
	default:
		return false
	}
}

// isWordChar matches the ASCII-only word-char class [A-Za-z0-9_].
// Non-ASCII bytes are never word chars (see DESIGN.md).
func isWordChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z':
		return true
	case b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return true
	case b == '_':
		return true
	default:
		return false
	}
}

// WhitespaceStripped filters ASCII whitespace out of data, leaving
// everything else (including non-ASCII bytes) untouched and in order.
func WhitespaceStripped(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if !isASCIIWhitespace(b) {
			out = append(out, b)
		}
	}
	return out
}

// WordCharStream is the word-char projection of a file's bytes: the
// retained characters, plus (parallel, same length) the 1-based source line
// number each retained character came from.
type WordCharStream struct {
	Chars []byte
	Lines []uint32
}

// Len reports the number of retained word characters.
func (w WordCharStream) Len() int { return len(w.Chars) }

// WordChars builds the word-char stream for data, counting newlines as it
// goes so each retained character is tagged with its 1-based source line.
func WordChars(data []byte) WordCharStream {
	chars := make([]byte, 0, len(data))
	lines := make([]uint32, 0, len(data))
	line := uint32(1)
	for _, b := range data {
		if b == '\n' {
			line++
			continue
		}
		if isWordChar(b) {
			chars = append(chars, b)
			lines = append(lines, line)
		}
	}
	return WordCharStream{Chars: chars, Lines: lines}
}

// LineToken is one non-empty source line's word-char fingerprint, used by
// the line-span detector. WordCharLen is the number of retained word
// characters on that line, summed over member lines to give the line-span
// detector's normalized length (rather than the fingerprint window count).
type LineToken struct {
	Hash        uint64
	StartLine   uint32
	WordCharLen int
}

// LineTokens splits data on '\n' and computes the fingerprint of each
// line's word-char projection. Lines whose word-char projection is empty
// produce no token at all, rather than a sentinel threaded through every
// consumer.
func LineTokens(data []byte) []LineToken {
	var tokens []LineToken
	line := uint32(1)
	start := 0
	emit := func(lineBytes []byte, lineNo uint32) {
		wc := WordChars(lineBytes)
		if wc.Len() == 0 {
			return
		}
		tokens = append(tokens, LineToken{
			Hash:        fingerprint.FNV1a64(wc.Chars),
			StartLine:   lineNo,
			WordCharLen: wc.Len(),
		})
	}
	for i, b := range data {
		if b == '\n' {
			emit(data[start:i], line)
			line++
			start = i + 1
		}
	}
	if start < len(data) {
		emit(data[start:], line)
	}
	return tokens
}

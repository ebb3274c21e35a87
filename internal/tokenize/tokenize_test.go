package tokenize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestKeywordRegardlessOfWhitespace(t *testing.T) {
	a := Tokenize([]byte("if(x)"))
	b := Tokenize([]byte("  if  (x)"))
	require.Equal(t, Keyword, a[0].Kind)
	require.Equal(t, "if", a[0].Text)
	require.Equal(t, Keyword, b[0].Kind)
	require.Equal(t, "if", b[0].Text)
}

func TestHashOutsideLineStartIsPunct(t *testing.T) {
	toks := Tokenize([]byte("a # b"))
	require.Equal(t, []Kind{Ident, Punct, Ident}, kinds(toks))
	require.Equal(t, "#", toks[1].Text)
}

func TestHashAtLineStartIsComment(t *testing.T) {
	toks := Tokenize([]byte("# comment\nreal"))
	require.Len(t, toks, 1)
	require.Equal(t, Ident, toks[0].Kind)
	require.Equal(t, uint32(2), toks[0].StartLine)
}

func TestHashAfterLeadingWhitespaceIsComment(t *testing.T) {
	toks := Tokenize([]byte("   # comment\nreal"))
	require.Len(t, toks, 1)
	require.Equal(t, uint32(2), toks[0].StartLine)
}

func TestLineCommentVariants(t *testing.T) {
	for _, src := range []string{"// c\nx", "-- c\nx", "# c\nx"} {
		toks := Tokenize([]byte(src))
		require.Len(t, toks, 1, src)
		require.Equal(t, Ident, toks[0].Kind, src)
	}
}

func TestBlockCommentSpansLinesAndIsDiscarded(t *testing.T) {
	toks := Tokenize([]byte("a /* multi\nline */ b"))
	require.Len(t, toks, 2)
	require.Equal(t, uint32(1), toks[0].StartLine)
	require.Equal(t, uint32(2), toks[1].StartLine)
}

func TestDecimalIntegerTokenizesToNumber(t *testing.T) {
	toks := Tokenize([]byte("42"))
	require.Equal(t, []Kind{Number}, kinds(toks))
}

func TestNumberLiteralVariants(t *testing.T) {
	for _, src := range []string{"0x1F", "0b101", "0o17", "3.14", "1e10", "1.5e-3"} {
		toks := Tokenize([]byte(src))
		require.Len(t, toks, 1, src)
		require.Equal(t, Number, toks[0].Kind, src)
	}
}

func TestStringSpansLinesAndTracksEndLine(t *testing.T) {
	toks := Tokenize([]byte("\"a\nb\" x"))
	require.Equal(t, String, toks[0].Kind)
	require.Equal(t, uint32(1), toks[0].StartLine)
	require.Equal(t, uint32(2), toks[0].EndLine)
	require.Equal(t, uint32(2), toks[1].StartLine)
}

func TestBacktickStringSupported(t *testing.T) {
	toks := Tokenize([]byte("`raw string`"))
	require.Equal(t, []Kind{String}, kinds(toks))
}

func TestStringEscapesDoNotTerminateEarly(t *testing.T) {
	toks := Tokenize([]byte(`"a\"b" x`))
	require.Equal(t, String, toks[0].Kind)
	require.Equal(t, Ident, toks[1].Kind)
}

func TestUnterminatedStringConsumesToEOF(t *testing.T) {
	toks := Tokenize([]byte(`"never closed`))
	require.Len(t, toks, 1)
	require.Equal(t, String, toks[0].Kind)
}

func TestKeyEqualityFoldsIdentifiersAndNumbers(t *testing.T) {
	a := Tokenize([]byte("foo"))[0]
	b := Tokenize([]byte("bar"))[0]
	require.Equal(t, a.Key(), b.Key())

	n1 := Tokenize([]byte("1"))[0]
	n2 := Tokenize([]byte("999"))[0]
	require.Equal(t, n1.Key(), n2.Key())
}

func TestKeyEqualityDistinguishesKeywordsAndPunct(t *testing.T) {
	ifTok := Tokenize([]byte("if"))[0]
	elseTok := Tokenize([]byte("else"))[0]
	require.NotEqual(t, ifTok.Key(), elseTok.Key())

	open := Tokenize([]byte("("))[0]
	close := Tokenize([]byte(")"))[0]
	require.NotEqual(t, open.Key(), close.Key())
}

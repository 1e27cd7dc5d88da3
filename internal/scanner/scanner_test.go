package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmaggi/matiria/internal/scanner"
	"github.com/fmaggi/matiria/internal/token"
)

func kinds(src string) []token.Kind {
	s := scanner.New([]byte(src))
	var out []token.Kind
	for {
		tok := s.Next()
		if tok.Kind == token.Comment {
			continue
		}
		out = append(out, tok.Kind)
		if tok.Kind == token.EOF {
			break
		}
	}
	return out
}

func TestEmptySourceEndsInEOF(t *testing.T) {
	got := kinds("")
	require.Len(t, got, 1)
	assert.Equal(t, token.EOF, got[0])
}

func TestPunctuationAndOperators(t *testing.T) {
	got := kinds("+ - * / % , : ; . ( ) [ ] { } -> := == != >= <= && || //")
	want := []token.Kind{
		token.Plus, token.Minus, token.Star, token.Slash, token.Percent,
		token.Comma, token.Colon, token.Semicolon, token.Dot,
		token.ParenL, token.ParenR, token.SquareL, token.SquareR,
		token.CurlyL, token.CurlyR, token.Arrow, token.Walrus,
		token.Equal, token.Equal, token.NotEqual, token.GreaterEq, token.LessEq,
		token.And, token.Or, token.DSlash, token.EOF,
	}
	assert.Equal(t, want, got)
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	got := kinds("if else true false fn return while for Int Float Bool String Any type struct foo _bar2")
	want := []token.Kind{
		token.If, token.Else, token.True, token.False, token.Fn, token.Return,
		token.While, token.For, token.KwInt, token.KwFloat, token.KwBool,
		token.KwString, token.KwAny, token.Type, token.Struct,
		token.Identifier, token.Identifier, token.EOF,
	}
	assert.Equal(t, want, got)
}

func TestIntAndFloatLiterals(t *testing.T) {
	got := kinds("10 3.14 5.")
	// "5." is a dot not followed by a digit, so it's Int then Dot.
	want := []token.Kind{token.Int, token.Float, token.Int, token.Dot, token.EOF}
	assert.Equal(t, want, got)
}

func TestStringLiteral(t *testing.T) {
	s := scanner.New([]byte(`"hello world"`))
	tok := s.Next()
	require.Equal(t, token.String, tok.Kind)
	assert.Equal(t, `"hello world"`, tok.Text())
}

func TestUnterminatedStringIsInvalid(t *testing.T) {
	s := scanner.New([]byte(`"oops`))
	tok := s.Next()
	assert.Equal(t, token.Invalid, tok.Kind)
}

func TestCommentRunsToEndOfLine(t *testing.T) {
	s := scanner.New([]byte("# a comment\n1"))
	tok := s.Next()
	require.Equal(t, token.Comment, tok.Kind)
	tok = s.Next()
	assert.Equal(t, token.Int, tok.Kind)
}

func TestInvalidByteYieldsInvalidToken(t *testing.T) {
	got := kinds("@")
	assert.Equal(t, []token.Kind{token.Invalid, token.EOF}, got)
}

func TestNeverEmpty(t *testing.T) {
	for _, src := range []string{"", "   ", "# only a comment"} {
		got := kinds(src)
		assert.NotEmpty(t, got)
		assert.Equal(t, token.EOF, got[len(got)-1])
	}
}

package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextTokenBasicTokens(t *testing.T) {
	input := `, . : ; | -> ^ ( ) { } [ ] :=`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenComma, ","},
		{TokenPeriod, "."},
		{TokenColon, ":"},
		{TokenSemi, ";"},
		{TokenPipe, "|"},
		{TokenArrow, "->"},
		{TokenCaret, "^"},
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenLet, ":="},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		require.Equal(t, tt.expectedType, tok.Type, "tests[%d] token type", i)
		require.Equal(t, tt.expectedLiteral, tok.Literal, "tests[%d] literal", i)
	}
}

func TestNextTokenOperators(t *testing.T) {
	input := `+ - * / < > <= >= == != =`

	expected := []TokenType{
		TokenPlus, TokenMinus, TokenStar, TokenSlash,
		TokenLess, TokenGreater, TokenLessEq, TokenGreaterEq,
		TokenEqEq, TokenNotEq, TokenAssign, TokenEOF,
	}

	l := New(input)
	for i, want := range expected {
		tok := l.NextToken()
		require.Equal(t, want, tok.Type, "tests[%d]", i)
	}
}

func TestNextTokenNumbers(t *testing.T) {
	tests := []struct {
		input   string
		literal string
	}{
		{"0", "0"},
		{"42", "42"},
		{"3.14", "3.14"},
		{"6.53", "6.53"},
	}

	for _, tt := range tests {
		l := New(tt.input)
		tok := l.NextToken()
		require.Equal(t, TokenNumber, tok.Type, "input %q", tt.input)
		require.Equal(t, tt.literal, tok.Literal)
	}
}

func TestNextTokenNumberThenMemberAccess(t *testing.T) {
	// A point not followed by a digit is member access, so `1.one` splits
	// after the integer part.
	l := New("1.one")
	tok := l.NextToken()
	require.Equal(t, TokenNumber, tok.Type)
	require.Equal(t, "1", tok.Literal)
	tok = l.NextToken()
	require.Equal(t, TokenPeriod, tok.Type)
	tok = l.NextToken()
	require.Equal(t, TokenIdentifier, tok.Type)
	require.Equal(t, "one", tok.Literal)
}

func TestNextTokenMinusIsAlwaysAnOperator(t *testing.T) {
	l := New("n -1")
	tok := l.NextToken()
	require.Equal(t, TokenIdentifier, tok.Type)
	tok = l.NextToken()
	require.Equal(t, TokenMinus, tok.Type)
	tok = l.NextToken()
	require.Equal(t, TokenNumber, tok.Type)
	require.Equal(t, "1", tok.Literal)
}

func TestNextTokenArrowVersusMinus(t *testing.T) {
	l := New("a -> b - c")
	expected := []TokenType{
		TokenIdentifier, TokenArrow, TokenIdentifier,
		TokenMinus, TokenIdentifier, TokenEOF,
	}
	for i, want := range expected {
		require.Equal(t, want, l.NextToken().Type, "tests[%d]", i)
	}
}

func TestNextTokenKeywords(t *testing.T) {
	input := `nil true false and or not nils truthy`

	expected := []struct {
		typ     TokenType
		literal string
	}{
		{TokenNil, "nil"},
		{TokenTrue, "true"},
		{TokenFalse, "false"},
		{TokenAnd, "and"},
		{TokenOr, "or"},
		{TokenNot, "not"},
		{TokenIdentifier, "nils"},
		{TokenIdentifier, "truthy"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, want := range expected {
		tok := l.NextToken()
		require.Equal(t, want.typ, tok.Type, "tests[%d]", i)
		require.Equal(t, want.literal, tok.Literal, "tests[%d]", i)
	}
}

func TestNextTokenIdentifiers(t *testing.T) {
	l := New("_x abc1 forKeys")
	for _, want := range []string{"_x", "abc1", "forKeys"} {
		tok := l.NextToken()
		require.Equal(t, TokenIdentifier, tok.Type)
		require.Equal(t, want, tok.Literal)
	}
}

func TestReadStringEscapes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`""`, ""},
		{`"a\nb"`, "a\nb"},
		{`"a\tb"`, "a\tb"},
		{`"say \"hi\""`, `say "hi"`},
		{`"back\\slash"`, `back\slash`},
	}

	for _, tt := range tests {
		l := New(tt.input)
		tok := l.NextToken()
		require.Equal(t, TokenString, tok.Type, "input %s", tt.input)
		require.Equal(t, tt.want, tok.Literal, "input %s", tt.input)
	}
}

func TestReadStringUnterminated(t *testing.T) {
	l := New(`"oops`)
	tok := l.NextToken()
	assert.Equal(t, TokenIllegal, tok.Type)
}

func TestReadStringUnknownEscape(t *testing.T) {
	l := New(`"bad \q escape"`)
	tok := l.NextToken()
	assert.Equal(t, TokenIllegal, tok.Type)
}

func TestComments(t *testing.T) {
	input := "1 # the rest is ignored\n2"
	l := New(input)

	tok := l.NextToken()
	require.Equal(t, TokenNumber, tok.Type)
	require.Equal(t, "1", tok.Literal)

	tok = l.NextToken()
	require.Equal(t, TokenNumber, tok.Type)
	require.Equal(t, "2", tok.Literal)
	require.Equal(t, 2, tok.Line)
}

func TestLineAndColumnTracking(t *testing.T) {
	l := New("a\n  b")

	tok := l.NextToken()
	require.Equal(t, 1, tok.Line)
	require.Equal(t, 1, tok.Column)

	tok = l.NextToken()
	require.Equal(t, 2, tok.Line)
	require.Equal(t, 3, tok.Column)
}

func TestTokenizeCollectsAll(t *testing.T) {
	tokens, err := New("a := 1, b := 2").Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, 8) // a := 1 , b := 2 EOF
	assert.Equal(t, TokenEOF, tokens[len(tokens)-1].Type)
}

func TestTokenizeIllegal(t *testing.T) {
	_, err := New("a ~ b").Tokenize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal token")
	assert.Contains(t, err.Error(), "line 1")
}

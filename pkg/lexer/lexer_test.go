package lexer

import "testing"

func TestScan_BasicTokens(t *testing.T) {
	input := `( ) { } , . - + ; / * ! != = == < <= > >=`

	tests := []struct {
		expectedKind    TokenKind
		expectedLexeme string
	}{
		{LeftParen, "("},
		{RightParen, ")"},
		{LeftBrace, "{"},
		{RightBrace, "}"},
		{Comma, ","},
		{Dot, "."},
		{Minus, "-"},
		{Plus, "+"},
		{Semicolon, ";"},
		{Slash, "/"},
		{Star, "*"},
		{Bang, "!"},
		{BangEqual, "!="},
		{Equal, "="},
		{EqualEqual, "=="},
		{Less, "<"},
		{LessEqual, "<="},
		{Greater, ">"},
		{GreaterEqual, ">="},
		{Eof, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.Scan()
		if tok.Kind != tt.expectedKind {
			t.Fatalf("tests[%d] - kind wrong. expected=%s, got=%s", i, tt.expectedKind, tok.Kind)
		}
		if got := tok.Lexeme(input); got != tt.expectedLexeme {
			t.Fatalf("tests[%d] - lexeme wrong. expected=%q, got=%q", i, tt.expectedLexeme, got)
		}
	}
}

func TestScan_KeywordsAndIdentifiers(t *testing.T) {
	input := "and class else false for fun if nil or print return super this true var while foo _bar baz2"

	expected := []TokenKind{
		And, Class, Else, False, For, Fun, If, Nil, Or, Print, Return, Super, This, True, Var, While,
		Identifier, Identifier, Identifier, Eof,
	}

	l := New(input)
	for i, want := range expected {
		tok := l.Scan()
		if tok.Kind != want {
			t.Fatalf("tests[%d] - kind wrong. expected=%s, got=%s", i, want, tok.Kind)
		}
	}
}

func TestScan_Numbers(t *testing.T) {
	tests := []struct {
		input string
		kind  TokenKind
	}{
		{"123", Number},
		{"3.14", Number},
		{"0.5", Number},
	}
	for _, tt := range tests {
		l := New(tt.input)
		tok := l.Scan()
		if tok.Kind != tt.kind {
			t.Fatalf("input %q: expected Number, got %s", tt.input, tok.Kind)
		}
		if got := tok.Lexeme(tt.input); got != tt.input {
			t.Fatalf("input %q: lexeme = %q", tt.input, got)
		}
	}
}

func TestScan_TrailingDotIsError(t *testing.T) {
	l := New("3.")
	tok := l.Scan()
	if tok.Kind != Error {
		t.Fatalf("expected a single Error token for '3.', got %s", tok.Kind)
	}
}

func TestScan_Strings(t *testing.T) {
	input := `"hello world"`
	l := New(input)
	tok := l.Scan()
	if tok.Kind != String {
		t.Fatalf("expected String, got %s", tok.Kind)
	}
	if got := tok.Lexeme(input); got != input {
		t.Fatalf("expected lexeme %q, got %q", input, got)
	}
}

func TestScan_UnterminatedString(t *testing.T) {
	l := New(`"oops`)
	tok := l.Scan()
	if tok.Kind != Error {
		t.Fatalf("expected Error, got %s", tok.Kind)
	}
	if tok.Message != "Unterminated string." {
		t.Fatalf("unexpected message: %q", tok.Message)
	}
}

func TestScan_LineTracking(t *testing.T) {
	input := "var a = 1;\nvar b = 2;\n"
	l := New(input)
	var lastLine int
	for {
		tok := l.Scan()
		lastLine = tok.Line
		if tok.Kind == Eof {
			break
		}
	}
	if lastLine != 3 {
		t.Fatalf("expected EOF on line 3, got %d", lastLine)
	}
}

func TestScan_CommentsSkipped(t *testing.T) {
	input := "// a comment\nvar"
	l := New(input)
	tok := l.Scan()
	if tok.Kind != Var {
		t.Fatalf("expected Var after comment, got %s", tok.Kind)
	}
	if tok.Line != 2 {
		t.Fatalf("expected line 2, got %d", tok.Line)
	}
}

func TestScan_EofIsIdempotent(t *testing.T) {
	l := New("")
	for i := 0; i < 3; i++ {
		tok := l.Scan()
		if tok.Kind != Eof {
			t.Fatalf("call %d: expected Eof, got %s", i, tok.Kind)
		}
	}
}

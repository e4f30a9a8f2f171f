package scanner

import "testing"

func tokenTypes(src string) []TokenType {
	s := New(src)
	var types []TokenType
	for {
		tok := s.Next()
		types = append(types, tok.Type)
		if tok.Type == Eof {
			break
		}
	}
	return types
}

func TestScansOperatorsAndDelimiters(t *testing.T) {
	types := tokenTypes("(){},.-+;/*: ! != = == > >= < <=")
	want := []TokenType{
		LeftParen, RightParen, LeftBrace, RightBrace, Comma, Dot, Minus, Plus,
		Semicolon, Slash, Star, Colon, Bang, BangEqual, Equal, EqualEqual,
		Greater, GreaterEqual, Less, LessEqual, Eof,
	}
	if len(types) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(types), len(want), types)
	}
	for i, tt := range want {
		if types[i] != tt {
			t.Errorf("token %d: got %v, want %v", i, types[i], tt)
		}
	}
}

func TestScansKeywords(t *testing.T) {
	src := "and class else false for fun if let const nil or print return super this true while switch case default"
	types := tokenTypes(src)
	want := []TokenType{
		And, Class, Else, False, For, Fun, If, Let, Const, Nil, Or, Print,
		Return, Super, This, True, While, Switch, Case, Default, Eof,
	}
	for i, tt := range want {
		if types[i] != tt {
			t.Errorf("token %d: got %v, want %v", i, types[i], tt)
		}
	}
}

func TestScansNumberLiterals(t *testing.T) {
	s := New("123 3.14 0.5")
	for _, want := range []string{"123", "3.14", "0.5"} {
		tok := s.Next()
		if tok.Type != Number || tok.Lexeme != want {
			t.Errorf("got %v %q, want Number %q", tok.Type, tok.Lexeme, want)
		}
	}
}

func TestScansStringLiteralExcludesQuotes(t *testing.T) {
	s := New(`"hello world"`)
	tok := s.Next()
	if tok.Type != String || tok.Lexeme != "hello world" {
		t.Fatalf("got %v %q", tok.Type, tok.Lexeme)
	}
}

func TestUnterminatedStringIsErrorToken(t *testing.T) {
	s := New(`"abc`)
	tok := s.Next()
	if tok.Type != Error {
		t.Fatalf("got %v, want Error", tok.Type)
	}
}

func TestLineCommentSkippedToEndOfLine(t *testing.T) {
	types := tokenTypes("1 // a comment\n2")
	want := []TokenType{Number, Number, Eof}
	for i, tt := range want {
		if types[i] != tt {
			t.Errorf("token %d: got %v, want %v", i, types[i], tt)
		}
	}
}

func TestLineTrackingAcrossNewlines(t *testing.T) {
	s := New("1\n2\n3")
	var lines []int
	for {
		tok := s.Next()
		if tok.Type == Eof {
			break
		}
		lines = append(lines, tok.Line)
	}
	want := []int{1, 2, 3}
	for i, l := range want {
		if lines[i] != l {
			t.Errorf("token %d: got line %d, want %d", i, lines[i], l)
		}
	}
}

func TestIdentifierVsKeyword(t *testing.T) {
	s := New("letter letx const_ constant")
	for _, want := range []TokenType{Identifier, Identifier, Identifier, Identifier} {
		tok := s.Next()
		if tok.Type != want {
			t.Errorf("got %v, want %v", tok.Type, want)
		}
	}
}

// Package rlex is the token source rparser consumes. spec.md §1 treats
// the lexer as "out of scope... specified only as a token source with
// the shape described in §6"; this package implements a concrete one,
// modeled on the teacher's BaseParser rune-cursor discipline
// (base_parser.go, pos.go) rather than the teacher's PEG-grammar
// approach, since this language's keyword/operator lexing is simpler
// than arbitrary grammar tokenization.
package rlex

type Kind uint8

const (
	EOF Kind = iota
	Newline
	Ident
	Const   // starts with an uppercase letter
	IVar    // @name
	CVar    // @@name
	GVar    // $name
	Keyword
	Int
	Float
	String
	Symbol
	Regexp
	Op
	Punct // ( ) [ ] { } , ; . :: etc
)

var Keywords = map[string]bool{
	"def": true, "end": true, "if": true, "elsif": true, "else": true,
	"unless": true, "while": true, "until": true, "for": true, "in": true,
	"do": true, "class": true, "module": true, "case": true, "when": true,
	"break": true, "next": true, "redo": true, "retry": true, "return": true,
	"begin": true, "rescue": true, "ensure": true, "raise": true,
	"nil": true, "true": true, "false": true, "self": true, "and": true,
	"or": true, "not": true, "yield": true, "super": true, "lambda": true,
	"alias": true, "undef": true, "then": true, "__END__": true, "END": true,
	"defined?": true,
}

type Token struct {
	Kind   Kind
	Value  string
	IValue int64
	FValue float64
	Line   int
	Col    int

	// SpaceBefore records whether whitespace separated this token
	// from the previous one; the parser needs it to disambiguate
	// `foo -1` (call with a negative-literal argument) from `foo - 1`
	// (binary subtraction), mirroring the reference implementation's
	// lexer state.
	SpaceBefore bool
}

func (t Token) String() string { return t.Value }

// Package rparser implements the recursive-descent parser spec.md
// §4.3 calls for: it consumes internal/rlex's token stream and
// produces rast nodes, tracking a per-scope local-variable table so
// rcodegen can assign contiguous registers. Grounded in the teacher's
// BaseParser (base_parser.go) for cursor/error-capture style, adapted
// from a PEG backtracking parser to a classic recursive-descent one
// since this language's grammar is LL-shaped around keywords rather
// than expressed as parsing expressions.
package rparser

import (
	"fmt"

	"github.com/clarete/rembed/internal/rlex"
	"github.com/clarete/rembed/rast"
)

type Parser struct {
	lex  *rlex.Lexer
	tok  rlex.Token
	file string

	// suppressNewline is true while scanning inside (...)/[...]/{...}
	// nesting where a line break does not end a statement.
	suppressNewline bool

	scope  *LocalScope
	errors []*ParseError
}

func New(src, file string) *Parser {
	p := &Parser{lex: rlex.New(src), file: file, scope: NewLocalScope(nil, false)}
	p.advance()
	return p
}

func (p *Parser) Errors() []*ParseError { return p.errors }

func (p *Parser) pos() rast.Pos { return rast.Pos{Line: int32(p.tok.Line)} }

func (p *Parser) advance() rlex.Token {
	prev := p.tok
	p.tok = p.lex.Next()
	for p.tok.Kind == rlex.Newline && p.suppressNewline {
		p.tok = p.lex.Next()
	}
	return prev
}

func (p *Parser) errorf(expected, format string, args ...interface{}) {
	if len(p.errors) >= maxErrors {
		return
	}
	p.errors = append(p.errors, &ParseError{
		Line: p.tok.Line, Col: p.tok.Col, Expected: expected,
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *Parser) atKeyword(kw string) bool {
	return p.tok.Kind == rlex.Keyword && p.tok.Value == kw
}
func (p *Parser) atOp(op string) bool {
	return (p.tok.Kind == rlex.Op || p.tok.Kind == rlex.Punct) && p.tok.Value == op
}

func (p *Parser) expectOp(op string) bool {
	if !p.atOp(op) {
		p.errorf("'"+op+"'", "got %q", p.tok.Value)
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expectKeyword(kw string) bool {
	if !p.atKeyword(kw) {
		p.errorf("'"+kw+"'", "got %q", p.tok.Value)
		return false
	}
	p.advance()
	return true
}

func (p *Parser) skipNewlines() {
	for p.tok.Kind == rlex.Newline || p.atOp(";") {
		p.advance()
	}
}

func (p *Parser) skipTerminator() {
	if p.tok.Kind == rlex.Newline || p.atOp(";") {
		p.advance()
	}
}

// ParseProgram parses a whole source unit into a statement list,
// wrapped in the root ScopeNode codegen treats as the top IREP's body.
func (p *Parser) ParseProgram() (*rast.ScopeNode, []*ParseError) {
	pos := p.pos()
	body := p.parseStatements()
	return rast.NewScopeNode(pos, body), p.errors
}

var blockEnders = map[string]bool{
	"end": true, "else": true, "elsif": true, "when": true,
	"rescue": true, "ensure": true,
}

func (p *Parser) atBlockEnd() bool {
	if p.tok.Kind == rlex.EOF {
		return true
	}
	return p.tok.Kind == rlex.Keyword && blockEnders[p.tok.Value]
}

func (p *Parser) parseStatements() []rast.Node {
	var stmts []rast.Node
	p.skipNewlines()
	for !p.atBlockEnd() {
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		p.skipNewlines()
		if len(p.errors) >= maxErrors {
			break
		}
	}
	return stmts
}

func (p *Parser) Locals() *LocalScope { return p.scope }

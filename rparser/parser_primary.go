package rparser

import (
	"github.com/clarete/rembed/internal/rlex"
	"github.com/clarete/rembed/rast"
)

func (p *Parser) parsePrimary() rast.Node {
	pos := p.pos()
	tok := p.tok
	switch tok.Kind {
	case rlex.Int:
		p.advance()
		return rast.NewIntNode(pos, tok.IValue, rast.IntDecimal)
	case rlex.Float:
		p.advance()
		return rast.NewFloatNode(pos, tok.FValue)
	case rlex.String:
		p.advance()
		return rast.NewStringNode(pos, rast.StringPlain, []rast.StringPart{{Literal: tok.Value}})
	case rlex.Symbol:
		p.advance()
		return rast.NewSymbolNode(pos, tok.Value)
	case rlex.Regexp:
		p.advance()
		src, flags := splitRegexpValue(tok.Value)
		return rast.NewRegexpNode(pos, src, flags)
	case rlex.IVar:
		p.advance()
		return rast.NewVarNode(pos, rast.VarInstance, tok.Value)
	case rlex.CVar:
		p.advance()
		return rast.NewVarNode(pos, rast.VarClass, tok.Value)
	case rlex.GVar:
		p.advance()
		return rast.NewVarNode(pos, rast.VarGlobal, tok.Value)
	case rlex.Const:
		p.advance()
		return p.maybeCall(pos, nil, tok.Value, true)
	case rlex.Ident:
		p.advance()
		return p.primaryFromIdent(tok)
	case rlex.Keyword:
		return p.parsePrimaryKeyword()
	case rlex.Punct, rlex.Op:
		return p.parsePrimaryPunct()
	default:
		p.errorf("expression", "unexpected token %q", tok.Value)
		p.advance()
		return rast.NewNilNode(pos)
	}
}

func (p *Parser) primaryFromIdent(tok rlex.Token) rast.Node {
	pos := rast.Pos{Line: int32(tok.Line)}
	if _, _, ok := p.scope.Lookup(tok.Value); ok && !p.looksLikeCallStart() {
		return rast.NewVarNode(pos, rast.VarLocal, tok.Value)
	}
	return p.maybeCall(pos, nil, tok.Value, false)
}

// looksLikeCallStart reports whether the current token (just after an
// identifier) indicates that identifier is actually being invoked as a
// method rather than read as a local (e.g. `foo(1)`, `foo do...end`,
// `foo "str"`); a bare known local never reaches the command-arg path.
func (p *Parser) looksLikeCallStart() bool {
	if p.atOp("(") && !p.tok.SpaceBefore {
		return true
	}
	if p.atKeyword("do") || p.atOp("{") {
		return true
	}
	return false
}

func (p *Parser) maybeCall(pos rast.Pos, recv rast.Node, name string, isConst bool) rast.Node {
	args, block := p.parseCallTail()
	if recv == nil && !isConst && args == nil && block == nil {
		return rast.NewVarNode(pos, rast.VarLocal, name)
	}
	if isConst && args == nil && block == nil {
		return rast.NewVarNode(pos, rast.VarConstant, name)
	}
	return rast.NewCallNode(pos, recv, name, args, block, false)
}

func (p *Parser) parsePrimaryKeyword() rast.Node {
	pos := p.pos()
	switch p.tok.Value {
	case "nil":
		p.advance()
		return rast.NewNilNode(pos)
	case "true":
		p.advance()
		return rast.NewTrueNode(pos)
	case "false":
		p.advance()
		return rast.NewFalseNode(pos)
	case "self":
		p.advance()
		return rast.NewSelfNode(pos)
	case "yield":
		p.advance()
		args, _ := p.parseCallTail()
		return rast.NewYieldNode(pos, args)
	case "super":
		p.advance()
		if p.atOp("(") && !p.tok.SpaceBefore {
			args, block := p.parseCallTail()
			return rast.NewSuperNode(pos, args, block, false)
		}
		if p.startsCommandArg() {
			args, block := p.parseCallTail()
			return rast.NewSuperNode(pos, args, block, false)
		}
		block := p.parseOptionalBlock()
		return rast.NewSuperNode(pos, nil, block, true)
	case "lambda":
		p.advance()
		block := p.parseOptionalBlock()
		bn, _ := block.(*rast.BlockNode)
		if bn == nil {
			return rast.NewLambdaNode(pos, nil, nil, false)
		}
		return rast.NewLambdaNode(pos, bn.Params, bn.Body, false)
	case "begin":
		return p.parseBegin()
	case "if":
		return p.parseIf(false)
	case "unless":
		return p.parseIf(true)
	case "case":
		return p.parseCase()
	case "not":
		p.advance()
		return rast.NewCallNode(pos, p.parseExprLevel(precNot), "!", nil, nil, false)
	case "defined?":
		return p.parseUnary()
	default:
		p.errorf("expression", "unexpected keyword %q", p.tok.Value)
		p.advance()
		return rast.NewNilNode(pos)
	}
}

func (p *Parser) parsePrimaryPunct() rast.Node {
	pos := p.pos()
	switch p.tok.Value {
	case "(":
		p.advance()
		old := p.enterNested()
		p.skipNewlines()
		var items []rast.Node
		for !p.atOp(")") {
			items = append(items, p.parseStatement())
			p.skipNewlines()
		}
		p.leaveNested(old)
		p.expectOp(")")
		if len(items) == 1 {
			return items[0]
		}
		return rast.NewScopeNode(pos, items)
	case "[":
		p.advance()
		old := p.enterNested()
		p.skipNewlines()
		var items []rast.Node
		for !p.atOp("]") {
			items = append(items, p.parseArgExpr())
			p.skipNewlines()
			if p.atOp(",") {
				p.advance()
				p.skipNewlines()
				continue
			}
			break
		}
		p.leaveNested(old)
		p.expectOp("]")
		return rast.NewArrayNode(pos, items)
	case "{":
		p.advance()
		old := p.enterNested()
		p.skipNewlines()
		var pairs []rast.HashPair
		for !p.atOp("}") {
			pairs = append(pairs, p.parseHashPair())
			p.skipNewlines()
			if p.atOp(",") {
				p.advance()
				p.skipNewlines()
				continue
			}
			break
		}
		p.leaveNested(old)
		p.expectOp("}")
		return rast.NewHashNode(pos, pairs)
	case "->":
		p.advance()
		var params []rast.Param
		if p.atOp("(") {
			params = p.parseParamListOptional()
		}
		block := p.parseOptionalBlock()
		bn, _ := block.(*rast.BlockNode)
		var body []rast.Node
		if bn != nil {
			body = bn.Body
		}
		return rast.NewLambdaNode(pos, params, body, true)
	case "::":
		p.advance()
		name := p.tok.Value
		p.advance()
		return rast.NewVarNode(pos, rast.VarColon3, name)
	case "..", "...":
		// beginless range
		excl := p.tok.Value == "..."
		p.advance()
		high := p.parseExprLevel(precRange + 1)
		return rast.NewRangeNode(pos, rast.NewNilNode(pos), high, excl)
	default:
		p.errorf("expression", "unexpected token %q", p.tok.Value)
		p.advance()
		return rast.NewNilNode(pos)
	}
}

func (p *Parser) parseHashPair() rast.HashPair {
	pos := p.pos()
	if p.tok.Kind == rlex.Ident || p.tok.Kind == rlex.Const {
		name := p.tok.Value
		save := p.tok
		p.advance()
		if p.atOp(":") {
			p.advance()
			val := p.parseExprLevel(precKeywordLogic + 1)
			return rast.HashPair{Key: rast.NewSymbolNode(pos, name), Value: val}
		}
		key := p.parsePostfix(p.primaryFromIdent(save))
		p.expectOp("=>")
		val := p.parseExprLevel(precKeywordLogic + 1)
		return rast.HashPair{Key: key, Value: val}
	}
	key := p.parseExprLevel(precKeywordLogic + 1)
	p.expectOp("=>")
	val := p.parseExprLevel(precKeywordLogic + 1)
	return rast.HashPair{Key: key, Value: val}
}

func splitRegexpValue(v string) (string, string) {
	for i := 0; i < len(v); i++ {
		if v[i] == 0 {
			return v[:i], v[i+1:]
		}
	}
	return v, ""
}

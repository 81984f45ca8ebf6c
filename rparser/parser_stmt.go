package rparser

import (
	"github.com/clarete/rembed/internal/rlex"
	"github.com/clarete/rembed/rast"
)

func (p *Parser) enterNested() bool {
	old := p.suppressNewline
	p.suppressNewline = true
	return old
}
func (p *Parser) leaveNested(old bool) { p.suppressNewline = old }

func (p *Parser) parseStatement() rast.Node {
	var node rast.Node
	switch {
	case p.atKeyword("def"):
		node = p.parseDef()
	case p.atKeyword("class"):
		node = p.parseClass()
	case p.atKeyword("module"):
		node = p.parseModule()
	case p.atKeyword("alias"):
		node = p.parseAlias()
	case p.atKeyword("undef"):
		node = p.parseUndef()
	case p.atKeyword("if"):
		node = p.parseIf(false)
	case p.atKeyword("unless"):
		node = p.parseIf(true)
	case p.atKeyword("while"):
		node = p.parseWhile(false)
	case p.atKeyword("until"):
		node = p.parseWhile(true)
	case p.atKeyword("for"):
		node = p.parseFor()
	case p.atKeyword("case"):
		node = p.parseCase()
	case p.atKeyword("begin"):
		node = p.parseBegin()
	case p.atKeyword("break"):
		node = p.parseJump(rast.JumpBreak)
	case p.atKeyword("next"):
		node = p.parseJump(rast.JumpNext)
	case p.atKeyword("redo"):
		pos := p.pos()
		p.advance()
		node = rast.NewJumpNode(pos, rast.JumpRedo, nil)
	case p.atKeyword("retry"):
		pos := p.pos()
		p.advance()
		node = rast.NewJumpNode(pos, rast.JumpRetry, nil)
	case p.atKeyword("return"):
		node = p.parseReturn()
	case p.atKeyword("END"):
		node = p.parsePostExe()
	default:
		node = p.parseExprStatement()
	}
	return p.parseModifiers(node)
}

// parseModifiers handles trailing `stmt if cond`, `stmt unless cond`,
// `stmt while cond`, `stmt until cond` statement modifiers.
func (p *Parser) parseModifiers(node rast.Node) rast.Node {
	for {
		switch {
		case p.atKeyword("if"):
			pos := p.pos()
			p.advance()
			cond := p.parseExpr()
			node = rast.NewIfNode(pos, cond, []rast.Node{node}, nil)
		case p.atKeyword("unless"):
			pos := p.pos()
			p.advance()
			cond := p.parseExpr()
			node = rast.NewIfNode(pos, cond, nil, []rast.Node{node})
		case p.atKeyword("while"):
			pos := p.pos()
			p.advance()
			cond := p.parseExpr()
			node = rast.NewWhileNode(pos, cond, []rast.Node{node}, false, isBeginBlock(node))
		case p.atKeyword("until"):
			pos := p.pos()
			p.advance()
			cond := p.parseExpr()
			node = rast.NewWhileNode(pos, cond, []rast.Node{node}, true, isBeginBlock(node))
		default:
			return node
		}
	}
}

func isBeginBlock(n rast.Node) bool {
	_, ok := n.(*rast.BeginNode)
	return ok
}

func (p *Parser) parseExprStatement() rast.Node {
	return p.parseAssignOrExpr()
}

func (p *Parser) parseDef() rast.Node {
	pos := p.pos()
	p.advance() // 'def'

	// `def self.name` / `def recv.name` (singleton def) vs plain `def name`.
	if p.atKeyword("self") {
		selfPos := p.pos()
		p.advance()
		if p.atOp(".") {
			p.advance()
			name := p.parseMethodName()
			return p.finishDefBody(pos, rast.NewSelfNode(selfPos), name, true)
		}
		// `def self` alone is invalid; recover by treating `self` as the name.
		return p.finishDefBody(pos, nil, "self", false)
	}
	if p.tok.Kind == rlex.Ident || p.tok.Kind == rlex.Const {
		name := p.tok.Value
		recvTok := p.tok
		p.advance()
		if p.atOp(".") {
			p.advance()
			methodName := p.parseMethodName()
			recv := rast.NewVarNode(pos, identKind(recvTok), name)
			return p.finishDefBody(pos, recv, methodName, true)
		}
		// name already consumed above as the plain method name; may
		// continue with an operator method name like `def +`.
		return p.finishDefBody(pos, nil, name+p.maybeAssignSuffix(), false)
	}
	name := p.parseMethodName()
	return p.finishDefBody(pos, nil, name, false)
}

// maybeAssignSuffix absorbs the trailing `=` of a setter method name
// like `def name=`, which the lexer tokenizes as a separate `=`.
func (p *Parser) maybeAssignSuffix() string {
	if p.atOp("=") && !p.tok.SpaceBefore {
		p.advance()
		return "="
	}
	return ""
}

func identKind(t rlex.Token) rast.VarKind {
	if t.Kind == rlex.Const {
		return rast.VarConstant
	}
	return rast.VarLocal
}

func (p *Parser) parseMethodName() string {
	name := p.tok.Value
	p.advance()
	return name + p.maybeAssignSuffix()
}

func (p *Parser) finishDefBody(pos rast.Pos, recv rast.Node, name string, singleton bool) rast.Node {
	params := p.parseParamListOptional()
	p.skipNewlines()

	outer := p.scope
	p.scope = NewLocalScope(nil, false)
	for _, prm := range params {
		if prm.Kind != rast.ParamBlock {
			p.scope.Declare(prm.Name)
		}
	}
	body := p.parseStatements()
	p.scope = outer

	p.expectKeyword("end")
	if singleton {
		return rast.NewSDefNode(pos, recv, name, params, body)
	}
	return rast.NewDefNode(pos, name, params, body)
}

func (p *Parser) parseParamListOptional() []rast.Param {
	paren := p.atOp("(")
	if paren {
		p.advance()
	} else if p.tok.Kind == rlex.Newline || p.atOp(";") {
		return nil
	}
	var params []rast.Param
	for !p.atOp(")") && p.tok.Kind != rlex.Newline && !p.atOp(";") && p.tok.Kind != rlex.EOF {
		params = append(params, p.parseOneParam())
		if p.atOp(",") {
			p.advance()
			continue
		}
		break
	}
	if paren {
		p.expectOp(")")
	}
	return params
}

func (p *Parser) parseOneParam() rast.Param {
	switch {
	case p.atOp("*"):
		p.advance()
		name := ""
		if p.tok.Kind == rlex.Ident {
			name = p.tok.Value
			p.advance()
		}
		p.scope.Declare(name)
		return rast.Param{Kind: rast.ParamSplat, Name: name}
	case p.atOp("**"):
		p.advance()
		name := p.tok.Value
		p.advance()
		p.scope.Declare(name)
		return rast.Param{Kind: rast.ParamKeywordSplat, Name: name}
	case p.atOp("&"):
		p.advance()
		name := p.tok.Value
		p.advance()
		return rast.Param{Kind: rast.ParamBlock, Name: name}
	default:
		name := p.tok.Value
		p.advance()
		if p.atOp(":") {
			p.advance()
			var def rast.Node
			if !p.atOp(",") && !p.atOp(")") {
				def = p.parseExpr()
			}
			p.scope.Declare(name)
			return rast.Param{Kind: rast.ParamKeyword, Name: name, Default: def}
		}
		if p.atOp("=") {
			p.advance()
			def := p.parseExpr()
			p.scope.Declare(name)
			return rast.Param{Kind: rast.ParamOptional, Name: name, Default: def}
		}
		p.scope.Declare(name)
		return rast.Param{Kind: rast.ParamRequired, Name: name}
	}
}

func (p *Parser) parseClass() rast.Node {
	pos := p.pos()
	p.advance()
	if p.atOp("<<") {
		p.advance()
		recv := p.parseExpr()
		p.skipNewlines()
		body := p.parseStatements()
		p.expectKeyword("end")
		return rast.NewSClassNode(pos, recv, body)
	}
	name := p.parseScopedConstant()
	var super rast.Node
	if p.atOp("<") {
		p.advance()
		super = p.parseExpr()
	}
	p.skipNewlines()
	body := p.parseStatements()
	p.expectKeyword("end")
	return rast.NewClassNode(pos, name, super, body)
}

func (p *Parser) parseModule() rast.Node {
	pos := p.pos()
	p.advance()
	name := p.parseScopedConstant()
	p.skipNewlines()
	body := p.parseStatements()
	p.expectKeyword("end")
	return rast.NewModuleNode(pos, name, body)
}

func (p *Parser) parseScopedConstant() rast.Node {
	pos := p.pos()
	var node rast.Node
	if p.atOp("::") {
		p.advance()
		node = rast.NewVarNode(pos, rast.VarColon3, p.tok.Value)
		p.advance()
	} else {
		node = rast.NewVarNode(pos, rast.VarConstant, p.tok.Value)
		p.advance()
	}
	for p.atOp("::") {
		p.advance()
		node = rast.NewColon2Node(p.pos(), node, p.tok.Value)
		p.advance()
	}
	return node
}

func (p *Parser) parseAlias() rast.Node {
	pos := p.pos()
	p.advance()
	newName := p.parseAliasArg()
	oldName := p.parseAliasArg()
	return rast.NewAliasNode(pos, newName, oldName)
}

func (p *Parser) parseAliasArg() string {
	if p.tok.Kind == rlex.Symbol {
		v := p.tok.Value
		p.advance()
		return v
	}
	v := p.tok.Value
	p.advance()
	return v
}

func (p *Parser) parseUndef() rast.Node {
	pos := p.pos()
	p.advance()
	var names []string
	names = append(names, p.parseAliasArg())
	for p.atOp(",") {
		p.advance()
		names = append(names, p.parseAliasArg())
	}
	return rast.NewUndefNode(pos, names)
}

func (p *Parser) parseIf(unless bool) rast.Node {
	pos := p.pos()
	p.advance()
	cond := p.parseExpr()
	p.skipNewlines()
	if p.atKeyword("then") {
		p.advance()
	}
	p.skipNewlines()
	then := p.parseStatements()
	els := p.parseElseChain()
	p.expectKeyword("end")
	if unless {
		return rast.NewIfNode(pos, cond, els, then)
	}
	return rast.NewIfNode(pos, cond, then, els)
}

func (p *Parser) parseElseChain() []rast.Node {
	if p.atKeyword("elsif") {
		pos := p.pos()
		p.advance()
		cond := p.parseExpr()
		if p.atKeyword("then") {
			p.advance()
		}
		p.skipNewlines()
		then := p.parseStatements()
		els := p.parseElseChain()
		return []rast.Node{rast.NewIfNode(pos, cond, then, els)}
	}
	if p.atKeyword("else") {
		p.advance()
		return p.parseStatements()
	}
	return nil
}

func (p *Parser) parseWhile(until bool) rast.Node {
	pos := p.pos()
	p.advance()
	cond := p.parseExpr()
	if p.atKeyword("do") {
		p.advance()
	}
	p.skipNewlines()
	body := p.parseStatements()
	p.expectKeyword("end")
	return rast.NewWhileNode(pos, cond, body, until, false)
}

func (p *Parser) parseFor() rast.Node {
	pos := p.pos()
	p.advance()
	var vars []rast.Node
	vars = append(vars, p.parseForVar())
	for p.atOp(",") {
		p.advance()
		vars = append(vars, p.parseForVar())
	}
	p.expectKeyword("in")
	iter := p.parseExpr()
	if p.atKeyword("do") {
		p.advance()
	}
	p.skipNewlines()
	body := p.parseStatements()
	p.expectKeyword("end")
	return rast.NewForNode(pos, vars, iter, body)
}

func (p *Parser) parseForVar() rast.Node {
	pos := p.pos()
	name := p.tok.Value
	p.advance()
	p.scope.Declare(name)
	return rast.NewVarNode(pos, rast.VarLocal, name)
}

func (p *Parser) parseCase() rast.Node {
	pos := p.pos()
	p.advance()
	var subject rast.Node
	if !(p.tok.Kind == rlex.Newline || p.atKeyword("when")) {
		subject = p.parseExpr()
	}
	p.skipNewlines()
	var whens []rast.WhenClause
	for p.atKeyword("when") {
		p.advance()
		var conds []rast.Node
		conds = append(conds, p.parseExpr())
		for p.atOp(",") {
			p.advance()
			conds = append(conds, p.parseExpr())
		}
		if p.atKeyword("then") {
			p.advance()
		}
		p.skipNewlines()
		body := p.parseStatements()
		whens = append(whens, rast.WhenClause{Conds: conds, Body: body})
	}
	if p.atKeyword("else") {
		p.advance()
		body := p.parseStatements()
		whens = append(whens, rast.WhenClause{Body: body})
	}
	p.expectKeyword("end")
	return rast.NewCaseNode(pos, subject, whens)
}

func (p *Parser) parseBegin() rast.Node {
	pos := p.pos()
	p.advance()
	p.skipNewlines()
	body := p.parseStatements()

	var rescues []rast.RescueClause
	for p.atKeyword("rescue") {
		p.advance()
		var classes []rast.Node
		varName := ""
		if !(p.atOp("=>") || p.tok.Kind == rlex.Newline || p.atKeyword("then")) {
			classes = append(classes, p.parseExpr())
			for p.atOp(",") {
				p.advance()
				classes = append(classes, p.parseExpr())
			}
		}
		if p.atOp("=>") {
			p.advance()
			varName = p.tok.Value
			p.scope.Declare(varName)
			p.advance()
		}
		if p.atKeyword("then") {
			p.advance()
		}
		p.skipNewlines()
		rbody := p.parseStatements()
		rescues = append(rescues, rast.RescueClause{Classes: classes, VarName: varName, Body: rbody})
	}
	var els []rast.Node
	if p.atKeyword("else") {
		p.advance()
		els = p.parseStatements()
	}
	var ensure []rast.Node
	if p.atKeyword("ensure") {
		p.advance()
		ensure = p.parseStatements()
	}
	p.expectKeyword("end")
	return rast.NewBeginNode(pos, body, rescues, els, ensure)
}

func (p *Parser) parseJump(kind rast.JumpKind) rast.Node {
	pos := p.pos()
	p.advance()
	var value rast.Node
	if !p.atStatementEnd() {
		value = p.parseExpr()
	}
	return rast.NewJumpNode(pos, kind, value)
}

func (p *Parser) parseReturn() rast.Node {
	pos := p.pos()
	p.advance()
	var value rast.Node
	if !p.atStatementEnd() {
		first := p.parseExpr()
		if p.atOp(",") {
			items := []rast.Node{first}
			for p.atOp(",") {
				p.advance()
				items = append(items, p.parseExpr())
			}
			value = rast.NewArrayNode(pos, items)
		} else {
			value = first
		}
	}
	return rast.NewReturnNode(pos, value)
}

func (p *Parser) parsePostExe() rast.Node {
	pos := p.pos()
	p.advance()
	p.expectOp("{")
	p.skipNewlines()
	body := p.parseStatements()
	p.expectOp("}")
	return rast.NewPostExeNode(pos, body)
}

func (p *Parser) atStatementEnd() bool {
	return p.tok.Kind == rlex.Newline || p.atOp(";") || p.atBlockEnd() || p.tok.Kind == rlex.EOF
}

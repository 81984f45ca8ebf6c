package rast

// Visitor is the full dispatch surface over every node category
// spec.md §4.3 enumerates, mirrored one-to-one on the teacher's
// AstNodeVisitor (grammar_ast_visitor.go).
type Visitor interface {
	VisitInt(*IntNode) error
	VisitFloat(*FloatNode) error
	VisitString(*StringNode) error
	VisitRegexp(*RegexpNode) error
	VisitSymbol(*SymbolNode) error
	VisitWords(*WordsNode) error
	VisitNil(*NilNode) error
	VisitTrue(*TrueNode) error
	VisitFalse(*FalseNode) error
	VisitSelf(*SelfNode) error

	VisitVar(*VarNode) error
	VisitBackRef(*BackRefNode) error

	VisitArray(*ArrayNode) error
	VisitHash(*HashNode) error
	VisitSplat(*SplatNode) error

	VisitIf(*IfNode) error
	VisitCase(*CaseNode) error
	VisitWhile(*WhileNode) error
	VisitFor(*ForNode) error
	VisitJump(*JumpNode) error
	VisitReturn(*ReturnNode) error
	VisitAnd(*AndNode) error
	VisitOr(*OrNode) error

	VisitDef(*DefNode) error
	VisitSDef(*SDefNode) error
	VisitClass(*ClassNode) error
	VisitModule(*ModuleNode) error
	VisitSClass(*SClassNode) error
	VisitAlias(*AliasNode) error
	VisitUndef(*UndefNode) error

	VisitCall(*CallNode) error
	VisitSuper(*SuperNode) error
	VisitYield(*YieldNode) error
	VisitBlockArg(*BlockArgNode) error

	VisitScope(*ScopeNode) error
	VisitBlock(*BlockNode) error
	VisitLambda(*LambdaNode) error

	VisitAsgn(*AsgnNode) error
	VisitMAsgn(*MAsgnNode) error
	VisitOpAsgn(*OpAsgnNode) error

	VisitBegin(*BeginNode) error

	VisitRange(*RangeNode) error
	VisitNegate(*NegateNode) error
	VisitPostExe(*PostExeNode) error
	VisitHeredoc(*HeredocNode) error
}

// Inspect walks a node tree in depth-first order calling f on each
// node reached from fields this package knows about; unlike the full
// Visitor it does not require exhaustiveness, matching the teacher's
// Inspect helper (grammar_ast_visitor.go) for call sites that only
// care about one or two node kinds.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	walkChildren(n, func(c Node) { Inspect(c, f) })
}

func walkChildren(n Node, walk func(Node)) {
	switch t := n.(type) {
	case *ArrayNode:
		for _, it := range t.Items {
			walk(it)
		}
	case *HashNode:
		for _, p := range t.Pairs {
			walk(p.Key)
			walk(p.Value)
		}
	case *SplatNode:
		if t.Value != nil {
			walk(t.Value)
		}
	case *IfNode:
		walk(t.Cond)
		for _, s := range t.Then {
			walk(s)
		}
		for _, s := range t.Else {
			walk(s)
		}
	case *CaseNode:
		if t.Subject != nil {
			walk(t.Subject)
		}
		for _, w := range t.Whens {
			for _, c := range w.Conds {
				walk(c)
			}
			for _, s := range w.Body {
				walk(s)
			}
		}
	case *WhileNode:
		walk(t.Cond)
		for _, s := range t.Body {
			walk(s)
		}
	case *ForNode:
		for _, vv := range t.Vars {
			walk(vv)
		}
		walk(t.Iter)
		for _, s := range t.Body {
			walk(s)
		}
	case *JumpNode:
		if t.Value != nil {
			walk(t.Value)
		}
	case *ReturnNode:
		if t.Value != nil {
			walk(t.Value)
		}
	case *AndNode:
		walk(t.Left)
		walk(t.Right)
	case *OrNode:
		walk(t.Left)
		walk(t.Right)
	case *DefNode:
		for _, s := range t.Body {
			walk(s)
		}
	case *SDefNode:
		walk(t.Recv)
		for _, s := range t.Body {
			walk(s)
		}
	case *ClassNode:
		walk(t.Name)
		if t.Super != nil {
			walk(t.Super)
		}
		for _, s := range t.Body {
			walk(s)
		}
	case *ModuleNode:
		walk(t.Name)
		for _, s := range t.Body {
			walk(s)
		}
	case *SClassNode:
		walk(t.Recv)
		for _, s := range t.Body {
			walk(s)
		}
	case *CallNode:
		if t.Recv != nil {
			walk(t.Recv)
		}
		for _, a := range t.Args {
			walk(a)
		}
		if t.Block != nil {
			walk(t.Block)
		}
	case *SuperNode:
		for _, a := range t.Args {
			walk(a)
		}
		if t.Block != nil {
			walk(t.Block)
		}
	case *YieldNode:
		for _, a := range t.Args {
			walk(a)
		}
	case *BlockArgNode:
		walk(t.Value)
	case *ScopeNode:
		for _, s := range t.Body {
			walk(s)
		}
	case *BlockNode:
		for _, s := range t.Body {
			walk(s)
		}
	case *LambdaNode:
		for _, s := range t.Body {
			walk(s)
		}
	case *AsgnNode:
		walk(t.Target)
		walk(t.Value)
	case *MAsgnNode:
		for _, tg := range t.Targets {
			walk(tg)
		}
		walk(t.Value)
	case *OpAsgnNode:
		walk(t.Target)
		walk(t.Value)
	case *BeginNode:
		for _, s := range t.Body {
			walk(s)
		}
		for _, r := range t.Rescues {
			for _, c := range r.Classes {
				walk(c)
			}
			for _, s := range r.Body {
				walk(s)
			}
		}
		for _, s := range t.Else {
			walk(s)
		}
		for _, s := range t.Ensure {
			walk(s)
		}
	case *RangeNode:
		walk(t.Low)
		walk(t.High)
	case *NegateNode:
		walk(t.Value)
	case *PostExeNode:
		for _, s := range t.Body {
			walk(s)
		}
	}
}

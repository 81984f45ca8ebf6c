package rast

// Param describes one entry of a method/block parameter list,
// covering required, optional (Default != nil), splat, keyword, and
// block-arg (&blk) parameters in the single shape codegen needs to
// assign register indices in declaration order (spec.md §4.4 "Locals
// occupy indices 1..nlocals in fixed order").
type ParamKind uint8

const (
	ParamRequired ParamKind = iota
	ParamOptional
	ParamSplat
	ParamKeyword
	ParamKeywordSplat
	ParamBlock
)

type Param struct {
	Kind    ParamKind
	Name    string
	Default Node // non-nil only for ParamOptional/ParamKeyword
}

// ---- definitions ----

type DefNode struct {
	base
	Name   string
	Params []Param
	Body   []Node
}

func NewDefNode(pos Pos, name string, params []Param, body []Node) *DefNode {
	return &DefNode{base{pos}, name, params, body}
}
func (n *DefNode) String() string         { return "def " + n.Name }
func (n *DefNode) Accept(v Visitor) error { return v.VisitDef(n) }

// SDefNode is `def self.name` / `def recv.name` — a singleton method
// definition on a specific receiver.
type SDefNode struct {
	base
	Recv   Node
	Name   string
	Params []Param
	Body   []Node
}

func NewSDefNode(pos Pos, recv Node, name string, params []Param, body []Node) *SDefNode {
	return &SDefNode{base{pos}, recv, name, params, body}
}
func (n *SDefNode) String() string         { return "def self." + n.Name }
func (n *SDefNode) Accept(v Visitor) error { return v.VisitSDef(n) }

type ClassNode struct {
	base
	Name  Node // VarNode(VarConstant) or Colon2 chain
	Super Node // nil when no explicit superclass
	Body  []Node
}

func NewClassNode(pos Pos, name, super Node, body []Node) *ClassNode {
	return &ClassNode{base{pos}, name, super, body}
}
func (n *ClassNode) String() string         { return "class " + n.Name.String() }
func (n *ClassNode) Accept(v Visitor) error { return v.VisitClass(n) }

type ModuleNode struct {
	base
	Name Node
	Body []Node
}

func NewModuleNode(pos Pos, name Node, body []Node) *ModuleNode {
	return &ModuleNode{base{pos}, name, body}
}
func (n *ModuleNode) String() string         { return "module " + n.Name.String() }
func (n *ModuleNode) Accept(v Visitor) error { return v.VisitModule(n) }

// SClassNode is `class << recv ... end`, opening the singleton class.
type SClassNode struct {
	base
	Recv Node
	Body []Node
}

func NewSClassNode(pos Pos, recv Node, body []Node) *SClassNode {
	return &SClassNode{base{pos}, recv, body}
}
func (n *SClassNode) String() string         { return "class << " + n.Recv.String() }
func (n *SClassNode) Accept(v Visitor) error { return v.VisitSClass(n) }

type AliasNode struct {
	base
	NewName, OldName string
}

func NewAliasNode(pos Pos, newName, oldName string) *AliasNode {
	return &AliasNode{base{pos}, newName, oldName}
}
func (n *AliasNode) String() string         { return "alias " + n.NewName + " " + n.OldName }
func (n *AliasNode) Accept(v Visitor) error { return v.VisitAlias(n) }

type UndefNode struct {
	base
	Names []string
}

func NewUndefNode(pos Pos, names []string) *UndefNode { return &UndefNode{base{pos}, names} }
func (n *UndefNode) String() string                     { return "undef" }
func (n *UndefNode) Accept(v Visitor) error             { return v.VisitUndef(n) }

// ---- calls ----

// CallNode covers both `call` (explicit receiver, e.g. `recv.m`) and
// `fcall` (implicit self receiver, e.g. bare `m`); Recv is nil for an
// fcall, distinguishing the two the way spec.md §4.3 lists them.
type CallNode struct {
	base
	Recv     Node // nil => fcall
	Name     string
	Args     []Node
	Block    Node // *BlockNode, *LambdaNode, or a BlockArg-wrapped reference; nil if none
	SafeNav  bool // `&.` operator
}

func NewCallNode(pos Pos, recv Node, name string, args []Node, block Node, safeNav bool) *CallNode {
	return &CallNode{base{pos}, recv, name, args, block, safeNav}
}
func (n *CallNode) String() string {
	if n.Recv == nil {
		return n.Name
	}
	return n.Recv.String() + "." + n.Name
}
func (n *CallNode) Accept(v Visitor) error { return v.VisitCall(n) }

// SuperNode covers `super(args)`; ZSuper (bare `super`, re-passes the
// caller's own arguments) is distinguished by Implicit.
type SuperNode struct {
	base
	Args     []Node
	Block    Node
	Implicit bool // zsuper
}

func NewSuperNode(pos Pos, args []Node, block Node, implicit bool) *SuperNode {
	return &SuperNode{base{pos}, args, block, implicit}
}
func (n *SuperNode) String() string {
	if n.Implicit {
		return "super"
	}
	return "super(...)"
}
func (n *SuperNode) Accept(v Visitor) error { return v.VisitSuper(n) }

type YieldNode struct {
	base
	Args []Node
}

func NewYieldNode(pos Pos, args []Node) *YieldNode { return &YieldNode{base{pos}, args} }
func (n *YieldNode) String() string                  { return "yield" }
func (n *YieldNode) Accept(v Visitor) error          { return v.VisitYield(n) }

// BlockArgNode is `&expr` in call-argument position: pass an existing
// proc as the block argument instead of a literal `do...end`/`{...}`.
type BlockArgNode struct {
	base
	Value Node
}

func NewBlockArgNode(pos Pos, value Node) *BlockArgNode { return &BlockArgNode{base{pos}, value} }
func (n *BlockArgNode) String() string                    { return "&" + n.Value.String() }
func (n *BlockArgNode) Accept(v Visitor) error            { return v.VisitBlockArg(n) }

// ---- binding ----

// ScopeNode introduces a fresh constant lookup scope (spec.md §4.2's
// lexical Outer chain); used for the synthetic root scope and for
// `Module.new do ... end` bodies.
type ScopeNode struct {
	base
	Body []Node
}

func NewScopeNode(pos Pos, body []Node) *ScopeNode { return &ScopeNode{base{pos}, body} }
func (n *ScopeNode) String() string                  { return "scope" }
func (n *ScopeNode) Accept(v Visitor) error          { return v.VisitScope(n) }

// BlockNode is a `do...end`/`{...}` block attached to a call; unlike
// LambdaNode it does not introduce a new `return` boundary.
type BlockNode struct {
	base
	Params []Param
	Body   []Node
}

func NewBlockNode(pos Pos, params []Param, body []Node) *BlockNode {
	return &BlockNode{base{pos}, params, body}
}
func (n *BlockNode) String() string         { return "block" }
func (n *BlockNode) Accept(v Visitor) error { return v.VisitBlock(n) }

type LambdaNode struct {
	base
	Params []Param
	Body   []Node
	Arrow  bool // `->(x) { }` vs `lambda do |x| end`
}

func NewLambdaNode(pos Pos, params []Param, body []Node, arrow bool) *LambdaNode {
	return &LambdaNode{base{pos}, params, body, arrow}
}
func (n *LambdaNode) String() string         { return "lambda" }
func (n *LambdaNode) Accept(v Visitor) error { return v.VisitLambda(n) }

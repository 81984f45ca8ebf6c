// Package rast defines the typed AST node set spec.md §4.3 enumerates:
// literals, variables, collections, control, definitions, calls,
// binding, assignment, exception scaffolding, and range/negate/heredoc
// nodes. Every node is a distinct, dispatchable variant reached through
// the Visitor interface, following the teacher's AstNode/AstNodeVisitor
// split (grammar_ast.go, grammar_ast_visitor.go) rather than a single
// tagged struct.
package rast

import "fmt"

// Pos is a node's source position: line number and an index into the
// parser's file-name table (spec.md §4.3 "source line and
// filename-index").
type Pos struct {
	Line int32
	File int32
}

// Node is the interface every AST variant implements.
type Node interface {
	Pos() Pos
	String() string
	Accept(Visitor) error
}

type base struct{ pos Pos }

func (b base) Pos() Pos { return b.pos }

// ---- literals ----

type IntKind uint8

const (
	IntDecimal IntKind = iota
	IntBinary
	IntOctal
	IntHex
)

type IntNode struct {
	base
	Value int64
	Base  IntKind
}

func NewIntNode(pos Pos, v int64, base_ IntKind) *IntNode {
	return &IntNode{base{pos}, v, base_}
}
func (n *IntNode) String() string      { return fmt.Sprintf("%d", n.Value) }
func (n *IntNode) Accept(v Visitor) error { return v.VisitInt(n) }

type FloatNode struct {
	base
	Value float64
}

func NewFloatNode(pos Pos, v float64) *FloatNode { return &FloatNode{base{pos}, v} }
func (n *FloatNode) String() string                { return fmt.Sprintf("%g", n.Value) }
func (n *FloatNode) Accept(v Visitor) error         { return v.VisitFloat(n) }

// StringNode covers plain ('...'), dstring (interpolated "..."), and
// xstring (`...`) literals; Parts holds alternating literal/expr
// segments for dstring/xstring, a single literal segment otherwise.
type StringKind uint8

const (
	StringPlain StringKind = iota
	StringInterp
	StringExec
)

type StringPart struct {
	Literal string
	Expr    Node // nil when this part is a literal segment
}

type StringNode struct {
	base
	Kind  StringKind
	Parts []StringPart
}

func NewStringNode(pos Pos, kind StringKind, parts []StringPart) *StringNode {
	return &StringNode{base{pos}, kind, parts}
}
func (n *StringNode) String() string {
	s := ""
	for _, p := range n.Parts {
		if p.Expr != nil {
			s += "#{" + p.Expr.String() + "}"
		} else {
			s += p.Literal
		}
	}
	return s
}
func (n *StringNode) Accept(v Visitor) error { return v.VisitString(n) }

type RegexpNode struct {
	base
	Source string
	Flags  string
}

func NewRegexpNode(pos Pos, src, flags string) *RegexpNode { return &RegexpNode{base{pos}, src, flags} }
func (n *RegexpNode) String() string                         { return "/" + n.Source + "/" + n.Flags }
func (n *RegexpNode) Accept(v Visitor) error                  { return v.VisitRegexp(n) }

// SymbolNode covers both plain (:foo) and dsym (:"#{...}") symbols.
type SymbolNode struct {
	base
	Name  string
	Parts []StringPart // non-nil only for dsym
}

func NewSymbolNode(pos Pos, name string) *SymbolNode { return &SymbolNode{base: base{pos}, Name: name} }
func NewDSymbolNode(pos Pos, parts []StringPart) *SymbolNode {
	return &SymbolNode{base: base{pos}, Parts: parts}
}
func (n *SymbolNode) String() string {
	if n.Parts != nil {
		return ":\"" + (&StringNode{Parts: n.Parts}).String() + "\""
	}
	return ":" + n.Name
}
func (n *SymbolNode) Accept(v Visitor) error { return v.VisitSymbol(n) }

// WordsNode covers %w[...] (Symbols=false) and %i[...] (Symbols=true).
type WordsNode struct {
	base
	Words   []string
	Symbols bool
}

func NewWordsNode(pos Pos, words []string, symbols bool) *WordsNode {
	return &WordsNode{base{pos}, words, symbols}
}
func (n *WordsNode) String() string { return fmt.Sprintf("%v", n.Words) }
func (n *WordsNode) Accept(v Visitor) error { return v.VisitWords(n) }

type NilNode struct{ base }

func NewNilNode(pos Pos) *NilNode          { return &NilNode{base{pos}} }
func (n *NilNode) String() string          { return "nil" }
func (n *NilNode) Accept(v Visitor) error { return v.VisitNil(n) }

type TrueNode struct{ base }

func NewTrueNode(pos Pos) *TrueNode        { return &TrueNode{base{pos}} }
func (n *TrueNode) String() string          { return "true" }
func (n *TrueNode) Accept(v Visitor) error { return v.VisitTrue(n) }

type FalseNode struct{ base }

func NewFalseNode(pos Pos) *FalseNode      { return &FalseNode{base{pos}} }
func (n *FalseNode) String() string         { return "false" }
func (n *FalseNode) Accept(v Visitor) error { return v.VisitFalse(n) }

type SelfNode struct{ base }

func NewSelfNode(pos Pos) *SelfNode        { return &SelfNode{base{pos}} }
func (n *SelfNode) String() string          { return "self" }
func (n *SelfNode) Accept(v Visitor) error { return v.VisitSelf(n) }

// ---- variables ----

type VarKind uint8

const (
	VarLocal VarKind = iota
	VarInstance
	VarClass
	VarGlobal
	VarConstant
	VarColon2 // Scope::Name
	VarColon3 // ::Name (top-level)
)

type VarNode struct {
	base
	Kind  VarKind
	Name  string
	Scope Node // non-nil only for VarColon2
}

func NewVarNode(pos Pos, kind VarKind, name string) *VarNode {
	return &VarNode{base: base{pos}, Kind: kind, Name: name}
}
func NewColon2Node(pos Pos, scope Node, name string) *VarNode {
	return &VarNode{base{pos}, VarColon2, name, scope}
}
func (n *VarNode) String() string {
	switch n.Kind {
	case VarInstance:
		return "@" + n.Name
	case VarClass:
		return "@@" + n.Name
	case VarGlobal:
		return "$" + n.Name
	case VarColon2:
		return n.Scope.String() + "::" + n.Name
	case VarColon3:
		return "::" + n.Name
	default:
		return n.Name
	}
}
func (n *VarNode) Accept(v Visitor) error { return v.VisitVar(n) }

// BackRefNode covers $~, $&, $1.. (Nth >= 0) style regexp match refs.
type BackRefNode struct {
	base
	Name string // "~", "&", "`", "'" for named back-refs
	Nth  int    // -1 when this is a named back-ref, not $N
}

func NewBackRefNode(pos Pos, name string) *BackRefNode { return &BackRefNode{base{pos}, name, -1} }
func NewNthRefNode(pos Pos, n int) *BackRefNode         { return &BackRefNode{base{pos}, "", n} }
func (n *BackRefNode) String() string {
	if n.Nth >= 0 {
		return fmt.Sprintf("$%d", n.Nth)
	}
	return "$" + n.Name
}
func (n *BackRefNode) Accept(v Visitor) error { return v.VisitBackRef(n) }

// ---- collections ----

type ArrayNode struct {
	base
	Items []Node
}

func NewArrayNode(pos Pos, items []Node) *ArrayNode { return &ArrayNode{base{pos}, items} }
func (n *ArrayNode) String() string {
	s := "["
	for i, it := range n.Items {
		if i > 0 {
			s += ", "
		}
		s += it.String()
	}
	return s + "]"
}
func (n *ArrayNode) Accept(v Visitor) error { return v.VisitArray(n) }

type HashPair struct{ Key, Value Node }

type HashNode struct {
	base
	Pairs []HashPair
}

func NewHashNode(pos Pos, pairs []HashPair) *HashNode { return &HashNode{base{pos}, pairs} }
func (n *HashNode) String() string {
	s := "{"
	for i, p := range n.Pairs {
		if i > 0 {
			s += ", "
		}
		s += p.Key.String() + " => " + p.Value.String()
	}
	return s + "}"
}
func (n *HashNode) Accept(v Visitor) error { return v.VisitHash(n) }

// SplatNode covers `*expr` in both call-argument and
// multiple-assignment-target position.
type SplatNode struct {
	base
	Value Node // nil for a bare `*` placeholder in masgn targets
}

func NewSplatNode(pos Pos, value Node) *SplatNode { return &SplatNode{base{pos}, value} }
func (n *SplatNode) String() string {
	if n.Value == nil {
		return "*"
	}
	return "*" + n.Value.String()
}
func (n *SplatNode) Accept(v Visitor) error { return v.VisitSplat(n) }

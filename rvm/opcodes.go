// Package rvm implements the register-based bytecode virtual machine:
// instruction dispatch, call-frame management, exception unwinding,
// and fibers (spec.md §4.5). Grounded in the teacher's vm.go/
// vm_instructions.go dispatch-loop shape (a big switch over an opcode
// byte, operating on explicit register/stack slices) adapted from a
// parsing-machine VM to this language's method-call VM.
package rvm

import "github.com/clarete/rembed/rirep"

// Op is rirep.Op renamed at the point of use for readability; the
// representative opcode groups from spec.md §4.5's table.
type Op = rirep.Op

const (
	OpNop Op = iota
	OpMove
	OpLoadL
	OpLoadI
	OpLoadSym
	OpLoadNil
	OpLoadSelf
	OpLoadT
	OpLoadF

	OpGetGlobal
	OpSetGlobal
	OpGetIV
	OpSetIV
	OpGetCV
	OpSetCV
	OpGetConst
	OpSetConst
	OpGetMConst
	OpSetMConst
	OpGetUpvar
	OpSetUpvar

	OpJmp
	OpJmpIf
	OpJmpNot

	OpOnErr
	OpRescue
	OpPopErr
	OpRaise
	OpEPush
	OpEPop

	OpSend
	OpSendB
	OpFSend
	OpCall
	OpSuper
	OpZSuper
	OpArgAry
	OpEnter
	OpReturn
	OpTailCall
	OpBlkPush

	OpAdd
	OpAddI
	OpSub
	OpSubI
	OpMul
	OpDiv
	OpEq
	OpLt
	OpLe
	OpGt
	OpGe

	OpArray
	OpAryCat
	OpAryPush
	OpARef
	OpASet
	OpAPost
	OpString
	OpStrCat
	OpHash
	OpRange

	OpLambda
	OpOClass
	OpClass
	OpModule
	OpExec
	OpMethod
	OpSClass
	OpTClass

	OpErr
	OpStop
)

// ReturnKind is RETURN's B operand (spec.md §4.5 call protocol step 3).
type ReturnKind int32

const (
	ReturnNormal ReturnKind = iota
	ReturnReturn
	ReturnBreak
)

// sendArgcBundled is the "127 = bundled into one array" sentinel
// spec.md §4.4/§4.5 both reference for SEND's C operand and ENTER's
// caller-argument reshaping. SendArgcBundled is the exported alias
// rcodegen emits when it packs a splat call's args into one Array.
const sendArgcBundled = 127
const SendArgcBundled = sendArgcBundled

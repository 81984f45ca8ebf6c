// Package rdisasm prints a human-readable listing of an rirep.IREP
// tree, the ambient tooling spec.md §1 lists as out-of-scope for the
// core interpreter but still worth a home (SPEC_FULL.md §7). Grounded
// on the teacher's own Program/Instruction PrettyPrint (vm_program.go)
// for the one-mnemonic-per-line convention, re-targeted from a
// packrat-matcher opcode set to this VM's register opcode set.
package rdisasm

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/clarete/rembed/rirep"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvm"
)

var mnemonics = map[rvm.Op]string{
	rvm.OpNop:        "NOP",
	rvm.OpMove:       "MOVE",
	rvm.OpLoadL:      "LOADL",
	rvm.OpLoadI:      "LOADI",
	rvm.OpLoadSym:    "LOADSYM",
	rvm.OpLoadNil:    "LOADNIL",
	rvm.OpLoadSelf:   "LOADSELF",
	rvm.OpLoadT:      "LOADT",
	rvm.OpLoadF:      "LOADF",
	rvm.OpGetGlobal:  "GETGLOBAL",
	rvm.OpSetGlobal:  "SETGLOBAL",
	rvm.OpGetIV:      "GETIV",
	rvm.OpSetIV:      "SETIV",
	rvm.OpGetCV:      "GETCV",
	rvm.OpSetCV:      "SETCV",
	rvm.OpGetConst:   "GETCONST",
	rvm.OpSetConst:   "SETCONST",
	rvm.OpGetMConst:  "GETMCONST",
	rvm.OpSetMConst:  "SETMCONST",
	rvm.OpGetUpvar:   "GETUPVAR",
	rvm.OpSetUpvar:   "SETUPVAR",
	rvm.OpJmp:        "JMP",
	rvm.OpJmpIf:      "JMPIF",
	rvm.OpJmpNot:     "JMPNOT",
	rvm.OpOnErr:      "ONERR",
	rvm.OpRescue:     "RESCUE",
	rvm.OpPopErr:     "POPERR",
	rvm.OpRaise:      "RAISE",
	rvm.OpEPush:      "EPUSH",
	rvm.OpEPop:       "EPOP",
	rvm.OpSend:       "SEND",
	rvm.OpSendB:      "SENDB",
	rvm.OpFSend:      "FSEND",
	rvm.OpCall:       "CALL",
	rvm.OpSuper:      "SUPER",
	rvm.OpZSuper:     "ZSUPER",
	rvm.OpArgAry:     "ARGARY",
	rvm.OpEnter:      "ENTER",
	rvm.OpReturn:     "RETURN",
	rvm.OpTailCall:   "TAILCALL",
	rvm.OpBlkPush:    "BLKPUSH",
	rvm.OpAdd:        "ADD",
	rvm.OpAddI:       "ADDI",
	rvm.OpSub:        "SUB",
	rvm.OpSubI:       "SUBI",
	rvm.OpMul:        "MUL",
	rvm.OpDiv:        "DIV",
	rvm.OpEq:         "EQ",
	rvm.OpLt:         "LT",
	rvm.OpLe:         "LE",
	rvm.OpGt:         "GT",
	rvm.OpGe:         "GE",
	rvm.OpArray:      "ARRAY",
	rvm.OpAryCat:     "ARYCAT",
	rvm.OpAryPush:    "ARYPUSH",
	rvm.OpARef:       "AREF",
	rvm.OpASet:       "ASET",
	rvm.OpAPost:      "APOST",
	rvm.OpString:     "STRING",
	rvm.OpStrCat:     "STRCAT",
	rvm.OpHash:       "HASH",
	rvm.OpRange:      "RANGE",
	rvm.OpLambda:     "LAMBDA",
	rvm.OpOClass:     "OCLASS",
	rvm.OpClass:      "CLASS",
	rvm.OpModule:     "MODULE",
	rvm.OpExec:       "EXEC",
	rvm.OpMethod:     "METHOD",
	rvm.OpSClass:     "SCLASS",
	rvm.OpTClass:     "TCLASS",
	rvm.OpErr:        "ERR",
	rvm.OpStop:       "STOP",
}

// group buckets an opcode for coloring: moves/loads, jumps/exceptions,
// or calls/defs, mirroring cmd/rembed's own go-colorable REPL output
// style with an independent library instead (fatih/color), so both
// retrieved color dependencies get a real call site.
func group(op rvm.Op) *color.Color {
	switch op {
	case rvm.OpJmp, rvm.OpJmpIf, rvm.OpJmpNot, rvm.OpOnErr, rvm.OpRescue, rvm.OpPopErr, rvm.OpRaise, rvm.OpEPush, rvm.OpEPop:
		return color.New(color.FgYellow)
	case rvm.OpSend, rvm.OpSendB, rvm.OpFSend, rvm.OpCall, rvm.OpSuper, rvm.OpZSuper, rvm.OpTailCall,
		rvm.OpLambda, rvm.OpOClass, rvm.OpClass, rvm.OpModule, rvm.OpExec, rvm.OpMethod, rvm.OpSClass:
		return color.New(color.FgCyan)
	case rvm.OpMove, rvm.OpLoadL, rvm.OpLoadI, rvm.OpLoadSym, rvm.OpLoadNil, rvm.OpLoadSelf, rvm.OpLoadT, rvm.OpLoadF:
		return color.New(color.FgGreen)
	default:
		return color.New(color.Reset)
	}
}

func name(op rvm.Op) string {
	if n, ok := mnemonics[op]; ok {
		return n
	}
	return fmt.Sprintf("OP<%d>", op)
}

// Write prints irep and every child IREP it owns (spec.md §4.4
// "Kids"), indenting nested listings and prefixing each with its
// index in the parent's Kids array.
func Write(w io.Writer, irep *rirep.IREP, symbols *rsym.Table) {
	writeIndented(w, irep, symbols, "", -1)
}

func writeIndented(w io.Writer, irep *rirep.IREP, symbols *rsym.Table, indent string, kidIdx int) {
	header := fmt.Sprintf("%sIREP nregs=%d nlocals=%d", indent, irep.NRegs, irep.NLocals)
	if kidIdx >= 0 {
		header = fmt.Sprintf("%skid[%d] nregs=%d nlocals=%d", indent, kidIdx, irep.NRegs, irep.NLocals)
	}
	fmt.Fprintln(w, header)

	for pc, inst := range irep.Code {
		c := group(inst.Op)
		line := fmt.Sprintf("%s  %4d  %-10s A=%d B=%d C=%d", indent, pc, name(inst.Op), inst.A, inst.B, inst.C)
		if sym := symbolOperand(inst.Op, inst, irep, symbols); sym != "" {
			line += "  ; " + sym
		}
		fmt.Fprintln(w, c.Sprint(line))
	}

	for i, kid := range irep.Kids {
		writeIndented(w, kid, symbols, indent+"  ", i)
	}
}

// symbolOperand resolves the two distinct symbol-operand conventions
// rcodegen emits against (see rcodegen/expr.go and asgn.go): SEND-
// family opcodes index irep.Syms; Get*/Set*-family opcodes carry a
// raw rsym.ID directly.
func symbolOperand(op rvm.Op, inst rirep.Inst, irep *rirep.IREP, symbols *rsym.Table) string {
	switch op {
	case rvm.OpSend, rvm.OpSendB, rvm.OpFSend, rvm.OpMethod, rvm.OpOClass, rvm.OpClass, rvm.OpModule:
		if int(inst.B) >= 0 && int(inst.B) < len(irep.Syms) {
			return symbols.Name(irep.Syms[inst.B])
		}
	case rvm.OpGetIV, rvm.OpSetIV, rvm.OpGetCV, rvm.OpSetCV, rvm.OpGetGlobal, rvm.OpSetGlobal,
		rvm.OpGetConst, rvm.OpSetConst, rvm.OpLoadSym:
		return symbols.Name(rsym.ID(inst.B))
	case rvm.OpGetMConst, rvm.OpSetMConst:
		return symbols.Name(rsym.ID(inst.C))
	}
	return ""
}

// String returns irep's listing as a plain (uncolored-when-not-a-tty,
// per fatih/color's own NoColor detection) string, useful for tests
// and non-writer callers.
func String(irep *rirep.IREP, symbols *rsym.Table) string {
	var sb strings.Builder
	Write(&sb, irep, symbols)
	return sb.String()
}

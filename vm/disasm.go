package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble renders an Image's code section as one mnemonic per line,
// in the spirit of the teacher's PrintProgram/Instruction.String() — a
// plain textual view good enough for a human checking what actually got
// loaded, not a general-purpose decompiler.
func Disassemble(img *Image) string {
	var b strings.Builder
	code := img.Code
	pc := 0
	readInt := func() int32 {
		if pc+4 > len(code) {
			pc = len(code)
			return 0
		}
		v := int32(binary.LittleEndian.Uint32(code[pc : pc+4]))
		pc += 4
		return v
	}
	readByte := func() byte {
		if pc >= len(code) {
			return 0
		}
		v := code[pc]
		pc++
		return v
	}

	for pc < len(code) {
		offset := pc
		h, l := splitOpcode(readByte())
		fmt.Fprintf(&b, "%6d: ", offset)

		switch h {
		case famBinop:
			fmt.Fprintln(&b, binopName(l))
		case famUnary:
			disasmUnary(&b, l, readInt)
		case famLD:
			fmt.Fprintf(&b, "LD %s %d\n", memKind(l), readInt())
		case famLDA:
			fmt.Fprintf(&b, "LDA %s %d\n", memKind(l), readInt())
		case famST:
			fmt.Fprintf(&b, "ST %s %d\n", memKind(l), readInt())
		case famTwoArg:
			disasmTwoArg(&b, l, readInt, readByte, img)
		case famPatt:
			fmt.Fprintln(&b, pattName(l))
		case famBuiltin:
			disasmBuiltin(&b, l, readInt)
		case famStop:
			fmt.Fprintln(&b, "STOP")
		default:
			fmt.Fprintln(&b, "?unknown?")
		}
	}
	return b.String()
}

func binopName(l byte) string {
	switch l {
	case binopAdd:
		return "ADD"
	case binopSub:
		return "SUB"
	case binopMul:
		return "MUL"
	case binopDiv:
		return "DIV"
	case binopMod:
		return "MOD"
	case binopLt:
		return "LT"
	case binopLe:
		return "LE"
	case binopGt:
		return "GT"
	case binopGe:
		return "GE"
	case binopEq:
		return "EQ"
	case binopNe:
		return "NE"
	case binopAnd:
		return "AND"
	case binopOr:
		return "OR"
	default:
		return "?binop?"
	}
}

func pattName(l byte) string {
	switch l {
	case pEqStr:
		return "PATT =str"
	case pString:
		return "PATT #string"
	case pArray:
		return "PATT #array"
	case pSexp:
		return "PATT #sexp"
	case pRef:
		return "PATT #ref"
	case pVal:
		return "PATT #val"
	case pFun:
		return "PATT #fun"
	default:
		return "PATT ?"
	}
}

func disasmUnary(b *strings.Builder, l byte, readInt func() int32) {
	switch l {
	case uConst:
		fmt.Fprintf(b, "CONST %d\n", readInt())
	case uString:
		fmt.Fprintf(b, "STRING @%d\n", readInt())
	case uSexp:
		off := readInt()
		n := readInt()
		fmt.Fprintf(b, "SEXP @%d %d\n", off, n)
	case uSti:
		fmt.Fprintln(b, "STI")
	case uSta:
		fmt.Fprintln(b, "STA")
	case uJmp:
		fmt.Fprintf(b, "JMP %d\n", readInt())
	case uEnd:
		fmt.Fprintln(b, "END")
	case uRet:
		fmt.Fprintln(b, "RET")
	case uDrop:
		fmt.Fprintln(b, "DROP")
	case uDup:
		fmt.Fprintln(b, "DUP")
	case uSwap:
		fmt.Fprintln(b, "SWAP")
	case uElem:
		fmt.Fprintln(b, "ELEM")
	default:
		fmt.Fprintln(b, "?unary?")
	}
}

func disasmTwoArg(b *strings.Builder, l byte, readInt func() int32, readByte func() byte, img *Image) {
	switch l {
	case tCjmpz:
		fmt.Fprintf(b, "CJMPz %d\n", readInt())
	case tCjmpnz:
		fmt.Fprintf(b, "CJMPnz %d\n", readInt())
	case tBegin:
		n, m := readInt(), readInt()
		fmt.Fprintf(b, "BEGIN %d %d\n", n, m)
	case tCbegin:
		n, m := readInt(), readInt()
		fmt.Fprintf(b, "CBEGIN %d %d\n", n, m)
	case tClosure:
		entry := readInt()
		k := readInt()
		fmt.Fprintf(b, "CLOSURE %d %d", entry, k)
		for i := int32(0); i < k; i++ {
			kind := memKind(readByte())
			idx := readInt()
			fmt.Fprintf(b, " %s:%d", kind, idx)
		}
		fmt.Fprintln(b)
	case tCallc:
		fmt.Fprintf(b, "CALLC %d\n", readInt())
	case tCall:
		addr, n := readInt(), readInt()
		fmt.Fprintf(b, "CALL %d %d\n", addr, n)
	case tTag:
		off, n := readInt(), readInt()
		fmt.Fprintf(b, "TAG @%d(%q) %d\n", off, img.String(off), n)
	case tArray:
		fmt.Fprintf(b, "ARRAY %d\n", readInt())
	case tFail:
		line, col := readInt(), readInt()
		fmt.Fprintf(b, "FAIL %d:%d\n", line, col)
	case tLine:
		fmt.Fprintf(b, "LINE %d\n", readInt())
	default:
		fmt.Fprintln(b, "?two-arg?")
	}
}

func disasmBuiltin(b *strings.Builder, l byte, readInt func() int32) {
	switch l {
	case bRead:
		fmt.Fprintln(b, "CALL Lread")
	case bWrite:
		fmt.Fprintln(b, "CALL Lwrite")
	case bLength:
		fmt.Fprintln(b, "CALL Llength")
	case bString:
		fmt.Fprintln(b, "CALL Lstring")
	case bArray:
		fmt.Fprintf(b, "CALL Barray %d\n", readInt())
	default:
		fmt.Fprintln(b, "?builtin?")
	}
}

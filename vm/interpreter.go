package vm

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Engine is the stack-machine interpreter core (spec.md §2-§4). One Engine
// runs exactly one program to completion or fault; it owns the managed
// stack, the heap, and the handful of pointers the frame discipline needs.
// There is no concurrency here (spec.md §5 Non-goals) — a single goroutine
// drives the whole dispatch loop, the way the teacher's execInstructions
// drives its register machine.
type Engine struct {
	stack *Stack
	heap  *Heap
	image *Image

	pc          uint32
	globalsBase int
	fr          frame

	in  *bufio.Reader
	out io.Writer
}

// NewEngine builds an interpreter over a loaded image. stackWords <= 0 uses
// the default capacity (spec.md §3's "e.g. 512K slots").
func NewEngine(img *Image, stackWords int, in io.Reader, out io.Writer) *Engine {
	e := &Engine{
		stack: NewStack(stackWords),
		image: img,
		in:    bufio.NewReader(in),
		out:   out,
	}
	e.heap = NewHeap(e.stack.Roots)

	for i := int32(0); i < img.GlobalAreaSize; i++ {
		e.stack.Push(Box(0))
	}
	e.globalsBase = e.stack.Top()

	// Sentinel "caller" return address so the outermost BEGIN (spec.md's
	// implicit top-level frame) has a well-formed retaddr/argp to read,
	// and fr.fp == 0 so its own END recognizes "no previous frame".
	e.stack.Push(encodeReturnAddr(0, false))
	e.fr = frame{}

	return e
}

// Result is what Run reports back to the caller once the program halts.
type Result struct {
	Value Value
	Steps int64
}

// Run executes from the image's entry point (code offset 0) until END
// unwinds the outermost frame or STOP executes. Any fatal fault raised by
// failAt, or any panic escaping the dispatch loop (stack over/underflow,
// a bad heap handle), is recovered here and turned into an error — the
// same division of labor as the teacher's getDefaultRecoverFuncForVM: the
// hot loop panics, one place at the top turns that into a clean return.
func (e *Engine) Run() (result Result, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch v := r.(type) {
		case *faultError:
			err = v
		case *FailureError:
			err = v
		case error:
			err = &faultError{cause: v, offset: e.pc}
		default:
			err = &faultError{cause: errIllegalOperation, offset: e.pc}
		}
	}()

	e.pc = 0
	steps := int64(0)
	for {
		halted := e.step()
		steps++
		if halted {
			return Result{Value: e.stack.Peek(), Steps: steps}, nil
		}
	}
}

func (e *Engine) fetchByte() byte {
	if int(e.pc) >= len(e.image.Code) {
		failAt(e.pc, errProgramFinished)
	}
	b := e.image.Code[e.pc]
	e.pc++
	return b
}

func (e *Engine) fetchInt32() int32 {
	if int(e.pc)+4 > len(e.image.Code) {
		failAt(e.pc, errProgramFinished)
	}
	v := int32(binary.LittleEndian.Uint32(e.image.Code[e.pc : e.pc+4]))
	e.pc += 4
	return v
}

// step decodes and executes exactly one instruction, reporting whether the
// program has halted (via the outermost END or STOP).
func (e *Engine) step() (halted bool) {
	opcodeOffset := e.pc
	h, l := splitOpcode(e.fetchByte())

	switch h {
	case famBinop:
		e.execBinop(l, opcodeOffset)
	case famUnary:
		return e.execUnary(l, opcodeOffset)
	case famLD:
		v := *e.envSlot(memKind(l), e.fetchInt32())
		e.stack.Push(v)
	case famLDA:
		idx := e.envIndex(memKind(l), e.fetchInt32())
		e.stack.Push(MakeLValue(idx))
	case famST:
		v := e.stack.Peek()
		*e.envSlot(memKind(l), e.fetchInt32()) = v
	case famTwoArg:
		return e.execTwoArg(l, opcodeOffset)
	case famPatt:
		e.execPatt(l, opcodeOffset)
	case famBuiltin:
		e.execBuiltin(l, opcodeOffset)
	case famStop:
		return true
	default:
		failAt(opcodeOffset, errUnknownInstruction)
	}
	return false
}

func (e *Engine) execBinop(sub byte, offset uint32) {
	y := Unbox(e.stack.Pop())
	x := Unbox(e.stack.Pop())
	var z int32
	switch sub {
	case binopAdd:
		z = x + y
	case binopSub:
		z = x - y
	case binopMul:
		z = x * y
	case binopDiv:
		if y == 0 {
			failAt(offset, errDivisionByZero)
		}
		z = x / y
	case binopMod:
		if y == 0 {
			failAt(offset, errDivisionByZero)
		}
		z = x % y
	case binopLt:
		z = boolInt(x < y)
	case binopLe:
		z = boolInt(x <= y)
	case binopGt:
		z = boolInt(x > y)
	case binopGe:
		z = boolInt(x >= y)
	case binopEq:
		z = boolInt(x == y)
	case binopNe:
		z = boolInt(x != y)
	case binopAnd:
		z = boolInt(x != 0 && y != 0)
	case binopOr:
		z = boolInt(x != 0 || y != 0)
	default:
		failAt(offset, errUnknownInstruction)
	}
	e.stack.Push(Box(z))
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (e *Engine) execUnary(sub byte, offset uint32) (halted bool) {
	switch sub {
	case uConst:
		e.stack.Push(Box(e.fetchInt32()))
	case uString:
		off := e.fetchInt32()
		e.stack.Push(e.heap.AllocString([]byte(e.image.String(off))))
	case uSexp:
		off := e.fetchInt32()
		n := int(e.fetchInt32())
		elems := e.peekN(n)
		subTag := Unbox(LtagHash(e.image.String(off)))
		v := e.heap.AllocSexp(subTag, elems)
		e.stack.PopN(n)
		e.stack.Push(v)
	case uSti:
		failAt(offset, errUnsupportedOpcode)
	case uSta:
		v := e.stack.Pop()
		idx := e.stack.Pop()
		if IsLValue(idx) {
			*e.stack.At(LValueIndex(idx)) = v
			e.stack.Push(v)
		} else {
			container := e.stack.Pop()
			e.stack.Push(e.Bsta(container, idx, v, offset))
		}
	case uJmp:
		e.pc = uint32(e.fetchInt32())
	case uEnd:
		return e.endFrame()
	case uRet:
		failAt(offset, errUnsupportedOpcode)
	case uDrop:
		e.stack.Pop()
	case uDup:
		e.stack.Push(e.stack.Peek())
	case uSwap:
		failAt(offset, errUnsupportedOpcode)
	case uElem:
		idx := e.stack.Pop()
		container := e.stack.Pop()
		e.stack.Push(e.Belem(container, idx, offset))
	default:
		failAt(offset, errUnknownInstruction)
	}
	return false
}

func (e *Engine) execTwoArg(sub byte, offset uint32) (halted bool) {
	switch sub {
	case tCjmpz:
		target := e.fetchInt32()
		if Unbox(e.stack.Pop()) == 0 {
			e.pc = uint32(target)
		}
	case tCjmpnz:
		target := e.fetchInt32()
		if Unbox(e.stack.Pop()) != 0 {
			e.pc = uint32(target)
		}
	case tBegin:
		nargs := e.fetchInt32()
		nlocals := e.fetchInt32()
		e.beginFrame(nargs, nlocals)
	case tCbegin:
		nargs := e.fetchInt32()
		nlocals := e.fetchInt32()
		e.beginFrame(nargs, nlocals)
	case tClosure:
		entry := uint32(e.fetchInt32())
		k := int(e.fetchInt32())
		capt := make([]Value, k)
		for i := 0; i < k; i++ {
			kind := memKind(e.fetchByte())
			idx := e.fetchInt32()
			capt[i] = *e.envSlot(kind, idx)
		}
		e.stack.Push(e.heap.AllocClosure(entry, capt))
	case tCallc:
		nargs := int(e.fetchInt32())
		ref := *e.stack.At(e.stack.Top() + nargs)
		obj := e.heap.obj(ref, offset)
		if obj.tag != TagClosure {
			failAt(offset, errIllegalOperation)
		}
		e.stack.Push(encodeReturnAddr(e.pc, true))
		e.pc = obj.entry
	case tCall:
		addr := uint32(e.fetchInt32())
		_ = e.fetchInt32() // nargs: informational only, matches the caller's own bookkeeping
		e.stack.Push(encodeReturnAddr(e.pc, false))
		e.pc = addr
	case tTag:
		off := e.fetchInt32()
		n := e.fetchInt32()
		x := e.stack.Pop()
		e.stack.Push(e.Btag(x, e.image.String(off), n))
	case tArray:
		n := e.fetchInt32()
		x := e.stack.Pop()
		e.stack.Push(e.BarrayPatt(x, n))
	case tFail:
		line := e.fetchInt32()
		col := e.fetchInt32()
		panic(&FailureError{Line: line, Col: col})
	case tLine:
		e.fetchInt32()
	default:
		failAt(offset, errUnknownInstruction)
	}
	return false
}

func (e *Engine) execPatt(sub byte, offset uint32) {
	switch sub {
	case pEqStr:
		b := e.stack.Pop()
		a := e.stack.Pop()
		e.stack.Push(Box(boolInt(e.stringEquals(a, b, offset))))
	case pString:
		x := e.stack.Pop()
		e.stack.Push(Box(boolInt(IsReference(x) && e.heap.obj(x, offset).tag == TagString)))
	case pArray:
		x := e.stack.Pop()
		e.stack.Push(Box(boolInt(IsReference(x) && e.heap.obj(x, offset).tag == TagArray)))
	case pSexp:
		x := e.stack.Pop()
		e.stack.Push(Box(boolInt(IsReference(x) && e.heap.obj(x, offset).tag == TagSexp)))
	case pRef:
		x := e.stack.Pop()
		e.stack.Push(Box(boolInt(IsReference(x))))
	case pVal:
		x := e.stack.Pop()
		e.stack.Push(Box(boolInt(IsBoxed(x) && !IsLValue(x))))
	case pFun:
		x := e.stack.Pop()
		e.stack.Push(Box(boolInt(IsReference(x) && e.heap.obj(x, offset).tag == TagClosure)))
	default:
		failAt(offset, errUnknownInstruction)
	}
}

func (e *Engine) execBuiltin(sub byte, offset uint32) {
	switch sub {
	case bRead:
		e.stack.Push(e.Lread())
	case bWrite:
		e.stack.Push(e.Lwrite(e.stack.Pop()))
	case bLength:
		e.stack.Push(Box(int32(e.heap.Len(e.stack.Pop(), offset))))
	case bString:
		e.stack.Push(e.Lstring(e.stack.Pop(), offset))
	case bArray:
		n := int(e.fetchInt32())
		elems := e.peekN(n)
		v := e.heap.AllocArray(elems)
		e.stack.PopN(n)
		e.stack.Push(v)
	default:
		failAt(offset, errUnknownInstruction)
	}
}

// peekN reads the top n values off the operand stack without removing
// them, restoring source order (the top of the stack was the
// last-pushed/last element, matching spec.md §4.3's "top element becomes
// last" for SEXP/ARRAY construction). SEXP and ARRAY construction use this
// instead of an eager pop because the elements must still live on the
// managed stack — and so still be visible to Roots() — while the
// allocation call below them runs; AllocSexp/AllocArray can trigger a GC
// pass via heap.maybeCollect, and an element popped before the allocator
// runs would be reachable only from this Go slice, which the collector
// never scans (spec.md §5: "every value that must survive an allocation
// must already live on the managed stack at the point the allocator
// runs"). Callers pop the n slots themselves once the allocation is done.
func (e *Engine) peekN(n int) []Value {
	vals := make([]Value, n)
	for i := 0; i < n; i++ {
		vals[n-1-i] = *e.stack.TopN(i)
	}
	return vals
}

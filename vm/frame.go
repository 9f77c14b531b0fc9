package vm

// This file implements the call/frame discipline of spec.md §3 ("Frame
// layout") and §4.3's BEGIN/CBEGIN/END/CALL/CALLC. The six frame-header
// words spec.md lists are stored on the managed stack exactly where it
// says; everything here just turns that layout into index arithmetic
// anchored on the frame pointer, the way the teacher's vm.go turns its
// register/stack-pointer layout into pushStack/popStack arithmetic.
//
// Environments are indexed in two directions. G(i) and L(i) count upward
// in stack-index terms from the lowest-indexed word of their region (the
// last one pushed). A(i) counts downward from A(0), the first-pushed
// argument, which sits at the highest index of the argument region.
// Frame pointer FP is the index of the previous-frame-pointer word itself;
// FP+1 is the boxed local count, FP+2 the boxed argument count, FP+3 the
// first local, and so on, matching spec.md §3's "From it: ..." paragraph.
//
// spec.md's BEGIN text and its CALLC text describe the closure pointer's
// position in the argument region slightly differently ("first value just
// above the return address" vs. "peek at depth nargs, arguments sit above
// it"). CALLC's description is the more operationally precise one (a
// concrete peek-at-a-known-depth), so this implementation anchors on it:
// the closure reference occupies the word immediately below (one address
// above in index terms) the deepest argument, A(0). This is recorded as an
// Open Question resolution in DESIGN.md.
type frame struct {
	fp         int
	argBase    int // A(i) = argBase - i
	localsBase int // L(i) = localsBase + i
	nargs      int
	nlocals    int
	closed     []Value // nil unless this frame was entered via CALLC
}

// retAddrIndex is the stack slot holding this frame's return address,
// i.e. spec.md's "FP+3+locals_count".
func (f *frame) retAddrIndex() int { return f.localsBase + f.nlocals }

// closureIndex is where the active closure reference sits for this frame,
// valid only when f.closed != nil.
func (f *frame) closureIndex() int { return f.argBase + 1 }

// beginFrame implements BEGIN/CBEGIN (spec.md §4.3: "CBEGIN: identical to
// BEGIN"). The caller has already pushed nargs arguments and a return
// address; this allocates nlocals zero-boxed locals and the three
// remaining header words, and resolves the closed-over environment if the
// active call was made through CALLC.
func (e *Engine) beginFrame(nargs, nlocals int32) {
	n, m := int(nargs), int(nlocals)
	retIdx := e.stack.Top()
	_, isClosure := decodeReturnAddr(*e.stack.At(retIdx))

	argBase := retIdx + n

	var closed []Value
	if isClosure {
		ref := *e.stack.At(argBase + 1)
		obj := e.heap.obj(ref, e.pc)
		if obj.tag != TagClosure {
			failAt(e.pc, errIllegalOperation)
		}
		closed = obj.capt
	}

	for i := 0; i < m; i++ {
		e.stack.Push(Box(0))
	}
	localsBase := e.stack.Top()

	e.stack.Push(Box(int32(n)))
	e.stack.Push(Box(int32(m)))
	e.stack.Push(encodeFramePointer(e.fr.fp))

	e.fr = frame{
		fp:         e.stack.Top(),
		argBase:    argBase,
		localsBase: localsBase,
		nargs:      n,
		nlocals:    m,
		closed:     closed,
	}
}

// endFrame implements END (spec.md §4.3). It pops the return value, checks
// whether the frame being left is the outermost one, and otherwise unwinds
// exactly frame_size words and restores the caller's environment pointers
// by re-deriving them from the header the caller's own BEGIN left behind.
func (e *Engine) endFrame() (halt bool) {
	retval := e.stack.Pop()

	prevFP := decodeFramePointer(*e.stack.At(e.fr.fp))
	if prevFP == 0 {
		e.stack.Push(retval)
		return true
	}

	retIdx := e.fr.retAddrIndex()
	offset, wasClosure := decodeReturnAddr(*e.stack.At(retIdx))

	popCount := e.fr.nlocals + e.fr.nargs + 4
	if wasClosure {
		popCount++
	}
	e.stack.PopN(popCount)

	e.pc = offset
	e.fr.fp = prevFP
	e.fr.nlocals = int(Unbox(*e.stack.At(e.fr.fp + 1)))
	e.fr.nargs = int(Unbox(*e.stack.At(e.fr.fp + 2)))
	e.fr.localsBase = e.fr.fp + 3
	newRetIdx := e.fr.retAddrIndex()
	e.fr.argBase = newRetIdx + e.fr.nargs

	if _, stillClosure := decodeReturnAddr(*e.stack.At(newRetIdx)); stillClosure {
		ref := *e.stack.At(e.fr.closureIndex())
		e.fr.closed = e.heap.obj(ref, e.pc).capt
	} else {
		e.fr.closed = nil
	}

	e.stack.Push(retval)
	return false
}

// envSlot resolves a variable reference for LD/ST: G/L/A slots live on the
// managed stack, C slots live inside the active closure's capture list.
func (e *Engine) envSlot(kind memKind, idx int32) *Value {
	i := int(idx)
	switch kind {
	case memG:
		if i < 0 || i >= int(e.image.GlobalAreaSize) {
			failAt(e.pc, errIllegalOperation)
		}
		return e.stack.At(e.globalsBase + i)
	case memL:
		if i < 0 || i >= e.fr.nlocals {
			failAt(e.pc, errIllegalOperation)
		}
		return e.stack.At(e.fr.localsBase + i)
	case memA:
		if i < 0 || i >= e.fr.nargs {
			failAt(e.pc, errIllegalOperation)
		}
		return e.stack.At(e.fr.argBase - i)
	case memC:
		if e.fr.closed == nil || i < 0 || i >= len(e.fr.closed) {
			failAt(e.pc, errIllegalOperation)
		}
		return &e.fr.closed[i]
	default:
		failAt(e.pc, errUnknownInstruction)
		return nil
	}
}

// envIndex resolves the absolute managed-stack index of a variable for
// LDA. Only G/L/A slots reside on the managed stack (spec.md §9: "Only
// valid for slots residing in the managed stack"); C is a fatal error.
func (e *Engine) envIndex(kind memKind, idx int32) int {
	i := int(idx)
	switch kind {
	case memG:
		if i < 0 || i >= int(e.image.GlobalAreaSize) {
			failAt(e.pc, errIllegalOperation)
		}
		return e.globalsBase + i
	case memL:
		if i < 0 || i >= e.fr.nlocals {
			failAt(e.pc, errIllegalOperation)
		}
		return e.fr.localsBase + i
	case memA:
		if i < 0 || i >= e.fr.nargs {
			failAt(e.pc, errIllegalOperation)
		}
		return e.fr.argBase - i
	default:
		failAt(e.pc, errIllegalOperation)
		return 0
	}
}

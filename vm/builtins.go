package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// This file implements the runtime-support surface spec.md §4.3 assumes
// without spelling out: the five BUILTIN opcodes (Lread/Lwrite/Llength/
// Lstring/Barray), and the polymorphic ELEM/STA/TAG/ARRAY-pattern helpers
// the reference runtime calls Belem/Bsta/Btag/Barray_patt. Grounded on the
// same split the teacher uses for its own builtin-device handlers: each
// operation is one small method on Engine, dispatched from the opcode
// switch in interpreter.go.

// Lread reads one decimal integer from standard input, per spec.md §4.3's
// BUILTIN 0.
func (e *Engine) Lread() Value {
	var n int32
	for {
		b, err := e.in.ReadByte()
		if err != nil {
			return Box(0)
		}
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		e.in.UnreadByte()
		break
	}
	tok := &strings.Builder{}
	for {
		b, err := e.in.ReadByte()
		if err != nil {
			break
		}
		if (b >= '0' && b <= '9') || b == '-' || b == '+' {
			tok.WriteByte(b)
			continue
		}
		e.in.UnreadByte()
		break
	}
	if v, err := strconv.ParseInt(tok.String(), 10, 32); err == nil {
		n = int32(v)
	}
	return Box(n)
}

// Lwrite prints x as a decimal integer followed by a newline and returns
// the conventional zero result, per spec.md §4.3's BUILTIN 1.
func (e *Engine) Lwrite(x Value) Value {
	fmt.Fprintf(e.out, "%d\n", Unbox(x))
	return Box(0)
}

// Lstring renders any value as a fresh heap string, per spec.md §4.3's
// BUILTIN 3. Integers render as decimal; strings are duplicated verbatim;
// arrays and s-expressions render structurally; closures render opaquely,
// since spec.md leaves the exact notation unspecified beyond "a string
// representation of any value".
func (e *Engine) Lstring(x Value, offset uint32) Value {
	return e.heap.AllocString([]byte(e.render(x, offset)))
}

func (e *Engine) render(x Value, offset uint32) string {
	if IsBoxed(x) {
		return strconv.Itoa(int(Unbox(x)))
	}
	o := e.heap.obj(x, offset)
	switch o.tag {
	case TagString:
		return string(o.bytes)
	case TagArray:
		parts := make([]string, len(o.elems))
		for i, el := range o.elems {
			parts[i] = e.render(el, offset)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TagSexp:
		parts := make([]string, len(o.elems))
		for i, el := range o.elems {
			parts[i] = e.render(el, offset)
		}
		if len(parts) == 0 {
			return fmt.Sprintf("<sexp:%d>", o.subTag)
		}
		return fmt.Sprintf("<sexp:%d> (%s)", o.subTag, strings.Join(parts, ", "))
	case TagClosure:
		return "<closure>"
	default:
		return ""
	}
}

func (e *Engine) stringEquals(a, b Value, offset uint32) bool {
	ao, bo := e.heap.obj(a, offset), e.heap.obj(b, offset)
	if ao.tag != TagString || bo.tag != TagString {
		failAt(offset, errIllegalOperation)
	}
	return string(ao.bytes) == string(bo.bytes)
}

// Belem implements ELEM's polymorphic element access (spec.md §4.3): index
// into an array, pluck a byte out of a string (re-boxed as an integer), or
// index an s-expression's payload.
func (e *Engine) Belem(container, index Value, offset uint32) Value {
	i := int(Unbox(index))
	o := e.heap.obj(container, offset)
	switch o.tag {
	case TagArray, TagSexp:
		if i < 0 || i >= len(o.elems) {
			failAt(offset, errSegmentationFault)
		}
		return o.elems[i]
	case TagString:
		if i < 0 || i >= len(o.bytes) {
			failAt(offset, errSegmentationFault)
		}
		return Box(int32(o.bytes[i]))
	default:
		failAt(offset, errIllegalOperation)
		return 0
	}
}

// Bsta implements STA's polymorphic store (spec.md §4.3) for the
// non-LValue case: write into an array/s-expression slot or a string byte,
// returning the stored value.
func (e *Engine) Bsta(container, index, value Value, offset uint32) Value {
	i := int(Unbox(index))
	o := e.heap.obj(container, offset)
	switch o.tag {
	case TagArray, TagSexp:
		if i < 0 || i >= len(o.elems) {
			failAt(offset, errSegmentationFault)
		}
		o.elems[i] = value
	case TagString:
		if i < 0 || i >= len(o.bytes) {
			failAt(offset, errSegmentationFault)
		}
		o.bytes[i] = byte(Unbox(value))
	default:
		failAt(offset, errIllegalOperation)
	}
	return value
}

// Btag implements the TAG opcode: true iff x is an s-expression carrying
// the named sub-tag and exactly n elements.
func (e *Engine) Btag(x Value, name string, n int32) Value {
	if !IsReference(x) {
		return Box(0)
	}
	o := e.heap.objOrNil(x)
	if o == nil || o.tag != TagSexp {
		return Box(0)
	}
	want := Unbox(LtagHash(name))
	return Box(boolInt(o.subTag == want && int32(len(o.elems)) == n))
}

// BarrayPatt implements the ARRAY pattern test: true iff x is an array of
// exactly n elements.
func (e *Engine) BarrayPatt(x Value, n int32) Value {
	if !IsReference(x) {
		return Box(0)
	}
	o := e.heap.objOrNil(x)
	if o == nil || o.tag != TagArray {
		return Box(0)
	}
	return Box(boolInt(int32(len(o.elems)) == n))
}

// LtagHash reproduces the reference runtime's LtagHash: a boxed integer
// derived from a sub-tag's source name, used both to construct an
// s-expression's sub-tag (SEXP) and to test it (TAG). Any stable injective
// function would do; this one follows the original's accumulating
// multiply-and-add over the name's bytes (see SPEC_FULL.md §6.7).
func LtagHash(name string) Value {
	var h uint32 = 0
	for i := 0; i < len(name); i++ {
		h = h*263 + uint32(name[i])
	}
	return Box(int32(h & 0x3FFFFFFF))
}

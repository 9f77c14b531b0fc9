package vm

import "testing"

func assert(t *testing.T, cond bool, format string, args ...interface{}) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestBoxUnboxRoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, 42, 1 << 20, -(1 << 20), 1<<30 - 1, -(1 << 30)}
	for _, n := range cases {
		v := Box(n)
		assert(t, IsBoxed(v), "Box(%d) should carry the boxed-integer tag", n)
		assert(t, Unbox(v) == n, "Unbox(Box(%d)) = %d, want %d", n, Unbox(v), n)
	}
}

func TestReferenceTagIsDisjointFromBoxed(t *testing.T) {
	ref := Value(42 << 1)
	assert(t, IsReference(ref), "even-valued word should be a reference")
	assert(t, !IsBoxed(ref), "reference must not also read as boxed")
}

func TestLValueRoundTrip(t *testing.T) {
	for _, idx := range []int{0, 1, 4096, 1<<20 - 1} {
		lv := MakeLValue(idx)
		assert(t, IsLValue(lv), "MakeLValue(%d) should be recognized as an LValue", idx)
		assert(t, !IsReference(lv), "an LValue must not read as a heap reference")
		assert(t, LValueIndex(lv) == idx, "LValueIndex(MakeLValue(%d)) = %d", idx, LValueIndex(lv))
	}
}

func TestReturnAddressRoundTrip(t *testing.T) {
	off, closure := decodeReturnAddr(encodeReturnAddr(0x1234, false))
	assert(t, off == 0x1234 && !closure, "plain CALL return address round-trip failed: %d %v", off, closure)

	off, closure = decodeReturnAddr(encodeReturnAddr(0x1234, true))
	assert(t, off == 0x1234 && closure, "CALLC return address round-trip failed: %d %v", off, closure)
}

func TestFramePointerSentinel(t *testing.T) {
	assert(t, decodeFramePointer(encodeFramePointer(0)) == 0, "frame pointer 0 must decode back to the halt sentinel")
	assert(t, decodeFramePointer(encodeFramePointer(77)) == 77, "frame pointer round-trip failed")
}

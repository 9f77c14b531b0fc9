package vm

import "testing"

func TestGCReclaimsUnreachableObjects(t *testing.T) {
	var root Value
	h := NewHeap(func() []Value { return []Value{root} })

	root = h.AllocString([]byte("kept"))
	for i := 0; i < 10_000; i++ {
		h.AllocString([]byte("garbage"))
	}
	h.collect()

	assert(t, h.obj(root, 0).tag == TagString, "rooted string must survive collection")
	assert(t, string(h.obj(root, 0).bytes) == "kept", "surviving string must keep its content")
	assert(t, h.liveCount() == 1, "only the rooted object should survive, got %d live", h.liveCount())
}

func TestGCTracesThroughArray(t *testing.T) {
	var root Value
	h := NewHeap(func() []Value { return []Value{root} })

	inner := h.AllocString([]byte("inner"))
	root = h.AllocArray([]Value{inner, Box(1)})
	for i := 0; i < 10_000; i++ {
		h.AllocString([]byte("garbage"))
	}
	h.collect()

	assert(t, h.liveCount() == 2, "array and its string element should both survive, got %d", h.liveCount())
	arr := h.obj(root, 0)
	assert(t, h.obj(arr.elems[0], 0).tag == TagString, "array's element reference must still resolve")
}

func TestGCTracesThroughClosureCaptures(t *testing.T) {
	var root Value
	h := NewHeap(func() []Value { return []Value{root} })

	captured := h.AllocString([]byte("captured"))
	root = h.AllocClosure(0x100, []Value{captured})
	for i := 0; i < 10_000; i++ {
		h.AllocString([]byte("garbage"))
	}
	h.collect()

	assert(t, h.liveCount() == 2, "closure and its capture should both survive, got %d", h.liveCount())
}

func TestHeapObjFaultsOnStaleHandle(t *testing.T) {
	h := NewHeap(func() []Value { return nil })
	ref := h.AllocString([]byte("x"))
	h.collect() // nothing rooted, so ref is now a stale handle

	defer func() {
		r := recover()
		fe, ok := r.(*faultError)
		assert(t, ok && fe.cause == errSegmentationFault, "resolving a collected handle should fault with errSegmentationFault, got %v", r)
	}()
	h.obj(ref, 0)
}

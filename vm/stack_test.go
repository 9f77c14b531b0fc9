package vm

import "testing"

func TestStackPushPopBalance(t *testing.T) {
	s := NewStack(16)
	start := s.Depth()
	s.Push(Box(1))
	s.Push(Box(2))
	assert(t, s.Depth() == start+2, "depth should grow by 2 after two pushes")
	assert(t, s.Pop() == Box(2), "pop should return the most recently pushed word")
	assert(t, s.Pop() == Box(1), "pop should return words in LIFO order")
	assert(t, s.Depth() == start, "depth should return to baseline after matching pops")
}

func TestStackOverflow(t *testing.T) {
	s := NewStack(2)
	s.Push(Box(1))
	s.Push(Box(2))
	defer func() {
		r := recover()
		assert(t, r == errStackOverflow, "expected errStackOverflow, got %v", r)
	}()
	s.Push(Box(3))
}

func TestStackUnderflow(t *testing.T) {
	s := NewStack(2)
	defer func() {
		r := recover()
		assert(t, r == errStackUnderflow, "expected errStackUnderflow, got %v", r)
	}()
	s.Pop()
}

func TestStackAtIndexing(t *testing.T) {
	s := NewStack(8)
	s.Push(Box(10))
	s.Push(Box(20))
	// Top() is the most recent push (20); Top()+1 is the one below it (10).
	assert(t, *s.At(s.Top()) == Box(20), "At(Top()) should be the most recent push")
	assert(t, *s.At(s.Top()+1) == Box(10), "At(Top()+1) should be the word beneath it")
}

func TestPopNUnwindsExactly(t *testing.T) {
	s := NewStack(8)
	base := s.Depth()
	s.Push(Box(1))
	s.Push(Box(2))
	s.Push(Box(3))
	s.PopN(3)
	assert(t, s.Depth() == base, "PopN(3) after 3 pushes should restore baseline depth")
}

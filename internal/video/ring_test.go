// File: internal/video/ring_test.go
package video

import "testing"

func TestRingBufferRoundsUpToPowerOfTwo(t *testing.T) {
	r := newRingBuffer[int](3)
	if r.cap() != 4 {
		t.Fatalf("cap = %d, want 4", r.cap())
	}
}

func TestRingBufferEnqueueDequeueOrder(t *testing.T) {
	r := newRingBuffer[int](4)
	for i := 1; i <= 4; i++ {
		if !r.enqueue(i) {
			t.Fatalf("enqueue(%d) failed unexpectedly", i)
		}
	}
	if r.enqueue(5) {
		t.Fatal("enqueue into full ring should fail")
	}
	for i := 1; i <= 4; i++ {
		v, ok := r.dequeue()
		if !ok || v != i {
			t.Fatalf("dequeue = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
	if _, ok := r.dequeue(); ok {
		t.Fatal("dequeue from empty ring should fail")
	}
}

func TestRingBufferDropOldestOnOverflow(t *testing.T) {
	r := newRingBuffer[[]byte](2)
	r.enqueue([]byte("a"))
	r.enqueue([]byte("b"))
	if r.enqueue([]byte("c")) {
		t.Fatal("enqueue into full ring should fail, caller must drop-oldest explicitly")
	}
	r.dequeue()
	if !r.enqueue([]byte("c")) {
		t.Fatal("enqueue after drop-oldest should succeed")
	}
	v, _ := r.dequeue()
	if string(v) != "b" {
		t.Fatalf("dequeue = %q, want %q", v, "b")
	}
	v, _ = r.dequeue()
	if string(v) != "c" {
		t.Fatalf("dequeue = %q, want %q", v, "c")
	}
}

func TestRingBufferLen(t *testing.T) {
	r := newRingBuffer[int](8)
	if r.len() != 0 {
		t.Fatalf("len = %d, want 0", r.len())
	}
	r.enqueue(1)
	r.enqueue(2)
	if r.len() != 2 {
		t.Fatalf("len = %d, want 2", r.len())
	}
	r.dequeue()
	if r.len() != 1 {
		t.Fatalf("len = %d, want 1", r.len())
	}
}

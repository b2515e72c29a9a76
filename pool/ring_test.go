package pool_test

import (
	"math/rand"
	"testing"

	"github.com/momentics/tsrelay/pool"
)

func TestRingBuffer_FIFO(t *testing.T) {
	r := pool.NewRingBuffer[int](4)
	for i := 1; i <= 3; i++ {
		if r.Push(i) {
			t.Fatalf("push %d evicted on a non-full ring", i)
		}
	}
	if v, ok := r.Peek(); !ok || v != 1 {
		t.Fatalf("peek = %d, %v", v, ok)
	}
	for want := 1; want <= 3; want++ {
		v, ok := r.Pop()
		if !ok || v != want {
			t.Fatalf("pop = %d, %v; want %d", v, ok, want)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Error("pop on empty ring succeeded")
	}
	if !r.IsEmpty() {
		t.Error("ring should be empty")
	}
}

func TestRingBuffer_DropOldest(t *testing.T) {
	r := pool.NewRingBuffer[string](3)
	for _, s := range []string{"a", "b", "c"} {
		r.Push(s)
	}
	if !r.IsFull() {
		t.Fatal("ring should be full")
	}
	if !r.Push("d") || !r.Push("e") {
		t.Fatal("push on a full ring must report eviction")
	}
	if r.Len() != 3 {
		t.Fatalf("len = %d, want 3", r.Len())
	}
	for _, want := range []string{"c", "d", "e"} {
		if v, _ := r.Pop(); v != want {
			t.Fatalf("got %q, want %q", v, want)
		}
	}
}

func TestRingBuffer_Reset(t *testing.T) {
	r := pool.NewRingBuffer[[]byte](2)
	r.Push([]byte("x"))
	r.Push([]byte("y"))
	r.Pop()
	r.Push([]byte("z"))
	r.Reset()
	if r.Len() != 0 || r.Cap() != 2 {
		t.Fatalf("after reset len=%d cap=%d", r.Len(), r.Cap())
	}
	r.Push([]byte("w"))
	if v, _ := r.Pop(); string(v) != "w" {
		t.Fatalf("got %q after reset", v)
	}
}

// The ring must behave like a slice queue that discards from the front
// once it holds more than its capacity.
func TestRingBuffer_MatchesBoundedQueue(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const capacity = 5
	r := pool.NewRingBuffer[int](capacity)
	var model []int
	next := 0
	for step := 0; step < 10000; step++ {
		if rng.Intn(3) > 0 {
			evicted := r.Push(next)
			model = append(model, next)
			if (len(model) > capacity) != evicted {
				t.Fatalf("step %d: eviction reported %v with model len %d", step, evicted, len(model))
			}
			if len(model) > capacity {
				model = model[1:]
			}
			next++
		} else {
			v, ok := r.Pop()
			if ok != (len(model) > 0) {
				t.Fatalf("step %d: pop ok=%v with model len %d", step, ok, len(model))
			}
			if ok {
				if v != model[0] {
					t.Fatalf("step %d: pop %d, want %d", step, v, model[0])
				}
				model = model[1:]
			}
		}
		if r.Len() != len(model) {
			t.Fatalf("step %d: len %d, want %d", step, r.Len(), len(model))
		}
	}
}

func TestNewRingBuffer_PanicsOnZero(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for zero capacity")
		}
	}()
	pool.NewRingBuffer[int](0)
}

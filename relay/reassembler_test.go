package relay_test

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/momentics/tsrelay/api"
	"github.com/momentics/tsrelay/relay"
)

func makeStream(rng *rand.Rand, packets, size int) []byte {
	b := make([]byte, packets*size)
	rng.Read(b)
	return b
}

// collect copies the packet slice headers out, since the outer slice is reused.
func collect(dst [][]byte, pkts [][]byte) [][]byte {
	return append(dst, pkts...)
}

func feedChunks(t *testing.T, r *relay.Reassembler, stream []byte, next func(remaining int) int) [][]byte {
	t.Helper()
	var out [][]byte
	for len(stream) > 0 {
		n := next(len(stream))
		pkts, err := r.Feed(stream[:n])
		if err != nil {
			t.Fatalf("Feed(%d): %v", n, err)
		}
		out = collect(out, pkts)
		stream = stream[n:]
	}
	return out
}

func TestReassembler_ChunkBoundaryInvariant(t *testing.T) {
	const size, factor, packets = 188, 10, 40
	rng := rand.New(rand.NewSource(1))
	stream := makeStream(rng, packets, size)

	// Reference: whole packets, a few at a time so each call fits the headroom.
	ref := feedChunks(t, relay.NewReassembler(size, factor), stream, func(rem int) int {
		return min(rem, size*5)
	})
	if len(ref) != packets {
		t.Fatalf("expected %d packets, got %d", packets, len(ref))
	}
	for i, p := range ref {
		if !bytes.Equal(p, stream[i*size:(i+1)*size]) {
			t.Fatalf("packet %d content mismatch", i)
		}
	}

	cases := map[string]func(int) int{
		"single-byte": func(int) int { return 1 },
		"odd-prime":   func(rem int) int { return min(rem, 7) },
		"random": func(rem int) int {
			return min(rem, 1+rng.Intn(size*3))
		},
		"just-over-packet": func(rem int) int { return min(rem, size+1) },
	}
	for name, next := range cases {
		t.Run(name, func(t *testing.T) {
			got := feedChunks(t, relay.NewReassembler(size, factor), stream, next)
			if len(got) != len(ref) {
				t.Fatalf("expected %d packets, got %d", len(ref), len(got))
			}
			for i := range ref {
				if !bytes.Equal(got[i], ref[i]) {
					t.Fatalf("packet %d differs", i)
				}
			}
		})
	}
}

func TestReassembler_KeepsTrailingFragment(t *testing.T) {
	r := relay.NewReassembler(8, 4)
	pkts, err := r.Feed([]byte("0123456789ab"))
	if err != nil {
		t.Fatal(err)
	}
	if len(pkts) != 1 || string(pkts[0]) != "01234567" {
		t.Fatalf("unexpected packets: %q", pkts)
	}
	if r.Buffered() != 4 {
		t.Fatalf("expected 4 buffered bytes, got %d", r.Buffered())
	}
	pkts, err = r.Feed([]byte("cdef"))
	if err != nil {
		t.Fatal(err)
	}
	if len(pkts) != 1 || string(pkts[0]) != "89abcdef" {
		t.Fatalf("unexpected packets: %q", pkts)
	}
	if r.Buffered() != 0 {
		t.Fatalf("expected empty buffer, got %d", r.Buffered())
	}
}

func TestReassembler_PacketsSurviveLaterFeeds(t *testing.T) {
	r := relay.NewReassembler(4, 2)
	first, _ := r.Feed([]byte("aaaa"))
	p := first[0]
	r.Feed([]byte("bbbb"))
	r.Feed([]byte("cccc"))
	if string(p) != "aaaa" {
		t.Fatalf("earlier packet was overwritten: %q", p)
	}
	if cap(p) != 4 {
		t.Fatalf("packet capacity should be clipped to its length, got %d", cap(p))
	}
}

func TestReassembler_Overflow(t *testing.T) {
	r := relay.NewReassembler(8, 2)
	if _, err := r.Feed([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	_, err := r.Feed(make([]byte, 14))
	if !errors.Is(err, api.ErrReassemblyOverflow) {
		t.Fatalf("expected ErrReassemblyOverflow, got %v", err)
	}
	if r.Buffered() != 3 {
		t.Fatalf("overflowing feed must not change state, buffered=%d", r.Buffered())
	}
	if _, err := r.Commit(len(r.Free()) + 1); !errors.Is(err, api.ErrReassemblyOverflow) {
		t.Fatalf("expected ErrReassemblyOverflow from Commit, got %v", err)
	}
}

func TestReassembler_CommitIntoFree(t *testing.T) {
	r := relay.NewReassembler(4, 3)
	n := copy(r.Free(), "wxyz12")
	pkts, err := r.Commit(n)
	if err != nil {
		t.Fatal(err)
	}
	if len(pkts) != 1 || string(pkts[0]) != "wxyz" {
		t.Fatalf("unexpected packets: %q", pkts)
	}
	if len(r.Free()) != 10 {
		t.Fatalf("expected 10 free bytes, got %d", len(r.Free()))
	}
}

// File: pool/slab.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-size slab carving for immutable packets.

package pool

// Slab hands out fixed-size byte slices carved from larger chunks so that a
// burst of packets costs one allocation instead of one per packet. Slices
// are never returned: a chunk is reclaimed by the GC once no packet cut from
// it is referenced any more. Not safe for concurrent use.
type Slab struct {
	size     int
	perChunk int
	chunk    []byte
	off      int
}

// NewSlab creates a slab producing size-byte slices, perChunk per allocation.
func NewSlab(size, perChunk int) *Slab {
	if size <= 0 {
		panic("slab size must be positive")
	}
	if perChunk <= 0 {
		perChunk = 1
	}
	return &Slab{size: size, perChunk: perChunk}
}

// Next returns a zeroed slice of exactly Size bytes. Its capacity is clipped
// so an append can never spill into a neighbour.
func (s *Slab) Next() []byte {
	if s.off+s.size > len(s.chunk) {
		s.chunk = make([]byte, s.size*s.perChunk)
		s.off = 0
	}
	b := s.chunk[s.off : s.off+s.size : s.off+s.size]
	s.off += s.size
	return b
}

// Size returns the slice length produced by Next.
func (s *Slab) Size() int { return s.size }

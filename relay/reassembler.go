// File: relay/reassembler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package relay

import (
	"fmt"

	"github.com/momentics/tsrelay/api"
	"github.com/momentics/tsrelay/pool"
)

// Reassembler slices a byte stream into fixed-size packets. Bytes are
// appended to a working buffer of PacketSize*FragmentFactor bytes; every
// complete packet is copied out and the trailing fragment is moved to the
// front for the next read.
//
// Returned packets are immutable and safe to share between clients. The
// outer slice returned by Commit and Feed is reused by the next call.
type Reassembler struct {
	size int
	buf  []byte
	n    int
	slab *pool.Slab
	out  [][]byte
}

// NewReassembler creates a reassembler for packetSize-byte packets with
// factor packets of headroom.
func NewReassembler(packetSize, factor int) *Reassembler {
	if factor < 2 {
		factor = 2
	}
	return &Reassembler{
		size: packetSize,
		buf:  make([]byte, packetSize*factor),
		slab: pool.NewSlab(packetSize, factor),
		out:  make([][]byte, 0, factor),
	}
}

// Free returns the unused tail of the working buffer. A transport may
// receive straight into it and then call Commit.
func (r *Reassembler) Free() []byte { return r.buf[r.n:] }

// Buffered returns the length of the pending partial packet.
func (r *Reassembler) Buffered() int { return r.n }

// Commit accounts n bytes written into Free and extracts complete packets.
func (r *Reassembler) Commit(n int) ([][]byte, error) {
	if n < 0 || n > len(r.buf)-r.n {
		return nil, fmt.Errorf("commit %d bytes with %d free: %w", n, len(r.buf)-r.n, api.ErrReassemblyOverflow)
	}
	r.n += n
	return r.extract(), nil
}

// Feed copies p into the working buffer and extracts complete packets. A
// chunk larger than the free headroom is a protocol violation and leaves
// the reassembler untouched.
func (r *Reassembler) Feed(p []byte) ([][]byte, error) {
	if len(p) > len(r.buf)-r.n {
		return nil, fmt.Errorf("feed %d bytes with %d free: %w", len(p), len(r.buf)-r.n, api.ErrReassemblyOverflow)
	}
	r.n += copy(r.buf[r.n:], p)
	return r.extract(), nil
}

func (r *Reassembler) extract() [][]byte {
	r.out = r.out[:0]
	off := 0
	for r.n-off >= r.size {
		pkt := r.slab.Next()
		copy(pkt, r.buf[off:off+r.size])
		r.out = append(r.out, pkt)
		off += r.size
	}
	if off > 0 {
		r.n = copy(r.buf, r.buf[off:r.n])
	}
	return r.out
}

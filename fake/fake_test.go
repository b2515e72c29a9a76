package fake

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/momentics/tsrelay/api"
)

func TestConn_RecvSplitsChunks(t *testing.T) {
	c := NewNetwork().NewConn("peer")
	c.Feed([]byte("abcdef"))
	buf := make([]byte, 4)
	n, err := c.Recv(buf)
	if err != nil || string(buf[:n]) != "abcd" {
		t.Fatalf("first recv = %q, %v", buf[:n], err)
	}
	n, err = c.Recv(buf)
	if err != nil || string(buf[:n]) != "ef" {
		t.Fatalf("second recv = %q, %v", buf[:n], err)
	}
	if _, err := c.Recv(buf); !errors.Is(err, api.ErrWouldBlock) {
		t.Fatalf("empty recv = %v", err)
	}
	c.CloseRemote()
	if _, err := c.Recv(buf); err != io.EOF {
		t.Fatalf("recv after remote close = %v", err)
	}
}

func TestConn_SendLimitAndBlock(t *testing.T) {
	c := NewNetwork().NewConn("peer")
	c.SetSendLimit(2)
	if n, err := c.Send([]byte("xyz")); n != 2 || err != nil {
		t.Fatalf("limited send = %d, %v", n, err)
	}
	c.SetBlocked(true)
	if _, err := c.Send([]byte("z")); !errors.Is(err, api.ErrWouldBlock) {
		t.Fatalf("blocked send = %v", err)
	}
	if !bytes.Equal(c.Sent(), []byte("xy")) || c.SendCalls() != 2 {
		t.Fatalf("sent %q in %d calls", c.Sent(), c.SendCalls())
	}
}

func TestPoller_ReportsReadinessInFDOrder(t *testing.T) {
	net := NewNetwork()
	p := NewPoller(net)
	ln := net.NewListener("l")
	c := net.NewConn("c")
	_ = p.Add(c.FD(), api.Readable, 9)
	_ = p.Add(ln.FD(), api.Readable, 0)

	events := make([]api.Event, 4)
	if n, _ := p.Wait(0, events); n != 0 {
		t.Fatalf("idle wait returned %d events", n)
	}
	ln.Dial("x")
	c.Feed([]byte("a"))
	n, err := p.Wait(0, events)
	if err != nil || n != 2 {
		t.Fatalf("wait = %d, %v", n, err)
	}
	if events[0].FD != ln.FD() || events[1].FD != c.FD() || events[1].Tag != 9 {
		t.Fatalf("events = %+v", events[:n])
	}
	if err := p.Add(c.FD(), api.Readable, 1); err == nil {
		t.Fatal("duplicate Add should fail")
	}
	if err := p.Remove(c.FD()); err != nil {
		t.Fatal(err)
	}
	if err := p.Remove(c.FD()); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("second remove = %v", err)
	}
}

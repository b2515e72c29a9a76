//go:build linux

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/momentics/tsrelay/control"
	"github.com/momentics/tsrelay/internal/transport"
	"github.com/momentics/tsrelay/relay"
)

// lockedBuffer collects log output written from the serve goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := transport.Listen(0, 1)
	if err != nil {
		t.Skipf("loopback unavailable: %v", err)
	}
	port := ln.Port()
	ln.Close()
	return port
}

func serveConfig(t *testing.T) *control.Config {
	cfg := control.DefaultConfig()
	cfg.SourcePort = freePort(t)
	cfg.ClientPort = freePort(t)
	for cfg.ClientPort == cfg.SourcePort {
		cfg.ClientPort = freePort(t)
	}
	cfg.PacketSize = 8
	cfg.QueueDepth = 16
	cfg.MaxClients = 4
	cfg.PollTimeoutMS = 10
	cfg.IdlePauseUS = 0
	cfg.StatsIntervalMS = 1
	cfg.SocketBufferBytes = 64 * 1024
	return cfg
}

func dialRetry(t *testing.T, port int) net.Conn {
	t.Helper()
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	deadline := time.Now().Add(3 * time.Second)
	for {
		c, err := net.Dial("tcp", addr)
		if err == nil {
			t.Cleanup(func() { c.Close() })
			return c
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial %s: %v", addr, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitExit(t *testing.T, done <-chan int) int {
	t.Helper()
	select {
	case code := <-done:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
		return -1
	}
}

func TestServe_SourceLossExitsZero(t *testing.T) {
	cfg := serveConfig(t)
	logs := &lockedBuffer{}
	metrics := control.NewMetricsRegistry()
	done := make(chan int, 1)
	go func() {
		done <- serve(context.Background(), cfg, cfg.Relay(), slog.New(slog.NewTextHandler(logs, nil)), metrics)
	}()

	src := dialRetry(t, cfg.SourcePort)
	client := dialRetry(t, cfg.ClientPort)
	deadline := time.Now().Add(3 * time.Second)
	for {
		if v, _ := metrics.Get(relay.MetricClientsActive); v == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never admitted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	payload := []byte("packet-Apacket-B")
	if _, err := src.Write(payload); err != nil {
		t.Fatal(err)
	}
	src.Close()

	if code := waitExit(t, done); code != 0 {
		t.Fatalf("exit code = %d, want 0; logs:\n%s", code, logs.String())
	}
	got := make([]byte, len(payload))
	client.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, err := io.ReadFull(client, got); err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("client read %q, %v", got, err)
	}
	for _, want := range []string{"source connected", "source disconnected", "hub terminated"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("log lacks %q:\n%s", want, logs.String())
		}
	}
}

func TestServe_CancelWhileWaitingForSource(t *testing.T) {
	cfg := serveConfig(t)
	logs := &lockedBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		done <- serve(ctx, cfg, cfg.Relay(), slog.New(slog.NewTextHandler(logs, nil)), control.NewMetricsRegistry())
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	if code := waitExit(t, done); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(logs.String(), "hub terminated") {
		t.Errorf("log lacks termination line:\n%s", logs.String())
	}
	// the source port is released again
	ln, err := transport.Listen(cfg.SourcePort, 1)
	if err != nil {
		t.Fatalf("source port still held: %v", err)
	}
	ln.Close()
}

func TestServe_CancelWhileRelayingExitsZero(t *testing.T) {
	cfg := serveConfig(t)
	logs := &lockedBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		done <- serve(ctx, cfg, cfg.Relay(), slog.New(slog.NewTextHandler(logs, nil)), control.NewMetricsRegistry())
	}()
	dialRetry(t, cfg.SourcePort)
	dialRetry(t, cfg.ClientPort)
	cancel()

	if code := waitExit(t, done); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(logs.String(), "hub terminated") {
		t.Errorf("log lacks termination line:\n%s", logs.String())
	}
}

func TestServe_PortInUseExitsOne(t *testing.T) {
	busy, err := transport.Listen(0, 1)
	if err != nil {
		t.Skipf("loopback unavailable: %v", err)
	}
	defer busy.Close()

	cfg := serveConfig(t)
	cfg.SourcePort = busy.Port()
	logs := &lockedBuffer{}
	code := serve(context.Background(), cfg, cfg.Relay(), slog.New(slog.NewTextHandler(logs, nil)), control.NewMetricsRegistry())
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(logs.String(), "source listener setup failed") {
		t.Errorf("log lacks failure reason:\n%s", logs.String())
	}
}

package socket

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestWrapRoundTripsOverPipe(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	sa := Wrap(a)
	sb := Wrap(b)

	go func() {
		sa.Write([]byte("ping"))
	}()

	buf := make([]byte, 4)
	n, err := sb.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "ping" {
		t.Fatalf("Read = %q, want ping", buf[:n])
	}
}

func TestSetReadTimeoutZeroClearsDeadline(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	sa := Wrap(a)
	if err := sa.SetReadTimeout(10 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := sa.SetReadTimeout(0); err != nil {
		t.Fatal(err)
	}
}

func TestDialContextConnectsAndCancelCloses(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			buf := make([]byte, 16)
			conn.Read(buf)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	sock, done, err := DialContext(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer done()

	if _, err := sock.Write([]byte("hi")); err != nil {
		t.Fatal(err)
	}

	cancel()
	// Give the watching goroutine a moment to close the connection.
	time.Sleep(20 * time.Millisecond)
	if _, err := sock.Write([]byte("more")); err == nil {
		t.Fatal("expected write to fail after context cancellation closed the socket")
	}
}

func TestTimeoutHandlerApply(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	sock := Wrap(a)
	h := TimeoutHandler{Duration: 50 * time.Millisecond}
	if err := h.Apply(sock); err != nil {
		t.Fatal(err)
	}
}

func TestWriterTracerPrefixes(t *testing.T) {
	var got []string
	tracer := WriterTracer{Write: func(line string) { got = append(got, line) }}
	tracer.Sent("HELO")
	tracer.Received("250 OK")
	if len(got) != 2 || got[0] != "> HELO" || got[1] != "< 250 OK" {
		t.Fatalf("got = %v", got)
	}
}

func TestNopTracerDoesNothing(t *testing.T) {
	var tracer Tracer = NopTracer{}
	tracer.Sent("x")
	tracer.Received("y")
}

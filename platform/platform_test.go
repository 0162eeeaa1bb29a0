package platform

import (
	"context"
	"os"
	"testing"
)

func TestDefaultNowAndPID(t *testing.T) {
	var h Default
	if h.Now().IsZero() {
		t.Fatal("Now() should not be zero")
	}
	if h.PID() != os.Getpid() {
		t.Fatalf("PID() = %d, want %d", h.PID(), os.Getpid())
	}
}

func TestDefaultHostname(t *testing.T) {
	var h Default
	got, err := h.Hostname()
	if err != nil {
		t.Fatal(err)
	}
	want, _ := os.Hostname()
	if got != want {
		t.Fatalf("Hostname() = %q, want %q", got, want)
	}
}

func TestDefaultRandomBytesLengthAndVariance(t *testing.T) {
	var h Default
	a, err := h.RandomBytes(16)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 16 {
		t.Fatalf("len = %d, want 16", len(a))
	}
	b, err := h.RandomBytes(16)
	if err != nil {
		t.Fatal(err)
	}
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("two independent RandomBytes calls produced identical output")
	}
}

func TestDefaultLocaleCharset(t *testing.T) {
	var h Default
	if got := h.LocaleCharset(); got != "utf-8" {
		t.Fatalf("LocaleCharset() = %q, want utf-8", got)
	}
}

func TestDefaultFilesystemRoundTrip(t *testing.T) {
	var h Default
	fs := h.Filesystem()
	dir := t.TempDir()
	sub := dir + "/a/b"
	if err := fs.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Stat(sub); err != nil {
		t.Fatal(err)
	}
	entries, err := fs.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("ReadDir = %d entries, want 1", len(entries))
	}
}

func TestDefaultCriticalSectionExcludes(t *testing.T) {
	var h Default
	lock := h.NewCriticalSection()
	lock.Lock()
	locked := make(chan struct{})
	go func() {
		lock.Lock()
		close(locked)
		lock.Unlock()
	}()
	select {
	case <-locked:
		t.Fatal("second Lock should have blocked while the first is held")
	default:
	}
	lock.Unlock()
	<-locked
}

func TestChildProcessAcceptsStdinAndWaits(t *testing.T) {
	if _, err := os.Stat("/bin/cat"); err != nil {
		t.Skip("/bin/cat not available")
	}
	var h Default
	proc, err := h.ChildProcesses().Start(context.Background(), "/bin/cat")
	if err != nil {
		t.Fatal(err)
	}
	io := proc.Stdin()
	if _, err := io.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := proc.Wait(); err != nil {
		t.Fatal(err)
	}
}

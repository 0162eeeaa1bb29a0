package sasl

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"
)

func TestNewMechanismPlain(t *testing.T) {
	client, err := NewMechanism(Plain, Credentials{Username: "u", Password: "p"})
	if err != nil {
		t.Fatal(err)
	}
	_, initial, err := client.Start()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(initial, []byte("u")) || !bytes.Contains(initial, []byte("p")) {
		t.Fatalf("initial response %q missing username/password", initial)
	}
}

func TestXOAUTH2InitialResponse(t *testing.T) {
	client, err := NewMechanism(Xoauth2, Credentials{Username: "u@example.com", Token: "TOK"})
	if err != nil {
		t.Fatal(err)
	}
	mech, initial, err := client.Start()
	if err != nil {
		t.Fatal(err)
	}
	if mech != "XOAUTH2" {
		t.Fatalf("mechanism name = %q", mech)
	}
	want := "user=u@example.com\x01auth=Bearer TOK\x01\x01"
	if string(initial) != want {
		t.Fatalf("initial response = %q, want %q", initial, want)
	}
}

func TestSuggestMechanismPicksMostSecureMutuallySupported(t *testing.T) {
	got := SuggestMechanism([]string{"LOGIN", "PLAIN", "ANONYMOUS"})
	if got != "PLAIN" {
		t.Fatalf("SuggestMechanism = %q, want PLAIN", got)
	}
}

func TestSuggestMechanismUnsupportedAvailableSetReturnsEmpty(t *testing.T) {
	if got := SuggestMechanism([]string{"GSSAPI"}); got != "" {
		t.Fatalf("SuggestMechanism = %q, want empty", got)
	}
}

func TestGetSupportedMechanismsIncludesBuiltins(t *testing.T) {
	found := false
	for _, m := range GetSupportedMechanisms() {
		if m == Plain {
			found = true
		}
	}
	if !found {
		t.Fatal("expected PLAIN among supported mechanisms")
	}
}

func TestNewMechanismUnknown(t *testing.T) {
	if _, err := NewMechanism("bogus-mechanism", Credentials{}); err == nil {
		t.Fatal("expected an error for an unknown mechanism")
	}
}

func TestSessionEncodeDecodeRoundTrip(t *testing.T) {
	client, _ := NewMechanism(Plain, Credentials{Username: "u", Password: "p"})
	sess := NewSession(client)
	msg := []byte("arbitrary payload bytes \x00\xff")
	if got := sess.Decode(sess.Encode(msg)); !bytes.Equal(got, msg) {
		t.Fatalf("Decode(Encode(X)) = %q, want %q", got, msg)
	}
}

// fakeSocket adapts a bytes.Buffer to socket.Socket for tests that never
// need real timeouts or addresses.
type fakeSocket struct{ buf *bytes.Buffer }

func (fakeSocket) Close() error                         { return nil }
func (fakeSocket) SetReadTimeout(time.Duration) error    { return nil }
func (fakeSocket) SetWriteTimeout(time.Duration) error   { return nil }
func (fakeSocket) LocalAddr() net.Addr                   { return nil }
func (fakeSocket) RemoteAddr() net.Addr                  { return nil }
func (s fakeSocket) Read(p []byte) (int, error)          { return s.buf.Read(p) }
func (s fakeSocket) Write(p []byte) (int, error)         { return s.buf.Write(p) }

func TestSocketWriteThenReadRoundTrip(t *testing.T) {
	client, _ := NewMechanism(Plain, Credentials{Username: "u", Password: "p"})
	sess := NewSession(client)

	var buf bytes.Buffer
	sock := Wrap(fakeSocket{&buf}, Plain, sess)

	payload := []byte("hello over the wire")
	if _, err := sock.Write(payload); err != nil {
		t.Fatal(err)
	}
	out := make([]byte, len(payload))
	n, err := sock.Read(out)
	if err != nil && err != io.EOF {
		t.Fatal(err)
	}
	if !bytes.Equal(out[:n], payload) {
		t.Fatalf("round trip = %q, want %q", out[:n], payload)
	}
}

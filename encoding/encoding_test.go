package encoding

import (
	"bytes"
	"testing"
)

func roundTrip(t *testing.T, name string, in []byte, props Properties) {
	t.Helper()
	c, ok := Lookup(name)
	if !ok {
		t.Fatalf("no codec registered for %q", name)
	}
	var encoded bytes.Buffer
	if _, err := c.Encode(&encoded, bytes.NewReader(in), props); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var decoded bytes.Buffer
	if _, err := c.Decode(&decoded, bytes.NewReader(encoded.Bytes()), props); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), in) {
		t.Fatalf("%s round trip: got %q, want %q", name, decoded.Bytes(), in)
	}
}

func TestRoundTripAllCodecs(t *testing.T) {
	payload := []byte("The quick brown fox jumps over the lazy dog. \x00\x01\xffbinary bytes too.")
	for _, name := range []string{"7bit", "8bit", "binary", "quoted-printable", "base64", "uuencode"} {
		roundTrip(t, name, payload, Properties{})
	}
}

func TestBase64RoundTripEmpty(t *testing.T) {
	roundTrip(t, "base64", nil, Properties{})
}

func TestQuotedPrintableWrapsAtMaxLineLength(t *testing.T) {
	c, _ := Lookup("quoted-printable")
	long := bytes.Repeat([]byte("a"), 200)
	var out bytes.Buffer
	if _, err := c.Encode(&out, bytes.NewReader(long), Properties{MaxLineLength: 76}); err != nil {
		t.Fatal(err)
	}
	for _, line := range bytes.Split(out.Bytes(), []byte("\r\n")) {
		if len(line) > 76 {
			t.Fatalf("line exceeds 76 chars: %d", len(line))
		}
	}
}

func TestDecideBinaryUsageAlwaysBase64(t *testing.T) {
	if got := Decide([]byte("anything"), true, UsageBinary); got != "base64" {
		t.Fatalf("Decide(binary) = %q, want base64", got)
	}
}

func TestDecideNonASCIISafeCharsetAlwaysBase64(t *testing.T) {
	if got := Decide([]byte("plain ascii"), false, UsageText); got != "base64" {
		t.Fatalf("Decide(non-ascii-safe charset) = %q, want base64", got)
	}
}

func TestDecideTextMostlyASCIIIs7bit(t *testing.T) {
	if got := Decide([]byte("mostly plain ascii text here"), true, UsageText); got != "7bit" {
		t.Fatalf("Decide = %q, want 7bit", got)
	}
}

func TestDecideTextHeavyNonASCIIIsQuotedPrintable(t *testing.T) {
	sample := []byte("\xe9\xe9\xe9\xe9\xe9ascii")
	if got := Decide(sample, true, UsageText); got != "quoted-printable" {
		t.Fatalf("Decide = %q, want quoted-printable", got)
	}
}

func TestLookupUnknownCodec(t *testing.T) {
	if _, ok := Lookup("does-not-exist"); ok {
		t.Fatal("expected Lookup to fail for unregistered codec")
	}
}

func TestEncodeBytesDecodeBytes(t *testing.T) {
	in := []byte("round trip via the byte-slice helpers")
	enc, err := EncodeBytes("base64", in, Properties{})
	if err != nil {
		t.Fatal(err)
	}
	dec, err := DecodeBytes("base64", enc, Properties{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, in) {
		t.Fatalf("got %q, want %q", dec, in)
	}
}

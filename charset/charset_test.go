package charset

import "testing"

func TestEqualIsCaseAndAliasInsensitive(t *testing.T) {
	cases := []struct{ a, b Name }{
		{"ISO-8859-1", "iso-8859-1"},
		{"latin1", "iso-8859-1"},
		{"UTF8", "utf-8"},
		{"US-ASCII", "ascii"},
	}
	for _, c := range cases {
		if !Equal(c.a, c.b) {
			t.Errorf("Equal(%q, %q) = false, want true", c.a, c.b)
		}
	}
}

func TestIsASCIISafe(t *testing.T) {
	if !IsASCIISafe("us-ascii") {
		t.Error("us-ascii should be ASCII-safe")
	}
	if IsASCIISafe("iso-8859-1") {
		t.Error("iso-8859-1 should not be ASCII-safe")
	}
}

func TestRecommendedEncoding(t *testing.T) {
	if got := RecommendedEncoding("us-ascii"); got != "7bit" {
		t.Errorf("RecommendedEncoding(us-ascii) = %q", got)
	}
	if got := RecommendedEncoding("utf-8"); got != "quoted-printable" {
		t.Errorf("RecommendedEncoding(utf-8) = %q", got)
	}
}

func TestConvertStringIdentity(t *testing.T) {
	c := NewConverter("utf-8", "utf-8")
	out, err := c.ConvertString("hello world")
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello world" {
		t.Errorf("ConvertString = %q", out)
	}
}

func TestConvertLatin1ToUTF8(t *testing.T) {
	c := NewConverter("iso-8859-1", "utf-8")
	out, err := c.ConvertString("Caf\xe9")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Café" {
		t.Errorf("ConvertString = %q, want Café", out)
	}
}

func TestIDNARoundTripASCIIHostname(t *testing.T) {
	toIDNA := NewConverter("utf-8", IDNAPseudoCharset)
	encoded, err := toIDNA.ConvertString("example.com")
	if err != nil {
		t.Fatal(err)
	}
	if encoded != "example.com" {
		t.Fatalf("ASCII-only hostname should pass through unchanged, got %q", encoded)
	}

	fromIDNA := NewConverter(IDNAPseudoCharset, "utf-8")
	back, err := fromIDNA.ConvertString(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if back != "example.com" {
		t.Fatalf("round trip = %q, want example.com", back)
	}
}

func TestIDNAEncodesNonASCIILabelWithXNPrefix(t *testing.T) {
	toIDNA := NewConverter("utf-8", IDNAPseudoCharset)
	encoded, err := toIDNA.ConvertString("münchen.de")
	if err != nil {
		t.Fatal(err)
	}
	label := encoded[:len(encoded)-len(".de")]
	if len(label) < 4 || label[:4] != "xn--" {
		t.Fatalf("encoded label %q should start with xn--", label)
	}

	fromIDNA := NewConverter(IDNAPseudoCharset, "utf-8")
	back, err := fromIDNA.ConvertString(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if back != "münchen.de" {
		t.Fatalf("round trip = %q", back)
	}
}

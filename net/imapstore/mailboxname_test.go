package imapstore

import "testing"

func TestMailboxUTF7RoundTrip(t *testing.T) {
	cases := []string{
		"INBOX",
		"Sent Items",
		"Archive/2024",
		"日本語",
		"Künstlerhaus",
	}
	for _, name := range cases {
		wire := encodeMailboxUTF7(name)
		got, err := decodeMailboxUTF7(wire)
		if err != nil {
			t.Fatalf("decodeMailboxUTF7(%q): %v", wire, err)
		}
		if got != name {
			t.Fatalf("round trip %q -> %q -> %q, want original", name, wire, got)
		}
	}
}

func TestMailboxUTF7ASCIIPassesThrough(t *testing.T) {
	if got := encodeMailboxUTF7("INBOX.Drafts"); got != "INBOX.Drafts" {
		t.Fatalf("encodeMailboxUTF7 = %q, want unchanged ASCII", got)
	}
}

func TestMailboxUTF7AmpersandEscaped(t *testing.T) {
	wire := encodeMailboxUTF7("a&b")
	if wire != "a&-b" {
		t.Fatalf("encodeMailboxUTF7(\"a&b\") = %q, want \"a&-b\"", wire)
	}
	got, err := decodeMailboxUTF7(wire)
	if err != nil {
		t.Fatal(err)
	}
	if got != "a&b" {
		t.Fatalf("decodeMailboxUTF7(%q) = %q, want a&b", wire, got)
	}
}

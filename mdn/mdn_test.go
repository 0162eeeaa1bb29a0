package mdn

import (
	"bytes"
	"strings"
	"testing"

	"mailkit.dev/mailkit/address"
	"mailkit.dev/mailkit/component"
	"mailkit.dev/mailkit/mime"
)

func TestIsMDN(t *testing.T) {
	msg := mime.NewBodyPart()
	msg.Header.Set("Content-Type", []byte(`multipart/report; report-type=disposition-notification; boundary=b`))
	if !IsMDN(msg) {
		t.Fatal("expected IsMDN to be true")
	}
}

func TestIsMDNFalseForPlainMultipart(t *testing.T) {
	msg := mime.NewBodyPart()
	msg.Header.Set("Content-Type", []byte("multipart/mixed; boundary=b"))
	if IsMDN(msg) {
		t.Fatal("expected IsMDN to be false for multipart/mixed")
	}
}

func TestAttachMDNRequestSetsHeader(t *testing.T) {
	msg := mime.NewBodyPart()
	AttachMDNRequest(msg, []address.Mailbox{{Addr: "a@example.com"}})
	if !msg.Header.Has("Disposition-Notification-To") {
		t.Fatal("expected Disposition-Notification-To to be set")
	}
}

func TestBuildAndRecognizeRoundTrip(t *testing.T) {
	original := mime.NewBodyPart()
	original.Header.Set("Subject", []byte("hello"))
	original.Header.Set("Message-ID", []byte("<orig@example.com>"))

	info := Info{
		Recipient:       address.Mailbox{Addr: "bob@example.com"},
		OriginalMessage: original,
		OriginalMsgID:   "orig@example.com",
	}
	built := Build(info, "The message was displayed.", "us-ascii",
		address.Mailbox{Addr: "alice@example.com"},
		"automatic-action/MDN-sent-automatically; displayed", "mailkit")

	if !IsMDN(built) {
		t.Fatal("built message should be recognised as an MDN")
	}
	if built.Body.PartCount() != 3 {
		t.Fatalf("MDN should have 3 parts, got %d", built.Body.PartCount())
	}

	// Round trip through generate/parse, then extract the MDN fields.
	ctx := component.DefaultGenerationContext()
	var out bytes.Buffer
	if _, err := built.Generate(ctx, &out, 0); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	pctx := component.DefaultParsingContext()
	reparsed := mime.NewBodyPart()
	if _, err := reparsed.Parse(pctx, out.Bytes(), 0, out.Len()); err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !IsMDN(reparsed) {
		t.Fatal("reparsed message should still be recognised as an MDN")
	}

	received, err := GetReceivedMDN(reparsed)
	if err != nil {
		t.Fatalf("GetReceivedMDN: %v", err)
	}
	if received.OriginalMessageID != "orig@example.com" {
		t.Fatalf("OriginalMessageID = %q", received.OriginalMessageID)
	}
	if !strings.Contains(received.Disposition, "displayed") {
		t.Fatalf("Disposition = %q, want to contain displayed", received.Disposition)
	}
}

func TestGetReceivedMDNFailsOnNonMDN(t *testing.T) {
	msg := mime.NewBodyPart()
	msg.Header.Set("Content-Type", []byte("text/plain"))
	if _, err := GetReceivedMDN(msg); err == nil {
		t.Fatal("expected an error for a non-MDN message")
	}
}

// Package mdn implements RFC 3798 Message Disposition Notifications
// (spec §4.10): requesting, recognising, building, and extracting an
// MDN report.
//
// Grounded on original_source/src/mdn/MDNHelper.cpp's
// attachMDNRequest/isMDN/buildMDN/createFirstMDNPart/createSecondMDNPart/
// createThirdMDNPart/getReceivedMDN, expressed over this package's own
// mime.BodyPart tree and header.Header rather than the original's
// ref<message>/ref<header> object graph.
package mdn

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"

	"mailkit.dev/mailkit/address"
	"mailkit.dev/mailkit/content"
	"mailkit.dev/mailkit/header"
	"mailkit.dev/mailkit/mime"
)

// AttachMDNRequest sets the Disposition-Notification-To header on msg so
// its recipient's MUA knows where to send a disposition notification.
func AttachMDNRequest(msg *mime.BodyPart, mailboxes []address.Mailbox) {
	msg.Header.Set("Disposition-Notification-To", []byte(address.FormatMailboxList(mailboxes)))
}

// IsMDN reports whether msg's content type is multipart/report with a
// report-type=disposition-notification parameter.
func IsMDN(msg *mime.BodyPart) bool {
	mt := msg.ContentType()
	if !strings.EqualFold(mt.FullType(), "multipart/report") {
		return false
	}
	rt, ok := mt.Params.Get("report-type")
	return ok && strings.EqualFold(rt, "disposition-notification")
}

// Info is the information needed to build an MDN for one delivered
// message (vmime's sendableMDNInfos).
type Info struct {
	Recipient        address.Mailbox
	OriginalMessage  *mime.BodyPart
	OriginalMsgID    address.MessageId
}

// Build composes a three-part MDN report for original, addressed from
// expeditor to recipient, with the given human-readable text/charset and
// disposition token (spec §4.10).
func Build(info Info, text, charset string, expeditor address.Mailbox, disposition string, reportingUA string) *mime.BodyPart {
	msg := mime.NewBodyPart()
	msg.Header.Set("Content-Type", []byte(`multipart/report; report-type="disposition-notification"`))
	msg.Header.Set("MIME-Version", []byte("1.0"))
	msg.Header.Set("Disposition", []byte(disposition))
	msg.Header.Set("To", []byte(address.FormatMailbox(info.Recipient)))
	msg.Header.Set("From", []byte(address.FormatMailbox(expeditor)))
	msg.Header.Set("Subject", []byte("Disposition notification"))
	msg.Header.Set("Date", []byte(header.FormatDateTime(time.Now())))
	msg.Body = &mime.Body{}

	msg.AddChild(humanPart(text, charset))
	msg.AddChild(machinePart(info, disposition, reportingUA))
	msg.AddChild(originalHeadersPart(info.OriginalMessage))

	return msg
}

func humanPart(text, charset string) *mime.BodyPart {
	p := mime.NewBodyPart()
	p.Header.Set("Content-Type", []byte("text/plain; charset="+charset))
	p.Body.Content = content.NewMemory([]byte(text))
	return p
}

// machinePart renders the synthetic header block of the machine-readable
// part: Reporting-UA (when reportingUA is set), Final-Recipient,
// Original-Message-ID (when known), and Disposition. No Failure, Error or
// Warning field is written.
func machinePart(info Info, disposition, reportingUA string) *mime.BodyPart {
	p := mime.NewBodyPart()
	p.Header.Set("Content-Disposition", []byte("inline"))
	p.Header.Set("Content-Type", []byte("message/disposition-notification"))

	var fields header.Header
	if reportingUA != "" {
		fields.Add("Reporting-UA", []byte(reportingUA))
	}
	fields.Add("Final-Recipient", []byte("rfc822; "+info.Recipient.Addr))
	if info.OriginalMsgID != "" {
		fields.Add("Original-Message-ID", []byte(info.OriginalMsgID.String()))
	}
	fields.Add("Disposition", []byte(disposition))

	var buf bytes.Buffer
	fields.Encode(&buf)
	p.Body.Content = content.NewMemory(buf.Bytes())
	return p
}

func originalHeadersPart(original *mime.BodyPart) *mime.BodyPart {
	p := mime.NewBodyPart()
	p.Header.Set("Content-Disposition", []byte("inline"))
	p.Header.Set("Content-Type", []byte("text/rfc822-headers"))

	var buf bytes.Buffer
	if original != nil {
		original.Header.Encode(&buf)
	}
	p.Body.Content = content.NewMemory(buf.Bytes())
	return p
}

// Received is the information extracted from a received MDN by
// GetReceivedMDN (vmime's receivedMDNInfos).
type Received struct {
	OriginalMessageID   address.MessageId
	Disposition         string
	ReceivedContentMIC  string
}

// GetReceivedMDN extracts Original-Message-ID, Disposition, and
// Received-Content-MIC from an MDN's second (machine-readable) part.
func GetReceivedMDN(msg *mime.BodyPart) (Received, error) {
	if !IsMDN(msg) || msg.Body == nil || len(msg.Body.Parts) < 2 {
		return Received{}, fmt.Errorf("mdn.GetReceivedMDN: not an MDN")
	}
	machine := msg.Body.Parts[1]
	if machine.Body == nil || machine.Body.Content == nil {
		return Received{}, fmt.Errorf("mdn.GetReceivedMDN: empty machine part")
	}
	var raw bytes.Buffer
	if err := machine.Body.Content.Extract(&raw, nil); err != nil {
		return Received{}, err
	}
	r := header.NewReader(bufio.NewReader(bytes.NewReader(raw.Bytes())))
	h, err := r.ReadMIMEHeader(false)
	if err != nil {
		return Received{}, err
	}
	return Received{
		OriginalMessageID:  address.ParseMessageId(string(h.Get("Original-Message-ID"))),
		Disposition:        string(h.Get("Disposition")),
		ReceivedContentMIC: string(h.Get("Received-Content-MIC")),
	}, nil
}

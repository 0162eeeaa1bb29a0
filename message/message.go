// Package message ties together header, mime, address, and word into the
// top-level Message object: a root BodyPart with convenience accessors
// for the common envelope fields (From/To/Subject/Date/...).
//
// Grounded on the teacher's email.Msg (email/msg.go) generalized from its
// flat Parts-slice-plus-flags shape into a BodyPart tree rooted message,
// since spec §3 models BodyPart recursively rather than as a flat list.
package message

import (
	"bufio"
	"bytes"
	"io"
	"time"

	"mailkit.dev/mailkit/address"
	"mailkit.dev/mailkit/component"
	"mailkit.dev/mailkit/header"
	"mailkit.dev/mailkit/mime"
	"mailkit.dev/mailkit/word"
)

// Message is the root BodyPart of a parsed or constructed email; it has
// no parent (spec §3).
type Message struct {
	mime.BodyPart
}

// New returns an empty message with a MIME-Version header and a single
// empty text/plain body, ready for field population.
func New() *Message {
	m := &Message{}
	m.Header.Set("MIME-Version", []byte("1.0"))
	m.Header.Set("Content-Type", []byte("text/plain; charset=UTF-8"))
	m.Body = &mime.Body{}
	return m
}

// Parse reads a complete message (header block + body) from r.
func Parse(ctx *component.ParsingContext, r io.Reader) (*Message, error) {
	if ctx == nil {
		ctx = component.DefaultParsingContext()
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m := &Message{}
	if _, err := m.BodyPart.Parse(ctx, data, 0, len(data)); err != nil {
		return nil, err
	}
	return m, nil
}

// Write generates the complete message onto w.
func (m *Message) Write(ctx *component.GenerationContext, w io.Writer) error {
	if ctx == nil {
		ctx = component.DefaultGenerationContext()
	}
	_, err := m.BodyPart.Generate(ctx, w, 0)
	return err
}

// Subject returns the decoded Subject header text.
func (m *Message) Subject() string {
	return m.decodedText("Subject")
}

// SetSubject encodes and sets the Subject header.
func (m *Message) SetSubject(s string) {
	m.Header.Set("Subject", []byte(word.NewWord(s, "utf-8").Encode(false)))
}

func (m *Message) decodedText(key header.Key) string {
	raw := m.Header.Get(key)
	if raw == nil {
		return ""
	}
	text := word.ParseMultiple(string(raw), "us-ascii")
	return text.GetWholeBuffer()
}

// From returns the parsed From mailbox list.
func (m *Message) From() (address.AddressList, error) {
	return address.ParseAddressList(string(m.Header.Get("From")))
}

// SetFrom encodes and sets the From header from a single mailbox.
func (m *Message) SetFrom(mb address.Mailbox) {
	m.Header.Set("From", []byte(address.FormatMailbox(mb)))
}

// To returns the parsed To address list.
func (m *Message) To() (address.AddressList, error) {
	return address.ParseAddressList(string(m.Header.Get("To")))
}

// SetTo encodes and sets the To header from a mailbox list.
func (m *Message) SetTo(mbs []address.Mailbox) {
	m.Header.Set("To", []byte(address.FormatMailboxList(mbs)))
}

// Date returns the parsed Date header, defaulting to the Unix epoch on a
// missing or malformed value (tolerant recovery, spec §4.1).
func (m *Message) Date() time.Time {
	return header.ParseDateTime(string(m.Header.Get("Date")))
}

// SetDate sets the Date header.
func (m *Message) SetDate(t time.Time) {
	m.Header.Set("Date", []byte(header.FormatDateTime(t)))
}

// MessageID returns the Message-ID header's id, without angle brackets.
func (m *Message) MessageID() address.MessageId {
	return address.ParseMessageId(string(m.Header.Get("Message-ID")))
}

// SetMessageID sets the Message-ID header.
func (m *Message) SetMessageID(id address.MessageId) {
	m.Header.Set("Message-ID", []byte(id.String()))
}

// Bytes renders the message to a byte slice using the default generation
// context; a convenience for callers that don't need streaming.
func (m *Message) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Write(nil, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseBytes is a convenience wrapper over Parse for in-memory input.
func ParseBytes(ctx *component.ParsingContext, data []byte) (*Message, error) {
	return Parse(ctx, bufio.NewReader(bytes.NewReader(data)))
}

package mime

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"mailkit.dev/mailkit/component"
	"mailkit.dev/mailkit/content"
	"mailkit.dev/mailkit/header"
)

// BodyPart is (Header, Body) plus a weak parent back-edge (spec §3). A
// root part used as a Message has a nil Parent.
type BodyPart struct {
	component.Base
	Header header.Header
	Body   *Body
	Parent *BodyPart
}

// NewBodyPart returns an empty leaf part with no content.
func NewBodyPart() *BodyPart {
	return &BodyPart{Body: &Body{Content: content.Empty{}}}
}

// Parse reads a header block followed by a body from data[start:end),
// recursing into child parts when the Content-Type is multipart/*.
func (p *BodyPart) Parse(ctx *component.ParsingContext, data []byte, start, end int) (newPos int, err error) {
	r := header.NewReader(bufio.NewReader(bytes.NewReader(data[start:end])))
	h, herr := r.ReadMIMEHeader(ctx.Strict)
	if herr != nil && ctx.Strict {
		return start, fmt.Errorf("mime.BodyPart.Parse: %v", herr)
	}
	p.Header = h
	bodyStart := start + r.NumRead()
	if bodyStart > end {
		bodyStart = end
	}

	p.Body = &Body{}
	if _, err := p.Body.parse(ctx, p, data, bodyStart, end); err != nil {
		return start, err
	}
	p.SetRange(start, end)
	return end, nil
}

// Generate writes the header followed by the body.
func (p *BodyPart) Generate(ctx *component.GenerationContext, w io.Writer, startColumn int) (newColumn int, err error) {
	if _, err := p.Header.Encode(w); err != nil {
		return startColumn, fmt.Errorf("mime.BodyPart.Generate: %v", err)
	}
	if p.Body == nil {
		return 0, nil
	}
	return p.Body.generate(ctx, w, 0, p.TransferEncoding())
}

// ContentType returns the part's parsed Content-Type, defaulting to
// text/plain when absent or malformed (tolerant recovery, spec §4.1).
func (p *BodyPart) ContentType() header.MediaType {
	f := header.NewField(header.Entry{Value: p.Header.Get("Content-Type")})
	mt, err := f.MediaType()
	if err != nil {
		mt, _ = header.ParseMediaType("")
	}
	return mt
}

// TransferEncoding returns the part's declared Content-Transfer-Encoding,
// defaulting to "7bit" when absent (spec §4.4).
func (p *BodyPart) TransferEncoding() string {
	v := strings.ToLower(strings.TrimSpace(string(p.Header.Get("Content-Transfer-Encoding"))))
	if v == "" {
		return "7bit"
	}
	return v
}

// Disposition returns the part's parsed Content-Disposition.
func (p *BodyPart) Disposition() Disposition {
	return ParseDisposition(string(p.Header.Get("Content-Disposition")))
}

// ContentID returns the Content-Id header value without its angle
// brackets.
func (p *BodyPart) ContentID() string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(string(p.Header.Get("Content-ID"))), "<"), ">")
}

// AddChild appends part as a new last child, detaching it from any
// previous parent first (ownership transfer, spec §3).
func (p *BodyPart) AddChild(part *BodyPart) {
	if part.Parent != nil {
		part.Parent.Body.removeChild(part)
	}
	part.Parent = p
	if p.Body == nil {
		p.Body = &Body{}
	}
	p.Body.Parts = append(p.Body.Parts, part)
}

// Body holds either leaf content or a multipart child-part sequence;
// exactly one is meaningful (getPartCount()==0 selects the content form,
// per spec §3).
type Body struct {
	component.Base

	// Leaf form.
	Content content.Handler

	// Multipart form.
	Parts    []*BodyPart
	Prolog   []byte
	Epilog   []byte
	Boundary string
}

// PartCount returns the number of child parts (0 for a leaf body).
func (b *Body) PartCount() int { return len(b.Parts) }

func (b *Body) removeChild(part *BodyPart) {
	for i, c := range b.Parts {
		if c == part {
			b.Parts = append(b.Parts[:i], b.Parts[i+1:]...)
			return
		}
	}
}

// parse implements spec §4.4. owner is the BodyPart this Body belongs to,
// used to read its Content-Type/Content-Transfer-Encoding.
func (b *Body) parse(ctx *component.ParsingContext, owner *BodyPart, data []byte, start, end int) (newPos int, err error) {
	mt := owner.ContentType()
	if !mt.IsMultipart() {
		b.SetRange(start, end)
		b.Content = content.NewStream(bytes.NewReader(data[start:end]), int64(end-start), owner.TransferEncoding())
		return end, nil
	}

	boundary, _ := mt.Params.Get("boundary")
	if boundary == "" {
		boundary = discoverBoundary(data, start, end)
	}
	if boundary == "" {
		// Tolerant recovery (spec §4.4 step 5/6): no boundary found at all,
		// the whole range becomes one recovered child part.
		child := NewBodyPart()
		if _, err := child.Parse(ctx, data, start, end); err != nil {
			return start, err
		}
		child.Parent = owner
		b.Parts = []*BodyPart{child}
		b.SetRange(start, end)
		return end, nil
	}
	b.Boundary = boundary

	matches := findBoundaries(data, start, end, boundary)
	if len(matches) == 0 {
		child := NewBodyPart()
		if _, err := child.Parse(ctx, data, start, end); err != nil {
			return start, err
		}
		child.Parent = owner
		b.Parts = []*BodyPart{child}
		b.SetRange(start, end)
		return end, nil
	}

	b.Prolog = append([]byte(nil), data[start:matches[0].ContentEnd]...)

	partStart := matches[0].DelimEnd
	for i := 1; i < len(matches); i++ {
		partEnd := matches[i].ContentEnd
		child := NewBodyPart()
		if _, err := child.Parse(ctx, data, partStart, partEnd); err != nil {
			return start, err
		}
		child.Parent = owner
		b.Parts = append(b.Parts, child)
		partStart = matches[i].DelimEnd
	}

	last := matches[len(matches)-1]
	epilogStart := last.DelimEnd
	if last.Final {
		b.Epilog = append([]byte(nil), data[epilogStart:end]...)
	} else {
		// No terminating "--boundary--" was found: the bytes after the
		// final observed delimiter are one more (tolerant) child part
		// rather than epilog, since nothing closed the multipart body.
		child := NewBodyPart()
		if _, err := child.Parse(ctx, data, epilogStart, end); err != nil {
			return start, err
		}
		child.Parent = owner
		b.Parts = append(b.Parts, child)
	}

	b.SetRange(start, end)
	return end, nil
}

// Generate writes prolog + delimited child parts + epilog, or the leaf
// content, per spec §4.4's generation rule. The leaf content is generated
// against its own declared encoding (no owning part to consult); callers
// generating a BodyPart's Body should use BodyPart.Generate instead, which
// threads the part's declared Content-Transfer-Encoding through generate.
func (b *Body) Generate(ctx *component.GenerationContext, w io.Writer, startColumn int) (newColumn int, err error) {
	target := ""
	if b.Content != nil {
		target = b.Content.Encoding()
	}
	return b.generate(ctx, w, startColumn, target)
}

// generate is Generate's implementation, taking the target transfer
// encoding to re-encode the leaf content to (the owning BodyPart's
// declared Content-Transfer-Encoding): the content handler may hold bytes
// in a different encoding (or none) than the header declares, and
// generation must re-encode to match what it writes into the header
// (spec §4.7's generation rule).
func (b *Body) generate(ctx *component.GenerationContext, w io.Writer, startColumn int, targetEncoding string) (newColumn int, err error) {
	if b.PartCount() == 0 {
		if b.Content == nil {
			return 0, nil
		}
		if err := b.Content.Generate(w, targetEncoding, ctx.LineLimit(), nil); err != nil {
			return 0, fmt.Errorf("mime.Body.Generate: %v", err)
		}
		return 0, nil
	}

	boundary := b.Boundary
	if boundary == "" {
		boundary = randomBoundary()
	}

	prolog := b.Prolog
	if len(prolog) == 0 {
		prolog = []byte(ctx.DefaultPrologText)
	}
	if len(prolog) > 0 {
		if _, err := w.Write(prolog); err != nil {
			return 0, err
		}
	}
	for _, part := range b.Parts {
		if _, err := fmt.Fprintf(w, "\r\n--%s\r\n", boundary); err != nil {
			return 0, err
		}
		if _, err := part.Generate(ctx, w, 0); err != nil {
			return 0, err
		}
	}
	if _, err := fmt.Fprintf(w, "\r\n--%s--\r\n", boundary); err != nil {
		return 0, err
	}
	epilog := b.Epilog
	if len(epilog) == 0 {
		epilog = []byte(ctx.DefaultEpilogText)
	}
	if len(epilog) > 0 {
		if _, err := w.Write(epilog); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

// randomBoundary returns a random boundary token from the RFC 2046 safe
// character set, "=_"-prefixed so it can never collide with base64
// content (spec §4.4), matching the teacher's randBoundary intent.
func randomBoundary() string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	buf := make([]byte, 48)
	raw := make([]byte, 48)
	if _, err := rand.Read(raw); err != nil {
		panic(err)
	}
	for i, b := range raw {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return "=_" + string(buf)
}

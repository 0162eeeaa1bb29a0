// Package textpart implements the plain-text and HTML body views over a
// BodyPart tree (spec §4.8): plainTextPart is a single text/plain leaf;
// htmlTextPart manages an HTML content handler plus its embedded objects
// and composes multipart/alternative + multipart/related wrappers.
//
// Grounded on the teacher's html/htmlembed/htmlembed.go, which walks an
// HTML document with golang.org/x/net/html looking for referenced
// resources; generalized here from "fetch over HTTP and rewrite" into
// "scan for cid:/id references and associate with sibling BodyParts
// already present in the message" (spec §4.8 describes association, not
// fetching).
package textpart

import (
	"strings"

	"golang.org/x/net/html"

	"mailkit.dev/mailkit/content"
	"mailkit.dev/mailkit/mime"
)

// ReferenceKind distinguishes how an embedded object is addressed from
// within the HTML body.
type ReferenceKind int

const (
	ByID ReferenceKind = iota
	ByLocation
)

// EmbeddedObject is one asset referenced from an htmlTextPart's HTML
// body (spec §4.8).
type EmbeddedObject struct {
	Content   content.Handler
	Encoding  string
	ID        string
	MediaType string
	Reference ReferenceKind
}

// PlainTextPart is a single text/plain leaf part.
type PlainTextPart struct {
	Charset string
	Text    string
}

// NewPlainTextPart returns a PlainTextPart with the given UTF-8 text.
func NewPlainTextPart(text string) *PlainTextPart {
	return &PlainTextPart{Charset: "utf-8", Text: text}
}

// PartCount is always 1: generate appends exactly one child to its
// parent (spec §4.8).
func (p *PlainTextPart) PartCount() int { return 1 }

// BuildPart renders the plain-text part as a standalone BodyPart.
func (p *PlainTextPart) BuildPart() *mime.BodyPart {
	bp := mime.NewBodyPart()
	bp.Header.Set("Content-Type", []byte("text/plain; charset="+p.Charset))
	bp.Body.Content = content.NewMemory([]byte(p.Text))
	return bp
}

// HTMLTextPart manages an HTML content handler, its charset, and its
// ordered list of embedded objects.
type HTMLTextPart struct {
	Charset  string
	HTML     string
	Embedded []EmbeddedObject
	PlainAlt string // optional plain-text alternative; empty if none
}

// NewHTMLTextPart returns an HTMLTextPart with the given UTF-8 HTML body
// and no embedded objects or plain-text alternative yet.
func NewHTMLTextPart(htmlBody string) *HTMLTextPart {
	return &HTMLTextPart{Charset: "utf-8", HTML: htmlBody}
}

// CollectEmbedded walks the whole message looking for parts carrying a
// Content-Id or Content-Location, and associates each with this HTML part
// if its id/location string appears in the HTML body: by id, the HTML
// must reference "cid:<id>" (case-insensitive prefix) or the bare id; by
// location, the HTML must reference the location string directly (spec
// §4.8).
func (h *HTMLTextPart) CollectEmbedded(root *mime.BodyPart) {
	h.Embedded = nil
	candidates := referencedURLs(h.HTML)
	walk(root, func(p *mime.BodyPart) {
		cid := p.ContentID()
		loc := strings.TrimSpace(string(p.Header.Get("Content-Location")))
		switch {
		case cid != "" && referencesID(candidates, cid):
			h.Embedded = append(h.Embedded, EmbeddedObject{
				Content:   p.Body.Content,
				Encoding:  p.TransferEncoding(),
				ID:        cid,
				MediaType: p.ContentType().FullType(),
				Reference: ByID,
			})
		case loc != "" && candidates[loc]:
			h.Embedded = append(h.Embedded, EmbeddedObject{
				Content:   p.Body.Content,
				Encoding:  p.TransferEncoding(),
				ID:        loc,
				MediaType: p.ContentType().FullType(),
				Reference: ByLocation,
			})
		}
	})
}

func walk(p *mime.BodyPart, fn func(*mime.BodyPart)) {
	if p == nil || p.Body == nil {
		return
	}
	fn(p)
	for _, kid := range p.Body.Parts {
		walk(kid, fn)
	}
}

// referencedURLs scans htmlBody with an HTML tokenizer and returns the
// set of every "src"/"href"/"background" attribute value found, so
// CollectEmbedded can test membership instead of re-parsing per
// candidate.
func referencedURLs(htmlBody string) map[string]bool {
	urls := map[string]bool{}
	z := html.NewTokenizer(strings.NewReader(htmlBody))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return urls
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		for _, a := range tok.Attr {
			switch a.Key {
			case "src", "href", "background":
				urls[a.Val] = true
			}
		}
	}
}

func referencesID(urls map[string]bool, id string) bool {
	lowID := strings.ToLower(id)
	for u := range urls {
		lu := strings.ToLower(u)
		if lu == lowID || lu == "cid:"+lowID {
			return true
		}
	}
	return false
}

// BuildPart renders the htmlTextPart's generation rule (spec §4.8): if a
// plain-text alternative exists, emit multipart/alternative with the
// plain part first; wrap the HTML (plus referenced objects, if any) in
// multipart/related when objects are present; otherwise emit the HTML
// part alone.
func (h *HTMLTextPart) BuildPart() *mime.BodyPart {
	htmlPart := mime.NewBodyPart()
	htmlPart.Header.Set("Content-Type", []byte("text/html; charset="+h.Charset))
	htmlPart.Body.Content = content.NewMemory([]byte(h.HTML))

	htmlNode := htmlPart
	if len(h.Embedded) > 0 {
		related := mime.NewBodyPart()
		related.Header.Set("Content-Type", []byte("multipart/related"))
		related.Body = &mime.Body{}
		related.AddChild(htmlPart)
		for _, obj := range h.Embedded {
			objPart := mime.NewBodyPart()
			objPart.Header.Set("Content-Type", []byte(obj.MediaType))
			objPart.Header.Set("Content-ID", []byte("<"+obj.ID+">"))
			if obj.Content != nil {
				objPart.Body.Content = obj.Content
			}
			related.AddChild(objPart)
		}
		htmlNode = related
	}

	if h.PlainAlt == "" {
		return htmlNode
	}

	alt := mime.NewBodyPart()
	alt.Header.Set("Content-Type", []byte("multipart/alternative"))
	alt.Body = &mime.Body{}
	plain := NewPlainTextPart(h.PlainAlt).BuildPart()
	alt.AddChild(plain)
	alt.AddChild(htmlNode)
	return alt
}

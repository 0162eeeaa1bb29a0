// Package attachment implements the attachment classifier and the
// addAttachment promotion described in spec §4.9.
//
// Grounded on the teacher's email/msgcleaver/msgcleaver.go classification
// logic (the isAttachment/isBody/fileName decision tree in its
// processPartFn closure) and email/msgbuilder/tree.go's pullParts/
// BuildTree promotion of loose parts into a multipart/mixed wrapper.
package attachment

import (
	"strings"

	"mailkit.dev/mailkit/content"
	"mailkit.dev/mailkit/header"
	"mailkit.dev/mailkit/mime"
	"mailkit.dev/mailkit/word"
)

// View is the Attachment value: (MediaType, Name, Description, Encoding,
// ContentHandler data, optional BodyPart, optional Header) per spec §3.
type View struct {
	MediaType   header.MediaType
	Name        word.Word
	Description word.Text
	Encoding    string
	Content     content.Handler
	Part        *mime.BodyPart
	Header      *header.Header
}

// IsAttachment reports whether part is an attachment under the spec
// §4.9 rule:
//
//   - Content-Disposition exists and is not "inline"; or
//   - Content-Disposition is "inline" but carries neither Content-Id nor
//     Content-Location, and this is not the root part; or
//   - Content-Type is neither text/* nor multipart/* and either a "name"
//     parameter is present (the obsolete RFC 1341 convention) or no
//     Content-Id is present.
func IsAttachment(part *mime.BodyPart) bool {
	disp := part.Disposition()
	if disp.Type != "" && !disp.IsInline() {
		return true
	}

	hasID := part.Header.Has("Content-ID")
	hasLoc := part.Header.Has("Content-Location")
	isRoot := part.Parent == nil

	if disp.IsInline() && disp.Type != "" && !hasID && !hasLoc && !isRoot {
		return true
	}

	mt := part.ContentType()
	if !strings.EqualFold(mt.Type, "text") && !mt.IsMultipart() {
		_, hasName := mt.Params.Get("name")
		if hasName || !hasID {
			return true
		}
	}

	return false
}

// Name returns the attachment's display name: the Content-Disposition
// filename if present, else the Content-Type "name" parameter.
func Name(part *mime.BodyPart) string {
	if fn := part.Disposition().Filename(); fn != "" {
		return fn
	}
	name, _ := part.ContentType().Params.Get("name")
	return name
}

// FromPart builds an attachment View over an existing BodyPart.
func FromPart(part *mime.BodyPart) View {
	mt := part.ContentType()
	return View{
		MediaType: mt,
		Name:      word.NewWord(Name(part), "utf-8"),
		Encoding:  part.TransferEncoding(),
		Content:   part.Body.Content,
		Part:      part,
		Header:    &part.Header,
	}
}

// Add attaches a new part to msg: it locates a multipart/mixed part,
// creating one if missing by pushing the existing root content into a
// new child and promoting the root to multipart/mixed, then appends the
// attachment as a new last child (spec §4.9). A message-valued
// attachment (mediaType "message/rfc822") is expected to already be
// wrapped by the caller; Add does not itself perform that wrapping.
func Add(msg *mime.BodyPart, name string, mediaType string, data []byte) *mime.BodyPart {
	mixed := findOrPromoteMixed(msg)
	part := mime.NewBodyPart()
	part.Header.Set("Content-Type", []byte(mediaType+"; name=\""+name+"\""))
	part.Header.Set("Content-Disposition", []byte("attachment; filename=\""+name+"\""))
	part.Header.Set("Content-Transfer-Encoding", []byte("base64"))
	part.Body.Content = content.NewMemory(data)
	mixed.AddChild(part)
	return part
}

// findOrPromoteMixed returns the multipart/mixed BodyPart to attach new
// parts under, promoting msg in place if it is not already one.
func findOrPromoteMixed(msg *mime.BodyPart) *mime.BodyPart {
	if msg.ContentType().FullType() == "multipart/mixed" {
		return msg
	}

	// Push the existing root content into a new child part, carrying its
	// header fields that are part-specific (Content-Type/-Disposition/
	// -Transfer-Encoding/-ID) rather than message-level (To/From/Subject).
	original := mime.NewBodyPart()
	original.Header = msg.Header
	original.Body = msg.Body
	for _, kid := range original.Body.Parts {
		kid.Parent = original
	}

	msg.Header = header.Header{}
	var partEntries []header.Entry
	for _, e := range original.Header.Entries {
		if isMessageLevel(e.Key) {
			msg.Header.Add(e.Key, e.Value)
		} else {
			partEntries = append(partEntries, e)
		}
	}
	original.Header = header.Header{Entries: partEntries}

	msg.Header.Set("Content-Type", []byte("multipart/mixed"))
	msg.Body = &mime.Body{}
	msg.AddChild(original)
	return msg
}

func isMessageLevel(k header.Key) bool {
	switch k {
	case "From", "Sender", "Reply-To", "To", "Cc", "Bcc", "Date", "Subject",
		"Message-ID", "In-Reply-To", "References", "MIME-Version":
		return true
	}
	return false
}

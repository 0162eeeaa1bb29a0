package textpart

import (
	"strings"
	"testing"

	"mailkit.dev/mailkit/content"
	"mailkit.dev/mailkit/mime"
)

func TestPlainTextPartBuildPart(t *testing.T) {
	p := NewPlainTextPart("hello there")
	if p.PartCount() != 1 {
		t.Fatalf("PartCount() = %d, want 1", p.PartCount())
	}
	bp := p.BuildPart()
	if got := bp.ContentType().FullType(); got != "text/plain" {
		t.Fatalf("ContentType = %q", got)
	}
	var out strings.Builder
	if err := bp.Body.Content.Extract(&out, nil); err != nil {
		t.Fatal(err)
	}
	if out.String() != "hello there" {
		t.Fatalf("content = %q", out.String())
	}
}

func TestHTMLTextPartAloneWhenNoObjectsOrAlt(t *testing.T) {
	h := NewHTMLTextPart("<html><body>hi</body></html>")
	bp := h.BuildPart()
	if got := bp.ContentType().FullType(); got != "text/html" {
		t.Fatalf("ContentType = %q, want text/html", got)
	}
}

func TestHTMLTextPartWithPlainAltWrapsAlternative(t *testing.T) {
	h := NewHTMLTextPart("<p>hi</p>")
	h.PlainAlt = "hi"
	bp := h.BuildPart()
	if got := bp.ContentType().FullType(); got != "multipart/alternative" {
		t.Fatalf("ContentType = %q, want multipart/alternative", got)
	}
	if bp.Body.PartCount() != 2 {
		t.Fatalf("PartCount = %d, want 2", bp.Body.PartCount())
	}
	if got := bp.Body.Parts[0].ContentType().FullType(); got != "text/plain" {
		t.Fatalf("first alternative = %q, want text/plain", got)
	}
}

func TestCollectEmbeddedMatchesByContentID(t *testing.T) {
	root := mime.NewBodyPart()
	root.Header.Set("Content-Type", []byte("multipart/related; boundary=b"))
	root.Body = &mime.Body{}

	htmlPart := mime.NewBodyPart()
	htmlPart.Header.Set("Content-Type", []byte("text/html"))
	htmlPart.Body.Content = content.NewMemory([]byte(`<img src="cid:logo123">`))
	root.AddChild(htmlPart)

	imgPart := mime.NewBodyPart()
	imgPart.Header.Set("Content-Type", []byte("image/png"))
	imgPart.Header.Set("Content-ID", []byte("<logo123>"))
	imgPart.Body.Content = content.NewMemory([]byte("fakepngbytes"))
	root.AddChild(imgPart)

	h := &HTMLTextPart{HTML: `<img src="cid:logo123">`}
	h.CollectEmbedded(root)

	if len(h.Embedded) != 1 {
		t.Fatalf("Embedded = %d entries, want 1", len(h.Embedded))
	}
	if h.Embedded[0].ID != "logo123" {
		t.Fatalf("Embedded[0].ID = %q, want logo123", h.Embedded[0].ID)
	}
	if h.Embedded[0].Reference != ByID {
		t.Fatalf("Embedded[0].Reference = %v, want ByID", h.Embedded[0].Reference)
	}
}

func TestCollectEmbeddedIgnoresUnreferencedParts(t *testing.T) {
	root := mime.NewBodyPart()
	root.Body = &mime.Body{}
	unrelated := mime.NewBodyPart()
	unrelated.Header.Set("Content-ID", []byte("<other>"))
	root.AddChild(unrelated)

	h := &HTMLTextPart{HTML: `<p>no images here</p>`}
	h.CollectEmbedded(root)
	if len(h.Embedded) != 0 {
		t.Fatalf("Embedded = %d entries, want 0", len(h.Embedded))
	}
}

func TestHTMLTextPartWithEmbeddedWrapsRelated(t *testing.T) {
	h := NewHTMLTextPart(`<img src="cid:x">`)
	h.Embedded = []EmbeddedObject{{
		Content:   content.NewMemory([]byte("img-bytes")),
		ID:        "x",
		MediaType: "image/png",
		Reference: ByID,
	}}
	bp := h.BuildPart()
	if got := bp.ContentType().FullType(); got != "multipart/related" {
		t.Fatalf("ContentType = %q, want multipart/related", got)
	}
	if bp.Body.PartCount() != 2 {
		t.Fatalf("PartCount = %d, want 2 (html + embedded object)", bp.Body.PartCount())
	}
}

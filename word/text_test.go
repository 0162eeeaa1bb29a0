package word

import (
	"testing"

	"mailkit.dev/mailkit/component"
)

func TestUnfoldCollapsesFoldedWhitespace(t *testing.T) {
	in := "Subject: hello\r\n world"
	want := "Subject: hello world"
	if got := Unfold(in); got != want {
		t.Fatalf("Unfold(%q) = %q, want %q", in, got, want)
	}
}

func TestUnfoldBareLF(t *testing.T) {
	in := "a\n\tb"
	if got := Unfold(in); got != "a b" {
		t.Fatalf("Unfold(%q) = %q", in, got)
	}
}

func TestParseMultipleRFC2047RoundTrip(t *testing.T) {
	in := "=?iso-8859-1?Q?Hello_=E9?= World"
	text := ParseMultiple(in, "us-ascii")
	if len(text.Words) != 2 {
		t.Fatalf("got %d words, want 2: %+v", len(text.Words), text.Words)
	}
	if got := string(text.Words[0].Buffer); got != "Hello \xe9" {
		t.Fatalf("word0 = %q", got)
	}
	if !text.Words[0].wasEncodedWord {
		t.Fatalf("word0 should be marked as encoded-word")
	}

	ctx := component.DefaultGenerationContext()
	out, _ := text.EncodeAndFold(ctx, 0)
	// Only 5 of the 7 bytes of "Hello \xe9" survive Q unchanged (under
	// 75%), so re-encoding picks B.
	want := "=?iso-8859-1?B?SGVsbG8g6Q==?= World"
	if out != want {
		t.Fatalf("EncodeAndFold round trip = %q, want %q", out, want)
	}
	back := ParseMultiple(out, "us-ascii")
	if len(back.Words) != 2 || string(back.Words[0].Buffer) != "Hello \xe9" {
		t.Fatalf("re-parsed words = %+v", back.Words)
	}
}

func TestParseMultipleNoEncodedWordsEqualsUnfold(t *testing.T) {
	in := "plain subject line"
	text := ParseMultiple(in, "us-ascii")
	if got := text.GetWholeBuffer(); got != Unfold(in) {
		t.Fatalf("GetWholeBuffer = %q, want %q", got, Unfold(in))
	}
}

func TestMergeAdjacentEncodedWordsSameCharset(t *testing.T) {
	in := "=?utf-8?Q?Hello?= =?utf-8?Q?World?="
	text := ParseMultiple(in, "us-ascii")
	if len(text.Words) != 1 {
		t.Fatalf("expected adjacent same-charset encoded-words to merge, got %d words", len(text.Words))
	}
	if got := string(text.Words[0].Buffer); got != "HelloWorld" {
		t.Fatalf("merged buffer = %q", got)
	}
}

func TestMergeAdjacentEncodedWordsDifferentCharsetKeepsSeparator(t *testing.T) {
	in := "=?utf-8?Q?Hello?= =?iso-8859-1?Q?World?="
	text := ParseMultiple(in, "us-ascii")
	if len(text.Words) != 3 {
		t.Fatalf("expected 3 words (no merge across charsets), got %d", len(text.Words))
	}
}

func TestEncodeAndFoldWrapsLongLines(t *testing.T) {
	words := make([]Word, 0, 10)
	for i := 0; i < 10; i++ {
		words = append(words, NewWord("wordwordword", "us-ascii"))
	}
	text := NewText(words...)
	ctx := &component.GenerationContext{MaxLineLength: 30}
	out, _ := text.EncodeAndFold(ctx, 0)
	for _, line := range splitCRLF(out) {
		if len(line) > 30 && !isSingleAtomLine(line) {
			t.Fatalf("line exceeds limit: %q (%d bytes)", line, len(line))
		}
	}
}

func splitCRLF(s string) []string {
	var lines []string
	cur := ""
	for i := 0; i < len(s); i++ {
		if s[i] == '\r' && i+1 < len(s) && s[i+1] == '\n' {
			lines = append(lines, cur)
			cur = ""
			i++
			continue
		}
		cur += string(s[i])
	}
	lines = append(lines, cur)
	return lines
}

func isSingleAtomLine(line string) bool {
	// a folded continuation line with no interior space is one unbreakable atom
	trimmed := line
	if len(trimmed) > 0 && trimmed[0] == ' ' {
		trimmed = trimmed[1:]
	}
	for _, r := range trimmed {
		if r == ' ' {
			return false
		}
	}
	return true
}

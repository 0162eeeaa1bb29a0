package word

import (
	"strings"
	"unicode"

	"mailkit.dev/mailkit/charset"
	"mailkit.dev/mailkit/component"
)

// Text is an ordered sequence of Words, the decoded form of a header value
// that may mix encoded-words (RFC 2047) with literal runs.
type Text struct {
	component.Base
	Words []Word
}

// GetWholeBuffer concatenates every word's buffer into one string.
// Adjacent words that share a charset and whose buffers carry no
// whitespace at the join point are separated by a single inserted space,
// per spec §3; all other adjacencies concatenate directly (this is how a
// literal run's own leading/trailing whitespace survives unfolding).
func (t Text) GetWholeBuffer() string {
	var sb strings.Builder
	for i, w := range t.Words {
		if i > 0 {
			prev := t.Words[i-1]
			if charset.Equal(prev.Charset, w.Charset) && !endsWithSpace(prev.Buffer) && !startsWithSpace(w.Buffer) {
				sb.WriteByte(' ')
			}
		}
		sb.Write(w.Buffer)
	}
	return sb.String()
}

func endsWithSpace(b []byte) bool {
	return len(b) > 0 && unicode.IsSpace(rune(b[len(b)-1]))
}

func startsWithSpace(b []byte) bool {
	return len(b) > 0 && unicode.IsSpace(rune(b[0]))
}

// Unfold collapses every CRLF (or bare LF) followed by one or more SP/TAB
// into a single SP, reversing header line folding (spec §4.1).
func Unfold(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '\r' && i+1 < len(s) && s[i+1] == '\n' {
			i += 2
			if i < len(s) && (s[i] == ' ' || s[i] == '\t') {
				sb.WriteByte(' ')
				for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
					i++
				}
				continue
			}
			sb.WriteString("\r\n")
			continue
		}
		if c == '\n' && i+1 < len(s) && (s[i+1] == ' ' || s[i+1] == '\t') {
			i++
			sb.WriteByte(' ')
			for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
				i++
			}
			continue
		}
		sb.WriteByte(c)
		i++
	}
	return sb.String()
}

// ParseMultiple splits a raw (already-unfolded) header value into a Text:
// a sequence of Words alternating decoded encoded-words and literal runs
// in defaultCharset. Adjacent encoded-words that decode to the same
// charset and are separated only by whitespace are merged into a single
// Word with that whitespace elided, per RFC 2047 §6.2.
func ParseMultiple(raw string, defaultCharset charset.Name) Text {
	var words []Word
	locs := encodedWordRE.FindAllStringIndex(raw, -1)

	pos := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		if start > pos {
			literal := raw[pos:start]
			words = append(words, Word{Charset: defaultCharset, Buffer: []byte(literal)})
		}
		w := Decode(raw[start:end])
		words = append(words, w)
		pos = end
	}
	if pos < len(raw) {
		words = append(words, Word{Charset: defaultCharset, Buffer: []byte(raw[pos:])})
	}

	words = mergeAdjacentEncoded(words)
	return Text{Words: words}
}

func isAllWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return s != ""
}

// mergeAdjacentEncoded collapses "encoded-word, whitespace-only literal,
// encoded-word" triples into one Word when the two encoded-words share a
// charset, eliding the whitespace per RFC 2047 §6.2. When the charsets
// differ the whitespace literal is kept.
func mergeAdjacentEncoded(words []Word) []Word {
	out := make([]Word, 0, len(words))
	i := 0
	for i < len(words) {
		if i+2 < len(words) &&
			words[i].wasEncodedWord && words[i+2].wasEncodedWord &&
			isWhitespaceWord(words[i+1]) &&
			charset.Equal(words[i].Charset, words[i+2].Charset) {
			merged := Word{
				Charset:        words[i].Charset,
				Buffer:         append(append([]byte{}, words[i].Buffer...), words[i+2].Buffer...),
				wasEncodedWord: true,
			}
			out = append(out, merged)
			i += 3
			continue
		}
		out = append(out, words[i])
		i++
	}
	return out
}

func isWhitespaceWord(w Word) bool { return isAllWhitespace(string(w.Buffer)) }

// NewText builds a Text from the given words.
func NewText(words ...Word) Text { return Text{Words: words} }

// EncodeAndFold renders t as a folded header value: each word is encoded
// (as an encoded-word if needed) and emitted so that no line exceeds
// ctx.LineLimit(), folding with CRLF + single SP before any atom that
// would cross the limit. Atoms that cannot be split (a single
// encoded-word) are emitted verbatim with the column tracked regardless.
func (t Text) EncodeAndFold(ctx *component.GenerationContext, startColumn int) (string, int) {
	col := startColumn
	var sb strings.Builder
	limit := ctx.LineLimit()
	prevAtom := ""

	for i, w := range t.Words {
		atom := w.Encode(false)
		sep := ""
		if i > 0 && !endsWithSpace(prevAtom) && !beginsWithSpace(atom) {
			sep = " "
		}
		need := len(sep) + len(atom)
		if col > 0 && col+need > limit {
			sb.WriteString("\r\n ")
			col = 1
			sep = ""
		} else {
			sb.WriteString(sep)
			col += len(sep)
		}
		sb.WriteString(atom)
		col += len(atom)
		prevAtom = atom
	}
	return sb.String(), col
}

func beginsWithSpace(s string) bool {
	return len(s) > 0 && (s[0] == ' ' || s[0] == '\t')
}

func endsWithSpace(s string) bool {
	return len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t')
}

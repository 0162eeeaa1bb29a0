// Package charset identifies character sets by name and converts text
// between them through a pluggable backend: a Unicode-routed converter for
// the common IANA sets (backed by golang.org/x/text), the code-page
// converters for Windows-only sets, and a built-in IDNA/punycode
// pseudo-charset for host name labels.
package charset

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// Name is a case-insensitive character-set identifier.
type Name string

// aliases maps a handful of common non-IANA spellings onto the name
// golang.org/x/text/encoding/ianaindex recognizes.
var aliases = map[string]string{
	"latin1":     "iso-8859-1",
	"latin-1":    "iso-8859-1",
	"us-ascii":   "us-ascii",
	"ascii":      "us-ascii",
	"utf8":       "utf-8",
	"unicode":    "utf-16",
	"unknown-8bit": "iso-8859-1",
	"gb2312":     "gbk",
	"gb-2312":    "gbk",
}

// Normalize lower-cases name and resolves it through the alias table, so
// that two spellings of the same charset compare equal.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[n]; ok {
		return alias
	}
	return n
}

// Equal reports whether a and b name the same charset.
func Equal(a, b Name) bool { return Normalize(string(a)) == Normalize(string(b)) }

// IsASCIISafe reports whether charset name is a strict subset of ASCII, so
// that bytes in it never need quoted-printable/base64 escaping for
// transfer or encoded-word purposes.
func IsASCIISafe(name Name) bool {
	switch Normalize(string(name)) {
	case "us-ascii", "":
		return true
	}
	return false
}

// RecommendedEncoding returns the transfer encoding (spec §4.5) best
// suited to charset name: 7bit for ASCII-safe charsets, quoted-printable
// for everything else (a superset including UTF-8 and Latin-family sets
// where most bytes are likely to be in the printable range), matching
// vmime's charset::getRecommendedEncoding.
func RecommendedEncoding(name Name) string {
	if IsASCIISafe(name) {
		return "7bit"
	}
	return "quoted-printable"
}

// IDNAPseudoCharset is the pseudo-charset name used to request
// punycode/IDNA conversion of a host name label (spec §4.6).
const IDNAPseudoCharset Name = "idna"

// Converter decodes from one charset and encodes to another. When the
// destination cannot encode the decoded text, U+FFFD runes are replaced with
// Replacement ("?" when empty) and encoding is retried once; any other
// character the destination cannot represent makes Convert return an error.
type Converter struct {
	From, To    Name
	Replacement string
}

// NewConverter builds a Converter from one named charset to another.
func NewConverter(from, to Name) *Converter {
	return &Converter{From: from, To: to}
}

// Convert reads from src until EOF, decodes it from c.From, encodes the
// result to c.To, and writes it to dst. It is the streaming form of the
// converter contract in spec §4.6.
func (c *Converter) Convert(dst io.Writer, src io.Reader) error {
	if Normalize(string(c.From)) == IDNAPseudoCharset.normalized() ||
		Normalize(string(c.To)) == IDNAPseudoCharset.normalized() {
		raw, err := io.ReadAll(src)
		if err != nil {
			return err
		}
		out, err := c.convertIDNA(string(raw))
		if err != nil {
			return err
		}
		_, err = io.WriteString(dst, out)
		return err
	}

	decEnc, err := lookup(c.From)
	if err != nil {
		return err
	}
	encEnc, err := lookup(c.To)
	if err != nil {
		return err
	}
	if decEnc == encEnc {
		_, err := io.Copy(dst, src)
		return err
	}

	dec := decEnc.NewDecoder()
	raw, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	utf8Text, err := dec.Bytes(raw)
	if err != nil {
		// Tolerant: fall back to the raw bytes, matching the kernel's
		// never-throw-for-recoverable-input policy.
		utf8Text = raw
	}

	enc := encEnc.NewEncoder()
	out, err := enc.Bytes(utf8Text)
	if err != nil {
		repl := c.Replacement
		if repl == "" {
			repl = "?"
		}
		out = []byte(strings.ReplaceAll(string(utf8Text), "�", repl))
		out, err = enc.Bytes(out)
		if err != nil {
			return err
		}
	}
	_, err = dst.Write(out)
	return err
}

// ConvertString is the string form of Convert.
func (c *Converter) ConvertString(src string) (string, error) {
	buf := new(bytes.Buffer)
	if err := c.Convert(buf, strings.NewReader(src)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FilterWriter wraps w so that every Write is transcoded from c.From to
// c.To before reaching w, for insertion into a generation pipeline.
func (c *Converter) FilterWriter(w io.Writer) io.Writer {
	return &filterWriter{conv: c, w: w}
}

type filterWriter struct {
	conv *Converter
	w    io.Writer
}

func (f *filterWriter) Write(p []byte) (int, error) {
	if err := f.conv.Convert(f.w, bytes.NewReader(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (n Name) normalized() string { return Normalize(string(n)) }

// lookup resolves a charset Name to a golang.org/x/text encoding, trying
// the IANA index first and falling back to the Windows code-page table for
// names ianaindex does not carry (e.g. legacy "windows-125x" spellings are
// covered by ianaindex already; this fallback exists for names it omits,
// such as GBK's common aliases).
func lookup(name Name) (encoding.Encoding, error) {
	n := Normalize(string(name))
	if n == "utf-8" || n == "" {
		return encoding.Nop, nil
	}
	if enc, err := ianaindex.IANA.Encoding(n); err == nil && enc != nil {
		return enc, nil
	}
	switch n {
	case "gbk", "gb18030":
		return simplifiedchinese.GBK, nil
	case "gb2312":
		return simplifiedchinese.HZGB2312, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	}
	return nil, fmt.Errorf("charset: unknown charset %q", name)
}

// convertIDNA implements the IDNA pseudo-charset conversion of spec §4.6:
// per host-name label, encode to punycode ("xn--" prefix) when converting
// to idna and any non-ASCII byte is present; decode when converting from
// idna and the "xn--" prefix is detected. ASCII-only labels pass through
// unchanged either way.
func (c *Converter) convertIDNA(src string) (string, error) {
	toIDNA := Normalize(string(c.To)) == IDNAPseudoCharset.normalized()
	labels := strings.Split(src, ".")
	for i, label := range labels {
		if toIDNA {
			if isASCII(label) {
				continue
			}
			enc, err := idna.ToASCII(label)
			if err != nil {
				return "", fmt.Errorf("charset: idna encode %q: %w", label, err)
			}
			labels[i] = enc
		} else {
			if !strings.HasPrefix(strings.ToLower(label), "xn--") {
				continue
			}
			dec, err := idna.ToUnicode(label)
			if err != nil {
				return "", fmt.Errorf("charset: idna decode %q: %w", label, err)
			}
			labels[i] = dec
		}
	}
	return strings.Join(labels, "."), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}

package imapstore

// Mailbox name encoding: RFC 3501 §5.1.3's "modified UTF-7", the
// encoding IMAP uses on the wire for any mailbox name containing
// non-ASCII characters (modified base64 with "," replacing "/", and no
// padding).
//
// Adapted from imap/imapparser/utf7mod.go, the teacher's server-side
// decoder/encoder, folded into this package instead of a standalone
// package. The encoder is applied to every mailbox name sent in a
// command (via quoteMailbox); no command of this package parses a
// mailbox name back out of a response, so the decoder is not called by
// the package's commands.

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

const modifiedUTF7Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+,"

var modifiedUTF7 = base64.NewEncoding(modifiedUTF7Alphabet).WithPadding(base64.NoPadding)

// encodeMailboxUTF7 renders name (a Go string, implicitly UTF-8) as
// modified UTF-7 for use on the wire. Pure-ASCII names pass through
// unchanged except that each '&' becomes "&-", which covers every name this module's own Store/Folder
// ever generates; the encoder exists for interop with servers that hand
// back or expect non-ASCII hierarchy names.
func encodeMailboxUTF7(name string) string {
	src := []byte(name)
	dst := make([]byte, 0, len(src))
	for len(src) > 0 {
		r, _ := utf8.DecodeRune(src)
		switch {
		case r == '&':
			dst = append(dst, '&', '-')
			src = src[1:]
		case r < utf8.RuneSelf:
			dst = append(dst, byte(r))
			src = src[1:]
		default:
			var utf16be []byte
			for len(src) > 0 {
				r, sz := utf8.DecodeRune(src)
				if r < utf8.RuneSelf {
					break
				}
				src = src[sz:]
				if hi, lo := utf16.EncodeRune(r); hi != '\uFFFD' {
					utf16be = append(utf16be, byte(hi>>8), byte(hi))
					r = lo
				}
				utf16be = append(utf16be, byte(r>>8), byte(r))
			}
			encLen := modifiedUTF7.EncodedLen(len(utf16be))
			dst = append(dst, '&')
			dst = append(dst, make([]byte, encLen)...)
			modifiedUTF7.Encode(dst[len(dst)-encLen:], utf16be)
			dst = append(dst, '-')
		}
	}
	return string(dst)
}

// decodeMailboxUTF7 reverses encodeMailboxUTF7, tolerating malformed
// input by returning the error rather than panicking (spec §4.1's
// tolerant-recovery posture extended to this wire encoding).
func decodeMailboxUTF7(wire string) (string, error) {
	src := []byte(wire)
	var dst []byte
	for len(src) > 0 {
		c := src[0]
		src = src[1:]
		if c != '&' {
			dst = append(dst, c)
			continue
		}
		i := bytes.IndexByte(src, '-')
		if i < 0 {
			return "", fmt.Errorf("imapstore: malformed modified UTF-7 mailbox name %q", wire)
		}
		if i == 0 {
			src = src[1:]
			dst = append(dst, '&')
			continue
		}
		raw := make([]byte, modifiedUTF7.DecodedLen(i))
		n, err := modifiedUTF7.Decode(raw, src[:i])
		if err != nil {
			return "", fmt.Errorf("imapstore: decode modified UTF-7: %v", err)
		}
		raw = raw[:n]
		src = src[i+1:]
		for len(raw) >= 2 {
			r := rune(raw[0])<<8 | rune(raw[1])
			raw = raw[2:]
			if utf16.IsSurrogate(r) {
				if len(raw) < 2 {
					return "", fmt.Errorf("imapstore: truncated surrogate pair in mailbox name %q", wire)
				}
				r2 := rune(raw[0])<<8 | rune(raw[1])
				raw = raw[2:]
				r = utf16.DecodeRune(r, r2)
			}
			var buf [4]byte
			dst = append(dst, buf[:utf8.EncodeRune(buf[:], r)]...)
		}
	}
	return string(dst), nil
}

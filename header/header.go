// Package header implements the MIME Header: an ordered list of fields
// with canonical-name lookup, plus a process-wide field registry mapping
// names to parser/value-type constructors (spec §4.3).
//
// The ordered-entry list and line-folding generation are adapted from the
// teacher's email/header.go; the registry and typed Field/Value split are
// new, generalizing the teacher's untyped []byte values into the typed
// dispatch table spec §4.3 requires.
package header

import (
	"bytes"
	"fmt"
	"io"
)

// Key is a canonical MIME header field name, e.g. "Content-Type".
type Key string

// Entry is one raw header line: a canonical key and its unparsed,
// unfolded value bytes.
type Entry struct {
	Key   Key
	Value []byte
}

// Header is an ordered sequence of header entries. Duplicate keys are
// permitted; Get returns the first match.
type Header struct {
	Entries []Entry
	index   map[Key][]int // key -> indexes into Entries, lazily built
}

// Add appends a new entry, keeping any existing entries with the same key.
func (h *Header) Add(k Key, v []byte) {
	h.Entries = append(h.Entries, Entry{Key: k, Value: v})
	h.index = nil
}

// Set removes every existing entry for k and adds a single new one.
func (h *Header) Set(k Key, v []byte) {
	h.Del(k)
	h.Add(k, v)
}

func (h *Header) buildIndex() {
	h.index = make(map[Key][]int, len(h.Entries))
	for i, e := range h.Entries {
		h.index[e.Key] = append(h.index[e.Key], i)
	}
}

// Get returns the value of the first entry with key k, or nil if absent.
func (h *Header) Get(k Key) []byte {
	if h.index == nil {
		h.buildIndex()
	}
	idxs := h.index[k]
	if len(idxs) == 0 {
		return nil
	}
	return h.Entries[idxs[0]].Value
}

// GetAll returns the values of every entry with key k, in document order.
func (h *Header) GetAll(k Key) [][]byte {
	if h.index == nil {
		h.buildIndex()
	}
	idxs := h.index[k]
	if len(idxs) == 0 {
		return nil
	}
	out := make([][]byte, len(idxs))
	for i, idx := range idxs {
		out[i] = h.Entries[idx].Value
	}
	return out
}

// Has reports whether any entry has key k.
func (h *Header) Has(k Key) bool { return h.Get(k) != nil }

// Del removes every entry with key k.
func (h *Header) Del(k Key) {
	var kept []Entry
	for _, e := range h.Entries {
		if e.Key != k {
			kept = append(kept, e)
		}
	}
	h.Entries = kept
	h.index = nil
}

// DelAt removes the entry at position i by identity (its slice index),
// used when a caller holds a reference obtained from Entries directly
// rather than a key.
func (h *Header) DelAt(i int) {
	if i < 0 || i >= len(h.Entries) {
		return
	}
	h.Entries = append(h.Entries[:i], h.Entries[i+1:]...)
	h.index = nil
}

// Encode writes every entry, folded to fit within 78 columns where
// possible (998 where it is not), followed by the blank line ending the
// header block.
func (h *Header) Encode(w io.Writer) (n int, err error) {
	for _, e := range h.Entries {
		n2, err := e.Encode(w)
		n += n2
		if err != nil {
			return n, err
		}
	}
	n2, err := io.WriteString(w, "\r\n")
	n += n2
	return n, err
}

func (h Header) String() string {
	buf := new(bytes.Buffer)
	if _, err := h.Encode(buf); err != nil {
		return fmt.Sprintf("header.Header(encode error: %v)", err)
	}
	return buf.String()
}

// Encode writes one "Key: Value\r\n" entry, folding the value across
// continuation lines so no line exceeds 78 columns if a fold point
// exists, escalating to the RFC 5322 §2.1.1 998-column hard ceiling only
// when it does not (spec §4.1).
func (e *Entry) Encode(w io.Writer) (n int, err error) {
	if len(e.Value) == 0 {
		return fmt.Fprintf(w, "%s:\r\n", e.Key)
	}
	written, err := fmt.Fprintf(w, "%s: ", e.Key)
	n += written
	if err != nil {
		return n, err
	}

	const padding = "    "
	v := e.Value
	spent := len(e.Key) + len(": ")
	limit := 78
	first := true

	for {
		if len(v) < limit-spent {
			if !first {
				w2, err := fmt.Fprintf(w, "\r\n%s", padding)
				n += w2
				if err != nil {
					return n, err
				}
			}
			w2, err := w.Write(v)
			n += w2
			if err != nil {
				return n, err
			}
			w3, err := io.WriteString(w, "\r\n")
			n += w3
			return n, err
		}
		i := limit - spent - 1
		for ; i > 0; i-- {
			if v[i] == ' ' {
				break
			}
		}
		if i == 0 {
			if limit == 78 {
				limit = 998
				continue
			}
			i = 998 - spent
			if i > len(v) {
				i = len(v)
			}
		}
		if first {
			w2, err := w.Write(v[:i])
			n += w2
			if err != nil {
				return n, err
			}
			first = false
		} else {
			w2, err := fmt.Fprintf(w, "\r\n%s", padding)
			n += w2
			if err != nil {
				return n, err
			}
			w3, err := w.Write(v[:i])
			n += w3
			if err != nil {
				return n, err
			}
		}
		spent = len(padding)
		limit = 78
		v = v[i:]
	}
}

// CanonicalKey canonicalizes a raw header field name the way the teacher
// does: common headers get their conventional mixed-case spelling from a
// static table; anything else gets each letter following a '-' (or the
// first letter) upper-cased.
func CanonicalKey(name []byte) Key {
	b := append([]byte(nil), name...)
	asciiLower(b)
	if canon, ok := commonKeys[string(b)]; ok {
		return Key(canon)
	}
	for i, c := range b {
		if c >= 'a' && c <= 'z' && (i == 0 || b[i-1] == '-') {
			b[i] -= 'a' - 'A'
		}
	}
	return Key(b)
}

func asciiLower(data []byte) {
	for i, b := range data {
		if b >= 'A' && b <= 'Z' {
			data[i] = b + ('a' - 'A')
		}
	}
}

// commonKeys holds the canonical mixed-case spelling of the header names
// this package's registry pre-populates (spec §4.3's table), plus a
// handful of others frequently seen on the wire.
var commonKeys = map[string]string{
	"from":                      "From",
	"sender":                    "Sender",
	"reply-to":                  "Reply-To",
	"delivered-to":              "Delivered-To",
	"to":                        "To",
	"cc":                        "Cc",
	"bcc":                       "Bcc",
	"date":                      "Date",
	"received":                  "Received",
	"subject":                   "Subject",
	"organization":              "Organization",
	"user-agent":                "User-Agent",
	"content-description":       "Content-Description",
	"mime-version":              "MIME-Version",
	"content-location":          "Content-Location",
	"return-path":               "Return-Path",
	"content-type":              "Content-Type",
	"content-transfer-encoding": "Content-Transfer-Encoding",
	"content-disposition":       "Content-Disposition",
	"message-id":                "Message-ID",
	"content-id":                "Content-ID",
	"original-message-id":       "Original-Message-ID",
	"in-reply-to":               "In-Reply-To",
	"references":                "References",
	"disposition":               "Disposition",
	"disposition-notification-to": "Disposition-Notification-To",
}

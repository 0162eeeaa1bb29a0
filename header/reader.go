package header

import (
	"bufio"
	"bytes"
)

// A Reader reads a MIME-style header block: a sequence of possibly-folded
// "Key: Value" lines ending in a blank line. Folded continuation lines are
// unfolded to a single space, matching spec §4.1; RFC 2047 decoding is
// deliberately deferred to field value access (spec §4.3's "value access
// parses on first read"), so Entry.Value holds the raw, unfolded bytes.
//
// Adapted from the teacher's third_party/imf Reader (itself a fork of
// net/textproto.Reader), minus its eager RFC 2047 decode step.
type Reader struct {
	r     *bufio.Reader
	buf   []byte
	nRead int
}

// NewReader returns a Reader reading header lines from r.
func NewReader(r *bufio.Reader) *Reader { return &Reader{r: r} }

// NumRead returns the number of bytes consumed from the underlying reader
// so far.
func (r *Reader) NumRead() int { return r.nRead }

func (r *Reader) readLineSlice() ([]byte, error) {
	var line []byte
	for {
		l, err := r.r.ReadSlice('\n')
		more := err == bufio.ErrBufferFull
		if err != nil && !more && len(l) == 0 {
			return nil, err
		}
		r.nRead += len(l)
		if !more {
			l = bytes.TrimSuffix(bytes.TrimSuffix(l, []byte("\n")), []byte("\r"))
		}
		if line == nil && !more {
			return l, nil
		}
		line = append(line, l...)
		if !more {
			break
		}
	}
	return line, nil
}

func (r *Reader) skipSpace() int {
	n := 0
	for {
		c, err := r.r.ReadByte()
		if err != nil {
			break
		}
		if c != ' ' && c != '\t' {
			r.r.UnreadByte()
			break
		}
		n++
	}
	r.nRead += n
	return n
}

func (r *Reader) readContinuedLineSlice() ([]byte, error) {
	line, err := r.readLineSlice()
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return line, nil
	}

	if r.r.Buffered() > 1 {
		peek, err := r.r.Peek(1)
		if err == nil && isASCIILetter(peek[0]) {
			return trim(line), nil
		}
	}

	r.buf = append(r.buf[:0], trim(line)...)
	for r.skipSpace() > 0 {
		line, err := r.readLineSlice()
		if err != nil {
			break
		}
		r.buf = append(r.buf, ' ')
		r.buf = append(r.buf, trim(line)...)
	}
	return r.buf, nil
}

// ProtocolError reports a structural violation of the header grammar. It
// is returned only in Strict mode; tolerant parsing recovers instead (see
// Reader.ReadMIMEHeader and its caller, mime.BodyPart.Parse).
type ProtocolError string

func (p ProtocolError) Error() string { return string(p) }

// ReadMIMEHeader reads one header block. In tolerant mode (the default)
// a malformed initial continuation line or an unparsable "Key:" line is
// skipped rather than aborting the whole header, per spec §4.1; set
// strict to get the RFC-literal all-or-nothing behaviour.
func (r *Reader) ReadMIMEHeader(strict bool) (Header, error) {
	var h Header

	if buf, err := r.r.Peek(1); err == nil && (buf[0] == ' ' || buf[0] == '\t') {
		line, err := r.readLineSlice()
		if err != nil {
			return h, err
		}
		if strict {
			return h, ProtocolError("malformed MIME header initial line: " + string(line))
		}
	}

	for {
		kv, err := r.readContinuedLineSlice()
		if len(kv) == 0 {
			return h, err
		}

		i := bytes.IndexByte(kv, ':')
		if i < 0 {
			if strict {
				return h, ProtocolError("malformed MIME header line: " + string(kv))
			}
			continue
		}
		endKey := i
		for endKey > 0 && kv[endKey-1] == ' ' {
			endKey--
		}
		key := CanonicalKey(kv[:endKey])
		if key == "" {
			continue
		}

		j := i + 1
		for j < len(kv) && (kv[j] == ' ' || kv[j] == '\t') {
			j++
		}
		value := append([]byte(nil), kv[j:]...)
		h.Add(key, value)

		if err != nil {
			return h, err
		}
	}
}

func isASCIILetter(b byte) bool {
	b |= 0x20
	return 'a' <= b && b <= 'z'
}

func trim(s []byte) []byte {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	n := len(s)
	for n > i && (s[n-1] == ' ' || s[n-1] == '\t') {
		n--
	}
	return s[i:n]
}

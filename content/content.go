// Package content implements the ContentHandler abstraction (spec §4.7):
// an abstract blob that can be extracted (decoded or verbatim) or
// generated (re-encoded to a target transfer encoding).
//
// Grounded on the teacher's use of crawshaw.io/iox.BufferFile as the
// backing store for part content (email/msgcleaver/msgcleaver.go's
// filer.BufferFile calls) and on msgbuilder.go's EncodeContent
// encode/decode-then-encode rule.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"crawshaw.io/iox"

	"mailkit.dev/mailkit/encoding"
)

// ProgressFunc is called periodically during extract/generate with the
// number of bytes processed so far, mirroring the original's progress
// listener contract. A nil ProgressFunc disables reporting.
type ProgressFunc func(current, total int64)

// Handler is an abstract content blob (spec §4.7).
type Handler interface {
	// Length returns the content's length in its current (declared)
	// encoding, or -1 if unknown.
	Length() int64
	// IsEmpty reports whether the handler holds zero bytes.
	IsEmpty() bool
	// IsEncoded reports whether the stored bytes are already encoded
	// (as opposed to raw/decoded).
	IsEncoded() bool
	// Encoding returns the declared transfer encoding name, or
	// "no-encoding" if the stored bytes are raw.
	Encoding() string
	// Extract decodes the content and writes the raw bytes to out.
	Extract(out io.Writer, progress ProgressFunc) error
	// ExtractRaw writes the content verbatim (still encoded, if it is).
	ExtractRaw(out io.Writer, progress ProgressFunc) error
	// Generate writes the content re-encoded to targetEncoding, wrapped
	// at maxLineLength where the encoding supports wrapping. If the
	// declared encoding already matches, bytes are copied through.
	Generate(out io.Writer, targetEncoding string, maxLineLength int, progress ProgressFunc) error
}

// NoEncoding is the sentinel encoding name for raw, unencoded content.
const NoEncoding = "no-encoding"

// Empty is the zero-length Handler: generates nothing, extracts nothing.
type Empty struct{}

func (Empty) Length() int64    { return 0 }
func (Empty) IsEmpty() bool    { return true }
func (Empty) IsEncoded() bool  { return false }
func (Empty) Encoding() string { return NoEncoding }
func (Empty) Extract(io.Writer, ProgressFunc) error    { return nil }
func (Empty) ExtractRaw(io.Writer, ProgressFunc) error { return nil }
func (Empty) Generate(io.Writer, string, int, ProgressFunc) error { return nil }

// Memory is an in-memory Handler: it owns a byte buffer (or a proxy over
// a substring of one) and carries an encoding tag describing the
// buffer's current state.
type Memory struct {
	buf      []byte
	encoding string // NoEncoding if buf holds raw bytes
}

// NewMemory wraps raw (undecoded, i.e. NoEncoding) bytes.
func NewMemory(raw []byte) *Memory { return &Memory{buf: raw, encoding: NoEncoding} }

// NewMemoryEncoded wraps bytes already encoded with the named encoding.
func NewMemoryEncoded(data []byte, encodingName string) *Memory {
	return &Memory{buf: data, encoding: encodingName}
}

func (m *Memory) Length() int64    { return int64(len(m.buf)) }
func (m *Memory) IsEmpty() bool    { return len(m.buf) == 0 }
func (m *Memory) IsEncoded() bool  { return m.encoding != NoEncoding && m.encoding != "" }
func (m *Memory) Encoding() string {
	if m.encoding == "" {
		return NoEncoding
	}
	return m.encoding
}

func (m *Memory) ExtractRaw(out io.Writer, progress ProgressFunc) error {
	_, err := copyWithProgress(out, bytes.NewReader(m.buf), int64(len(m.buf)), progress)
	return err
}

func (m *Memory) Extract(out io.Writer, progress ProgressFunc) error {
	if !m.IsEncoded() {
		return m.ExtractRaw(out, progress)
	}
	codec, ok := encoding.Lookup(m.encoding)
	if !ok {
		return m.ExtractRaw(out, progress)
	}
	_, err := codec.Decode(out, bytes.NewReader(m.buf), encoding.Properties{})
	return err
}

// Generate re-encodes to targetEncoding if the declared encoding differs,
// otherwise copies the stored bytes through unchanged (spec §4.7).
func (m *Memory) Generate(out io.Writer, targetEncoding string, maxLineLength int, progress ProgressFunc) error {
	if targetEncoding == "" {
		targetEncoding = NoEncoding
	}
	if m.Encoding() == targetEncoding || (targetEncoding == NoEncoding && !m.IsEncoded()) {
		_, err := copyWithProgress(out, bytes.NewReader(m.buf), int64(len(m.buf)), progress)
		return err
	}

	var raw bytes.Buffer
	if err := m.Extract(&raw, nil); err != nil {
		return err
	}
	if targetEncoding == NoEncoding {
		_, err := copyWithProgress(out, bytes.NewReader(raw.Bytes()), int64(raw.Len()), progress)
		return err
	}
	codec, ok := encoding.Lookup(targetEncoding)
	if !ok {
		return fmt.Errorf("content: unknown encoding %q", targetEncoding)
	}
	_, err := codec.Encode(out, bytes.NewReader(raw.Bytes()), encoding.Properties{MaxLineLength: maxLineLength, Text: true})
	return err
}

// Stream is a stream-backed Handler: a seekable (preferred) input stream
// plus a declared length and encoding. If the underlying stream is not
// seekable, extract/generate consume it exactly once and the handler
// becomes unusable afterward (spec §4.7).
type Stream struct {
	src      io.Reader
	length   int64
	encoding string
	filer    *iox.Filer
	buf      io.ReadSeeker // non-nil when src is seekable
	consumed bool
}

// NewStream wraps src (a *iox.BufferFile or any io.Reader) as a Handler.
// When src is seekable (an io.ReadSeeker such as *iox.BufferFile or
// *bytes.Reader), IsBuffered is true and every operation seeks back to the
// start first; otherwise the stream is single-use.
func NewStream(src io.Reader, length int64, encodingName string) *Stream {
	s := &Stream{src: src, length: length, encoding: encodingName}
	if rs, ok := src.(io.ReadSeeker); ok {
		s.buf = rs
	}
	return s
}

func (s *Stream) Length() int64    { return s.length }
func (s *Stream) IsEmpty() bool    { return s.length == 0 }
func (s *Stream) IsEncoded() bool  { return s.encoding != NoEncoding && s.encoding != "" }
func (s *Stream) Encoding() string {
	if s.encoding == "" {
		return NoEncoding
	}
	return s.encoding
}

// IsBuffered reports whether the underlying stream is seekable, i.e. can
// be read more than once.
func (s *Stream) IsBuffered() bool { return s.buf != nil }

func (s *Stream) reset() (io.Reader, error) {
	if s.buf != nil {
		if _, err := s.buf.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return s.buf, nil
	}
	if s.consumed {
		return nil, errors.New("content.Stream: non-seekable stream already consumed")
	}
	s.consumed = true
	return s.src, nil
}

func (s *Stream) ExtractRaw(out io.Writer, progress ProgressFunc) error {
	r, err := s.reset()
	if err != nil {
		return err
	}
	_, err = copyWithProgress(out, r, s.length, progress)
	return err
}

func (s *Stream) Extract(out io.Writer, progress ProgressFunc) error {
	r, err := s.reset()
	if err != nil {
		return err
	}
	if !s.IsEncoded() {
		_, err := copyWithProgress(out, r, s.length, progress)
		return err
	}
	codec, ok := encoding.Lookup(s.encoding)
	if !ok {
		_, err := copyWithProgress(out, r, s.length, progress)
		return err
	}
	_, err = codec.Decode(out, r, encoding.Properties{})
	return err
}

func (s *Stream) Generate(out io.Writer, targetEncoding string, maxLineLength int, progress ProgressFunc) error {
	if targetEncoding == "" {
		targetEncoding = NoEncoding
	}
	if s.Encoding() == targetEncoding || (targetEncoding == NoEncoding && !s.IsEncoded()) {
		r, err := s.reset()
		if err != nil {
			return err
		}
		_, err = copyWithProgress(out, r, s.length, progress)
		return err
	}

	var raw bytes.Buffer
	if err := s.Extract(&raw, nil); err != nil {
		return err
	}
	if targetEncoding == NoEncoding {
		_, err := copyWithProgress(out, bytes.NewReader(raw.Bytes()), int64(raw.Len()), progress)
		return err
	}
	codec, ok := encoding.Lookup(targetEncoding)
	if !ok {
		return fmt.Errorf("content: unknown encoding %q", targetEncoding)
	}
	_, err := codec.Encode(out, bytes.NewReader(raw.Bytes()), encoding.Properties{MaxLineLength: maxLineLength, Text: true})
	return err
}

func copyWithProgress(out io.Writer, in io.Reader, total int64, progress ProgressFunc) (int64, error) {
	if progress == nil {
		return io.Copy(out, in)
	}
	var n int64
	buf := make([]byte, 32*1024)
	for {
		rn, rerr := in.Read(buf)
		if rn > 0 {
			wn, werr := out.Write(buf[:rn])
			n += int64(wn)
			progress(n, total)
			if werr != nil {
				return n, werr
			}
		}
		if rerr == io.EOF {
			return n, nil
		}
		if rerr != nil {
			return n, rerr
		}
	}
}

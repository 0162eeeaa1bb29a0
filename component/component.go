// Package component implements the parse/generate kernel shared by every
// parseable email object: headers, fields, bodies, parts, addresses, words,
// dates, media types, dispositions, message-ids, and paths.
//
// The kernel performs no I/O. Parse walks a byte slice; Generate writes to
// an io.Writer while tracking the output column for line folding.
package component

import "io"

// Component is the shared contract of every parseable/generatable email
// object. Parse walks src[start:end) and returns the position it stopped
// at. Generate writes the component starting at output column startColumn
// and returns the column after the last byte written.
type Component interface {
	Parse(ctx *ParsingContext, src []byte, start, end int) (newPos int, err error)
	Generate(ctx *GenerationContext, w io.Writer, startColumn int) (newColumn int, err error)
	Range() (start, end int)
}

// Base is embedded by concrete components to record their parsed byte
// range. It is not itself a Component: concrete types supply Parse and
// Generate.
type Base struct {
	start, end int
}

// Range returns the [start, end) byte range this component occupied in the
// last input it was parsed from, or (0, 0) if it was never parsed.
func (b *Base) Range() (start, end int) { return b.start, b.end }

// SetRange records the byte range a Parse implementation consumed. Call it
// at the end of Parse before returning.
func (b *Base) SetRange(start, end int) { b.start, b.end = start, end }

// ParsingContext carries the knobs that must flow through recursive parses:
// the assumed charset for raw (non-MIME) bytes, the malformed-input policy,
// and structural limits.
type ParsingContext struct {
	// DefaultCharset is assumed for header values that declare no charset
	// and for bodies with no Content-Type.
	DefaultCharset string

	// Strict, when true, causes structural parse failures to be returned
	// as errors instead of tolerantly recovered. Default (false) is the
	// tolerant mode described in spec §4.1: malformed fields parse to a
	// recorded byte range plus a default value, never an error.
	Strict bool

	// MaxBoundaryLength is the boundary length limit reported by
	// BoundaryLimit. Zero selects the historical default of 100 (spec §9).
	// Multipart boundary discovery in package mime does not consult it; it
	// caps a discovered boundary at 70 characters.
	MaxBoundaryLength int
}

// BoundaryLimit returns ctx.MaxBoundaryLength, or the default of 100.
func (ctx *ParsingContext) BoundaryLimit() int {
	if ctx == nil || ctx.MaxBoundaryLength <= 0 {
		return 100
	}
	return ctx.MaxBoundaryLength
}

// Charset returns ctx.DefaultCharset, or "us-ascii".
func (ctx *ParsingContext) Charset() string {
	if ctx == nil || ctx.DefaultCharset == "" {
		return "us-ascii"
	}
	return ctx.DefaultCharset
}

// DefaultParsingContext is a tolerant context with us-ascii default
// charset and the historical boundary-recovery limits.
func DefaultParsingContext() *ParsingContext {
	return &ParsingContext{DefaultCharset: "us-ascii"}
}

// GenerationContext carries the knobs generation needs: the maximum line
// length to fold at (default 78, hard ceiling 998 per RFC 5322 §2.1.1), and
// the prolog/epilog text substituted for a multipart body that declares
// none.
type GenerationContext struct {
	// MaxLineLength is the soft wrap column. Zero selects 78.
	MaxLineLength int

	// DefaultPrologText/DefaultEpilogText are used by a multipart Body
	// when its own Prolog/Epilog is empty.
	DefaultPrologText string
	DefaultEpilogText string
}

const hardLineLimit = 998

// LineLimit returns ctx.MaxLineLength, or 78.
func (ctx *GenerationContext) LineLimit() int {
	if ctx == nil || ctx.MaxLineLength <= 0 {
		return 78
	}
	return ctx.MaxLineLength
}

// HardLineLimit is the RFC 5322 §2.1.1 ceiling that folding must never
// exceed, even when no fold point is available below the soft limit.
func (ctx *GenerationContext) HardLineLimit() int { return hardLineLimit }

// DefaultGenerationContext is a GenerationContext with the standard 78
// column soft wrap.
func DefaultGenerationContext() *GenerationContext {
	return &GenerationContext{MaxLineLength: 78}
}

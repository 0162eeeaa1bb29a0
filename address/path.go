package address

import "strings"

// Path is the RFC 5321/5322 "reverse-path"/"Return-Path" grammar: a single
// bracketed addr-spec, or the empty path "<>" used for bounce messages.
type Path struct {
	Addr string // empty for the null reverse-path
}

// ParsePath parses a Return-Path header value such as "<user@example.com>"
// or "<>".
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	s = strings.TrimSpace(s)
	if s == "" {
		return Path{}, nil
	}
	mb, err := ParseMailbox(s)
	if err != nil {
		// Tolerant: an unparsable path still round-trips as a bare
		// addr-spec rather than failing the whole header.
		return Path{Addr: s}, nil
	}
	return Path{Addr: mb.Addr}, nil
}

// String renders the path back to its bracketed wire form.
func (p Path) String() string {
	return "<" + p.Addr + ">"
}

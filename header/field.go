package header

import (
	"mime"
	"sort"
	"strings"
)

// Field is a lazily-parsed header field value: MediaType parses e.Value on
// first call and caches the result, matching spec §4.3's "value access
// parses on first read"; Parameters parses e.Value again on every call.
type Field struct {
	Entry
	mediaType  *MediaType
	mediaTypeErr error
	parsedMT   bool
	parameters *Parameters
}

// NewField wraps a raw Entry for typed access.
func NewField(e Entry) *Field { return &Field{Entry: e} }

// Text returns the field's value as plain, already-unfolded text.
// (RFC 2047 decoding is the caller's job via the word package, since not
// every field is word-encodable text — Content-Type, say, is not.)
func (f *Field) Text() string { return string(f.Value) }

// MediaType parses the field (normally Content-Type) as type/subtype plus
// parameters.
func (f *Field) MediaType() (MediaType, error) {
	if f.parsedMT {
		if f.mediaType == nil {
			return MediaType{}, f.mediaTypeErr
		}
		return *f.mediaType, nil
	}
	f.parsedMT = true
	mt, err := ParseMediaType(string(f.Value))
	if err != nil {
		f.mediaTypeErr = err
		return MediaType{}, err
	}
	f.mediaType = &mt
	return mt, nil
}

// Parameters parses the field as a bare value plus a ";"-separated
// parameter list (e.g. Content-Disposition's "attachment; filename=...").
func (f *Field) Parameters() (string, *Parameters, error) {
	value, params, err := mime.ParseMediaType(string(f.Value))
	if err != nil {
		// Tolerant: a field with unparsable parameters still yields its
		// bare value with no parameters, rather than failing.
		return firstToken(string(f.Value)), &Parameters{}, nil
	}
	p := &Parameters{}
	for k, v := range params {
		p.Set(k, v)
	}
	f.parameters = p
	return value, p, nil
}

func firstToken(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

// MediaType is the (type, subtype, parameters) value of a Content-Type
// field (spec §3). Parameter storage and RFC 2231 continuation/charset
// handling is delegated to the standard library's mime package, which
// already implements the continuation and charset'lang' extended-value
// grammar the teacher's own msgbuilder/msgcleaver rely on (both import
// "mime" directly).
type MediaType struct {
	Type, SubType string
	Params        *Parameters
}

// FullType returns "type/subtype".
func (mt MediaType) FullType() string { return mt.Type + "/" + mt.SubType }

// IsMultipart reports whether the media type is any multipart/* subtype.
func (mt MediaType) IsMultipart() bool { return strings.EqualFold(mt.Type, "multipart") }

// IsMessage reports whether the media type is message/rfc822 or a sibling
// message/* subtype.
func (mt MediaType) IsMessage() bool { return strings.EqualFold(mt.Type, "message") }

// ParseMediaType parses a Content-Type-shaped value.
func ParseMediaType(raw string) (MediaType, error) {
	full, params, err := mime.ParseMediaType(raw)
	if err != nil {
		// Tolerant recovery (spec §4.1): default to text/plain rather
		// than fail the enclosing BodyPart parse.
		return MediaType{Type: "text", SubType: "plain", Params: &Parameters{}}, nil
	}
	t, s := "application", "octet-stream"
	if i := strings.IndexByte(full, '/'); i >= 0 {
		t, s = full[:i], full[i+1:]
	} else if full != "" {
		t = full
	}
	p := &Parameters{}
	for k, v := range params {
		p.Set(k, v)
	}
	return MediaType{Type: t, SubType: s, Params: p}, nil
}

// String renders the media type back to its wire form.
func (mt MediaType) String() string {
	if mt.Params == nil || mt.Params.Len() == 0 {
		return mt.FullType()
	}
	return mime.FormatMediaType(mt.FullType(), mt.Params.Map())
}

// Parameters is an ordered, case-insensitive-keyed parameter list (the
// ";name=value" pairs of a parameterized header field).
type Parameters struct {
	names  []string // canonical (lower-case) order of insertion
	values map[string]string
}

// Get looks up a parameter by name, case-insensitively.
func (p *Parameters) Get(name string) (string, bool) {
	if p == nil || p.values == nil {
		return "", false
	}
	v, ok := p.values[strings.ToLower(name)]
	return v, ok
}

// Set adds or replaces a parameter, preserving first-seen order.
func (p *Parameters) Set(name, value string) {
	key := strings.ToLower(name)
	if p.values == nil {
		p.values = make(map[string]string)
	}
	if _, exists := p.values[key]; !exists {
		p.names = append(p.names, key)
	}
	p.values[key] = value
}

// Len reports the number of parameters.
func (p *Parameters) Len() int {
	if p == nil {
		return 0
	}
	return len(p.names)
}

// Map returns a copy of the parameters as a plain map, for handoff to
// mime.FormatMediaType.
func (p *Parameters) Map() map[string]string {
	out := make(map[string]string, p.Len())
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Names returns the parameter names sorted alphabetically, not in
// insertion order.
func (p *Parameters) Names() []string {
	out := append([]string(nil), p.names...)
	sort.Strings(out) // stable, deterministic generation order
	return out
}

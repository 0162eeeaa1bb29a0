// Package mime implements the MIME body-part engine: the multipart state
// machine (boundary discovery, prolog/epilog, recursive BodyPart tree) and
// the Disposition value component.
//
// Grounded on the teacher's email/msgcleaver/msgcleaver.go (cleave, part
// classification) and email/msgbuilder/msgbuilder.go+tree.go (BuildTree,
// WriteNode, randBoundary), generalized from their fixed
// body/related/attachments shape into the general recursive BodyPart tree
// spec §4.4 requires.
package mime

import "strings"

// Disposition is the Content-Disposition field's value: a token
// (typically "inline" or "attachment") plus parameters, held separately
// from header.Parameters since the disposition type itself is meaningful
// (spec §3's "disposition (token)" value type).
type Disposition struct {
	Type   string
	Params map[string]string
}

// IsInline reports whether the disposition is absent or explicitly inline.
func (d Disposition) IsInline() bool {
	return d.Type == "" || strings.EqualFold(d.Type, "inline")
}

// IsAttachment reports whether the disposition type is "attachment".
func (d Disposition) IsAttachment() bool {
	return strings.EqualFold(d.Type, "attachment")
}

// Filename returns the disposition's filename parameter, if any.
func (d Disposition) Filename() string {
	if d.Params == nil {
		return ""
	}
	return d.Params["filename"]
}

// ParseDisposition parses a Content-Disposition field value. A missing or
// malformed value tolerantly yields an empty (inline) Disposition.
func ParseDisposition(raw string) Disposition {
	if raw == "" {
		return Disposition{}
	}
	typ := raw
	params := map[string]string{}
	if i := strings.IndexByte(raw, ';'); i >= 0 {
		typ = raw[:i]
		for _, seg := range strings.Split(raw[i+1:], ";") {
			seg = strings.TrimSpace(seg)
			if seg == "" {
				continue
			}
			kv := strings.SplitN(seg, "=", 2)
			if len(kv) != 2 {
				continue
			}
			key := strings.ToLower(strings.TrimSpace(kv[0]))
			val := strings.Trim(strings.TrimSpace(kv[1]), `"`)
			params[key] = val
		}
	}
	return Disposition{Type: strings.TrimSpace(typ), Params: params}
}

// String renders the disposition back to wire form.
func (d Disposition) String() string {
	if d.Type == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(d.Type)
	for k, v := range d.Params {
		b.WriteString("; ")
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(v)
		b.WriteString(`"`)
	}
	return b.String()
}

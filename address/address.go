// Package address implements the RFC 5322 address grammar: Mailbox,
// MailboxList, AddressList (which may contain RFC 5322 groups), Path (the
// Return-Path single-address grammar), and MessageId/MessageIdSequence.
//
// The parser is adapted from the Go standard library's net/mail address
// parser (itself forked by the teacher as third_party/imf), generalized to
// decode display names through this module's own word/charset packages
// instead of the stdlib mime.WordDecoder, and extended with RFC 5322
// group support exposed to callers (not flattened away) and the
// Path/MessageId grammars spec §3 asks for.
package address

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"mailkit.dev/mailkit/word"
)

// Mailbox is a single RFC 5322 mailbox: an optional display name plus an
// addr-spec (local-part@domain).
type Mailbox struct {
	Name string
	Addr string
}

func (m Mailbox) String() string { return FormatMailbox(m) }

// Group is an RFC 5322 address group: a display name followed by a
// (possibly empty) mailbox list, e.g. "Undisclosed-Recipients:;".
type Group struct {
	Name      string
	Mailboxes []Mailbox
}

// AddressList is a parsed RFC 5322 address-list: a mix of bare mailboxes
// and named groups, in the order they appeared.
type AddressList struct {
	Mailboxes []Mailbox // every mailbox, groups flattened, for convenience
	Groups    []Group   // group structure, empty Name for ungrouped mailboxes' implicit group
}

// ParseMailbox parses a single RFC 5322 mailbox, e.g. "Barry Gibbs <bg@example.com>".
func ParseMailbox(s string) (Mailbox, error) {
	addrs, err := (&addrParser{s: s}).parseAddress(true)
	if err != nil {
		return Mailbox{}, err
	}
	if len(addrs) != 1 {
		return Mailbox{}, errors.New("address: expected exactly one mailbox")
	}
	return addrs[0], nil
}

// ParseMailboxList parses a comma-separated address list, e.g. the value of
// a To/Cc/Bcc header, and returns its mailboxes; members of RFC 5322 groups
// are accepted and flattened into the result.
func ParseMailboxList(s string) ([]Mailbox, error) {
	list, err := ParseAddressList(s)
	if err != nil {
		return nil, err
	}
	return list.Mailboxes, nil
}

// ParseAddressList parses a full RFC 5322 address-list, including groups.
func ParseAddressList(s string) (AddressList, error) {
	p := &addrParser{s: s}
	var out AddressList
	for {
		p.skipSpace()
		mbs, groupName, err := p.parseAddressOrGroup()
		if err != nil {
			return AddressList{}, err
		}
		if groupName != "" || len(mbs) == 0 {
			out.Groups = append(out.Groups, Group{Name: groupName, Mailboxes: mbs})
		} else {
			out.Groups = append(out.Groups, Group{Mailboxes: mbs})
		}
		out.Mailboxes = append(out.Mailboxes, mbs...)

		if !p.skipCFWS() {
			return AddressList{}, errors.New("address: misformatted parenthetical comment")
		}
		if p.empty() {
			break
		}
		if !p.consume(',') {
			return AddressList{}, errors.New("address: expected comma")
		}
	}
	return out, nil
}

// FormatMailbox renders m as an RFC 5322 mailbox, encoding a non-ASCII
// display name as an RFC 2047 encoded-word.
func FormatMailbox(m Mailbox) string {
	s := "<" + EncodeAddrSpec(m.Addr) + ">"
	if m.Name == "" {
		return s
	}
	if isAllPrintableASCII(m.Name) {
		return quoteString(m.Name) + " " + s
	}
	w := word.NewWord(m.Name, "utf-8")
	return w.Encode(true) + " " + s
}

// FormatMailboxList joins a list of mailboxes with ", ".
func FormatMailboxList(list []Mailbox) string {
	parts := make([]string, len(list))
	for i, m := range list {
		parts[i] = FormatMailbox(m)
	}
	return strings.Join(parts, ", ")
}

// EncodeAddrSpec renders addr as "<local@domain>"-safe text, quoting the
// local-part if it needs it.
func EncodeAddrSpec(addr string) string {
	at := strings.LastIndex(addr, "@")
	var local, domain string
	if at < 0 {
		local = addr
	} else {
		local, domain = addr[:at], addr[at+1:]
	}
	quote := false
	for i, r := range local {
		if isAtext(r, false, false) {
			continue
		}
		if r == '.' && i > 0 && i < len(local)-1 && local[i-1] != '.' {
			continue
		}
		quote = true
		break
	}
	if quote {
		local = quoteString(local)
	}
	if domain == "" {
		return local
	}
	return local + "@" + domain
}

func isAllPrintableASCII(s string) bool {
	for _, r := range s {
		if !isVchar(r) && !isWSP(r) || isMultibyte(r) {
			return false
		}
	}
	return true
}

// --- parser ---

type addrParser struct{ s string }

func (p *addrParser) parseAddressOrGroup() (mbs []Mailbox, groupName string, err error) {
	p.skipSpace()
	if p.empty() {
		return nil, "", errors.New("address: no address")
	}

	spec, err := p.consumeAddrSpec()
	if err == nil {
		var displayName string
		p.skipSpace()
		if !p.empty() && p.peek() == '(' {
			displayName, err = p.consumeDisplayNameComment()
			if err != nil {
				return nil, "", err
			}
		}
		return []Mailbox{{Name: displayName, Addr: spec}}, "", nil
	}

	var displayName string
	if p.peek() != '<' {
		displayName, err = p.consumePhrase()
		if err != nil {
			return nil, "", err
		}
	}

	p.skipSpace()
	if p.consume(':') {
		group, err := p.consumeGroupList()
		return group, displayName, err
	}

	if !p.consume('<') {
		return nil, "", errors.New("address: no angle-addr")
	}
	spec, err = p.consumeAddrSpec()
	if err != nil {
		return nil, "", err
	}
	if !p.consume('>') {
		return nil, "", errors.New("address: unclosed angle-addr")
	}
	return []Mailbox{{Name: displayName, Addr: spec}}, "", nil
}

// parseAddress parses exactly one address (mailbox or the flattened
// members of a group) at the start of p, used by ParseMailbox.
func (p *addrParser) parseAddress(handleGroup bool) ([]Mailbox, error) {
	mbs, _, err := p.parseAddressOrGroup()
	return mbs, err
}

func (p *addrParser) consumeGroupList() ([]Mailbox, error) {
	var group []Mailbox
	p.skipSpace()
	if p.consume(';') {
		p.skipCFWS()
		return group, nil
	}
	for {
		p.skipSpace()
		addrs, err := p.parseAddress(false)
		if err != nil {
			return nil, err
		}
		group = append(group, addrs...)

		if !p.skipCFWS() {
			return nil, errors.New("address: misformatted parenthetical comment")
		}
		if p.consume(';') {
			p.skipCFWS()
			break
		}
		if !p.consume(',') {
			return nil, errors.New("address: expected comma")
		}
	}
	return group, nil
}

func (p *addrParser) consumeAddrSpec() (spec string, err error) {
	orig := *p
	defer func() {
		if err != nil {
			*p = orig
		}
	}()

	var localPart string
	p.skipSpace()
	if p.empty() {
		return "", errors.New("address: no addr-spec")
	}
	if p.peek() == '"' {
		localPart, err = p.consumeQuotedString()
		if localPart == "" {
			err = errors.New("address: empty quoted string in addr-spec")
		}
	} else {
		localPart, err = p.consumeAtom(true, false)
	}
	if err != nil {
		return "", err
	}
	if !p.consume('@') {
		return "", errors.New("address: missing @ in addr-spec")
	}
	var domain string
	p.skipSpace()
	if p.empty() {
		return "", errors.New("address: no domain in addr-spec")
	}
	domain, err = p.consumeAtom(true, false)
	if err != nil {
		return "", err
	}
	return localPart + "@" + domain, nil
}

func (p *addrParser) consumePhrase() (phrase string, err error) {
	var words []string
	var isPrevEncoded bool
	for {
		var w string
		p.skipSpace()
		if p.empty() {
			break
		}
		isEncoded := false
		if p.peek() == '"' {
			w, err = p.consumeQuotedString()
		} else {
			w, err = p.consumeAtom(true, true)
			if err == nil {
				w, isEncoded = decodeRFC2047Word(w)
			}
		}
		if err != nil {
			break
		}
		if isPrevEncoded && isEncoded {
			words[len(words)-1] += w
		} else {
			words = append(words, w)
		}
		isPrevEncoded = isEncoded
	}
	if err != nil && len(words) == 0 {
		return "", fmt.Errorf("address: missing word in phrase: %v", err)
	}
	return strings.Join(words, " "), nil
}

func (p *addrParser) consumeQuotedString() (qs string, err error) {
	i := 1
	qsb := make([]rune, 0, 10)
	escaped := false
Loop:
	for {
		r, size := utf8.DecodeRuneInString(p.s[i:])
		switch {
		case size == 0:
			return "", errors.New("address: unclosed quoted-string")
		case size == 1 && r == utf8.RuneError:
			return "", fmt.Errorf("address: invalid utf-8 in quoted-string: %q", p.s)
		case escaped:
			if !isVchar(r) && !isWSP(r) {
				return "", fmt.Errorf("address: bad character in quoted-string: %q", r)
			}
			qsb = append(qsb, r)
			escaped = false
		case isQtext(r) || isWSP(r):
			qsb = append(qsb, r)
		case r == '"':
			break Loop
		case r == '\\':
			escaped = true
		default:
			return "", fmt.Errorf("address: bad character in quoted-string: %q", r)
		}
		i += size
	}
	p.s = p.s[i+1:]
	return string(qsb), nil
}

func (p *addrParser) consumeAtom(dot bool, permissive bool) (atom string, err error) {
	i := 0
Loop:
	for {
		r, size := utf8.DecodeRuneInString(p.s[i:])
		switch {
		case size == 1 && r == utf8.RuneError:
			return "", fmt.Errorf("address: invalid utf-8 in address: %q", p.s)
		case size == 0 || !isAtext(r, dot, permissive):
			break Loop
		default:
			i += size
		}
	}
	if i == 0 {
		return "", errors.New("address: invalid string")
	}
	atom, p.s = p.s[:i], p.s[i:]
	if !permissive {
		if strings.HasPrefix(atom, ".") {
			return "", errors.New("address: leading dot in atom")
		}
		if strings.Contains(atom, "..") {
			return "", errors.New("address: double dot in atom")
		}
		if strings.HasSuffix(atom, ".") {
			return "", errors.New("address: trailing dot in atom")
		}
	}
	return atom, nil
}

func (p *addrParser) consumeDisplayNameComment() (string, error) {
	if !p.consume('(') {
		return "", errors.New("address: comment does not start with (")
	}
	comment, ok := p.consumeComment()
	if !ok {
		return "", errors.New("address: misformatted parenthetical comment")
	}
	words := strings.FieldsFunc(comment, func(r rune) bool { return r == ' ' || r == '\t' })
	for i, w := range words {
		decoded, isEncoded := decodeRFC2047Word(w)
		if isEncoded {
			words[i] = decoded
		}
	}
	return strings.Join(words, " "), nil
}

func (p *addrParser) consume(c byte) bool {
	if p.empty() || p.peek() != c {
		return false
	}
	p.s = p.s[1:]
	return true
}

func (p *addrParser) skipSpace()     { p.s = strings.TrimLeft(p.s, " \t") }
func (p *addrParser) peek() byte     { return p.s[0] }
func (p *addrParser) empty() bool    { return len(p.s) == 0 }

func (p *addrParser) skipCFWS() bool {
	p.skipSpace()
	for {
		if !p.consume('(') {
			break
		}
		if _, ok := p.consumeComment(); !ok {
			return false
		}
		p.skipSpace()
	}
	return true
}

func (p *addrParser) consumeComment() (string, bool) {
	depth := 1
	var comment string
	for {
		if p.empty() || depth == 0 {
			break
		}
		if p.peek() == '\\' && len(p.s) > 1 {
			p.s = p.s[1:]
		} else if p.peek() == '(' {
			depth++
		} else if p.peek() == ')' {
			depth--
		}
		if depth > 0 {
			comment += p.s[:1]
		}
		p.s = p.s[1:]
	}
	return comment, depth == 0
}

// decodeRFC2047Word decodes s as a single encoded-word using this
// module's tolerant word.Decode; non-matching input is returned as-is
// with isEncoded=false.
func decodeRFC2047Word(s string) (decoded string, isEncoded bool) {
	if !strings.Contains(s, "=?") {
		return s, false
	}
	w := word.Decode(s)
	if w.Charset == "unknown-8bit" {
		return s, false
	}
	return string(w.Buffer), true
}

func isAtext(r rune, dot, permissive bool) bool {
	switch r {
	case '.':
		return dot
	case '(', ')', '[', ']', ';', '@', '\\', ',':
		return permissive
	case '<', '>', '"', ':':
		return false
	}
	return isVchar(r)
}

func isQtext(r rune) bool {
	if r == '\\' || r == '"' {
		return false
	}
	return isVchar(r)
}

func quoteString(s string) string {
	var buf bytes.Buffer
	buf.WriteByte('"')
	for _, r := range s {
		if isQtext(r) || isWSP(r) {
			buf.WriteRune(r)
		} else if isVchar(r) {
			buf.WriteByte('\\')
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
	return buf.String()
}

func isVchar(r rune) bool      { return '!' <= r && r <= '~' || isMultibyte(r) }
func isMultibyte(r rune) bool  { return r >= utf8.RuneSelf }
func isWSP(r rune) bool        { return r == ' ' || r == '\t' }

package address

import "strings"

// MessageId is a single RFC 5322 msg-id, stored without its angle
// brackets (e.g. "abc123@example.com").
type MessageId string

// String renders the id back to its bracketed wire form.
func (id MessageId) String() string { return "<" + string(id) + ">" }

// ParseMessageId parses a single "<left@right>" token, tolerating
// surrounding whitespace and a missing closing bracket.
func ParseMessageId(s string) MessageId {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	return MessageId(strings.TrimSpace(s))
}

// MessageIdSequence is the value type of In-Reply-To/References: an
// ordered list of msg-ids.
type MessageIdSequence []MessageId

// ParseMessageIdSequence splits a whitespace-separated run of "<id>"
// tokens (as found in In-Reply-To/References) into a MessageIdSequence.
// Tokens that do not look like a msg-id are skipped rather than causing a
// parse failure, per the tolerant-recovery policy of spec §4.1.
func ParseMessageIdSequence(s string) MessageIdSequence {
	var seq MessageIdSequence
	for _, field := range strings.Fields(s) {
		if !strings.Contains(field, "@") {
			continue
		}
		seq = append(seq, ParseMessageId(field))
	}
	return seq
}

// String joins the sequence back into its wire form, one bracketed id
// separated by a single space.
func (seq MessageIdSequence) String() string {
	parts := make([]string, len(seq))
	for i, id := range seq {
		parts[i] = id.String()
	}
	return strings.Join(parts, " ")
}

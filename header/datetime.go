package header

import "time"

// dateLayouts are tried in order; they cover RFC 5322's date-time grammar
// plus the day-of-week-optional and two-digit-year variants seen in the
// wild, the same tolerance net/mail.ParseDate affords.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 06 15:04:05 -0700",
	"2 Jan 06 15:04:05 -0700",
}

// ParseDateTime parses a Date header value. On failure it tolerantly
// returns the Unix epoch (spec §4.1's "substitute a default value"
// policy), never an error, so a malformed Date never blocks the rest of
// the message from parsing.
func ParseDateTime(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Unix(0, 0).UTC()
}

// FormatDateTime renders t in the canonical RFC 5322 wire form.
func FormatDateTime(t time.Time) string {
	return t.Format("Mon, 2 Jan 2006 15:04:05 -0700")
}

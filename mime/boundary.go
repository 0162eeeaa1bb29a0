package mime

import "bytes"

// boundaryMatch is the byte offset range [DelimStart, DelimEnd) of one
// "--boundary" delimiter line (including its leading CRLF/LF and
// trailing CRLF/LF, excluding the content on either side), plus whether
// it is the closing delimiter (followed by a second "--").
type boundaryMatch struct {
	DelimStart, DelimEnd int // the whole "[CR]LF--boundary[--][CR]LF" run
	ContentEnd           int // end of the part's content, i.e. start of DelimStart's CRLF
	Final                bool
}

// discoverBoundary scans data[start:end] for the first "[LF]--" line
// followed by 1-70 valid boundary characters, per spec §4.4 step 1's
// fallback when no boundary parameter is present.
func discoverBoundary(data []byte, start, end int) string {
	region := data[start:end]
	for i := 0; i < len(region); i++ {
		if region[i] != '\n' {
			continue
		}
		j := i + 1
		if j+1 >= len(region) || region[j] != '-' || region[j+1] != '-' {
			continue
		}
		k := j + 2
		s := k
		for k < len(region) && k-s < 70 && isBoundaryChar(region[k]) {
			k++
		}
		if k == s {
			continue
		}
		if k < len(region) && region[k] != '\r' && region[k] != '\n' && region[k] != '-' {
			continue
		}
		return string(region[s:k])
	}
	return ""
}

func isBoundaryChar(b byte) bool {
	switch {
	case b >= '0' && b <= '9', b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		return true
	}
	switch b {
	case '\'', '(', ')', '+', '_', ',', '-', '.', '/', ':', '=', '?', ' ':
		return true
	}
	return false
}

// findBoundaries walks data[start:end] collecting every delimiter line for
// the given boundary token, per spec §4.4 step 2: a boundary matches only
// when preceded by "[CR]LF--" (transport padding before the LF is
// tolerated) and followed by CR, LF, or '-'. A trailing "--" marks the
// final delimiter.
func findBoundaries(data []byte, start, end int, boundary string) []boundaryMatch {
	dash := append([]byte("--"), boundary...)
	var matches []boundaryMatch
	pos := start
	for pos < end {
		idx := bytes.Index(data[pos:end], dash)
		if idx < 0 {
			break
		}
		delimStart := pos + idx

		// The delimiter must begin a line: walk back over an optional CR
		// then require the preceding byte to be '\n' (or delimStart==start,
		// treated as a line start for the very first boundary only when it
		// truly is the start of the body).
		lineStart := delimStart
		contentEnd := delimStart
		if lineStart > start {
			j := lineStart - 1
			if data[j] == '\n' {
				contentEnd = j
				if contentEnd > start && data[contentEnd-1] == '\r' {
					contentEnd--
				}
			} else {
				// Not at a line start; this "--boundary" occurrence is part
				// of the content, skip past it.
				pos = delimStart + len(dash)
				continue
			}
		}

		after := delimStart + len(dash)
		final := false
		if after+1 < end && data[after] == '-' && data[after+1] == '-' {
			final = true
			after += 2
		}
		// Consume to end of this delimiter line.
		lineEnd := after
		for lineEnd < end && data[lineEnd] != '\n' {
			lineEnd++
		}
		if lineEnd < end {
			lineEnd++ // include the LF
		}
		pad := after
		for pad < end && (data[pad] == ' ' || data[pad] == '\t') {
			pad++
		}
		if pad < end && data[pad] != '\r' && data[pad] != '\n' && !final {
			// Not actually a delimiter (extra trailing garbage on the same
			// token prefix) - treat as content and keep scanning past it.
			pos = delimStart + len(dash)
			continue
		}

		matches = append(matches, boundaryMatch{
			DelimStart: contentEnd,
			DelimEnd:   lineEnd,
			ContentEnd: contentEnd,
			Final:      final,
		})
		pos = lineEnd
		if final {
			break
		}
	}
	return matches
}

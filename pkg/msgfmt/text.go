package msgfmt

import (
	"strings"
	"unicode/utf8"
)

// TruncRunes returns s truncated to at most n runes.
// It appends an ellipsis "…" when truncated.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	// Single-pass implementation:
	//  - remember the byte index after the n-th rune
	//  - if there is an (n+1)-th rune, truncate + ellipsis
	count := 0
	cut := 0
	for i, r := range s {
		count++
		if count == n {
			cut = i + utf8.RuneLen(r)
			continue
		}
		if count > n {
			if cut <= 0 {
				cut = i
			}
			return s[:cut] + "…"
		}
	}
	return s
}

// SplitRunes splits s into chunks of at most limit runes each. When a window
// fills up and a newline sits in its last two thirds, the cut moves back to
// that newline so lines stay whole. Chunking is by runes to stay Unicode-safe
// without allocating a full []rune for large content.
func SplitRunes(s string, limit int) []string {
	if s == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}

	var chunks []string
	start := 0 // byte index
	for start < len(s) {
		runes := 0
		end := start
		lastNL := -1 // byte index after last newline rune in this window
		lastNLRunes := 0
		for end < len(s) && runes < limit {
			r, size := utf8.DecodeRuneInString(s[end:])
			// utf8.DecodeRuneInString never returns size 0.
			if r == '\n' {
				lastNL = end + size
				lastNLRunes = runes + 1
			}
			runes++
			end += size
		}
		if end < len(s) && lastNL != -1 && lastNLRunes >= limit/3 {
			end = lastNL
		}
		chunk := strings.TrimRight(s[start:end], "\n")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		start = end
		// Skip extra newlines at the start of the next chunk.
		for start < len(s) {
			r, size := utf8.DecodeRuneInString(s[start:])
			if r != '\n' {
				break
			}
			start += size
		}
	}
	return chunks
}

package chunker

import (
	"unicode"
	"unicode/utf8"
)

// span is a half-open byte range into the chunked text.
type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// piece is a candidate chunk covering sentences first..last.
type piece struct {
	span
	first, last int
	split       bool // cut from inside one sentence
}

func newPiece(sentences []span, first, last int) piece {
	return piece{
		span:  span{start: sentences[first].start, end: sentences[last].end},
		first: first,
		last:  last,
	}
}

// splitSentences returns trimmed sentence spans. A sentence ends at terminal
// punctuation followed by whitespace, or at a line break.
func splitSentences(text string) []span {
	var out []span
	start := 0

	emit := func(end int) {
		if s, ok := trim(text, start, end); ok {
			out = append(out, s)
		}
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		next := i + size

		switch {
		case r == '\n':
			emit(i)
			start = next
		case r == '.' || r == '!' || r == '?':
			if next == len(text) {
				break
			}
			nr, _ := utf8.DecodeRuneInString(text[next:])
			if unicode.IsSpace(nr) {
				emit(next)
				start = next
			}
		}
		i = next
	}
	emit(len(text))

	return out
}

// trim narrows [start, end) to exclude surrounding whitespace.
func trim(text string, start, end int) (span, bool) {
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	return span{start: start, end: end}, end > start
}

// hardSplit cuts an over-long sentence into pieces of at most limit bytes,
// preferring the last whitespace inside each window and never splitting a rune.
func hardSplit(text string, s span, limit int) []span {
	var out []span
	start := s.start
	for start < s.end {
		if s.end-start <= limit {
			if t, ok := trim(text, start, s.end); ok {
				out = append(out, t)
			}
			break
		}

		cut := start + limit
		for cut > start && !utf8.RuneStart(text[cut]) {
			cut--
		}
		for ws := cut; ws > start; ws-- {
			if text[ws] == ' ' || text[ws] == '\t' {
				cut = ws
				break
			}
		}
		if cut == start {
			// Single rune wider than the limit
			_, size := utf8.DecodeRuneInString(text[start:])
			cut = start + size
		}

		if t, ok := trim(text, start, cut); ok {
			out = append(out, t)
		}
		start = cut
	}
	return out
}

package store

import "strings"

// defaultSeparators are tried in order: paragraph breaks first, then line
// breaks, then word boundaries. Text with no separator is split by runes.
var defaultSeparators = []string{"\n\n", "\n", " "}

// Splitter cuts text into overlapping chunks of at most chunkSize runes.
// Splitting is recursive: it prefers the coarsest separator that keeps
// pieces under the limit, so paragraphs stay together when they fit.
//
// Concatenating the pieces of one split (minus the carried overlap)
// reproduces the input text exactly.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter creates a splitter. chunkSize must be positive; chunkOverlap
// is clamped to less than chunkSize.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split cuts text into chunks. Adjacent chunks share up to chunkOverlap
// runes so sentences cut at a boundary remain searchable in both chunks.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}

	pieces := s.atomize(text, s.separators)

	var chunks []string
	var cur string
	appended := false // whether cur contains anything beyond carried overlap

	for _, piece := range pieces {
		if appended && runeLen(cur)+runeLen(piece) > s.chunkSize {
			chunks = append(chunks, cur)
			cur = overlapSuffix(cur, s.chunkOverlap)
			appended = false
		}
		if !appended && runeLen(cur)+runeLen(piece) > s.chunkSize {
			// The carried overlap plus a near-limit piece would breach
			// chunkSize; trim the overlap so the bound holds.
			cur = overlapSuffix(cur, s.chunkSize-runeLen(piece))
		}
		cur += piece
		appended = true
	}
	if appended {
		chunks = append(chunks, cur)
	}

	return chunks
}

// atomize recursively splits text into pieces of at most chunkSize runes.
// The concatenation of the returned pieces equals the input.
func (s *Splitter) atomize(text string, separators []string) []string {
	if runeLen(text) <= s.chunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return s.hardSplit(text)
	}

	parts := splitKeepSeparator(text, separators[0])
	if len(parts) == 1 {
		// Separator absent, fall through to the next finer one.
		return s.atomize(text, separators[1:])
	}

	var out []string
	for _, part := range parts {
		if runeLen(part) > s.chunkSize {
			out = append(out, s.atomize(part, separators[1:])...)
		} else {
			out = append(out, part)
		}
	}
	return out
}

// hardSplit cuts text every chunkSize runes, the last-resort split for text
// with no usable separator.
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += s.chunkSize {
		end := min(start+s.chunkSize, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

// splitKeepSeparator splits text on sep, keeping the separator attached to
// the end of each piece so the pieces concatenate back to the input.
func splitKeepSeparator(text, sep string) []string {
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			p += sep
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// overlapSuffix returns the trailing n runes of text.
func overlapSuffix(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

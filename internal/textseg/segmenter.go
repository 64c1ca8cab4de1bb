// Package textseg splits text bound for speech synthesis into
// bounded-size chunks, preferring sentence boundaries, then word
// boundaries. It also owns the cleanup applied before any synthesis:
// markdown stripping, whitespace normalization and the hard input
// ceiling that bounds worst-case latency.
package textseg

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Chunk is one bounded-size segment of cleaned text. Index defines the
// reassembly order of the synthesized audio.
type Chunk struct {
	Index   int
	Content string
	Size    int
}

var (
	markdownRE   = regexp.MustCompile("[*#_`\\[\\]{}\\\\]")
	multiDotRE   = regexp.MustCompile(`\.{2,}`)
	dashRunRE    = regexp.MustCompile(`--+`)
	nonSpokenRE  = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?;:'-]`)
	whitespaceRE = regexp.MustCompile(`\s+`)
	sentenceEndRE = regexp.MustCompile(`[.!?]+`)
)

// Clean strips formatting that reads badly when spoken: markdown
// characters, dash runs, dot runs and stray symbols. Runs of whitespace
// collapse to a single space.
func Clean(text string) string {
	text = markdownRE.ReplaceAllString(text, " ")
	text = multiDotRE.ReplaceAllString(text, ".")
	text = dashRunRE.ReplaceAllString(text, " ")
	text = nonSpokenRE.ReplaceAllString(text, " ")
	text = whitespaceRE.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// CleanMinimal is the cheap variant used by the ultra-fast synthesis
// path: markdown strip and whitespace collapse only.
func CleanMinimal(text string) string {
	text = markdownRE.ReplaceAllString(text, " ")
	text = whitespaceRE.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Truncate cuts text down to at most max characters at the nearest
// sentence boundary, falling back to a word boundary. The result
// always ends with sentence punctuation so the synthesized audio does
// not trail off.
func Truncate(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}

	// Back off to a rune boundary so multibyte scripts never get a
	// split character at the cut point.
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	cut := text[:max]

	// Prefer ending on a complete sentence, but only when that keeps
	// most of the budget.
	if loc := lastSentenceEnd(cut); loc > (max*7)/10 {
		return strings.TrimSpace(cut[:loc])
	}

	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	cut = strings.TrimSpace(cut)
	if cut == "" {
		return ""
	}
	if !strings.HasSuffix(cut, ".") && !strings.HasSuffix(cut, "!") && !strings.HasSuffix(cut, "?") {
		cut += "."
	}
	return cut
}

func lastSentenceEnd(text string) int {
	locs := sentenceEndRE.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return -1
	}
	return locs[len(locs)-1][1]
}

// SplitSentences splits text on runs of sentence-ending punctuation,
// keeping each run attached to its preceding sentence.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	locs := sentenceEndRE.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}

	var sentences []string
	prev := 0
	for _, loc := range locs {
		s := strings.TrimSpace(text[prev:loc[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		prev = loc[1]
	}
	if tail := strings.TrimSpace(text[prev:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// Segment splits text into chunks of at most maxChunkSize characters.
// Sentences are greedily packed so that chunk boundaries land on
// sentence boundaries whenever possible; text without sentence
// punctuation falls back to word packing. A single word longer than
// maxChunkSize becomes its own chunk rather than being split.
func Segment(text string, maxChunkSize int) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChunkSize <= 0 || len(text) <= maxChunkSize {
		return []Chunk{{Index: 0, Content: text, Size: len(text)}}
	}

	var parts []string
	var current string
	flush := func() {
		if current != "" {
			parts = append(parts, current)
			current = ""
		}
	}

	for _, sentence := range SplitSentences(text) {
		if len(sentence) > maxChunkSize {
			flush()
			parts = append(parts, splitWords(sentence, maxChunkSize)...)
			continue
		}
		if current != "" && len(current)+1+len(sentence) > maxChunkSize {
			flush()
		}
		if current == "" {
			current = sentence
		} else {
			current += " " + sentence
		}
	}
	flush()

	return toChunks(parts)
}

// SegmentForStreaming splits text for the streamed-parallel synthesis
// path. The first chunk is kept to one or more complete sentences, even
// when that leaves it well under maxChunkSize, so the first audio
// segment sounds natural; the remainder uses fast word packing.
func SegmentForStreaming(text string, maxChunkSize int) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChunkSize <= 0 || len(text) <= maxChunkSize {
		return []Chunk{{Index: 0, Content: text, Size: len(text)}}
	}

	var parts []string

	sentences := SplitSentences(text)
	var first string
	consumed := 0
	for i, sentence := range sentences {
		if len(sentence) > maxChunkSize {
			break
		}
		if first != "" && len(first)+1+len(sentence) > maxChunkSize {
			break
		}
		if first == "" {
			first = sentence
		} else {
			first += " " + sentence
		}
		consumed = i + 1
	}

	rest := text
	if first != "" {
		parts = append(parts, first)
		rest = strings.TrimSpace(strings.Join(sentences[consumed:], " "))
	}
	parts = append(parts, splitWords(rest, maxChunkSize)...)

	return toChunks(parts)
}

func splitWords(text string, maxChunkSize int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var parts []string
	var current string
	for _, word := range words {
		switch {
		case current == "":
			current = word
		case len(current)+1+len(word) <= maxChunkSize:
			current += " " + word
		default:
			parts = append(parts, current)
			current = word
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts
}

func toChunks(parts []string) []Chunk {
	chunks := make([]Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, Chunk{Index: i, Content: p, Size: len(p)})
	}
	return chunks
}

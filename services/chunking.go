package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"knowledge-assistant/models"
)

// ChunkingService splits raw document text into bounded, overlapping
// passages. Splitting walks a separator priority list from coarse to
// fine: paragraph breaks, line breaks, sentence boundaries, commas,
// spaces, and finally hard character cuts. The earliest separator whose
// pieces fit the size budget wins; oversized pieces recurse on the next
// separator.
type ChunkingService struct {
	chunkSize     int
	overlap       int
	sentenceRegex *regexp.Regexp
}

func NewChunkingService(chunkSize, overlap int) *ChunkingService {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &ChunkingService{
		chunkSize:     chunkSize,
		overlap:       overlap,
		sentenceRegex: regexp.MustCompile(`[.!?]+\s+`),
	}
}

// separator levels, coarse to fine. Level 2 is the sentence regex and
// level 5 is a hard cut; see splitLevel.
const (
	sepParagraph = iota
	sepLine
	sepSentence
	sepComma
	sepSpace
	sepHardCut
)

// Chunk splits text and attaches meta to every piece. Each chunk gets a
// "chunk" index entry in its metadata and an id of the form
// {unitID}_chunk{i}. Deterministic: identical input yields identical
// boundaries and identifiers.
func (cs *ChunkingService) Chunk(text string, unitID, source string, meta map[string]string) []models.Chunk {
	pieces := cs.merge(cs.split(text, sepParagraph))

	chunks := make([]models.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		md := make(map[string]string, len(meta)+1)
		for k, v := range meta {
			md[k] = v
		}
		md["chunk"] = fmt.Sprintf("%d", i)
		chunks = append(chunks, models.Chunk{
			ChunkID:  models.ChunkID(unitID, i),
			Source:   source,
			Text:     piece,
			Metadata: md,
		})
	}
	return chunks
}

// split breaks text at the given separator level, recursing on finer
// levels for pieces that still exceed the size budget. Whitespace-only
// pieces are dropped.
func (cs *ChunkingService) split(text string, level int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if len(trimmed) <= cs.chunkSize {
		return []string{trimmed}
	}
	if level >= sepHardCut {
		return cs.hardCut(trimmed)
	}

	var parts []string
	switch level {
	case sepParagraph:
		parts = strings.Split(trimmed, "\n\n")
	case sepLine:
		parts = strings.Split(trimmed, "\n")
	case sepSentence:
		parts = cs.splitSentences(trimmed)
	case sepComma:
		parts = strings.SplitAfter(trimmed, ", ")
	case sepSpace:
		parts = strings.SplitAfter(trimmed, " ")
	}

	// A separator that produced no split cannot help; try the next.
	if len(parts) <= 1 {
		return cs.split(trimmed, level+1)
	}

	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(p) <= cs.chunkSize {
			out = append(out, p)
		} else {
			out = append(out, cs.split(p, level+1)...)
		}
	}
	return out
}

// splitSentences cuts after sentence-ending punctuation followed by
// whitespace, keeping the punctuation with its sentence.
func (cs *ChunkingService) splitSentences(text string) []string {
	matches := cs.sentenceRegex.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}
	var parts []string
	start := 0
	for _, m := range matches {
		parts = append(parts, text[start:m[1]])
		start = m[1]
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}

// hardCut slices text that has no usable separators. Cut points back
// up to the nearest rune start so multi-byte characters are never
// split across chunks.
func (cs *ChunkingService) hardCut(text string) []string {
	var out []string
	for len(text) > cs.chunkSize {
		cut := cs.chunkSize
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(text)
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	if strings.TrimSpace(text) != "" {
		out = append(out, text)
	}
	return out
}

// merge packs split pieces back into chunks up to chunkSize, carrying
// up to overlap trailing characters of each chunk into the next so
// context survives the boundary. Overlap never pushes a chunk past the
// size budget.
func (cs *ChunkingService) merge(pieces []string) []string {
	if len(pieces) == 0 {
		return nil
	}

	var out []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			out = append(out, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, piece := range pieces {
		if current.Len() > 0 && current.Len()+1+len(piece) > cs.chunkSize {
			prev := current.String()
			flush()
			if cs.overlap > 0 {
				tail := overlapTail(prev, cs.overlap, cs.chunkSize-len(piece)-1)
				if tail != "" {
					current.WriteString(tail)
				}
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(piece)
	}
	flush()
	return out
}

// overlapTail returns the trailing context to seed the next chunk:
// at most want characters, shrunk further so the chunk stays within
// budget, cut at a word boundary when one exists.
func overlapTail(text string, want, room int) string {
	if room < want {
		want = room
	}
	if want <= 0 || len(text) == 0 {
		return ""
	}
	if len(text) <= want {
		return text
	}
	start := len(text) - want
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	tail := text[start:]
	if i := strings.IndexByte(tail, ' '); i >= 0 && i+1 < len(tail) {
		tail = tail[i+1:]
	}
	return strings.TrimSpace(tail)
}

package services

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidInput rejects questions that are empty after sanitization
// or exceed the configured maximum length.
var ErrInvalidInput = errors.New("invalid input")

var sentenceEnd = regexp.MustCompile(`[.!?]+\s+`)

var unknownPrefixes = []string{"i'm sorry", "i don't know", "i dont know"}

// PostProcessor sanitizes incoming questions and clamps generated
// answers.
type PostProcessor struct {
	maxLen int
}

func NewPostProcessor(maxQuestionLen int) *PostProcessor {
	if maxQuestionLen <= 0 {
		maxQuestionLen = 500
	}
	return &PostProcessor{maxLen: maxQuestionLen}
}

// Sanitize strips angle brackets as a minimal injection guard, trims
// whitespace, and rejects empty or over-length input.
func (pp *PostProcessor) Sanitize(input string) (string, error) {
	s := strings.ReplaceAll(input, "<", "")
	s = strings.ReplaceAll(s, ">", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidInput
	}
	if len(s) > pp.maxLen {
		return "", ErrInvalidInput
	}
	return s, nil
}

// TruncateSentences clamps generated text to its first two sentences,
// splitting on sentence-ending punctuation followed by whitespace.
// Text with fewer than two such boundaries passes through unchanged.
func (pp *PostProcessor) TruncateSentences(text string) string {
	text = strings.TrimSpace(text)
	boundaries := sentenceEnd.FindAllStringIndex(text, 2)
	if len(boundaries) < 2 {
		return text
	}
	// Keep everything up to the second boundary's punctuation.
	cut := boundaries[1][0]
	for cut < len(text) && strings.ContainsRune(".!?", rune(text[cut])) {
		cut++
	}
	return strings.TrimSpace(text[:cut])
}

// IsHallucinatedUnknown reports whether generated text opens with a
// self-reported-ignorance phrase. The orchestrator substitutes the
// canonical unknown response so refusals read the same across model
// variance.
func (pp *PostProcessor) IsHallucinatedUnknown(text string) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	for _, prefix := range unknownPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return true
		}
	}
	return false
}

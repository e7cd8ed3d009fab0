package routing

import (
	"strings"

	"github.com/neurosnap/sentences"
)

// DefaultExcerptSentences caps how much of an item is sent to the oracle.
const DefaultExcerptSentences = 40

// Excerpter trims long item text to a sentence-aligned prefix before it is
// dispatched to a stage, keeping prompt cost bounded without cutting
// mid-sentence.
type Excerpter struct {
	MaxSentences int
	tokenizer    *sentences.DefaultSentenceTokenizer
}

// NewExcerpter builds an excerpter; maxSentences <= 0 means the default.
func NewExcerpter(maxSentences int) *Excerpter {
	if maxSentences <= 0 {
		maxSentences = DefaultExcerptSentences
	}
	return &Excerpter{
		MaxSentences: maxSentences,
		tokenizer:    sentences.NewSentenceTokenizer(nil),
	}
}

// Excerpt returns the first MaxSentences sentences of text.
func (e *Excerpter) Excerpt(text string) string {
	sents := e.tokenizer.Tokenize(text)
	if len(sents) <= e.MaxSentences {
		return text
	}
	parts := make([]string, 0, e.MaxSentences)
	for _, s := range sents[:e.MaxSentences] {
		trimmed := strings.TrimSpace(s.Text)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charon107/hybridrecall/rag/interfaces"
	"github.com/mudler/xlog"
)

// Segmenter splits normalized text into words. Word-boundary detection is
// script-dependent, so it is injectable.
type Segmenter interface {
	Segment(text string) []string
}

// FieldsSegmenter segments on whitespace. It is the zero-dependency fallback
// for corpora that are already space-delimited.
type FieldsSegmenter struct{}

func (FieldsSegmenter) Segment(text string) []string {
	return strings.Fields(text)
}

// Tokenizer normalizes raw text into scoring terms: it strips characters
// outside the allowed alphabet (CJK ideographs, Latin letters, digits,
// whitespace), lower-cases, segments into words, and drops single-character
// terms and stop words. Identical input always yields an identical term
// sequence.
type Tokenizer struct {
	segmenter Segmenter
	stopwords map[string]struct{}
}

// New builds a Tokenizer. The stop-word set is resolved once: source is tried
// first and the built-in default table is used when source is nil or fails.
func New(segmenter Segmenter, source interfaces.StopwordSource, lang string) *Tokenizer {
	stop := defaultStopwords()
	if source != nil {
		words, err := source.Stopwords(lang)
		if err != nil || len(words) == 0 {
			xlog.Warn("Stop-word source unavailable, using built-in table", "lang", lang, "error", err)
		} else {
			stop = words
		}
	}

	return &Tokenizer{
		segmenter: segmenter,
		stopwords: stop,
	}
}

// Tokenize returns the ordered sequence of normalized terms for text.
func (t *Tokenizer) Tokenize(text string) []string {
	cleaned := stripDisallowed(text)
	cleaned = strings.ToLower(cleaned)

	terms := []string{}
	for _, raw := range t.segmenter.Segment(cleaned) {
		term := strings.TrimSpace(raw)
		if utf8.RuneCountInString(term) <= 1 {
			continue
		}
		if _, stopped := t.stopwords[term]; stopped {
			continue
		}
		terms = append(terms, term)
	}

	return terms
}

// stripDisallowed replaces every rune outside the allowed alphabet with a
// space so segmentation never sees punctuation or symbols.
func stripDisallowed(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if allowedRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func allowedRune(r rune) bool {
	switch {
	case r >= 0x4e00 && r <= 0x9fa5: // CJK unified ideographs
		return true
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case unicode.IsSpace(r):
		return true
	}
	return false
}

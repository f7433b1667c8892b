package tokenizer

import (
	"github.com/go-ego/gse"
)

// GseSegmenter segments text with a dictionary-driven CJK word segmenter.
// It is the default production segmenter for mixed Chinese/Latin corpora.
type GseSegmenter struct {
	seg gse.Segmenter
}

// NewGseSegmenter loads the embedded default dictionary.
func NewGseSegmenter() (*GseSegmenter, error) {
	var seg gse.Segmenter
	if err := seg.LoadDict(); err != nil {
		return nil, err
	}
	return &GseSegmenter{seg: seg}, nil
}

func (g *GseSegmenter) Segment(text string) []string {
	return g.seg.Cut(text, true)
}

package parser

import (
	"strings"

	"dublin-rag/internal/config"
	"dublin-rag/internal/models"
)

// Splitter cuts text into chunks of at most ChunkSize code points. Each chunk
// ends after the highest priority separator found in its window, and the next
// chunk starts ChunkOverlap code points before that end, so consecutive chunks
// always share exactly ChunkOverlap code points.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

func NewSplitter(chunkSize, chunkOverlap int, separators []string) *Splitter {
	if chunkSize <= 0 {
		chunkSize = config.DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	if len(separators) == 0 {
		separators = config.DefaultSeparators
	}
	return &Splitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separators:   separators,
	}
}

// NewSplitterFromConfig builds a Splitter from the rag section of the config
func NewSplitterFromConfig(cfg *config.Config) *Splitter {
	return NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, cfg.RAG.Separators)
}

type span struct {
	start, end int
}

// Split returns the chunk texts of text. Blank text yields no chunks.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	spans := s.spans(runes)
	out := make([]string, 0, len(spans))
	for _, sp := range spans {
		out = append(out, string(runes[sp.start:sp.end]))
	}
	return out
}

// SplitPages splits every page and numbers the chunks per page
func (s *Splitter) SplitPages(pages []models.Page) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		runes := []rune(page.Text)
		for i, sp := range s.spans(runes) {
			chunks = append(chunks, models.Chunk{
				Content:    string(runes[sp.start:sp.end]),
				Source:     page.Source,
				PageNumber: page.Number,
				ChunkID:    i + 1,
				Start:      sp.start,
			})
		}
	}
	return chunks
}

func (s *Splitter) spans(runes []rune) []span {
	if strings.TrimSpace(string(runes)) == "" {
		return nil
	}

	n := len(runes)
	var spans []span
	start := 0
	for {
		if n-start <= s.ChunkSize {
			spans = append(spans, span{start, n})
			return spans
		}
		end := s.cut(runes, start)
		spans = append(spans, span{start, end})
		start = end - s.ChunkOverlap
	}
}

// cut picks the end of the chunk starting at start. The end always lies in
// (start+overlap, start+size] so that the next chunk makes progress.
func (s *Splitter) cut(runes []rune, start int) int {
	lo := start + s.ChunkOverlap
	hi := start + s.ChunkSize
	for _, sep := range s.Separators {
		if sep == "" {
			break
		}
		if end := lastSeparatorEnd(runes, start, lo, hi, []rune(sep)); end > 0 {
			return end
		}
	}
	return hi
}

// lastSeparatorEnd returns the largest e in (lo, hi] such that sep ends at e
// and begins at or after start, or 0 when there is none.
func lastSeparatorEnd(runes []rune, start, lo, hi int, sep []rune) int {
	for e := hi; e > lo; e-- {
		b := e - len(sep)
		if b < start {
			break
		}
		if runesEqual(runes[b:e], sep) {
			return e
		}
	}
	return 0
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Package chunker provides a semantic text chunker.
//
// Text is split into sentence units, each unit is compared with its neighbour
// through a buffered window of surrounding units, and a chunk boundary is placed
// wherever the distance between adjacent windows exceeds a percentile of all
// distances in the document. Chunks are then bounded by a minimum and maximum
// size. The result depends only on the input text and the options.
package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

const (
	// DefaultBufferSize is the number of neighbouring sentences on each side
	// included when scoring a sentence.
	DefaultBufferSize = 1

	// DefaultBreakpointPercentile is the distance percentile above which a
	// boundary is introduced.
	DefaultBreakpointPercentile = 85.0

	// DefaultMinChunkSize is the size in bytes below which a chunk is merged
	// into its neighbour.
	DefaultMinChunkSize = 100

	// DefaultMaxChunkSize is the maximum chunk size in bytes.
	DefaultMaxChunkSize = 2000
)

// Processor splits document text into semantically coherent chunks.
type Processor struct {
	bufferSize       int
	percentile       float64
	minChunkSize     int
	maxChunkSize     int
	overlapSentences int
}

// Option configures the chunker.
type Option func(*Processor)

// WithBufferSize sets how many sentences either side form a sentence's window.
func WithBufferSize(n int) Option {
	return func(p *Processor) {
		if n >= 0 {
			p.bufferSize = n
		}
	}
}

// WithBreakpointPercentile sets the breakpoint percentile (0-100].
func WithBreakpointPercentile(pct float64) Option {
	return func(p *Processor) {
		if pct > 0 && pct <= 100 {
			p.percentile = pct
		}
	}
}

// WithMinChunkSize sets the minimum chunk size in bytes.
func WithMinChunkSize(size int) Option {
	return func(p *Processor) {
		if size >= 0 {
			p.minChunkSize = size
		}
	}
}

// WithMaxChunkSize sets the maximum chunk size in bytes.
func WithMaxChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.maxChunkSize = size
		}
	}
}

// WithOverlapSentences sets how many trailing sentences of a chunk are
// repeated at the start of the next one.
func WithOverlapSentences(n int) Option {
	return func(p *Processor) {
		if n >= 0 {
			p.overlapSentences = n
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		bufferSize:   DefaultBufferSize,
		percentile:   DefaultBreakpointPercentile,
		minChunkSize: DefaultMinChunkSize,
		maxChunkSize: DefaultMaxChunkSize,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Keep min below max so merging always has room
	if p.minChunkSize > p.maxChunkSize {
		p.minChunkSize = p.maxChunkSize / 2
	}

	return p
}

// Name returns the chunker name.
func (p *Processor) Name() string {
	return "semantic"
}

// Chunk splits the document's full text into ordered chunks with ids
// "{document_id}-{index}". Blank text yields no chunks.
func (p *Processor) Chunk(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrChunking)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := doc.FullText
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	groups := p.group(text, sentences)
	pieces := p.mergeSmall(p.bound(text, sentences, groups))
	spans := p.overlap(sentences, pieces)

	chunks := make([]domain.Chunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, domain.Chunk{
			ID:         domain.ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Text:       text[s.start:s.end],
			Order:      i,
		})
	}
	return chunks, nil
}

// group returns inclusive sentence index ranges separated at breakpoints.
func (p *Processor) group(text string, sentences []span) [][2]int {
	if len(sentences) == 1 {
		return [][2]int{{0, 0}}
	}

	windows := make([]termCounts, len(sentences))
	for i := range sentences {
		lo := max(0, i-p.bufferSize)
		hi := min(len(sentences)-1, i+p.bufferSize)
		windows[i] = countTerms(text[sentences[lo].start:sentences[hi].end])
	}

	distances := make([]float64, len(sentences)-1)
	for i := range distances {
		distances[i] = 1 - cosine(windows[i], windows[i+1])
	}
	threshold := percentile(distances, p.percentile)

	var groups [][2]int
	first := 0
	for i, d := range distances {
		if d > threshold {
			groups = append(groups, [2]int{first, i})
			first = i + 1
		}
	}
	return append(groups, [2]int{first, len(sentences) - 1})
}

// bound splits groups that exceed the maximum size, first at sentence
// boundaries and then inside an over-long sentence.
func (p *Processor) bound(text string, sentences []span, groups [][2]int) []piece {
	var out []piece
	for _, g := range groups {
		first := g[0]
		for i := g[0]; i <= g[1]; i++ {
			if i > first && sentences[i].end-sentences[first].start > p.maxChunkSize {
				out = append(out, newPiece(sentences, first, i-1))
				first = i
			}
			if sentences[i].len() > p.maxChunkSize {
				if i > first {
					out = append(out, newPiece(sentences, first, i-1))
				}
				for _, s := range hardSplit(text, sentences[i], p.maxChunkSize) {
					out = append(out, piece{span: s, first: i, last: i, split: true})
				}
				first = i + 1
			}
		}
		if first <= g[1] {
			out = append(out, newPiece(sentences, first, g[1]))
		}
	}
	return out
}

// mergeSmall folds pieces below the minimum size into a neighbour when the
// result stays within the maximum size.
func (p *Processor) mergeSmall(pieces []piece) []piece {
	if len(pieces) < 2 || p.minChunkSize == 0 {
		return pieces
	}

	out := make([]piece, 0, len(pieces))
	for _, pc := range pieces {
		if n := len(out); n > 0 {
			prev := out[n-1]
			small := prev.len() < p.minChunkSize || pc.len() < p.minChunkSize
			if small && !prev.split && !pc.split && pc.end-prev.start <= p.maxChunkSize {
				out[n-1] = piece{span: span{start: prev.start, end: pc.end}, first: prev.first, last: pc.last}
				continue
			}
		}
		out = append(out, pc)
	}
	return out
}

// overlap extends each chunk backwards by the configured number of sentences
// when the extension stays within the maximum size.
func (p *Processor) overlap(sentences []span, pieces []piece) []span {
	spans := make([]span, len(pieces))
	for i, pc := range pieces {
		spans[i] = pc.span
		if i == 0 || p.overlapSentences == 0 || pc.split {
			continue
		}
		from := max(0, pc.first-p.overlapSentences)
		start := sentences[from].start
		if pc.end-start <= p.maxChunkSize {
			spans[i].start = start
		}
	}
	return spans
}

package chunk

import (
	"fmt"
	"maps"
	"strings"
	"unicode/utf8"

	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
)

// Chunker splits text into bounded, overlapping chunks using a prioritized
// list of separators. Lengths are measured in characters (runes).
type Chunker struct {
	size       int
	overlap    int
	separators []string
	scheme     IDScheme
}

// NewChunker validates opts and returns a Chunker.
// overlap >= size is rejected: the fixed-stride fallback would never advance.
func NewChunker(opts Options) (*Chunker, error) {
	if opts.Size == 0 {
		opts.Size = DefaultSize
	}
	if opts.Separators == nil {
		opts.Separators = DefaultSeparators
	}
	if opts.IDScheme == "" {
		opts.IDScheme = IDSchemeContent
	}

	if opts.Size < 0 {
		return nil, ragerrors.ConfigurationError(fmt.Sprintf("chunk size must be positive, got %d", opts.Size), nil)
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.Size {
		return nil, ragerrors.ConfigurationError(
			fmt.Sprintf("chunk overlap must be in [0, %d), got %d", opts.Size, opts.Overlap), nil).
			WithSuggestion("Lower chunking.overlap or raise chunking.size")
	}
	for i, sep := range opts.Separators {
		if sep == "" {
			return nil, ragerrors.ConfigurationError(fmt.Sprintf("separator %d is empty", i), nil)
		}
	}
	if opts.IDScheme != IDSchemeContent && opts.IDScheme != IDSchemePrefix {
		return nil, ragerrors.ConfigurationError(fmt.Sprintf("unknown chunk id scheme %q", opts.IDScheme), nil)
	}

	return &Chunker{
		size:       opts.Size,
		overlap:    opts.Overlap,
		separators: append([]string(nil), opts.Separators...),
		scheme:     opts.IDScheme,
	}, nil
}

// Scheme returns the id scheme in use.
func (c *Chunker) Scheme() IDScheme {
	return c.scheme
}

// Chunk splits text and wraps every piece with a stable id and metadata.
// Empty or whitespace-only text yields no chunks.
func (c *Chunker) Chunk(text string, metadata map[string]any) []*Chunk {
	return c.ChunkSource(text, "", metadata)
}

// ChunkSource is Chunk with a caller-chosen source id. A non-empty sourceID
// replaces the text digest and is part of every chunk id, so equal texts
// under different source ids never share chunks.
func (c *Chunker) ChunkSource(text, sourceID string, metadata map[string]any) []*Chunk {
	pieces := c.Split(text)
	if len(pieces) == 0 {
		return nil
	}

	named := sourceID != ""
	if !named {
		sourceID = SourceID(text)
	}
	chunks := make([]*Chunk, len(pieces))
	for i, content := range pieces {
		meta := make(map[string]any, len(metadata)+2)
		maps.Copy(meta, metadata)
		meta[MetaChunkIndex] = i
		meta[MetaTotalChunks] = len(pieces)

		chunks[i] = &Chunk{
			ID:       chunkID(c.scheme, text, sourceID, named, i, content),
			SourceID: sourceID,
			Content:  content,
			Index:    i,
			Total:    len(pieces),
			Metadata: meta,
		}
	}
	return chunks
}

// Split returns the chunk texts for text: the recursive split, trimmed and
// stitched so each chunk after the first starts with the tail of its
// predecessor.
func (c *Chunker) Split(text string) []string {
	return c.stitch(c.raw(text))
}

// raw returns the trimmed, non-empty chunks before overlap stitching.
func (c *Chunker) raw(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var out []string
	for _, piece := range c.split(text, c.separators) {
		if piece = strings.TrimSpace(piece); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// split is the recursive separator-priority splitter. It greedily packs
// pieces up to size; oversized pieces recurse with the remaining separators
// and the last sub-chunk keeps accumulating at this level.
func (c *Chunker) split(text string, separators []string) []string {
	if len(separators) == 0 {
		return c.splitBySize(text)
	}

	sep, rest := separators[0], separators[1:]

	var (
		out     []string
		current string
	)
	for _, piece := range strings.Split(text, sep) {
		candidate := piece
		if current != "" {
			candidate = current + sep + piece
		}
		if runeLen(candidate) <= c.size {
			current = candidate
			continue
		}

		if current != "" {
			out = append(out, current)
		}
		if runeLen(piece) <= c.size {
			current = piece
			continue
		}

		sub := c.split(piece, rest)
		if len(sub) == 0 {
			current = ""
			continue
		}
		out = append(out, sub[:len(sub)-1]...)
		current = sub[len(sub)-1]
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// splitBySize slices text into windows of size characters advancing by
// size - overlap.
func (c *Chunker) splitBySize(text string) []string {
	runes := []rune(text)
	stride := c.size - c.overlap

	var out []string
	for start := 0; start < len(runes); start += stride {
		end := min(start+c.size, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

// stitch prepends the last overlap characters of chunk i-1 to chunk i.
// The tail always comes from the unmodified predecessor.
func (c *Chunker) stitch(raw []string) []string {
	if len(raw) <= 1 || c.overlap == 0 {
		return raw
	}

	out := make([]string, len(raw))
	out[0] = raw[0]
	for i := 1; i < len(raw); i++ {
		out[i] = tail(raw[i-1], c.overlap) + raw[i]
	}
	return out
}

// tail returns the last n characters of s, or s when it is shorter.
func tail(s string, n int) string {
	if runeLen(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[len(r)-n:])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

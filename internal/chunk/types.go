package chunk

// Chunking defaults.
const (
	DefaultSize    = 512
	DefaultOverlap = 50
)

// DefaultSeparators are tried in priority order: paragraphs, lines,
// sentences, words.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Metadata keys added to every chunk so source order can be rebuilt.
const (
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
)

// IDScheme selects how chunk ids are derived.
type IDScheme string

const (
	// IDSchemeContent hashes the source digest, chunk index and chunk
	// content. Distinct sources never collide.
	IDSchemeContent IDScheme = "content"

	// IDSchemePrefix hashes the first 100 characters of the source plus the
	// chunk index. Kept for stores created with the legacy scheme; sources
	// sharing a 100-character prefix collide.
	IDSchemePrefix IDScheme = "prefix"
)

// Chunk is a retrievable unit of text.
type Chunk struct {
	ID       string         // Stable id, see IDScheme
	SourceID string         // Digest of the source text, shared by sibling chunks
	Content  string         // Chunk text including any overlap prefix
	Index    int            // Position within the source, 0-based
	Total    int            // Number of chunks produced for the source
	Metadata map[string]any // Caller metadata plus chunk_index and total_chunks
}

// Options configures a Chunker. Zero values fall back to the defaults,
// except Overlap where zero means no overlap.
type Options struct {
	Size       int
	Overlap    int
	Separators []string
	IDScheme   IDScheme
}

// DefaultOptions returns the default chunking options.
func DefaultOptions() Options {
	return Options{
		Size:       DefaultSize,
		Overlap:    DefaultOverlap,
		Separators: DefaultSeparators,
		IDScheme:   IDSchemeContent,
	}
}

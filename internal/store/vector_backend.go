package store

import (
	"fmt"
	"sync"

	"github.com/coder/hnsw"
)

// hnswBackend proposes candidates from a coder/hnsw graph keyed by slot.
// Removal is lazy: dead slots stay in the graph and are filtered by the
// caller, which avoids coder/hnsw's unreliable node deletion.
//
// coder/hnsw sizes its result set from the k passed to Search and stops
// once a pass brings no improvement, so EfSearch alone does not widen a
// query. candidates asks the graph for max(fetch, EfSearch) nodes. Insertion
// always searches with k = M inside the library, so EfConstruction only
// bounds the candidate queue there.
type hnswBackend struct {
	mu    sync.Mutex // graph.EfSearch is adjusted per call
	graph *hnsw.Graph[uint64]
	cfg   VectorConfig
	slots int // upper bound on slot numbers held by the graph
}

func newHNSWGraph(cfg VectorConfig) *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25
	return graph
}

func newHNSWBackend(cfg VectorConfig) *hnswBackend {
	return &hnswBackend{graph: newHNSWGraph(cfg), cfg: cfg}
}

func (b *hnswBackend) name() string { return BackendHNSW }

func (b *hnswBackend) add(slot uint64, vec []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.graph.EfSearch = b.cfg.EfConstruction
	b.graph.Add(hnsw.MakeNode(slot, vec))
	b.slots = max(b.slots, int(slot)+1)
}

// candidates over-fetches so that filtering dead slots still leaves enough
// live ones. The beam is max(fetch, EfSearch) wide. A beam covering the
// whole graph visits every node anyway, so the slots are scanned directly
// and the result matches brute force exactly.
func (b *hnswBackend) candidates(query []float32, fetch int, live func(uint64) bool) []uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	size := b.graph.Len()
	if size == 0 {
		return nil
	}

	width := max(fetch, b.cfg.EfSearch)
	if width >= size {
		out := make([]uint64, 0, size)
		for slot := range uint64(b.slots) {
			if live(slot) {
				out = append(out, slot)
			}
		}
		return out
	}

	b.graph.EfSearch = width
	nodes := b.graph.Search(query, width)

	out := make([]uint64, 0, len(nodes))
	for _, n := range nodes {
		if live(n.Key) {
			out = append(out, n.Key)
		}
	}
	return out
}

func (b *hnswBackend) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.graph.Len()
}

// hnswSelfCheck builds a throwaway graph with the configured parameters
// and verifies a basis-vector query finds itself.
func hnswSelfCheck(cfg VectorConfig) (err error) {
	if cfg.M < 2 {
		return fmt.Errorf("hnsw needs M >= 2, got %d", cfg.M)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hnsw panicked during self-check: %v", r)
		}
	}()

	graph := newHNSWGraph(cfg)
	probes := min(cfg.Dimensions, 3)
	for i := range probes {
		vec := make([]float32, cfg.Dimensions)
		vec[i] = 1
		graph.Add(hnsw.MakeNode(uint64(i), vec))
	}

	query := make([]float32, cfg.Dimensions)
	query[0] = 1
	nodes := graph.Search(query, 1)
	if len(nodes) != 1 || nodes[0].Key != 0 {
		return fmt.Errorf("hnsw self-check returned %d nodes", len(nodes))
	}
	return nil
}

// bruteForceBackend returns every live slot; exact scoring does the rest.
type bruteForceBackend struct {
	n int
}

func newBruteForceBackend() *bruteForceBackend {
	return &bruteForceBackend{}
}

func (b *bruteForceBackend) name() string { return BackendBruteForce }

func (b *bruteForceBackend) add(slot uint64, _ []float32) {
	b.n = max(b.n, int(slot)+1)
}

func (b *bruteForceBackend) candidates(_ []float32, _ int, live func(uint64) bool) []uint64 {
	out := make([]uint64, 0, b.n)
	for slot := range uint64(b.n) {
		if live(slot) {
			out = append(out, slot)
		}
	}
	return out
}

func (b *bruteForceBackend) len() int { return b.n }

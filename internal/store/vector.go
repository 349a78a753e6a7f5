package store

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"

	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
)

// Vector index backends.
const (
	BackendAuto       = "auto"
	BackendHNSW       = "hnsw"
	BackendBruteForce = "bruteforce"
)

// Vector index defaults.
const (
	DefaultMaxElements    = 100000
	DefaultM              = 16
	DefaultEfConstruction = 200
	DefaultEfSearch       = 50
)

// cosineEpsilon keeps cosine similarity finite for zero vectors.
const cosineEpsilon = 1e-9

// VectorConfig configures a VectorIndex.
type VectorConfig struct {
	Dimensions int

	// Backend is "auto" (default), "hnsw" or "bruteforce".
	Backend string

	// MaxElements caps live plus tombstoned slots for the HNSW backend.
	MaxElements int

	M              int
	EfConstruction int
	EfSearch       int
}

// annBackend proposes candidate slots for a query. The VectorIndex scores
// candidates exactly, so backends only differ in recall and speed.
type annBackend interface {
	name() string
	add(slot uint64, vec []float32)
	candidates(query []float32, fetch int, live func(uint64) bool) []uint64
	len() int
}

// VectorIndex is an approximate nearest-neighbor index over a dense,
// append-only slot arena. Slots are never reused until Compact; removing an
// id leaves a tombstone (nil id and vector) at its slot.
type VectorIndex struct {
	mu      sync.RWMutex
	config  VectorConfig
	backend annBackend

	ids     []string    // slot -> id, "" at tombstones
	vectors [][]float32 // slot -> vector, nil at tombstones
	slotOf  map[string]uint64
	dead    int

	closed bool
}

// NewVectorIndex creates an empty index.
func NewVectorIndex(cfg VectorConfig) (*VectorIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, ragerrors.ConfigurationError(
			fmt.Sprintf("vector dimensions must be positive, got %d", cfg.Dimensions), nil)
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendAuto
	}
	cfg.Backend = strings.ToLower(cfg.Backend)
	if cfg.MaxElements <= 0 {
		cfg.MaxElements = DefaultMaxElements
	}
	if cfg.M <= 0 {
		cfg.M = DefaultM
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = DefaultEfConstruction
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = DefaultEfSearch
	}

	v := &VectorIndex{
		config: cfg,
		slotOf: make(map[string]uint64),
	}
	backend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	v.backend = backend
	return v, nil
}

// newBackend picks the backend for cfg. Auto prefers HNSW and falls back
// to brute force when the graph fails its self-check.
func newBackend(cfg VectorConfig) (annBackend, error) {
	switch cfg.Backend {
	case BackendHNSW:
		return newHNSWBackend(cfg), nil
	case BackendBruteForce:
		return newBruteForceBackend(), nil
	case BackendAuto:
		if err := hnswSelfCheck(cfg); err != nil {
			slog.Warn("hnsw_self_check_failed",
				slog.String("error", err.Error()),
				slog.String("fallback", BackendBruteForce))
			return newBruteForceBackend(), nil
		}
		return newHNSWBackend(cfg), nil
	default:
		return nil, ragerrors.New(ragerrors.ErrCodeUnknownBackend,
			fmt.Sprintf("unknown vector index backend %q", cfg.Backend), nil).
			WithSuggestion("Use one of: auto, hnsw, bruteforce")
	}
}

func (v *VectorIndex) checkDims(vec []float32) error {
	if len(vec) != v.config.Dimensions {
		return ragerrors.DimensionError(v.config.Dimensions, len(vec))
	}
	return nil
}

// Add stores vec under id in the next free slot. Re-adding an existing id
// tombstones its previous slot first.
func (v *VectorIndex) Add(id string, vec []float32) error {
	if id == "" {
		return ragerrors.ValidationError("vector id must not be empty", nil)
	}
	if err := v.checkDims(vec); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ragerrors.InternalError("vector index is closed", nil)
	}

	if err := v.capacityLocked(1); err != nil {
		return err
	}

	if old, ok := v.slotOf[id]; ok {
		v.tombstone(old)
	}

	stored := slices.Clone(vec)
	slot := uint64(len(v.ids))
	v.ids = append(v.ids, id)
	v.vectors = append(v.vectors, stored)
	v.slotOf[id] = slot
	v.backend.add(slot, stored)
	return nil
}

// CanAdd reports whether n more Adds fit. Every Add takes a fresh slot,
// re-adds of existing ids included, so n counts calls rather than ids.
func (v *VectorIndex) CanAdd(n int) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return ragerrors.InternalError("vector index is closed", nil)
	}
	return v.capacityLocked(n)
}

// capacityLocked fails when n more slots would exceed MaxElements. Only the
// HNSW backend is bounded.
func (v *VectorIndex) capacityLocked(n int) error {
	if v.backend.name() != BackendHNSW || len(v.ids)+n <= v.config.MaxElements {
		return nil
	}
	return ragerrors.New(ragerrors.ErrCodeIndexFull,
		fmt.Sprintf("vector index is full (%d of %d slots used, %d requested)", len(v.ids), v.config.MaxElements, n), nil).
		WithSuggestion("Run `ragstore compact` or raise index.max_elements")
}

func (v *VectorIndex) tombstone(slot uint64) {
	delete(v.slotOf, v.ids[slot])
	v.ids[slot] = ""
	v.vectors[slot] = nil
	v.dead++
}

// Remove tombstones id's slot.
func (v *VectorIndex) Remove(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	slot, ok := v.slotOf[id]
	if !ok {
		return ragerrors.NotFoundError(id)
	}
	v.tombstone(slot)
	return nil
}

// Search returns up to k live entries ordered by cosine similarity
// descending, ties broken by ascending slot. Candidates from either backend
// are rescored exactly.
func (v *VectorIndex) Search(query []float32, k int) ([]Hit, error) {
	if err := v.checkDims(query); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, ragerrors.InternalError("vector index is closed", nil)
	}

	live := len(v.slotOf)
	if k <= 0 || live == 0 {
		return []Hit{}, nil
	}

	isLive := func(slot uint64) bool {
		return slot < uint64(len(v.ids)) && v.ids[slot] != ""
	}
	slots := v.backend.candidates(query, k+v.dead, isLive)

	hits := make([]Hit, 0, len(slots))
	for _, slot := range slots {
		if !isLive(slot) {
			continue
		}
		hits = append(hits, Hit{
			ID:    v.ids[slot],
			Score: cosineSimilarity(query, v.vectors[slot]),
			Slot:  slot,
		})
	}
	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func sortHits(hits []Hit) {
	slices.SortFunc(hits, func(a, b Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		case a.Slot < b.Slot:
			return -1
		case a.Slot > b.Slot:
			return 1
		}
		return 0
	})
}

// cosineSimilarity is dot(a,b) / (|a||b| + eps).
func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + cosineEpsilon)
}

// Contains reports whether id has a live slot.
func (v *VectorIndex) Contains(id string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.slotOf[id]
	return ok
}

// Vector returns a copy of id's stored vector.
func (v *VectorIndex) Vector(id string) ([]float32, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	slot, ok := v.slotOf[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(v.vectors[slot]), true
}

// Len returns the number of live entries.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.slotOf)
}

// Tombstones returns the number of dead slots.
func (v *VectorIndex) Tombstones() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dead
}

// Dimensions returns the fixed vector dimension.
func (v *VectorIndex) Dimensions() int {
	return v.config.Dimensions
}

// Backend returns the active backend name.
func (v *VectorIndex) Backend() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.backend.name()
}

// IDs returns live ids in slot order.
func (v *VectorIndex) IDs() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.slotOf))
	for _, id := range v.ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Compact rebuilds the arena without tombstones, renumbering slots in their
// existing order, and returns the number of slots reclaimed.
func (v *VectorIndex) Compact() (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, ragerrors.InternalError("vector index is closed", nil)
	}
	if v.dead == 0 {
		return 0, nil
	}

	backend, err := newBackend(v.config)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(v.slotOf))
	vectors := make([][]float32, 0, len(v.slotOf))
	slotOf := make(map[string]uint64, len(v.slotOf))
	for slot, id := range v.ids {
		if id == "" {
			continue
		}
		next := uint64(len(ids))
		ids = append(ids, id)
		vectors = append(vectors, v.vectors[slot])
		slotOf[id] = next
		backend.add(next, v.vectors[slot])
	}

	reclaimed := v.dead
	v.backend, v.ids, v.vectors, v.slotOf, v.dead = backend, ids, vectors, slotOf, 0
	slog.Info("vector_index_compacted",
		slog.Int("reclaimed", reclaimed),
		slog.Int("live", len(ids)))
	return reclaimed, nil
}

// Close releases the index. Further calls fail.
func (v *VectorIndex) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.backend = newBruteForceBackend()
	v.ids, v.vectors, v.slotOf, v.dead = nil, nil, map[string]uint64{}, 0
	return nil
}

// Package telemetry collects local query statistics for a serving store.
// Nothing is reported externally and nothing outlives the process.
package telemetry

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// =============================================================================
// Query Mode
// =============================================================================

// Mode classifies a query by the fusion weight it ran with.
type Mode string

const (
	ModeKeyword  Mode = "keyword"  // alpha 0
	ModeSemantic Mode = "semantic" // alpha 1
	ModeHybrid   Mode = "hybrid"
	ModeDefault  Mode = "default" // no explicit alpha
)

// ModeForAlpha maps a fusion weight to its mode. A nil weight is
// ModeDefault.
func ModeForAlpha(alpha *float64) Mode {
	switch {
	case alpha == nil:
		return ModeDefault
	case *alpha <= 0:
		return ModeKeyword
	case *alpha >= 1:
		return ModeSemantic
	default:
		return ModeHybrid
	}
}

// =============================================================================
// Query Event
// =============================================================================

// QueryEvent is a single search for recording.
type QueryEvent struct {
	Query       string
	Mode        Mode
	Filtered    bool
	ResultCount int
	Latency     time.Duration
	Failed      bool
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer. It is not safe for
// concurrent use on its own.
type CircularBuffer[T any] struct {
	items    []T
	head     int // next write position
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer. capacity <= 0 uses 100.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{items: make([]T, capacity), capacity: capacity}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the items oldest first.
func (b *CircularBuffer[T]) Items() []T {
	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	return b.size
}

// =============================================================================
// Terms
// =============================================================================

// ExtractTerms returns the lowercased query words of at least three bytes.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a term and its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// =============================================================================
// Snapshot
// =============================================================================

// Snapshot is an immutable copy of the collected metrics.
type Snapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	FailedQueries       int64                   `json:"failed_queries"`
	FilteredQueries     int64                   `json:"filtered_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	ModeCounts          map[Mode]int64          `json:"mode_counts"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	Since               time.Time               `json:"since"`
}

// ZeroResultRate returns the fraction of successful queries that found
// nothing.
func (s Snapshot) ZeroResultRate() float64 {
	ok := s.TotalQueries - s.FailedQueries
	if ok <= 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(ok)
}

// =============================================================================
// Query Metrics
// =============================================================================

// Config sizes the collector. Zero values use the defaults.
type Config struct {
	TopTerms      int // distinct terms tracked (default 100)
	ZeroResults   int // recent zero-result queries kept (default 20)
	RecentQueries int // query hashes kept for repeat detection (default 500)
}

// DefaultConfig returns the default sizes.
func DefaultConfig() Config {
	return Config{TopTerms: 100, ZeroResults: 20, RecentQueries: 500}
}

// QueryMetrics aggregates search telemetry in memory.
// It is safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	modes       map[Mode]int64
	latencies   map[LatencyBucket]int64
	topTerms    *lru.Cache[string, int64]
	recent      *lru.Cache[string, struct{}]
	zeroResults *CircularBuffer[string]

	total, failed, filtered, zero, repeats int64
	since                                  time.Time
}

// NewQueryMetrics creates a collector.
func NewQueryMetrics(cfg Config) *QueryMetrics {
	def := DefaultConfig()
	if cfg.TopTerms <= 0 {
		cfg.TopTerms = def.TopTerms
	}
	if cfg.ZeroResults <= 0 {
		cfg.ZeroResults = def.ZeroResults
	}
	if cfg.RecentQueries <= 0 {
		cfg.RecentQueries = def.RecentQueries
	}

	// lru.New only fails on a non-positive size.
	topTerms, _ := lru.New[string, int64](cfg.TopTerms)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueries)

	return &QueryMetrics{
		modes:       make(map[Mode]int64),
		latencies:   make(map[LatencyBucket]int64),
		topTerms:    topTerms,
		recent:      recent,
		zeroResults: NewCircularBuffer[string](cfg.ZeroResults),
		since:       time.Now(),
	}
}

// Record adds one search to the aggregates.
func (m *QueryMetrics) Record(event QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.latencies[LatencyToBucket(event.Latency)]++
	if event.Failed {
		m.failed++
		return
	}

	m.modes[event.Mode]++
	if event.Filtered {
		m.filtered++
	}
	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}
	if event.ResultCount == 0 {
		m.zero++
		m.zeroResults.Add(event.Query)
	}

	key := hashQuery(event.Query)
	if _, ok := m.recent.Get(key); ok {
		m.repeats++
	}
	m.recent.Add(key, struct{}{})
}

// Snapshot copies the current aggregates. topN caps the returned terms;
// topN <= 0 returns all tracked terms.
func (m *QueryMetrics) Snapshot(topN int) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	terms := make([]TermCount, 0, m.topTerms.Len())
	for _, term := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(term); ok {
			terms = append(terms, TermCount{Term: term, Count: count})
		}
	}
	slices.SortFunc(terms, func(a, b TermCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Term, b.Term)
	})
	if topN > 0 && len(terms) > topN {
		terms = terms[:topN]
	}

	return Snapshot{
		TotalQueries:        m.total,
		FailedQueries:       m.failed,
		FilteredQueries:     m.filtered,
		ZeroResultCount:     m.zero,
		ExactRepeatCount:    m.repeats,
		ModeCounts:          maps.Clone(m.modes),
		LatencyDistribution: maps.Clone(m.latencies),
		TopTerms:            terms,
		ZeroResultQueries:   m.zeroResults.Items(),
		Since:               m.since,
	}
}

// hashQuery normalizes a query for repeat detection.
func hashQuery(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

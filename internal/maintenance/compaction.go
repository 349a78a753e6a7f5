// Package maintenance runs scheduled housekeeping against an open store.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Aman-CERP/ragstore/internal/config"
	"github.com/Aman-CERP/ragstore/internal/search"
)

// Store is the part of the engine compaction needs.
type Store interface {
	Stats(ctx context.Context) (*search.Stats, error)
	Compact(ctx context.Context) (int, error)
}

// Decision explains why a compaction check did or did not compact.
type Decision string

const (
	DecisionCompacted     Decision = "compacted"
	DecisionDisabled      Decision = "disabled"
	DecisionBusy          Decision = "busy"
	DecisionCooldown      Decision = "cooldown"
	DecisionNotIdle       Decision = "not_idle"
	DecisionFewTombstones Decision = "below_min_tombstones"
	DecisionBelowRatio    Decision = "below_threshold"
)

// CompactionManager compacts the vector index on a cron schedule once
// tombstones pile up.
//
// A scheduled check compacts only when:
//  1. no search arrived for IdleTimeout
//  2. tombstones reach MinTombstones
//  3. tombstones / slots reach TombstoneThreshold
//  4. Cooldown has passed since the last compaction
type CompactionManager struct {
	cfg      config.CompactionConfig
	store    Store
	idle     time.Duration
	cooldown time.Duration
	cron     *cron.Cron
	now      func() time.Time

	mu           sync.Mutex
	lastActivity time.Time
	lastCompact  time.Time
	compacting   bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewCompactionManager validates cfg and builds a manager. The schedule is
// parsed here so a bad schedule fails at startup.
func NewCompactionManager(store Store, cfg config.CompactionConfig) (*CompactionManager, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	idle, err := time.ParseDuration(cfg.IdleTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid idle timeout %q: %w", cfg.IdleTimeout, err)
	}
	cooldown, err := time.ParseDuration(cfg.Cooldown)
	if err != nil {
		return nil, fmt.Errorf("invalid cooldown %q: %w", cfg.Cooldown, err)
	}

	m := &CompactionManager{
		cfg:      cfg,
		store:    store,
		idle:     idle,
		cooldown: cooldown,
		cron:     cron.New(),
		now:      time.Now,
	}
	if cfg.Enabled {
		if _, err := m.cron.AddFunc(cfg.Schedule, m.scheduled); err != nil {
			return nil, fmt.Errorf("invalid compaction schedule %q: %w", cfg.Schedule, err)
		}
	}
	return m, nil
}

// Start begins scheduled checks. It is a no-op when compaction is disabled.
func (m *CompactionManager) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	if !m.cfg.Enabled {
		slog.Debug("compaction manager disabled")
		return
	}
	m.cron.Start()
	slog.Debug("compaction manager started",
		slog.String("schedule", m.cfg.Schedule),
		slog.Float64("tombstone_threshold", m.cfg.TombstoneThreshold),
		slog.Int("min_tombstones", m.cfg.MinTombstones))
}

// Stop halts the schedule and waits for a running check to finish.
func (m *CompactionManager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-m.cron.Stop().Done()
	slog.Debug("compaction manager stopped")
}

// Touch records search activity, postponing compaction by IdleTimeout.
func (m *CompactionManager) Touch() {
	m.mu.Lock()
	m.lastActivity = m.now()
	m.mu.Unlock()
}

func (m *CompactionManager) scheduled() {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	decision, reclaimed, err := m.RunOnce(ctx)
	if err != nil {
		slog.Warn("background compaction failed", slog.String("error", err.Error()))
		return
	}
	if decision == DecisionCompacted {
		slog.Info("background compaction complete", slog.Int("tombstones_reclaimed", reclaimed))
	}
}

// RunOnce checks eligibility and compacts if the store qualifies. It
// returns the decision and the number of tombstones reclaimed.
func (m *CompactionManager) RunOnce(ctx context.Context) (Decision, int, error) {
	if !m.cfg.Enabled {
		return DecisionDisabled, 0, nil
	}

	m.mu.Lock()
	now := m.now()
	switch {
	case m.compacting:
		m.mu.Unlock()
		return DecisionBusy, 0, nil
	case !m.lastCompact.IsZero() && now.Sub(m.lastCompact) < m.cooldown:
		m.mu.Unlock()
		slog.Debug("compaction skipped: cooldown active",
			slog.Duration("remaining", m.cooldown-now.Sub(m.lastCompact)))
		return DecisionCooldown, 0, nil
	case !m.lastActivity.IsZero() && now.Sub(m.lastActivity) < m.idle:
		m.mu.Unlock()
		return DecisionNotIdle, 0, nil
	}
	m.compacting = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.compacting = false
		m.mu.Unlock()
	}()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		return "", 0, err
	}
	if decision, ok := m.eligible(stats); !ok {
		return decision, 0, nil
	}

	start := m.now()
	reclaimed, err := m.store.Compact(ctx)
	if err != nil {
		return "", 0, err
	}

	m.mu.Lock()
	m.lastCompact = m.now()
	m.mu.Unlock()

	slog.Debug("compaction finished",
		slog.Int("tombstones_reclaimed", reclaimed),
		slog.Duration("duration", m.now().Sub(start)))
	return DecisionCompacted, reclaimed, nil
}

// eligible applies the tombstone thresholds to stats.
func (m *CompactionManager) eligible(stats *search.Stats) (Decision, bool) {
	if stats.Tombstones < m.cfg.MinTombstones || stats.Tombstones == 0 {
		slog.Debug("compaction skipped: below minimum tombstone count",
			slog.Int("tombstones", stats.Tombstones),
			slog.Int("min_required", m.cfg.MinTombstones))
		return DecisionFewTombstones, false
	}

	ratio := TombstoneRatio(stats)
	if ratio < m.cfg.TombstoneThreshold {
		slog.Debug("compaction skipped: below threshold",
			slog.Float64("ratio", ratio),
			slog.Float64("threshold", m.cfg.TombstoneThreshold))
		return DecisionBelowRatio, false
	}

	slog.Info("compaction eligible",
		slog.Int("tombstones", stats.Tombstones),
		slog.Int("live", stats.VectorCount),
		slog.Float64("ratio", ratio))
	return "", true
}

// TombstoneRatio is tombstones over all slots, live and dead.
func TombstoneRatio(stats *search.Stats) float64 {
	total := stats.VectorCount + stats.Tombstones
	if total == 0 {
		return 0
	}
	return float64(stats.Tombstones) / float64(total)
}

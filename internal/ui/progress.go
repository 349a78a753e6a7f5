package ui

import (
	"sync"
	"time"
)

// rateInterval is the minimum time between throughput samples.
const rateInterval = 500 * time.Millisecond

// rateSmoothing weights a new throughput sample against the running average.
const rateSmoothing = 0.2

// ProgressTracker manages progress state across stages.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	stage      Stage
	current    int
	total      int
	chunks     int
	source     string
	startTime  time.Time
	stageStart time.Time
	errors     []ErrorEvent
	warnings   []ErrorEvent

	lastChunks int
	lastSample time.Time
	rate       float64 // smoothed chunks/sec
	peakRate   float64
}

// ProgressStats contains a snapshot of current progress.
type ProgressStats struct {
	Stage      Stage
	Current    int
	Total      int
	Chunks     int
	Progress   float64
	ETA        time.Duration
	Source     string
	ErrorCount int
	WarnCount  int
	Rate       float64
	PeakRate   float64
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StageReading,
		startTime:  now,
		stageStart: now,
		lastSample: now,
	}
}

// SetStage transitions to a new stage.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
	p.total = total
	p.current = 0
	p.source = ""
	p.stageStart = time.Now()
}

// Update records progress within the current stage. chunks is the running
// total of stored chunks.
func (p *ProgressTracker) Update(current, chunks int, source string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if source != "" {
		p.source = source
	}
	p.chunks = chunks

	now := time.Now()
	elapsed := now.Sub(p.lastSample)
	if elapsed < rateInterval {
		return
	}
	if delta := chunks - p.lastChunks; delta > 0 {
		sample := float64(delta) / elapsed.Seconds()
		if p.rate == 0 {
			p.rate = sample
		} else {
			p.rate = rateSmoothing*sample + (1-rateSmoothing)*p.rate
		}
		p.peakRate = max(p.peakRate, sample)
	}
	p.lastChunks = chunks
	p.lastSample = now
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Progress returns current progress in [0,1].
func (p *ProgressTracker) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progressLocked()
}

func (p *ProgressTracker) progressLocked() float64 {
	if p.total == 0 {
		return 0
	}
	return min(float64(p.current)/float64(p.total), 1)
}

// ETA estimates remaining time from the current stage's pace.
func (p *ProgressTracker) ETA() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.etaLocked()
}

func (p *ProgressTracker) etaLocked() time.Duration {
	progress := p.progressLocked()
	if progress <= 0 || progress >= 1 {
		return 0
	}
	elapsed := time.Since(p.stageStart)
	remaining := time.Duration(float64(elapsed)/progress) - elapsed
	return max(remaining, 0)
}

// Elapsed returns time since tracker creation.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.startTime)
}

// Stats returns current statistics snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProgressStats{
		Stage:      p.stage,
		Current:    p.current,
		Total:      p.total,
		Chunks:     p.chunks,
		Progress:   p.progressLocked(),
		ETA:        p.etaLocked(),
		Source:     p.source,
		ErrorCount: len(p.errors),
		WarnCount:  len(p.warnings),
		Rate:       p.rate,
		PeakRate:   p.peakRate,
	}
}

// Errors returns the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ErrorEvent(nil), p.errors...)
}

// Warnings returns the recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ErrorEvent(nil), p.warnings...)
}

package ui

import (
	"sync"
	"time"
)

// ProgressTracker holds sweep progress shared between the runner and the TUI.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	stage      Stage
	current    int
	total      int
	config     string
	startTime  time.Time
	stageStart time.Time
	errors     []ErrorEvent
	warnings   []ErrorEvent

	// ETA smoothing to prevent wild fluctuations
	lastETA time.Duration

	// Per-configuration timing
	lastFinish  time.Time
	lastConfigT time.Duration
	avgConfigT  time.Duration
	finished    int

	leaders    []Leader
	mapHistory *Sparkline
}

// leaderboardSize is how many configurations the leaderboard keeps.
const leaderboardSize = 3

// Leader is one evaluated configuration on the leaderboard.
type Leader struct {
	Config string
	MAP    float64
}

// ThroughputStats describes how long configurations take.
type ThroughputStats struct {
	Last time.Duration // Most recent configuration
	Avg  time.Duration // Smoothed average
}

// ProgressStats contains a snapshot of current progress.
type ProgressStats struct {
	Stage      Stage
	Current    int
	Total      int
	Progress   float64
	ETA        time.Duration
	Config     string
	ErrorCount int
	WarnCount  int
	Throughput ThroughputStats
	BestConfig string
	BestMAP    float64
	HasBest    bool
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StageParsing,
		startTime:  now,
		stageStart: now,
		lastFinish: now,
		mapHistory: NewBoundedSparkline(60, 1),
	}
}

// SetTotal sets the number of configurations in the sweep. Progress and ETA
// are measured from this call.
func (p *ProgressTracker) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.current = 0
	p.stageStart = time.Now()
	p.lastFinish = p.stageStart
	p.lastETA = 0
}

// SetStage records the stage of the most recent event.
func (p *ProgressTracker) SetStage(stage Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
}

// Apply folds an event into the tracker.
func (p *ProgressTracker) Apply(event ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = event.Stage
	if event.Total > 0 && event.Total != p.total {
		p.total = event.Total
	}
	if event.Config != "" {
		p.config = event.Config
	}
	if event.Current > p.current {
		p.finishLocked(event.Current)
	}
	if event.HasMAP {
		p.mapHistory.Add(event.MAP)
		p.rankLocked(Leader{Config: event.Config, MAP: event.MAP})
	}
}

// rankLocked inserts l into the leaderboard. Ties keep the earlier entry
// ahead. Must hold p.mu.
func (p *ProgressTracker) rankLocked(l Leader) {
	i := len(p.leaders)
	for i > 0 && p.leaders[i-1].MAP < l.MAP {
		i--
	}
	if i >= leaderboardSize {
		return
	}
	p.leaders = append(p.leaders, Leader{})
	copy(p.leaders[i+1:], p.leaders[i:])
	p.leaders[i] = l
	if len(p.leaders) > leaderboardSize {
		p.leaders = p.leaders[:leaderboardSize]
	}
}

// Leaders returns the best configurations so far, highest MAP first.
func (p *ProgressTracker) Leaders() []Leader {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]Leader(nil), p.leaders...)
}

// finishLocked records newly finished configurations. Must hold p.mu.
func (p *ProgressTracker) finishLocked(current int) {
	now := time.Now()
	done := current - p.current
	p.current = current

	per := now.Sub(p.lastFinish) / time.Duration(done)
	p.lastFinish = now
	p.lastConfigT = per

	p.finished += done
	if p.finished == done {
		p.avgConfigT = per
	} else {
		// Smoothing factor 0.2 gives a responsive but stable average
		p.avgConfigT = time.Duration(0.2*float64(per) + 0.8*float64(p.avgConfigT))
	}
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

// Progress returns current progress percentage (0.0-1.0).
func (p *ProgressTracker) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.progressLocked()
}

func (p *ProgressTracker) progressLocked() float64 {
	if p.total == 0 {
		return 0.0
	}
	progress := float64(p.current) / float64(p.total)
	if progress > 1.0 {
		return 1.0
	}
	return progress
}

// ETA estimates remaining time based on current progress.
// Uses write lock because calculateETA modifies lastETA for smoothing.
func (p *ProgressTracker) ETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calculateETA()
}

// Elapsed returns time since tracker creation.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return time.Since(p.startTime)
}

// Stats returns current statistics snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := ProgressStats{
		Stage:      p.stage,
		Current:    p.current,
		Total:      p.total,
		Progress:   p.progressLocked(),
		ETA:        p.calculateETA(),
		Config:     p.config,
		ErrorCount: len(p.errors),
		WarnCount:  len(p.warnings),
		Throughput: ThroughputStats{Last: p.lastConfigT, Avg: p.avgConfigT},
	}
	if len(p.leaders) > 0 {
		stats.BestConfig, stats.BestMAP, stats.HasBest = p.leaders[0].Config, p.leaders[0].MAP, true
	}
	return stats
}

// etaSmoothingFactor is the weight of a new ETA against the previous one.
const etaSmoothingFactor = 0.3

// calculateETA must be called with the lock held.
func (p *ProgressTracker) calculateETA() time.Duration {
	if p.current == 0 || p.total == 0 {
		return 0
	}

	elapsed := time.Since(p.stageStart)
	progress := float64(p.current) / float64(p.total)

	if progress <= 0 || progress >= 1.0 {
		return 0
	}

	totalEstimate := time.Duration(float64(elapsed) / progress)
	rawRemaining := totalEstimate - elapsed

	if rawRemaining < 0 {
		return 0
	}

	if p.lastETA == 0 {
		p.lastETA = rawRemaining
		return rawRemaining
	}

	smoothed := time.Duration(
		etaSmoothingFactor*float64(rawRemaining) +
			(1-etaSmoothingFactor)*float64(p.lastETA),
	)
	p.lastETA = smoothed

	return smoothed
}

// Errors returns the list of recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.errors))
	copy(result, p.errors)
	return result
}

// Warnings returns the list of recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.warnings))
	copy(result, p.warnings)
	return result
}

// RenderMAPHistory renders the MAP of finished configurations, oldest first.
func (p *ProgressTracker) RenderMAPHistory(width int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if width <= 0 {
		return p.mapHistory.Render()
	}
	return p.mapHistory.RenderWithWidth(width)
}

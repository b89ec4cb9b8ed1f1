// Package observer tracks agent activity: file changes in a worktree and run timings.
package observer

import (
	"sort"
	"sync"
	"time"
)

// Observer monitors agent execution and collects metrics
type Observer struct {
	stuckThreshold time.Duration

	running      string
	startedAt    time.Time
	lastActivity time.Time
	touched      map[string]struct{}

	completions []completion
	mu          sync.RWMutex
}

type completion struct {
	Agent       string
	Duration    time.Duration
	Success     bool
	CompletedAt time.Time
}

// Metrics holds aggregated metrics
type Metrics struct {
	TotalCompleted int
	TotalFailed    int
	AvgDuration    time.Duration
}

// New creates a new Observer
func New(stuckThreshold time.Duration) *Observer {
	return &Observer{
		stuckThreshold: stuckThreshold,
		touched:        make(map[string]struct{}),
	}
}

// Begin marks agent as running from now on and clears previous file activity
func (o *Observer) Begin(agent string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.running = agent
	o.startedAt = time.Now()
	o.lastActivity = time.Time{}
	o.touched = make(map[string]struct{})
}

// Touch records file activity of the running agent
func (o *Observer) Touch(files []string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, f := range files {
		o.touched[f] = struct{}{}
	}
	o.lastActivity = time.Now()
}

// Touched returns the files seen since Begin, sorted
func (o *Observer) Touched() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	files := make([]string, 0, len(o.touched))
	for f := range o.touched {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// IdleFor returns how long the running agent has gone without file activity
func (o *Observer) IdleFor() time.Duration {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.running == "" {
		return 0
	}
	since := o.startedAt
	if o.lastActivity.After(since) {
		since = o.lastActivity
	}
	return time.Since(since)
}

// IsStuck returns true if the running agent has been idle past the threshold
func (o *Observer) IsStuck() bool {
	return o.stuckThreshold > 0 && o.IdleFor() > o.stuckThreshold
}

// End records the completion of the running agent
func (o *Observer) End(success bool) time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running == "" {
		return 0
	}
	d := time.Since(o.startedAt)
	o.completions = append(o.completions, completion{
		Agent:       o.running,
		Duration:    d,
		Success:     success,
		CompletedAt: time.Now(),
	})
	o.running = ""
	return d
}

// GetMetrics returns aggregated metrics
func (o *Observer) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var metrics Metrics
	var totalDuration time.Duration

	for _, c := range o.completions {
		if c.Success {
			metrics.TotalCompleted++
		} else {
			metrics.TotalFailed++
		}
		totalDuration += c.Duration
	}

	if n := len(o.completions); n > 0 {
		metrics.AvgDuration = totalDuration / time.Duration(n)
	}

	return metrics
}

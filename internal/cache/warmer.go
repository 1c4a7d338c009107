package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Warmer proactively re-triggers orchestrator fetches so entries are fresh
// ahead of demand. It does no wall-clock scheduling of its own: tasks only
// re-fire when WarmCache is invoked, typically from an external ticker.
type Warmer struct {
	manager *Manager
	now     func() time.Time

	mu    sync.Mutex
	tasks map[string]*warmTask
}

type warmTask struct {
	source     Source
	interval   time.Duration
	lastWarmed time.Time
}

// TaskStatus describes one registered warmup task.
type TaskStatus struct {
	Key        string        `json:"key"`
	Interval   time.Duration `json:"interval"`
	LastWarmed time.Time     `json:"last_warmed"`
}

// NewWarmer creates a warmer bound to a cache manager.
func NewWarmer(manager *Manager) *Warmer {
	return &Warmer{
		manager: manager,
		now:     time.Now,
		tasks:   make(map[string]*warmTask),
	}
}

// AddTask registers (or replaces) a warmup task for key.
func (w *Warmer) AddTask(key string, src Source, interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tasks[key] = &warmTask{source: src, interval: interval}
	log.Info().Str("key", key).Dur("interval", interval).Msg("Added cache warmup task")
}

// WarmCache force-refreshes every task that is due: never warmed, or last
// warmed longer than its interval ago. A failing task is logged and skipped;
// the loop never aborts. Returns the number of tasks warmed.
func (w *Warmer) WarmCache(ctx context.Context) int {
	now := w.now()

	w.mu.Lock()
	due := make(map[string]*warmTask, len(w.tasks))
	for key, task := range w.tasks {
		if task.lastWarmed.IsZero() || now.Sub(task.lastWarmed) > task.interval {
			due[key] = task
		}
	}
	w.mu.Unlock()

	warmed := 0
	for key, task := range due {
		log.Info().Str("key", key).Msg("Warming cache")
		if _, err := w.manager.GetOrFetch(ctx, key, task.source, ForceRefresh()); err != nil {
			log.Error().Err(err).Str("key", key).Msg("Cache warmup failed")
			continue
		}
		w.mu.Lock()
		task.lastWarmed = now
		w.mu.Unlock()
		warmed++
	}
	return warmed
}

// Schedule returns the registered tasks sorted by key.
func (w *Warmer) Schedule() []TaskStatus {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]TaskStatus, 0, len(w.tasks))
	for key, task := range w.tasks {
		out = append(out, TaskStatus{Key: key, Interval: task.interval, LastWarmed: task.lastWarmed})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

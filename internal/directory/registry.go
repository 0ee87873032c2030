package directory

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry owns one View per browser session. A view lives from its first
// request until it has been idle for longer than the idle timeout.
type Registry struct {
	cfg    ViewConfig
	idle   time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	views map[string]*View
}

func NewRegistry(cfg ViewConfig, idle time.Duration) *Registry {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	cfg.Now = now
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:    cfg,
		idle:   idle,
		now:    now,
		logger: logger.With("component", "registry"),
		views:  make(map[string]*View),
	}
}

// Get returns the session's view, creating and initializing it on first use.
func (r *Registry) Get(sessionID string) *View {
	v, _ := r.Acquire(sessionID)
	return v
}

// Acquire is Get that also reports whether the view was created by this call.
func (r *Registry) Acquire(sessionID string) (*View, bool) {
	r.mu.Lock()
	v, ok := r.views[sessionID]
	if !ok {
		v = NewView(r.cfg)
		r.views[sessionID] = v
	} else {
		// Refreshed under r.mu so a concurrent Sweep cannot evict it.
		v.markUsed()
	}
	n := len(r.views)
	r.mu.Unlock()

	if !ok {
		r.cfg.Metrics.SetActiveViews(n)
		v.Initialize()
	}
	return v, !ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Sweep discards views idle for longer than the idle timeout and returns
// how many were removed. A non-positive timeout disables eviction.
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	var evicted []*View
	for id, v := range r.views {
		if v.idleSince().Before(cutoff) {
			evicted = append(evicted, v)
			delete(r.views, id)
		}
	}
	n := len(r.views)
	r.mu.Unlock()

	for _, v := range evicted {
		v.Close()
	}
	if len(evicted) > 0 {
		r.cfg.Metrics.SetActiveViews(n)
		r.logger.Debug("evicted idle views", "count", len(evicted), "remaining", n)
	}
	return len(evicted)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close discards every view.
func (r *Registry) Close() {
	r.mu.Lock()
	views := r.views
	r.views = make(map[string]*View)
	r.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
	r.cfg.Metrics.SetActiveViews(0)
}

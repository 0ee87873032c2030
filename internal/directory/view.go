// Package directory implements the donor discovery view: pending and
// committed filters, asynchronous fetches against a donor directory, and the
// projection of the resulting list into map markers and live counts.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vbonduro/donormap/internal/domain"
	"github.com/vbonduro/donormap/internal/geo"
	"github.com/vbonduro/donormap/internal/metrics"
)

// Directory is the remote store contract the view depends on.
type Directory interface {
	QueryDonors(ctx context.Context, constraints []domain.Constraint) ([]*domain.Donor, error)
}

type ViewConfig struct {
	Directory Directory
	// Locator is used by Initialize and by Locate(nil).
	Locator geo.Provider
	// Center is the fallback map center. The zero value means geo.DefaultCenter.
	Center  domain.Position
	Logger  *slog.Logger
	Metrics *metrics.Manager
	// Now is the clock used for idle tracking; defaults to time.Now.
	Now func() time.Time
}

// View is the per-session state of the donor map. All methods are safe for
// concurrent use. Fetches and lookups run in their own goroutines on a
// context owned by the view and update state when they complete.
type View struct {
	dir     Directory
	locator geo.Provider
	logger  *slog.Logger
	metrics *metrics.Manager
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	filters     *FilterController
	committed   domain.Filters
	donors      []*domain.Donor
	loading     bool
	fetchFailed bool
	center      domain.Position
	fetchSeq    uint64
	locateSeq   uint64
	// locatedSeq is the lookup that set the current center.
	locatedSeq  uint64
	initialized bool
	lastUsed    time.Time
}

func NewView(cfg ViewConfig) *View {
	center := cfg.Center
	if center == (domain.Position{}) {
		center = geo.DefaultCenter
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	locator := cfg.Locator
	if locator == nil {
		locator = geo.Unavailable()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &View{
		dir:       cfg.Directory,
		locator:   locator,
		logger:    logger.With("component", "directory"),
		metrics:   cfg.Metrics,
		now:       now,
		ctx:       ctx,
		cancel:    cancel,
		filters:   NewFilterController(),
		committed: domain.NewFilters(),
		donors:    []*domain.Donor{},
		loading:   true,
		center:    center,
		lastUsed:  now(),
	}
}

// Initialize starts the first location lookup and the first unfiltered
// fetch. Only the first call has an effect; it returns the fetch's done
// channel, later calls return an already closed channel.
func (v *View) Initialize() <-chan struct{} {
	v.mu.Lock()
	if v.initialized {
		v.mu.Unlock()
		return closedChan()
	}
	v.initialized = true
	v.mu.Unlock()

	v.Locate(nil)
	return v.Fetch()
}

// SetFilter edits pending state only.
func (v *View) SetFilter(dimension, value string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touch()
	return v.filters.SetFilter(dimension, value)
}

// ApplyFilters commits the pending filters and fetches with them.
func (v *View) ApplyFilters() <-chan struct{} {
	v.mu.Lock()
	v.touch()
	v.committed = v.filters.Pending()
	v.loading = true
	v.mu.Unlock()
	return v.Fetch()
}

// ClearFilters empties both pending and committed filters and fetches the
// unfiltered list.
func (v *View) ClearFilters() <-chan struct{} {
	v.mu.Lock()
	v.touch()
	v.filters.Reset()
	v.committed = domain.NewFilters()
	v.loading = true
	v.mu.Unlock()
	return v.Fetch()
}

// Fetch queries the directory with the committed filters. The returned
// channel closes once this fetch has settled, whether it was applied,
// failed, or discarded because a newer fetch was issued after it.
func (v *View) Fetch() <-chan struct{} {
	v.mu.Lock()
	v.touch()
	v.fetchSeq++
	seq := v.fetchSeq
	constraints := v.committed.Constraints()
	v.loading = true
	v.mu.Unlock()

	done := make(chan struct{})
	go v.runFetch(seq, constraints, done)
	return done
}

func (v *View) runFetch(seq uint64, constraints []domain.Constraint, done chan struct{}) {
	defer close(done)

	start := time.Now()
	donors, err := v.dir.QueryDonors(v.ctx, constraints)
	elapsed := time.Since(start)

	v.mu.Lock()
	defer v.mu.Unlock()

	if seq != v.fetchSeq {
		v.metrics.RecordFetch(metrics.FetchStale, elapsed)
		v.logger.Debug("discarding stale fetch", "seq", seq, "latest", v.fetchSeq)
		return
	}

	v.loading = false
	if err != nil {
		v.fetchFailed = true
		v.metrics.RecordFetch(metrics.FetchError, elapsed)
		if !errors.Is(err, context.Canceled) {
			v.logger.Error("error fetching donors", "error", err, "constraints", len(constraints))
		}
		return
	}

	if donors == nil {
		donors = []*domain.Donor{}
	}
	v.donors = donors
	v.fetchFailed = false
	v.metrics.RecordFetch(metrics.FetchOK, elapsed)
	v.logger.Debug("donors fetched", "count", len(donors), "constraints", len(constraints), "duration_ms", elapsed.Milliseconds())
}

// Locate re-centers the map using p, or the view's own locator when p is
// nil. Failures leave the center untouched and are only logged at debug. A
// success is dropped only when a newer lookup has already moved the center.
func (v *View) Locate(p geo.Provider) <-chan struct{} {
	if p == nil {
		p = v.locator
	}

	v.mu.Lock()
	v.touch()
	v.locateSeq++
	seq := v.locateSeq
	v.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		pos, err := p.CurrentPosition(v.ctx)
		if err == nil && !pos.Valid() {
			err = geo.ErrPositionUnavailable
		}
		v.metrics.RecordLocate(err == nil)
		if err != nil {
			v.logger.Debug("location unavailable, keeping map center", "error", err)
			return
		}

		v.mu.Lock()
		defer v.mu.Unlock()
		if seq < v.locatedSeq {
			return
		}
		v.center = pos
		v.locatedSeq = seq
	}()
	return done
}

// Snapshot is an immutable copy of the view state.
type Snapshot struct {
	Pending     domain.Filters
	Committed   domain.Filters
	Donors      []*domain.Donor
	Loading     bool
	FetchFailed bool
	Center      domain.Position
	Stats       Stats
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touch()

	donors := make([]*domain.Donor, len(v.donors))
	copy(donors, v.donors)
	return Snapshot{
		Pending:     v.filters.Pending(),
		Committed:   v.committed.Clone(),
		Donors:      donors,
		Loading:     v.loading,
		FetchFailed: v.fetchFailed,
		Center:      v.center,
		Stats:       ComputeStats(donors),
	}
}

// Close cancels in-flight fetches and lookups. The view must not be used
// afterwards.
func (v *View) Close() {
	v.cancel()
}

// idleSince reports when the view was last used.
func (v *View) idleSince() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastUsed
}

func (v *View) markUsed() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touch()
}

// touch must be called with mu held.
func (v *View) touch() {
	v.lastUsed = v.now()
}

func closedChan() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

package scanner

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"artdedup/internal/similarity"
)

// State is the lifecycle of a background scan.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Progress is a point-in-time snapshot of a scan.
type Progress struct {
	Handle          string
	State           State
	Processed       int64
	Total           int64
	CandidatesFound int64
	Errors          int64
	Fingerprinted   int64
	Skipped         int64 // images with a fingerprint failure recorded by an earlier scan
	Methods         []similarity.Method
	StartedAt       time.Time
	FinishedAt      *time.Time
	LastError       string
}

// Done reports whether the scan reached a final state.
func (p Progress) Done() bool {
	return p.State != StateRunning
}

type run struct {
	handle  string
	methods []similarity.Method
	cancel  context.CancelFunc
	done    chan struct{}

	processed     atomic.Int64
	total         atomic.Int64
	found         atomic.Int64
	errs          atomic.Int64
	fingerprinted atomic.Int64
	skipped       atomic.Int64

	mu         sync.Mutex
	state      State
	startedAt  time.Time
	finishedAt time.Time
	lastErr    string
}

func newRun(handle string, methods []similarity.Method, cancel context.CancelFunc, now time.Time) *run {
	return &run{
		handle:    handle,
		methods:   methods,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateRunning,
		startedAt: now,
	}
}

func (r *run) recordError(err error) {
	r.errs.Add(1)
	if err == nil {
		return
	}
	r.mu.Lock()
	r.lastErr = err.Error()
	r.mu.Unlock()
}

func (r *run) finish(state State, err error, now time.Time) {
	r.mu.Lock()
	r.state = state
	r.finishedAt = now
	if err != nil {
		r.lastErr = err.Error()
	}
	r.mu.Unlock()
	close(r.done)
}

func (r *run) snapshot() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := Progress{
		Handle:          r.handle,
		State:           r.state,
		Processed:       r.processed.Load(),
		Total:           r.total.Load(),
		CandidatesFound: r.found.Load(),
		Errors:          r.errs.Load(),
		Fingerprinted:   r.fingerprinted.Load(),
		Skipped:         r.skipped.Load(),
		Methods:         append([]similarity.Method(nil), r.methods...),
		StartedAt:       r.startedAt,
		LastError:       r.lastErr,
	}
	if !r.finishedAt.IsZero() {
		finished := r.finishedAt
		p.FinishedAt = &finished
	}
	return p
}

// registry keeps running scans and finished scans until their retention ends.
type registry struct {
	mu        sync.Mutex
	runs      map[string]*run
	retention time.Duration
	now       func() time.Time
}

func newRegistry(retention time.Duration) *registry {
	return &registry{runs: make(map[string]*run), retention: retention, now: time.Now}
}

func (g *registry) add(r *run) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneLocked()
	g.runs[r.handle] = r
}

func (g *registry) get(handle string) (*run, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneLocked()
	r, ok := g.runs[handle]
	return r, ok
}

func (g *registry) all() []*run {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneLocked()
	out := make([]*run, 0, len(g.runs))
	for _, r := range g.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].startedAt.Before(out[j].startedAt) })
	return out
}

func (g *registry) pruneLocked() {
	if g.retention <= 0 {
		return
	}
	cutoff := g.now().Add(-g.retention)
	for handle, r := range g.runs {
		r.mu.Lock()
		expired := r.state != StateRunning && r.finishedAt.Before(cutoff)
		r.mu.Unlock()
		if expired {
			delete(g.runs, handle)
		}
	}
}

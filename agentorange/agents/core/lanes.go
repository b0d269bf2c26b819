package core

import (
	"agentorange/agentorange/services/llm"
	"agentorange/agentorange/utils/metrics"
	"context"
	"sort"
	"sync"
)

type lane struct {
	provider llm.Provider
	cancel   context.CancelFunc
}

// Lanes tracks the generating flag of every in-flight request. A lane is
// generating while it is present; Stop and Cancel remove it.
type Lanes struct {
	mu       sync.Mutex
	lanes    map[string]*lane
	reserved map[string]struct{}
	metrics  *metrics.Metrics
}

func NewLanes(m *metrics.Metrics) *Lanes {
	return &Lanes{lanes: make(map[string]*lane), reserved: make(map[string]struct{}), metrics: m}
}

// Reserve marks id as generating before its run starts, so it can already be
// listed and cancelled.
func (l *Lanes) Reserve(id string) {
	l.Start(id, nil)
	l.mu.Lock()
	l.reserved[id] = struct{}{}
	l.mu.Unlock()
}

// Attach hands the run's cancel func to its lane, starting the lane when it was
// never reserved. It reports false for a reserved lane that was cancelled
// before its run started.
func (l *Lanes) Attach(id string, cancel context.CancelFunc) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, wasReserved := l.reserved[id]
	delete(l.reserved, id)
	if ln, ok := l.lanes[id]; ok {
		if ln.cancel == nil {
			ln.cancel = cancel
		}
		return true
	}
	if wasReserved {
		return false
	}
	l.lanes[id] = &lane{cancel: cancel}
	l.metrics.LaneStarted()
	return true
}

// Start marks id as generating. cancel, if set, aborts the lane's request.
func (l *Lanes) Start(id string, cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.lanes[id]; ok {
		return
	}
	l.lanes[id] = &lane{cancel: cancel}
	l.metrics.LaneStarted()
}

// Bind attaches the adapter serving a lane so Cancel can reach it. It reports
// false when the lane was already stopped.
func (l *Lanes) Bind(id string, p llm.Provider) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln, ok := l.lanes[id]
	if !ok {
		return false
	}
	ln.provider = p
	return true
}

// Stop clears the flag. Stopping a lane that is not generating is a no-op.
func (l *Lanes) Stop(id string) bool {
	_, ok := l.remove(id)
	return ok
}

// Cancel clears the flag, tells the bound adapter to stop streaming and aborts
// the request. It reports whether the lane was generating.
func (l *Lanes) Cancel(id string) bool {
	ln, ok := l.remove(id)
	if !ok {
		return false
	}
	if ln.provider != nil {
		ln.provider.CancelStream()
	}
	if ln.cancel != nil {
		ln.cancel()
	}
	return true
}

func (l *Lanes) remove(id string) (*lane, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln, ok := l.lanes[id]
	if !ok {
		return nil, false
	}
	delete(l.lanes, id)
	l.metrics.LaneStopped()
	return ln, true
}

func (l *Lanes) IsGenerating(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.lanes[id]
	return ok
}

// Active returns the generating lane ids in sorted order.
func (l *Lanes) Active() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.lanes))
	for id := range l.lanes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

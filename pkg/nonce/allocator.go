// Package nonce owns the authoritative next-sequence-nonce per
// (account, api-key) scope and serializes concurrent allocation so that
// transactions reach the sequencer in ascending nonce order.
package nonce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultStaleness is how old a scope's state may get before Acquire
// re-reads the authoritative value from the Source.
const DefaultStaleness = 30 * time.Second

// Scope identifies one independent nonce sequence. Unrelated scopes never
// contend with each other.
type Scope struct {
	AccountIndex int64
	ApiKeyIndex  uint8
}

func (s Scope) String() string {
	return fmt.Sprintf("account=%d/key=%d", s.AccountIndex, s.ApiKeyIndex)
}

// Source is the remote authoritative nonce lookup. Consulted on first use of
// a scope, on staleness, and on sequencing-conflict reconciliation.
type Source interface {
	NextNonce(ctx context.Context, accountIndex int64, apiKeyIndex uint8) (uint64, error)
}

// scopeState holds one scope's sequence. The sem channel serializes the full
// allocate->sign->submit window; mu guards the counters for short-lived
// bookkeeping calls (Resolve, Snapshot) that may run while a lease is open.
type scopeState struct {
	sem chan struct{}

	mu          sync.Mutex
	next        uint64
	refreshedAt time.Time
	reclaim     *uint64
	inDoubt     map[uint64]struct{}
}

// Allocator hands out monotonically increasing, collision-free sequence
// nonces per scope. Allocation is lease-based: the scope stays exclusively
// held from Acquire until the lease is settled, so the nonce that is
// numerically smaller always reaches the sequencer first.
type Allocator struct {
	mu     sync.Mutex
	scopes map[Scope]*scopeState

	source    Source
	staleness time.Duration
	now       func() time.Time
	log       *zap.Logger
}

func NewAllocator(source Source, staleness time.Duration, log *zap.Logger) *Allocator {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Allocator{
		scopes:    make(map[Scope]*scopeState),
		source:    source,
		staleness: staleness,
		now:       time.Now,
		log:       log,
	}
}

// scope returns the lazily created state for s. Only the map lookup is
// guarded by the registry lock; per-scope work never holds it.
func (a *Allocator) scope(s Scope) *scopeState {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.scopes[s]
	if !ok {
		st = &scopeState{
			sem:     make(chan struct{}, 1),
			inDoubt: make(map[uint64]struct{}),
		}
		a.scopes[s] = st
	}
	return st
}

// Acquire reserves the next sequence nonce for the scope and keeps the scope
// exclusively held until the returned lease is settled with Consume, Release,
// or InDoubt. A reclaimed nonce from the previous allocation is preferred
// over advancing the counter.
func (a *Allocator) Acquire(ctx context.Context, s Scope) (*Lease, error) {
	st := a.scope(s)

	select {
	case st.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	st.mu.Lock()
	stale := st.refreshedAt.IsZero() || a.now().Sub(st.refreshedAt) > a.staleness
	st.mu.Unlock()

	if stale {
		if err := a.refresh(ctx, s, st); err != nil {
			<-st.sem
			return nil, err
		}
	}

	st.mu.Lock()
	var n uint64
	if st.reclaim != nil {
		n = *st.reclaim
		st.reclaim = nil
	} else {
		// A refresh may have moved next below a quarantined value; skip
		// anything still in doubt rather than reissuing it.
		for {
			n = st.next
			st.next++
			if _, held := st.inDoubt[n]; !held {
				break
			}
		}
	}
	st.mu.Unlock()

	return &Lease{scope: s, st: st, nonce: n}, nil
}

// ForceRefresh discards local state for the scope and re-reads the
// authoritative next nonce. Used once after a sequencing rejection before a
// single retry. It waits for any open lease to settle first.
func (a *Allocator) ForceRefresh(ctx context.Context, s Scope) error {
	st := a.scope(s)

	select {
	case st.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-st.sem }()

	return a.refresh(ctx, s, st)
}

// refresh must be called while holding the scope's sem.
func (a *Allocator) refresh(ctx context.Context, s Scope, st *scopeState) error {
	fetched, err := a.source.NextNonce(ctx, s.AccountIndex, s.ApiKeyIndex)
	if err != nil {
		return fmt.Errorf("failed to fetch next nonce for %s: %w", s, err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	// The remote value is authoritative in both directions. The sem is held
	// here, so every local nonce below it was either consumed (the remote is
	// already past it), released, or quarantined in-doubt; stepping back to
	// the fetched value is the only way a released or never-landed nonce
	// ever rejoins the sequence. In-doubt values at or above the fetched
	// value stay quarantined and are skipped at allocation instead.
	st.next = fetched
	st.refreshedAt = a.now()
	st.reclaim = nil
	for n := range st.inDoubt {
		if n < fetched {
			delete(st.inDoubt, n)
		}
	}

	a.log.Debug("nonce state refreshed",
		zap.Int64("account_index", s.AccountIndex),
		zap.Uint8("api_key_index", s.ApiKeyIndex),
		zap.Uint64("next_nonce", st.next))
	return nil
}

// Resolve settles a previously in-doubt nonce once a definitive outcome is
// observed. consumed=true means the remote accepted it (or rejected its
// business content after acknowledging receipt); consumed=false means the
// remote definitively never saw it, so it may be reused by the next
// allocation if the reclaim slot is free.
func (a *Allocator) Resolve(s Scope, nonce uint64, consumed bool) {
	st := a.scope(s)
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.inDoubt[nonce]; !ok {
		return
	}
	delete(st.inDoubt, nonce)
	if !consumed && st.reclaim == nil {
		n := nonce
		st.reclaim = &n
	}
}

// Snapshot exposes the scope's counters for inspection and tests without
// racing the allocator.
func (a *Allocator) Snapshot(s Scope) (next uint64, inDoubt int) {
	st := a.scope(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.next, len(st.inDoubt)
}

// Lease is one reserved sequence nonce plus exclusive ownership of its
// scope. Exactly one disposition call settles it; later calls are no-ops.
type Lease struct {
	scope Scope
	st    *scopeState
	nonce uint64

	mu      sync.Mutex
	settled bool
}

// Nonce returns the reserved sequence value.
func (l *Lease) Nonce() uint64 {
	return l.nonce
}

// Scope returns the scope this lease belongs to.
func (l *Lease) Scope() Scope {
	return l.scope
}

// Consume marks the nonce as observed by the remote sequencer. It is never
// reissued, even if the transaction's business content was rejected.
func (l *Lease) Consume() {
	l.settle(func(st *scopeState) {})
}

// Release returns the nonce for reuse by the next allocation only. Valid
// solely when the remote never observed it (client-side failure before
// transport).
func (l *Lease) Release() {
	l.settle(func(st *scopeState) {
		n := l.nonce
		st.reclaim = &n
	})
}

// InDoubt quarantines the nonce after an unknown outcome (timeout or
// cancellation mid-flight). It is not reissued until Resolve reports a
// definitive outcome or a forced refresh supersedes it.
func (l *Lease) InDoubt() {
	l.settle(func(st *scopeState) {
		st.inDoubt[l.nonce] = struct{}{}
	})
}

func (l *Lease) settle(f func(st *scopeState)) {
	l.mu.Lock()
	if l.settled {
		l.mu.Unlock()
		return
	}
	l.settled = true
	l.mu.Unlock()

	l.st.mu.Lock()
	f(l.st)
	l.st.mu.Unlock()

	<-l.st.sem
}

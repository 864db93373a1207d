// Package txn implements the design's transaction scaffold (§4.5): a
// begin/commit/abort envelope around a batch of B-tree operations, a
// pinned-page list released on completion, and a lightweight journal used
// only for log correlation across concurrent transactions, not as a
// write-ahead-log recovery mechanism (persistence and crash recovery are an
// explicit Non-goal — see DESIGN.md). Grounded on
// ShubhamNegi4-DaemonDB/query_executor/txn_manager.go's Begin/State shape,
// generalized from that teacher's single monotonic counter to a UUID-tagged
// transaction (so log lines from concurrent transactions are
// distinguishable without a shared counter) and from row-pointer undo
// bookkeeping to a pinned-page release list appropriate to this core's
// page/cursor model.
package txn

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/pagetree/pagetree/internal/errs"
	"github.com/pagetree/pagetree/page"
	"github.com/pagetree/pagetree/pagecache"
)

// State is a transaction's lifecycle position, mirroring the teacher's
// TxnState (Active/Committed/Aborted).
type State uint8

const (
	StateActive State = iota
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// JournalFunc receives one line per transaction lifecycle event
// (begin/commit/abort), tagged with the transaction's UUID. It exists purely
// for external log correlation — nothing written through it is read back by
// this package. A nil JournalFunc disables journaling.
type JournalFunc func(line string)

// Manager begins transactions against a shared page cache, giving each one
// a distinguishing UUID for concurrent log correlation. Grounded on
// txn_manager.go's TxnManager, generalized from a monotonic uint64 ID (which
// collides across concurrently begun transactions in interleaved logs) to a
// UUID per the design's supplement.
type Manager struct {
	mu      sync.Mutex
	cache   *pagecache.Cache
	journal JournalFunc
	open    map[uuid.UUID]*Transaction
}

// NewManager constructs a Manager over cache. journal may be nil.
func NewManager(cache *pagecache.Cache, journal JournalFunc) *Manager {
	return &Manager{cache: cache, journal: journal, open: make(map[uuid.UUID]*Transaction)}
}

func (m *Manager) log(line string) {
	if m.journal != nil {
		m.journal(line)
	}
}

// Begin starts a new active transaction.
func (m *Manager) Begin() *Transaction {
	id := uuid.New()
	t := &Transaction{id: id, mgr: m, state: StateActive}

	m.mu.Lock()
	m.open[id] = t
	m.mu.Unlock()

	m.log(fmt.Sprintf("txn %s begin", id))
	return t
}

// Open reports the number of currently active transactions.
func (m *Manager) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// Transaction batches a set of B-tree operations behind a single
// commit/abort boundary. Per the design's Non-goal on durability, Commit and
// Abort differ only in whether pinned pages are released as-is (Commit) or
// unwound page-by-page in reverse pin order (Abort's best-effort undo of
// pin/cache-visibility side effects) — neither writes a redo/undo log
// capable of surviving a crash; MutatePayload's dirty marking still flows
// straight to the page cache regardless of which one runs.
type Transaction struct {
	mu    sync.Mutex
	id    uuid.UUID
	mgr   *Manager
	state State

	// pinned records every page this transaction pinned, most-recent-last,
	// so Abort can unpin in reverse acquisition order (Commit unpins in
	// acquisition order).
	pinned []*page.Page
}

func (t *Transaction) ID() uuid.UUID { return t.id }

func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Track registers a page this transaction has pinned (typically the result
// of a pagecache.Cache.Fetch/Alloc call made on the transaction's behalf) so
// Commit/Abort can release it.
func (t *Transaction) Track(p *page.Page) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pinned = append(t.pinned, p)
}

// Commit ends the transaction successfully, releasing every tracked page
// pin. It is an error to commit a transaction that is not StateActive.
func (t *Transaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return errs.New(errs.StatusInvParameter, "transaction is not active")
	}
	t.release()
	t.state = StateCommitted
	t.mgr.finish(t)
	t.mgr.log(fmt.Sprintf("txn %s commit", t.id))
	return nil
}

// Abort ends the transaction unsuccessfully, releasing every tracked page
// pin in reverse acquisition order. Because this core does not maintain a
// physical undo log (an explicit Non-goal), Abort cannot roll back
// structural B-tree mutations already applied to pages by the caller before
// calling Abort — callers that need atomicity must avoid mutating the tree
// until they are ready to commit, or perform their own compensating
// operations.
func (t *Transaction) Abort() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return errs.New(errs.StatusInvParameter, "transaction is not active")
	}
	for i := len(t.pinned) - 1; i >= 0; i-- {
		t.mgr.cache.Unpin(t.pinned[i])
	}
	t.pinned = nil
	t.state = StateAborted
	t.mgr.finish(t)
	t.mgr.log(fmt.Sprintf("txn %s abort", t.id))
	return nil
}

func (t *Transaction) release() {
	for _, p := range t.pinned {
		t.mgr.cache.Unpin(p)
	}
	t.pinned = nil
}

func (m *Manager) finish(t *Transaction) {
	m.mu.Lock()
	delete(m.open, t.id)
	m.mu.Unlock()
}

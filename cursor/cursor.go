// Package cursor implements the design's Cursor State Machine (§4.4):
// NIL / COUPLED / UNCOUPLED, coupling to a (page, slot) pair with a
// non-owning back-pointer on the page's Notifiee list, and re-coupling by
// remembered key on movement across a mutated or evicted page. Grounded on
// the shape of `other_examples/Giulio2002-gdbx__cursor.go`'s state-tracked
// cursor and `other_examples/alexhholmes-fredb__btree.go`'s from-scratch
// cursor/tx pairing, adapted to the design's simpler single (page, index)
// coupling (no duplicate sub-trees) and its page.Notifiee back-pointer
// mechanism rather than a page-stack.
package cursor

import (
	"sync"

	"github.com/pagetree/pagetree/btree"
	"github.com/pagetree/pagetree/internal/errs"
	"github.com/pagetree/pagetree/node"
	"github.com/pagetree/pagetree/page"
	"github.com/pagetree/pagetree/pagecache"
)

// State is the cursor's position in the NIL/COUPLED/UNCOUPLED machine.
type State int

const (
	StateNil State = iota
	StateCoupled
	StateUncoupled
)

// Direction selects a Move target, matching §6.3's FIRST/LAST/NEXT/PREVIOUS
// cursor-move flags.
type Direction int

const (
	MoveFirst Direction = iota
	MoveLast
	MoveNext
	MovePrevious
)

// Cursor is one cursor over a Tree. Every Cursor is independent; cloning
// (Clone) is how two cursors come to share a starting position.
type Cursor struct {
	mu sync.Mutex

	tree   *btree.Tree
	cache  *pagecache.Cache
	layout node.Layout

	state State
	page  *page.Page // non-nil only while COUPLED; the cursor owns one pin on it
	index int

	uncoupledKey []byte // heap copy owned by the cursor while UNCOUPLED
}

// New constructs a NIL cursor over tree. Key comparisons always run through
// the tree, which owns the live, swappable comparator
// (btree.Tree.SetComparator) — a cursor has no comparator of its own.
func New(tree *btree.Tree, cache *pagecache.Cache, layout node.Layout) *Cursor {
	return &Cursor{tree: tree, cache: cache, layout: layout}
}

func (c *Cursor) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Uncouple implements page.Notifiee: called when this cursor's page is about
// to split or shift in a way ordinary index re-basing (ShiftIndex) can't
// repair. It copies the slot's current key into the cursor's own buffer
// before losing access to it.
func (c *Cursor) Uncouple() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCoupled || c.page == nil {
		return
	}
	n := node.View(c.page.Payload(), c.layout)
	if c.index < n.Count() {
		c.uncoupledKey = append([]byte(nil), n.KeyAt(c.index)...)
	}
	c.page.Detach(c)
	c.cache.Unpin(c.page)
	c.page = nil
	c.state = StateUncoupled
}

// ShiftIndex implements page.Notifiee's erase-shift half: a cursor after the
// removed slot moves down by one; a cursor exactly on the removed slot
// uncouples, copying the vanishing key out first.
func (c *Cursor) ShiftIndex(removedIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCoupled || c.page == nil {
		return
	}
	switch {
	case c.index == removedIndex:
		n := node.View(c.page.Payload(), c.layout)
		c.uncoupledKey = append([]byte(nil), n.KeyAt(c.index)...)
		c.page.Detach(c)
		c.cache.Unpin(c.page)
		c.page = nil
		c.state = StateUncoupled
	case c.index > removedIndex:
		c.index--
	}
}

// releaseLocked drops whatever the cursor currently holds — page pin and
// notifiee registration, or the uncoupled key buffer — without changing
// state. Callers set state afterward.
func (c *Cursor) releaseLocked() {
	if c.page != nil {
		c.page.Detach(c)
		c.cache.Unpin(c.page)
		c.page = nil
	}
	c.uncoupledKey = nil
}

func (c *Cursor) coupleLocked(p *page.Page, index int) {
	c.releaseLocked()
	c.page = p
	c.index = index
	c.state = StateCoupled
	p.Attach(c)
}

// SetNil forces the cursor back to NIL, releasing any pin or key buffer it
// holds.
func (c *Cursor) SetNil() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
	c.state = StateNil
}

// Close releases the cursor's resources. A closed cursor must not be reused.
func (c *Cursor) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
	c.state = StateNil
}

// Clone duplicates the cursor's current position: a COUPLED clone
// re-registers on the same page's cursor list (with its own pin), an
// UNCOUPLED clone copies the heap key buffer. Grounded on
// original_source/src/btree_cursor.c's clone support, which the distilled
// spec.md lists in its API surface without specifying (SPEC_FULL.md §C.1).
func (c *Cursor) Clone() *Cursor {
	c.mu.Lock()
	defer c.mu.Unlock()

	clone := &Cursor{tree: c.tree, cache: c.cache, layout: c.layout, state: c.state}
	switch c.state {
	case StateCoupled:
		c.cache.Pin(c.page)
		clone.page = c.page
		clone.index = c.index
		c.page.Attach(clone)
	case StateUncoupled:
		clone.uncoupledKey = append([]byte(nil), c.uncoupledKey...)
	}
	return clone
}

// currentKeyLocked returns the key the cursor is currently positioned on,
// from either state.
func (c *Cursor) currentKeyLocked() ([]byte, error) {
	switch c.state {
	case StateCoupled:
		n := node.View(c.page.Payload(), c.layout)
		return append([]byte(nil), n.KeyAt(c.index)...), nil
	case StateUncoupled:
		return c.uncoupledKey, nil
	default:
		return nil, errs.ErrCursorIsNil
	}
}

// Find sets the cursor to NIL, then couples it to key on an exact match,
// per §4.4: "sets the cursor NIL, then invokes B-tree search with cursor
// coupling as a side effect on success."
func (c *Cursor) Find(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseLocked()
	c.state = StateNil

	offset, slot, exact, err := c.tree.Find(key)
	if err != nil {
		return err
	}
	if !exact {
		return errs.ErrKeyNotFound
	}
	p, err := c.cache.Fetch(offset, page.TypeLeaf)
	if err != nil {
		return err
	}
	c.coupleLocked(p, slot)
	return nil
}

// Move implements the state machine's move(first|last|next|previous).
func (c *Cursor) Move(dir Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch dir {
	case MoveFirst:
		return c.moveFirstLocked()
	case MoveLast:
		return c.moveLastLocked()
	case MoveNext:
		if c.state == StateNil {
			return c.moveFirstLocked()
		}
		return c.moveNextLocked()
	case MovePrevious:
		if c.state == StateNil {
			return c.moveLastLocked()
		}
		return c.movePreviousLocked()
	default:
		return errs.ErrInvParameter
	}
}

func (c *Cursor) moveFirstLocked() error {
	offset, slot, err := c.tree.First()
	if err != nil {
		c.releaseLocked()
		c.state = StateNil
		return err
	}
	p, err := c.cache.Fetch(offset, page.TypeLeaf)
	if err != nil {
		return err
	}
	c.coupleLocked(p, slot)
	return nil
}

func (c *Cursor) moveLastLocked() error {
	offset, slot, err := c.tree.Last()
	if err != nil {
		c.releaseLocked()
		c.state = StateNil
		return err
	}
	p, err := c.cache.Fetch(offset, page.TypeLeaf)
	if err != nil {
		return err
	}
	c.coupleLocked(p, slot)
	return nil
}

// recoupleLocked re-couples an UNCOUPLED cursor by searching for its
// remembered key, landing exactly or on the next-greater slot per §4.4.
func (c *Cursor) recoupleLocked() error {
	offset, slot, err := c.tree.FindNear(c.uncoupledKey, btree.NearGreaterEqual)
	if err != nil {
		c.releaseLocked()
		c.state = StateNil
		return err
	}
	p, err := c.cache.Fetch(offset, page.TypeLeaf)
	if err != nil {
		return err
	}
	c.coupleLocked(p, slot)
	return nil
}

func (c *Cursor) moveNextLocked() error {
	if c.state == StateUncoupled {
		if err := c.recoupleLocked(); err != nil {
			return err
		}
	}
	n := node.View(c.page.Payload(), c.layout)
	if c.index+1 < n.Count() {
		c.index++
		return nil
	}
	right := n.RightSibling()
	if right == 0 {
		return errs.ErrKeyNotFound
	}
	p, err := c.cache.Fetch(right, page.TypeLeaf)
	if err != nil {
		return err
	}
	c.coupleLocked(p, 0)
	return nil
}

func (c *Cursor) movePreviousLocked() error {
	if c.state == StateUncoupled {
		offset, slot, err := c.tree.FindNear(c.uncoupledKey, btree.NearLessEqual)
		if err != nil {
			c.releaseLocked()
			c.state = StateNil
			return err
		}
		p, err := c.cache.Fetch(offset, page.TypeLeaf)
		if err != nil {
			return err
		}
		c.coupleLocked(p, slot)
	}
	n := node.View(c.page.Payload(), c.layout)
	if c.index > 0 {
		c.index--
		return nil
	}
	left := n.LeftSibling()
	if left == 0 {
		return errs.ErrKeyNotFound
	}
	p, err := c.cache.Fetch(left, page.TypeLeaf)
	if err != nil {
		return err
	}
	ln := node.View(p.Payload(), c.layout)
	c.coupleLocked(p, ln.Count()-1)
	return nil
}

// Insert wraps Tree.Insert, exempting this cursor from the uncoupling any
// other cursor on the mutated leaf receives, then couples the cursor to the
// freshly written slot.
func (c *Cursor) Insert(key []byte, flags byte, rid [8]byte, overwrite bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(key) > c.layout.KeySize {
		return errs.ErrInvKeySize
	}
	if err := c.tree.Insert(key, flags, rid, overwrite, c); err != nil {
		return err
	}
	offset, slot, exact, err := c.tree.Find(key)
	if err != nil {
		return err
	}
	if !exact {
		return errs.ErrIOError
	}
	p, err := c.cache.Fetch(offset, page.TypeLeaf)
	if err != nil {
		return err
	}
	c.coupleLocked(p, slot)
	return nil
}

// Overwrite rewrites the record at the cursor's current key. Per the design's
// §9 open-question decision, this always performs a genuine rewrite (never a
// no-op short circuit) even when the new bytes happen to match the old ones.
func (c *Cursor) Overwrite(flags byte, rid [8]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := c.currentKeyLocked()
	if err != nil {
		return err
	}
	return c.tree.Insert(key, flags, rid, true, c)
}

// Erase removes the cursor's current key and sets the cursor to NIL, per the
// state diagram's erase transition out of COUPLED/UNCOUPLED.
func (c *Cursor) Erase() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := c.currentKeyLocked()
	if err != nil {
		return err
	}
	if err := c.tree.Erase(key, c); err != nil {
		return err
	}
	c.releaseLocked()
	c.state = StateNil
	return nil
}

// Key returns the cursor's current key, from either COUPLED or UNCOUPLED
// state.
func (c *Cursor) Key() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentKeyLocked()
}

// Record returns the cursor's current inline record. Blob-encoded records
// must be resolved by the caller via blobstore using the rid this returns
// undecoded — Cursor does not import blobstore, matching the design's layer
// order (Cursor sits below the database wiring that owns blob resolution).
func (c *Cursor) Record() (flags byte, rid [8]byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCoupled {
		return 0, rid, errs.ErrCursorIsNil
	}
	n := node.View(c.page.Payload(), c.layout)
	return n.FlagsAt(c.index), n.RidAt(c.index), nil
}

// Package page implements the fixed-size buffer bound to a device offset
// described in the design's §3: a page's self-offset is also its identity,
// it carries a type tag, a dirty flag, a pin count, and — for leaves — the
// intrusive list of cursors coupled to it. Grounded on the teacher's Page
// struct (ShubhamNegi4-DaemonDB/storage_engine/page/page.go and
// types/page.go), generalized from the teacher's heap/B+-node dual-purpose
// page to the core's root/internal/leaf/blob/header taxonomy.
package page

import "sync"

// Type tags what a page holds, mirroring the one-byte type tag that leads
// every on-disk page per §6.1.
type Type uint8

const (
	TypeHeader Type = iota
	TypeRoot
	TypeInternal
	TypeLeaf
	TypeBlob
	TypeFree
)

// Notifiee is implemented by anything that must react when its host page is
// about to be structurally mutated — in practice, a coupled Cursor. Eviction
// does not notify: a coupled cursor holds a pin on its page, so that page is
// never evicted under it. Page holds Notifiees as a non-owning back-pointer list (package
// page never imports package cursor) so there is no ownership cycle: page
// ownership lives in the cache, cursor ownership lives in the database's
// cursor list, per the design's §9 note on the self-referential page/cursor
// graph.
type Notifiee interface {
	// Uncouple is called after the page's lock has been released (NotifyAll
	// takes a snapshot of the list under lock, then calls out). It is safe
	// for Uncouple to read the page's payload (e.g. to copy out a key
	// before losing its slot) and to call Detach on the page itself.
	Uncouple()

	// ShiftIndex is called instead of Uncouple when a leaf slot at
	// removedIndex is about to be erased: a cursor positioned after it on
	// the same page should decrement its own index rather than uncouple,
	// per the design's cursor-aware erase-shift supplement. A cursor
	// exactly at removedIndex must uncouple itself (its slot is vanishing)
	// and is free to call Detach synchronously, same as Uncouple.
	ShiftIndex(removedIndex int)
}

// Page is a live in-memory view over one page-sized region of a Device.
// Its zero value is not usable; construct with New.
type Page struct {
	mu sync.Mutex

	offset  int64
	typ     Type
	dirty   bool
	pinCnt  int32
	payload []byte

	notifiees []Notifiee
}

// New allocates a Page of the given size bound to offset. The payload is
// zeroed; callers fill it in (via node.Node.Init or MutatePayload) before the first
// flush.
func New(offset int64, typ Type, size int) *Page {
	return &Page{
		offset:  offset,
		typ:     typ,
		payload: make([]byte, size),
	}
}

func (p *Page) Offset() int64 { return p.offset }

func (p *Page) Type() Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.typ
}

func (p *Page) SetType(t Type) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typ = t
}

// Payload returns the page's raw buffer. Callers holding it across a call
// that might trigger a structure-modification operation on another page
// are fine — a Page is never reallocated or moved in place; only its
// contents change, and only under the page's own lock via MutatePayload.
func (p *Page) Payload() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.payload
}

// MutatePayload runs fn with exclusive access to the payload and marks the
// page dirty. Per the design's invariant, a page's dirty flag implies its
// payload differs from the on-disk image, so every mutating access goes
// through here rather than touching Payload()'s slice directly from
// outside this package's callers' perspective — although Go can't enforce
// that across packages, node/btree/cursor all route writes through
// MutatePayload to keep the invariant honest.
func (p *Page) MutatePayload(fn func(buf []byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.payload)
	p.dirty = true
}

func (p *Page) Dirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

func (p *Page) MarkDirty() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = true
}

func (p *Page) ClearDirty() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = false
}

// Pin and Unpin implement the scoped-acquisition pin count from §5: a
// pinned page (count > 0) is never evicted. Matches the teacher's
// BufferPool.Pin/Unpin (ShubhamNegi4-DaemonDB/bplustree/buffer_pool.go),
// generalized to live on the page itself rather than be looked up by ID in
// the cache on every call.
func (p *Page) Pin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pinCnt++
}

func (p *Page) Unpin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pinCnt > 0 {
		p.pinCnt--
	}
}

func (p *Page) PinCount() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pinCnt
}

func (p *Page) Pinned() bool { return p.PinCount() > 0 }

// Attach registers n on this page's cursor list. Called when a cursor
// couples to a slot on this page.
func (p *Page) Attach(n Notifiee) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifiees = append(p.notifiees, n)
}

// Detach removes n from this page's cursor list. Called when a cursor
// uncouples or moves to a different page.
func (p *Page) Detach(n Notifiee) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, other := range p.notifiees {
		if other == n {
			p.notifiees = append(p.notifiees[:i], p.notifiees[i+1:]...)
			return
		}
	}
}

// NotifyAll calls Uncouple on every attached notifiee except skip (the
// active cursor performing the mutation, if any), removing each of them from
// the list; skip stays attached.
// This is the mechanism behind the design's coupling contract: "When a page
// is about to be mutated in a way that would invalidate indices ... the
// page's cursor list is scanned and every cursor other than the active one
// is uncoupled."
func (p *Page) NotifyAll(skip Notifiee) {
	p.mu.Lock()
	list := p.notifiees
	p.notifiees = nil
	p.mu.Unlock()

	for _, n := range list {
		if n == skip {
			p.mu.Lock()
			p.notifiees = append(p.notifiees, n)
			p.mu.Unlock()
			continue
		}
		n.Uncouple()
	}
}

// NotifyErase is NotifyAll's counterpart for the erase-shift path: every
// attached notifiee except skip is told a slot is about to be removed at
// removedIndex, via ShiftIndex rather than Uncouple, so it can re-index in
// place instead of being uncoupled unnecessarily.
func (p *Page) NotifyErase(skip Notifiee, removedIndex int) {
	p.mu.Lock()
	list := append([]Notifiee(nil), p.notifiees...)
	p.mu.Unlock()

	for _, n := range list {
		if n == skip {
			continue
		}
		n.ShiftIndex(removedIndex)
	}
}

// NotifieeCount reports how many cursors are currently coupled to this
// page; used by tests asserting coupling liveness (spec.md §8 property 7).
func (p *Page) NotifieeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.notifiees)
}

// Package pagetree is the public façade over the embeddable B-tree core:
// Database wires device, page cache, B-tree, blob store, and transaction
// scaffold together behind the capability contract in the design's §6.2.
// Grounded on the teacher's top-level wiring in
// ShubhamNegi4-DaemonDB/main.go and query_executor/executor.go (constructing
// a Pager, then a BufferPool, then handing both to the tree/executor layer
// in one place), generalized to this core's device/pagecache/btree/
// blobstore/txn component split.
package pagetree

import (
	"fmt"
	"os"
	"sync"

	"github.com/pagetree/pagetree/allocator"
	"github.com/pagetree/pagetree/blobstore"
	"github.com/pagetree/pagetree/btree"
	"github.com/pagetree/pagetree/cursor"
	"github.com/pagetree/pagetree/device"
	"github.com/pagetree/pagetree/node"
	"github.com/pagetree/pagetree/page"
	"github.com/pagetree/pagetree/pagecache"
	"github.com/pagetree/pagetree/record"
	"github.com/pagetree/pagetree/txn"
)

// Database is the top-level handle a caller opens, inserts/finds/erases
// against, and closes — the design's `db` handle from §6.2's `new_db()`/
// `delete_db(db)` lifecycle, collapsed into ordinary Go value lifetime (no
// separate destroy step beyond Close).
type Database struct {
	mu sync.Mutex

	path    string
	opts    Options
	header  fileHeader
	dev     device.Device
	cache   *pagecache.Cache
	layout  node.Layout
	cmp     record.Comparator
	tree    *btree.Tree
	blobs   *blobstore.Store
	txns    *txn.Manager
	logger  Logger
	lastErr error

	open bool
}

// New returns an unopened Database handle, matching new_db()'s "allocate the
// handle, defer real work to open/create" split.
func New() *Database {
	return &Database{cmp: record.Default(), logger: discardLogger()}
}

// SetLogger installs a Logger; a Database not given one logs nothing.
func (db *Database) SetLogger(l Logger) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.logger = l
}

func (db *Database) setErr(err error) error {
	db.lastErr = err
	return err
}

// LastError returns the most recent failure, mirroring get_error(db) — the
// only inspection channel the design gives void-returning operations (§7).
func (db *Database) LastError() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.lastErr
}

// Create opens path as a new database with default page/key geometry,
// matching create(db, path, flags, mode).
func (db *Database) Create(path string, flags Flags, mode os.FileMode) error {
	d := DefaultOptions()
	return db.CreateEx(path, flags, mode, d.PageSize, d.KeySize, 0)
}

// CreateEx creates path with explicit page geometry, matching
// create_ex(db, path, flags, mode, page_size, key_size, max_keys).
func (db *Database) CreateEx(path string, flags Flags, mode os.FileMode, pageSize, keySize, maxKeys int) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.open {
		return db.setErr(fmt.Errorf("pagetree: database already open: %w", ErrInvParameter))
	}
	if pageSize <= 0 || pageSize < HeaderSize {
		return db.setErr(ErrInvPageSize)
	}
	if keySize <= 0 {
		return db.setErr(ErrInvKeySize)
	}

	opts := Options{PageSize: pageSize, KeySize: keySize, MaxKeys: maxKeys, Flags: flags, Mode: mode}.withDefaults()

	var dev device.Device
	var err error
	if flags.Has(InMemoryDB) {
		dev = device.NewMemDevice()
	} else {
		dev, err = device.Open(path, !flags.Has(DisableMmap))
		if err != nil {
			return db.setErr(fmt.Errorf("pagetree: create %s: %w", path, err))
		}
		if err := os.Chmod(path, opts.Mode); err != nil {
			dev.Close()
			return db.setErr(fmt.Errorf("pagetree: chmod %s: %w", path, err))
		}
	}

	// Page 0 is the header; grow the device by exactly one page for it and
	// write the initial header, root/freelist/key_count all zero.
	headerOffset, err := dev.Grow(opts.PageSize)
	if err != nil {
		dev.Close()
		return db.setErr(fmt.Errorf("pagetree: allocate header page: %w", err))
	}
	if headerOffset != 0 {
		dev.Close()
		return db.setErr(fmt.Errorf("pagetree: header page must be offset 0, got %d: %w", headerOffset, ErrIOError))
	}

	hdr := fileHeader{
		VersionMajor:    VersionMajor,
		VersionMinor:    VersionMinor,
		VersionRevision: VersionRevision,
		PageSize:        uint32(opts.PageSize),
		KeySize:         uint16(opts.KeySize),
		Flags:           uint16(opts.Flags),
	}
	buf := make([]byte, opts.PageSize)
	encodeFileHeader(buf, hdr)
	if err := dev.WriteAt(0, buf); err != nil {
		dev.Close()
		return db.setErr(fmt.Errorf("pagetree: write header: %w", err))
	}

	if err := db.wire(path, opts, hdr, dev); err != nil {
		dev.Close()
		return db.setErr(err)
	}
	db.logger.Infof("created %s page_size=%d key_size=%d", path, opts.PageSize, opts.KeySize)
	return nil
}

// Open opens an existing file-backed database, matching open(db, path, flags).
func (db *Database) Open(path string, flags Flags) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.open {
		return db.setErr(fmt.Errorf("pagetree: database already open: %w", ErrInvParameter))
	}

	dev, err := device.Open(path, !flags.Has(DisableMmap))
	if err != nil {
		return db.setErr(fmt.Errorf("pagetree: open %s: %w", path, ErrFileNotFound))
	}

	size, err := dev.Size()
	if err != nil {
		dev.Close()
		return db.setErr(fmt.Errorf("pagetree: stat %s: %w", path, err))
	}
	if size < HeaderSize {
		dev.Close()
		return db.setErr(ErrShortRead)
	}

	buf := make([]byte, HeaderSize)
	if err := dev.ReadAt(0, buf); err != nil {
		dev.Close()
		return db.setErr(fmt.Errorf("pagetree: read header: %w", err))
	}
	hdr, err := decodeFileHeader(buf)
	if err != nil {
		dev.Close()
		return db.setErr(err)
	}
	if hdr.PageSize == 0 || int64(hdr.PageSize) > size {
		dev.Close()
		return db.setErr(ErrInvPageSize)
	}

	// max_keys is not part of the persisted header (§6.1 lists only
	// page_size/key_size); Open recomputes the fit-maximum for the decoded
	// geometry. A database created with a smaller explicit max_keys than the
	// fit maximum keeps working — existing nodes just have spare capacity —
	// but reopening changes the fanout new splits use going forward. This is
	// a deliberate boundary rather than an oversight; see DESIGN.md.
	opts := Options{PageSize: int(hdr.PageSize), KeySize: int(hdr.KeySize), Flags: flags | Flags(hdr.Flags)}.withDefaults()

	if err := db.wire(path, opts, hdr, dev); err != nil {
		dev.Close()
		return db.setErr(err)
	}
	db.logger.Infof("opened %s root_offset=%d key_count=%d", path, hdr.RootOffset, hdr.KeyCount)
	return nil
}

// wire constructs every layer above the device once page geometry and the
// decoded/initial header are known.
func (db *Database) wire(path string, opts Options, hdr fileHeader, dev device.Device) error {
	cache, err := pagecache.New(pagecache.Config{
		Device:           dev,
		PageSize:         opts.PageSize,
		Capacity:         opts.CacheCapacity,
		Strict:           opts.Flags.Has(CacheStrict),
		TrackAllocations: opts.TrackAllocations,
	})
	if err != nil {
		return fmt.Errorf("pagetree: pagecache: %w", err)
	}

	layout := node.NewLayout(opts.PageSize, opts.KeySize, opts.MaxKeys)
	tree := btree.New(cache, layout, db.cmp, hdr.RootOffset)
	blobs := blobstore.New(dev, opts.PageSize)
	tree.FreeBlob = func(offset int64) { _ = blobs.Free(offset) }

	db.path = path
	db.opts = opts
	db.header = hdr
	db.dev = dev
	db.cache = cache
	db.layout = layout
	db.tree = tree
	db.blobs = blobs
	db.txns = txn.NewManager(cache, nil)
	db.open = true
	return nil
}

// SetCompareFunc installs a full-key comparator, matching
// set_compare_func(db, fn).
func (db *Database) SetCompareFunc(fn record.CompareFunc) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.cmp.Full = fn
	if db.tree != nil {
		db.tree.SetComparator(db.cmp)
	}
}

// SetPrefixCompareFunc installs the optional fast-path prefix comparator,
// matching set_prefix_compare_func(db, fn).
func (db *Database) SetPrefixCompareFunc(fn record.PrefixFunc) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.cmp.Prefix = fn
	if db.tree != nil {
		db.tree.SetComparator(db.cmp)
	}
}

// Flush persists the header (root offset, key count) and every dirty page,
// matching flush(db, flags).
func (db *Database) Flush() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.flushLocked()
}

func (db *Database) flushLocked() error {
	if !db.open {
		return db.setErr(ErrNotInitialized)
	}
	db.header.RootOffset = db.tree.Root()

	buf := make([]byte, HeaderSize)
	encodeFileHeader(buf, db.header)
	if err := db.dev.WriteAt(0, buf); err != nil {
		return db.setErr(fmt.Errorf("pagetree: flush header: %w", err))
	}
	if err := db.cache.FlushAll(); err != nil {
		return db.setErr(fmt.Errorf("pagetree: flush pages: %w", err))
	}
	if err := db.dev.Sync(); err != nil {
		return db.setErr(fmt.Errorf("pagetree: sync: %w", err))
	}
	return nil
}

// Close flushes and releases the database's resources, matching close(db).
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.open {
		return nil
	}
	err := db.flushLocked()
	db.cache.Close()
	closeErr := db.dev.Close()
	db.open = false
	if err != nil {
		return err
	}
	if closeErr != nil {
		return db.setErr(fmt.Errorf("pagetree: close device: %w", closeErr))
	}
	return nil
}

// Find looks up key, matching find(db, txn, key, &record, flags). txn is
// currently unused by the core (see txn package doc) but accepted for
// signature parity with the capability contract; pass nil for an implicit
// local operation.
func (db *Database) Find(t *txn.Transaction, key []byte, flags Flags) ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if key == nil {
		return nil, db.setErr(ErrInvParameter)
	}
	if !db.open {
		return nil, db.setErr(ErrNotInitialized)
	}

	offset, slot, exact, err := db.tree.Find(key)
	if err != nil {
		return nil, db.setErr(err)
	}
	if !exact {
		return nil, db.setErr(ErrKeyNotFound)
	}
	p, err := db.cache.Fetch(offset, page.TypeLeaf)
	if err != nil {
		return nil, db.setErr(err)
	}
	defer db.cache.Unpin(p)
	n := node.View(p.Payload(), db.layout)
	return db.decodeRecord(n.FlagsAt(slot), n.RidAt(slot))
}

// DecodeRecord resolves a record flags/rid pair a Cursor returned from
// Record() into its bytes, routing blob-encoded records through the blob
// store. Cursor itself stays free of the blobstore dependency (see the
// cursor package doc), so callers walking a cursor route decoding back
// through the owning Database.
func (db *Database) DecodeRecord(flags byte, rid [8]byte) ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.decodeRecord(flags, rid)
}

func (db *Database) decodeRecord(flags byte, rid [8]byte) ([]byte, error) {
	if record.KindOf(flags) == record.KindBlob {
		data, err := db.blobs.Read(record.DecodeBlobRid(rid))
		if err != nil {
			return nil, db.setErr(err)
		}
		return data, nil
	}
	return record.DecodeInline(flags, rid), nil
}

// Insert writes key/data, matching insert(db, txn, key, record, flags).
// Records over 8 bytes are routed through the blob store; overwriting a key
// that previously held a blob-encoded record releases the old blob.
func (db *Database) Insert(t *txn.Transaction, key, data []byte, flags Flags) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if key == nil {
		return db.setErr(ErrInvParameter)
	}
	if !db.open {
		return db.setErr(ErrNotInitialized)
	}
	if db.opts.Flags.Has(ReadOnly) {
		return db.setErr(ErrInvParameter)
	}
	if len(key) > db.layout.KeySize {
		return db.setErr(ErrInvKeySize)
	}

	overwrite := flags.Has(Overwrite)
	var staleBlobOffset int64
	hasStaleBlob := false
	existed := false
	if overwrite {
		if off, slot, exact, ferr := db.tree.Find(key); ferr == nil && exact {
			existed = true
			p, ferr := db.cache.Fetch(off, page.TypeLeaf)
			if ferr == nil {
				n := node.View(p.Payload(), db.layout)
				oldFlags, oldRid := n.FlagsAt(slot), n.RidAt(slot)
				db.cache.Unpin(p)
				if record.KindOf(oldFlags) == record.KindBlob {
					staleBlobOffset = record.DecodeBlobRid(oldRid)
					hasStaleBlob = true
				}
			}
		}
	}

	var rflags byte
	var rid [8]byte
	kind := record.Classify(len(data))
	if kind == record.KindBlob {
		offset, err := db.blobs.Allocate(data, 0)
		if err != nil {
			return db.setErr(fmt.Errorf("pagetree: allocate blob: %w", err))
		}
		rid = record.EncodeBlobRid(offset)
	} else {
		rflags, rid = record.EncodeInline(data)
	}

	if err := db.tree.Insert(key, rflags, rid, overwrite, nil); err != nil {
		if kind == record.KindBlob {
			_ = db.blobs.Free(record.DecodeBlobRid(rid))
		}
		return db.setErr(err)
	}
	if hasStaleBlob {
		_ = db.blobs.Free(staleBlobOffset)
	}
	if !existed {
		db.header.KeyCount++
	}
	return nil
}

// Erase removes key, matching erase(db, txn, key, flags).
func (db *Database) Erase(t *txn.Transaction, key []byte, flags Flags) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if key == nil {
		return db.setErr(ErrInvParameter)
	}
	if !db.open {
		return db.setErr(ErrNotInitialized)
	}
	if db.opts.Flags.Has(ReadOnly) {
		return db.setErr(ErrInvParameter)
	}
	if err := db.tree.Erase(key, nil); err != nil {
		return db.setErr(err)
	}
	db.header.KeyCount--
	return nil
}

// NewCursor creates a cursor over this database's index, matching
// cursor_create(db, &cur). The returned cursor starts NIL; Close it when
// done to release any coupled page pin, matching cursor_close.
func (db *Database) NewCursor() *cursor.Cursor {
	db.mu.Lock()
	defer db.mu.Unlock()
	return cursor.New(db.tree, db.cache, db.layout)
}

// BeginTxn starts a transaction against this database's page cache.
func (db *Database) BeginTxn() *txn.Transaction {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.txns.Begin()
}

// KeyCount returns the database's cached key count, tracked incrementally
// by Insert/Erase and persisted in the header on Flush.
func (db *Database) KeyCount() int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.header.KeyCount
}

// RootOffset returns the current B-tree root page offset, 0 for an empty
// tree.
func (db *Database) RootOffset() int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.tree.Root()
}

// AllocStats reports the page cache's resident-buffer accounting, matching
// the design's §9 debug-allocator hook.
func (db *Database) AllocStats() allocator.Stats {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.cache.AllocStats()
}

// ReportLeaks returns the page cache's leak report, or "" when its
// allocation tracking is off. Tracking follows Options.TrackAllocations as
// passed to wire; CreateEx and Open never set it, so for databases they
// open the report is always "".
func (db *Database) ReportLeaks() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.cache.ReportLeaks()
}

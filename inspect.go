package pagetree

import (
	"fmt"
	"io"
	"os"

	"github.com/pagetree/pagetree/node"
	"github.com/pagetree/pagetree/page"
	"github.com/pagetree/pagetree/record"
)

// Inspect writes a human-readable structural dump to stdout: the decoded
// header fields, then a breadth-first walk of the B-tree printing each
// node's keys and (for leaves) each record's kind, matching the teacher's
// InspectIndexFile texture (ShubhamNegi4-DaemonDB/bplustree/inspect.go) —
// page-0 meta line, then "Level N:" groups, then per-node key/value lines.
func (db *Database) Inspect() error {
	return db.InspectTo(os.Stdout)
}

// InspectTo writes the dump to w.
func (db *Database) InspectTo(w io.Writer) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.open {
		return db.setErr(ErrNotInitialized)
	}

	p := func(format string, args ...any) { fmt.Fprintf(w, format, args...) }

	p("pagetree file: %s\n", db.path)
	p("  version=%d.%d.%d page_size=%d key_size=%d\n",
		db.header.VersionMajor, db.header.VersionMinor, db.header.VersionRevision,
		db.header.PageSize, db.header.KeySize)
	p("  root_offset=%d freelist_head=%d key_count=%d\n",
		db.header.RootOffset, db.header.FreelistHead, db.header.KeyCount)

	root := db.tree.Root()
	if root == 0 {
		p("  (empty tree)\n")
		return nil
	}

	queue := []int64{root}
	level := 0
	for len(queue) > 0 {
		size := len(queue)
		p("\n  Level %d:\n", level)
		for i := 0; i < size; i++ {
			offset := queue[i]
			pg, err := db.cache.Fetch(offset, page.TypeInternal)
			if err != nil {
				p("    [page %d] read error: %v\n", offset, err)
				continue
			}
			n := node.View(pg.Payload(), db.layout)
			if n.IsLeaf() {
				pg.SetType(page.TypeLeaf)
				p("    [leaf %d] count=%d left=%d right=%d\n", offset, n.Count(), n.LeftSibling(), n.RightSibling())
				for j := 0; j < n.Count(); j++ {
					key := n.KeyAt(j)
					kind := record.KindOf(n.FlagsAt(j))
					p("      %q -> kind=%v\n", key, kind)
				}
			} else {
				p("    [internal %d] count=%d ptr_left=%d\n", offset, n.Count(), n.PtrLeft())
				queue = append(queue, n.PtrLeft())
				for j := 0; j < n.Count(); j++ {
					p("      key=%q -> child=%d\n", n.KeyAt(j), n.ChildAt(j))
					queue = append(queue, n.ChildAt(j))
				}
			}
			db.cache.Unpin(pg)
		}
		queue = queue[size:]
		level++
	}
	return nil
}

// Command pagetree-inspect opens a pagetree database file read-only and
// prints a breadth-first structural dump: header fields, then every node's
// keys and child/record pointers, mirroring the teacher's
// cmd/inspect_idx <path-to-.idx> tool.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/pagetree/pagetree"
)

var CLI struct {
	Path string `arg:"" help:"Path to the .pgt database file." type:"existingfile"`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("pagetree-inspect"),
		kong.Description("Dump a pagetree database file's header and B-tree structure."),
		kong.UsageOnError(),
	)

	db := pagetree.New()
	if err := db.Open(CLI.Path, pagetree.ReadOnly); err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", CLI.Path, err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Inspect(); err != nil {
		fmt.Fprintf(os.Stderr, "inspect %s: %v\n", CLI.Path, err)
		os.Exit(1)
	}
}

// Command pagetreectl is a command-line tool for creating, inspecting, and
// poking at a pagetree database file from the shell — put/get/delete/scan
// against a single .pgt file, replacing the teacher's hand-rolled
// cmd/seed-style os.Args handling with structured subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/pagetree/pagetree"
	"github.com/pagetree/pagetree/cursor"
)

var CLI struct {
	Path string `arg:"" help:"Path to the .pgt database file." type:"path"`

	Create CreateCmd `cmd:"" help:"Create a new database file."`
	Put    PutCmd    `cmd:"" help:"Insert or overwrite a key."`
	Get    GetCmd    `cmd:"" help:"Look up a key."`
	Delete DeleteCmd `cmd:"" help:"Erase a key."`
	Scan   ScanCmd   `cmd:"" help:"Walk every key in order."`
}

type CreateCmd struct {
	PageSize int `help:"Device page size in bytes." default:"4096"`
	KeySize  int `help:"Fixed key slot width in bytes." default:"16"`
}

func (c *CreateCmd) Run() error {
	db := pagetree.New()
	if err := db.CreateEx(CLI.Path, 0, 0644, c.PageSize, c.KeySize, 0); err != nil {
		return fmt.Errorf("create %s: %w", CLI.Path, err)
	}
	defer db.Close()
	fmt.Printf("created %s (page_size=%d key_size=%d)\n", CLI.Path, c.PageSize, c.KeySize)
	return nil
}

type PutCmd struct {
	Key       string `arg:"" help:"Key to write."`
	Value     string `arg:"" help:"Value to write."`
	Overwrite bool   `help:"Replace an existing value instead of failing on a duplicate key."`
}

func (c *PutCmd) Run() error {
	db := pagetree.New()
	if err := db.Open(CLI.Path, 0); err != nil {
		return fmt.Errorf("open %s: %w", CLI.Path, err)
	}
	defer db.Close()

	flags := pagetree.Flags(0)
	if c.Overwrite {
		flags |= pagetree.Overwrite
	}
	if err := db.Insert(nil, []byte(c.Key), []byte(c.Value), flags); err != nil {
		return fmt.Errorf("insert %q: %w", c.Key, err)
	}
	return nil
}

type GetCmd struct {
	Key string `arg:"" help:"Key to look up."`
}

func (c *GetCmd) Run() error {
	db := pagetree.New()
	if err := db.Open(CLI.Path, 0); err != nil {
		return fmt.Errorf("open %s: %w", CLI.Path, err)
	}
	defer db.Close()

	value, err := db.Find(nil, []byte(c.Key), 0)
	if err != nil {
		return fmt.Errorf("find %q: %w", c.Key, err)
	}
	fmt.Println(string(value))
	return nil
}

type DeleteCmd struct {
	Key string `arg:"" help:"Key to erase."`
}

func (c *DeleteCmd) Run() error {
	db := pagetree.New()
	if err := db.Open(CLI.Path, 0); err != nil {
		return fmt.Errorf("open %s: %w", CLI.Path, err)
	}
	defer db.Close()

	if err := db.Erase(nil, []byte(c.Key), 0); err != nil {
		return fmt.Errorf("erase %q: %w", c.Key, err)
	}
	return nil
}

type ScanCmd struct {
	Reverse bool `help:"Walk last-to-first instead of first-to-last."`
}

func (c *ScanCmd) Run() error {
	db := pagetree.New()
	if err := db.Open(CLI.Path, 0); err != nil {
		return fmt.Errorf("open %s: %w", CLI.Path, err)
	}
	defer db.Close()

	cur := db.NewCursor()
	defer cur.Close()

	first, step := cursor.MoveFirst, cursor.MoveNext
	if c.Reverse {
		first, step = cursor.MoveLast, cursor.MovePrevious
	}
	n := 0
	for err := cur.Move(first); err == nil; err = cur.Move(step) {
		key, kerr := cur.Key()
		if kerr != nil {
			return kerr
		}
		flags, rid, rerr := cur.Record()
		if rerr != nil {
			return rerr
		}
		value, derr := db.DecodeRecord(flags, rid)
		if derr != nil {
			return derr
		}
		fmt.Printf("%s\t%s\n", key, value)
		n++
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", n)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("pagetreectl"),
		kong.Description("Inspect and edit a pagetree database file from the shell."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

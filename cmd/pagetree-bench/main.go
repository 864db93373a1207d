// Command pagetree-bench runs the same insert/scan workload against a
// pagetree database and a throwaway Pebble instance side by side, then
// plots each engine's per-operation latency distribution to a PNG. Grounded
// on NikolasRummel-db-index-performance-evaluation/src/dbms/index/lsm/lsm.go's
// Pebble wrapper and that repo's stated purpose — comparing index
// implementations under an identical workload.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cockroachdb/pebble"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/pagetree/pagetree"
)

func main() {
	n := flag.Int("n", 20000, "number of keys to insert")
	out := flag.String("out", "bench_latency.png", "output PNG path")
	flag.Parse()

	fmt.Printf("--- pagetree: %d inserts + full scan ---\n", *n)
	ptLatencies, err := benchPagetree(*n)
	if err != nil {
		log.Fatalf("pagetree bench: %v", err)
	}

	fmt.Printf("--- pebble: %d inserts + full scan ---\n", *n)
	pebbleLatencies, err := benchPebble(*n)
	if err != nil {
		log.Fatalf("pebble bench: %v", err)
	}

	fmt.Printf("pagetree insert mean=%s  pebble insert mean=%s\n",
		meanDuration(ptLatencies), meanDuration(pebbleLatencies))

	if err := plotLatencies(*out, ptLatencies, pebbleLatencies); err != nil {
		log.Fatalf("plot: %v", err)
	}
	fmt.Printf("wrote %s\n", *out)
}

func encodeKey(i int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(i))
	return b
}

func benchPagetree(n int) ([]time.Duration, error) {
	db := pagetree.New()
	if err := db.CreateEx("", pagetree.InMemoryDB, 0644, pagetree.DefaultPageSize, 8, 0); err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	defer db.Close()

	latencies := make([]time.Duration, 0, n)
	value := make([]byte, 64)
	for i := 0; i < n; i++ {
		start := time.Now()
		if err := db.Insert(nil, encodeKey(i), value, 0); err != nil {
			return nil, fmt.Errorf("insert %d: %w", i, err)
		}
		latencies = append(latencies, time.Since(start))
	}

	cur := db.NewCursor()
	defer cur.Close()
	scanned := 0
	for err := cur.Move(0); err == nil; err = cur.Move(2) {
		scanned++
	}
	fmt.Printf("pagetree scan visited %d keys\n", scanned)
	return latencies, nil
}

func benchPebble(n int) ([]time.Duration, error) {
	dir, err := os.MkdirTemp("", "pagetree-bench-pebble")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	defer db.Close()

	latencies := make([]time.Duration, 0, n)
	value := make([]byte, 64)
	for i := 0; i < n; i++ {
		start := time.Now()
		if err := db.Set(encodeKey(i), value, pebble.NoSync); err != nil {
			return nil, fmt.Errorf("set %d: %w", i, err)
		}
		latencies = append(latencies, time.Since(start))
	}

	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("pebble new iter: %w", err)
	}
	defer iter.Close()
	scanned := 0
	for iter.First(); iter.Valid(); iter.Next() {
		scanned++
	}
	fmt.Printf("pebble scan visited %d keys\n", scanned)
	return latencies, nil
}

func meanDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total / time.Duration(len(ds))
}

func plotLatencies(path string, pagetreeLatencies, pebbleLatencies []time.Duration) error {
	p := plot.New()
	p.Title.Text = "Insert latency distribution"
	p.X.Label.Text = "latency (ns)"
	p.Y.Label.Text = "count"

	ptHist, err := plotter.NewHist(toPlotValues(pagetreeLatencies), 50)
	if err != nil {
		return fmt.Errorf("pagetree histogram: %w", err)
	}
	ptHist.FillColor = plotter.DefaultLineStyle.Color

	pbHist, err := plotter.NewHist(toPlotValues(pebbleLatencies), 50)
	if err != nil {
		return fmt.Errorf("pebble histogram: %w", err)
	}

	p.Add(ptHist, pbHist)
	p.Legend.Add("pagetree", ptHist)
	p.Legend.Add("pebble", pbHist)

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

func toPlotValues(ds []time.Duration) plotter.Values {
	values := make(plotter.Values, len(ds))
	for i, d := range ds {
		values[i] = float64(d.Nanoseconds())
	}
	return values
}

// Command dheap-inspect allocates a small sample workload on a deferred
// heap and prints its DebugSnapshot before and after one collection, for
// eyeballing collector behavior without writing a Go program.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/orizon-lang/dheap"
)

type sample struct {
	id    int
	child dheap.Handle[sample]
}

func main() {
	var (
		objects    = flag.Int("objects", 32, "number of sample objects to allocate")
		arrayLen   = flag.Int("array-len", 4, "length of an array of handles allocated into the heap")
		retainRoot = flag.Bool("retain-root", false, "keep one root handle alive across the collection")
		verbose    = flag.Bool("verbose", false, "log each collection to stderr")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Allocates sample objects on a deferred heap and prints its shape before\n")
		fmt.Fprintf(os.Stderr, "and after one Collect pass.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	var opts []dheap.Option
	if *verbose {
		opts = append(opts, dheap.WithLogger(log.New(os.Stderr, "dheap-inspect: ", log.LstdFlags)))
	}

	heap := dheap.NewHeap(opts...)

	var root *dheap.Handle[sample]

	for i := 0; i < *objects; i++ {
		h := dheap.Make(heap, sample{id: i})
		if h == nil {
			fmt.Fprintln(os.Stderr, "dheap-inspect: allocation failed, heap is out of memory")
			os.Exit(1)
		}

		if i == 0 && *retainRoot {
			root = h
		} else {
			h.Release()
		}
	}

	arr := dheap.MakeArray[dheap.Handle[sample]](heap, *arrayLen)
	if arr == nil {
		fmt.Fprintln(os.Stderr, "dheap-inspect: array allocation failed, heap is out of memory")
		os.Exit(1)
	}

	if root != nil {
		arr.Get().Assign(root)
	}

	fmt.Println("before collect:", heap.DebugSnapshot())

	heap.Collect()

	fmt.Println("after collect: ", heap.DebugSnapshot())

	if root != nil {
		root.Release()
	}
}

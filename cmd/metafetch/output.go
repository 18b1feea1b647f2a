package main

import (
	"fmt"
	"io"

	"github.com/kelsos/metafetch/internal/async"
)

// writeResults prints one tab separated line per result and returns the number of failures
func writeResults(w io.Writer, results []async.Result) int {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "%s\terror: %v\n", r.URL, r.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", r.URL, r.Metadata)
	}
	return failed
}

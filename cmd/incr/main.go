// Command incr is a spreadsheet evaluated incrementally: cells hold HCL
// expressions, and only cells whose inputs actually changed are recomputed.
package main

import (
	"fmt"
	"os"
)

const version = "0.3.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "incr: %v\n", err)
		os.Exit(1)
	}
}

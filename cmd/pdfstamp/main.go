// Command pdfstamp stamps and composes PDF files from the command line.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pdfstamp: %v\n", err)
		os.Exit(1)
	}
}

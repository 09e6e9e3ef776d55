// newsloom is a domain-scoped news acquisition pipeline: it discovers,
// crawls, extracts and semantically indexes articles for configured
// topical domains.
package main

import (
	"fmt"
	"os"

	"github.com/newsloom/newsloom/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command rem is the thin CLI/HTTP adapter over internal/core.Engine: it
// parses flags, opens an engine rooted at the resolved store root, calls
// exactly one core operation, and renders the result. No business logic
// lives here.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/remcore/rem/internal/rerr"
)

func main() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)

	var coded *rerr.Error
	if errors.As(err, &coded) {
		os.Exit(1)
	}
	os.Exit(2)
}

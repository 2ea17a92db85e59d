// Command quillfix learns transcription typo corrections from user edits and
// applies them to new transcriptions.
//
// Usage:
//
//	quillfix serve --config quillfix.yaml
//	quillfix learn "I recieve teh mail" "I receive the mail"
//	quillfix apply "did you recieve it"
//	quillfix list
//	quillfix forget recieve
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "quillfix: %v\n", err)
		return 1
	}
	return 0
}

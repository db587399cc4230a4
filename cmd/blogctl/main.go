// Command blogctl is a terminal client of the blog server. It keeps the login
// session in a local SQLite file, so consecutive invocations share it.
package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/pterm/pterm"

	"github.com/patric-chuzhbe/blogshelf/internal/client/syncer"
)

var (
	exit             = os.Exit
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	if code := execute(context.Background(), stdout, stderr, os.Args[1:]); code != 0 {
		exit(code)
	}
}

// execute runs one invocation and maps its outcome to an exit code. Failures
// already shown as notifications are not printed a second time.
func execute(ctx context.Context, out, errOut io.Writer, args []string) int {
	err := run(ctx, out, args)
	if err == nil {
		return 0
	}
	var notified *syncer.NotifiedError
	if !errors.As(err, &notified) {
		pterm.Error.WithWriter(errOut).Println(err)
	}
	return 1
}

// Command createrepo generates yum/dnf repository metadata for a
// directory of RPM packages: primary.xml, filelists.xml, other.xml and
// the repomd.xml manifest that describes them (spec.md §6's CLI
// surface).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpmrepo/repomd"
)

func main() {
	os.Exit(mainExit(os.Args[1:]))
}

// mainExit is main's testable core: it returns the process exit code
// spec.md §6 specifies (0 success, 1 argument/config error, 2 I/O or
// internal error) instead of calling os.Exit directly.
//
// Cancellation is grounded on cmd/cctool/main.go's pattern: a
// context.Context canceled from a goroutine watching SIGTERM/SIGINT,
// threaded through the pool, producer and driver (SPEC_FULL.md §5).
func mainExit(args []string) int {
	cfg, err := parseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log := newLogger(cfg.Quiet, cfg.Verbose)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		select {
		case <-sigCh:
			log.Warn("received termination signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()
	defer signal.Stop(sigCh)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("createrepo failed", "error", err)
		return exitCodeFor(ctx, err)
	}
	return 0
}

// exitCodeFor maps a failure to spec.md §6's exit codes: an argument/
// config problem (BadArg, Lock) is 1, everything else -- I/O failures,
// a canceling signal -- is 2.
func exitCodeFor(ctx context.Context, err error) int {
	var rerr *repomd.Error
	if errors.As(err, &rerr) {
		switch rerr.Kind {
		case repomd.BadArg, repomd.Lock:
			return 1
		}
	}
	// A canceling signal (ctx.Err() != nil) and any other I/O/internal
	// failure both land here.
	return 2
}

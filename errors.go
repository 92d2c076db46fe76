package repomd

import (
	"errors"
	"strings"
)

// Error is the repomd error domain type.
//
// Errors coming from repomd components should be inspectable as
// ([errors.As]) an *Error at some point in the error chain. Components
// should create an Error at the system boundary (opening a file, invoking
// the header reader, touching the lock directory) and intermediate layers
// should prefer wrapping with [fmt.Errorf]'s "%w" verb over creating
// another containing Error.
//
// Directly grounded on claircore's Error/ErrorKind shape (same Is/Unwrap
// contract); the seven kinds below replace claircore's seven one-for-one
// per spec.md §7's error taxonomy.
type Error struct {
	Inner   error
	Kind    ErrorKind
	Message string
	Op      string
}

var (
	_ error                       = (*Error)(nil)
	_ interface{ Is(error) bool } = (*Error)(nil)
	_ interface{ Unwrap() error } = (*Error)(nil)
)

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	b.WriteString("[")
	switch e.Kind {
	case BadArg, IO, BadRpm, BadXml, Cache, Lock, Signal:
		b.WriteString(string(e.Kind))
	default:
		b.WriteString("???")
	}
	b.WriteString("]: ")
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Message != "" && e.Inner != nil {
		b.WriteString(": ")
	}
	if e.Op == "" && e.Message == "" {
		b.Reset()
	}
	if e.Inner != nil {
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

// Is enables [errors.Is] comparisons against a declared [ErrorKind].
func (e *Error) Is(kind error) bool {
	return errors.Is(e.Kind, kind)
}

// Unwrap enables [errors.Unwrap].
func (e *Error) Unwrap() error { return e.Inner }

// ErrorKind represents classes of errors to be checked against, per
// spec.md §7's error taxonomy.
//
// If unsure which kind applies, prefer [IO] for boundary failures and
// [BadArg] for caller-supplied configuration problems.
type ErrorKind string

// Defined error kinds (spec.md §7).
var (
	// BadArg is invalid configuration: bad checksum type, worker count
	// out of range, missing output directory. Fatal before work starts.
	BadArg = ErrorKind("bad-arg")
	// IO is a file open/stat/rename/unlink failure.
	IO = ErrorKind("io")
	// BadRpm is the header reader refusing a file. Logged at warn, the
	// task is dropped, had_errors is set, counters are still advanced.
	BadRpm = ErrorKind("bad-rpm")
	// BadXml is malformed XML encountered by the old-metadata loader.
	// Logged at warn, the affected package entry is skipped.
	BadXml = ErrorKind("bad-xml")
	// Cache is an on-disk checksum cache read/write failure. Logged at
	// debug; falls back to recomputation.
	Cache = ErrorKind("cache")
	// Lock is the output .repodata/ directory already existing. Fatal
	// unless --ignore-lock is passed.
	Lock = ErrorKind("lock")
	// Signal is a terminating signal received mid-run. The process
	// exits non-zero and cleanup handlers remove the lock dir.
	Signal = ErrorKind("signal")
)

// Error implements error.
func (e ErrorKind) Error() string { return string(e) }

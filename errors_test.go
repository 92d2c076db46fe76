package repomd

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func ExampleError() {
	fmt.Println(&Error{
		Op:      "ExampleError",
		Kind:    BadArg,
		Message: "test",
	})

	fmt.Println(&Error{
		Op:      "Open",
		Kind:    IO,
		Message: "reading package",
		Inner:   os.ErrNotExist,
	})
	err := &Error{
		Kind: Lock,
		Inner: &Error{
			Op:      "Open",
			Kind:    IO,
			Message: "reading package",
			Inner:   os.ErrNotExist,
		},
	}
	fmt.Println(err)
	fmt.Println(fmt.Errorf("repomd: oops: %w", &Error{
		Op:      "Open",
		Kind:    IO,
		Message: "reading package",
		Inner:   os.ErrNotExist,
	}))

	// Output:
	// ExampleError [bad-arg]: test
	// Open [io]: reading package: file does not exist
	// Open [io]: reading package: file does not exist
	// repomd: oops: Open [io]: reading package: file does not exist
}

func TestErrorIs(t *testing.T) {
	tt := []struct {
		Name string
		Err  error
		Kind ErrorKind
		Want bool
	}{
		{"BadRpm matches", &Error{Kind: BadRpm}, BadRpm, true},
		{"BadRpm doesn't match Cache", &Error{Kind: BadRpm}, Cache, false},
		{"wrapped Lock matches", fmt.Errorf("wrap: %w", &Error{Kind: Lock}), Lock, true},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			if got := errors.Is(tc.Err, tc.Kind); got != tc.Want {
				t.Errorf("got: %v, want: %v", got, tc.Want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &Error{Kind: IO, Inner: inner}
	if got := errors.Unwrap(err); got != inner {
		t.Errorf("got: %v, want: %v", got, inner)
	}
}

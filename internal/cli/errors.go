package cli

import (
	"fmt"
	"io"

	"github.com/yeswehack/ywh2bt-go/internal/ywherr"
)

// usageError marks an error as an argument/flag problem (exit code 2)
// rather than a core failure (exit code 1), per spec §6. Cobra's own
// flag-parsing errors are wrapped in this before they reach Execute's
// caller; RunE bodies that detect a bad combination of flags (e.g. a
// missing required one cobra itself doesn't enforce) wrap with it too.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func newUsageError(format string, args ...any) *usageError {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// ExitCode classifies err into the exit status spec §6 assigns it: 2 for
// a usage error, 1 for anything else (130 for an interrupt is handled by
// the caller before ExitCode is consulted, since a canceled context
// carries no error of its own kind here).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ue *usageError
	if asUsageError(err, &ue) {
		return 2
	}
	return 1
}

func asUsageError(err error, target **usageError) bool {
	for err != nil {
		if ue, ok := err.(*usageError); ok {
			*target = ue
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// PrintError writes err's cause chain to w (spec §7 "CLI prints a
// compact error chain"); cmd/ywh2bt/main.go calls this once Execute
// returns a non-nil error.
func PrintError(w io.Writer, err error) {
	printErrorChain(w, err)
}

// printErrorChain writes err's full cause chain to w, one cause per
// line, most specific last, in the "class: message" shape spec §7
// requires ("CLI prints a compact error chain"). Each link past the
// first is indented to show it is a cause of the one above it.
func printErrorChain(w io.Writer, err error) {
	for i, cause := range ywherr.Chain(err) {
		indent := ""
		if i > 0 {
			indent = "  "
		}
		fmt.Fprintf(w, "%s%s: %s\n", indent, ywherr.KindOf(cause), causeMessage(cause))
	}
}

// causeMessage renders one link's own message, stripping the
// "kind: op: " prefix *Error.Error already adds so printErrorChain's own
// "kind:" prefix isn't doubled for ywherr.Error links.
func causeMessage(err error) string {
	if e, ok := err.(*ywherr.Error); ok {
		if e.Op == "" {
			return fmt.Sprint(e.Wrapped)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Wrapped)
	}
	return err.Error()
}

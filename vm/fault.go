package vm

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Error types
// ---------------------------------------------------------------------------

// ErrorType classifies a fault. Types form a hierarchy rooted at ErrorBase;
// a catch clause for a type also catches its descendants.
type ErrorType uint8

const (
	ErrorBase ErrorType = iota // "Error", the root of all error types
	RuntimeError
	TypeError
	ValueError
	ZeroDivisionError
	LookupError
	IndexError
	KeyError
	IOError
	RecursionError
)

var errorTypeNames = [...]string{
	ErrorBase:         "Error",
	RuntimeError:      "RuntimeError",
	TypeError:         "TypeError",
	ValueError:        "ValueError",
	ZeroDivisionError: "ZeroDivisionError",
	LookupError:       "LookupError",
	IndexError:        "IndexError",
	KeyError:          "KeyError",
	IOError:           "IOError",
	RecursionError:    "RecursionError",
}

var errorTypeParents = map[ErrorType]ErrorType{
	RuntimeError:      ErrorBase,
	TypeError:         ErrorBase,
	ValueError:        ErrorBase,
	ZeroDivisionError: ValueError,
	LookupError:       ErrorBase,
	IndexError:        LookupError,
	KeyError:          LookupError,
	IOError:           ErrorBase,
	RecursionError:    ErrorBase,
}

// String returns the name used for the type in catch clauses.
func (t ErrorType) String() string {
	if int(t) < len(errorTypeNames) {
		return errorTypeNames[t]
	}
	return fmt.Sprintf("ErrorType(%d)", t)
}

// Parent returns the type this one specializes. The root has no parent.
func (t ErrorType) Parent() (ErrorType, bool) {
	p, ok := errorTypeParents[t]
	return p, ok
}

// IsA reports whether t is target or one of its descendants.
func (t ErrorType) IsA(target ErrorType) bool {
	for c, ok := t, true; ok; c, ok = c.Parent() {
		if c == target {
			return true
		}
	}
	return false
}

// ParseErrorType looks up an error type by name.
func ParseErrorType(name string) (ErrorType, bool) {
	for i, n := range errorTypeNames {
		if n == name {
			return ErrorType(i), true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Fault
// ---------------------------------------------------------------------------

// ErrStackUnderflow reports an instruction that popped more values than the
// stack held. It indicates a malformed program rather than a language error
// and is never offered to exception handlers.
var ErrStackUnderflow = errors.New("stack underflow")

// TraceEntry is one frame of a fault's stack trace.
type TraceEntry struct {
	Function string
	Line     int
}

// Fault is a runtime error raised while executing a program.
type Fault struct {
	Message    string
	Line       int
	Type       ErrorType
	StackTrace []TraceEntry // innermost frame first

	cause error
}

// raise creates a fault without position information; the interpreter stamps
// the line and stack trace before dispatching it.
func raise(t ErrorType, format string, args ...any) *Fault {
	return &Fault{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("line %d: %s", f.Line, f.Message)
}

// Unwrap returns the underlying cause, if any.
func (f *Fault) Unwrap() error {
	return f.cause
}

// Trace renders the fault with its type and stack trace.
func (f *Fault) Trace() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s at line %d: %s\n", f.Type, f.Line, f.Message))
	for _, e := range f.StackTrace {
		sb.WriteString(fmt.Sprintf("  at %s (line %d)\n", e.Function, e.Line))
	}
	return sb.String()
}

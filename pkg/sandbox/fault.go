package sandbox

import (
	"errors"
	"strings"

	"github.com/tetratelabs/wazero/sys"
)

// Runtime error texts reported by wazero.
const (
	errOutOfBounds   = "out of bounds memory access"
	errStackOverflow = "stack overflow"
)

// classify maps a failed call to a fault. fuelLeft is the fuel global read
// after the call; ok is false when it could not be read.
func classify(err error, fuelLeft int64, ok bool) *Fault {
	var exit *sys.ExitError
	if errors.As(err, &exit) {
		switch exit.ExitCode() {
		case sys.ExitCodeDeadlineExceeded:
			return &Fault{Kind: FaultTimeout, Detail: "wall-clock limit exceeded"}
		case sys.ExitCodeContextCanceled:
			return &Fault{Kind: FaultTimeout, Detail: "evaluation canceled"}
		default:
			return &Fault{Kind: FaultTrap, Detail: exit.Error()}
		}
	}

	if ok && fuelLeft < 0 {
		return &Fault{Kind: FaultFuelExhausted, Detail: "instruction budget exhausted"}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, errOutOfBounds):
		return &Fault{Kind: FaultOutOfBounds, Detail: errOutOfBounds}
	case strings.Contains(msg, errStackOverflow):
		return &Fault{Kind: FaultStackOverflow, Detail: errStackOverflow}
	default:
		return &Fault{Kind: FaultTrap, Detail: firstLine(msg)}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

package grid

import (
	"fmt"
	"sync/atomic"
)

var violations atomic.Int64

// precondition checks a caller contract. Debug builds (tag molgrid_debug)
// panic on a violation; other builds count it and return false so the caller
// can clamp to a safe value.
func precondition(ok bool, format string, v ...any) bool {
	if ok {
		return true
	}
	if debugAssertions {
		panic("grid: precondition violated: " + fmt.Sprintf(format, v...))
	}
	violations.Add(1)
	return false
}

// PreconditionViolations returns how many contract violations were clamped
// since the process started.
func PreconditionViolations() int64 {
	return violations.Load()
}

// Precondition applies the same debug/release contract check for callers
// outside this package.
func Precondition(ok bool, format string, v ...any) bool {
	return precondition(ok, format, v...)
}

//go:build !release

package assert

import "fmt"

// That panics with a formatted message if cond is false.
func That(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

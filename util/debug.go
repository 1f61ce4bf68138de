package util

import (
	"runtime/debug"
)

// Stack returns the current stack trace as string
func Stack() string {
	return string(debug.Stack())
}

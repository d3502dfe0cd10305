// Package utils holds small shared helpers.
package utils

// Result pairs a value with the error that produced it, so one channel send
// or future can carry both.
type Result[T any] struct {
	Err error
	Val T
}

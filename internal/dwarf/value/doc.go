// Package value reinterprets raw location bytes as typed values and
// renders them for display.
package value

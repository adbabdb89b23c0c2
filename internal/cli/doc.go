// Package cli formats command results for the terminal.
package cli

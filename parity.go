package webserial

import (
	gobug "go.bug.st/serial"
)

// Parity selects the transmit parity bit mode.
type Parity int

const (
	// ParityNone represents no parity bit
	ParityNone Parity = iota + 1
	// ParityOdd represents odd parity bit
	ParityOdd
	// ParityEven represents even parity bit
	ParityEven
	// ParityMark represents mark parity bit (always 1)
	ParityMark
	// ParitySpace represents space parity bit (always 0)
	ParitySpace
)

// native converts to the go.bug.st/serial representation.
func (pa Parity) native() gobug.Parity {
	switch pa {
	case ParityOdd:
		return gobug.OddParity
	case ParityEven:
		return gobug.EvenParity
	case ParityMark:
		return gobug.MarkParity
	case ParitySpace:
		return gobug.SpaceParity
	}
	return gobug.NoParity
}

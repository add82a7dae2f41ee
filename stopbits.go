package webserial

import gobug "go.bug.st/serial"

// StopBits selects the number of stop bits per frame.
type StopBits int

const (
	// StopBitsOne represents 1 stop bit
	StopBitsOne StopBits = iota + 1
	// StopBitsOnePointFive represents 1.5 stop bits
	StopBitsOnePointFive
	// StopBitsTwo represents 2 stop bits
	StopBitsTwo
)

// native converts to the go.bug.st/serial representation.
func (sb StopBits) native() gobug.StopBits {
	switch sb {
	case StopBitsOnePointFive:
		return gobug.OnePointFiveStopBits
	case StopBitsTwo:
		return gobug.TwoStopBits
	}
	return gobug.OneStopBit
}

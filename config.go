package webserial

import (
	"fmt"
)

// Transport defaults applied by withDefaults. BufferSize matches the
// host API's default receive buffer.
const (
	DefaultBaudRate   = 115200
	DefaultDataBits   = 8
	DefaultBufferSize = 255
)

// OpenConfig describes how a device transport is opened. Zero fields are
// filled in from defaults (115200 8N1, no flow control) before the merge
// with caller overrides; caller values always win.
type OpenConfig struct {
	BaudRate int
	DataBits int
	StopBits StopBits
	Parity   Parity

	// FlowControl enables hardware (RTS/CTS) flow control where the
	// transport supports it.
	FlowControl bool

	// BufferSize is passed through to the native transport as its per-read
	// chunk capacity. The adapter's own read buffer is unbounded.
	BufferSize int
}

// withDefaults returns cfg with every zero field replaced by its default.
func (cfg OpenConfig) withDefaults() OpenConfig {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = DefaultDataBits
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = StopBitsOne
	}
	if cfg.Parity == 0 {
		cfg.Parity = ParityNone
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	return cfg
}

// ValidateConfig validates transport configuration parameters.
func ValidateConfig(cfg OpenConfig) error {
	if !ValidBaudRate(cfg.BaudRate) {
		return fmt.Errorf("%w: %d, must be one of %v", ErrInvalidBaudRate, cfg.BaudRate, validBaudRates)
	}
	if cfg.DataBits < DataBits5 || cfg.DataBits > DataBits8 {
		return fmt.Errorf("webserial: data bits must be 5-8, got %d", cfg.DataBits)
	}
	switch cfg.StopBits {
	case StopBitsOne, StopBitsOnePointFive, StopBitsTwo:
	default:
		return fmt.Errorf("webserial: invalid stop bits value: %d", cfg.StopBits)
	}
	switch cfg.Parity {
	case ParityNone, ParityOdd, ParityEven, ParityMark, ParitySpace:
	default:
		return fmt.Errorf("webserial: invalid parity value: %d", cfg.Parity)
	}
	if cfg.BufferSize < 0 {
		return fmt.Errorf("webserial: buffer size cannot be negative: %d", cfg.BufferSize)
	}
	return nil
}

package webserial

import (
	"context"
	"sync"
)

// Platform is the host-side serial capability the binding adapts. It models
// an asynchronous, permission-mediated device API: devices are obtained
// either through a one-shot permission request or from the set of devices
// the user has already granted access to.
//
// Implementations must return comparable DeviceHandle values (pointers);
// the registry matches handles by identity when resolving virtual paths.
type Platform interface {
	// Supported reports whether the host exposes the serial capability at
	// all. When false, Binding.List returns empty and Binding.Open fails
	// with ErrNotSupported.
	Supported() bool

	// RequestDevice asks the host to grant access to a single device
	// matching the filter, typically via a user-facing prompt.
	RequestDevice(ctx context.Context, filter DeviceFilter) (DeviceHandle, error)

	// ListPairedDevices returns the devices already granted to this
	// process, in the order the host reports them. That order is the basis
	// for virtual path ordinals.
	ListPairedDevices(ctx context.Context) ([]DeviceHandle, error)
}

// DeviceFilter narrows a RequestDevice call. Zero fields match any device.
type DeviceFilter struct {
	USBVendorID  uint16
	USBProductID uint16
}

// DeviceHandle is one grantable serial device. A handle stays valid across
// open/close cycles; the session reuses it when reconfiguring.
type DeviceHandle interface {
	// Open configures and opens the device transport.
	Open(ctx context.Context, cfg OpenConfig) error

	// Close releases the device transport. Safe to call when not open.
	Close(ctx context.Context) error

	// Readable returns the current inbound stream, or nil if the device
	// has none. The returned reader is replaced wholesale on every open.
	Readable() StreamReader

	// Writable returns the current outbound stream, or nil if the device
	// has none. Replaced wholesale on every open.
	Writable() StreamWriter

	// GetSignals reads the device's current input signal state.
	GetSignals(ctx context.Context) (InputSignals, error)

	// SetSignals applies output signal state to the device.
	SetSignals(ctx context.Context, sig OutputSignals) error

	// Descriptor returns the host-reported identifying attributes for this
	// device. Immutable for the lifetime of a listing session.
	Descriptor() DeviceDescriptor
}

// StreamReader is an inbound chunk stream. Chunk sizes are chosen by the
// transport, not the caller; the session's read buffer reconciles the
// difference.
type StreamReader interface {
	// ReadChunk blocks until the transport delivers data, the stream ends
	// (io.EOF), or ctx is done. A stream ends when the transport is closed,
	// including the teardown half of a reconfiguration.
	ReadChunk(ctx context.Context) ([]byte, error)

	// Cancel releases the stream subscription and unblocks any in-flight
	// ReadChunk. Errors are advisory; callers tearing down swallow them.
	Cancel(ctx context.Context) error
}

// StreamWriter is an outbound byte sink. Write queues the payload and
// returns immediately with a completion handle; transmission completes
// asynchronously.
type StreamWriter interface {
	Write(ctx context.Context, p []byte) (*WriteOp, error)

	// Close releases the writer. In-flight writes are completed with an
	// error. Errors are advisory; callers tearing down swallow them.
	Close(ctx context.Context) error
}

// WriteOp is the completion handle for one queued write. Drain awaits the
// most recently recorded WriteOp of a session.
type WriteOp struct {
	done chan struct{}
	once sync.Once

	n   int
	err error
}

// NewWriteOp returns an unresolved completion handle. Transport
// implementations resolve it with Complete once the payload is on the wire
// or has failed.
func NewWriteOp() *WriteOp {
	return &WriteOp{done: make(chan struct{})}
}

// Complete resolves the handle. Only the first call takes effect.
func (w *WriteOp) Complete(n int, err error) {
	w.once.Do(func() {
		w.n = n
		w.err = err
		close(w.done)
	})
}

// Done returns a channel closed when the write has completed.
func (w *WriteOp) Done() <-chan struct{} { return w.done }

// Await blocks until the write completes or ctx is done, returning the byte
// count and error recorded by the transport.
func (w *WriteOp) Await(ctx context.Context) (int, error) {
	select {
	case <-w.done:
		return w.n, w.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

package webserial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gobug "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// allow tests to override external dependencies
var (
	openNativePort  = func(name string, mode *gobug.Mode) (nativePort, error) { return gobug.Open(name, mode) }
	listNativePorts = func() ([]*enumerator.PortDetails, error) { return enumerator.GetDetailedPortsList() }
)

// nativePort abstracts the subset of go.bug.st/serial.Port used by the
// native platform.
type nativePort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	Drain() error
	SetReadTimeout(d time.Duration) error
	SetDTR(bool) error
	SetRTS(bool) error
	Break(d time.Duration) error
	GetModemStatusBits() (*gobug.ModemStatusBits, error)
}

// breakPulse is the duration of the break condition issued when a caller
// asserts Break. The OS port API only exposes timed break pulses, not a
// held break line.
const breakPulse = 250 * time.Millisecond

// NativePlatform implements Platform over the host operating system's
// serial ports. There is no permission prompt on a native host, so
// RequestDevice auto-grants the first enumerated device matching the
// filter, and every enumerable port counts as already paired.
type NativePlatform struct {
	logger zerolog.Logger

	mu      sync.Mutex
	devices map[string]*nativeDevice // keyed by OS port name
}

// NewNativePlatform returns a Platform over the host's serial ports.
func NewNativePlatform(logger zerolog.Logger) *NativePlatform {
	return &NativePlatform{
		logger:  logger,
		devices: make(map[string]*nativeDevice),
	}
}

// Supported reports true: the OS serial capability is always present on
// the platforms the underlying driver builds for.
func (p *NativePlatform) Supported() bool { return true }

// ListPairedDevices enumerates the host's serial ports in the order the
// driver reports them. A port that re-enumerates under the same OS name
// yields the same DeviceHandle as before, so handle identity is stable
// across listings.
func (p *NativePlatform) ListPairedDevices(ctx context.Context) ([]DeviceHandle, error) {
	details, err := listNativePorts()
	if err != nil {
		return nil, fmt.Errorf("enumerating ports: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	handles := make([]DeviceHandle, 0, len(details))
	for _, d := range details {
		dev, ok := p.devices[d.Name]
		if !ok {
			dev = &nativeDevice{
				platform: p,
				name:     d.Name,
				desc:     descriptorFromDetails(d),
			}
			p.devices[d.Name] = dev
		}
		handles = append(handles, dev)
	}
	return handles, nil
}

// RequestDevice picks the first enumerated device matching the filter.
func (p *NativePlatform) RequestDevice(ctx context.Context, filter DeviceFilter) (DeviceHandle, error) {
	handles, err := p.ListPairedDevices(ctx)
	if err != nil {
		return nil, err
	}
	for _, h := range handles {
		if matchesFilter(h.Descriptor(), filter) {
			return h, nil
		}
	}
	return nil, ErrPortNotFound
}

// descriptorFromDetails maps driver metadata onto descriptor attributes,
// preserving a fixed report order so virtual paths stay stable.
func descriptorFromDetails(d *enumerator.PortDetails) DeviceDescriptor {
	var desc DeviceDescriptor
	if d.IsUSB {
		desc = append(desc,
			DescriptorAttr{Key: AttrUSBVendorID, Value: d.VID},
			DescriptorAttr{Key: AttrUSBProductID, Value: d.PID},
		)
		if d.SerialNumber != "" {
			desc = append(desc, DescriptorAttr{Key: AttrSerialNumber, Value: d.SerialNumber})
		}
		if d.Product != "" {
			desc = append(desc, DescriptorAttr{Key: AttrProduct, Value: d.Product})
		}
	}
	desc = append(desc, DescriptorAttr{Key: AttrName, Value: d.Name})
	return desc
}

// nativeDevice is one OS serial port exposed as a DeviceHandle.
type nativeDevice struct {
	platform *NativePlatform
	name     string
	desc     DeviceDescriptor

	mu     sync.Mutex
	port   nativePort
	reader *nativeReader
	writer *nativeWriter
}

func (d *nativeDevice) Descriptor() DeviceDescriptor { return d.desc }

func (d *nativeDevice) Open(ctx context.Context, cfg OpenConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port != nil {
		return nil
	}

	if cfg.FlowControl {
		// The portable driver API has no RTS/CTS flow control knob.
		d.platform.logger.Warn().Str("port", d.name).Msg("hardware flow control not supported by native transport")
	}

	mode := &gobug.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   cfg.Parity.native(),
		StopBits: cfg.StopBits.native(),
	}

	port, err := openNativePort(d.name, mode)
	if err != nil {
		return err
	}

	d.port = port
	d.reader = newNativeReader(port, cfg.BufferSize)
	d.writer = newNativeWriter(port)
	return nil
}

func (d *nativeDevice) Close(ctx context.Context) error {
	d.mu.Lock()
	port := d.port
	reader := d.reader
	writer := d.writer
	d.port = nil
	d.reader = nil
	d.writer = nil
	d.mu.Unlock()

	if port == nil {
		return nil
	}

	if writer != nil {
		_ = writer.Close(ctx)
	}
	if reader != nil {
		_ = reader.Cancel(ctx)
	}
	// Closing the port unblocks the reader goroutine's in-flight Read.
	err := port.Close()
	if reader != nil {
		<-reader.done
	}
	if writer != nil {
		<-writer.done
	}
	return err
}

func (d *nativeDevice) Readable() StreamReader {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reader == nil {
		return nil
	}
	return d.reader
}

func (d *nativeDevice) Writable() StreamWriter {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writer == nil {
		return nil
	}
	return d.writer
}

func (d *nativeDevice) GetSignals(ctx context.Context) (InputSignals, error) {
	d.mu.Lock()
	port := d.port
	d.mu.Unlock()
	if port == nil {
		return InputSignals{}, ErrPortNotOpen
	}

	bits, err := port.GetModemStatusBits()
	if err != nil {
		return InputSignals{}, fmt.Errorf("reading modem status: %w", err)
	}
	return InputSignals{
		CTS: bits.CTS,
		DSR: bits.DSR,
		DCD: bits.DCD,
		RI:  bits.RI,
	}, nil
}

func (d *nativeDevice) SetSignals(ctx context.Context, sig OutputSignals) error {
	d.mu.Lock()
	port := d.port
	d.mu.Unlock()
	if port == nil {
		return ErrPortNotOpen
	}

	if err := port.SetDTR(sig.DTR); err != nil {
		return fmt.Errorf("setting DTR: %w", err)
	}
	if err := port.SetRTS(sig.RTS); err != nil {
		return fmt.Errorf("setting RTS: %w", err)
	}
	if sig.Break {
		if err := port.Break(breakPulse); err != nil {
			return fmt.Errorf("asserting break: %w", err)
		}
	}
	return nil
}

// nativeReader adapts the port's blocking Read into the chunk-stream shape
// the session consumes. A single goroutine owns the port's read side and
// feeds chunks through a channel.
type nativeReader struct {
	chunks chan []byte
	cancel chan struct{}
	done   chan struct{}

	once sync.Once

	mu  sync.Mutex
	err error // terminal error, set before chunks is closed
}

func newNativeReader(port nativePort, chunkSize int) *nativeReader {
	if chunkSize <= 0 {
		chunkSize = DefaultBufferSize
	}
	r := &nativeReader{
		chunks: make(chan []byte, 16),
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go r.readLoop(port, chunkSize)
	return r
}

func (r *nativeReader) readLoop(port nativePort, chunkSize int) {
	defer close(r.done)
	defer close(r.chunks)

	for {
		select {
		case <-r.cancel:
			return
		default:
		}

		buf := make([]byte, chunkSize)
		n, err := port.Read(buf)
		if err != nil {
			r.setErr(classifyNativeReadError(err))
			return
		}
		if n == 0 {
			continue
		}

		select {
		case r.chunks <- buf[:n:n]:
		case <-r.cancel:
			return
		}
	}
}

func (r *nativeReader) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *nativeReader) terminalErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// ReadChunk implements StreamReader.
func (r *nativeReader) ReadChunk(ctx context.Context) ([]byte, error) {
	select {
	case chunk, ok := <-r.chunks:
		if !ok {
			if err := r.terminalErr(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		return chunk, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel implements StreamReader.
func (r *nativeReader) Cancel(ctx context.Context) error {
	r.once.Do(func() { close(r.cancel) })
	return nil
}

// classifyNativeReadError maps driver read failures onto the adapter's
// taxonomy. A read failing because the port was closed is stream-end, not
// an error.
func classifyNativeReadError(err error) error {
	var pe *gobug.PortError
	if errors.As(err, &pe) && pe.Code() == gobug.PortClosed {
		return io.EOF
	}
	return &StreamError{Code: CodeDisconnected, Err: err}
}

// queuedWrite is one write in flight through the writer goroutine.
type queuedWrite struct {
	data []byte
	op   *WriteOp
}

// nativeWriter serializes writes through a single goroutine that owns the
// port's write side, completing each WriteOp as its payload lands.
type nativeWriter struct {
	port  nativePort
	queue chan *queuedWrite
	stop  chan struct{}
	done  chan struct{}

	once sync.Once
}

func newNativeWriter(port nativePort) *nativeWriter {
	w := &nativeWriter{
		port:  port,
		queue: make(chan *queuedWrite, 16),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go w.writeLoop()
	return w
}

func (w *nativeWriter) writeLoop() {
	defer close(w.done)

	for {
		select {
		case qw := <-w.queue:
			n, err := w.writeAll(qw.data)
			qw.op.Complete(n, err)
		case <-w.stop:
			w.drainQueue()
			return
		}
	}
}

// drainQueue completes all pending writes with an error on shutdown.
func (w *nativeWriter) drainQueue() {
	for {
		select {
		case qw := <-w.queue:
			qw.op.Complete(0, ErrPortNotOpen)
		default:
			return
		}
	}
}

// writeAll pushes the whole payload, retrying partial writes a bounded
// number of times.
func (w *nativeWriter) writeAll(data []byte) (int, error) {
	const maxRetries = 3

	var written int
	for retries := 0; written < len(data) && retries < maxRetries; retries++ {
		n, err := w.port.Write(data[written:])
		if err != nil {
			return written, err
		}
		written += n
		if n == 0 {
			break
		}
	}
	if written < len(data) {
		return written, errors.New("webserial: partial write: not all bytes written")
	}
	if err := w.port.Drain(); err != nil {
		return written, err
	}
	return written, nil
}

// Write implements StreamWriter. The payload is copied before queueing so
// callers may reuse their buffer immediately.
func (w *nativeWriter) Write(ctx context.Context, p []byte) (*WriteOp, error) {
	qw := &queuedWrite{
		data: append([]byte(nil), p...),
		op:   NewWriteOp(),
	}

	select {
	case w.queue <- qw:
		return qw.op, nil
	case <-w.stop:
		return nil, ErrPortNotOpen
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements StreamWriter.
func (w *nativeWriter) Close(ctx context.Context) error {
	w.once.Do(func() { close(w.stop) })
	return nil
}

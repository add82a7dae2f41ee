package webserial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Session is the live binding instance for one opened device. It owns the
// device's single reader and single writer handle, the read-side buffer,
// and the exclusive operation lock that serializes open/close/reconfigure.
//
// A Session may be reopened in place by Update without discarding the
// session object; the device handle is reused across the reopen.
type Session struct {
	handle DeviceHandle

	lock *opLock
	rbuf *readBuffer

	isOpen        atomic.Bool
	reconfiguring atomic.Bool

	// mu guards cfg and the replaceable handles below. The operation lock
	// orders state transitions; mu only makes individual loads and stores
	// safe from non-locking operations.
	mu          sync.Mutex
	cfg         OpenConfig
	reader      StreamReader
	writer      StreamWriter
	lastWrite   *WriteOp
	lastSignals *OutputSignals

	logger  zerolog.Logger
	metrics *Metrics
}

func newSession(handle DeviceHandle, cfg OpenConfig, logger zerolog.Logger, metrics *Metrics) *Session {
	return &Session{
		handle:  handle,
		lock:    newOpLock(),
		rbuf:    &readBuffer{},
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Handle returns the device handle this session is bound to.
func (s *Session) Handle() DeviceHandle { return s.handle }

// BaudRate returns the effective baud rate.
func (s *Session) BaudRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.BaudRate
}

// Open opens the device transport with the session's configuration and
// obtains fresh reader and writer handles. No-op if already open.
func (s *Session) Open(ctx context.Context) error {
	if s.isOpen.Load() {
		return nil
	}

	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	// Re-check under the lock in case a concurrent Open won.
	if s.isOpen.Load() {
		return nil
	}

	s.metrics.OpenAttempts.Add(1)

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	if err := s.handle.Open(ctx, cfg); err != nil {
		s.metrics.OpenFailures.Add(1)
		return fmt.Errorf("opening transport: %w", err)
	}

	s.mu.Lock()
	s.reader = s.handle.Readable()
	s.writer = s.handle.Writable()
	s.mu.Unlock()

	s.isOpen.Store(true)
	s.metrics.LastOpenTime.Store(nowUnix())
	s.logger.Debug().Int("baud", cfg.BaudRate).Msg("session opened")
	return nil
}

// Close tears the session down: the outstanding read is cancelled, the
// writer released, the pending write dropped, the transport closed and the
// read buffer cleared. Teardown is best-effort; individual step errors are
// swallowed. No-op if already closed.
func (s *Session) Close(ctx context.Context) error {
	if !s.isOpen.Load() {
		return nil
	}

	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if !s.isOpen.Load() {
		return nil
	}
	s.isOpen.Store(false)

	s.teardown(ctx)
	s.metrics.Closes.Add(1)
	s.metrics.LastCloseTime.Store(nowUnix())
	s.logger.Debug().Msg("session closed")
	return nil
}

// teardown releases reader, writer and transport, swallowing every error.
// Caller holds the operation lock.
func (s *Session) teardown(ctx context.Context) {
	s.mu.Lock()
	reader := s.reader
	writer := s.writer
	s.reader = nil
	s.writer = nil
	s.lastWrite = nil
	s.mu.Unlock()

	if reader != nil {
		if err := reader.Cancel(ctx); err != nil {
			s.logger.Debug().Err(err).Msg("cancelling reader during teardown")
		}
	}
	if writer != nil {
		if err := writer.Close(ctx); err != nil {
			s.logger.Debug().Err(err).Msg("closing writer during teardown")
		}
	}
	if err := s.handle.Close(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("closing transport during teardown")
	}
	s.rbuf.Clear()
}

// Update applies a new baud rate by closing and reopening the transport in
// place. Output signals set before the update are reapplied after the
// reopen, because the transport forgets them. No-op when the rate already
// matches. On teardown/setup failure the error is returned and the session
// is left in whatever state the failed step produced.
func (s *Session) Update(ctx context.Context, baudRate int) error {
	if !ValidBaudRate(baudRate) {
		return fmt.Errorf("%w: %d", ErrInvalidBaudRate, baudRate)
	}
	if !s.isOpen.Load() {
		return ErrPortNotOpen
	}

	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	if s.cfg.BaudRate == baudRate {
		s.mu.Unlock()
		return nil
	}
	s.cfg.BaudRate = baudRate
	cfg := s.cfg
	last := s.lastSignals
	s.mu.Unlock()

	s.reconfiguring.Store(true)
	defer s.reconfiguring.Store(false)

	s.teardown(ctx)

	if err := s.handle.Open(ctx, cfg); err != nil {
		s.metrics.ReconfigurationErrors.Add(1)
		s.isOpen.Store(false)
		return fmt.Errorf("reopening transport at %d baud: %w", baudRate, err)
	}

	s.mu.Lock()
	s.reader = s.handle.Readable()
	s.writer = s.handle.Writable()
	s.mu.Unlock()

	if last != nil {
		if err := s.handle.SetSignals(ctx, *last); err != nil {
			s.metrics.ReconfigurationErrors.Add(1)
			return fmt.Errorf("reapplying signals after reopen: %w", err)
		}
	}

	s.metrics.Reconfigurations.Add(1)
	s.logger.Debug().Int("baud", baudRate).Msg("session reconfigured")
	return nil
}

// Read fills p with received bytes and returns the count. Buffered bytes
// are drained first, in receipt order; only an empty buffer touches the
// transport. When a delivered chunk exceeds len(p) the excess is stashed
// for the next call.
//
// Stream-end observed while a reconfiguration is in flight is an artifact
// of the teardown, not real end-of-data: Read waits for the lock holder to
// release, re-fetches the reader handle and retries. A read entering during
// that teardown window waits the same way. Recoverable line noise
// (framing, parity, break, overrun) is logged and the read continues. All
// other errors propagate.
func (s *Session) Read(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !s.isOpen.Load() {
		return 0, ErrPortNotOpen
	}

	if n := s.rbuf.Take(p); n > 0 {
		s.metrics.ReadOperations.Add(1)
		s.metrics.BytesRead.Add(int64(n))
		return n, nil
	}

	// Explicit loop, re-checking reconfiguring/lock state every pass.
	for {
		s.mu.Lock()
		reader := s.reader
		s.mu.Unlock()
		if reader == nil {
			if !s.isOpen.Load() {
				return 0, ErrPortNotOpen
			}
			// The session is open but mid-reconfiguration: teardown has
			// dropped the reader and the reopen has not installed its
			// replacement yet. Wait for the lock holder, then retry.
			if werr := s.lock.WaitIdle(ctx); werr != nil {
				return 0, werr
			}
			continue
		}

		chunk, err := reader.ReadChunk(ctx)
		switch {
		case err == nil:
			if len(chunk) == 0 {
				continue
			}
			n := copy(p, chunk)
			if n < len(chunk) {
				s.rbuf.Stash(chunk[n:])
			}
			s.metrics.ReadOperations.Add(1)
			s.metrics.BytesRead.Add(int64(n))
			return n, nil

		case errors.Is(err, io.EOF):
			if !s.reconfiguring.Load() {
				if !s.isOpen.Load() {
					return 0, ErrPortNotOpen
				}
				return 0, io.EOF
			}
			// Teardown artifact. Wait out the reconfiguration, then retry
			// with whatever reader the reopen installed.
			s.metrics.ReconfigurationRetries.Add(1)
			if werr := s.lock.WaitIdle(ctx); werr != nil {
				return 0, werr
			}

		case errors.Is(err, context.Canceled) && !s.isOpen.Load():
			// The session was closed under us; the cancellation is
			// swallowed.
			return 0, ErrPortNotOpen

		default:
			if se, ok := recoverableLineNoise(err); ok {
				s.metrics.LineNoiseEvents.Add(1)
				s.logger.Warn().Str("code", se.Code.String()).Err(se.Err).Msg("line noise during read")
				continue
			}
			s.metrics.ReadErrors.Add(1)
			return 0, err
		}
	}
}

// Write queues p for transmission and records its completion handle as the
// session's last write, which a later Drain awaits. Write waits for any
// in-flight lock holder to clear but does not itself hold the lock.
func (s *Session) Write(ctx context.Context, p []byte) (*WriteOp, error) {
	if !s.isOpen.Load() {
		return nil, ErrPortNotOpen
	}
	if err := s.lock.WaitIdle(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	writer := s.writer
	s.mu.Unlock()
	if writer == nil {
		return nil, ErrPortNotOpen
	}

	op, err := writer.Write(ctx, p)
	if err != nil {
		s.metrics.WriteErrors.Add(1)
		return nil, err
	}

	s.mu.Lock()
	s.lastWrite = op
	s.mu.Unlock()

	s.metrics.WriteOperations.Add(1)
	s.metrics.BytesWritten.Add(int64(len(p)))
	return op, nil
}

// Drain blocks until the last recorded write has completed, then clears the
// record.
func (s *Session) Drain(ctx context.Context) error {
	if err := s.lock.WaitIdle(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	op := s.lastWrite
	s.mu.Unlock()
	if op == nil {
		return nil
	}

	if _, err := op.Await(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.lastWrite == op {
		s.lastWrite = nil
	}
	s.mu.Unlock()
	return nil
}

// Flush discards buffered-but-undelivered inbound bytes. The transport has
// no native flush primitive, so only the adapter's read buffer is affected.
func (s *Session) Flush(ctx context.Context) error {
	if err := s.lock.WaitIdle(ctx); err != nil {
		return err
	}
	s.rbuf.Clear()
	return nil
}

// SetSignals records sig as the last applied output-signal set and applies
// it to the transport. The record is what Update replays after a reopen.
func (s *Session) SetSignals(ctx context.Context, sig OutputSignals) error {
	if !s.isOpen.Load() {
		return ErrPortNotOpen
	}
	if err := s.lock.WaitIdle(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastSignals = &sig
	s.mu.Unlock()

	return s.handle.SetSignals(ctx, sig)
}

// GetSignals reads the transport's current input-signal set.
func (s *Session) GetSignals(ctx context.Context) (InputSignals, error) {
	if !s.isOpen.Load() {
		return InputSignals{}, ErrPortNotOpen
	}
	if err := s.lock.WaitIdle(ctx); err != nil {
		return InputSignals{}, err
	}
	return s.handle.GetSignals(ctx)
}

package webserial

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Binding is the public entry surface of the adapter. It composes the
// platform collaborator, the port identity resolver and the session
// machinery behind the Open/List/PortPath contract a generic serial
// library expects.
type Binding struct {
	platform Platform
	logger   zerolog.Logger
	metrics  *Metrics
}

// Option configures a Binding.
type Option func(*Binding)

// WithLogger attaches a structured logger. The default is a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Binding) { b.logger = l }
}

// New returns a Binding over the given platform.
func New(platform Platform, opts ...Option) *Binding {
	b := &Binding{
		platform: platform,
		logger:   zerolog.Nop(),
		metrics:  &Metrics{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Metrics returns the binding's counters, shared with every session it
// opens.
func (b *Binding) Metrics() *Metrics { return b.metrics }

// OpenOptions selects and configures the device to open.
type OpenOptions struct {
	// Path is a virtual path from List, or PathAny (or empty) to resolve
	// the device via the platform's permission prompt. Ignored when Handle
	// is set.
	Path string

	// Handle opens an explicitly resolved device, bypassing path lookup.
	Handle DeviceHandle

	// Filter narrows the permission prompt when Path is the sentinel.
	Filter DeviceFilter

	// Config holds transport parameters; zero fields take defaults.
	Config OpenConfig
}

// Open resolves a device, constructs a session and opens it. It fails with
// ErrNotSupported when the platform lacks the serial capability and with
// ErrPortNotFound when a path lookup matches nothing.
func (b *Binding) Open(ctx context.Context, opts OpenOptions) (*Session, error) {
	if b.platform == nil || !b.platform.Supported() {
		return nil, ErrNotSupported
	}

	cfg := opts.Config.withDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	handle := opts.Handle
	var err error
	switch {
	case handle != nil:
		// explicit device, nothing to resolve
	case opts.Path == "" || opts.Path == PathAny:
		b.metrics.DeviceRequests.Add(1)
		handle, err = b.platform.RequestDevice(ctx, opts.Filter)
		if err != nil {
			return nil, fmt.Errorf("requesting device: %w", err)
		}
	default:
		handle, err = b.lookupPath(ctx, opts.Path)
		if err != nil {
			return nil, err
		}
	}

	s := newSession(handle, cfg, b.logger, b.metrics)
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// List enumerates the already-permitted devices as virtual paths. It never
// fails: enumeration errors and an absent capability both produce an empty
// list. Each call uses a fresh counters table, so ordinals are dense from
// zero within one listing.
func (b *Binding) List(ctx context.Context) []string {
	if b.platform == nil || !b.platform.Supported() {
		return nil
	}

	devices, err := b.platform.ListPairedDevices(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("listing paired devices")
		return nil
	}

	counters := make(pathCounters)
	paths := make([]string, 0, len(devices))
	for _, d := range devices {
		paths = append(paths, ResolvePath(d.Descriptor(), counters))
	}
	return paths
}

// PortPath re-lists the paired devices and returns the virtual path whose
// resolved handle equals h, or false when the handle is not listed.
func (b *Binding) PortPath(ctx context.Context, h DeviceHandle) (string, bool) {
	if b.platform == nil || !b.platform.Supported() {
		return "", false
	}

	devices, err := b.platform.ListPairedDevices(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("listing paired devices")
		return "", false
	}

	counters := make(pathCounters)
	for _, d := range devices {
		path := ResolvePath(d.Descriptor(), counters)
		if d == h {
			return path, true
		}
	}
	return "", false
}

// lookupPath resolves a previously listed virtual path back to its device.
func (b *Binding) lookupPath(ctx context.Context, path string) (DeviceHandle, error) {
	b.metrics.PathLookups.Add(1)

	devices, err := b.platform.ListPairedDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing paired devices: %w", err)
	}

	counters := make(pathCounters)
	for _, d := range devices {
		if ResolvePath(d.Descriptor(), counters) == path {
			return d, nil
		}
	}

	b.metrics.PathMisses.Add(1)
	return nil, fmt.Errorf("%w: %s", ErrPortNotFound, path)
}

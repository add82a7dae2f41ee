package webserial

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPlatform struct {
	supported  bool
	devices    []DeviceHandle
	requests   atomic.Int32
	requestErr error
	listErr    error
}

func (p *mockPlatform) Supported() bool { return p.supported }

func (p *mockPlatform) RequestDevice(ctx context.Context, f DeviceFilter) (DeviceHandle, error) {
	p.requests.Add(1)
	if p.requestErr != nil {
		return nil, p.requestErr
	}
	for _, d := range p.devices {
		if matchesFilter(d.Descriptor(), f) {
			return d, nil
		}
	}
	return nil, ErrPortNotFound
}

func (p *mockPlatform) ListPairedDevices(ctx context.Context) ([]DeviceHandle, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.devices, nil
}

func twoDevicePlatform() (*mockPlatform, *mockDevice, *mockDevice) {
	d1 := &mockDevice{desc: usbDescriptor("2341", "0043")}
	d2 := &mockDevice{desc: DeviceDescriptor{{Key: AttrName, Value: "/dev/ttyS0"}}}
	return &mockPlatform{supported: true, devices: []DeviceHandle{d1, d2}}, d1, d2
}

func TestBindingListUnsupportedPlatform(t *testing.T) {
	b := New(&mockPlatform{supported: false})
	assert.Empty(t, b.List(context.Background()))
}

func TestBindingListEnumerationErrorIsEmpty(t *testing.T) {
	b := New(&mockPlatform{supported: true, listErr: errors.New("enumeration broke")})
	assert.Empty(t, b.List(context.Background()))
}

func TestBindingListPaths(t *testing.T) {
	p, _, _ := twoDevicePlatform()
	b := New(p)

	paths := b.List(context.Background())
	require.Equal(t, []string{
		"serial://usb?usbVendorId=2341&usbProductId=0043&n=0",
		"serial://port?name=%2Fdev%2FttyS0&n=0",
	}, paths)

	// Repeated listings over an unchanged device set are identical.
	assert.Equal(t, paths, b.List(context.Background()))
}

func TestBindingOpenUnsupported(t *testing.T) {
	b := New(&mockPlatform{supported: false})
	_, err := b.Open(context.Background(), OpenOptions{Path: PathAny})
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestBindingOpenAnyPromptsExactlyOnce(t *testing.T) {
	p, d1, _ := twoDevicePlatform()
	b := New(p)

	s, err := b.Open(context.Background(), OpenOptions{Path: PathAny})
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.requests.Load(), "exactly one device request")
	assert.Same(t, DeviceHandle(d1), s.Handle())
}

func TestBindingOpenEmptyPathPrompts(t *testing.T) {
	p, _, _ := twoDevicePlatform()
	b := New(p)

	_, err := b.Open(context.Background(), OpenOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.requests.Load())
}

func TestBindingOpenListedPathNeverPrompts(t *testing.T) {
	p, _, d2 := twoDevicePlatform()
	b := New(p)

	s, err := b.Open(context.Background(), OpenOptions{
		Path: "serial://port?name=%2Fdev%2FttyS0&n=0",
	})
	require.NoError(t, err)
	assert.Zero(t, p.requests.Load(), "path open must not trigger a device request")
	assert.Same(t, DeviceHandle(d2), s.Handle())
}

func TestBindingOpenPathNotFound(t *testing.T) {
	p, _, _ := twoDevicePlatform()
	b := New(p)

	_, err := b.Open(context.Background(), OpenOptions{
		Path: "serial://usb?usbVendorId=dead&usbProductId=beef&n=0",
	})
	assert.ErrorIs(t, err, ErrPortNotFound)
	assert.Equal(t, int64(1), b.Metrics().PathMisses.Load())
}

func TestBindingOpenExplicitHandle(t *testing.T) {
	p, _, d2 := twoDevicePlatform()
	b := New(p)

	s, err := b.Open(context.Background(), OpenOptions{Handle: d2})
	require.NoError(t, err)
	assert.Zero(t, p.requests.Load())
	assert.Same(t, DeviceHandle(d2), s.Handle())
}

func TestBindingOpenInvalidConfig(t *testing.T) {
	p, _, _ := twoDevicePlatform()
	b := New(p)

	_, err := b.Open(context.Background(), OpenOptions{
		Path:   PathAny,
		Config: OpenConfig{BaudRate: 12345},
	})
	assert.ErrorIs(t, err, ErrInvalidBaudRate)
	assert.Zero(t, p.requests.Load(), "invalid config must fail before resolution")
}

func TestBindingOpenMergesDefaults(t *testing.T) {
	p, d1, _ := twoDevicePlatform()
	b := New(p)

	_, err := b.Open(context.Background(), OpenOptions{
		Path:   PathAny,
		Config: OpenConfig{BaudRate: Baud9600},
	})
	require.NoError(t, err)

	d1.mu.Lock()
	cfg := d1.openCfgs[0]
	d1.mu.Unlock()
	assert.Equal(t, Baud9600, cfg.BaudRate)
	assert.Equal(t, DataBits8, cfg.DataBits)
	assert.Equal(t, StopBitsOne, cfg.StopBits)
	assert.Equal(t, ParityNone, cfg.Parity)
}

func TestBindingPortPath(t *testing.T) {
	p, d1, d2 := twoDevicePlatform()
	b := New(p)
	ctx := context.Background()

	path, ok := b.PortPath(ctx, d2)
	require.True(t, ok)
	assert.Equal(t, "serial://port?name=%2Fdev%2FttyS0&n=0", path)

	path, ok = b.PortPath(ctx, d1)
	require.True(t, ok)
	assert.Equal(t, "serial://usb?usbVendorId=2341&usbProductId=0043&n=0", path)

	_, ok = b.PortPath(ctx, &mockDevice{})
	assert.False(t, ok, "unlisted handle has no path")
}

func TestBindingRequestDeviceFilter(t *testing.T) {
	p, _, d2 := twoDevicePlatform()
	b := New(p)

	// No USB identity on d2, so a VID filter must skip it.
	s, err := b.Open(context.Background(), OpenOptions{
		Path:   PathAny,
		Filter: DeviceFilter{USBVendorID: 0x2341},
	})
	require.NoError(t, err)
	assert.NotSame(t, DeviceHandle(d2), s.Handle())
}

// Package webserial adapts an asynchronous, stream-based serial device API
// with a permission model (the shape exposed by browser-style hosts) to
// the synchronous, buffer-oriented binding contract expected by generic
// serial libraries.
//
// The binding is constructed over a Platform, the external collaborator
// that knows how to request and enumerate devices:
//
//	binding := webserial.New(webserial.NewNativePlatform(logger))
//
//	for _, path := range binding.List(ctx) {
//	    fmt.Println(path)
//	}
//
//	session, err := binding.Open(ctx, webserial.OpenOptions{
//	    Path:   "serial://usb?usbVendorId=2341&usbProductId=0043&n=0",
//	    Config: webserial.OpenConfig{BaudRate: 9600},
//	})
//
// # Virtual paths
//
// Devices are addressed by stable virtual paths minted from their
// platform-reported descriptors, e.g.
//
//	serial://usb?usbVendorId=2341&usbProductId=0043&n=0
//
// Two listings over an unchanged device set yield identical paths for the
// same physical device; the trailing ordinal disambiguates otherwise
// identical descriptors within one listing. The sentinel path
// webserial.PathAny resolves the device through the platform's permission
// prompt instead.
//
// # Sessions
//
// A Session exposes the buffer-oriented surface: Read drains an internal
// buffer that reconciles transport chunk sizes with caller-chosen read
// lengths, Write returns an awaitable completion handle, Drain awaits the
// last write, Flush discards undelivered inbound bytes, and Update changes
// the baud rate in place by closing and reopening the transport while
// in-flight reads ride out the reopen transparently.
//
// All state-mutating operations on a session are serialized by an internal
// exclusive lock; Read and Write wait for the lock to clear but do not hold
// it, so they never block one another.
package webserial

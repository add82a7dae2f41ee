package webserial

import (
	"net/url"
	"strconv"
	"strings"
)

// Virtual path scheme and categories. A path looks like
//
//	serial://usb?usbVendorId=2341&usbProductId=0043&n=0
//
// with the category chosen from the descriptor (USB identity first, then
// short-range radio, else generic) and every reported attribute echoed in
// report order, terminated by the disambiguating ordinal n.
const (
	PathScheme = "serial"

	// PathAny is the sentinel meaning "resolve via permission prompt or
	// explicit handle, not by path".
	PathAny = PathScheme + "://any"

	categoryUSB       = "usb"
	categoryBluetooth = "bluetooth"
	categoryGeneric   = "port"
)

// Well-known descriptor attribute keys.
const (
	AttrUSBVendorID        = "usbVendorId"
	AttrUSBProductID       = "usbProductId"
	AttrBluetoothServiceID = "bluetoothServiceClassId"
	AttrSerialNumber       = "serialNumber"
	AttrProduct            = "product"
	AttrName               = "name"
)

// DescriptorAttr is one platform-reported attribute of a device.
type DescriptorAttr struct {
	Key   string
	Value string
}

// DeviceDescriptor is the ordered attribute list the platform reports for a
// physical device. Order is preserved exactly as reported and is never
// re-sorted: the virtual path key is built by iterating the slice, so path
// stability across listings requires only that the platform reports
// attributes in a stable order. That stability is a precondition assumed
// here, not something the adapter can enforce.
type DeviceDescriptor []DescriptorAttr

// Get returns the value for key and whether it is present and non-empty.
func (d DeviceDescriptor) Get(key string) (string, bool) {
	for _, a := range d {
		if a.Key == key && a.Value != "" {
			return a.Value, true
		}
	}
	return "", false
}

// pathCounters assigns ordinals to repeated descriptor keys within a single
// listing. A fresh table is used per List call; ordinals are dense from
// zero and carry no meaning beyond disambiguation inside that listing.
type pathCounters map[string]int

// ResolvePath derives the stable virtual path for a descriptor, consuming
// one ordinal from counters for the descriptor's ordinal-free key.
func ResolvePath(desc DeviceDescriptor, counters pathCounters) string {
	category := categoryGeneric
	if _, ok := desc.Get(AttrUSBVendorID); ok {
		category = categoryUSB
	} else if _, ok := desc.Get(AttrBluetoothServiceID); ok {
		category = categoryBluetooth
	}

	var b strings.Builder
	b.WriteString(PathScheme)
	b.WriteString("://")
	b.WriteString(category)
	b.WriteByte('?')
	for _, attr := range desc {
		if attr.Value == "" {
			continue
		}
		b.WriteString(url.QueryEscape(attr.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(attr.Value))
		b.WriteByte('&')
	}

	// The ordinal is keyed by the full attribute string so that distinct
	// descriptors never share a counter.
	key := b.String()
	n := counters[key]
	counters[key] = n + 1

	return key + "n=" + strconv.Itoa(n)
}

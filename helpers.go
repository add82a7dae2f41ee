package webserial

import (
	"strconv"
	"strings"
	"time"
)

func nowUnix() int64 {
	return time.Now().Unix()
}

// matchesFilter reports whether a descriptor satisfies a device filter.
// Zero filter fields match anything.
func matchesFilter(desc DeviceDescriptor, f DeviceFilter) bool {
	if f.USBVendorID != 0 && !attrEqualsID(desc, AttrUSBVendorID, f.USBVendorID) {
		return false
	}
	if f.USBProductID != 0 && !attrEqualsID(desc, AttrUSBProductID, f.USBProductID) {
		return false
	}
	return true
}

// attrEqualsID compares a descriptor attribute against a numeric USB id.
// Platforms report ids as decimal or hex strings; both are accepted.
func attrEqualsID(desc DeviceDescriptor, key string, id uint16) bool {
	v, ok := desc.Get(key)
	if !ok {
		return false
	}
	v = strings.TrimPrefix(strings.ToLower(v), "0x")
	if n, err := strconv.ParseUint(v, 10, 16); err == nil && uint16(n) == id {
		return true
	}
	if n, err := strconv.ParseUint(v, 16, 16); err == nil && uint16(n) == id {
		return true
	}
	return false
}

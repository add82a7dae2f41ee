package webserial

// OutputSignals are the control lines the adapter can drive. The session
// records the last applied set and replays it after a reconfiguration
// reopen, because the transport forgets output state across a reopen.
type OutputSignals struct {
	// DTR is Data Terminal Ready.
	DTR bool
	// RTS is Request To Send.
	RTS bool
	// Break asserts the break condition on the line.
	Break bool
}

// InputSignals are the modem status lines reported by the transport.
type InputSignals struct {
	// CTS is Clear To Send.
	CTS bool
	// DSR is Data Set Ready.
	DSR bool
	// DCD is Data Carrier Detect.
	DCD bool
	// RI is Ring Indicator.
	RI bool
}

package webserial

// Supported word lengths.
const (
	DataBits5 = 5
	DataBits6 = 6
	DataBits7 = 7
	DataBits8 = 8
)

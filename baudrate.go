package webserial

// Classic UART rates accepted by Update and ValidateConfig.
const (
	Baud1200   = 1200
	Baud2400   = 2400
	Baud4800   = 4800
	Baud9600   = 9600
	Baud19200  = 19200
	Baud38400  = 38400
	Baud57600  = 57600
	Baud115200 = 115200
	Baud230400 = 230400
	Baud460800 = 460800
	Baud921600 = 921600
)

var validBaudRates = []int{
	Baud1200, Baud2400, Baud4800, Baud9600, Baud19200, Baud38400,
	Baud57600, Baud115200, Baud230400, Baud460800, Baud921600,
}

// ValidBaudRate reports whether rate is in the supported table.
func ValidBaudRate(rate int) bool {
	for _, v := range validBaudRates {
		if rate == v {
			return true
		}
	}
	return false
}

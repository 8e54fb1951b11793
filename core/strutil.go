package core

// Integer formatting without fmt or strconv, so diagnostics stay usable on
// targets where those pull in too much.

// itoa formats a signed integer in decimal.
func itoa(n int64) string {
	if n < 0 {
		return "-" + utoa(uint64(-n))
	}
	return utoa(uint64(n))
}

// utoa formats an unsigned integer in decimal.
func utoa(n uint64) string {
	if n == 0 {
		return "0"
	}

	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

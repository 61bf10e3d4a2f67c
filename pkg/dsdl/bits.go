package dsdl

// MaxForWidth returns the largest unsigned value representable in width bits.
func MaxForWidth(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	if width <= 0 {
		return 0
	}
	return (uint64(1) << uint(width)) - 1
}

// BytesFor returns the number of bytes needed to hold bits.
func BytesFor(bits int) int {
	return (bits + 7) / 8
}

// SetBit writes one bit. Bits beyond the buffer are dropped.
func SetBit(buf []byte, off int, value bool) {
	idx := off / 8
	if off < 0 || idx >= len(buf) {
		return
	}
	mask := byte(1) << uint(off%8)
	if value {
		buf[idx] |= mask
	} else {
		buf[idx] &^= mask
	}
}

// GetBit reads one bit. Bits beyond the buffer read as zero.
func GetBit(buf []byte, off int) bool {
	idx := off / 8
	if off < 0 || idx >= len(buf) {
		return false
	}
	return buf[idx]&(byte(1)<<uint(off%8)) != 0
}

// SetUxx writes the low width bits of value at off, truncating higher bits.
// Bits beyond the buffer are dropped.
func SetUxx(buf []byte, off int, value uint64, width int) {
	if width > 64 {
		width = 64
	}
	for i := 0; i < width; i++ {
		SetBit(buf, off+i, value&(uint64(1)<<uint(i)) != 0)
	}
}

// GetUxx reads width bits at off. Bits beyond the buffer read as zero
// (implicit zero extension).
func GetUxx(buf []byte, off int, width int) uint64 {
	if width > 64 {
		width = 64
	}
	var v uint64
	for i := 0; i < width; i++ {
		if GetBit(buf, off+i) {
			v |= uint64(1) << uint(i)
		}
	}
	return v
}

// CopyBits copies n bits from src at srcOff to dst at dstOff.
func CopyBits(dst []byte, dstOff int, src []byte, srcOff int, n int) {
	for i := 0; i < n; i++ {
		SetBit(dst, dstOff+i, GetBit(src, srcOff+i))
	}
}

// Saturate clamps value to the range of width bits.
func Saturate(value uint64, width int) uint64 {
	if max := MaxForWidth(width); value > max {
		return max
	}
	return value
}

// Remaining returns the number of bits in buf after off.
func Remaining(buf []byte, off int) int {
	if r := len(buf)*8 - off; r > 0 {
		return r
	}
	return 0
}

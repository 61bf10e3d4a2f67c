package dsdl

// EncodeField writes value saturated to width bits at off and returns the
// offset right after the field.
func EncodeField(buf []byte, off, width int, value uint64) int {
	SetUxx(buf, off, Saturate(value, width), width)
	return off + width
}

// DecodeField reads an unsigned field of width bits at off.
func DecodeField(buf []byte, off, width int) (uint64, error) {
	if width <= 0 || width > 64 {
		return 0, ErrBadWidth
	}
	if Remaining(buf, off) < width {
		return 0, ErrTruncatedPayload
	}
	return GetUxx(buf, off, width), nil
}

// DecodeSigned reads a two's complement field of width bits at off.
func DecodeSigned(buf []byte, off, width int) (int64, error) {
	v, err := DecodeField(buf, off, width)
	if err != nil {
		return 0, err
	}
	if width < 64 && v&(uint64(1)<<uint(width-1)) != 0 {
		v |= ^MaxForWidth(width)
	}
	return int64(v), nil
}

// EncodeSigned writes value clamped to the signed range of width bits.
func EncodeSigned(buf []byte, off, width int, value int64) int {
	if width < 64 {
		max := int64(MaxForWidth(width - 1))
		min := -max - 1
		if value > max {
			value = max
		} else if value < min {
			value = min
		}
	}
	SetUxx(buf, off, uint64(value), width)
	return off + width
}

// EncodeBitArray packs one bit per value (non-zero is set) starting at off.
func EncodeBitArray(buf []byte, off int, values []uint16) int {
	for i, v := range values {
		SetBit(buf, off+i, v != 0)
	}
	return off + len(values)
}

// DecodeBitArray unpacks n bits starting at off into 0/1 values.
func DecodeBitArray(buf []byte, off, n int) ([]uint16, error) {
	if Remaining(buf, off) < n {
		return nil, ErrTruncatedPayload
	}
	values := make([]uint16, n)
	for i := range values {
		if GetBit(buf, off+i) {
			values[i] = 1
		}
	}
	return values, nil
}

// EncodeUintArray writes each value saturated to width bits.
func EncodeUintArray(buf []byte, off, width int, values []uint16) int {
	for _, v := range values {
		off = EncodeField(buf, off, width, uint64(v))
	}
	return off
}

// DecodeUintArray reads n fields of width bits (at most 16) each.
func DecodeUintArray(buf []byte, off, width, n int) ([]uint16, error) {
	if width > 16 {
		return nil, ErrBadWidth
	}
	if Remaining(buf, off) < width*n {
		return nil, ErrTruncatedPayload
	}
	values := make([]uint16, n)
	for i := range values {
		values[i] = uint16(GetUxx(buf, off+i*width, width))
	}
	return values, nil
}

// EncodeVarBitArray writes a count prefix of prefixWidth bits followed by
// the packed bits. The count saturates to max and to the prefix range; only
// that many elements are written.
func EncodeVarBitArray(buf []byte, off, prefixWidth, max int, values []uint16) int {
	n := clampCount(len(values), prefixWidth, max)
	off = EncodeField(buf, off, prefixWidth, uint64(n))
	return EncodeBitArray(buf, off, values[:n])
}

// DecodeVarBitArray is the inverse of EncodeVarBitArray. A prefix above max
// is clamped to max.
func DecodeVarBitArray(buf []byte, off, prefixWidth, max int) ([]uint16, int, error) {
	n, off, err := decodeCount(buf, off, prefixWidth, max)
	if err != nil {
		return nil, off, err
	}
	values, err := DecodeBitArray(buf, off, n)
	return values, off + n, err
}

// EncodeVarBytes writes a count prefix followed by the bytes, count
// saturated to max.
func EncodeVarBytes(buf []byte, off, prefixWidth, max int, data []byte) int {
	n := clampCount(len(data), prefixWidth, max)
	off = EncodeField(buf, off, prefixWidth, uint64(n))
	for _, b := range data[:n] {
		SetUxx(buf, off, uint64(b), 8)
		off += 8
	}
	return off
}

// DecodeVarBytes is the inverse of EncodeVarBytes.
func DecodeVarBytes(buf []byte, off, prefixWidth, max int) ([]byte, int, error) {
	n, off, err := decodeCount(buf, off, prefixWidth, max)
	if err != nil {
		return nil, off, err
	}
	if Remaining(buf, off) < n*8 {
		return nil, off, ErrTruncatedPayload
	}
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(GetUxx(buf, off+i*8, 8))
	}
	return data, off + n*8, nil
}

func clampCount(n, prefixWidth, max int) int {
	if n > max {
		n = max
	}
	if lim := MaxForWidth(prefixWidth); uint64(n) > lim {
		n = int(lim)
	}
	return n
}

func decodeCount(buf []byte, off, prefixWidth, max int) (int, int, error) {
	v, err := DecodeField(buf, off, prefixWidth)
	if err != nil {
		return 0, off, err
	}
	n := int(v)
	if n > max {
		n = max
	}
	return n, off + prefixWidth, nil
}

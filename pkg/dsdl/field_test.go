package dsdl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFieldRoundTrip(t *testing.T) {
	for width := 1; width <= 16; width++ {
		max := MaxForWidth(width)
		for _, off := range []int{0, 3, 13} {
			buf := make([]byte, BytesFor(off+width))
			for v := uint64(0); v <= max; v += 1 + max/97 {
				next := EncodeField(buf, off, width, v)
				require.Equal(t, off+width, next)
				got, err := DecodeField(buf, off, width)
				require.NoError(t, err)
				require.Equalf(t, v, got, "width=%d off=%d", width, off)
			}
		}
	}
}

func TestFieldSaturation(t *testing.T) {
	testCases := []struct {
		name   string
		width  int
		value  uint64
		expect []byte
	}{
		{"2 bits", 2, 7, []byte{0x03}},
		{"8 bits", 8, 300, []byte{0xff}},
		{"within range", 8, 42, []byte{42}},
		{"12 bits", 12, 0xffff, []byte{0xff, 0x0f}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, len(tc.expect))
			EncodeField(buf, 0, tc.width, tc.value)
			require.Equal(t, tc.expect, buf)
		})
	}
}

func TestSetUxxTruncates(t *testing.T) {
	buf := make([]byte, 1)
	SetUxx(buf, 0, 0x1ff, 8)
	require.Equal(t, []byte{0xff}, buf)
	buf = make([]byte, 1)
	SetUxx(buf, 0, 0x105, 8)
	require.Equal(t, []byte{0x05}, buf)
}

func TestLittleEndianBitOrder(t *testing.T) {
	buf := make([]byte, 3)
	EncodeField(buf, 0, 16, 0x1234)
	require.Equal(t, []byte{0x34, 0x12, 0}, buf)

	buf = make([]byte, 2)
	EncodeField(buf, 2, 8, 0xff)
	require.Equal(t, []byte{0xfc, 0x03}, buf)
	v, err := DecodeField(buf, 2, 8)
	require.NoError(t, err)
	require.Equal(t, uint64(0xff), v)
}

func TestDecodeTruncated(t *testing.T) {
	buf := []byte{0xff}
	_, err := DecodeField(buf, 4, 5)
	require.Equal(t, ErrTruncatedPayload, err)
	_, err = DecodeField(buf, 4, 4)
	require.NoError(t, err)
	_, err = DecodeBitArray(buf, 0, 9)
	require.Equal(t, ErrTruncatedPayload, err)
	_, err = DecodeUintArray([]byte{1, 2, 3}, 0, 16, 2)
	require.Equal(t, ErrTruncatedPayload, err)
}

func TestGetUxxZeroExtends(t *testing.T) {
	require.Equal(t, uint64(0xab), GetUxx([]byte{0xab}, 0, 16))
	require.Equal(t, uint64(0), GetUxx(nil, 0, 8))
}

func TestSigned(t *testing.T) {
	buf := make([]byte, 2)
	EncodeSigned(buf, 0, 8, -2)
	require.Equal(t, byte(0xfe), buf[0])
	v, err := DecodeSigned(buf, 0, 8)
	require.NoError(t, err)
	require.Equal(t, int64(-2), v)

	EncodeSigned(buf, 0, 4, -100)
	v, err = DecodeSigned(buf, 0, 4)
	require.NoError(t, err)
	require.Equal(t, int64(-8), v)

	EncodeSigned(buf, 0, 4, 100)
	v, err = DecodeSigned(buf, 0, 4)
	require.NoError(t, err)
	require.Equal(t, int64(7), v)
}

func TestBitArray(t *testing.T) {
	buf := make([]byte, 3)
	off := EncodeBitArray(buf, 16, []uint16{1, 0, 0, 1, 1, 0, 0, 0, 1})
	require.Equal(t, 25, off)
	require.Equal(t, []byte{0, 0, 0x19}, buf)

	values, err := DecodeBitArray(append(buf, 0x01), 16, 9)
	require.NoError(t, err)
	require.Equal(t, []uint16{1, 0, 0, 1, 1, 0, 0, 0, 1}, values)
}

func TestUintArray(t *testing.T) {
	buf := make([]byte, 4)
	EncodeUintArray(buf, 0, 16, []uint16{0x0102, 0xa0b0})
	require.Equal(t, []byte{0x02, 0x01, 0xb0, 0xa0}, buf)
	values, err := DecodeUintArray(buf, 0, 16, 2)
	require.NoError(t, err)
	require.Equal(t, []uint16{0x0102, 0xa0b0}, values)
}

func TestVarArrays(t *testing.T) {
	t.Run("count saturates to max", func(t *testing.T) {
		buf := make([]byte, 4)
		off := EncodeVarBitArray(buf, 0, 8, 4, []uint16{1, 1, 1, 1, 1, 1})
		require.Equal(t, 12, off)
		require.Equal(t, []byte{0x04, 0x0f, 0, 0}, buf)
		values, next, err := DecodeVarBitArray(buf, 0, 8, 4)
		require.NoError(t, err)
		require.Equal(t, 12, next)
		require.Equal(t, []uint16{1, 1, 1, 1}, values)
	})
	t.Run("bytes", func(t *testing.T) {
		buf := make([]byte, 8)
		off := EncodeVarBytes(buf, 0, 8, 50, []byte("plc"))
		require.Equal(t, 32, off)
		require.Equal(t, []byte{3, 'p', 'l', 'c'}, buf[:4])
		data, next, err := DecodeVarBytes(buf, 0, 8, 50)
		require.NoError(t, err)
		require.Equal(t, 32, next)
		require.Equal(t, []byte("plc"), data)
	})
	t.Run("decoded prefix clamps to max", func(t *testing.T) {
		buf := []byte{200, 'a', 'b'}
		data, _, err := DecodeVarBytes(buf, 0, 8, 2)
		require.NoError(t, err)
		require.Equal(t, []byte("ab"), data)
	})
	t.Run("truncated elements", func(t *testing.T) {
		_, _, err := DecodeVarBytes([]byte{3, 'a'}, 0, 8, 50)
		require.Equal(t, ErrTruncatedPayload, err)
	})
}

func TestCopyBits(t *testing.T) {
	dst := make([]byte, 2)
	CopyBits(dst, 4, []byte{0xab}, 0, 8)
	require.Equal(t, []byte{0xb0, 0x0a}, dst)
}

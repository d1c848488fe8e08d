// Package nibble reads and writes the 4-bit-per-cell arrays used by legacy chunk sections
// for block data, light levels and the high bits of block ids.
package nibble

// Len returns the number of bytes needed to hold cells nibbles.
func Len(cells int) int {
	return (cells + 1) / 2
}

// Read returns the nibble stored for cell index. Even indices live in the low four bits of
// buf[index/2], odd indices in the high four bits. The caller guarantees that index is in
// range for buf.
func Read(buf []byte, index int) int {
	b := buf[index>>1]
	if index&1 == 0 {
		return int(b & 0xf)
	}
	return int(b >> 4)
}

// Set stores the low four bits of v for cell index, leaving the neighbouring cell intact.
func Set(buf []byte, index int, v int) {
	i := index >> 1
	if index&1 == 0 {
		buf[i] = (buf[i] & 0xf0) | byte(v&0xf)
	} else {
		buf[i] = (buf[i] & 0x0f) | byte(v&0xf)<<4
	}
}

// Pack combines two cells into one byte: lo is the even cell, hi the odd one.
func Pack(lo, hi int) byte {
	return byte(lo&0xf) | byte(hi&0xf)<<4
}

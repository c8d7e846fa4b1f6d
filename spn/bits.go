package spn

// Positions are 1-indexed from the most significant end throughout:
// bit 1 is the top bit of a width-bit block, nibble 1 the top nibble.

// BitAt returns bit pos (1 = MSB) of a width-bit value as 0 or 1.
func BitAt(data uint64, pos, width int) uint64 {
	return (data >> (width - pos)) & 1
}

// NibbleAt returns nibble pos (1 = most significant) of a block holding
// count nibbles.
func NibbleAt(data uint64, pos, count int) uint8 {
	return uint8(data>>nibbleShift(pos, count)) & (NibbleDomain - 1)
}

// WithNibble replaces nibble pos of data with v.
func WithNibble(data uint64, pos, count int, v uint8) uint64 {
	shift := nibbleShift(pos, count)
	data &^= uint64(NibbleDomain-1) << shift
	return data | uint64(v&(NibbleDomain-1))<<shift
}

// ActiveNibbles lists the positions of non-zero nibbles, scanning from the
// least significant nibble up. For 0x1003 in a 4-nibble block it returns
// [4 1].
func ActiveNibbles(data uint64, count int) []int {
	var active []int
	for i := 0; i < count; i++ {
		if (data>>(i*NibbleBits))&(NibbleDomain-1) != 0 {
			active = append(active, count-i)
		}
	}
	return active
}

func nibbleShift(pos, count int) int {
	return (count - pos) * NibbleBits
}

package spn

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// RotatingSchedule derives rounds+1 round keys from master by rotating it
// left one nibble per round, over a width-bit block.
func RotatingSchedule(master uint64, rounds, width int) []uint64 {
	mask := blockMask(width)
	k := master & mask
	keys := make([]uint64, rounds+1)
	for i := range keys {
		keys[i] = k
		k = rotateLeft(k, NibbleBits, width)
	}
	return keys
}

// RandomMaster draws a width-bit master key from crypto/rand.
func RandomMaster(width int) (uint64, error) {
	var kb [8]byte
	if _, err := rand.Read(kb[:]); err != nil {
		return 0, fmt.Errorf("spn: generating master key: %w", err)
	}
	return binary.BigEndian.Uint64(kb[:]) & blockMask(width), nil
}

func rotateLeft(x uint64, r, width int) uint64 {
	mask := blockMask(width)
	r %= width
	return ((x << r) | (x >> (width - r))) & mask
}

// TextToBlocks packs text into 16-bit blocks, big-endian, padding an odd
// trailing byte with zero.
func TextToBlocks(text string) []uint64 {
	b := []byte(text)
	if len(b)%2 != 0 {
		b = append(b, 0)
	}
	blocks := make([]uint64, len(b)/2)
	for i := range blocks {
		blocks[i] = uint64(binary.BigEndian.Uint16(b[2*i:]))
	}
	return blocks
}

// BlocksToText reverses TextToBlocks. A zero pad byte is kept.
func BlocksToText(blocks []uint64) string {
	b := make([]byte, len(blocks)*2)
	for i, bl := range blocks {
		binary.BigEndian.PutUint16(b[2*i:], uint16(bl))
	}
	return string(b)
}

// Package spn implements a small substitution-permutation network with
// 4-bit S-boxes and a bit-level P-box, as used for teaching differential
// and linear cryptanalysis.
package spn

import (
	"errors"
	"fmt"
)

const (
	// NibbleBits is the width of one S-box input.
	NibbleBits = 4
	// NibbleDomain is the number of distinct nibble values.
	NibbleDomain = 1 << NibbleBits
	// MaxBlockBits bounds the block width so blocks fit in a uint64.
	MaxBlockBits = 64
)

/* -----------------------------------------------------
   Configuration
----------------------------------------------------- */

// LookupPolicy decides what happens when a table has no entry for a value.
type LookupPolicy int

const (
	// ZeroFallback maps an undefined substitution or permutation entry to 0.
	ZeroFallback LookupPolicy = iota
	// RejectUndefined refuses tables that are not total bijections.
	RejectUndefined
)

func (lp LookupPolicy) String() string {
	switch lp {
	case ZeroFallback:
		return "ZeroFallback"
	case RejectUndefined:
		return "RejectUndefined"
	default:
		return "Unknown"
	}
}

// Config describes a cipher instance.
//
// Permutation is 1-indexed with position 1 the most significant bit:
// output bit i takes input bit Permutation[i-1].
type Config struct {
	RoundKeys    []uint64
	Substitution []uint8
	Permutation  []int
	Policy       LookupPolicy
}

// ErrConfiguration is matched by every error returned from New.
var ErrConfiguration = errors.New("spn: invalid configuration")

// ConfigError reports which part of a Config was rejected.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("spn: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

/* -----------------------------------------------------
   Network
----------------------------------------------------- */

// Network is an immutable SPN: round keys, S-box and its inverse, P-box.
// It is safe for concurrent use.
type Network struct {
	keys      []uint64
	sbox      [NibbleDomain]uint8
	sboxOK    [NibbleDomain]bool
	invSbox   [NibbleDomain]uint8
	invSboxOK [NibbleDomain]bool
	pbox      []int
	policy    LookupPolicy
	rounds    int
	width     int
	mask      uint64
}

// New validates cfg and builds a Network. Tables are copied.
func New(cfg Config) (*Network, error) {
	if len(cfg.Substitution) != len(cfg.Permutation) {
		return nil, configErrorf("tables",
			"substitution and permutation must be of the same size (%d != %d)",
			len(cfg.Substitution), len(cfg.Permutation))
	}
	if len(cfg.RoundKeys) < 2 {
		return nil, configErrorf("round keys", "need at least 2, got %d", len(cfg.RoundKeys))
	}

	width := len(cfg.Permutation)
	if width == 0 || width%NibbleBits != 0 || width > MaxBlockBits {
		return nil, configErrorf("permutation",
			"block width %d must be a positive multiple of %d up to %d",
			width, NibbleBits, MaxBlockBits)
	}

	n := &Network{
		keys:   append([]uint64(nil), cfg.RoundKeys...),
		pbox:   append([]int(nil), cfg.Permutation...),
		policy: cfg.Policy,
		rounds: len(cfg.RoundKeys) - 1,
		width:  width,
		mask:   blockMask(width),
	}

	for i, k := range n.keys {
		if k&^n.mask != 0 {
			return nil, configErrorf("round keys", "key %d (0x%X) exceeds %d bits", i, k, width)
		}
	}

	for x, y := range cfg.Substitution {
		if x >= NibbleDomain || y >= NibbleDomain {
			continue
		}
		n.sbox[x], n.sboxOK[x] = y, true
		n.invSbox[y], n.invSboxOK[y] = uint8(x), true
	}

	if cfg.Policy == RejectUndefined {
		if err := n.checkTotal(cfg.Substitution); err != nil {
			return nil, err
		}
	}

	return n, nil
}

func (n *Network) checkTotal(sub []uint8) error {
	if len(sub) != NibbleDomain {
		return configErrorf("substitution", "must have exactly %d entries, got %d", NibbleDomain, len(sub))
	}
	for y := 0; y < NibbleDomain; y++ {
		if !n.invSboxOK[y] {
			return configErrorf("substitution", "value %d has no preimage", y)
		}
	}

	seen := make([]bool, n.width+1)
	for i, p := range n.pbox {
		if p < 1 || p > n.width {
			return configErrorf("permutation", "position %d maps to %d, outside 1..%d", i+1, p, n.width)
		}
		if seen[p] {
			return configErrorf("permutation", "source bit %d used twice", p)
		}
		seen[p] = true
	}
	return nil
}

func blockMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return 1<<width - 1
}

// Rounds is the number of rounds, one less than the number of round keys.
func (n *Network) Rounds() int { return n.rounds }

// BlockBits is the block width N.
func (n *Network) BlockBits() int { return n.width }

// NibbleCount is N/4, the number of S-boxes per layer.
func (n *Network) NibbleCount() int { return n.width / NibbleBits }

// Mask has the low BlockBits bits set.
func (n *Network) Mask() uint64 { return n.mask }

// Policy reports the lookup policy the network was built with.
func (n *Network) Policy() LookupPolicy { return n.policy }

// RoundKey returns round key i.
func (n *Network) RoundKey(i int) uint64 { return n.keys[i] }

// LastRoundKey is the key mixed in after the final S-box layer.
func (n *Network) LastRoundKey() uint64 { return n.keys[n.rounds] }

/* -----------------------------------------------------
   Round components
----------------------------------------------------- */

// KeyMix XORs round key round into data. No masking is applied.
func (n *Network) KeyMix(round int, data uint64) uint64 {
	return n.keys[round] ^ data
}

// SBox looks up a single nibble; undefined entries map to 0.
func (n *Network) SBox(x uint8, invert bool) uint8 {
	if int(x) >= NibbleDomain {
		return 0
	}
	if invert {
		if !n.invSboxOK[x] {
			return 0
		}
		return n.invSbox[x]
	}
	if !n.sboxOK[x] {
		return 0
	}
	return n.sbox[x]
}

// Substitute runs every nibble of data through the S-box (or its inverse),
// most significant nibble first.
func (n *Network) Substitute(data uint64, invert bool) uint64 {
	var out uint64
	for i := 0; i < n.width; i += NibbleBits {
		group := uint8(data>>(n.width-i-NibbleBits)) & (NibbleDomain - 1)
		out = out<<NibbleBits | uint64(n.SBox(group, invert))
	}
	return out
}

// Permute moves input bit Permutation[i-1] to output bit i, counting
// positions from 1 at the most significant bit.
func (n *Network) Permute(data uint64) uint64 {
	var out uint64
	for i := 1; i <= n.width; i++ {
		src := n.pbox[i-1]
		if src < 1 || src > n.width {
			continue
		}
		out |= BitAt(data, src, n.width) << (n.width - i)
	}
	return out
}

// InversePermute undoes Permute. Undefined entries leave their bit at 0.
func (n *Network) InversePermute(data uint64) uint64 {
	var out uint64
	for i := 1; i <= n.width; i++ {
		src := n.pbox[i-1]
		if src < 1 || src > n.width {
			continue
		}
		out |= BitAt(data, i, n.width) << (n.width - src)
	}
	return out
}

/* -----------------------------------------------------
   Rounds
----------------------------------------------------- */

func (n *Network) round(index int, data uint64) uint64 {
	data = n.KeyMix(index, data)
	data = n.Substitute(data, false)
	return n.Permute(data)
}

func (n *Network) reverseRound(index int, data uint64) uint64 {
	data = n.InversePermute(data)
	data = n.Substitute(data, true)
	return n.KeyMix(index, data)
}

func (n *Network) lastRound(data uint64) uint64 {
	data = n.KeyMix(n.rounds-1, data)
	data = n.Substitute(data, false)
	return n.KeyMix(n.rounds, data)
}

func (n *Network) reverseLastRound(data uint64) uint64 {
	data = n.KeyMix(n.rounds, data)
	data = n.Substitute(data, true)
	return n.KeyMix(n.rounds-1, data)
}

/* -----------------------------------------------------
   Encrypt/Decrypt
----------------------------------------------------- */

// Encrypt runs rounds-1 full rounds followed by the last round, which has
// no permutation and ends with the final key mix. Bits above the block
// width are dropped.
func (n *Network) Encrypt(plain uint64) uint64 {
	x := plain & n.mask
	for r := 0; r < n.rounds-1; r++ {
		x = n.round(r, x)
	}
	return n.lastRound(x)
}

// Decrypt inverts Encrypt. For an involutive P-box, such as the classic
// transpose, InversePermute and Permute coincide.
func (n *Network) Decrypt(cipher uint64) uint64 {
	x := n.reverseLastRound(cipher & n.mask)
	for r := n.rounds - 2; r >= 0; r-- {
		x = n.reverseRound(r, x)
	}
	return x
}

// EncryptAll encrypts every block of in.
func (n *Network) EncryptAll(in []uint64) []uint64 {
	out := make([]uint64, len(in))
	for i := range in {
		out[i] = n.Encrypt(in[i])
	}
	return out
}

// DecryptAll decrypts every block of in.
func (n *Network) DecryptAll(in []uint64) []uint64 {
	out := make([]uint64, len(in))
	for i := range in {
		out[i] = n.Decrypt(in[i])
	}
	return out
}

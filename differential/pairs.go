package differential

import (
	"encoding/binary"
	"errors"

	mtwist "blitter.com/go/mtwist"

	"github.com/adilzafar66/differential-cryptanalysis/spn"
)

// ErrPairCount is returned when a negative number of pairs is requested.
var ErrPairCount = errors.New("differential: negative pair count")

// Source supplies uniform 63-bit values. *mtwist.MT19937_64 and
// *math/rand.Rand both satisfy it.
type Source interface {
	Int63() int64
}

// NewSampler returns a Mersenne Twister seeded from seed, so runs with the
// same seed draw the same plaintexts.
func NewSampler(seed int64) *mtwist.MT19937_64 {
	var sb [8]byte
	binary.BigEndian.PutUint64(sb[:], uint64(seed))

	prng := mtwist.New()
	prng.SeedFullState(sb[:])
	// Discard the first 64 outputs.
	for i := 0; i < 64; i++ {
		_ = prng.Int63()
	}
	return prng
}

// CipherPair holds the encryptions of two plaintexts that differ by ΔP.
type CipherPair struct {
	C1, C2 uint64
}

// GeneratePairs draws count plaintexts p1 uniformly over the block, sets
// p2 = p1 ⊕ deltaP and encrypts both. Draws are independent and may
// repeat.
func GeneratePairs(n *spn.Network, deltaP uint64, count int, src Source) ([]CipherPair, error) {
	if count < 0 {
		return nil, ErrPairCount
	}
	pairs := make([]CipherPair, count)
	for i := range pairs {
		p1 := sample(src, n.Mask())
		p2 := p1 ^ deltaP
		pairs[i] = CipherPair{C1: n.Encrypt(p1), C2: n.Encrypt(p2)}
	}
	return pairs, nil
}

// sample draws a value in [0, mask]. Blocks of 64 bits take two draws.
func sample(src Source, mask uint64) uint64 {
	v := uint64(src.Int63())
	if mask>>63 != 0 {
		v = v<<1 ^ uint64(src.Int63())
	}
	return v & mask
}

// Package linear builds the linear approximation table of an spn.Network's
// S-box and recovers last-round subkey nibbles from known plaintexts with
// a parity-counting attack.
package linear

import (
	"fmt"
	"math/bits"

	"gonum.org/v1/gonum/mat"

	"github.com/adilzafar66/differential-cryptanalysis/spn"
)

const domain = spn.NibbleDomain

// LAT holds, for input mask a and output mask b, the number of x with
// a·x = b·S(x) minus half the domain.
type LAT struct {
	bias *mat.Dense
}

func dotParity(mask, v uint64) uint64 {
	return uint64(bits.OnesCount64(mask&v) & 1)
}

// BuildLAT tabulates the linear approximations of the network's S-box.
func BuildLAT(n *spn.Network) *LAT {
	lat := mat.NewDense(domain, domain, nil)
	for a := 0; a < domain; a++ {
		for b := 0; b < domain; b++ {
			cnt := 0
			for x := 0; x < domain; x++ {
				l := dotParity(uint64(a), uint64(x))
				r := dotParity(uint64(b), uint64(n.SBox(uint8(x), false)))
				if l == r {
					cnt++
				}
			}
			lat.Set(a, b, float64(cnt-domain/2))
		}
	}
	return &LAT{bias: lat}
}

// Entry returns the signed count for masks (a, b).
func (l *LAT) Entry(a, b uint8) int {
	return int(l.bias.At(int(a), int(b)))
}

// Bias is Entry divided by the domain size.
func (l *LAT) Bias(a, b uint8) float64 {
	return float64(l.Entry(a, b)) / domain
}

// MaxBias returns the first (a, b) with a, b non-zero maximising |Entry|.
func (l *LAT) MaxBias() (a, b uint8, entry int) {
	best := 0
	for x := 1; x < domain; x++ {
		for y := 1; y < domain; y++ {
			e := l.Entry(uint8(x), uint8(y))
			if abs(e) > best {
				best = abs(e)
				a, b, entry = uint8(x), uint8(y), e
			}
		}
	}
	return a, b, entry
}

// String renders the table one input mask per row.
func (l *LAT) String() string {
	return fmt.Sprintf("%v", mat.Formatted(l.bias, mat.Squeeze()))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Package differential mounts a differential key-recovery attack on the
// last round of an spn.Network: difference distribution table, greedy
// characteristic propagation, chosen-plaintext pair generation and a
// counting distinguisher over last-round subkey candidates.
package differential

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/adilzafar66/differential-cryptanalysis/spn"
)

const domain = spn.NibbleDomain

// DDT is the difference distribution table of a 4-bit S-box: entry
// (Δx, Δy) counts the inputs x with S(x) ⊕ S(x⊕Δx) = Δy.
type DDT struct {
	counts *mat.Dense
}

// BuildDDT tabulates the difference distribution of the network's S-box.
func BuildDDT(n *spn.Network) *DDT {
	counts := mat.NewDense(domain, domain, nil)
	for dx := 0; dx < domain; dx++ {
		for x := 0; x < domain; x++ {
			y := n.SBox(uint8(x), false)
			y2 := n.SBox(uint8(x^dx), false)
			dy := int(y ^ y2)
			counts.Set(dx, dy, counts.At(dx, dy)+1)
		}
	}
	return &DDT{counts: counts}
}

// Count returns the number of inputs mapping difference dx to dy.
func (t *DDT) Count(dx, dy uint8) int {
	return int(t.counts.At(int(dx), int(dy)))
}

// RowSum totals row dx; it equals the nibble domain size for every dx.
func (t *DDT) RowSum(dx uint8) int {
	return int(mat.Sum(t.counts.RowView(int(dx))))
}

// MaxOutputFor returns the most frequent output difference for dx. Ties go
// to the smallest Δy.
func (t *DDT) MaxOutputFor(dx uint8) uint8 {
	row := t.counts.RawRowView(int(dx))
	best := 0
	for dy := 1; dy < domain; dy++ {
		if row[dy] > row[best] {
			best = dy
		}
	}
	return uint8(best)
}

// MaxNonZeroDifference scans every (Δx, Δy) except (0, 0) in ascending
// order and returns the first entry with the largest count.
func (t *DDT) MaxNonZeroDifference() (dx, dy uint8, count int) {
	for x := 0; x < domain; x++ {
		row := t.counts.RawRowView(x)
		for y := 0; y < domain; y++ {
			if x == 0 && y == 0 {
				continue
			}
			if c := int(row[y]); c > count {
				dx, dy, count = uint8(x), uint8(y), c
			}
		}
	}
	return dx, dy, count
}

// PairProbability is the chance that nibble difference dx becomes dy
// through one S-box. The (0, 0) pair places no constraint and scores 1.
func (t *DDT) PairProbability(dx, dy uint8) float64 {
	if dx == 0 && dy == 0 {
		return 1
	}
	return float64(t.Count(dx, dy)) / domain
}

// Matrix exposes the table read-only, rows indexed by Δx.
func (t *DDT) Matrix() mat.Matrix {
	return t.counts
}

// String renders the table with Δy down the rows and Δx across.
func (t *DDT) String() string {
	return fmt.Sprintf("%v", mat.Formatted(t.counts.T(), mat.Squeeze()))
}

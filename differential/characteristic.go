package differential

import (
	"errors"
	"fmt"

	"github.com/adilzafar66/differential-cryptanalysis/spn"
)

// Step is one round of a characteristic: the difference entering the
// S-box layer, the predicted difference leaving it, and the round's
// probability.
type Step struct {
	Round       int
	Input       uint64
	Output      uint64
	Active      []int
	Probability float64
}

// Characteristic is the difference expected at the input of the last
// round for a chosen plaintext difference, with its probability.
type Characteristic struct {
	Input       uint64
	Output      uint64
	Probability float64
	Trail       []Step
}

// Active lists the nibble positions of the last-round input difference;
// these are the subkey nibbles the attack can recover.
func (c Characteristic) Active(n *spn.Network) []int {
	return spn.ActiveNibbles(c.Output, n.NibbleCount())
}

// ErrNibblePosition is returned for a nibble position outside the block.
var ErrNibblePosition = errors.New("differential: nibble position out of range")

// DeltaP places nibble difference dx at nibble position target (1 = most
// significant).
func DeltaP(n *spn.Network, dx uint8, target int) (uint64, error) {
	if target < 1 || target > n.NibbleCount() {
		return 0, fmt.Errorf("%w: %d not in 1..%d", ErrNibblePosition, target, n.NibbleCount())
	}
	return spn.WithNibble(0, target, n.NibbleCount(), dx), nil
}

// OutputDifference predicts the S-box layer output difference for u by
// taking the most frequent Δy of each active nibble.
func OutputDifference(n *spn.Network, t *DDT, u uint64) uint64 {
	count := n.NibbleCount()
	var v uint64
	for _, pos := range spn.ActiveNibbles(u, count) {
		dy := t.MaxOutputFor(spn.NibbleAt(u, pos, count))
		v = spn.WithNibble(v, pos, count, dy)
	}
	return v
}

// LayerProbability multiplies the per-nibble probabilities of u → v
// through one S-box layer.
func LayerProbability(n *spn.Network, t *DDT, u, v uint64) float64 {
	count := n.NibbleCount()
	p := 1.0
	for pos := 1; pos <= count; pos++ {
		p *= t.PairProbability(spn.NibbleAt(u, pos, count), spn.NibbleAt(v, pos, count))
	}
	return p
}

// Propagate follows deltaP through all rounds but the last, keeping only
// the locally most probable output difference of every active S-box.
func Propagate(n *spn.Network, t *DDT, deltaP uint64) Characteristic {
	c := Characteristic{Input: deltaP, Probability: 1}
	u := deltaP
	for r := 0; r < n.Rounds()-1; r++ {
		v := OutputDifference(n, t, u)
		p := LayerProbability(n, t, u, v)
		c.Trail = append(c.Trail, Step{
			Round:       r,
			Input:       u,
			Output:      v,
			Active:      spn.ActiveNibbles(u, n.NibbleCount()),
			Probability: p,
		})
		c.Probability *= p
		u = n.Permute(v)
	}
	c.Output = u
	return c
}

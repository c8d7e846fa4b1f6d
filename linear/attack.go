package linear

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/golang/glog"

	"github.com/adilzafar66/differential-cryptanalysis/internal/search"
	"github.com/adilzafar66/differential-cryptanalysis/spn"
)

var (
	// ErrNoSamples is returned when the attack is given no known pairs.
	ErrNoSamples = errors.New("linear: no known plaintext pairs")

	// ErrNoCandidates is returned when the output mask touches no nibble.
	ErrNoCandidates = errors.New("linear: output mask has no active nibbles")

	// ErrTooManyActive is returned when the output mask is too wide to search.
	ErrTooManyActive = search.ErrTooManyActive
)

// AttackConfig tunes candidate scoring, as in the differential attack.
type AttackConfig = search.Config

// Sample is a known plaintext and its ciphertext.
type Sample struct {
	P, C uint64
}

// Guess is a subkey candidate with its count of samples satisfying the
// approximation and the distance of that count from half the samples,
// doubled to stay integral.
type Guess struct {
	Subkey    uint64
	Count     int
	Deviation int
}

// Recovery is the outcome of a linear subkey search.
type Recovery struct {
	Subkey  uint64
	Active  []int
	Guesses []Guess
}

// KnownSamples encrypts every plaintext under n.
func KnownSamples(n *spn.Network, plain []uint64) []Sample {
	ct := n.EncryptAll(plain)
	out := make([]Sample, len(plain))
	for i := range plain {
		out[i] = Sample{P: plain[i], C: ct[i]}
	}
	return out
}

// RecoverSubkey guesses the last-round subkey nibbles under the active
// nibbles of gamma. For each candidate it counts the samples where
// alpha·P ⊕ gamma·U = 0, U being the partial decryption of C, and keeps
// the candidate whose count lies furthest from half the samples (first in
// enumeration order on ties).
func RecoverSubkey(ctx context.Context, n *spn.Network, samples []Sample, alpha, gamma uint64, cfg AttackConfig) (*Recovery, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	active := spn.ActiveNibbles(gamma, n.NibbleCount())
	if len(active) == 0 {
		return nil, ErrNoCandidates
	}
	if len(active) > search.MaxActive {
		return nil, fmt.Errorf("linear: %w: %d > %d", ErrTooManyActive, len(active), search.MaxActive)
	}

	total := search.Size(len(active))
	glog.V(1).Infof("linear: scoring %d candidates over %d samples", total-1, len(samples))

	counts, err := search.Run(ctx, total, cfg, func(i int) int {
		k := search.Candidate(active, n.NibbleCount(), i)
		c := 0
		for _, s := range samples {
			u := n.Substitute(s.C^k, true)
			if dotParity(alpha, s.P)^dotParity(gamma, u) == 0 {
				c++
			}
		}
		return c
	})
	if err != nil {
		return nil, err
	}

	rec := &Recovery{Active: active, Guesses: make([]Guess, 0, total-1)}
	best := -1
	for i := 1; i < total; i++ {
		g := Guess{
			Subkey:    search.Candidate(active, n.NibbleCount(), i),
			Count:     counts[i],
			Deviation: abs(2*counts[i] - len(samples)),
		}
		rec.Guesses = append(rec.Guesses, g)
		if g.Deviation > best {
			best = g.Deviation
			rec.Subkey = g.Subkey
		}
	}

	glog.V(1).Infof("linear: best subkey 0x%X, deviation %d/%d", rec.Subkey, best, len(samples))
	return rec, nil
}

// TopK returns the k guesses with the largest deviation, keeping
// enumeration order among equals.
func TopK(guesses []Guess, k int) []Guess {
	arr := append([]Guess(nil), guesses...)
	sort.SliceStable(arr, func(i, j int) bool {
		return arr[i].Deviation > arr[j].Deviation
	})
	if k > len(arr) {
		k = len(arr)
	}
	return arr[:k]
}

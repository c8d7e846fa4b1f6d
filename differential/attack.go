package differential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang/glog"

	"github.com/adilzafar66/differential-cryptanalysis/internal/search"
	"github.com/adilzafar66/differential-cryptanalysis/spn"
)

var (
	// ErrNoPairs is returned when the attack is given no ciphertext pairs.
	ErrNoPairs = errors.New("differential: no ciphertext pairs")

	// ErrNoCandidates is returned when the target difference has no active
	// nibble, leaving nothing to guess.
	ErrNoCandidates = errors.New("differential: target difference has no active nibbles")

	// ErrTooManyActive is returned when the target difference activates
	// more nibbles than the search can hold.
	ErrTooManyActive = search.ErrTooManyActive
)

// AttackConfig tunes candidate scoring: worker count and batch size, zero
// meaning runtime.NumCPU() workers and the default batch.
type AttackConfig = search.Config

// Score is the number of pairs whose partial decryptions under Subkey
// differ by the target difference.
type Score struct {
	Subkey uint64
	Count  int
}

// Recovery is the outcome of a subkey search.
type Recovery struct {
	Subkey uint64
	Count  int
	Active []int
	Scores []Score
}

// PartialDecrypt undoes the last round's key mix with the guessed subkey
// and then the final S-box layer.
func PartialDecrypt(n *spn.Network, c, subkey uint64) uint64 {
	return n.Substitute(c^subkey, true)
}

// Candidate maps enumeration index i to a subkey whose non-zero nibbles
// sit only at the active positions: the j-th active position takes nibble
// len(active)-1-j of i.
func Candidate(n *spn.Network, active []int, i int) uint64 {
	return search.Candidate(active, n.NibbleCount(), i)
}

// CountMatches counts the pairs for which the partial decryptions under
// subkey differ by target.
func CountMatches(n *spn.Network, pairs []CipherPair, target, subkey uint64) int {
	c := 0
	for _, p := range pairs {
		if PartialDecrypt(n, p.C1, subkey)^PartialDecrypt(n, p.C2, subkey) == target {
			c++
		}
	}
	return c
}

// RecoverSubkey scores every non-zero subkey candidate confined to the
// active nibbles of target and returns the one with the highest count,
// the first in enumeration order on ties. Candidates are scored on a
// worker pool; ctx is checked between batches.
func RecoverSubkey(ctx context.Context, n *spn.Network, pairs []CipherPair, target uint64, cfg AttackConfig) (*Recovery, error) {
	if len(pairs) == 0 {
		return nil, ErrNoPairs
	}
	active := spn.ActiveNibbles(target, n.NibbleCount())
	if len(active) == 0 {
		return nil, ErrNoCandidates
	}
	if len(active) > search.MaxActive {
		return nil, fmt.Errorf("differential: %w: %d > %d", ErrTooManyActive, len(active), search.MaxActive)
	}

	total := search.Size(len(active))
	glog.V(1).Infof("scoring %d candidates over %d pairs, active nibbles %v", total-1, len(pairs), active)

	counts, err := search.Run(ctx, total, cfg, func(i int) int {
		return CountMatches(n, pairs, target, Candidate(n, active, i))
	})
	if err != nil {
		return nil, err
	}

	rec := &Recovery{Active: active, Scores: make([]Score, 0, total-1)}
	best := -1
	for i := 1; i < total; i++ {
		s := Score{Subkey: Candidate(n, active, i), Count: counts[i]}
		rec.Scores = append(rec.Scores, s)
		if s.Count > best {
			best = s.Count
			rec.Subkey, rec.Count = s.Subkey, s.Count
		}
	}

	glog.V(1).Infof("best subkey 0x%X with %d/%d matching pairs", rec.Subkey, rec.Count, len(pairs))
	return rec, nil
}

// ExtractSubkeyBits lists the non-zero nibbles of subkey, most significant
// first. A recovered nibble that happens to be zero is skipped too.
func ExtractSubkeyBits(n *spn.Network, subkey uint64) []uint8 {
	count := n.NibbleCount()
	var out []uint8
	for pos := 1; pos <= count; pos++ {
		if v := spn.NibbleAt(subkey, pos, count); v != 0 {
			out = append(out, v)
		}
	}
	return out
}

// RenderSubkey prints each nibble of subkey as four binary digits when its
// position is active and as XXXX otherwise.
func RenderSubkey(n *spn.Network, subkey uint64, active []int) string {
	count := n.NibbleCount()
	known := make(map[int]bool, len(active))
	for _, pos := range active {
		known[pos] = true
	}

	parts := make([]string, count)
	for pos := 1; pos <= count; pos++ {
		if known[pos] {
			parts[pos-1] = fmt.Sprintf("%04b", spn.NibbleAt(subkey, pos, count))
		} else {
			parts[pos-1] = "XXXX"
		}
	}
	return strings.Join(parts, " ")
}

package differential

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/adilzafar66/differential-cryptanalysis/spn"
)

func mustPairs(t testing.TB, n *spn.Network, deltaP uint64, count int, src Source) []CipherPair {
	t.Helper()
	pairs, err := GeneratePairs(n, deltaP, count, src)
	if err != nil {
		t.Fatalf("GeneratePairs: %v", err)
	}
	return pairs
}

func TestGeneratePairs(t *testing.T) {
	n := newTestNetwork(t, testKeys)

	a := mustPairs(t, n, 0x0B00, 200, NewSampler(42))
	b := mustPairs(t, n, 0x0B00, 200, NewSampler(42))
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different pairs")
	}
	if len(a) != 200 {
		t.Fatalf("got %d pairs", len(a))
	}

	for i, p := range a {
		if p.C1 > n.Mask() || p.C2 > n.Mask() {
			t.Fatalf("pair %d outside the block: %+v", i, p)
		}
		if d := n.Decrypt(p.C1) ^ n.Decrypt(p.C2); d != 0x0B00 {
			t.Fatalf("pair %d plaintexts differ by 0x%04X", i, d)
		}
	}

	c := mustPairs(t, n, 0x0B00, 200, rand.New(rand.NewSource(42)))
	if len(c) != 200 {
		t.Fatalf("math/rand source produced %d pairs", len(c))
	}

	if got := mustPairs(t, n, 0x0B00, 0, NewSampler(42)); len(got) != 0 {
		t.Errorf("zero count produced %d pairs", len(got))
	}
	if _, err := GeneratePairs(n, 0x0B00, -1, NewSampler(42)); !errors.Is(err, ErrPairCount) {
		t.Errorf("negative count: err = %v, want ErrPairCount", err)
	}
}

func TestGeneratePairsWideBlock(t *testing.T) {
	n := newWideNetwork(t, 64, []uint64{0x0123456789ABCDEF, 0xFEDCBA9876543210, 0x0F0F0F0F0F0F0F0F})
	const deltaP = 0x0B00000000000000

	pairs := mustPairs(t, n, deltaP, 64, NewSampler(3))
	high, low := 0, 0
	for i, p := range pairs {
		p1, p2 := n.Decrypt(p.C1), n.Decrypt(p.C2)
		if p1^p2 != deltaP {
			t.Fatalf("pair %d plaintexts differ by 0x%016X", i, p1^p2)
		}
		if p1>>63 != 0 {
			high++
		} else {
			low++
		}
	}
	// The top bit of a 64-bit block needs a second draw to be reached.
	if high == 0 || low == 0 {
		t.Errorf("top plaintext bit set in %d of %d pairs", high, len(pairs))
	}
}

func TestRecoverSubkeySingleRound(t *testing.T) {
	// With one round the target difference holds for every pair under the
	// right key.
	n := newTestNetwork(t, []uint64{0x3C5A, 0x0A00})
	ddt := BuildDDT(n)
	c := Propagate(n, ddt, 0x0B00)
	if c.Output != 0x0B00 {
		t.Fatalf("single-round characteristic = 0x%04X", c.Output)
	}

	pairs := mustPairs(t, n, c.Input, 200, NewSampler(7))
	rec, err := RecoverSubkey(context.Background(), n, pairs, c.Output, AttackConfig{})
	if err != nil {
		t.Fatalf("RecoverSubkey: %v", err)
	}
	if rec.Subkey != 0x0A00 {
		t.Errorf("Subkey = 0x%04X, want 0x0A00", rec.Subkey)
	}
	if rec.Count != len(pairs) {
		t.Errorf("Count = %d, want %d", rec.Count, len(pairs))
	}
	if len(rec.Scores) != 15 {
		t.Errorf("scored %d candidates, want 15", len(rec.Scores))
	}
}

func TestRecoverSubkey(t *testing.T) {
	n := newTestNetwork(t, testKeys)
	ddt := BuildDDT(n)

	dx, _, _ := ddt.MaxNonZeroDifference()
	deltaP, err := DeltaP(n, dx, 2)
	if err != nil {
		t.Fatalf("DeltaP: %v", err)
	}
	c := Propagate(n, ddt, deltaP)
	pairs := mustPairs(t, n, c.Input, 1000, NewSampler(1))

	rec, err := RecoverSubkey(context.Background(), n, pairs, c.Output, AttackConfig{Workers: 4})
	if err != nil {
		t.Fatalf("RecoverSubkey: %v", err)
	}
	if rec.Subkey != 0x0204 {
		t.Errorf("Subkey = 0x%04X, want 0x0204", rec.Subkey)
	}
	if !reflect.DeepEqual(rec.Active, []int{4, 2}) {
		t.Errorf("Active = %v", rec.Active)
	}
	if len(rec.Scores) != 255 {
		t.Errorf("scored %d candidates, want 255", len(rec.Scores))
	}
	if got := ExtractSubkeyBits(n, rec.Subkey); !reflect.DeepEqual(got, []uint8{2, 4}) {
		t.Errorf("ExtractSubkeyBits = %v, want [2 4]", got)
	}
	if got := RenderSubkey(n, rec.Subkey, rec.Active); got != "XXXX 0010 XXXX 0100" {
		t.Errorf("RenderSubkey = %q", got)
	}

	// Scores are independent of how the work is split.
	seq, err := RecoverSubkey(context.Background(), n, pairs, c.Output, AttackConfig{Workers: 1, BatchSize: 1})
	if err != nil {
		t.Fatalf("RecoverSubkey: %v", err)
	}
	if !reflect.DeepEqual(seq, rec) {
		t.Error("sequential and parallel runs disagree")
	}
}

func TestRecoverSubkeySuccessRate(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}

	n := newTestNetwork(t, testKeys)
	ddt := BuildDDT(n)
	c := Propagate(n, ddt, 0x0B00)

	const trials = 20
	hits := 0
	for seed := int64(0); seed < trials; seed++ {
		pairs := mustPairs(t, n, c.Input, 1000, NewSampler(100+seed))
		rec, err := RecoverSubkey(context.Background(), n, pairs, c.Output, AttackConfig{})
		if err != nil {
			t.Fatalf("RecoverSubkey: %v", err)
		}
		if rec.Subkey == n.LastRoundKey()&0x0F0F {
			hits++
		}
	}
	if rate := float64(hits) / trials; rate < 0.95 {
		t.Errorf("success rate %.2f below 0.95", rate)
	}
}

func TestRecoverSubkeyErrors(t *testing.T) {
	n := newTestNetwork(t, testKeys)
	ctx := context.Background()

	if _, err := RecoverSubkey(ctx, n, nil, 0x0606, AttackConfig{}); !errors.Is(err, ErrNoPairs) {
		t.Errorf("no pairs: err = %v", err)
	}

	pairs := []CipherPair{{C1: 1, C2: 2}}
	if _, err := RecoverSubkey(ctx, n, pairs, 0, AttackConfig{}); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("zero target: err = %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := RecoverSubkey(cancelled, n, pairs, 0x0606, AttackConfig{}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: err = %v", err)
	}
}

func TestRecoverSubkeyWideTargets(t *testing.T) {
	n := newWideNetwork(t, 64, []uint64{0, 0})
	pairs := []CipherPair{{C1: 1, C2: 2}}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	for _, target := range []uint64{0x0111111111111111, 0x1111111000000000, ^uint64(0)} {
		_, err := RecoverSubkey(cancelled, n, pairs, target, AttackConfig{})
		if !errors.Is(err, ErrTooManyActive) {
			t.Errorf("target 0x%016X: err = %v, want ErrTooManyActive", target, err)
		}
	}

	// The widest accepted search stops on cancellation before scoring.
	if _, err := RecoverSubkey(cancelled, n, pairs, 0x0000000000111111, AttackConfig{}); !errors.Is(err, context.Canceled) {
		t.Errorf("six active nibbles: err = %v, want context.Canceled", err)
	}
}

func TestPartialDecrypt(t *testing.T) {
	n := newTestNetwork(t, testKeys)
	// Undoing the last round with the right key leaves the state entering
	// the last round's S-box layer.
	for _, x := range []uint64{0, 0x1234, 0xFFFF} {
		c := n.Substitute(x, false) ^ n.RoundKey(4)
		if got := PartialDecrypt(n, c, n.LastRoundKey()); got != x {
			t.Errorf("PartialDecrypt = 0x%04X, want 0x%04X", got, x)
		}
	}
}

func TestExtractSubkeyBits(t *testing.T) {
	n := newTestNetwork(t, testKeys)
	if got := ExtractSubkeyBits(n, 0x1003); !reflect.DeepEqual(got, []uint8{1, 3}) {
		t.Errorf("ExtractSubkeyBits(0x1003) = %v", got)
	}
	if got := ExtractSubkeyBits(n, 0); got != nil {
		t.Errorf("ExtractSubkeyBits(0) = %v", got)
	}
	if got := RenderSubkey(n, 0x1003, []int{4, 1}); got != "0001 XXXX XXXX 0011" {
		t.Errorf("RenderSubkey = %q", got)
	}
}

func BenchmarkRecoverSubkey(b *testing.B) {
	n := newTestNetwork(b, testKeys)
	pairs := mustPairs(b, n, 0x0B00, 1000, NewSampler(1))
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := RecoverSubkey(ctx, n, pairs, 0x0606, AttackConfig{}); err != nil {
			b.Fatal(err)
		}
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/adilzafar66/differential-cryptanalysis/differential"
	"github.com/adilzafar66/differential-cryptanalysis/linear"
	"github.com/adilzafar66/differential-cryptanalysis/spn"
)

var (
	S = []uint8{
		0xE, 0x4, 0xD, 0x1,
		0x2, 0xF, 0xB, 0x8,
		0x3, 0xA, 0x6, 0xC,
		0x5, 0x9, 0x0, 0x7,
	}

	P = []int{
		1, 5, 9, 13,
		2, 6, 10, 14,
		3, 7, 11, 15,
		4, 8, 12, 16,
	}

	rounds = 4
)

var (
	keysFlag    = flag.String("keys", "1,2,3,4,516", "Comma-separated round keys; empty derives them from -master")
	masterFlag  = flag.String("master", "", "Master key for the rotating schedule (hex); random when empty")
	plainFlag   = flag.Uint64("plain", 782, "Plaintext block for the encryption demo")
	pairsFlag   = flag.Int("pairs", 1000, "Chosen-plaintext pairs for the differential attack")
	seedFlag    = flag.Int64("seed", 1, "Sampler seed")
	sboxFlag    = flag.Int("sbox", 2, "Nibble position (1 = most significant) that receives the input difference")
	workersFlag = flag.Int("workers", runtime.NumCPU(), "Workers scoring subkey candidates")
	linearFlag  = flag.Bool("linear", false, "Also run the linear attack")
	samplesFlag = flag.Int("samples", 10000, "Known plaintexts for the linear attack")
	alphaFlag   = flag.Uint64("alpha", 0x0B00, "Linear attack plaintext mask")
	gammaFlag   = flag.Uint64("gamma", 0x0505, "Linear attack last-round input mask")
)

func roundKeys() ([]uint64, error) {
	if *keysFlag != "" {
		var keys []uint64
		for _, f := range strings.Split(*keysFlag, ",") {
			k, err := strconv.ParseUint(strings.TrimSpace(f), 0, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing round key %q: %w", f, err)
			}
			keys = append(keys, k)
		}
		return keys, nil
	}

	var master uint64
	if *masterFlag != "" {
		k, err := strconv.ParseUint(*masterFlag, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing master key: %w", err)
		}
		master = k
	} else {
		k, err := spn.RandomMaster(len(P))
		if err != nil {
			return nil, err
		}
		master = k
	}
	glog.Infof("master key 0x%04X", master)
	return spn.RotatingSchedule(master, rounds, len(P)), nil
}

func main() {
	flag.Parse()
	defer glog.Flush()

	keys, err := roundKeys()
	if err != nil {
		glog.Fatal(err)
	}

	net, err := spn.New(spn.Config{RoundKeys: keys, Substitution: S, Permutation: P})
	if err != nil {
		glog.Fatal(err)
	}
	glog.Infof("%d-round SPN, %d-bit block", net.Rounds(), net.BlockBits())

	ct := net.Encrypt(*plainFlag)
	fmt.Println("Plaintext: ", *plainFlag)
	fmt.Println("Encryption:", ct)
	fmt.Println("Decryption:", net.Decrypt(ct))

	// DDT print
	ddt := differential.BuildDDT(net)
	fmt.Println("\nDifference Distribution Table (rows ΔY, columns ΔX):")
	fmt.Println(ddt)

	dx, dy, freq := ddt.MaxNonZeroDifference()
	fmt.Printf("\nMax ΔX: %d\nMax ΔY: %d\nFrequency: %d\n", dx, dy, freq)

	deltaP, err := differential.DeltaP(net, dx, *sboxFlag)
	if err != nil {
		glog.Fatal(err)
	}
	char := differential.Propagate(net, ddt, deltaP)
	fmt.Printf("\nΔP: 0x%04X\n", deltaP)
	for _, s := range char.Trail {
		fmt.Printf("  round %d: 0x%04X -> 0x%04X  p=%.6f  active %v\n",
			s.Round+1, s.Input, s.Output, s.Probability, s.Active)
	}
	fmt.Printf("Last round input (U%d): 0x%04X\n", net.Rounds(), char.Output)
	fmt.Printf("Probability: %v\n", char.Probability)

	ctx := context.Background()
	cfg := differential.AttackConfig{Workers: *workersFlag}

	pairs, err := differential.GeneratePairs(net, deltaP, *pairsFlag, differential.NewSampler(*seedFlag))
	if err != nil {
		glog.Fatal(err)
	}
	rec, err := differential.RecoverSubkey(ctx, net, pairs, char.Output, cfg)
	if err != nil {
		glog.Fatal(err)
	}

	fmt.Printf("\nSubkey guess: 0x%04X (%d/%d pairs)\n", rec.Subkey, rec.Count, len(pairs))
	fmt.Println("Subkey bits (list):  ", differential.ExtractSubkeyBits(net, rec.Subkey))
	fmt.Println("Subkey bits (binary):", differential.RenderSubkey(net, rec.Subkey, rec.Active))
	fmt.Printf("Real last key: 0x%04X\n", net.LastRoundKey())

	if *linearFlag {
		runLinear(ctx, net, cfg)
	}

	demoText(net)
}

func runLinear(ctx context.Context, net *spn.Network, cfg linear.AttackConfig) {
	lat := linear.BuildLAT(net)
	fmt.Println("\nLAT:")
	fmt.Println(lat)

	src := differential.NewSampler(*seedFlag)
	pt := make([]uint64, *samplesFlag)
	for i := range pt {
		pt[i] = uint64(src.Int63()) & net.Mask()
	}

	rec, err := linear.RecoverSubkey(ctx, net, linear.KnownSamples(net, pt), *alphaFlag, *gammaFlag, cfg)
	if err != nil {
		glog.Error(err)
		return
	}

	fmt.Printf("Best guess = 0x%04X\n", rec.Subkey)
	fmt.Println("Top candidates:")
	n := float64(len(pt))
	for _, g := range linear.TopK(rec.Guesses, 10) {
		bias := float64(g.Deviation) / (2 * n)
		fmt.Printf("0x%04X : %d (|bias| %.4f, log2 %.2f)\n", g.Subkey, g.Count, bias, math.Log2(bias))
	}
}

func demoText(net *spn.Network) {
	if net.BlockBits() != 16 {
		return
	}
	fmt.Println("\n--- Demo encryption with text ---")

	const text = "substitution-permutation"
	ct := net.EncryptAll(spn.TextToBlocks(text))
	fmt.Printf("Test PT = %q\n", text)
	fmt.Printf("Encrypted blocks = %v\n", ct)
	fmt.Printf("Decrypted text = %q\n", spn.BlocksToText(net.DecryptAll(ct)))
}

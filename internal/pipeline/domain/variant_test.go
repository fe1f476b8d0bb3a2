package domain

import (
	"math/rand"
	"testing"
)

func TestAssignVariantCoversBothBuckets(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	counts := map[Variant]int{}
	for i := 0; i < 1000; i++ {
		v := AssignVariant(r)
		if v != VariantA && v != VariantB {
			t.Fatalf("unexpected variant %q", v)
		}
		counts[v]++
	}

	// A uniform draw over 1000 samples should land nowhere near all-one-bucket.
	if counts[VariantA] < 400 || counts[VariantB] < 400 {
		t.Fatalf("draw looks biased: %v", counts)
	}
}

func TestAssignVariantDeterministicPerSeed(t *testing.T) {
	a := rand.New(rand.NewSource(42))
	b := rand.New(rand.NewSource(42))

	for i := 0; i < 50; i++ {
		if AssignVariant(a) != AssignVariant(b) {
			t.Fatal("same seed must produce the same sequence")
		}
	}
}

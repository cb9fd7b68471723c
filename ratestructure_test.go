package spatialsim

import (
	"math/rand"
	"testing"
)

func TestRateSum_InsertSelectTotal(t *testing.T) {
	r := NewRateSum(5)
	r.Set(0, 1.0)
	r.Set(1, 2.0)
	r.Set(4, 3.0)
	if total := r.Total(); total != 6.0 {
		t.Errorf(UnequalFloatParameterError, "total", 6.0, total)
	}
	if idx := r.SelectEvent(0.5); idx != 0 {
		t.Errorf(UnequalIntParameterError, "selected index", 0, idx)
	}
	if idx := r.SelectEvent(1.5); idx != 1 {
		t.Errorf(UnequalIntParameterError, "selected index", 1, idx)
	}
	if idx := r.SelectEvent(5.5); idx != 4 {
		t.Errorf(UnequalIntParameterError, "selected index", 4, idx)
	}
}

func TestRateSum_InsertNeverGoesNegative(t *testing.T) {
	r := NewRateSum(2)
	r.Set(0, 1.0)
	r.Insert(0, -5.0)
	if rate := r.Rate(0); rate != 0 {
		t.Errorf(UnequalFloatParameterError, "clamped rate", 0, rate)
	}
	if total := r.Total(); total != 0 {
		t.Errorf(UnequalFloatParameterError, "clamped total", 0, total)
	}
}

// structureFixtures exercises every RateStructure implementation through
// the same scenario, since they must all agree on Total()/SelectEvent
// given identical rates.
func structureFixtures(n int) map[string]RateStructure {
	rng := rand.New(rand.NewSource(1))
	return map[string]RateStructure{
		"sum":      NewRateSum(n),
		"interval": NewRateInterval(n),
		"tree":     NewRateTree(n),
		"cr":       NewRateCR(n, rng),
	}
}

func TestRateStructures_AgreeOnTotal(t *testing.T) {
	rates := []float64{1.0, 0.0, 4.0, 2.5, 0.0, 3.0, 1.5, 0.0}
	for name, s := range structureFixtures(len(rates)) {
		for i, rate := range rates {
			s.Set(i, rate)
		}
		var want float64
		for _, r := range rates {
			want += r
		}
		if got := s.Total(); got < want-1e-9 || got > want+1e-9 {
			t.Errorf(UnequalFloatParameterError, name+" total", want, got)
		}
	}
}

func TestRateStructures_SelectEventWithinBounds(t *testing.T) {
	rates := []float64{1.0, 0.0, 4.0, 2.5, 0.0, 3.0, 1.5, 0.0}
	for name, s := range structureFixtures(len(rates)) {
		for i, rate := range rates {
			s.Set(i, rate)
		}
		total := s.Total()
		for _, u := range []float64{0.0, total * 0.25, total * 0.5, total * 0.75, total - 1e-9} {
			idx := s.SelectEvent(u)
			if idx < 0 || idx >= len(rates) {
				t.Errorf(UnequalIntParameterError, name+" selected index out of range", 0, idx)
			}
			if rates[idx] == 0 {
				t.Errorf(UnequalFloatParameterError, name+" selected a zero-rate index", 1, 0)
			}
		}
	}
}

func TestRateStructures_FullResumMatchesIncremental(t *testing.T) {
	for name, s := range structureFixtures(4) {
		s.Insert(0, 2.0)
		s.Insert(1, 3.0)
		s.Insert(2, 1.0)
		before := s.Total()
		s.FullResum()
		after := s.Total()
		if before < after-1e-9 || before > after+1e-9 {
			t.Errorf(UnequalFloatParameterError, name+" total after FullResum", before, after)
		}
	}
}

func TestRateTree_HandlesSingleIndex(t *testing.T) {
	tree := NewRateTree(1)
	tree.Set(0, 5.0)
	if tree.Total() != 5.0 {
		t.Errorf(UnequalFloatParameterError, "single-leaf total", 5.0, tree.Total())
	}
	if idx := tree.SelectEvent(0); idx != 0 {
		t.Errorf(UnequalIntParameterError, "single-leaf select", 0, idx)
	}
}

package spatialsim

import (
	"math/rand"
	"testing"
)

func TestRateHandler_GetNextEvent_ResolvesCorrectChannel(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	h := NewRateHandler(rng)
	inf := NewRateSum(3)
	inf.Set(0, 1.0)
	adv := NewRateSum(3)
	adv.Set(1, 9.0)
	h.AddChannel("Infection", inf, 1.0)
	h.AddChannel("Advance", adv, 1.0)

	counts := map[string]int{}
	for i := 0; i < 200; i++ {
		ev, err := h.GetNextEvent()
		if err != nil {
			t.Fatal(err)
		}
		counts[ev.Channel]++
		if ev.DeltaT <= 0 {
			t.Errorf(UnequalFloatParameterError, "positive waiting time", 1, ev.DeltaT)
		}
	}
	// Advance channel has 9x the rate of Infection, so it should dominate.
	if counts["Advance"] <= counts["Infection"] {
		t.Errorf(UnequalIntParameterError, "Advance draws should outnumber Infection draws", counts["Advance"], counts["Infection"])
	}
}

func TestRateHandler_SetFactor(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	h := NewRateHandler(rng)
	s := NewRateSum(1)
	s.Set(0, 1.0)
	h.AddChannel("Infection", s, 1.0)
	if err := h.SetFactor("Infection", 0.0); err != nil {
		t.Fatal(err)
	}
	if total := h.TotalRate(); total != 0 {
		t.Errorf(UnequalFloatParameterError, "total rate after zeroing factor", 0, total)
	}
	if err := h.SetFactor("Unknown", 1.0); err == nil {
		t.Errorf(ExpectedErrorWhileError, "setting the factor of an unregistered channel", "nil")
	}
}

func TestRateHandler_GetNextEvent_NoRatesIsError(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	h := NewRateHandler(rng)
	h.AddChannel("Infection", NewRateSum(2), 1.0)
	if _, err := h.GetNextEvent(); err == nil {
		t.Errorf(ExpectedErrorWhileError, "drawing an event with no positive rates", "nil")
	}
}

func TestRateHandler_ChannelOrderPreserved(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	h := NewRateHandler(rng)
	h.AddChannel("Advance", NewRateSum(1), 1.0)
	h.AddChannel("Infection", NewRateSum(1), 1.0)
	order := h.Channels()
	if order[0] != "Advance" || order[1] != "Infection" {
		t.Errorf(UnequalStringParameterError, "channel registration order", "[Advance Infection]", order[0]+" "+order[1])
	}
	sorted := h.SortedChannels()
	if sorted[0] != "Advance" || sorted[1] != "Infection" {
		t.Errorf(UnequalStringParameterError, "sorted channel order", "[Advance Infection]", sorted[0]+" "+sorted[1])
	}
}

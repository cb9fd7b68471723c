package spatialsim

import (
	"math/rand"
	"testing"
)

func newEventHandlerFixture(t *testing.T, maxHosts float64) (*EventHandler, *HostStore, *RateHandler) {
	t.Helper()
	store := NewHostStore()
	if _, err := store.AddCell(0, 0, 0); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		h := &Host{ID: i, X: float64(i), Y: 0, CellID: 0, State: Susceptible, InitState: Susceptible, Susceptibility: 1, Infectiousness: 1}
		if err := store.AddHost(h); err != nil {
			t.Fatal(err)
		}
	}
	rng := rand.New(rand.NewSource(7))
	rates := NewRateHandler(rng)
	inf := NewRateSum(3)
	adv := NewRateSum(3)
	rates.AddChannel("Infection", inf, 1.0)
	rates.AddChannel("Advance", adv, 1.0)

	model, err := NewModel("SEIR")
	if err != nil {
		t.Fatal(err)
	}
	kernel := NewNonspatialKernel(1.0)
	advanceRates := map[State]float64{Exposed: 1.0, Infectious: 1.0}
	events := NewEventHandler(store, rates, model, kernel, advanceRates, maxHosts)
	return events, store, rates
}

func TestEventHandler_ApplyInfection_InstallsAdvanceAndPressure(t *testing.T) {
	events, store, rates := newEventHandlerFixture(t, 0)
	from, to, hostID, err := events.ApplyEvent(NextEvent{Channel: "Infection", Index: 0}, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if from != Susceptible {
		t.Errorf(UnequalStringParameterError, "prior state", "S", string(from))
	}
	if to != Exposed {
		t.Errorf(UnequalStringParameterError, "new state", "E", string(to))
	}
	if hostID != 0 {
		t.Errorf(UnequalIntParameterError, "host id", 0, hostID)
	}
	host, _ := store.Host(0)
	if host.State != Exposed {
		t.Errorf(UnequalStringParameterError, "host state in store", "E", string(host.State))
	}
	adv, _ := rates.Channel("Advance")
	if rate := adv.Rate(0); rate != 1.0 {
		t.Errorf(UnequalFloatParameterError, "advance rate installed for Exposed", 1.0, rate)
	}
}

func TestEventHandler_ApplyAdvance_PropagatesPressureOnEnteringInfectious(t *testing.T) {
	events, store, rates := newEventHandlerFixture(t, 0)
	if _, _, _, err := events.ApplyEvent(NextEvent{Channel: "Infection", Index: 0}, 1.0); err != nil {
		t.Fatal(err)
	}
	// Host 0 is now Exposed; advancing it moves to Infectious and should
	// install outgoing pressure against the other two susceptible hosts.
	from, to, _, err := events.ApplyEvent(NextEvent{Channel: "Advance", Index: 0}, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	if from != Exposed || to != Infectious {
		t.Errorf(UnequalStringParameterError, "advance transition", "E->I", string(from)+"->"+string(to))
	}
	inf, _ := rates.Channel("Infection")
	if rate := inf.Rate(1); rate <= 0 {
		t.Errorf(UnequalFloatParameterError, "pressure installed on host 1 after host 0 becomes infectious", 1, rate)
	}
	if rate := inf.Rate(2); rate <= 0 {
		t.Errorf(UnequalFloatParameterError, "pressure installed on host 2 after host 0 becomes infectious", 1, rate)
	}
	host, _ := store.Host(0)
	if !host.State.infectious() {
		t.Errorf(UnequalStringParameterError, "host 0 should be infectious", "true", "false")
	}
}

func TestEventHandler_ApplyCull_ZeroesRatesAndWithdrawsPressure(t *testing.T) {
	events, store, rates := newEventHandlerFixture(t, 0)
	events.ApplyEvent(NextEvent{Channel: "Infection", Index: 0}, 1.0)
	events.ApplyEvent(NextEvent{Channel: "Advance", Index: 0}, 2.0)
	inf, _ := rates.Channel("Infection")
	before := inf.Rate(1)
	if before <= 0 {
		t.Fatalf("expected positive pressure before cull, got %f", before)
	}

	_, to, _, err := events.ApplyEvent(NextEvent{Channel: "Cull", Index: 0}, 3.0)
	if err != nil {
		t.Fatal(err)
	}
	if to != Culled {
		t.Errorf(UnequalStringParameterError, "state after cull", "Culled", string(to))
	}
	if rate := inf.Rate(1); rate != 0 {
		t.Errorf(UnequalFloatParameterError, "pressure withdrawn from host 1 after culling host 0", 0, rate)
	}
	adv, _ := rates.Channel("Advance")
	if rate := adv.Rate(0); rate != 0 {
		t.Errorf(UnequalFloatParameterError, "advance rate cleared for culled host", 0, rate)
	}
	host, _ := store.Host(0)
	if host.State != Culled {
		t.Errorf(UnequalStringParameterError, "host state in store after cull", "Culled", string(host.State))
	}
}

func TestEventHandler_CellModeScalesPressureByCapacity(t *testing.T) {
	events, _, rates := newEventHandlerFixture(t, 10.0)
	events.ApplyEvent(NextEvent{Channel: "Infection", Index: 0}, 1.0)
	events.ApplyEvent(NextEvent{Channel: "Advance", Index: 0}, 2.0)
	inf, _ := rates.Channel("Infection")
	// In a 3-host cell with MaxHosts=10, the two remaining susceptible
	// hosts scale pressure by 2/10 relative to host mode (susceptible
	// count after host 0 left S is 2).
	rate := inf.Rate(1)
	unscaledKernel := 1.0 // NonspatialKernel rate used in the fixture
	want := unscaledKernel * (2.0 / 10.0)
	if diff := rate - want; diff < -1e-9 || diff > 1e-9 {
		t.Errorf(UnequalFloatParameterError, "cell-mode scaled pressure", want, rate)
	}
}

func TestEventHandler_UnknownChannelPanics(t *testing.T) {
	events, _, _ := newEventHandlerFixture(t, 0)
	defer func() {
		if r := recover(); r == nil {
			t.Errorf(ExpectedErrorWhileError, "dispatching an unknown event channel", "nil")
		}
	}()
	events.ApplyEvent(NextEvent{Channel: "Bogus", Index: 0}, 0)
}

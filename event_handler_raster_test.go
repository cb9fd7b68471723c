package spatialsim

import (
	"math/rand"
	"testing"
)

// newRasterEventHandlerFixture builds a 1x2 grid of cells, each holding two
// susceptible hosts, and switches the EventHandler into raster/cell-mode
// dispatch. The Infection (and, when withSporulation is set, Sporulation)
// rate channels are indexed by cell ID, matching BuildRasterHostStore's
// cellID = row*NCols+col convention for this 1-row grid.
func newRasterEventHandlerFixture(t *testing.T, withSporulation bool) (*EventHandler, *HostStore, *RateHandler) {
	t.Helper()
	store := NewHostStore()
	if _, err := store.AddCellAt(0, 0, 0, 0, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddCellAt(1, 0, 1, 1, 0); err != nil {
		t.Fatal(err)
	}
	nextID := 0
	for _, cellID := range []int{0, 1} {
		for i := 0; i < 2; i++ {
			h := &Host{ID: nextID, X: float64(cellID), Y: 0, CellID: cellID, State: Susceptible, InitState: Susceptible, Susceptibility: 1, Infectiousness: 1}
			if err := store.AddHost(h); err != nil {
				t.Fatal(err)
			}
			nextID++
		}
	}

	rng := rand.New(rand.NewSource(11))
	rates := NewRateHandler(rng)
	inf := NewRateSum(2)
	adv := NewRateSum(4)
	rates.AddChannel("Infection", inf, 1.0)
	rates.AddChannel("Advance", adv, 1.0)
	if withSporulation {
		spore := NewRateSum(2)
		rates.AddChannel("Sporulation", spore, 1.0)
	}

	model, err := NewModel("SEIR")
	if err != nil {
		t.Fatal(err)
	}
	kernel := NewNonspatialKernel(1.0)
	advanceRates := map[State]float64{Exposed: 1.0, Infectious: 1.0}
	events := NewEventHandler(store, rates, model, kernel, advanceRates, 10.0)

	window := &CouplingWindow{Coupling: []Offset{{DRow: 0, DCol: 1, Weight: 0.5}, {DRow: 0, DCol: -1, Weight: 0.5}}}
	if withSporulation {
		tree := NewRateTree(1)
		tree.Set(0, 1.0)
		window.VSKernel = tree
		window.VSOffsets = []Offset{{DRow: 0, DCol: 5}} // off the 1x2 grid
	}
	events.EnableRasterMode(window, rng)
	return events, store, rates
}

func TestEventHandler_ApplyInfectionCell_PicksLowestIDAndRescales(t *testing.T) {
	events, store, rates := newRasterEventHandlerFixture(t, false)
	inf, _ := rates.Channel("Infection")
	inf.Set(0, 1.0)

	from, to, hostID, err := events.ApplyEvent(NextEvent{Channel: "Infection", Index: 0}, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if from != Susceptible || to != Exposed {
		t.Errorf(UnequalStringParameterError, "infection-cell transition", "S->E", string(from)+"->"+string(to))
	}
	if hostID != 0 {
		t.Errorf(UnequalIntParameterError, "host id picked from cell 0", 0, hostID)
	}
	host, _ := store.Host(0)
	if host.State != Exposed {
		t.Errorf(UnequalStringParameterError, "host state in store", "E", string(host.State))
	}
	if rate := inf.Rate(0); rate != 0.5 {
		t.Errorf(UnequalFloatParameterError, "rescaled cell infection rate after one susceptible leaves", 0.5, rate)
	}
}

func TestEventHandler_ApplyInfectionCell_PanicsOnEmptyPool(t *testing.T) {
	events, store, _ := newRasterEventHandlerFixture(t, false)
	for _, id := range []int{0, 1} {
		if _, err := store.SetState(id, 0, Culled); err != nil {
			t.Fatal(err)
		}
	}
	defer func() {
		if r := recover(); r == nil {
			t.Errorf(ExpectedErrorWhileError, "drawing an infection event against a cell with no susceptible hosts", "nil")
		}
	}()
	events.ApplyEvent(NextEvent{Channel: "Infection", Index: 0}, 1.0)
}

func TestEventHandler_PropagatePressureCell_UpdatesNeighborAndSporulationRate(t *testing.T) {
	events, _, rates := newRasterEventHandlerFixture(t, true)
	inf, _ := rates.Channel("Infection")
	spore, _ := rates.Channel("Sporulation")

	// Host 0 (cell 0) becomes infectious; cell 1's infection rate should
	// gain weight*nS*inf*sus/MaxHosts = 0.5*2*1*1/10 = 0.1, and cell 0's
	// sporulation rate should reflect its own new infectious count.
	events.ApplyEvent(NextEvent{Channel: "Infection", Index: 0}, 1.0)
	events.ApplyEvent(NextEvent{Channel: "Advance", Index: 0}, 2.0)

	want := 0.5 * 2.0 * 1.0 * 1.0 / 10.0
	if rate := inf.Rate(1); rate < want-1e-9 || rate > want+1e-9 {
		t.Errorf(UnequalFloatParameterError, "neighbor cell infection rate after coupling", want, rate)
	}
	if rate := spore.Rate(0); rate <= 0 {
		t.Errorf(UnequalFloatParameterError, "source cell sporulation rate after becoming infectious", 1.0, rate)
	}
}

func TestEventHandler_ApplySporulation_PanicsWithoutVirtualSporulation(t *testing.T) {
	events, _, _ := newRasterEventHandlerFixture(t, false)
	defer func() {
		if r := recover(); r == nil {
			t.Errorf(ExpectedErrorWhileError, "drawing a sporulation event with virtual sporulation disabled", "nil")
		}
	}()
	events.ApplyEvent(NextEvent{Channel: "Sporulation", Index: 0}, 1.0)
}

func TestEventHandler_ApplySporulation_OutOfBoundsTargetIsNoop(t *testing.T) {
	events, _, _ := newRasterEventHandlerFixture(t, true)
	from, to, hostID, err := events.ApplyEvent(NextEvent{Channel: "Sporulation", Index: 0}, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if from != NoState || to != NoState || hostID != -1 {
		t.Errorf(UnequalStringParameterError, "sporulation draw landing outside the grid", "no-op", string(from)+"/"+string(to))
	}
}

func TestEventHandler_ApplySporulation_ZeroSusceptibleTargetIsNoop(t *testing.T) {
	events, store, _ := newRasterEventHandlerFixture(t, true)
	// Redirect the single tail offset onto cell 1, then exhaust its
	// susceptible pool so the draw has to reject for lack of targets.
	events.coupling.VSOffsets[0] = Offset{DRow: 0, DCol: 1}
	for _, id := range []int{2, 3} {
		if _, err := store.SetState(id, 0, Culled); err != nil {
			t.Fatal(err)
		}
	}
	from, to, hostID, err := events.ApplyEvent(NextEvent{Channel: "Sporulation", Index: 0}, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if from != NoState || to != NoState || hostID != -1 {
		t.Errorf(UnequalStringParameterError, "sporulation draw against a cell with no susceptible hosts", "no-op", string(from)+"/"+string(to))
	}
}

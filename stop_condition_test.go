package spatialsim

import "testing"

func TestEpidemicExtinctCondition(t *testing.T) {
	store := NewHostStore()
	store.AddCell(0, 0, 0)
	store.AddHost(&Host{ID: 0, CellID: 0, State: Susceptible, InitState: Susceptible})
	store.AddHost(&Host{ID: 1, CellID: 0, State: Exposed, InitState: Exposed})

	cond := NewEpidemicExtinctCondition()
	if cond.Check(store) {
		t.Errorf(UnequalStringParameterError, "extinction check while a host is still infectious-track", "false", "true")
	}

	store.SetState(1, 1.0, Removed)
	if !cond.Check(store) {
		t.Errorf(UnequalStringParameterError, "extinction check once no host is in an infectious-track state", "true", "false")
	}
}

func TestRegionCulledCondition(t *testing.T) {
	store := NewHostStore()
	store.AddCell(0, 0, 0)
	store.AddHost(&Host{ID: 0, CellID: 0, Region: "north", State: Susceptible, InitState: Susceptible})
	store.AddHost(&Host{ID: 1, CellID: 0, Region: "north", State: Susceptible, InitState: Susceptible})

	cond := NewRegionCulledCondition("north")
	if cond.Check(store) {
		t.Errorf(UnequalStringParameterError, "region-culled check before any culling", "false", "true")
	}
	store.SetState(0, 1.0, Culled)
	if cond.Check(store) {
		t.Errorf(UnequalStringParameterError, "region-culled check with one host still alive", "false", "true")
	}
	store.SetState(1, 2.0, Culled)
	if !cond.Check(store) {
		t.Errorf(UnequalStringParameterError, "region-culled check once every host in the region is culled", "true", "false")
	}
}

package spatialsim

// StopCondition lets a Runner end a run before FinalTime once some
// condition over the population is satisfied, generalizing the
// teacher's per-run custom Check(sim) predicate to this domain.
type StopCondition interface {
	Check(store *HostStore) bool
}

// epidemicExtinct stops a run once no host remains in an infectious
// compartment (Carrier or Infectious) and none are still latent/exposed
// -- the epidemic has burned out with nothing left to transmit or
// advance.
type epidemicExtinct struct{}

// NewEpidemicExtinctCondition creates a StopCondition satisfied once
// there is no host left in any non-susceptible, non-terminal state.
func NewEpidemicExtinctCondition() StopCondition {
	return epidemicExtinct{}
}

func (epidemicExtinct) Check(store *HostStore) bool {
	for _, cellID := range store.Cells() {
		cell, err := store.Cell(cellID)
		if err != nil {
			continue
		}
		for state, count := range cell.StateCounts {
			if count == 0 {
				continue
			}
			switch state {
			case Susceptible, Removed, Culled:
				continue
			default:
				return false
			}
		}
	}
	return true
}

// regionCulled is a stopping condition that checks whether every host
// registered to a named region has reached the Culled state -- used to
// end a run early once a targeted eradication intervention has finished
// its work.
type regionCulled struct {
	region string
}

// NewRegionCulledCondition creates a StopCondition satisfied once every
// host in the named region has been culled.
func NewRegionCulledCondition(region string) StopCondition {
	return regionCulled{region: region}
}

func (cond regionCulled) Check(store *HostStore) bool {
	hostIDs := store.RegionHosts(cond.region)
	if len(hostIDs) == 0 {
		return false
	}
	for _, id := range hostIDs {
		host, err := store.Host(id)
		if err != nil || host.State != Culled {
			return false
		}
	}
	return true
}

package spatialsim

import (
	"math/rand"

	"github.com/pkg/errors"
)

// EventHandler applies a drawn (channel, index) event to the HostStore
// and propagates the resulting change in infection pressure across the
// Infection rate channel. It is the only component allowed to mutate
// host state once a Simulator is running.
type EventHandler struct {
	store        *HostStore
	rates        *RateHandler
	model        *Model
	kernel       *Kernel
	advanceRates map[State]float64
	// maxHosts is the per-cell host capacity used to scale infection
	// pressure deltas in cell/raster mode. Zero means host mode, where
	// pressure is summed directly over individual susceptible hosts with
	// no normalization. Non-zero means cell/raster mode, where a target
	// cell's contribution is scaled by
	// cell.StateCounts[Susceptible]/MaxHosts -- the corrected form of the
	// ratio the original implementation wrote as a literal division by
	// 100.
	maxHosts float64
	// cellMode is true in raster population mode: the Infection and
	// Sporulation rate channels are indexed by cell ID rather than host
	// ID, infection events pick the lexicographic-first susceptible host
	// in the drawn cell, and pressure propagates cell-to-cell across
	// coupling (the direct-coupling offsets) rather than host-to-host.
	cellMode bool
	coupling *CouplingWindow
	// rng draws the two extra random values virtual sporulation needs
	// beyond the single resolving draw RateHandler passes to
	// RateStructure.SelectEvent: which long-range offset was hit, and
	// whether the MaxHosts-scaled acceptance test passes. It is the same
	// per-Simulator stream used everywhere else, not a private one, so
	// a run stays fully reproducible from one seed.
	rng *rand.Rand
}

// NewEventHandler creates an EventHandler wired to the given store, rate
// handler, compartment model and dispersal kernel. advanceRates maps each
// non-terminal compartment to its (exponential) rate of advancing to the
// next state in the model chain; maxHosts is the per-cell capacity used
// for cell/raster-mode pressure scaling, or 0 for host mode.
func NewEventHandler(store *HostStore, rates *RateHandler, model *Model, kernel *Kernel, advanceRates map[State]float64, maxHosts float64) *EventHandler {
	return &EventHandler{
		store:        store,
		rates:        rates,
		model:        model,
		kernel:       kernel,
		advanceRates: advanceRates,
		maxHosts:     maxHosts,
	}
}

// EnableRasterMode switches the EventHandler into cell-granular
// dispatch: Infection and Sporulation events are resolved against cells
// rather than hosts, and pressure propagates across coupling instead of
// summing every host pair. window may leave VSKernel nil, meaning
// virtual sporulation is disabled and the whole kernel footprint is the
// direct coupling window.
func (e *EventHandler) EnableRasterMode(window *CouplingWindow, rng *rand.Rand) {
	e.cellMode = true
	e.coupling = window
	e.rng = rng
}

// ApplyEvent dispatches a drawn event by channel name and mutates the
// HostStore accordingly, returning the host's prior state, its new
// state, and its ID so the caller can log the transition. A rejected
// virtual-sporulation draw returns (NoState, NoState, -1, nil): no host
// transitioned, so the caller should not emit a transition log row.
func (e *EventHandler) ApplyEvent(ev NextEvent, time float64) (State, State, int, error) {
	switch ev.Channel {
	case "Infection":
		if e.cellMode {
			return e.applyInfectionCell(ev.Index, time)
		}
		return e.applyInfection(ev.Index, time)
	case "Advance":
		return e.applyAdvance(ev.Index, time)
	case "Cull":
		return e.applyCull(ev.Index, time)
	case "Sporulation":
		return e.applySporulation(ev.Index, time)
	default:
		panic(errors.Errorf(UnknownRateChannelError, ev.Channel))
	}
}

// applyInfection moves a susceptible host to the model's second state
// (the first successor of Susceptible), installs that state's Advance
// rate and, if the state is infectious, its outgoing pressure. In host mode the
// drawn index is the host itself, so its own Infection rate entry is
// cleared; in cell mode the caller (applyInfectionCell) owns rescaling
// the cell's shared Infection entry instead.
func (e *EventHandler) applyInfection(hostID int, time float64) (State, State, int, error) {
	next := e.model.NextState(Susceptible)
	from, err := e.store.SetState(hostID, time, next)
	if err != nil {
		return State(0), State(0), hostID, err
	}
	if !e.cellMode {
		e.rates.structuresMustHave("Infection").Set(hostID, 0)
	}
	e.installAdvance(hostID, next)
	if next.infectious() {
		e.propagatePressure(hostID, true)
	}
	return from, next, hostID, nil
}

// applyInfectionCell is the raster-mode Infection path: the drawn index
// is a cell ID, not a host ID. It picks the lexicographic-first
// susceptible host in that cell (spec.md §4.4) and, after the transition,
// rescales the cell's own Infection rate entry by (n_S−1)/n_S to reflect
// one fewer susceptible host remaining, rather than recomputing the full
// incoming-pressure sum.
func (e *EventHandler) applyInfectionCell(cellID int, time float64) (State, State, int, error) {
	hostID, ok := e.store.FirstSusceptible(cellID)
	if !ok {
		panic(errors.Errorf(EmptySusceptiblePoolError, cellID))
	}
	cell, err := e.store.Cell(cellID)
	if err != nil {
		return State(0), State(0), hostID, err
	}
	nS := cell.StateCounts[Susceptible]

	from, to, _, err := e.applyInfection(hostID, time)
	if err != nil {
		return from, to, hostID, err
	}
	e.rescaleCellInfectionRate(cellID, nS)
	return from, to, hostID, nil
}

// rescaleCellInfectionRate applies the (n_S−1)/n_S correction to a
// cell's shared Infection rate entry after one of its susceptible hosts
// left the S compartment (by infection or cull), where nSBefore is the
// cell's susceptible count just before that host left.
func (e *EventHandler) rescaleCellInfectionRate(cellID, nSBefore int) {
	infection := e.rates.structuresMustHave("Infection")
	old := infection.Rate(cellID)
	if nSBefore > 1 {
		infection.Set(cellID, old*float64(nSBefore-1)/float64(nSBefore))
	} else {
		infection.Set(cellID, 0)
	}
}

// applyAdvance moves a host to the next compartment in the model chain.
// Exiting an infectious compartment removes its outgoing pressure;
// entering one adds it. A host reaching the chain's terminal state (e.g.
// R, with no configured successor) has its Advance rate cleared. The
// Advance channel is always indexed by host ID, in both host and raster
// population mode (spec.md §4.4: "Advance: event id is a host id").
func (e *EventHandler) applyAdvance(hostID int, time float64) (State, State, int, error) {
	host, err := e.store.Host(hostID)
	if err != nil {
		return State(0), State(0), hostID, err
	}
	from := host.State
	to := e.model.NextState(from)

	if from.infectious() {
		e.propagatePressure(hostID, false)
	}
	if _, err := e.store.SetState(hostID, time, to); err != nil {
		return State(0), State(0), hostID, err
	}
	e.rates.structuresMustHave("Advance").Set(hostID, 0)
	e.installAdvance(hostID, to)
	if to.infectious() {
		e.propagatePressure(hostID, true)
	}
	return from, to, hostID, nil
}

// applyCull removes a host from circulation immediately, zeroing its
// Advance rate and withdrawing any outgoing pressure it was contributing.
// In host mode its own Infection rate entry is zeroed too; in cell mode,
// culling a still-susceptible host instead rescales its owning cell's
// shared Infection entry by the same (n_S−1)/n_S factor an infection
// event would apply, since one fewer susceptible host remains there
// either way.
func (e *EventHandler) applyCull(hostID int, time float64) (State, State, int, error) {
	host, err := e.store.Host(hostID)
	if err != nil {
		return State(0), State(0), hostID, err
	}
	from := host.State
	if from.infectious() {
		e.propagatePressure(hostID, false)
	}
	var cellID int
	var nSBefore int
	if e.cellMode && from == Susceptible {
		cellID = host.CellID
		if cell, err := e.store.Cell(cellID); err == nil {
			nSBefore = cell.StateCounts[Susceptible]
		}
	}
	if _, err := e.store.SetState(hostID, time, Culled); err != nil {
		return State(0), State(0), hostID, err
	}
	if e.cellMode {
		if from == Susceptible {
			e.rescaleCellInfectionRate(cellID, nSBefore)
		}
	} else {
		e.rates.structuresMustHave("Infection").Set(hostID, 0)
	}
	e.rates.structuresMustHave("Advance").Set(hostID, 0)
	return from, Culled, hostID, nil
}

// applySporulation is the virtual-sporulation path (spec.md §4.4/§4.6):
// the drawn index identifies the source cell that sporulates. A relative
// offset is sampled from the long-range kernel tail tree, mapped to an
// absolute target cell, and accepted with probability n_S/MaxHosts; on
// acceptance the event recurses into an ordinary cell-mode Infection at
// the target. A target outside the host raster's footprint, or a
// rejected acceptance draw, is a no-op: (NoState, NoState, -1, nil) is
// returned so the caller knows not to log a transition.
func (e *EventHandler) applySporulation(sourceCellID int, time float64) (State, State, int, error) {
	if e.coupling == nil || e.coupling.VSKernel == nil || e.coupling.VSKernel.Total() <= 0 {
		panic(errors.New("sporulation event drawn but virtual sporulation is not configured"))
	}
	source, err := e.store.Cell(sourceCellID)
	if err != nil {
		return NoState, NoState, -1, err
	}

	tree := e.coupling.VSKernel
	u := e.rng.Float64() * tree.Total()
	idx := tree.SelectEvent(u)
	off := e.coupling.VSOffsets[idx]

	target, ok := e.store.CellAtRowCol(source.Row+off.DRow, source.Col+off.DCol)
	if !ok {
		return NoState, NoState, -1, nil
	}
	nS := target.StateCounts[Susceptible]
	if nS <= 0 {
		return NoState, NoState, -1, nil
	}
	if e.rng.Float64() >= float64(nS)/e.maxHosts {
		return NoState, NoState, -1, nil
	}
	return e.applyInfectionCell(target.ID, time)
}

// installAdvance sets the Advance rate for a host newly entering state s,
// or clears it if s has no configured advance rate or is the chain's
// terminal state.
func (e *EventHandler) installAdvance(hostID int, s State) {
	rate, ok := e.advanceRates[s]
	if !ok || !s.hasAdvanceRate() || e.model.NextState(s) == NoState {
		e.rates.structuresMustHave("Advance").Set(hostID, 0)
		return
	}
	e.rates.structuresMustHave("Advance").Set(hostID, rate)
}

// propagatePressure adds (entering=true) or removes (entering=false) the
// pressure a newly-(non)infectious host contributes to every other
// susceptible host's Infection rate. In raster mode this delegates to
// propagatePressureCell, which works at cell granularity across the
// coupling window instead of over every individual host pair.
func (e *EventHandler) propagatePressure(sourceID int, entering bool) {
	if e.cellMode {
		e.propagatePressureCell(sourceID, entering)
		return
	}
	source, err := e.store.Host(sourceID)
	if err != nil {
		return
	}
	sign := 1.0
	if !entering {
		sign = -1.0
	}
	infection := e.rates.structuresMustHave("Infection")
	for _, targetID := range e.store.Hosts() {
		if targetID == sourceID {
			continue
		}
		target, err := e.store.Host(targetID)
		if err != nil || target.State != Susceptible {
			continue
		}
		weight := e.kernel.Value(target.X-source.X, target.Y-source.Y) * source.Infectiousness * target.Susceptibility
		if e.maxHosts > 0 {
			cell, err := e.store.Cell(target.CellID)
			if err == nil {
				weight *= float64(cell.StateCounts[Susceptible]) / e.maxHosts
			}
		}
		infection.Insert(targetID, sign*weight)
	}
}

// propagatePressureCell is the raster-mode pressure update (spec.md
// §4.4): sourceID is the host whose owning cell just gained or lost
// infectiousness. For every offset in the coupling window, the target
// cell's Infection rate entry is adjusted by
// k(Δ)·states[target].S·sus(target)·inf(source)/MaxHosts, and the source
// cell's own Sporulation rate entry is refreshed to
// (states[source].C + states[source].I)·inf(source) so a subsequent
// virtual-sporulation draw reflects the new infectious count.
func (e *EventHandler) propagatePressureCell(sourceID int, entering bool) {
	host, err := e.store.Host(sourceID)
	if err != nil {
		return
	}
	source, err := e.store.Cell(host.CellID)
	if err != nil {
		return
	}
	sign := 1.0
	if !entering {
		sign = -1.0
	}
	infection := e.rates.structuresMustHave("Infection")
	for _, off := range e.coupling.Coupling {
		target, ok := e.store.CellAtRowCol(source.Row+off.DRow, source.Col+off.DCol)
		if !ok {
			continue // outside the host raster's footprint: inert
		}
		nS := target.StateCounts[Susceptible]
		if nS <= 0 {
			continue
		}
		weight := off.Weight * float64(nS) * source.Infectiousness * target.Susceptibility
		if e.maxHosts > 0 {
			weight /= e.maxHosts
		}
		infection.Insert(target.ID, sign*weight)
	}

	if e.coupling.VSKernel != nil {
		sporulation, err := e.rates.Channel("Sporulation")
		if err == nil {
			count := source.StateCounts[Carrier] + source.StateCounts[Infectious]
			sporulation.Set(source.ID, float64(count)*source.Infectiousness)
		}
	}
}

// structuresMustHave panics (a category-3 invariant violation, per
// spec.md §7) if the named channel was never registered -- every
// EventHandler caller is expected to have set up Infection and Advance
// channels before the first event is drawn.
func (h *RateHandler) structuresMustHave(name string) RateStructure {
	s, err := h.Channel(name)
	if err != nil {
		panic(err)
	}
	return s
}

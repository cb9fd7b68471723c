package spatialsim

import (
	"math"
	"sort"

	rv "github.com/kentwait/randomvariate"
	"github.com/segmentio/ksuid"
)

// InterventionKind distinguishes a continuous controller, which
// contributes a standing rate channel the Gillespie draw competes
// against, from a discrete controller, which fires at its own scheduled
// times independent of the stochastic event stream.
type InterventionKind int

const (
	Continuous InterventionKind = iota
	Discrete
)

func (k InterventionKind) String() string {
	if k == Continuous {
		return "continuous"
	}
	return "discrete"
}

// InterventionAction is a single concrete effect an Intervention wants
// applied to the population -- currently always a cull, since that is
// the only irreversible action an intervention can trigger in this
// model; future controllers could extend Kind to cover others (e.g.
// vaccination) without changing the handler plumbing.
type InterventionAction struct {
	HostID int
	Kind   string
}

// Intervention is the pluggable controller interface every registered
// intervention implements. Controllers are registered at compile time
// (spec.md §9 Design Notes: Go has no safe dynamic-import equivalent to
// the original's per-run Python module loading), unlike
// code/interventionhandling.py's dynamic import of intervention modules.
type Intervention interface {
	// Name identifies this controller in logs and in its rate channel
	// name ("Intervention_<Name>").
	Name() string
	Kind() InterventionKind
	// Initialise installs this intervention's initial rate contribution
	// (continuous) and/or primes its first scheduled time (discrete).
	Initialise(store *HostStore)
	// RateChannel returns the RateStructure and scaling factor a
	// continuous intervention contributes to the RateHandler. Discrete
	// interventions return (nil, 0).
	RateChannel() (RateStructure, float64)
	// Action resolves a RateHandler draw that landed on this
	// intervention's channel (continuous only) into a concrete action.
	Action(index int, time float64) InterventionAction
	// Update is invoked when the simulator's clock reaches NextTime()
	// (discrete controllers) and returns the actions to apply now.
	Update(store *HostStore, time float64) []InterventionAction
	// UpdateOnEvent is invoked after every stochastic event when the
	// configuration's UpdateOnAllEvents flag is set, letting a
	// controller react immediately rather than waiting for its own
	// cadence.
	UpdateOnEvent(store *HostStore, time float64, hostID int)
	// NextTime returns the next time this discrete controller wants to
	// act, or +Inf if none is scheduled (always +Inf for continuous
	// controllers, since they act through the shared rate channel
	// instead).
	NextTime() float64
}

// InterventionHandler owns every registered Intervention and is
// responsible for feeding their continuous rate contributions into the
// RateHandler, dispatching resolved draws back to the owning controller,
// and firing discrete controllers when the simulator clock reaches their
// scheduled time.
type InterventionHandler struct {
	interventions []Intervention
	byChannel     map[string]Intervention
	rates         *RateHandler
}

// NewInterventionHandler creates an empty handler that will register its
// controllers' continuous channels with rates.
func NewInterventionHandler(rates *RateHandler) *InterventionHandler {
	return &InterventionHandler{
		byChannel: make(map[string]Intervention),
		rates:     rates,
	}
}

// Register adds iv to the handler. For a continuous controller, its rate
// structure is installed into the RateHandler under "Intervention_<Name>"
// here if the controller already exposes one; a controller that only
// builds its structure in Initialise has it installed there instead.
func (ih *InterventionHandler) Register(iv Intervention) {
	ih.interventions = append(ih.interventions, iv)
	channel := "Intervention_" + iv.Name()
	ih.byChannel[channel] = iv
	if iv.Kind() == Continuous {
		structure, factor := iv.RateChannel()
		if structure != nil {
			ih.rates.AddChannel(channel, structure, factor)
		}
	}
}

// Initialise primes every registered controller against the starting
// population and (re)installs each continuous controller's rate structure
// under "Intervention_<Name>".
func (ih *InterventionHandler) Initialise(store *HostStore) {
	for _, iv := range ih.interventions {
		iv.Initialise(store)
		if iv.Kind() == Continuous {
			if structure, factor := iv.RateChannel(); structure != nil {
				ih.rates.AddChannel("Intervention_"+iv.Name(), structure, factor)
			}
		}
	}
}

// NextTime returns the minimum NextTime() across every discrete
// controller, or +Inf if none has a pending action -- the Simulator
// compares this against the next stochastic event time to decide which
// fires first, with an exact tie resolved in the intervention's favor
// (spec.md §5).
func (ih *InterventionHandler) NextTime() float64 {
	next := math.Inf(1)
	for _, iv := range ih.interventions {
		if t := iv.NextTime(); t < next {
			next = t
		}
	}
	return next
}

// Action resolves a RateHandler draw on an "Intervention_<Name>" channel
// into a concrete action from the owning controller.
func (ih *InterventionHandler) Action(channel string, index int, time float64) (InterventionAction, bool) {
	iv, ok := ih.byChannel[channel]
	if !ok {
		return InterventionAction{}, false
	}
	return iv.Action(index, time), true
}

// Fire advances every discrete controller whose NextTime() has arrived,
// collecting their actions.
func (ih *InterventionHandler) Fire(store *HostStore, time float64) []InterventionAction {
	var actions []InterventionAction
	for _, iv := range ih.interventions {
		if iv.Kind() == Discrete && iv.NextTime() <= time {
			actions = append(actions, iv.Update(store, time)...)
		}
	}
	return actions
}

// UpdateOnEvent notifies every controller that a stochastic event just
// happened, for configurations with UpdateOnAllEvents set.
func (ih *InterventionHandler) UpdateOnEvent(store *HostStore, time float64, hostID int) {
	for _, iv := range ih.interventions {
		iv.UpdateOnEvent(store, time, hostID)
	}
}

// NewActionID mints a sortable identifier for an intervention action log
// row, so concurrently-logged actions retain a stable order.
func NewActionID() ksuid.KSUID {
	return ksuid.New()
}

// RegionCullIntervention is a continuous controller that removes hosts
// from a named region at a constant per-host rate, up to a lifetime
// budget, grounded on the original implementation's region-based removal
// controller: once the budget is exhausted the channel's remaining rates
// are zeroed rather than the controller being unregistered.
type RegionCullIntervention struct {
	RegionName string
	CullRate   float64
	Budget     int

	store     *HostStore
	structure RateStructure
	spent     int
}

// NewRegionCullIntervention creates a region-scoped continuous cull
// controller. cullRate is the per-eligible-host rate; budget caps the
// total number of hosts this controller will ever cull.
func NewRegionCullIntervention(region string, cullRate float64, budget int) *RegionCullIntervention {
	return &RegionCullIntervention{RegionName: region, CullRate: cullRate, Budget: budget}
}

func (r *RegionCullIntervention) Name() string          { return "RegionCull_" + r.RegionName }
func (r *RegionCullIntervention) Kind() InterventionKind { return Continuous }
func (r *RegionCullIntervention) NextTime() float64      { return math.Inf(1) }

func (r *RegionCullIntervention) Initialise(store *HostStore) {
	r.store = store
	r.structure = NewRateSum(len(store.Hosts()))
	if r.spent >= r.Budget {
		return
	}
	for _, hostID := range store.RegionHosts(r.RegionName) {
		host, err := store.Host(hostID)
		if err != nil || host.State == Culled {
			continue
		}
		r.structure.Set(hostID, r.CullRate)
	}
}

func (r *RegionCullIntervention) RateChannel() (RateStructure, float64) {
	return r.structure, 1.0
}

func (r *RegionCullIntervention) Action(index int, time float64) InterventionAction {
	r.structure.Set(index, 0)
	r.spent++
	if r.spent >= r.Budget {
		for _, hostID := range r.store.RegionHosts(r.RegionName) {
			r.structure.Set(hostID, 0)
		}
	}
	return InterventionAction{HostID: index, Kind: "Cull"}
}

func (r *RegionCullIntervention) Update(store *HostStore, time float64) []InterventionAction {
	return nil
}

// UpdateOnEvent removes a newly-culled host from this controller's
// eligible set; hosts entering Culled by any path
// (another controller, or the ordinary Cull channel) must stop
// contributing rate here too.
func (r *RegionCullIntervention) UpdateOnEvent(store *HostStore, time float64, hostID int) {
	host, err := store.Host(hostID)
	if err != nil {
		return
	}
	if host.State == Culled {
		r.structure.Set(hostID, 0)
	}
}

// ScheduledSurveillanceIntervention is a discrete controller that sweeps
// a region at a fixed interval and culls every currently-infectious host
// found, up to a per-sweep budget, in ascending host-ID priority order --
// the periodic-inspection analogue of the continuous region cull above.
// DetectionProb is the per-host chance that an infectious individual is
// actually found during a sweep; 1.0 reproduces perfect surveillance.
type ScheduledSurveillanceIntervention struct {
	RegionName    string
	UpdateFreq    float64
	SweepBudget   int
	DetectionProb float64

	nextTime float64
}

// NewScheduledSurveillanceIntervention creates a discrete controller that
// fires every updateFreq time units. detectionProb <= 0 is treated as 1
// (every infectious host found in range is detected).
func NewScheduledSurveillanceIntervention(region string, updateFreq float64, sweepBudget int, detectionProb float64) *ScheduledSurveillanceIntervention {
	if detectionProb <= 0 {
		detectionProb = 1.0
	}
	return &ScheduledSurveillanceIntervention{RegionName: region, UpdateFreq: updateFreq, SweepBudget: sweepBudget, DetectionProb: detectionProb}
}

func (s *ScheduledSurveillanceIntervention) Name() string          { return "Surveillance_" + s.RegionName }
func (s *ScheduledSurveillanceIntervention) Kind() InterventionKind { return Discrete }
func (s *ScheduledSurveillanceIntervention) NextTime() float64      { return s.nextTime }

func (s *ScheduledSurveillanceIntervention) Initialise(store *HostStore) {
	s.nextTime = s.UpdateFreq
}

func (s *ScheduledSurveillanceIntervention) RateChannel() (RateStructure, float64) {
	return nil, 0
}

func (s *ScheduledSurveillanceIntervention) Action(index int, time float64) InterventionAction {
	return InterventionAction{}
}

func (s *ScheduledSurveillanceIntervention) Update(store *HostStore, time float64) []InterventionAction {
	var candidates []int
	for _, hostID := range store.RegionHosts(s.RegionName) {
		host, err := store.Host(hostID)
		if err != nil || !host.State.infectious() {
			continue
		}
		if s.DetectionProb < 1.0 && rv.Binomial(1, s.DetectionProb) != 1.0 {
			continue
		}
		candidates = append(candidates, hostID)
	}
	sort.Ints(candidates)
	if len(candidates) > s.SweepBudget {
		candidates = candidates[:s.SweepBudget]
	}
	actions := make([]InterventionAction, len(candidates))
	for i, hostID := range candidates {
		actions[i] = InterventionAction{HostID: hostID, Kind: "Cull"}
	}
	s.nextTime += s.UpdateFreq
	return actions
}

func (s *ScheduledSurveillanceIntervention) UpdateOnEvent(store *HostStore, time float64, hostID int) {}

package spatialsim

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// Simulator runs the two-phase Gillespie loop for one iteration: Setup
// builds the population, rate channels and interventions once; Run then
// repeatedly draws the next event (or discrete intervention action,
// whichever comes first, with an exact tie resolved in the
// intervention's favor) and applies it until FinalTime is reached.
//
// Each Simulator owns a private *rand.Rand seeded independently, so
// multiple iterations can run concurrently at the driver level without
// sharing RNG state -- the same reasoning si_simulator.go applies at the
// goroutine-per-host level, generalized here to iteration-per-goroutine.
type Simulator struct {
	cfg           *Config
	model         *Model
	kernel        *Kernel
	store         *HostStore
	rates         *RateHandler
	events        *EventHandler
	interventions *InterventionHandler
	logger        DataLogger
	rng           *rand.Rand

	instance       int
	time           float64
	eventCounter   int
	maxHosts       float64
	nextRasterDump float64
	rasterEnabled  bool
	rasterDumpNum  int
}

// NewSimulator builds a Simulator from cfg for the given instance
// (iteration) number and seed. store, if non-nil, is used directly
// instead of being rebuilt from the configured input files -- the
// SaveSetup path, where the driver clones a cached initial population
// rather than re-parsing it for every iteration.
func NewSimulator(cfg *Config, instance int, seed int64, store *HostStore) (*Simulator, error) {
	model, err := NewModel(cfg.Epidemiology.Model)
	if err != nil {
		return nil, errors.Wrap(err, "parsing model")
	}
	kernel, err := BuildKernel(cfg.Kernel)
	if err != nil {
		return nil, err
	}
	if store == nil {
		store, err = BuildHostStore(cfg.Population)
		if err != nil {
			return nil, err
		}
	}

	rng := rand.New(rand.NewSource(seed))
	rates := NewRateHandler(rng)

	nHosts := len(store.Hosts())
	isRaster := cfg.Population.Mode == "raster"
	infSize := nHosts
	if isRaster {
		infSize = len(store.Cells())
	}
	infStruct, err := BuildRateStructure(cfg.RateStructure.Infection, infSize, rng)
	if err != nil {
		return nil, err
	}
	advStruct, err := BuildRateStructure(cfg.RateStructure.Advance, nHosts, rng)
	if err != nil {
		return nil, err
	}
	rates.AddChannel("Infection", infStruct, cfg.Epidemiology.InfRate)
	rates.AddChannel("Advance", advStruct, 1.0)

	maxHosts := 0.0
	if cfg.Population.Mode == "cell" || isRaster {
		maxHosts = float64(cfg.Population.MaxHosts)
	}
	advanceRates := BuildAdvanceRates(cfg.Epidemiology.AdvanceRates)
	events := NewEventHandler(store, rates, model, kernel, advanceRates, maxHosts)

	var coupling *CouplingWindow
	if isRaster {
		vsHalfWidth := int(cfg.Kernel.VirtualSporulationStart)
		coupling, err = BuildCouplingWindow(kernel, vsHalfWidth)
		if err != nil {
			return nil, errors.Wrap(err, "building raster coupling window")
		}
		events.EnableRasterMode(coupling, rng)
		if tailSum := coupling.TailSum(); tailSum > 0 {
			sporeStruct, err := BuildRateStructure(cfg.RateStructure.Infection, len(store.Cells()), rng)
			if err != nil {
				return nil, err
			}
			rates.AddChannel("Sporulation", sporeStruct, cfg.Epidemiology.InfRate*tailSum)
		}
	}

	interventions := NewInterventionHandler(rates)
	ivs, err := BuildInterventions(cfg.Interventions)
	if err != nil {
		return nil, err
	}
	for _, iv := range ivs {
		interventions.Register(iv)
	}

	sim := &Simulator{
		cfg:           cfg,
		model:         model,
		kernel:        kernel,
		store:         store,
		rates:         rates,
		events:        events,
		interventions: interventions,
		logger:        BuildDataLogger(cfg.Output, instance),
		rng:           rng,
		instance:      instance,
		maxHosts:      maxHosts,
		rasterEnabled: cfg.Output.RasterOutputFreq > 0,
	}
	sim.initialise()
	return sim, nil
}

// initialise installs the starting Advance/Infection rates for every host
// already infectious or otherwise advancing at time zero, and primes the
// interventions against the starting population. Mirrors the original
// simulator's initialise(): zero every rate, then bulk-insert the rates
// implied by the initial condition file.
func (s *Simulator) initialise() {
	for _, hostID := range s.store.Hosts() {
		host, _ := s.store.Host(hostID)
		s.events.installAdvance(hostID, host.State)
	}
	for _, hostID := range s.store.Hosts() {
		host, _ := s.store.Host(hostID)
		if host.State.infectious() {
			s.events.propagatePressure(hostID, true)
		}
	}
	s.interventions.Initialise(s.store)
	if s.rasterEnabled {
		s.nextRasterDump = s.cfg.Output.RasterOutputFreq
	} else {
		s.nextRasterDump = math.Inf(1)
	}
}

// Run drives the Gillespie loop forward until FinalTime, applying
// whichever of (next stochastic event, next discrete intervention
// action, next raster dump) comes soonest, logging every transition,
// event and intervention action through the Simulator's DataLogger.
func (s *Simulator) Run(finalTime float64, stop StopCondition) error {
	if err := s.logger.Init(); err != nil {
		return errors.Wrap(err, "initializing logger")
	}
	transitions := make(chan TransitionPackage, 256)
	events := make(chan EventPackage, 256)
	interventionLog := make(chan InterventionPackage, 64)
	done := make(chan struct{})
	go func() {
		s.logger.WriteTransitions(transitions)
		close(done)
	}()
	eventsDone := make(chan struct{})
	go func() {
		s.logger.WriteEvents(events)
		close(eventsDone)
	}()
	ivDone := make(chan struct{})
	go func() {
		s.logger.WriteInterventions(interventionLog)
		close(ivDone)
	}()

	for s.time < finalTime {
		ivTime := s.interventions.NextTime()
		nextEvt, err := s.rates.GetNextEvent()
		candidateTime := math.Inf(1)
		if err == nil {
			candidateTime = s.time + nextEvt.DeltaT
		}

		next := math.Min(candidateTime, math.Min(ivTime, s.nextRasterDump))
		if next >= finalTime {
			s.time = finalTime
			break
		}

		switch {
		case ivTime <= candidateTime && ivTime <= s.nextRasterDump:
			s.time = ivTime
			s.fireInterventions(transitions, interventionLog)
		case s.nextRasterDump <= candidateTime:
			s.time = s.nextRasterDump
			s.dumpRaster()
			s.nextRasterDump += s.cfg.Output.RasterOutputFreq
		default:
			s.time = candidateTime
			s.applyStochasticEvent(nextEvt, transitions, events, interventionLog)
		}

		if stop != nil && stop.Check(s.store) {
			break
		}
	}

	close(transitions)
	close(events)
	close(interventionLog)
	<-done
	<-eventsDone
	<-ivDone
	log.Printf("instance %03d finished at time %f (%d events)\n", s.instance, s.time, s.eventCounter)
	return nil
}

// Store exposes the Simulator's live HostStore.
func (s *Simulator) Store() *HostStore {
	return s.store
}

// Time returns the simulation clock's current value.
func (s *Simulator) Time() float64 {
	return s.time
}

func (s *Simulator) applyStochasticEvent(ev NextEvent, transitions chan<- TransitionPackage, events chan<- EventPackage, interventionLog chan<- InterventionPackage) {
	s.eventCounter++
	events <- EventPackage{InstanceID: s.instance, EventID: s.eventCounter, Time: s.time, Channel: ev.Channel, HostID: ev.Index}

	var hostID int
	var from, to State
	var err error
	var actionKind string
	if isInterventionChannel(ev.Channel) {
		action, ok := s.interventions.Action(ev.Channel, ev.Index, s.time)
		if !ok {
			panic(errors.Errorf(UnknownRateChannelError, ev.Channel))
		}
		actionKind = action.Kind
		from, to, hostID, err = s.events.ApplyEvent(NextEvent{Channel: action.Kind, Index: action.HostID}, s.time)
	} else {
		from, to, hostID, err = s.events.ApplyEvent(ev, s.time)
	}
	if err != nil {
		panic(err)
	}
	if to == NoState {
		// A rejected virtual-sporulation draw: no host transitioned, so
		// there is nothing to log and no intervention to notify.
		return
	}
	host, _ := s.store.Host(hostID)
	transitions <- TransitionPackage{InstanceID: s.instance, Time: s.time, HostID: hostID, CellID: host.CellID, From: from, To: to}
	if actionKind != "" {
		interventionLog <- InterventionPackage{InstanceID: s.instance, ActionID: NewActionID(), Time: s.time, Name: actionKind, Kind: "continuous", HostID: hostID}
	}

	if s.cfg.Run.UpdateOnAllEvents {
		s.interventions.UpdateOnEvent(s.store, s.time, hostID)
	}
}

func (s *Simulator) fireInterventions(transitions chan<- TransitionPackage, interventionLog chan<- InterventionPackage) {
	actions := s.interventions.Fire(s.store, s.time)
	for _, action := range actions {
		from, to, hostID, err := s.events.ApplyEvent(NextEvent{Channel: action.Kind, Index: action.HostID}, s.time)
		if err != nil {
			continue
		}
		host, _ := s.store.Host(hostID)
		transitions <- TransitionPackage{InstanceID: s.instance, Time: s.time, HostID: hostID, CellID: host.CellID, From: from, To: to}
		interventionLog <- InterventionPackage{InstanceID: s.instance, ActionID: NewActionID(), Time: s.time, Name: action.Kind, Kind: "discrete", HostID: hostID}
		if s.cfg.Run.UpdateOnAllEvents {
			s.interventions.UpdateOnEvent(s.store, s.time, hostID)
		}
	}
}

// dumpRaster writes a periodic ASCII raster snapshot of infectious-host
// counts per cell. A RasterOutputFreq of zero (checked by the caller via
// rasterEnabled) suppresses this entirely rather than dumping once at
// FinalTime, per the driver's supplemented RasterOutputFreq==0 behavior.
// The grid is built from the distinct X/Y coordinates of the HostStore's
// cells rather than a fixed raster file, so this works in every population
// mode (host and cell mode take their cells from the host file's cell IDs;
// raster mode's cells sit on the host raster's grid). Row 0 is the
// top (largest Y) row, as WriteRaster expects.
func (s *Simulator) dumpRaster() {
	if !s.rasterEnabled {
		return
	}
	cellIDs := s.store.Cells()
	if len(cellIDs) == 0 {
		return
	}
	cells := make([]*Cell, 0, len(cellIDs))
	for _, id := range cellIDs {
		c, err := s.store.Cell(id)
		if err != nil {
			continue
		}
		cells = append(cells, c)
	}

	xs := distinctSorted(cells, func(c *Cell) float64 { return c.X })
	ys := distinctSorted(cells, func(c *Cell) float64 { return c.Y })
	colOf := indexLookup(xs)
	rowOf := indexLookup(ys)

	cellSize := 1.0
	if len(xs) > 1 {
		cellSize = xs[1] - xs[0]
	}

	const noData = -9999.0
	data := make([][]float64, len(ys))
	for i := range data {
		row := make([]float64, len(xs))
		for j := range row {
			row[j] = noData
		}
		data[i] = row
	}
	for _, cell := range cells {
		row := len(ys) - 1 - rowOf[cell.Y]
		col := colOf[cell.X]
		count := 0
		for state, n := range cell.StateCounts {
			if state.infectious() {
				count += n
			}
		}
		data[row][col] = float64(count)
	}

	raster := &Raster{
		NCols:     len(xs),
		NRows:     len(ys),
		XLLCorner: xs[0],
		YLLCorner: ys[0],
		CellSize:  cellSize,
		NoData:    noData,
		Data:      data,
	}
	path := fmt.Sprintf("%s.%03d.t%010.3f.asc", s.cfg.Output.BasePath, s.instance, s.time)
	if err := WriteRaster(path, raster); err != nil {
		log.Printf("instance %03d: writing raster snapshot at t=%f: %v", s.instance, s.time, err)
	}
	s.rasterDumpNum++
}

func distinctSorted(cells []*Cell, key func(*Cell) float64) []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for _, c := range cells {
		v := key(c)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

func indexLookup(values []float64) map[float64]int {
	idx := make(map[float64]int, len(values))
	for i, v := range values {
		idx[v] = i
	}
	return idx
}

func isInterventionChannel(channel string) bool {
	const prefix = "Intervention_"
	return len(channel) > len(prefix) && channel[:len(prefix)] == prefix
}

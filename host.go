package spatialsim

import "github.com/pkg/errors"

// Transition records a single compartment change a host or cell made, in
// the order it happened, mirroring the trans_times log kept by the
// original host record.
type Transition struct {
	Time  float64
	State State
}

// Host is a single, individually tracked member of the population. Its
// position and cell/region assignment are immutable after construction;
// its current state changes only through HostStore.SetState so that the
// owning cell's state tally stays consistent.
type Host struct {
	ID             int
	X, Y           float64
	CellID         int
	Region         string
	State          State
	InitState      State
	Susceptibility float64
	Infectiousness float64
	transitions    []Transition
}

// Transitions returns the ordered log of state changes this host has
// undergone, including its initial state at time 0.
func (h *Host) Transitions() []Transition {
	out := make([]Transition, len(h.transitions))
	copy(out, h.transitions)
	return out
}

// Cell aggregates the hosts that share one raster grid square. A Cell's
// own "state" is a tally over its member hosts rather than a singleton
// value; the invariant sum(StateCounts) == len(HostIDs) must hold after
// every mutation (spec.md §3, Ownership rules).
type Cell struct {
	ID             int
	X, Y           float64
	Row, Col       int  // raster population mode only; zero in host mode
	OnGrid         bool // true if Row/Col were assigned via AddCellAt
	Region         string
	HostIDs        []int
	StateCounts    map[State]int
	Susceptibility float64
	Infectiousness float64
}

func newCell(id int, x, y float64) *Cell {
	return &Cell{
		ID:             id,
		X:              x,
		Y:              y,
		Susceptibility: 1,
		Infectiousness: 1,
		StateCounts:    make(map[State]int),
	}
}

func (c *Cell) addHost(h *Host) {
	c.HostIDs = append(c.HostIDs, h.ID)
	c.StateCounts[h.State]++
}

func (c *Cell) hostCount() int {
	n := 0
	for _, v := range c.StateCounts {
		n += v
	}
	return n
}

// HostStore owns every Host and Cell in a run and is the single place
// state transitions are applied, so the Cell.StateCounts tally invariant
// can never be violated by a caller mutating a Host directly.
type HostStore struct {
	hosts       map[int]*Host
	cells       map[int]*Cell
	hostOrder   []int
	cellOrder   []int
	regionIndex map[string][]int
	gridIndex   map[gridKey]int
}

// gridKey indexes HostStore.gridIndex by raster (row, col) position.
type gridKey struct{ Row, Col int }

// NewHostStore creates an empty store. Hosts and cells are registered with
// AddHost/AddCell before a run begins; no further structural mutation
// happens once the Simulator starts (only State fields change, via
// SetState).
func NewHostStore() *HostStore {
	return &HostStore{
		hosts:       make(map[int]*Host),
		cells:       make(map[int]*Cell),
		regionIndex: make(map[string][]int),
		gridIndex:   make(map[gridKey]int),
	}
}

// AddCell registers a new cell. Returns an error if the ID is already in
// use.
func (s *HostStore) AddCell(id int, x, y float64) (*Cell, error) {
	if _, ok := s.cells[id]; ok {
		return nil, errors.Errorf(IntKeyExists, id)
	}
	c := newCell(id, x, y)
	s.cells[id] = c
	s.cellOrder = append(s.cellOrder, id)
	return c, nil
}

// AddCellAt registers a new raster-grid cell, recording its (row, col)
// position alongside the AddCell fields so the EventHandler's coupling-
// window and virtual-sporulation offset arithmetic can address cells by
// grid position rather than just by opaque ID.
func (s *HostStore) AddCellAt(id, row, col int, x, y float64) (*Cell, error) {
	c, err := s.AddCell(id, x, y)
	if err != nil {
		return nil, err
	}
	c.Row, c.Col = row, col
	c.OnGrid = true
	s.gridIndex[gridKey{row, col}] = id
	return c, nil
}

// CellAtRowCol looks up a cell by raster grid position, used to resolve a
// relative kernel offset (Δrow, Δcol) to an absolute target cell. Returns
// false if no cell was registered at that position (outside the host
// raster's footprint, or a NODATA square).
func (s *HostStore) CellAtRowCol(row, col int) (*Cell, bool) {
	id, ok := s.gridIndex[gridKey{row, col}]
	if !ok {
		return nil, false
	}
	return s.cells[id], true
}

// FirstSusceptible returns the lowest-ID host in the cell whose state is
// Susceptible, and true if one exists. Cell.HostIDs is in ascending-ID
// order for every cell built by BuildRasterHostStore, so this is the
// "lexicographic first" susceptible host spec.md §4.4 calls for when a
// raster Infection event fires against a cell rather than a single host.
func (s *HostStore) FirstSusceptible(cellID int) (int, bool) {
	cell, ok := s.cells[cellID]
	if !ok {
		return 0, false
	}
	for _, id := range cell.HostIDs {
		if h := s.hosts[id]; h.State == Susceptible {
			return id, true
		}
	}
	return 0, false
}

// AddHost registers a new host, attaching it to its owning cell's tally
// and region index. Returns an error if the host ID is already in use or
// the cell does not exist.
func (s *HostStore) AddHost(h *Host) error {
	if _, ok := s.hosts[h.ID]; ok {
		return errors.Errorf(IntKeyExists, h.ID)
	}
	cell, ok := s.cells[h.CellID]
	if !ok {
		return errors.Errorf(IntKeyNotFoundError, h.CellID)
	}
	h.transitions = append(h.transitions, Transition{Time: 0, State: h.State})
	s.hosts[h.ID] = h
	s.hostOrder = append(s.hostOrder, h.ID)
	cell.addHost(h)
	s.regionIndex[h.Region] = append(s.regionIndex[h.Region], h.ID)
	return nil
}

// Host returns the host with the given ID.
func (s *HostStore) Host(id int) (*Host, error) {
	h, ok := s.hosts[id]
	if !ok {
		return nil, errors.Errorf(IntKeyNotFoundError, id)
	}
	return h, nil
}

// Cell returns the cell with the given ID.
func (s *HostStore) Cell(id int) (*Cell, error) {
	c, ok := s.cells[id]
	if !ok {
		return nil, errors.Errorf(IntKeyNotFoundError, id)
	}
	return c, nil
}

// Hosts returns every host ID in registration order.
func (s *HostStore) Hosts() []int {
	out := make([]int, len(s.hostOrder))
	copy(out, s.hostOrder)
	return out
}

// Cells returns every cell ID in registration order.
func (s *HostStore) Cells() []int {
	out := make([]int, len(s.cellOrder))
	copy(out, s.cellOrder)
	return out
}

// RegionHosts returns the host IDs belonging to the named region, used by
// region-scoped interventions (e.g. a continuous cull controller).
func (s *HostStore) RegionHosts(region string) []int {
	return s.regionIndex[region]
}

// SetState moves a host to a new compartment at the given simulation time,
// updates its owning cell's tally, and appends to its transition log. It
// returns the host's previous state so callers (the EventHandler) can
// decide what rate-propagation follows.
func (s *HostStore) SetState(hostID int, time float64, newState State) (State, error) {
	h, ok := s.hosts[hostID]
	if !ok {
		return NoState, errors.Errorf(IntKeyNotFoundError, hostID)
	}
	old := h.State
	cell := s.cells[h.CellID]
	cell.StateCounts[old]--
	if cell.StateCounts[old] == 0 {
		delete(cell.StateCounts, old)
	}
	cell.StateCounts[newState]++
	h.State = newState
	h.transitions = append(h.transitions, Transition{Time: time, State: newState})
	return old, nil
}

// Clone returns a deep copy of the store, used by Simulator when
// SaveSetup is enabled so each iteration starts from an independent copy
// of the initial population rather than re-parsing input files.
func (s *HostStore) Clone() *HostStore {
	clone := NewHostStore()
	for _, id := range s.cellOrder {
		c := s.cells[id]
		nc := newCell(c.ID, c.X, c.Y)
		nc.Region = c.Region
		nc.Row, nc.Col, nc.OnGrid = c.Row, c.Col, c.OnGrid
		nc.Susceptibility = c.Susceptibility
		nc.Infectiousness = c.Infectiousness
		clone.cells[id] = nc
		clone.cellOrder = append(clone.cellOrder, id)
		if c.OnGrid {
			clone.gridIndex[gridKey{c.Row, c.Col}] = id
		}
	}
	for _, id := range s.hostOrder {
		h := s.hosts[id]
		nh := &Host{
			ID:             h.ID,
			X:              h.X,
			Y:              h.Y,
			CellID:         h.CellID,
			Region:         h.Region,
			State:          h.InitState,
			InitState:      h.InitState,
			Susceptibility: h.Susceptibility,
			Infectiousness: h.Infectiousness,
		}
		clone.AddHost(nh)
	}
	return clone
}

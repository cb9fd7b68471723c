package spatialsim

import (
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// BuildRasterHostStore assembles a grid-cell HostStore from an ESRI ASCII
// host-count raster plus one per-state initial-condition raster sharing
// its header, per spec.md §6's raster input family. Every grid square
// with a positive host count becomes a Cell at that (row, col); the
// square's host count is split across states according to the matching
// cell in each state's initial-condition raster, and that many synthetic
// Hosts are created in ascending-ID order so HostStore.FirstSusceptible
// can pick the spec's "lexicographic first" susceptible host within a
// cell. Optional susceptibility/infectiousness rasters scale the cell's
// multipliers; a missing raster leaves them at the default of 1.
func BuildRasterHostStore(cfg PopulationConfig) (*HostStore, error) {
	hostRaster, err := ReadRaster(cfg.HostRaster)
	if err != nil {
		return nil, errors.Wrap(err, "loading host raster")
	}

	initRasters := make(map[State]*Raster, len(cfg.InitCondRasters))
	for letter, path := range cfg.InitCondRasters {
		if len(letter) != 1 {
			return nil, errors.Errorf(UnrecognizedKeywordError, letter, "population.init_cond_rasters")
		}
		r, err := ReadRaster(path)
		if err != nil {
			return nil, errors.Wrapf(err, "loading initial-condition raster for state %q", letter)
		}
		if r.NRows != hostRaster.NRows || r.NCols != hostRaster.NCols {
			return nil, errors.Errorf(RasterHeaderMismatchError, path, cfg.HostRaster)
		}
		initRasters[State(letter[0])] = r
	}

	var susRaster, infRaster *Raster
	if cfg.SusceptibilityRaster != "" {
		susRaster, err = ReadRaster(cfg.SusceptibilityRaster)
		if err != nil {
			return nil, errors.Wrap(err, "loading susceptibility raster")
		}
	}
	if cfg.InfectiousnessRaster != "" {
		infRaster, err = ReadRaster(cfg.InfectiousnessRaster)
		if err != nil {
			return nil, errors.Wrap(err, "loading infectiousness raster")
		}
	}
	var regionRaster *Raster
	if cfg.RegionRaster != "" {
		regionRaster, err = ReadRaster(cfg.RegionRaster)
		if err != nil {
			return nil, errors.Wrap(err, "loading region raster")
		}
	}

	// Deterministic state iteration order for splitting a cell's host
	// count across compartments, independent of Go's map order.
	letters := make([]State, 0, len(initRasters))
	for s := range initRasters {
		letters = append(letters, s)
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })

	store := NewHostStore()
	nextHostID := 0
	for row := 0; row < hostRaster.NRows; row++ {
		for col := 0; col < hostRaster.NCols; col++ {
			count := hostRaster.At(row, col)
			if count == hostRaster.NoData || count <= 0 {
				continue
			}
			n := int(count)
			cellID := row*hostRaster.NCols + col
			x := hostRaster.XLLCorner + float64(col)*hostRaster.CellSize
			y := hostRaster.YLLCorner + float64(hostRaster.NRows-1-row)*hostRaster.CellSize
			cell, err := store.AddCellAt(cellID, row, col, x, y)
			if err != nil {
				return nil, errors.Wrapf(err, "registering raster cell (%d,%d)", row, col)
			}
			if susRaster != nil {
				if v := susRaster.At(row, col); v != susRaster.NoData {
					cell.Susceptibility = v
				}
			}
			if infRaster != nil {
				if v := infRaster.At(row, col); v != infRaster.NoData {
					cell.Infectiousness = v
				}
			}
			region := ""
			if regionRaster != nil {
				if v := regionRaster.At(row, col); v != regionRaster.NoData {
					region = formatRegionID(v)
				}
			}

			assigned := 0
			for _, letter := range letters {
				r := initRasters[letter]
				sc := int(r.At(row, col))
				if sc <= 0 {
					continue
				}
				for i := 0; i < sc; i++ {
					if err := addRasterHost(store, &nextHostID, cellID, x, y, region, letter); err != nil {
						return nil, err
					}
				}
				assigned += sc
			}
			if assigned > n {
				return nil, errors.Errorf(CellHostCountMismatchError, row, col, assigned, n)
			}
			// Any hosts the initial-condition rasters didn't account for
			// (or all of them, if no init-cond rasters were configured)
			// start Susceptible.
			for i := assigned; i < n; i++ {
				if err := addRasterHost(store, &nextHostID, cellID, x, y, region, Susceptible); err != nil {
					return nil, err
				}
			}
		}
	}
	return store, nil
}

func addRasterHost(store *HostStore, nextID *int, cellID int, x, y float64, region string, state State) error {
	h := &Host{
		ID:             *nextID,
		X:              x,
		Y:              y,
		CellID:         cellID,
		Region:         region,
		State:          state,
		InitState:      state,
		Susceptibility: 1,
		Infectiousness: 1,
	}
	*nextID++
	return store.AddHost(h)
}

func formatRegionID(v float64) string {
	return strconv.Itoa(int(v))
}

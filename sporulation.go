package spatialsim

import "github.com/pkg/errors"

// Offset is a relative (row, col) displacement between two raster cells,
// paired with the dispersal kernel's weight at that displacement.
type Offset struct {
	DRow, DCol int
	Weight     float64
}

// CouplingWindow is the set of relative cell offsets a raster-mode
// EventHandler propagates infection pressure across directly (spec.md's
// "coupling window"), plus -- when virtual sporulation is enabled -- a
// RateTree over the kernel's long-range tail used to sample a single
// jump target per sporulation event instead of summing pressure across
// every cell pair (spec.md §4.6 step 2, the "virtual sporulation"
// optimisation).
type CouplingWindow struct {
	Coupling []Offset

	// VSKernel and VSOffsets are nil/empty unless virtual sporulation is
	// enabled. VSKernel.SelectEvent(u) returns an index into VSOffsets;
	// VSKernel.Total() is the tail sum spec.md calls Σ(tail), which
	// becomes the Sporulation channel's rate_factor once scaled by
	// InfRate.
	VSKernel  *RateTree
	VSOffsets []Offset
}

// TailSum returns Σ(tail), the total kernel weight captured by the
// long-range jump tree, or 0 if virtual sporulation is disabled.
func (w *CouplingWindow) TailSum() float64 {
	if w.VSKernel == nil {
		return 0
	}
	return w.VSKernel.Total()
}

// BuildCouplingWindow partitions a raster kernel's footprint into a
// direct-coupling region and (if vsHalfWidth > 0) a long-range tail
// sampled via virtual sporulation. vsHalfWidth is
// Kernel.VirtualSporulationStart from the configuration: 0 (or
// negative) disables virtual sporulation and the whole kernel footprint
// becomes the coupling window, as spec.md §4.6 step 2 describes for
// "non-VS raster mode"; a positive value makes the coupling window the
// (2·vsHalfWidth−1)² box centred on zero offset, and everything outside
// it is flattened into VSKernel.
func BuildCouplingWindow(k *Kernel, vsHalfWidth int) (*CouplingWindow, error) {
	if k.Mode != KernelRaster || k.raster == nil {
		return nil, errors.New("virtual sporulation and coupling windows require a raster kernel")
	}
	raster := k.raster
	centerRow := raster.NRows / 2
	centerCol := raster.NCols / 2

	w := &CouplingWindow{}
	var tailOffsets []Offset
	var tailWeights []float64

	for row := 0; row < raster.NRows; row++ {
		for col := 0; col < raster.NCols; col++ {
			v := raster.At(row, col)
			if v == raster.NoData || v <= 0 {
				continue
			}
			dRow := row - centerRow
			dCol := col - centerCol
			inBox := vsHalfWidth <= 0 || (absInt(dRow) < vsHalfWidth && absInt(dCol) < vsHalfWidth)
			if inBox {
				w.Coupling = append(w.Coupling, Offset{DRow: dRow, DCol: dCol, Weight: v})
			} else {
				tailOffsets = append(tailOffsets, Offset{DRow: dRow, DCol: dCol, Weight: v})
				tailWeights = append(tailWeights, v)
			}
		}
	}

	if vsHalfWidth > 0 && len(tailOffsets) > 0 {
		tree := NewRateTree(len(tailOffsets))
		for i, wt := range tailWeights {
			tree.Set(i, wt)
		}
		w.VSKernel = tree
		w.VSOffsets = tailOffsets
	}
	return w, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

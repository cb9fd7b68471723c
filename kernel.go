package spatialsim

import "math"

// KernelMode selects the shape of the spatial dispersal kernel.
type KernelMode int

const (
	// KernelExponential weights transmission pressure by exp(-Scale*dist),
	// zero at dist == 0.
	KernelExponential KernelMode = iota
	// KernelNonspatial applies a single constant rate regardless of
	// distance, turning off the spatial structure entirely.
	KernelNonspatial
	// KernelRaster looks up the weight from a pre-computed raster,
	// indexed by the relative row/col offset between two cells.
	KernelRaster
)

// Kernel computes the transmission pressure contributed by a source host
// or cell to a target at a given relative offset. An exponential or
// nonspatial kernel is evaluated analytically; a raster kernel is a
// lookup table loaded from an ESRI ASCII grid centered on the source.
type Kernel struct {
	Mode KernelMode
	// Scale is alpha, the exponential kernel's decay rate: k(d) =
	// exp(-Scale*d) for d > 0, zero at d == 0. Larger Scale means a
	// steeper, shorter-range kernel.
	Scale float64
	// NonspatialRate is the constant rate used in KernelNonspatial mode.
	NonspatialRate float64
	raster         *Raster
	cache          [][]float64
}

// NewExponentialKernel creates a kernel that weights pressure by
// exp(-scale*dist), zero at dist == 0.
func NewExponentialKernel(scale float64) *Kernel {
	return &Kernel{Mode: KernelExponential, Scale: scale}
}

// NewNonspatialKernel creates a kernel with a single constant rate,
// independent of distance.
func NewNonspatialKernel(rate float64) *Kernel {
	return &Kernel{Mode: KernelNonspatial, NonspatialRate: rate}
}

// NewRasterKernel creates a kernel backed by a pre-computed raster whose
// center cell (NRows/2, NCols/2) corresponds to zero relative offset.
func NewRasterKernel(r *Raster) *Kernel {
	return &Kernel{Mode: KernelRaster, raster: r}
}

// Value returns the transmission weight contributed across the relative
// offset (dx, dy) between a source and a target.
func (k *Kernel) Value(dx, dy float64) float64 {
	switch k.Mode {
	case KernelNonspatial:
		return k.NonspatialRate
	case KernelRaster:
		return k.rasterValue(dx, dy)
	default:
		dist := math.Hypot(dx, dy)
		if dist <= 0 {
			return 0
		}
		return math.Exp(-k.Scale * dist)
	}
}

func (k *Kernel) rasterValue(dx, dy float64) float64 {
	centerRow := k.raster.NRows / 2
	centerCol := k.raster.NCols / 2
	row := centerRow + int(math.Round(dy/k.raster.CellSize))
	col := centerCol + int(math.Round(dx/k.raster.CellSize))
	v := k.raster.At(row, col)
	if v == k.raster.NoData {
		return 0
	}
	return v
}

// BuildCache pre-computes a dense N x N matrix of kernel values between
// every pair of the given positions, trading memory for avoiding repeated
// distance computation on every event (spec.md's "optional dense N×N
// cached kernel matrix"). Useful for small-to-medium host counts; large
// populations should leave the cache unbuilt and call Value directly.
func (k *Kernel) BuildCache(positions []struct{ X, Y float64 }) {
	n := len(positions)
	cache := make([][]float64, n)
	for i := range cache {
		cache[i] = make([]float64, n)
		for j := range cache[i] {
			if i == j {
				continue
			}
			cache[i][j] = k.Value(positions[j].X-positions[i].X, positions[j].Y-positions[i].Y)
		}
	}
	k.cache = cache
}

// CachedValue returns the pre-computed kernel value between positions i
// and j. BuildCache must have been called first; callers that never
// build a cache should use Value directly instead.
func (k *Kernel) CachedValue(i, j int) float64 {
	if k.cache == nil {
		return 0
	}
	return k.cache[i][j]
}

// HasCache reports whether BuildCache has populated a dense matrix.
func (k *Kernel) HasCache() bool {
	return k.cache != nil
}

package spatialsim

import "math"

// RateInterval is a two-level RateStructure grouping n rates into
// groups of ceil(sqrt(n)) entries each (ceil(n/groupSize) groups), following
// original_source/code/ratestructures/rateinterval.py. Insert updates a
// single rate and its owning group's raw sum in O(1) and marks the group
// dirty; it never re-derives a cumulative sum eagerly. Total and
// SelectEvent refresh the across-group cumulative-sum cache only when a
// dirty group is pending, and SelectEvent additionally rebuilds the
// cumulative sum within whichever single group the search lands in. Both
// caches are binary-searched, giving O(log n) select instead of the
// O(sqrt n) a plain linear bucket scan would give.
type RateInterval struct {
	subRates   []float64 // per-index rate, padded to groupSize*numGroups
	subSums    []float64 // within-group cumulative sum, valid only for searchGroup
	groupRates []float64 // per-group raw sum, always exact (updated on every Insert)
	groupSums  []float64 // across-group cumulative sum, valid only while dirtyFrom == numGroups
	groupSize  int
	numGroups  int
	size       int // n passed to NewRateInterval, <= len(subRates)
	dirtyFrom  int // lowest group whose cumulative sum is stale; numGroups means none
	total      float64
}

// NewRateInterval creates a RateInterval sized for n indices.
func NewRateInterval(n int) *RateInterval {
	groupSize := int(math.Ceil(math.Sqrt(float64(n))))
	if groupSize < 1 {
		groupSize = 1
	}
	numGroups := (n + groupSize - 1) / groupSize
	if numGroups < 1 {
		numGroups = 1
	}
	padded := groupSize * numGroups
	return &RateInterval{
		subRates:   make([]float64, padded),
		subSums:    make([]float64, padded),
		groupRates: make([]float64, numGroups),
		groupSums:  make([]float64, numGroups),
		groupSize:  groupSize,
		numGroups:  numGroups,
		size:       n,
		dirtyFrom:  numGroups,
	}
}

func (r *RateInterval) Size() int { return r.size }

func (r *RateInterval) group(index int) int { return index / r.groupSize }

// Insert applies delta to a single rate and its group's raw sum in O(1),
// lowering dirtyFrom if this group is earlier than the current dirty
// watermark. It never touches groupSums or subSums directly -- those
// cumulative caches are only rebuilt lazily, by refreshGroups and
// searchSub respectively.
func (r *RateInterval) Insert(index int, delta float64) {
	r.subRates[index] = clampNonNegative(r.subRates[index] + delta)
	g := r.group(index)
	r.groupRates[g] = clampNonNegative(r.groupRates[g] + delta)
	if g < r.dirtyFrom {
		r.dirtyFrom = g
	}
	r.total = clampNonNegative(r.total + delta)
}

func (r *RateInterval) Set(index int, rate float64) {
	delta := rate - r.subRates[index]
	r.Insert(index, delta)
}

func (r *RateInterval) Rate(index int) float64 {
	return r.subRates[index]
}

// Total returns the combined rate, refreshing the across-group cumulative
// sum first if any group has changed since the last refresh.
func (r *RateInterval) Total() float64 {
	r.refreshGroups()
	return r.total
}

// refreshGroups rebuilds groupSums[dirtyFrom:] from groupRates, the
// across-group analogue of rateinterval.py's _sum_super_rates, then marks
// the structure clean.
func (r *RateInterval) refreshGroups() {
	if r.dirtyFrom >= r.numGroups {
		return
	}
	var running float64
	if r.dirtyFrom > 0 {
		running = r.groupSums[r.dirtyFrom-1]
	}
	for g := r.dirtyFrom; g < r.numGroups; g++ {
		running += r.groupRates[g]
		r.groupSums[g] = running
	}
	r.dirtyFrom = r.numGroups
}

// SelectEvent finds the index whose cumulative rate interval contains u.
// It refreshes the group-level cache if dirty, binary-searches it for the
// containing group (_interval_search_super in rateinterval.py), rebuilds
// that one group's within-group cumulative sum, and binary-searches it in
// turn (_interval_search_sub) -- O(log n) total, since no other group's
// within-group cache is ever touched.
func (r *RateInterval) SelectEvent(u float64) int {
	r.refreshGroups()
	g := r.searchGroup(u)
	local := u
	if g > 0 {
		local -= r.groupSums[g-1]
	}
	return r.searchSub(local, g)
}

func (r *RateInterval) searchGroup(u float64) int {
	low, high := 0, r.numGroups-1
	for high-low > 1 {
		mid := low + (high-low)/2
		if r.groupSums[mid] > u {
			high = mid
		} else {
			low = mid
		}
	}
	if r.groupSums[low] > u {
		return low
	}
	return high
}

func (r *RateInterval) searchSub(u float64, g int) int {
	first := g * r.groupSize
	last := first + r.groupSize - 1

	running := r.subRates[first]
	r.subSums[first] = running
	for i := first + 1; i <= last; i++ {
		running += r.subRates[i]
		r.subSums[i] = running
	}

	low, high := first, last
	for high-low > 1 {
		mid := low + (high-low)/2
		if r.subSums[mid] > u {
			high = mid
		} else {
			low = mid
		}
	}
	if r.subSums[low] > u {
		return low
	}
	return high
}

// FullResum re-derives every group's raw sum directly from subRates
// rather than trusting the incrementally maintained groupRates, guarding
// against floating-point drift accumulated over many Inserts. The
// across-group cumulative cache is left dirty and rebuilt lazily on the
// next Total/SelectEvent call.
func (r *RateInterval) FullResum() {
	total := 0.0
	for g := 0; g < r.numGroups; g++ {
		first := g * r.groupSize
		last := first + r.groupSize
		var sum float64
		for i := first; i < last; i++ {
			sum += r.subRates[i]
		}
		r.groupRates[g] = sum
		total += sum
	}
	r.total = total
	r.dirtyFrom = 0
}

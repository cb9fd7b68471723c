package spatialsim

import "testing"

func smallKernelRaster() *Raster {
	// 5x5 raster, center at (2,2), decaying outward; values chosen so the
	// tests can distinguish "inside a 3x3 box" from "outside it".
	data := make([][]float64, 5)
	for row := range data {
		data[row] = make([]float64, 5)
		for col := range data[row] {
			dRow, dCol := row-2, col-2
			d2 := dRow*dRow + dCol*dCol
			data[row][col] = 1.0 / float64(1+d2)
		}
	}
	return &Raster{NCols: 5, NRows: 5, CellSize: 1, NoData: -9999, Data: data}
}

func TestBuildCouplingWindow_NoVS_CoversWholeFootprint(t *testing.T) {
	k := NewRasterKernel(smallKernelRaster())
	w, err := BuildCouplingWindow(k, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w.VSKernel != nil {
		t.Errorf(UnequalStringParameterError, "VSKernel presence with VS disabled", "nil", "non-nil")
	}
	if len(w.Coupling) != 25 {
		t.Errorf(UnequalIntParameterError, "coupling offset count with VS disabled", 25, len(w.Coupling))
	}
}

func TestBuildCouplingWindow_VS_SplitsBoxAndTail(t *testing.T) {
	k := NewRasterKernel(smallKernelRaster())
	// half-width 2 -> box is (2*2-1)^2 = 3x3 around zero offset.
	w, err := BuildCouplingWindow(k, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Coupling) != 9 {
		t.Errorf(UnequalIntParameterError, "coupling offsets inside the VS box", 9, len(w.Coupling))
	}
	for _, off := range w.Coupling {
		if absInt(off.DRow) >= 2 || absInt(off.DCol) >= 2 {
			t.Errorf(UnequalStringParameterError, "coupling offset inside box", "true", "false")
		}
	}
	if w.VSKernel == nil {
		t.Fatal("expected a VSKernel tree when VS is enabled and a tail exists")
	}
	if len(w.VSOffsets) != 25-9 {
		t.Errorf(UnequalIntParameterError, "tail offset count", 25-9, len(w.VSOffsets))
	}
	for _, off := range w.VSOffsets {
		if absInt(off.DRow) < 2 && absInt(off.DCol) < 2 {
			t.Errorf(UnequalStringParameterError, "tail offset outside box", "true", "false")
		}
	}
	if w.TailSum() <= 0 {
		t.Errorf(UnequalStringParameterError, "positive tail sum", "true", "false")
	}
}

func TestBuildCouplingWindow_RejectsNonRasterKernel(t *testing.T) {
	k := NewExponentialKernel(1.0)
	if _, err := BuildCouplingWindow(k, 1); err == nil {
		t.Errorf(ExpectedErrorWhileError, "building a coupling window from a non-raster kernel", "nil")
	}
}

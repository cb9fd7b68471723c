package spatialsim

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// HostRecord is one parsed row of a host position file: an identity, a
// position, the raster cell it belongs to, and its optional named
// region.
type HostRecord struct {
	ID     int
	X, Y   float64
	CellID int
	Region string
}

// ReadHostFile parses a host position file. Format: the first
// non-comment line holds the host count; each following line holds
// "id x y cellID" (whitespace-separated). Lines starting with # are
// comments and are skipped, following the scanner idiom the rest of this
// package's file readers share.
func ReadHostFile(path string) ([]HostRecord, error) {
	lines, err := readDataLines(path)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, errors.Errorf(FileParsingError, 0, "empty host file")
	}
	count, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return nil, errors.Wrapf(err, FileParsingError, 1, "host count")
	}
	records := make([]HostRecord, 0, count)
	for i := 1; i <= count && i < len(lines); i++ {
		fields := strings.Fields(lines[i])
		if len(fields) < 4 {
			return nil, errors.Errorf(FileParsingError, i+1, "expected id x y cellID")
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, FileParsingError, i+1, "host id")
		}
		x, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, FileParsingError, i+1, "x position")
		}
		y, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, FileParsingError, i+1, "y position")
		}
		cellID, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, errors.Wrapf(err, FileParsingError, i+1, "cell id")
		}
		records = append(records, HostRecord{ID: id, X: x, Y: y, CellID: cellID})
	}
	return records, nil
}

// ReadInitCond parses an initial-condition file mapping host ID to its
// starting compartment. Format: first line is the count, each following
// line is "id state" where state is a single compartment letter.
func ReadInitCond(path string) (map[int]State, error) {
	lines, err := readDataLines(path)
	if err != nil {
		return nil, err
	}
	out := make(map[int]State)
	if len(lines) == 0 {
		return out, nil
	}
	count, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return nil, errors.Wrapf(err, FileParsingError, 1, "init cond count")
	}
	for i := 1; i <= count && i < len(lines); i++ {
		fields := strings.Fields(lines[i])
		if len(fields) < 2 {
			return nil, errors.Errorf(FileParsingError, i+1, "expected id state")
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, FileParsingError, i+1, "host id")
		}
		if len(fields[1]) != 1 {
			return nil, errors.Errorf(FileParsingError, i+1, "state must be a single letter")
		}
		out[id] = State(fields[1][0])
	}
	return out, nil
}

// ReadRegions parses a region assignment file mapping host ID to a named
// region, used by region-scoped interventions. Format: first line is the
// count, each following line is "id region".
func ReadRegions(path string) (map[int]string, error) {
	lines, err := readDataLines(path)
	if err != nil {
		return nil, err
	}
	out := make(map[int]string)
	if len(lines) == 0 {
		return out, nil
	}
	count, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return nil, errors.Wrapf(err, FileParsingError, 1, "region count")
	}
	for i := 1; i <= count && i < len(lines); i++ {
		fields := strings.Fields(lines[i])
		if len(fields) < 2 {
			return nil, errors.Errorf(FileParsingError, i+1, "expected id region")
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, FileParsingError, i+1, "host id")
		}
		out[id] = fields[1]
	}
	return out, nil
}

// readDataLines scans a file into non-comment, non-blank lines.
func readDataLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// Raster is an ESRI-style ASCII grid: a header of six keyword/value
// pairs followed by NRows rows of NCols whitespace-separated values,
// row-major from the top-left corner.
type Raster struct {
	NCols     int
	NRows     int
	XLLCorner float64
	YLLCorner float64
	CellSize  float64
	NoData    float64
	Data      [][]float64
}

var rasterHeaderKeys = []string{"ncols", "nrows", "xllcorner", "yllcorner", "cellsize", "nodata_value"}

// ReadRaster parses an ESRI ASCII raster file.
func ReadRaster(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := new(Raster)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	header := make(map[string]float64)
	lineNum := 0
	for len(header) < len(rasterHeaderKeys) && scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			return nil, errors.Errorf(FileParsingError, lineNum, "expected key value header row")
		}
		key := strings.ToLower(fields[0])
		val, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, FileParsingError, lineNum, "header value")
		}
		header[key] = val
	}
	for _, key := range rasterHeaderKeys {
		if _, ok := header[key]; !ok {
			return nil, errors.Errorf(RasterHeaderMismatchError, path, key)
		}
	}
	r.NCols = int(header["ncols"])
	r.NRows = int(header["nrows"])
	r.XLLCorner = header["xllcorner"]
	r.YLLCorner = header["yllcorner"]
	r.CellSize = header["cellsize"]
	r.NoData = header["nodata_value"]

	r.Data = make([][]float64, r.NRows)
	for row := 0; row < r.NRows; row++ {
		if !scanner.Scan() {
			return nil, errors.Errorf(FileParsingError, lineNum+row+1, "missing raster data row")
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) != r.NCols {
			return nil, errors.Errorf(FileParsingError, lineNum+row+1, "row has wrong column count")
		}
		rowData := make([]float64, r.NCols)
		for col, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, FileParsingError, lineNum+row+1, "data value")
			}
			rowData[col] = v
		}
		r.Data[row] = rowData
	}
	return r, scanner.Err()
}

// WriteRaster writes r to path in ESRI ASCII grid format, used for
// periodic raster snapshots of cell-state counts.
func WriteRaster(path string, r *Raster) error {
	var b strings.Builder
	fmt.Fprintf(&b, "ncols %d\n", r.NCols)
	fmt.Fprintf(&b, "nrows %d\n", r.NRows)
	fmt.Fprintf(&b, "xllcorner %f\n", r.XLLCorner)
	fmt.Fprintf(&b, "yllcorner %f\n", r.YLLCorner)
	fmt.Fprintf(&b, "cellsize %f\n", r.CellSize)
	fmt.Fprintf(&b, "nodata_value %f\n", r.NoData)
	for _, row := range r.Data {
		strs := make([]string, len(row))
		for i, v := range row {
			strs[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		b.WriteString(strings.Join(strs, " "))
		b.WriteString("\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// At returns the value at the given row/col, or NoData if out of bounds.
func (r *Raster) At(row, col int) float64 {
	if row < 0 || row >= r.NRows || col < 0 || col >= r.NCols {
		return r.NoData
	}
	return r.Data[row][col]
}

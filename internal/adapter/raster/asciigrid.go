package raster

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

// Grid is a single-band raster in ESRI ASCII grid layout. Row 0 is the
// northern edge.
type Grid struct {
	cols, rows int
	xll, yll   float64 // lower-left corner of the lower-left cell
	cellSize   float64
	noData     float64
	hasNoData  bool
	data       *mat.Dense
}

// NewGrid builds a grid from row-major values, north row first. Pass a nil
// noData when the grid has no no-data marker.
func NewGrid(cols, rows int, xll, yll, cellSize float64, noData *float64, values []float64) (*Grid, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", cols, rows)
	}
	if cellSize <= 0 || math.IsNaN(cellSize) {
		return nil, fmt.Errorf("invalid cell size %v", cellSize)
	}
	if len(values) != cols*rows {
		return nil, fmt.Errorf("grid has %d values, want %d", len(values), cols*rows)
	}
	g := &Grid{
		cols:     cols,
		rows:     rows,
		xll:      xll,
		yll:      yll,
		cellSize: cellSize,
		data:     mat.NewDense(rows, cols, values),
	}
	if noData != nil {
		g.noData = *noData
		g.hasNoData = true
	}
	return g, nil
}

// Bound returns the extent of the grid.
func (g *Grid) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.xll, g.yll},
		Max: orb.Point{g.xll + float64(g.cols)*g.cellSize, g.yll + float64(g.rows)*g.cellSize},
	}
}

// ValueAt returns the value of the cell containing pt. ok is false outside
// the extent, on no-data cells and on NaN cells. Points on the eastern and
// northern edges are outside.
func (g *Grid) ValueAt(pt orb.Point) (float64, bool) {
	col := int(math.Floor((pt.X() - g.xll) / g.cellSize))
	fromBottom := int(math.Floor((pt.Y() - g.yll) / g.cellSize))
	if col < 0 || col >= g.cols || fromBottom < 0 || fromBottom >= g.rows {
		return 0, false
	}
	v := g.data.At(g.rows-1-fromBottom, col)
	if math.IsNaN(v) || (g.hasNoData && v == g.noData) {
		return 0, false
	}
	return v, true
}

// LoadGrid reads an ASCII grid file.
func LoadGrid(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grid: %w", err)
	}
	defer f.Close()

	g, err := ReadGrid(f)
	if err != nil {
		return nil, fmt.Errorf("read grid %s: %w", path, err)
	}
	return g, nil
}

// ReadGrid parses an ESRI ASCII grid. Header keys are case-insensitive and
// both corner and center registration are accepted.
func ReadGrid(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	header := map[string]float64{}
	var values []float64
	var pending string
	for sc.Scan() {
		tok := sc.Text()
		if pending != "" {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("header %s: %w", pending, err)
			}
			header[pending] = v
			pending = ""
			continue
		}
		if values == nil && isHeaderKey(tok) {
			pending = strings.ToLower(tok)
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", len(values), err)
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if pending != "" {
		return nil, fmt.Errorf("header %s has no value", pending)
	}

	for _, k := range []string{"ncols", "nrows", "cellsize"} {
		if _, ok := header[k]; !ok {
			return nil, fmt.Errorf("missing header %s", k)
		}
	}
	cols, rows, cell := int(header["ncols"]), int(header["nrows"]), header["cellsize"]

	xll, err := corner(header, "xllcorner", "xllcenter", cell)
	if err != nil {
		return nil, err
	}
	yll, err := corner(header, "yllcorner", "yllcenter", cell)
	if err != nil {
		return nil, err
	}

	var noData *float64
	if v, ok := header["nodata_value"]; ok {
		noData = &v
	}
	return NewGrid(cols, rows, xll, yll, cell, noData, values)
}

// WriteGrid writes g in ESRI ASCII grid format with corner registration.
func WriteGrid(w io.Writer, g *Grid) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\nnrows %d\nxllcorner %s\nyllcorner %s\ncellsize %s\n",
		g.cols, g.rows, formatFloat(g.xll), formatFloat(g.yll), formatFloat(g.cellSize))
	if g.hasNoData {
		fmt.Fprintf(bw, "NODATA_value %s\n", formatFloat(g.noData))
	}
	for i := 0; i < g.rows; i++ {
		for j := 0; j < g.cols; j++ {
			if j > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(formatFloat(g.data.At(i, j)))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func isHeaderKey(tok string) bool {
	switch strings.ToLower(tok) {
	case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter", "cellsize", "nodata_value":
		return true
	}
	return false
}

func corner(header map[string]float64, cornerKey, centerKey string, cell float64) (float64, error) {
	if v, ok := header[cornerKey]; ok {
		return v, nil
	}
	if v, ok := header[centerKey]; ok {
		return v - cell/2, nil
	}
	return 0, errors.New("missing header " + cornerKey)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

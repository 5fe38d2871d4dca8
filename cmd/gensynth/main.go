// Command gensynth writes a synthetic stream network, covariate rasters, and
// a layer manifest for exercising the classifier without real data.
//
// Precipitation rises west to east and elevation rises south to north, so
// reaches across the extent land in every regime of the standard tree.
//
// Usage:
//
//	go run ./cmd/gensynth -out data/synth -reaches 500
//	NETWORK_PATH=data/synth/network.geojson LAYERS_PATH=data/synth/layers.yaml go run ./cmd/classify
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/adapter/network"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/adapter/raster"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/domain"
)

const (
	cells    = 100
	cellSize = 10.0
	extent   = cells * cellSize
	noData   = -9999.0
)

// layer describes one synthetic covariate surface.
type layer struct {
	covariate domain.Covariate
	file      string
	value     func(x, y float64) float64
}

var layers = []layer{
	{domain.CovariateMarchPrecip, "march_precip.asc", func(x, _ float64) float64 { return 100 + 300*x/extent }},
	{domain.CovariateElevation, "elevation.asc", func(_, y float64) float64 { return 2000 * y / extent }},
	{domain.CovariateJanTemp, "jan_temp.asc", func(_, y float64) float64 { return 2 - 12*y/extent }},
	{domain.CovariateAprilTemp, "april_temp.asc", func(_, y float64) float64 { return 8 - 6*y/extent }},
	{domain.CovariateMinWinterTemp, "min_winter_temp.asc", func(_, y float64) float64 { return -2 - 8*y/extent }},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory")
	reaches := flag.Int("reaches", 200, "number of reaches to generate")
	seed := flag.Uint64("seed", 1, "random seed")
	holes := flag.Bool("nodata", false, "punch a no-data hole in the precipitation raster")
	crs := flag.String("crs", "EPSG:26912", "spatial reference recorded on the network")
	flag.Parse()

	if *out == "" || *reaches < 0 {
		flag.Usage()
		return fmt.Errorf("missing required flag -out or negative -reaches")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	manifest := raster.Manifest{Layers: make(map[string]string, len(layers))}
	for _, l := range layers {
		g, err := buildGrid(l, *holes && l.covariate == domain.CovariateMarchPrecip)
		if err != nil {
			return fmt.Errorf("build %s: %w", l.covariate, err)
		}
		if err := writeGrid(filepath.Join(*out, l.file), g); err != nil {
			return err
		}
		manifest.Layers[l.covariate.String()] = l.file
		log.Printf("wrote layer %s: %s", l.covariate, l.file)
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(*out, "layers.yaml"), data, 0o644); err != nil {
		return err
	}
	log.Printf("wrote manifest: layers.yaml")

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	lines := make([]orb.LineString, *reaches)
	for i := range lines {
		lines[i] = randomReach(rng)
	}
	path := filepath.Join(*out, "network.geojson")
	if err := network.New(lines, domain.SpatialReference{Name: *crs}).WriteFile(path); err != nil {
		return err
	}
	log.Printf("wrote network: %d reaches", len(lines))
	return nil
}

// buildGrid samples l at cell centers. With hole set, a square in the
// middle of the extent is no data.
func buildGrid(l layer, hole bool) (*raster.Grid, error) {
	values := make([]float64, cells*cells)
	for row := 0; row < cells; row++ {
		y := extent - (float64(row)+0.5)*cellSize
		for col := 0; col < cells; col++ {
			x := (float64(col) + 0.5) * cellSize
			v := math.Round(l.value(x, y)*100) / 100
			if hole && math.Abs(x-extent/2) < extent/10 && math.Abs(y-extent/2) < extent/10 {
				v = noData
			}
			values[row*cells+col] = v
		}
	}
	nd := noData
	return raster.NewGrid(cells, cells, 0, 0, cellSize, &nd, values)
}

// randomReach returns a short polyline wandering from a random start.
func randomReach(rng *rand.Rand) orb.LineString {
	n := 2 + rng.IntN(4)
	line := make(orb.LineString, n)
	x, y := rng.Float64()*extent, rng.Float64()*extent
	for i := range line {
		line[i] = orb.Point{math.Round(x*100) / 100, math.Round(y*100) / 100}
		x = math.Min(math.Max(x+rng.NormFloat64()*15, 0), extent-1)
		y = math.Min(math.Max(y+rng.NormFloat64()*15, 0), extent-1)
	}
	return line
}

func writeGrid(path string, g *raster.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := raster.WriteGrid(f, g); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

package network

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Region is a clip area made of one or more polygons.
type Region struct {
	polygons orb.MultiPolygon
}

// NewRegion builds a region from polygons.
func NewRegion(polygons ...orb.Polygon) Region {
	return Region{polygons: orb.MultiPolygon(polygons)}
}

// LoadRegion reads the Polygon and MultiPolygon features of a GeoJSON
// FeatureCollection. Other geometry types are rejected.
func LoadRegion(path string) (Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Region{}, fmt.Errorf("read clip region: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return Region{}, fmt.Errorf("parse clip region %s: %w", path, err)
	}

	var polys []orb.Polygon
	for i, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			polys = append(polys, g)
		case orb.MultiPolygon:
			polys = append(polys, g...)
		default:
			return Region{}, fmt.Errorf("clip region feature %d: want polygon, got %T", i, f.Geometry)
		}
	}
	if len(polys) == 0 {
		return Region{}, fmt.Errorf("clip region %s has no polygons", path)
	}
	return NewRegion(polys...), nil
}

// Contains reports whether pt falls inside the region.
func (r Region) Contains(pt orb.Point) bool {
	return planar.MultiPolygonContains(r.polygons, pt)
}

// Clip keeps the reaches whose first vertex lies inside region. Lines are
// filtered, not cut. Empty lines are dropped. Order is preserved.
func Clip(n *Network, region Region) (*Network, int) {
	kept := make([]orb.LineString, 0, len(n.lines))
	for _, line := range n.lines {
		if len(line) > 0 && region.Contains(line[0]) {
			kept = append(kept, line)
		}
	}
	return New(kept, n.srs), len(n.lines) - len(kept)
}

package domain

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Reach is a classified stream segment. The geometry is shared with the
// network source and must not be modified.
type Reach struct {
	index          int
	geometry       orb.LineString
	classification Regime
}

// NewReach returns a classified reach. It is the only way to construct one,
// so a Reach without a classification never exists.
func NewReach(index int, geometry orb.LineString, classification Regime) (Reach, error) {
	if len(geometry) == 0 {
		return Reach{}, ErrEmptyGeometry
	}
	if !classification.Valid() {
		return Reach{}, fmt.Errorf("reach %d: unknown regime %q", index, classification)
	}
	return Reach{index: index, geometry: geometry, classification: classification}, nil
}

// Index is the reach's position in source iteration order.
func (r Reach) Index() int { return r.index }

// Geometry returns the source polyline.
func (r Reach) Geometry() orb.LineString { return r.geometry }

// Classification returns the assigned regime.
func (r Reach) Classification() Regime { return r.classification }

// RepresentativePoint is the first vertex of the geometry.
func (r Reach) RepresentativePoint() orb.Point { return r.geometry[0] }

// RepresentativePoint returns the first vertex of a polyline.
func RepresentativePoint(geometry orb.LineString) (orb.Point, error) {
	if len(geometry) == 0 {
		return orb.Point{}, ErrEmptyGeometry
	}
	return geometry[0], nil
}

// Collection is an ordered, read-only sequence of reaches.
type Collection struct {
	reaches []Reach
}

// NewCollection wraps reaches, which must already be in source order.
func NewCollection(reaches []Reach) *Collection {
	return &Collection{reaches: reaches}
}

// Len returns the number of reaches.
func (c *Collection) Len() int { return len(c.reaches) }

// At returns the i-th reach in source order.
func (c *Collection) At(i int) Reach { return c.reaches[i] }

// Reaches returns a copy of the ordered reaches.
func (c *Collection) Reaches() []Reach {
	out := make([]Reach, len(c.reaches))
	copy(out, c.reaches)
	return out
}

// RegimeCounts tallies reaches per regime.
func (c *Collection) RegimeCounts() map[Regime]int {
	counts := make(map[Regime]int)
	for _, r := range c.reaches {
		counts[r.classification]++
	}
	return counts
}

// SpatialReference describes the coordinate system of the source network.
// It is passed through to output writers untouched.
type SpatialReference struct {
	// Name is a CRS identifier such as "EPSG:26911" or an OGC URN.
	Name string
}

// ClassifiedNetwork is the output of a completed run handed to writers.
type ClassifiedNetwork struct {
	RunID            string
	Reaches          *Collection
	SpatialReference SpatialReference
}

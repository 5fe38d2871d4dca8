// Package network reads stream networks from GeoJSON.
package network

import (
	"fmt"
	"iter"
	"os"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/domain"
)

// Network is an in-memory stream network in feature order. It implements
// pipeline.NetworkSource.
type Network struct {
	lines []orb.LineString
	srs   domain.SpatialReference
}

// New wraps lines in the given order.
func New(lines []orb.LineString, srs domain.SpatialReference) *Network {
	return &Network{lines: lines, srs: srs}
}

// Load reads a GeoJSON FeatureCollection of LineString features. A feature
// without geometry is kept as an empty line so indices stay aligned with
// the source. The spatial reference is taken from a "crs" member if present.
func Load(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse network %s: %w", path, err)
	}

	lines := make([]orb.LineString, 0, len(fc.Features))
	for i, f := range fc.Features {
		line, err := toLine(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		lines = append(lines, line)
	}
	return New(lines, crsFrom(fc.ExtraMembers)), nil
}

func toLine(g orb.Geometry) (orb.LineString, error) {
	switch g := g.(type) {
	case nil:
		return orb.LineString{}, nil
	case orb.LineString:
		return g, nil
	case orb.MultiLineString:
		if len(g) == 1 {
			return g[0], nil
		}
		return nil, fmt.Errorf("multi-part line with %d parts", len(g))
	default:
		return nil, fmt.Errorf("unsupported geometry %s", g.GeoJSONType())
	}
}

// Count returns the number of reaches.
func (n *Network) Count() int { return len(n.lines) }

// Geometries yields the reach polylines in order.
func (n *Network) Geometries() iter.Seq[orb.LineString] { return slices.Values(n.lines) }

// SpatialReference returns the network's coordinate system.
func (n *Network) SpatialReference() domain.SpatialReference { return n.srs }

// WithSpatialReference returns a copy of n that reports srs.
func (n *Network) WithSpatialReference(srs domain.SpatialReference) *Network {
	return &Network{lines: n.lines, srs: srs}
}

// WriteFile writes the network as GeoJSON with an "index" property on
// each feature.
func (n *Network) WriteFile(path string) error {
	fc := geojson.NewFeatureCollection()
	for i, line := range n.lines {
		f := geojson.NewFeature(line)
		f.Properties["index"] = i
		fc.Append(f)
	}
	SetCRS(fc, n.srs)

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode network: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write network: %w", err)
	}
	return nil
}

// crsFrom reads a named CRS in the legacy GeoJSON form
// {"type":"name","properties":{"name":"EPSG:4326"}}.
func crsFrom(members geojson.Properties) domain.SpatialReference {
	crs, ok := members["crs"].(map[string]any)
	if !ok {
		return domain.SpatialReference{}
	}
	props, ok := crs["properties"].(map[string]any)
	if !ok {
		return domain.SpatialReference{}
	}
	name, _ := props["name"].(string)
	return domain.SpatialReference{Name: name}
}

// SetCRS records srs as a "crs" foreign member on fc, in the form Load reads.
func SetCRS(fc *geojson.FeatureCollection, srs domain.SpatialReference) {
	if srs.Name == "" {
		return
	}
	if fc.ExtraMembers == nil {
		fc.ExtraMembers = geojson.Properties{}
	}
	fc.ExtraMembers["crs"] = map[string]any{
		"type":       "name",
		"properties": map[string]any{"name": srs.Name},
	}
}

// CRS reads the spatial reference recorded on fc.
func CRS(fc *geojson.FeatureCollection) domain.SpatialReference { return crsFrom(fc.ExtraMembers) }

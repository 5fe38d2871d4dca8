// Package output writes classified networks to files.
package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/adapter/network"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/domain"
)

// GeoJSONWriter writes a FeatureCollection with one feature per reach, in
// reach order. It implements pipeline.Loader.
type GeoJSONWriter struct {
	path string
}

// NewGeoJSONWriter creates a writer for path.
func NewGeoJSONWriter(path string) *GeoJSONWriter {
	return &GeoJSONWriter{path: path}
}

// Path returns the destination file.
func (w *GeoJSONWriter) Path() string { return w.path }

func (w *GeoJSONWriter) Load(_ context.Context, out domain.ClassifiedNetwork) error {
	fc := geojson.NewFeatureCollection()
	for _, r := range out.Reaches.Reaches() {
		f := geojson.NewFeature(r.Geometry())
		f.Properties["index"] = r.Index()
		f.Properties["classification"] = r.Classification().String()
		fc.Append(f)
	}
	network.SetCRS(fc, out.SpatialReference)
	if out.RunID != "" {
		if fc.ExtraMembers == nil {
			fc.ExtraMembers = geojson.Properties{}
		}
		fc.ExtraMembers["run_id"] = out.RunID
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode reaches: %w", err)
	}
	return writeFileAtomic(w.path, data)
}

// writeFileAtomic writes data to a temp file beside path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

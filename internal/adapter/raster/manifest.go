package raster

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/domain"
)

// Manifest lists the raster layer behind each covariate.
//
//	layers:
//	  march_precip: precip_march.asc
//	  elevation: dem.asc
type Manifest struct {
	Layers map[string]string `yaml:"layers"`

	dir string
}

// LoadManifest reads a YAML layer manifest. Relative layer paths are
// resolved against the manifest's directory by LocalSources.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Layers) == 0 {
		return nil, fmt.Errorf("manifest %s lists no layers", path)
	}
	m.dir = filepath.Dir(path)
	return &m, nil
}

// Sources returns the layer names verbatim, for samplers that resolve
// names themselves.
func (m *Manifest) Sources() (domain.CovariateSources, error) {
	return m.sources(func(s string) string { return s })
}

// LocalSources returns layer paths resolved against the manifest directory.
func (m *Manifest) LocalSources() (domain.CovariateSources, error) {
	return m.sources(func(s string) string {
		if filepath.IsAbs(s) {
			return s
		}
		return filepath.Join(m.dir, s)
	})
}

func (m *Manifest) sources(resolve func(string) string) (domain.CovariateSources, error) {
	out := make(domain.CovariateSources, len(m.Layers))
	for key, layer := range m.Layers {
		c, err := domain.ParseCovariate(key)
		if err != nil {
			return nil, err
		}
		if layer == "" {
			return nil, fmt.Errorf("layer for %s is empty", c)
		}
		out[c] = domain.RasterHandle(resolve(layer))
	}
	return out, nil
}

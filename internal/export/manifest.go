package export

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/survey-cli/internal/sampler"
)

// Manifest summarizes a sampling run for provenance alongside the data files.
type Manifest struct {
	RunID             string            `yaml:"run_id,omitempty"`
	Source            string            `yaml:"source"`
	CreatedAt         time.Time         `yaml:"created_at"`
	Request           ManifestRequest   `yaml:"request"`
	ScaledMinDistance float64           `yaml:"scaled_min_distance"`
	CircleRadius      float64           `yaml:"circle_radius"`
	PrimaryCount      int               `yaml:"primary_count"`
	PopulationSize    int               `yaml:"population_size"`
	DroppedRows       int               `yaml:"dropped_rows"`
	Warnings          []string          `yaml:"warnings,omitempty"`
	Outputs           map[string]string `yaml:"outputs,omitempty"`
}

// ManifestRequest mirrors the request parameters in YAML form.
type ManifestRequest struct {
	SampleSize   int     `yaml:"sample_size"`
	ClosePairs   int     `yaml:"close_pairs"`
	MinDistance  float64 `yaml:"min_distance"`
	CircleRadius float64 `yaml:"circle_radius"`
	Seed         int64   `yaml:"seed"`
}

// NewManifest builds a manifest from a request and its result.
func NewManifest(source string, seed int64, populationSize int, req sampler.Request, res *sampler.Result) Manifest {
	m := Manifest{
		Source:    source,
		CreatedAt: time.Now().UTC(),
		Request: ManifestRequest{
			SampleSize:   req.SampleSize,
			ClosePairs:   req.ClosePairs,
			MinDistance:  req.MinDistance,
			CircleRadius: req.CircleRadius,
			Seed:         seed,
		},
		ScaledMinDistance: res.Effective.ScaledMinDistance,
		CircleRadius:      res.Effective.CircleRadius,
		PrimaryCount:      res.Effective.PrimaryCount,
		PopulationSize:    populationSize,
		DroppedRows:       res.DroppedRows,
		Outputs:           map[string]string{},
	}
	for _, w := range res.Warnings {
		m.Warnings = append(m.Warnings, w.Message)
	}
	return m
}

// WriteManifest writes the manifest as YAML.
func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "export: marshal manifest")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

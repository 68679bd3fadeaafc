package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ManifestEntry represents one input file in the output manifest.
type ManifestEntry struct {
	File       string   `json:"file"`
	Kind       string   `json:"kind,omitempty"`
	Error      string   `json:"error,omitempty"`
	Images     int      `json:"images"`
	Models     int      `json:"models"`
	Meshes     int      `json:"meshes"`
	Vertices   int      `json:"vertices"`
	Triangles  int      `json:"triangles"`
	Placements int      `json:"placements,omitempty"`
	Failures   int      `json:"failures,omitempty"`
	Outputs    []string `json:"outputs,omitempty"`
}

// WriteManifest writes the results as JSON. Output paths are made relative
// to the manifest's directory when possible.
func WriteManifest(path string, results []Result) error {
	base := filepath.Dir(path)
	entries := make([]ManifestEntry, len(results))
	for i, r := range results {
		e := ManifestEntry{
			File:       r.Path,
			Images:     r.Stats.Images,
			Models:     r.Stats.Models,
			Meshes:     r.Stats.Meshes,
			Vertices:   r.Stats.Vertices,
			Triangles:  r.Stats.Triangles,
			Placements: r.Stats.Placements,
			Failures:   r.Stats.Failures,
		}
		if r.Err != nil {
			e.Error = r.Err.Error()
		} else {
			e.Kind = r.Kind.String()
		}
		for _, o := range r.Outputs {
			if rel, err := filepath.Rel(base, o); err == nil {
				o = filepath.ToSlash(rel)
			}
			e.Outputs = append(e.Outputs, o)
		}
		entries[i] = e
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

package batch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ctr-asset-decoder/internal/cmb/cmbtest"
	"ctr-asset-decoder/internal/importer"
)

func writeInputs(t *testing.T) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.cmb", "b.cmb", "broken.cmb", "c.cmb"} {
		data := cmbtest.Build(cmbtest.Triangle())
		if name == "broken.cmb" {
			data = data[:40]
		}
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return dir, paths
}

func TestRun(t *testing.T) {
	dir, paths := writeInputs(t)
	var delivered []string // written only by the consumer goroutine
	results := Run(context.Background(), Config{Workers: 3}, paths, func(path string, a *importer.Asset) ([]string, error) {
		delivered = append(delivered, path)
		if filepath.Base(path) == "c.cmb" {
			return nil, errors.New("disk full")
		}
		return []string{filepath.Join(dir, "out", filepath.Base(path)+".glb")}, nil
	})

	if len(results) != len(paths) || len(delivered) != 3 {
		t.Fatalf("%d results, %d delivered", len(results), len(delivered))
	}
	for i, r := range results {
		if r.Path != paths[i] {
			t.Fatalf("result %d is %s", i, r.Path)
		}
	}
	if results[0].Err != nil || results[0].Stats.Triangles != 1 || results[0].Kind != importer.KindModel {
		t.Fatalf("a.cmb = %+v", results[0])
	}
	if results[2].Err == nil || results[3].Err == nil {
		t.Fatal("decode and deliver failures not reported")
	}
	ok, failed, total := Summary(results)
	if ok != 2 || failed != 2 || total.Meshes != 2 {
		t.Fatalf("summary = %d ok, %d failed, %+v", ok, failed, total)
	}

	manifest := filepath.Join(dir, "manifest.json")
	if err := WriteManifest(manifest, results); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatal(err)
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 || entries[0].Outputs[0] != "out/a.cmb.glb" || entries[2].Error == "" {
		t.Fatalf("manifest = %+v", entries)
	}
}

func TestRunCancelled(t *testing.T) {
	_, paths := writeInputs(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := Run(ctx, Config{Workers: 2}, paths, func(string, *importer.Asset) ([]string, error) {
		t.Error("delivered after cancel")
		return nil, nil
	})
	for _, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Fatalf("%s: err = %v", r.Path, r.Err)
		}
	}
}

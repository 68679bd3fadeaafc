package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ctr-asset-decoder/internal/batch"
	"ctr-asset-decoder/internal/config"
	"ctr-asset-decoder/internal/export"
	"ctr-asset-decoder/internal/importer"
	"ctr-asset-decoder/internal/logging"
	"ctr-asset-decoder/internal/postprocess"
	"ctr-asset-decoder/internal/raster"
	"ctr-asset-decoder/internal/texture"
)

var inputExts = map[string]bool{".cmb": true, ".ctxb": true, ".zar": true, ".gar": true, ".gseb": true}

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to config.json file")
	romfsDir := flag.String("romfs", "", "Extracted romfs directory for scene models (default: auto-detect)")
	outputDir := flag.String("output", "", "Output directory (default: ./out)")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")
	format := flag.String("format", "", "Texture format: webp, tga or png (default: webp)")
	gltfOut := flag.Bool("gltf", true, "Export models and scenes as glTF")
	previewSize := flag.Int("preview", 0, "Preview size in pixels (default: 256)")
	noPreview := flag.Bool("no-preview", false, "Skip preview renders")
	verbose := flag.Bool("v", false, "Debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ctrimport [flags] <file or directory>...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI flags override config file
	flags := config.Flags{
		RomFSDir:  *romfsDir,
		OutputDir: *outputDir,
		Format:    *format,
		Preview:   *previewSize,
		Workers:   *workers,
		Verbose:   *verbose,
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "gltf" {
			flags.GLTF = gltfOut
		}
	})
	if err := cfg.Resolve(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.SetLogger(logging.NewText(os.Stderr, cfg.Level))

	paths, err := collectInputs(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		fmt.Println("No input files.")
		os.Exit(0)
	}

	exportGLTF, binary := cfg.GLTF()
	w := &writer{
		cfg:     &cfg,
		gltf:    exportGLTF,
		binary:  binary,
		preview: !*noPreview,
	}

	fmt.Printf("CTR asset import -> %s textures\n", cfg.Format)
	fmt.Printf("Files: %d, Workers: %d\n", len(paths), cfg.Workers)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	if cfg.RomFSDir != "" {
		fmt.Printf("RomFS: %s\n", cfg.RomFSDir)
	}
	fmt.Println("------------------------------------------------------------")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	results := batch.Run(ctx, batch.Config{
		Decoder:  importer.Decoder{Workers: cfg.Workers, RomFS: cfg.RomFSDir},
		Workers:  cfg.Workers,
		Progress: os.Stdout,
	}, paths, w.deliver)

	elapsed := time.Since(start)
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", elapsed.Seconds())

	ok, failed, total := batch.Summary(results)
	fmt.Printf("Imported: %d/%d\n", ok, len(results))
	fmt.Printf("Images: %d, Models: %d, Meshes: %d, Vertices: %d, Triangles: %d, Placements: %d\n",
		total.Images, total.Models, total.Meshes, total.Vertices, total.Triangles, total.Placements)
	if total.Failures > 0 {
		fmt.Printf("Skipped parts: %d (see log)\n", total.Failures)
	}

	if failed > 0 {
		fmt.Printf("\nFailed (%d):\n", failed)
		shown := 0
		for _, r := range results {
			if r.Err == nil {
				continue
			}
			if shown == 20 {
				fmt.Printf("  ... and %d more\n", failed-shown)
				break
			}
			fmt.Printf("  %s: %v\n", filepath.Base(r.Path), r.Err)
			shown++
		}
	}

	// Write manifest
	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	os.MkdirAll(cfg.OutputDir, 0755)
	if err := batch.WriteManifest(manifestPath, results); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s\n", manifestPath)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// collectInputs expands directories into the supported files below them.
func collectInputs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && inputExts[strings.ToLower(filepath.Ext(p))] {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

// writer turns decoded assets into files under <output>/<stem>/.
type writer struct {
	cfg     *config.Config
	gltf    bool
	binary  bool
	preview bool
}

func (w *writer) deliver(path string, a *importer.Asset) ([]string, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dir := filepath.Join(w.cfg.OutputDir, stem)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	var outputs []string

	names := textureNames(stem, a.Images)
	for i, im := range a.Images {
		out := filepath.Join(dir, "textures", names[i]+w.cfg.Format.Ext())
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return outputs, err
		}
		if err := texture.Save(out, texture.FromRGBA(im.Width, im.Height, im.RGBA), w.cfg.Format); err != nil {
			return outputs, fmt.Errorf("texture %s: %w", im.Name, err)
		}
		outputs = append(outputs, out)
	}

	if len(a.Models) == 0 && len(a.Placements) == 0 {
		return outputs, nil
	}

	if w.gltf {
		doc := export.New()
		if err := importer.Deliver(a, doc); err != nil {
			return outputs, err
		}
		ext := ".gltf"
		if w.binary {
			ext = ".glb"
		}
		out := filepath.Join(dir, stem+ext)
		if err := doc.Save(out, w.binary); err != nil {
			return outputs, err
		}
		outputs = append(outputs, out)
	}

	if w.preview {
		ss := w.cfg.Supersample
		img := postprocess.Downsample(raster.Render(a, w.cfg.PreviewSize, ss), ss)
		if raster.Coverage(img) == 0 {
			logging.Logger().Debug("preview is empty", "file", stem)
		}
		out := filepath.Join(dir, stem+"_preview.webp")
		if err := texture.Save(out, img, texture.WebP); err != nil {
			return outputs, fmt.Errorf("preview: %w", err)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// textureNames picks one file name per image. Names that collide after
// sanitizing get a numeric suffix and a warning.
func textureNames(stem string, images []importer.Image) []string {
	names := make([]string, len(images))
	taken := make(map[string]bool, len(images))
	for i, im := range images {
		base := safeName(im.Name)
		name := base
		for n := 1; taken[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		if name != base {
			logging.Logger().Warn("texture name collision", "file", stem, "texture", im.Name, "saved_as", name)
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

// safeName keeps texture names usable as file names.
func safeName(s string) string {
	if s == "" {
		return "texture"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ctr-asset-decoder/internal/importer"
	"ctr-asset-decoder/internal/texture"
)

func main() {
	outDir := flag.String("output", ".", "Output directory")
	format := flag.String("format", "png", "Output format: webp, tga or png")
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: texdump [-output dir] [-format png] <file.ctxb|cmb|zar|gar>...")
		os.Exit(2)
	}
	f, err := texture.ParseFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	failed := 0
	for _, path := range flag.Args() {
		n, err := dump(path, *outDir, f)
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("     %s: %d textures\n", filepath.Base(path), n)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func dump(path, outDir string, f texture.Format) (int, error) {
	a, err := new(importer.Decoder).Decode(path)
	if err != nil {
		return 0, err
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i, im := range a.Images {
		name := fmt.Sprintf("%s_%02d_%s%s", stem, i, im.Name, f.Ext())
		dst := filepath.Join(outDir, strings.ReplaceAll(name, "/", "_"))
		if err := texture.Save(dst, texture.FromRGBA(im.Width, im.Height, im.RGBA), f); err != nil {
			return i, err
		}
		fmt.Printf("OK   %s -> %s  (%dx%d %s)\n", im.Name, dst, im.Width, im.Height, im.Format)
	}
	for _, fl := range a.Failures {
		fmt.Printf("SKIP %s: %v\n", fl.Name, fl.Err)
	}
	return len(a.Images), nil
}

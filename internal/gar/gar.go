// Package gar reads ZAR and GAR archives.
package gar

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ctr-asset-decoder/internal/binreader"
)

var (
	// ErrUnsupportedVariant is returned for an unknown signature or codename.
	ErrUnsupportedVariant = errors.New("unsupported archive variant")
	// ErrCorruptArchive is returned when the tables disagree with the data.
	ErrCorruptArchive = errors.New("corrupt archive")
)

// Variant is the engine generation named by the signature.
type Variant int

const (
	ZAR1 Variant = iota + 1 // Ocarina of Time 3D
	GAR2                    // Majora's Mask 3D
	GAR5                    // Luigi's Mansion 3D
)

var signatures = map[string]Variant{
	"ZAR\x01": ZAR1,
	"GAR\x02": GAR2,
	"GAR\x05": GAR5,
}

func (v Variant) String() string {
	switch v {
	case ZAR1:
		return "ZAR1"
	case GAR2:
		return "GAR2"
	case GAR5:
		return "GAR5"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// Layout is the table layout selected by the codename.
type Layout int

const (
	SystemGroups Layout = iota + 1 // "agora", "SYSTEM"
	Indexed                        // "queen", "jenkins"
)

func layoutFor(codename string) (Layout, bool) {
	switch codename {
	case "agora", "SYSTEM":
		return SystemGroups, true
	case "queen", "jenkins":
		return Indexed, true
	}
	return 0, false
}

// IsArchive reports whether data starts with a known archive signature.
func IsArchive(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	_, ok := signatures[string(data[:4])]
	return ok
}

// Archive is a parsed container. Groups are kept for inspection only.
type Archive struct {
	Variant  Variant
	Layout   Layout
	Codename string
	Size     uint32
	Groups   []Group
	Entries  []Entry
}

type Group struct {
	Name      string // system layout: the extension of every member
	FileCount int
	IDs       []uint32
}

type header struct {
	size       uint32
	groups     uint16
	files      uint16
	groupOff   uint32
	infoOff    uint32
	dataOff    uint32
	codename   string
	headerSize int
}

// Load reads and parses an archive from disk.
func Load(p string) (*Archive, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("gar: read %s: %w", p, err)
	}
	a, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
	}
	return a, nil
}

// Parse reads the header, dispatches on the codename and slices every
// entry payload out of data.
func Parse(data []byte) (*Archive, error) {
	r := binreader.New(data)
	sig, err := r.Bytes(4)
	if err != nil {
		return nil, fmt.Errorf("gar: signature: %w", err)
	}
	variant, ok := signatures[string(sig)]
	if !ok {
		return nil, fmt.Errorf("gar: signature %q: %w", sig, ErrUnsupportedVariant)
	}
	h, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("gar: header: %w", err)
	}
	layout, ok := layoutFor(h.codename)
	if !ok {
		return nil, fmt.Errorf("gar: codename %q: %w", h.codename, ErrUnsupportedVariant)
	}

	a := &Archive{Variant: variant, Layout: layout, Codename: h.codename, Size: h.size}
	switch layout {
	case SystemGroups:
		err = a.readSystem(r, h)
	case Indexed:
		err = a.readIndexed(r, h)
	}
	if err != nil {
		return nil, fmt.Errorf("gar: %s/%s: %w", variant, h.codename, err)
	}
	return a, nil
}

func readHeader(r *binreader.Reader) (header, error) {
	var h header
	var err error
	if h.size, err = r.U32(); err != nil {
		return h, err
	}
	if h.groups, err = r.U16(); err != nil {
		return h, err
	}
	if h.files, err = r.U16(); err != nil {
		return h, err
	}
	if h.groupOff, err = r.U32(); err != nil {
		return h, err
	}
	if h.infoOff, err = r.U32(); err != nil {
		return h, err
	}
	if h.dataOff, err = r.U32(); err != nil {
		return h, err
	}
	if h.codename, err = r.String(8); err != nil {
		return h, err
	}
	h.headerSize = r.Pos()
	return h, nil
}

type fileInfo struct {
	size, offset uint32
	name, ext    string
	fileName     string
}

func (a *Archive) readSystem(r *binreader.Reader, h header) error {
	if err := r.Seek(int(h.groupOff)); err != nil {
		return fmt.Errorf("group table: %w", err)
	}
	for i := 0; i < int(h.groups); i++ {
		rec, err := r.Bytes(32)
		if err != nil {
			return fmt.Errorf("group %d: %w", i, err)
		}
		g := binreader.New(rec)
		n, _ := g.U32()
		g.Skip(8) // unknown, info offset
		nameOff, _ := g.U32()
		name, err := r.StringAt(int(nameOff), 0)
		if err != nil {
			return fmt.Errorf("group %d name: %w", i, err)
		}
		a.Groups = append(a.Groups, Group{Name: name, FileCount: int(n)})
	}

	if err := r.Seek(int(h.infoOff)); err != nil {
		return fmt.Errorf("info table: %w", err)
	}
	var infos []fileInfo
	for gi, g := range a.Groups {
		for j := 0; j < g.FileCount; j++ {
			rec, err := r.Bytes(16)
			if err != nil {
				return fmt.Errorf("group %d info %d: %w", gi, j, err)
			}
			ir := binreader.New(rec)
			size, _ := ir.U32()
			off, _ := ir.U32()
			nameOff, _ := ir.U32()
			name, err := r.StringAt(int(nameOff), 0)
			if err != nil {
				return fmt.Errorf("group %d info %d name: %w", gi, j, err)
			}
			infos = append(infos, fileInfo{
				size: size, offset: off,
				name: name, ext: g.Name,
				fileName: name + "." + g.Name,
			})
		}
	}
	return a.collect(r, h, infos, nil)
}

func (a *Archive) readIndexed(r *binreader.Reader, h header) error {
	if err := r.Seek(int(h.groupOff)); err != nil {
		return fmt.Errorf("group table: %w", err)
	}
	for i := 0; i < int(h.groups); i++ {
		n, err := r.U32()
		if err != nil {
			return fmt.Errorf("group %d: %w", i, err)
		}
		if err := r.Skip(12); err != nil {
			return fmt.Errorf("group %d: %w", i, err)
		}
		a.Groups = append(a.Groups, Group{FileCount: int(n)})
	}
	for i := range a.Groups {
		ids, err := r.U32Array(a.Groups[i].FileCount)
		if err != nil {
			return fmt.Errorf("group %d ids: %w", i, err)
		}
		a.Groups[i].IDs = ids
	}

	if err := r.Seek(int(h.infoOff)); err != nil {
		return fmt.Errorf("info table: %w", err)
	}
	recSize := 12
	if a.Variant == ZAR1 {
		recSize = 8
	}
	var infos []fileInfo
	for gi, g := range a.Groups {
		for j := 0; j < g.FileCount; j++ {
			rec, err := r.Bytes(recSize)
			if err != nil {
				return fmt.Errorf("group %d info %d: %w", gi, j, err)
			}
			ir := binreader.New(rec)
			var fi fileInfo
			fi.size, _ = ir.U32()
			if a.Variant != ZAR1 {
				off, _ := ir.U32()
				if fi.name, err = r.StringAt(int(off), 0); err != nil {
					return fmt.Errorf("group %d info %d name: %w", gi, j, err)
				}
			}
			off, _ := ir.U32()
			if fi.fileName, err = r.StringAt(int(off), 0); err != nil {
				return fmt.Errorf("group %d info %d file name: %w", gi, j, err)
			}
			stem, ext := splitName(fi.fileName)
			if fi.name == "" {
				fi.name = stem
			}
			fi.ext = ext
			infos = append(infos, fi)
		}
	}

	if err := r.Seek(int(h.dataOff)); err != nil {
		return fmt.Errorf("offset table: %w", err)
	}
	offsets, err := r.U32Array(int(h.files))
	if err != nil {
		return fmt.Errorf("offset table: %w", err)
	}
	return a.collect(r, h, infos, offsets)
}

// collect bounds-checks every info and slices its payload. Offsets from a
// separate table, when given, override the per-info offsets.
func (a *Archive) collect(r *binreader.Reader, h header, infos []fileInfo, offsets []uint32) error {
	if len(infos) < int(h.files) {
		return fmt.Errorf("%d file infos for %d files: %w", len(infos), h.files, ErrCorruptArchive)
	}
	limit := r.Len()
	if h.size != 0 && int(h.size) < limit {
		limit = int(h.size)
	}
	for i := 0; i < int(h.files); i++ {
		fi := infos[i]
		if offsets != nil {
			fi.offset = offsets[i]
		}
		start, end := int(fi.offset), int(fi.offset)+int(fi.size)
		if start < h.headerSize || end > limit {
			return fmt.Errorf("entry %q [0x%x,0x%x) outside 0x%x bytes: %w",
				fi.fileName, start, end, limit, ErrCorruptArchive)
		}
		sub, err := r.Sub(start, int(fi.size))
		if err != nil {
			return fmt.Errorf("entry %q: %w", fi.fileName, err)
		}
		a.Entries = append(a.Entries, Entry{
			Name:     fi.name,
			Ext:      fi.ext,
			FileName: fi.fileName,
			Offset:   start,
			Data:     sub.Data(),
		})
	}
	return nil
}

// splitName splits "stem.ext" at the last dot.
func splitName(fileName string) (stem, ext string) {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return base[:i], base[i+1:]
	}
	return base, ""
}

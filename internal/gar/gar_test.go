package gar

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"ctr-asset-decoder/internal/gar/gartest"
)

const headerSize = gartest.HeaderSize

type (
	file  = gartest.File
	group = gartest.Group
)

var (
	buildSystem  = gartest.System
	buildIndexed = gartest.Indexed
)

func TestSystemSingleTexture(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 48)
	data := buildSystem("GAR\x02", "SYSTEM", []group{{Ext: "ctxb", Files: []file{{Name: "tex", Data: payload}}}})
	a, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.Variant != GAR2 || a.Layout != SystemGroups {
		t.Fatalf("variant %v layout %v", a.Variant, a.Layout)
	}
	if len(a.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(a.Entries))
	}
	e := a.Entries[0]
	if e.FileName != "tex.ctxb" || e.Name != "tex" || e.Ext != "ctxb" {
		t.Fatalf("entry = %q (%q, %q)", e.FileName, e.Name, e.Ext)
	}
	if e.Size() != len(payload) || !bytes.Equal(e.Data, payload) {
		t.Fatalf("payload length %d, want %d", e.Size(), len(payload))
	}
	if e.Kind() != KindTexture {
		t.Fatalf("kind = %v", e.Kind())
	}
}

func TestIndexedVariants(t *testing.T) {
	files := []file{
		{Name: "link.cmb", Data: []byte{1, 2, 3, 4, 5}},
		{Name: "link.ctxb", Data: []byte{6, 7}},
		{Name: "walk.csab", Data: []byte{8}},
	}
	for _, c := range []struct {
		sig, codename string
		variant       Variant
	}{
		{"ZAR\x01", "queen", ZAR1},
		{"GAR\x02", "jenkins", GAR2},
		{"GAR\x05", "jenkins", GAR5},
	} {
		a, err := Parse(buildIndexed(c.sig, c.codename, files))
		if err != nil {
			t.Fatalf("%v: Parse: %v", c.variant, err)
		}
		if a.Variant != c.variant || a.Layout != Indexed {
			t.Fatalf("%v: got %v/%v", c.variant, a.Variant, a.Layout)
		}
		if len(a.Groups) != 1 || len(a.Groups[0].IDs) != 3 || a.Groups[0].IDs[2] != 102 {
			t.Fatalf("%v: groups = %+v", c.variant, a.Groups)
		}
		for i, f := range files {
			e := a.Entries[i]
			if e.FileName != f.Name || !bytes.Equal(e.Data, f.Data) {
				t.Fatalf("%v: entry %d = %q %v", c.variant, i, e.FileName, e.Data)
			}
		}
		if a.Entries[0].Name != "link" || a.Entries[0].Ext != "cmb" {
			t.Fatalf("%v: split = %q %q", c.variant, a.Entries[0].Name, a.Entries[0].Ext)
		}
		if a.Entries[2].Kind() != KindAnimation {
			t.Fatalf("%v: csab kind = %v", c.variant, a.Entries[2].Kind())
		}
	}
}

func TestEntriesWithinFile(t *testing.T) {
	data := buildSystem("ZAR\x01", "agora", []group{
		{Ext: "cmb", Files: []file{{Name: "a", Data: make([]byte, 20)}, {Name: "b", Data: make([]byte, 7)}}},
		{Ext: "ctxb", Files: []file{{Name: "c", Data: make([]byte, 33)}}},
	})
	a, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for _, e := range a.Entries {
		if e.Offset < headerSize || e.Offset+e.Size() > int(a.Size) {
			t.Errorf("%s [%d,%d) outside %d", e.FileName, e.Offset, e.Offset+e.Size(), a.Size)
		}
	}
	if a.TotalSize()+headerSize > int(a.Size) {
		t.Fatalf("entries %d + header exceed declared size %d", a.TotalSize(), a.Size)
	}
}

func TestRejects(t *testing.T) {
	good := buildSystem("GAR\x02", "SYSTEM", []group{{Ext: "cmb", Files: []file{{Name: "m", Data: make([]byte, 16)}}}})

	badCodename := append([]byte(nil), good...)
	copy(badCodename[24:32], "other\x00\x00\x00")
	if _, err := Parse(badCodename); !errors.Is(err, ErrUnsupportedVariant) {
		t.Errorf("codename: err = %v", err)
	}

	badSig := append([]byte(nil), good...)
	copy(badSig, "GAR\x03")
	if _, err := Parse(badSig); !errors.Is(err, ErrUnsupportedVariant) {
		t.Errorf("signature: err = %v", err)
	}

	// Shrink the declared size below the payload end.
	short := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(short[4:], uint32(len(good)-8))
	if _, err := Parse(short); !errors.Is(err, ErrCorruptArchive) {
		t.Errorf("declared size: err = %v", err)
	}

	if _, err := Parse(good[:len(good)-8]); !errors.Is(err, ErrCorruptArchive) {
		t.Errorf("truncated: err = %v", err)
	}
}

func TestExpandNested(t *testing.T) {
	inner := buildSystem("GAR\x02", "SYSTEM", []group{{Ext: "cmb", Files: []file{{Name: "deep", Data: make([]byte, 8)}}}})
	middle := buildSystem("GAR\x02", "SYSTEM", []group{{Ext: "gar", Files: []file{{Name: "inner", Data: inner}}}})
	outer := buildSystem("GAR\x02", "SYSTEM", []group{
		{Ext: "gar", Files: []file{{Name: "middle", Data: middle}}},
		{Ext: "ctxb", Files: []file{{Name: "skin", Data: make([]byte, 4)}}},
	})

	a, err := Parse(outer)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := Expand(a, 0); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	var paths []string
	Walk(a, func(p string, _ *Entry) error {
		paths = append(paths, p)
		return nil
	})
	want := []string{"middle.gar", "middle.gar/inner.gar", "middle.gar/inner.gar/deep.cmb", "skin.ctxb"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths = %v, want %v", paths, want)
		}
	}

	ordered := a.TexturesFirst()
	if ordered[0].FileName != "skin.ctxb" || ordered[1].FileName != "deep.cmb" {
		t.Fatalf("TexturesFirst starts with %s, %s", ordered[0].FileName, ordered[1].FileName)
	}

	b, _ := Parse(outer)
	if err := Expand(b, 1); !errors.Is(err, ErrNestingTooDeep) {
		t.Fatalf("depth 1: err = %v, want ErrNestingTooDeep", err)
	}
}

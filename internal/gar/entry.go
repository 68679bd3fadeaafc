package gar

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

// MaxDepth bounds archive-in-archive expansion.
const MaxDepth = 16

// ErrNestingTooDeep is returned by Expand past MaxDepth.
var ErrNestingTooDeep = errors.New("archive nesting too deep")

// Kind classifies an entry for import ordering.
type Kind int

const (
	KindOther Kind = iota
	KindTexture
	KindModel
	KindAnimation
	KindArchive
)

func (k Kind) String() string {
	switch k {
	case KindTexture:
		return "texture"
	case KindModel:
		return "model"
	case KindAnimation:
		return "animation"
	case KindArchive:
		return "archive"
	}
	return "other"
}

// Entry is one file of an archive. Data aliases the archive buffer.
type Entry struct {
	Name     string
	Ext      string
	FileName string
	Offset   int
	Data     []byte

	// Archive is set by Expand when the entry is itself an archive.
	Archive *Archive
}

func (e *Entry) Size() int { return len(e.Data) }

func (e *Entry) Kind() Kind {
	switch strings.ToLower(e.Ext) {
	case "ctxb":
		return KindTexture
	case "cmb":
		return KindModel
	case "csab":
		return KindAnimation
	case "zar", "gar":
		return KindArchive
	}
	if IsArchive(e.Data) {
		return KindArchive
	}
	return KindOther
}

// Expand parses nested archives in place, up to maxDepth levels below a.
// maxDepth <= 0 means MaxDepth.
func Expand(a *Archive, maxDepth int) error {
	if maxDepth <= 0 {
		maxDepth = MaxDepth
	}
	return expand(a, 1, maxDepth)
}

func expand(a *Archive, depth, maxDepth int) error {
	for i := range a.Entries {
		e := &a.Entries[i]
		if e.Kind() != KindArchive || e.Archive != nil {
			continue
		}
		if depth > maxDepth {
			return fmt.Errorf("gar: %s at depth %d: %w", e.FileName, depth, ErrNestingTooDeep)
		}
		child, err := Parse(e.Data)
		if err != nil {
			return fmt.Errorf("gar: nested %s: %w", e.FileName, err)
		}
		if err := expand(child, depth+1, maxDepth); err != nil {
			return err
		}
		e.Archive = child
	}
	return nil
}

// Walk visits every entry depth-first. p is the slash-joined path of the entry
// inside a. Nested archives are visited after their own entry.
func Walk(a *Archive, fn func(p string, e *Entry) error) error {
	return walk(a, "", fn)
}

func walk(a *Archive, prefix string, fn func(string, *Entry) error) error {
	for i := range a.Entries {
		e := &a.Entries[i]
		p := path.Join(prefix, e.FileName)
		if err := fn(p, e); err != nil {
			return err
		}
		if e.Archive != nil {
			if err := walk(e.Archive, p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// TexturesFirst lists every entry of a and its expanded children, textures
// before models before everything else. Order within a kind is walk order.
func (a *Archive) TexturesFirst() []*Entry {
	var out []*Entry
	Walk(a, func(_ string, e *Entry) error {
		out = append(out, e)
		return nil
	})
	rank := func(e *Entry) int {
		switch e.Kind() {
		case KindTexture:
			return 0
		case KindModel:
			return 1
		}
		return 2
	}
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}

// TotalSize sums the payload lengths of a's own entries.
func (a *Archive) TotalSize() int {
	n := 0
	for _, e := range a.Entries {
		n += e.Size()
	}
	return n
}

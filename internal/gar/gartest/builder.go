// Package gartest lays out small ZAR/GAR archives in memory for tests.
package gartest

import (
	"bytes"
	"encoding/binary"
)

// HeaderSize is the fixed archive header length.
const HeaderSize = 32

type File struct {
	Name string
	Data []byte
}

// Group is a system-layout group; every member gets Ext as its extension.
type Group struct {
	Ext   string
	Files []File
}

func putHeader(b []byte, sig, codename string, groups, files int, groupOff, infoOff, dataOff int) {
	copy(b, sig)
	binary.LittleEndian.PutUint16(b[8:], uint16(groups))
	binary.LittleEndian.PutUint16(b[10:], uint16(files))
	binary.LittleEndian.PutUint32(b[12:], uint32(groupOff))
	binary.LittleEndian.PutUint32(b[16:], uint32(infoOff))
	binary.LittleEndian.PutUint32(b[20:], uint32(dataOff))
	copy(b[24:32], codename)
}

func appendString(b []byte, s string) ([]byte, int) {
	off := len(b)
	b = append(b, s...)
	return append(b, 0), off
}

func pad4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

// System lays out a system-group archive: header, groups, infos, strings,
// payloads.
func System(sig, codename string, groups []Group) []byte {
	n := 0
	for _, g := range groups {
		n += len(g.Files)
	}
	groupOff := HeaderSize
	infoOff := groupOff + 32*len(groups)
	b := make([]byte, infoOff+16*n)

	var groupNames, fileNames []int
	var off int
	for _, g := range groups {
		b, off = appendString(b, g.Ext)
		groupNames = append(groupNames, off)
		for _, f := range g.Files {
			b, off = appendString(b, f.Name)
			fileNames = append(fileNames, off)
		}
	}
	b = pad4(b)
	dataOff := len(b)

	fi := 0
	for gi, g := range groups {
		rec := b[groupOff+32*gi:]
		binary.LittleEndian.PutUint32(rec[0:], uint32(len(g.Files)))
		binary.LittleEndian.PutUint32(rec[8:], uint32(infoOff+16*fi))
		binary.LittleEndian.PutUint32(rec[12:], uint32(groupNames[gi]))
		for _, f := range g.Files {
			info := b[infoOff+16*fi:]
			binary.LittleEndian.PutUint32(info[0:], uint32(len(f.Data)))
			binary.LittleEndian.PutUint32(info[4:], uint32(len(b)))
			binary.LittleEndian.PutUint32(info[8:], uint32(fileNames[fi]))
			b = append(b, f.Data...)
			fi++
		}
	}
	b = pad4(b)
	putHeader(b, sig, codename, len(groups), n, groupOff, infoOff, dataOff)
	binary.LittleEndian.PutUint32(b[4:], uint32(len(b)))
	return b
}

// Indexed lays out a queen/jenkins archive with one group. File names must
// carry an extension. Group ids are 100, 101, ...
func Indexed(sig, codename string, files []File) []byte {
	zar := sig == "ZAR\x01"
	recSize := 12
	if zar {
		recSize = 8
	}
	groupOff := HeaderSize
	infoOff := groupOff + 16 + 4*len(files)
	b := make([]byte, infoOff+recSize*len(files))
	binary.LittleEndian.PutUint32(b[groupOff:], uint32(len(files)))
	for i := range files {
		binary.LittleEndian.PutUint32(b[groupOff+16+4*i:], uint32(100+i))
	}

	var off int
	for i, f := range files {
		rec := b[infoOff+recSize*i:]
		binary.LittleEndian.PutUint32(rec, uint32(len(f.Data)))
		var stemOff int
		b, stemOff = appendString(b, f.Name[:bytes.IndexByte([]byte(f.Name), '.')])
		b, off = appendString(b, f.Name)
		rec = b[infoOff+recSize*i:]
		if zar {
			binary.LittleEndian.PutUint32(rec[4:], uint32(off))
		} else {
			binary.LittleEndian.PutUint32(rec[4:], uint32(stemOff))
			binary.LittleEndian.PutUint32(rec[8:], uint32(off))
		}
	}
	b = pad4(b)
	dataOff := len(b)
	b = append(b, make([]byte, 4*len(files))...)
	for i, f := range files {
		binary.LittleEndian.PutUint32(b[dataOff+4*i:], uint32(len(b)))
		b = append(b, f.Data...)
	}
	putHeader(b, sig, codename, 1, len(files), groupOff, infoOff, dataOff)
	binary.LittleEndian.PutUint32(b[4:], uint32(len(b)))
	return b
}

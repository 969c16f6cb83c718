package linker

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"unsafe"

	"github.com/uld-linker/uld/pkg/utils"
)

const ArchiveMagic = "!<arch>\n"
const ArHdrSize = int(unsafe.Sizeof(ArHdr{}))

// ArHdr is the 60-byte member header of a System V ar(1) archive. All
// fields are ASCII.
type ArHdr struct {
	Name [16]byte
	Date [12]byte
	Uid  [6]byte
	Gid  [6]byte
	Mode [8]byte
	Size [10]byte
	Fmag [2]byte
}

func (a *ArHdr) hasPrefix(s string) bool {
	return strings.HasPrefix(string(a.Name[:]), s)
}

func (a *ArHdr) IsStrtab() bool {
	return a.hasPrefix("// ")
}

func (a *ArHdr) IsSymtab() bool {
	return a.hasPrefix("/ ") || a.hasPrefix("/SYM64/ ")
}

func (a *ArHdr) IsSymtab64() bool {
	return a.hasPrefix("/SYM64/ ")
}

func (a *ArHdr) GetSize() (int, error) {
	size, err := strconv.Atoi(strings.TrimSpace(string(a.Size[:])))
	if err != nil || size < 0 {
		return 0, fmt.Errorf("bad member size field %q", string(a.Size[:]))
	}
	return size, nil
}

// ReadName resolves the member name, looking long names ("/123") up in
// the extended-name table.
func (a *ArHdr) ReadName(strTab []byte) (string, error) {
	if a.hasPrefix("/") {
		start, err := strconv.Atoi(strings.TrimSpace(string(a.Name[1:])))
		if err != nil || start < 0 || start >= len(strTab) {
			return "", fmt.Errorf("bad long name reference %q", string(a.Name[:]))
		}
		end := bytes.Index(strTab[start:], []byte("/\n"))
		if end == -1 {
			return "", fmt.Errorf("unterminated long name at offset %d", start)
		}
		return string(strTab[start : start+end]), nil
	}

	end := bytes.IndexByte(a.Name[:], '/')
	if end == -1 {
		// Some archivers omit the terminator; fall back to trimming.
		return strings.TrimRight(string(a.Name[:]), " "), nil
	}
	return string(a.Name[:end]), nil
}

// ArchiveMember is one named member and its byte range. Nothing is parsed
// as an object until the resolver pulls the member.
type ArchiveMember struct {
	Name string
	// HdrOffset is the member header's position in the archive; the
	// symbol index refers to members by this offset.
	HdrOffset uint64
	Content   []byte
}

// Archive is a lazily extracted static archive: ordered members, the
// symbol index mapping exported names to members, and a memoization table
// so no member is ever parsed twice.
type Archive struct {
	File        *File
	Members     []*ArchiveMember
	SymbolIndex map[string]uint64

	byOffset  map[uint64]*ArchiveMember
	extracted map[uint64]*ObjectFile
}

func (a *Archive) format(reason string, args ...any) error {
	return &ArchiveFormatError{
		File:   a.File.Name,
		Reason: fmt.Sprintf(reason, args...),
	}
}

func NewArchive(file *File) (*Archive, error) {
	a := &Archive{
		File:        file,
		SymbolIndex: make(map[string]uint64),
		byOffset:    make(map[uint64]*ArchiveMember),
		extracted:   make(map[uint64]*ObjectFile),
	}

	content := file.Content
	if !bytes.HasPrefix(content, []byte(ArchiveMagic)) {
		return nil, a.format("missing global header")
	}

	var strTab []byte
	var symtabData []byte
	symtab64 := false

	pos := len(ArchiveMagic)
	for len(content)-pos > 1 {
		if pos%2 == 1 {
			pos++
		}
		if pos+ArHdrSize > len(content) {
			return nil, a.format("truncated member header at offset %d", pos)
		}

		var hdr ArHdr
		utils.Read(content[pos:], &hdr)
		if string(hdr.Fmag[:]) != "`\n" {
			return nil, a.format("bad member end marker at offset %d", pos)
		}

		size, err := hdr.GetSize()
		if err != nil {
			return nil, a.format("offset %d: %v", pos, err)
		}

		hdrOffset := uint64(pos)
		dataStart := pos + ArHdrSize
		dataEnd := dataStart + size
		if dataEnd > len(content) {
			return nil, a.format("member at offset %d overruns archive", pos)
		}
		data := content[dataStart:dataEnd]
		pos = dataEnd

		switch {
		case hdr.IsSymtab():
			symtabData = data
			symtab64 = hdr.IsSymtab64()
		case hdr.IsStrtab():
			strTab = data
		default:
			name, err := hdr.ReadName(strTab)
			if err != nil {
				return nil, a.format("offset %d: %v", hdrOffset, err)
			}
			member := &ArchiveMember{
				Name:      name,
				HdrOffset: hdrOffset,
				Content:   data,
			}
			a.Members = append(a.Members, member)
			a.byOffset[hdrOffset] = member
		}
	}

	if symtabData != nil {
		if err := a.parseSymbolIndex(symtabData, symtab64); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// parseSymbolIndex reads the armap: a big-endian count, that many
// big-endian member offsets, then the NUL-terminated exported names in
// the same order.
func (a *Archive) parseSymbolIndex(data []byte, is64 bool) error {
	wordSize := 4
	if is64 {
		wordSize = 8
	}
	if len(data) < wordSize {
		return a.format("symbol index too short")
	}

	readWord := func(b []byte) uint64 {
		if is64 {
			return binary.BigEndian.Uint64(b)
		}
		return uint64(binary.BigEndian.Uint32(b))
	}

	count := readWord(data)
	offsets := data[wordSize:]
	if count > uint64(len(offsets))/uint64(wordSize) {
		return a.format("symbol index count %d overruns member", count)
	}
	names := offsets[count*uint64(wordSize):]

	for i := uint64(0); i < count; i++ {
		end := bytes.IndexByte(names, 0)
		if end < 0 {
			return a.format("symbol index: unterminated name")
		}
		name := string(names[:end])
		names = names[end+1:]

		off := readWord(offsets[i*uint64(wordSize):])
		if _, ok := a.byOffset[off]; !ok {
			return a.format("symbol index: %q points at offset %d with no member",
				name, off)
		}
		// First entry wins when an archive exports a name twice.
		if _, ok := a.SymbolIndex[name]; !ok {
			a.SymbolIndex[name] = off
		}
	}
	return nil
}

// Extracted reports whether the member at offset has been materialized.
func (a *Archive) Extracted(offset uint64) bool {
	_, ok := a.extracted[offset]
	return ok
}

// MemberAt parses the member at the given header offset into an
// ObjectFile, memoized: repeated resolution passes never reparse the same
// bytes.
func (a *Archive) MemberAt(ctx *Context, offset uint64) (*ObjectFile, error) {
	if obj, ok := a.extracted[offset]; ok {
		return obj, nil
	}

	member, ok := a.byOffset[offset]
	if !ok {
		return nil, a.format("no member at offset %d", offset)
	}

	file := &File{
		Name:    fmt.Sprintf("%s(%s)", a.File.Name, member.Name),
		Content: member.Content,
		Parent:  a.File,
	}
	if GetFileTypeFromContent(file.Content) != FileTypeObject {
		return nil, a.format("member %s is not a relocatable object", member.Name)
	}

	obj, err := CreateObjectFile(ctx, file, true)
	if err != nil {
		return nil, err
	}
	a.extracted[offset] = obj
	return obj, nil
}

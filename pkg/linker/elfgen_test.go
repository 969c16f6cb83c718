package linker

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/uld-linker/uld/pkg/utils"
)

// Builders for synthesized inputs. Tests describe objects as section and
// symbol specs; the builders assemble real ELF64 and ar(1) bytes so the
// production parsers see exactly what a compiler or archiver would emit.

// secSpec is one declared section. Section indices seen by symbols and
// relocations are 1-based in declaration order. A SHT_RELA section names
// its target section via info; its link is fixed up to the symbol table
// automatically.
type secSpec struct {
	name    string
	typ     elf.SectionType
	flags   elf.SectionFlag
	data    []byte
	size    uint64 // SHT_NOBITS only
	align   uint64
	entSize uint64
	info    uint32
}

// symSpec is one symbol table entry. Local symbols must precede globals.
type symSpec struct {
	name  string
	bind  elf.SymBind
	typ   elf.SymType
	shndx uint16
	val   uint64
}

// buildObject assembles a relocatable ELF64 x86-64 object. The declared
// sections come first, then .symtab, .strtab and .shstrtab.
func buildObject(t *testing.T, secs []secSpec, syms []symSpec) []byte {
	t.Helper()

	n := len(secs)
	symtabIdx := n + 1

	shstr := []byte{0}
	nameOff := func(s string) uint32 {
		off := uint32(len(shstr))
		shstr = append(shstr, s...)
		shstr = append(shstr, 0)
		return off
	}

	strtab := []byte{0}
	symData := make([]byte, (len(syms)+1)*SymSize)
	firstGlobal := 1
	for i, ss := range syms {
		var nameOffset uint32
		if ss.name != "" {
			nameOffset = uint32(len(strtab))
			strtab = append(strtab, ss.name...)
			strtab = append(strtab, 0)
		}
		utils.Write[Sym](symData[(i+1)*SymSize:], Sym{
			Name:  nameOffset,
			Info:  uint8(ss.bind)<<4 | uint8(ss.typ),
			Shndx: ss.shndx,
			Val:   ss.val,
		})
		if ss.bind == elf.STB_LOCAL {
			firstGlobal = i + 2
		}
	}

	shdrs := make([]Shdr, n+4)
	datas := make([][]byte, n+4)
	for i, ss := range secs {
		align := ss.align
		if align == 0 {
			align = 1
		}
		shdr := Shdr{
			Name:      nameOff(ss.name),
			Type:      uint32(ss.typ),
			Flags:     uint64(ss.flags),
			Size:      uint64(len(ss.data)),
			Info:      ss.info,
			AddrAlign: align,
			EntSize:   ss.entSize,
		}
		if ss.typ == elf.SHT_NOBITS {
			shdr.Size = ss.size
		}
		if ss.typ == elf.SHT_RELA {
			shdr.Link = uint32(symtabIdx)
			shdr.EntSize = uint64(RelaSize)
		}
		shdrs[i+1] = shdr
		datas[i+1] = ss.data
	}

	shdrs[symtabIdx] = Shdr{
		Name:      nameOff(".symtab"),
		Type:      uint32(elf.SHT_SYMTAB),
		Link:      uint32(symtabIdx + 1),
		Info:      uint32(firstGlobal),
		Size:      uint64(len(symData)),
		AddrAlign: 8,
		EntSize:   uint64(SymSize),
	}
	datas[symtabIdx] = symData

	shdrs[symtabIdx+1] = Shdr{
		Name:      nameOff(".strtab"),
		Type:      uint32(elf.SHT_STRTAB),
		Size:      uint64(len(strtab)),
		AddrAlign: 1,
	}
	datas[symtabIdx+1] = strtab

	shstrName := nameOff(".shstrtab")
	shdrs[symtabIdx+2] = Shdr{
		Name:      shstrName,
		Type:      uint32(elf.SHT_STRTAB),
		Size:      uint64(len(shstr)),
		AddrAlign: 1,
	}
	datas[symtabIdx+2] = shstr

	off := uint64(EhdrSize)
	for i := 1; i < len(shdrs); i++ {
		if elf.SectionType(shdrs[i].Type) == elf.SHT_NOBITS || len(datas[i]) == 0 {
			shdrs[i].Offset = off
			continue
		}
		off = utils.AlignTo(off, shdrs[i].AddrAlign)
		shdrs[i].Offset = off
		off += shdrs[i].Size
	}
	shoff := utils.AlignTo(off, 8)
	buf := make([]byte, shoff+uint64(len(shdrs))*uint64(ShdrSize))

	ehdr := Ehdr{
		Type:      uint16(elf.ET_REL),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		ShOff:     shoff,
		EhSize:    uint16(EhdrSize),
		ShEntSize: uint16(ShdrSize),
		ShNum:     uint16(len(shdrs)),
		ShStrndx:  uint16(symtabIdx + 2),
	}
	WriteMagic(ehdr.Ident[:])
	ehdr.Ident[elf.EI_CLASS] = uint8(elf.ELFCLASS64)
	ehdr.Ident[elf.EI_DATA] = uint8(elf.ELFDATA2LSB)
	ehdr.Ident[elf.EI_VERSION] = uint8(elf.EV_CURRENT)
	utils.Write[Ehdr](buf, ehdr)

	for i := 1; i < len(shdrs); i++ {
		if elf.SectionType(shdrs[i].Type) != elf.SHT_NOBITS {
			copy(buf[shdrs[i].Offset:], datas[i])
		}
		utils.Write[Shdr](buf[shoff+uint64(i)*uint64(ShdrSize):], shdrs[i])
	}
	return buf
}

func relaData(rels ...Rela) []byte {
	buf := make([]byte, len(rels)*RelaSize)
	for i, r := range rels {
		utils.Write[Rela](buf[i*RelaSize:], r)
	}
	return buf
}

type arMemberSpec struct {
	name string
	data []byte
}

// buildArchive assembles a System V archive. armap maps each exported
// name to the index of its defining member; names longer than 15
// characters go through the extended-name table.
func buildArchive(t *testing.T, members []arMemberSpec, armap map[string]int) []byte {
	t.Helper()

	var strtab []byte
	longOff := make(map[int]int)
	for i, m := range members {
		if len(m.name)+1 > 16 {
			longOff[i] = len(strtab)
			strtab = append(strtab, m.name...)
			strtab = append(strtab, '/', '\n')
		}
	}

	names := make([]string, 0, len(armap))
	for name := range armap {
		names = append(names, name)
	}
	sort.Strings(names)

	armapSize := 0
	if len(armap) > 0 {
		armapSize = 4 + 4*len(armap)
		for _, name := range names {
			armapSize += len(name) + 1
		}
	}

	pos := len(ArchiveMagic)
	advance := func(size int) {
		pos += ArHdrSize + size
		if pos%2 == 1 {
			pos++
		}
	}
	if armapSize > 0 {
		advance(armapSize)
	}
	if len(strtab) > 0 {
		advance(len(strtab))
	}
	offsets := make([]uint64, len(members))
	for i, m := range members {
		offsets[i] = uint64(pos)
		advance(len(m.data))
	}

	var buf bytes.Buffer
	buf.WriteString(ArchiveMagic)

	pad16 := func(s string, width int) string {
		return s + strings.Repeat(" ", width-len(s))
	}
	writeHdr := func(name string, size int) {
		var hdr ArHdr
		copy(hdr.Name[:], pad16(name, 16))
		copy(hdr.Date[:], pad16("0", 12))
		copy(hdr.Uid[:], pad16("0", 6))
		copy(hdr.Gid[:], pad16("0", 6))
		copy(hdr.Mode[:], pad16("644", 8))
		copy(hdr.Size[:], pad16(fmt.Sprintf("%d", size), 10))
		copy(hdr.Fmag[:], "`\n")
		hb := make([]byte, ArHdrSize)
		utils.Write[ArHdr](hb, hdr)
		buf.Write(hb)
	}
	padTo := func() {
		if buf.Len()%2 == 1 {
			buf.WriteByte('\n')
		}
	}

	if armapSize > 0 {
		writeHdr("/", armapSize)
		word := make([]byte, 4)
		binary.BigEndian.PutUint32(word, uint32(len(armap)))
		buf.Write(word)
		for _, name := range names {
			binary.BigEndian.PutUint32(word, uint32(offsets[armap[name]]))
			buf.Write(word)
		}
		for _, name := range names {
			buf.WriteString(name)
			buf.WriteByte(0)
		}
		padTo()
	}
	if len(strtab) > 0 {
		writeHdr("//", len(strtab))
		buf.Write(strtab)
		padTo()
	}
	for i, m := range members {
		name := m.name + "/"
		if off, ok := longOff[i]; ok {
			name = fmt.Sprintf("/%d", off)
		}
		writeHdr(name, len(m.data))
		buf.Write(m.data)
		padTo()
	}
	return buf.Bytes()
}

func testContext() *Context {
	ctx := NewContext()
	ctx.Args.Machine = MachineTypeX86_64
	return ctx
}

func writeTemp(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func memFile(name string, data []byte) *File {
	return &File{Name: name, Content: data}
}

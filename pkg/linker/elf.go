package linker

import (
	"bytes"
	"debug/elf"
	"unsafe"
)

const EhdrSize = int(unsafe.Sizeof(Ehdr{}))
const ShdrSize = int(unsafe.Sizeof(Shdr{}))
const PhdrSize = int(unsafe.Sizeof(Phdr{}))
const SymSize = int(unsafe.Sizeof(Sym{}))
const RelaSize = int(unsafe.Sizeof(Rela{}))

type Ehdr struct {
	Ident     [16]uint8
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	PhOff     uint64
	ShOff     uint64
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrndx  uint16
}

type Shdr struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

type Phdr struct {
	Type     uint32
	Flags    uint32
	Offset   uint64
	VAddr    uint64
	PAddr    uint64
	FileSize uint64
	MemSize  uint64
	Align    uint64
}

type Sym struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Val   uint64
	Size  uint64
}

// Rela is the ELF64 relocation entry with explicit addend. x86-64 only
// uses SHT_RELA.
type Rela struct {
	Offset uint64
	Type   uint32
	Sym    uint32
	Addend int64
}

func (s *Sym) Bind() elf.SymBind {
	return elf.SymBind(s.Info >> 4)
}

func (s *Sym) SymType() elf.SymType {
	return elf.SymType(s.Info & 0xf)
}

func (s *Sym) IsAbs() bool {
	return s.Shndx == uint16(elf.SHN_ABS)
}

func (s *Sym) IsUndef() bool {
	return s.Shndx == uint16(elf.SHN_UNDEF)
}

func (s *Sym) IsCommon() bool {
	return s.Shndx == uint16(elf.SHN_COMMON)
}

func (s *Sym) IsWeak() bool {
	return s.Bind() == elf.STB_WEAK
}

// ElfGetName reads the NUL-terminated string at offset in strTab. The
// offset must have been bounds-checked at parse time.
func ElfGetName(strTab []byte, offset uint32) string {
	length := bytes.IndexByte(strTab[offset:], 0)
	if length < 0 {
		return string(strTab[offset:])
	}
	return string(strTab[offset : int(offset)+length])
}

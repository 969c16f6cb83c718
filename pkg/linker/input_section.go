package linker

import (
	"debug/elf"
	"math"
	"math/bits"

	"github.com/uld-linker/uld/pkg/utils"
)

// InputSection is one contributed section of one object file. Offset is
// its position inside the owning OutputSection once layout has run.
type InputSection struct {
	File     *ObjectFile
	Contents []byte
	Shndx    uint32
	ShSize   uint32
	IsAlive  bool
	P2Align  uint8

	Offset        uint32
	OutputSection *OutputSection

	RelsecIdx uint32
	Rels      []Rela
}

func NewInputSection(ctx *Context, name string, file *ObjectFile, shndx uint32) (*InputSection, error) {
	s := &InputSection{
		File:      file,
		Shndx:     shndx,
		IsAlive:   true,
		Offset:    math.MaxUint32,
		RelsecIdx: math.MaxUint32,
	}

	shdr := s.Shdr()
	contents, err := file.GetBytesFromShdr(shdr)
	if err != nil {
		return nil, err
	}
	s.Contents = contents
	s.ShSize = uint32(shdr.Size)

	toP2Align := func(align uint64) uint8 {
		if align == 0 {
			return 0
		}
		return uint8(bits.TrailingZeros64(align))
	}
	s.P2Align = toP2Align(shdr.AddrAlign)

	s.OutputSection = GetOutputSection(ctx, name, uint64(shdr.Type), shdr.Flags)
	return s, nil
}

func (i *InputSection) Shdr() *Shdr {
	utils.Assert(i.Shndx < uint32(len(i.File.ElfSections)))
	return &i.File.ElfSections[i.Shndx]
}

func (i *InputSection) Name() string {
	return ElfGetName(i.File.ShStrtab, i.Shdr().Name)
}

// GetAddr is the section's final absolute base address, valid after
// layout.
func (i *InputSection) GetAddr() uint64 {
	return i.OutputSection.Shdr.Addr + uint64(i.Offset)
}

func (i *InputSection) WriteTo(ctx *Context, buf []byte) {
	if i.Shdr().Type == uint32(elf.SHT_NOBITS) || i.ShSize == 0 {
		return
	}

	copy(buf, i.Contents)

	if i.Shdr().Flags&uint64(elf.SHF_ALLOC) != 0 {
		i.ApplyRelocations(ctx, buf)
	}
}

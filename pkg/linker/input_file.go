package linker

import (
	"debug/elf"
	"fmt"

	"github.com/uld-linker/uld/pkg/utils"
)

// InputFile holds the raw ELF view of one relocatable object: the section
// header table, the symbol table and both string tables. Every reference
// into a string table is bounds-checked here, at parse time, so later
// passes can index freely.
type InputFile struct {
	File         *File
	ElfSections  []Shdr
	ElfSyms      []Sym
	FirstGlobal  int
	ShStrtab     []byte
	SymbolStrtab []byte

	Symbols      []*Symbol
	LocalSymbols []Symbol
}

func (f *InputFile) Name() string {
	return f.File.Name
}

func (f *InputFile) malformed(format string, args ...any) error {
	return &MalformedObjectError{
		File:   f.File.Name,
		Reason: fmt.Sprintf(format, args...),
	}
}

// parseElf reads the section header table and the section-name string
// table. The symbol table is picked up later by ObjectFile.Parse.
func (f *InputFile) parseElf() error {
	content := f.File.Content
	if len(content) < EhdrSize {
		return f.malformed("file too small: %d bytes", len(content))
	}
	if !CheckMagic(content) {
		return f.malformed("not an ELF file")
	}

	var ehdr Ehdr
	utils.Read(content, &ehdr)

	if ehdr.ShOff > uint64(len(content)) ||
		uint64(len(content))-ehdr.ShOff < uint64(ShdrSize) {
		return f.malformed("section header table out of range")
	}

	var first Shdr
	utils.Read(content[ehdr.ShOff:], &first)

	// ShNum of zero means the real count lives in the first header.
	numSections := uint64(ehdr.ShNum)
	if numSections == 0 {
		numSections = first.Size
	}
	if numSections > (uint64(len(content))-ehdr.ShOff)/uint64(ShdrSize) {
		return f.malformed("section header table out of range")
	}

	f.ElfSections = make([]Shdr, 0, numSections)
	f.ElfSections = append(f.ElfSections, first)
	rest := content[ehdr.ShOff:]
	for i := uint64(1); i < numSections; i++ {
		rest = rest[ShdrSize:]
		var shdr Shdr
		utils.Read(rest, &shdr)
		f.ElfSections = append(f.ElfSections, shdr)
	}

	shstrndx := uint64(ehdr.ShStrndx)
	if ehdr.ShStrndx == uint16(elf.SHN_XINDEX) {
		shstrndx = uint64(first.Link)
	}
	if shstrndx >= uint64(len(f.ElfSections)) {
		return f.malformed("bad section name string table index %d", shstrndx)
	}

	var err error
	f.ShStrtab, err = f.GetBytesFromIdx(int64(shstrndx))
	if err != nil {
		return err
	}

	for i := range f.ElfSections {
		if uint64(f.ElfSections[i].Name) >= uint64(len(f.ShStrtab)) &&
			f.ElfSections[i].Name != 0 {
			return f.malformed("section %d: name offset out of range", i)
		}
	}
	return nil
}

func (f *InputFile) GetBytesFromShdr(s *Shdr) ([]byte, error) {
	if s.Type == uint32(elf.SHT_NOBITS) {
		return nil, nil
	}
	end := s.Offset + s.Size
	if end < s.Offset || end > uint64(len(f.File.Content)) {
		return nil, f.malformed("section data out of range: offset 0x%x size 0x%x",
			s.Offset, s.Size)
	}
	return f.File.Content[s.Offset:end], nil
}

func (f *InputFile) GetBytesFromIdx(idx int64) ([]byte, error) {
	if idx < 0 || idx >= int64(len(f.ElfSections)) {
		return nil, f.malformed("section index %d out of range", idx)
	}
	return f.GetBytesFromShdr(&f.ElfSections[idx])
}

func (f *InputFile) FindSection(ty uint32) *Shdr {
	for i := range f.ElfSections {
		if f.ElfSections[i].Type == ty {
			return &f.ElfSections[i]
		}
	}
	return nil
}

func (f *InputFile) FillUpElfSyms(s *Shdr) error {
	bs, err := f.GetBytesFromShdr(s)
	if err != nil {
		return err
	}
	if len(bs)%SymSize != 0 {
		return f.malformed("symbol table size 0x%x is not a multiple of %d",
			len(bs), SymSize)
	}
	f.ElfSyms = utils.ReadSlice[Sym](bs, SymSize)
	return nil
}

func (f *InputFile) GetEhdr() Ehdr {
	var ehdr Ehdr
	utils.Read(f.File.Content, &ehdr)
	return ehdr
}

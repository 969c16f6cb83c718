package linker

import (
	"bytes"
	"debug/elf"
	"math"

	"github.com/uld-linker/uld/pkg/utils"
)

type ObjectFile struct {
	InputFile
	SymtabSec         *Shdr
	SymtabShndxSec    []uint32
	Sections          []*InputSection
	MergeableSections []*MergeableSection
	InArchive         bool
}

func NewObjectFile(file *File, inArchive bool) *ObjectFile {
	o := &ObjectFile{InputFile: InputFile{File: file}}
	o.InArchive = inArchive
	return o
}

// CreateObjectFile parses one relocatable object. The machine-type check
// runs first: an object for a different target can never be linked, so
// that failure is immediate.
func CreateObjectFile(ctx *Context, file *File, inArchive bool) (*ObjectFile, error) {
	if err := CheckFileCompatibility(ctx, file); err != nil {
		return nil, err
	}

	obj := NewObjectFile(file, inArchive)
	if err := obj.Parse(ctx); err != nil {
		return nil, err
	}
	return obj, nil
}

func (o *ObjectFile) Parse(ctx *Context) error {
	if err := o.parseElf(); err != nil {
		return err
	}

	o.SymtabSec = o.FindSection(uint32(elf.SHT_SYMTAB))
	if o.SymtabSec != nil {
		o.FirstGlobal = int(o.SymtabSec.Info)
		if err := o.FillUpElfSyms(o.SymtabSec); err != nil {
			return err
		}
		if o.FirstGlobal > len(o.ElfSyms) {
			return o.malformed("first global symbol index %d out of range", o.FirstGlobal)
		}
		strtab, err := o.GetBytesFromIdx(int64(o.SymtabSec.Link))
		if err != nil {
			return err
		}
		o.SymbolStrtab = strtab

		for i := range o.ElfSyms {
			if uint64(o.ElfSyms[i].Name) >= uint64(len(o.SymbolStrtab)) &&
				o.ElfSyms[i].Name != 0 {
				return o.malformed("symbol %d: name offset out of range", i)
			}
		}
	}

	if err := o.InitializeSections(ctx); err != nil {
		return err
	}
	if err := o.InitializeRelocations(); err != nil {
		return err
	}
	o.InitializeSymbols(ctx)
	if err := o.InitializeMergeableSections(ctx); err != nil {
		return err
	}
	o.SkipUnneededSections()
	return nil
}

func (o *ObjectFile) InitializeSections(ctx *Context) error {
	o.Sections = make([]*InputSection, len(o.ElfSections))
	for i := 0; i < len(o.ElfSections); i++ {
		shdr := &o.ElfSections[i]
		switch elf.SectionType(shdr.Type) {
		case elf.SHT_GROUP, elf.SHT_SYMTAB, elf.SHT_STRTAB, elf.SHT_REL,
			elf.SHT_RELA, elf.SHT_NULL:
			continue
		case elf.SHT_SYMTAB_SHNDX:
			if err := o.fillUpSymtabShndxSec(shdr); err != nil {
				return err
			}
		default:
			name := ElfGetName(o.ShStrtab, shdr.Name)
			isec, err := NewInputSection(ctx, name, o, uint32(i))
			if err != nil {
				return err
			}
			o.Sections[i] = isec
		}
	}
	return nil
}

// InitializeRelocations binds every SHT_RELA section to its target and
// validates each entry, so the relocation pass can trust symbol indices
// and offsets.
func (o *ObjectFile) InitializeRelocations() error {
	for i := 0; i < len(o.ElfSections); i++ {
		shdr := &o.ElfSections[i]
		if shdr.Type != uint32(elf.SHT_RELA) {
			continue
		}
		if shdr.Info >= uint32(len(o.Sections)) {
			return o.malformed("relocation section %d: bad target index %d", i, shdr.Info)
		}

		target := o.Sections[shdr.Info]
		if target == nil {
			continue
		}
		utils.Assert(target.RelsecIdx == math.MaxUint32)
		target.RelsecIdx = uint32(i)

		bs, err := o.GetBytesFromShdr(shdr)
		if err != nil {
			return err
		}
		if len(bs)%RelaSize != 0 {
			return o.malformed("relocation section %d: size is not a multiple of %d",
				i, RelaSize)
		}
		rels := utils.ReadSlice[Rela](bs, RelaSize)

		for _, rel := range rels {
			if rel.Sym >= uint32(len(o.ElfSyms)) {
				return o.malformed("relocation against bad symbol index %d", rel.Sym)
			}
			relType := elf.R_X86_64(rel.Type)
			if !supportedRelType(relType) {
				return o.malformed("unsupported relocation type %d", rel.Type)
			}
			// The patched field must fit inside the target section.
			if rel.Offset > uint64(target.ShSize) ||
				uint64(target.ShSize)-rel.Offset < relFieldWidth(relType) {
				return o.malformed("relocation offset 0x%x beyond section %s",
					rel.Offset, target.Name())
			}
		}
		target.Rels = rels
	}
	return nil
}

func (o *ObjectFile) fillUpSymtabShndxSec(s *Shdr) error {
	bs, err := o.GetBytesFromShdr(s)
	if err != nil {
		return err
	}
	o.SymtabShndxSec = utils.ReadSlice[uint32](bs, 4)
	return nil
}

func (o *ObjectFile) InitializeSymbols(ctx *Context) {
	if o.SymtabSec == nil {
		return
	}

	o.LocalSymbols = make([]Symbol, o.FirstGlobal)
	for i := 0; i < len(o.LocalSymbols); i++ {
		o.LocalSymbols[i] = *NewSymbol("")
	}
	if len(o.LocalSymbols) > 0 {
		o.LocalSymbols[0].File = o
	}

	// Index 0 is the null symbol; locals are file-private and resolve
	// right here.
	for i := 1; i < len(o.LocalSymbols); i++ {
		esym := &o.ElfSyms[i]
		sym := &o.LocalSymbols[i]
		sym.Name = ElfGetName(o.SymbolStrtab, esym.Name)
		sym.File = o
		sym.Value = esym.Val
		sym.SymIdx = i

		if !esym.IsAbs() && !esym.IsUndef() {
			sym.SetInputSection(o.GetSection(esym, i))
		}
	}

	o.Symbols = make([]*Symbol, len(o.ElfSyms))
	for i := 0; i < len(o.LocalSymbols); i++ {
		o.Symbols[i] = &o.LocalSymbols[i]
	}
	for i := len(o.LocalSymbols); i < len(o.ElfSyms); i++ {
		name := ElfGetName(o.SymbolStrtab, o.ElfSyms[i].Name)
		o.Symbols[i] = GetSymbolByName(ctx, name)
	}
}

func (o *ObjectFile) GetShndx(esym *Sym, idx int) int64 {
	utils.Assert(idx >= 0 && idx < len(o.ElfSyms))

	if esym.Shndx == uint16(elf.SHN_XINDEX) {
		if idx >= len(o.SymtabShndxSec) {
			return 0
		}
		return int64(o.SymtabShndxSec[idx])
	}
	return int64(esym.Shndx)
}

func (o *ObjectFile) GetSection(esym *Sym, idx int) *InputSection {
	shndx := o.GetShndx(esym, idx)
	if shndx < 0 || shndx >= int64(len(o.Sections)) {
		return nil
	}
	return o.Sections[shndx]
}

// ResolveSymbols merges this object's global definitions into the session
// table. Rules, in order: the first definition claims an empty slot; a
// strong definition overrides a weak one; a weak definition yields to any
// existing one; two strong definitions of the same name are an error
// naming both objects.
func (o *ObjectFile) ResolveSymbols(ctx *Context) error {
	for i := o.FirstGlobal; i < len(o.ElfSyms); i++ {
		sym := o.Symbols[i]
		esym := &o.ElfSyms[i]

		if esym.IsUndef() || esym.IsCommon() {
			continue
		}

		var isec *InputSection
		if !esym.IsAbs() {
			isec = o.GetSection(esym, i)
			if isec == nil {
				continue
			}
		}

		switch {
		case !sym.IsDefined():
			// First definition wins the slot.
		case esym.IsWeak():
			continue
		case sym.IsWeakDef():
			// Strong overrides weak.
		default:
			return &MultipleDefinitionError{
				Name:   sym.Name,
				First:  sym.File.Name(),
				Second: o.Name(),
			}
		}

		sym.File = o
		sym.SetInputSection(isec)
		sym.Value = esym.Val
		sym.SymIdx = i
	}
	return nil
}

// collectUndefined appends the names of this object's strong undefined
// references, in symbol table order. Weak undefined references are
// permitted and never pull archive members.
func (o *ObjectFile) collectUndefined(visit func(name string)) {
	for i := o.FirstGlobal; i < len(o.ElfSyms); i++ {
		esym := &o.ElfSyms[i]
		if esym.IsUndef() && !esym.IsWeak() {
			visit(o.Symbols[i].Name)
		}
	}
}

func (o *ObjectFile) InitializeMergeableSections(ctx *Context) error {
	o.MergeableSections = make([]*MergeableSection, len(o.Sections))
	for i := 0; i < len(o.Sections); i++ {
		isec := o.Sections[i]
		if isec != nil && isec.IsAlive &&
			isec.Shdr().Flags&uint64(elf.SHF_MERGE) != 0 {
			m, err := splitSection(ctx, isec)
			if err != nil {
				return err
			}
			o.MergeableSections[i] = m
			isec.IsAlive = false
		}
	}
	return nil
}

func findNull(data []byte, entSize int) int {
	if entSize == 1 {
		return bytes.IndexByte(data, 0)
	}

	for i := 0; i <= len(data)-entSize; i += entSize {
		if utils.AllZeros(data[i : i+entSize]) {
			return i
		}
	}
	return -1
}

// splitSection cuts a SHF_MERGE section into its constituent pieces:
// NUL-terminated strings for SHF_STRINGS sections, fixed-size records
// otherwise. The pieces are deduplicated across all inputs by the parent
// MergedSection.
func splitSection(ctx *Context, isec *InputSection) (*MergeableSection, error) {
	m := &MergeableSection{}
	shdr := isec.Shdr()

	m.Parent = GetMergedSectionInstance(ctx, isec.Name(), shdr.Type, shdr.Flags)
	m.P2Align = isec.P2Align

	data := isec.Contents
	offset := uint64(0)
	entSize := shdr.EntSize
	if entSize == 0 {
		entSize = 1
	}

	if shdr.Flags&uint64(elf.SHF_STRINGS) != 0 {
		for len(data) > 0 {
			end := findNull(data, int(entSize))
			if end == -1 {
				return nil, isec.File.malformed(
					"section %s: string is not null terminated", isec.Name())
			}

			sz := uint64(end) + entSize
			m.Strs = append(m.Strs, string(data[:sz]))
			m.FragOffsets = append(m.FragOffsets, uint32(offset))
			data = data[sz:]
			offset += sz
		}
	} else {
		if uint64(len(data))%entSize != 0 {
			return nil, isec.File.malformed(
				"section %s: size is not a multiple of entry size", isec.Name())
		}
		for len(data) > 0 {
			m.Strs = append(m.Strs, string(data[:entSize]))
			m.FragOffsets = append(m.FragOffsets, uint32(offset))
			data = data[entSize:]
			offset += entSize
		}
	}

	return m, nil
}

// RegisterSectionPieces rebinds symbols that live inside mergeable
// sections from their dead InputSection to the surviving fragment.
func (o *ObjectFile) RegisterSectionPieces() {
	for _, m := range o.MergeableSections {
		if m == nil {
			continue
		}

		m.Fragments = make([]*SectionFragment, 0, len(m.Strs))
		for i := 0; i < len(m.Strs); i++ {
			m.Fragments = append(m.Fragments,
				m.Parent.Insert(m.Strs[i], uint32(m.P2Align)))
		}
	}

	for i := 1; i < len(o.ElfSyms); i++ {
		sym := o.Symbols[i]
		esym := &o.ElfSyms[i]

		if sym.File != o || esym.IsAbs() || esym.IsUndef() || esym.IsCommon() {
			continue
		}
		// Section symbols stay bound to the dead input section; the
		// relocation pass picks their fragment by addend.
		if esym.SymType() == elf.STT_SECTION {
			continue
		}

		shndx := o.GetShndx(esym, i)
		if shndx < 0 || shndx >= int64(len(o.MergeableSections)) {
			continue
		}
		m := o.MergeableSections[shndx]
		if m == nil {
			continue
		}

		frag, fragOffset := m.GetFragment(uint32(esym.Val))
		if frag == nil {
			utils.Fatal("bad symbol value in mergeable section")
		}
		sym.SetSectionFragment(frag)
		sym.Value = uint64(fragOffset)
	}
}

// SkipUnneededSections drops sections that never reach the image:
// unwind tables and anything not allocatable (.comment, notes, debug
// info passthrough is out of scope).
func (o *ObjectFile) SkipUnneededSections() {
	for _, isec := range o.Sections {
		if isec == nil || !isec.IsAlive {
			continue
		}
		if isec.Name() == ".eh_frame" ||
			isec.Shdr().Flags&uint64(elf.SHF_ALLOC) == 0 {
			isec.IsAlive = false
		}
	}
}

// ScanRelocations flags symbols that need a GOT slot. GOT-relative
// references stay GOT-relative even in a static link; the slot simply
// holds the symbol's final absolute address.
func (o *ObjectFile) ScanRelocations() {
	for _, isec := range o.Sections {
		if isec == nil || !isec.IsAlive ||
			isec.Shdr().Flags&uint64(elf.SHF_ALLOC) == 0 {
			continue
		}
		for _, rel := range isec.Rels {
			switch elf.R_X86_64(rel.Type) {
			case elf.R_X86_64_GOTPCREL, elf.R_X86_64_GOTPCRELX,
				elf.R_X86_64_REX_GOTPCRELX:
				o.Symbols[rel.Sym].Flags |= NeedsGot
			}
		}
	}
}

package linker

import (
	"debug/elf"
	"math"

	"github.com/uld-linker/uld/pkg/utils"
)

// The supported relocation kinds are the closed set the x86-64 System V
// ABI uses in statically linked code. Everything else is rejected at
// parse time, so the apply loop only sees known kinds.
func supportedRelType(t elf.R_X86_64) bool {
	switch t {
	case elf.R_X86_64_NONE, elf.R_X86_64_64, elf.R_X86_64_PC64,
		elf.R_X86_64_32, elf.R_X86_64_32S, elf.R_X86_64_PC32,
		elf.R_X86_64_PLT32, elf.R_X86_64_GOTPCREL,
		elf.R_X86_64_GOTPCRELX, elf.R_X86_64_REX_GOTPCRELX:
		return true
	}
	return false
}

// relFieldWidth is the number of bytes a relocation kind patches.
func relFieldWidth(t elf.R_X86_64) uint64 {
	switch t {
	case elf.R_X86_64_NONE:
		return 0
	case elf.R_X86_64_64, elf.R_X86_64_PC64:
		return 8
	}
	return 4
}

// ApplyRelocations patches this section's bytes in base using final
// addresses. Overflows are collected, not fatal: the whole link's
// overflow picture is reported in one run.
func (i *InputSection) ApplyRelocations(ctx *Context, base []byte) {
	for _, rel := range i.Rels {
		relType := elf.R_X86_64(rel.Type)
		if relType == elf.R_X86_64_NONE {
			continue
		}

		sym := i.File.Symbols[rel.Sym]
		refEsym := &i.File.ElfSyms[rel.Sym]

		if !sym.IsDefined() && sym.SectionFragment == nil {
			if refEsym.IsUndef() && refEsym.IsWeak() {
				// Permitted: a weak undefined reference resolves to
				// address zero.
			} else if refEsym.IsAbs() {
				// Absolute locals carry their value directly.
			} else {
				// Resolution guarantees an address for everything else;
				// reaching here is a linker bug.
				utils.Fatal("relocation against unresolved symbol " + sym.Name)
			}
		}

		S := sym.GetAddr()
		A := rel.Addend
		P := i.GetAddr() + rel.Offset
		loc := base[rel.Offset:]

		// A reference through a section or unbound local symbol into a
		// mergeable section picks its fragment by the addend.
		if !refEsym.IsUndef() && !refEsym.IsAbs() && sym.SectionFragment == nil &&
			sym.File == i.File {
			shndx := i.File.GetShndx(refEsym, int(rel.Sym))
			if shndx >= 0 && shndx < int64(len(i.File.MergeableSections)) {
				if m := i.File.MergeableSections[shndx]; m != nil {
					frag, fragOff := m.GetFragment(uint32(int64(refEsym.Val) + A))
					if frag == nil {
						utils.Fatal("relocation into dead mergeable section")
					}
					S = frag.GetAddr() + uint64(fragOff)
					A = 0
				}
			}
		}

		overflow := func() {
			ctx.AddError(&RelocationOverflowError{
				Section: i.Name(),
				Offset:  rel.Offset,
				Symbol:  sym.Name,
			})
		}

		switch relType {
		case elf.R_X86_64_64:
			utils.Write[uint64](loc, uint64(int64(S)+A))
		case elf.R_X86_64_PC64:
			utils.Write[uint64](loc, uint64(int64(S)+A-int64(P)))
		case elf.R_X86_64_32:
			val := int64(S) + A
			if val < 0 || val > math.MaxUint32 {
				overflow()
				continue
			}
			utils.Write[uint32](loc, uint32(val))
		case elf.R_X86_64_32S:
			val := int64(S) + A
			if val < math.MinInt32 || val > math.MaxInt32 {
				overflow()
				continue
			}
			utils.Write[uint32](loc, uint32(val))
		case elf.R_X86_64_PC32, elf.R_X86_64_PLT32:
			// No PLT exists in a static executable; a PLT32 call site
			// branches straight to the definition.
			val := int64(S) + A - int64(P)
			if val < math.MinInt32 || val > math.MaxInt32 {
				overflow()
				continue
			}
			utils.Write[uint32](loc, uint32(val))
		case elf.R_X86_64_GOTPCREL, elf.R_X86_64_GOTPCRELX,
			elf.R_X86_64_REX_GOTPCRELX:
			// The displacement targets the symbol's GOT slot, which
			// holds its absolute address.
			val := int64(sym.GetGotAddr(ctx)) + A - int64(P)
			if val < math.MinInt32 || val > math.MaxInt32 {
				overflow()
				continue
			}
			utils.Write[uint32](loc, uint32(val))
		}
	}
}

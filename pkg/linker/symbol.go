package linker

import "github.com/uld-linker/uld/pkg/utils"

const (
	NeedsGot uint32 = 1 << 0
)

// Symbol is the linker-side view of an ELF symbol. Local symbols live in
// their owning ObjectFile; global and weak symbols are interned by name in
// Context.SymbolMap, so every reference site across all inputs shares one
// Symbol and automatically sees the winning definition.
//
// File is nil until resolution claims a definition. Exactly one of
// InputSection and SectionFragment is set for a section-relative symbol;
// both stay nil for absolute symbols and for permitted weak undefineds,
// whose address is zero.
type Symbol struct {
	File   *ObjectFile
	Name   string
	Value  uint64
	SymIdx int
	GotIdx int32
	Flags  uint32

	InputSection    *InputSection
	SectionFragment *SectionFragment
}

func NewSymbol(name string) *Symbol {
	return &Symbol{Name: name, SymIdx: -1, GotIdx: -1}
}

func (s *Symbol) SetInputSection(isec *InputSection) {
	s.InputSection = isec
	s.SectionFragment = nil
}

func (s *Symbol) SetSectionFragment(frag *SectionFragment) {
	s.InputSection = nil
	s.SectionFragment = frag
}

// GetSymbolByName interns name in the session's global table. Insertion
// order is recorded so diagnostics and worklists never depend on map
// iteration order.
func GetSymbolByName(ctx *Context, name string) *Symbol {
	if sym, ok := ctx.SymbolMap[name]; ok {
		return sym
	}
	sym := NewSymbol(name)
	ctx.SymbolMap[name] = sym
	ctx.symbolNames = append(ctx.symbolNames, name)
	return sym
}

// IsDefined reports whether resolution has bound this symbol to a
// definition.
func (s *Symbol) IsDefined() bool {
	return s.File != nil
}

// IsWeakDef reports whether the current winning definition is weak.
func (s *Symbol) IsWeakDef() bool {
	return s.File != nil && s.ElfSym().IsWeak()
}

func (s *Symbol) ElfSym() *Sym {
	utils.Assert(s.File != nil && s.SymIdx >= 0 && s.SymIdx < len(s.File.ElfSyms))
	return &s.File.ElfSyms[s.SymIdx]
}

// GetAddr is only meaningful after layout has assigned addresses.
func (s *Symbol) GetAddr() uint64 {
	if s.SectionFragment != nil {
		return s.SectionFragment.GetAddr() + s.Value
	}
	if s.InputSection != nil {
		return s.InputSection.GetAddr() + s.Value
	}
	return s.Value
}

func (s *Symbol) GetGotAddr(ctx *Context) uint64 {
	utils.Assert(s.GotIdx >= 0)
	return ctx.Got.Shdr.Addr + uint64(s.GotIdx)*8
}

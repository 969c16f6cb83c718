package linker

import "math"

// SectionFragment is one deduplicated piece of a MergedSection. Symbols
// and relocations that pointed into a mergeable input section are rebound
// to fragments before layout.
type SectionFragment struct {
	OutputSection *MergedSection
	Offset        uint32
	P2Align       uint32
}

func NewSectionFragment(m *MergedSection) *SectionFragment {
	return &SectionFragment{
		OutputSection: m,
		Offset:        math.MaxUint32,
	}
}

func (s *SectionFragment) GetAddr() uint64 {
	return s.OutputSection.Shdr.Addr + uint64(s.Offset)
}

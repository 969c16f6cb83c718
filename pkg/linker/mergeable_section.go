package linker

import "sort"

// MergeableSection is the split form of one SHF_MERGE input section: the
// pieces it was cut into, their original offsets, and (after
// RegisterSectionPieces) the deduplicated fragment each piece landed in.
type MergeableSection struct {
	Parent      *MergedSection
	P2Align     uint8
	Strs        []string
	FragOffsets []uint32
	Fragments   []*SectionFragment
}

// GetFragment maps an offset in the original section to the fragment
// containing it and the remainder within that fragment.
func (m *MergeableSection) GetFragment(offset uint32) (*SectionFragment, uint32) {
	pos := sort.Search(len(m.FragOffsets), func(i int) bool {
		return offset < m.FragOffsets[i]
	})

	if pos == 0 {
		return nil, 0
	}

	idx := pos - 1
	return m.Fragments[idx], offset - m.FragOffsets[idx]
}

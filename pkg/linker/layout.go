package linker

import (
	"debug/elf"
	"sort"

	"github.com/uld-linker/uld/pkg/utils"
)

const (
	ImageBase = uint64(0x400000)
	PageSize  = uint64(0x1000)
)

// SegmentMapping is one PT_LOAD of the output: a run of allocatable
// chunks sharing a permission class.
type SegmentMapping struct {
	Flags    uint32
	Offset   uint64
	VAddr    uint64
	FileSize uint64
	MemSize  uint64
	Align    uint64
}

func isAlloc(shdr *Shdr) bool {
	return elf.SectionFlag(shdr.Flags)&elf.SHF_ALLOC != 0
}

// segmentFlags maps a chunk to its permission class. Read-only chunks
// share the executable segment, writable ones get the data segment.
func segmentFlags(shdr *Shdr) uint32 {
	if elf.SectionFlag(shdr.Flags)&elf.SHF_WRITE != 0 {
		return uint32(elf.PF_R | elf.PF_W)
	}
	return uint32(elf.PF_R | elf.PF_X)
}

func chunkRank(ctx *Context, w iOutputWriter) int {
	shdr := w.GetShdr()
	switch {
	case w == iOutputWriter(ctx.Ehdr):
		return 0
	case w == iOutputWriter(ctx.Phdrs):
		return 1
	case w == iOutputWriter(ctx.Shdrs):
		return 1 << 30
	case !isAlloc(shdr):
		return (1 << 30) - 1
	}

	b2i := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	writable := b2i(elf.SectionFlag(shdr.Flags)&elf.SHF_WRITE != 0)
	notExec := b2i(elf.SectionFlag(shdr.Flags)&elf.SHF_EXECINSTR == 0)
	isBss := b2i(elf.SectionType(shdr.Type) == elf.SHT_NOBITS)
	return 2 + writable<<2 + notExec<<1 + isBss
}

// SortOutputWriters orders the chunks the way they land in the file:
// headers first, then text, read-only data, writable data, bss, with
// the non-loadable tail (shstrtab, section headers) at the end. The
// sort is stable so chunks of equal rank keep input order.
func SortOutputWriters(ctx *Context) {
	sort.SliceStable(ctx.OutputWriters, func(i, j int) bool {
		return chunkRank(ctx, ctx.OutputWriters[i]) <
			chunkRank(ctx, ctx.OutputWriters[j])
	})
}

// CountSegments counts the permission-class runs of the sorted
// allocatable chunks. The program header table is sized from this
// before any address is known.
func CountSegments(ctx *Context) int {
	n := 0
	prev := uint32(0)
	for _, w := range ctx.OutputWriters {
		shdr := w.GetShdr()
		if !isAlloc(shdr) {
			continue
		}
		if flags := segmentFlags(shdr); n == 0 || flags != prev {
			n++
			prev = flags
		}
	}
	return n
}

// AssignAddresses lays the chunks out in one upward pass from the image
// base. A permission-class change starts a new page so the classes can
// be mapped with different protections. File offsets stay congruent to
// virtual addresses modulo the page size; bss advances the address but
// takes no file bytes. Returns the total file size.
func AssignAddresses(ctx *Context) uint64 {
	addr := ImageBase
	fileoff := uint64(0)
	prev := uint32(0)
	seen := false

	for _, w := range ctx.OutputWriters {
		shdr := w.GetShdr()
		if !isAlloc(shdr) {
			continue
		}
		flags := segmentFlags(shdr)
		if seen && flags != prev {
			addr = utils.AlignTo(addr, PageSize)
		}
		seen = true
		prev = flags

		addr = utils.AlignTo(addr, shdr.AddrAlign)
		shdr.Addr = addr
		if elf.SectionType(shdr.Type) == elf.SHT_NOBITS {
			shdr.Offset = fileoff
		} else {
			shdr.Offset = addr - ImageBase
			fileoff = shdr.Offset + shdr.Size
		}
		addr += shdr.Size
	}

	for _, w := range ctx.OutputWriters {
		shdr := w.GetShdr()
		if isAlloc(shdr) {
			continue
		}
		fileoff = utils.AlignTo(fileoff, shdr.AddrAlign)
		shdr.Offset = fileoff
		fileoff += shdr.Size
	}
	return fileoff
}

// CreateSegments groups the laid-out allocatable chunks into PT_LOAD
// mappings. Must run after AssignAddresses.
func CreateSegments(ctx *Context) {
	ctx.Segments = nil
	var cur *SegmentMapping

	for _, w := range ctx.OutputWriters {
		shdr := w.GetShdr()
		if !isAlloc(shdr) {
			continue
		}
		flags := segmentFlags(shdr)
		if cur == nil || cur.Flags != flags {
			cur = &SegmentMapping{
				Flags:  flags,
				Offset: shdr.Offset,
				VAddr:  shdr.Addr,
				Align:  PageSize,
			}
			ctx.Segments = append(ctx.Segments, cur)
		}
		cur.MemSize = shdr.Addr + shdr.Size - cur.VAddr
		if elf.SectionType(shdr.Type) != elf.SHT_NOBITS {
			cur.FileSize = shdr.Offset + shdr.Size - cur.Offset
		}
	}
}

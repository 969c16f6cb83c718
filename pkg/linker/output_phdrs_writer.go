package linker

import (
	"debug/elf"

	"github.com/uld-linker/uld/pkg/utils"
)

type OutputPhdrsWriter struct {
	OutputWriter
}

func NewOutputPhdrsWriter() *OutputPhdrsWriter {
	return &OutputPhdrsWriter{
		OutputWriter{
			Name: "phdr",
			Shdr: Shdr{
				Flags:     uint64(elf.SHF_ALLOC),
				AddrAlign: 8,
			},
		},
	}
}

// UpdateShdr sizes the program header table before addresses are
// assigned: one PT_LOAD per permission-class run of the sorted
// allocatable chunks.
func (o *OutputPhdrsWriter) UpdateShdr(ctx *Context) {
	o.Shdr.Size = uint64(CountSegments(ctx)) * uint64(PhdrSize)
}

func (o *OutputPhdrsWriter) CopyBuf(ctx *Context) {
	base := ctx.Buf[o.Shdr.Offset:]
	for _, seg := range ctx.Segments {
		utils.Write[Phdr](base, Phdr{
			Type:     uint32(elf.PT_LOAD),
			Flags:    seg.Flags,
			Offset:   seg.Offset,
			VAddr:    seg.VAddr,
			PAddr:    seg.VAddr,
			FileSize: seg.FileSize,
			MemSize:  seg.MemSize,
			Align:    seg.Align,
		})
		base = base[PhdrSize:]
	}
}

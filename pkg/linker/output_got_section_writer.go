package linker

import (
	"debug/elf"

	"github.com/uld-linker/uld/pkg/utils"
)

// OutputGotWriter is the .got chunk of a static executable. Each slot
// holds the final absolute address of one symbol referenced through a
// GOT-relative relocation; there is no dynamic linker to fill anything
// in later.
type OutputGotWriter struct {
	OutputWriter
	Syms []*Symbol
}

func NewOutputGotWriter() *OutputGotWriter {
	return &OutputGotWriter{
		OutputWriter: OutputWriter{
			Name: ".got",
			Shdr: Shdr{
				Type:      uint32(elf.SHT_PROGBITS),
				Flags:     uint64(elf.SHF_ALLOC | elf.SHF_WRITE),
				AddrAlign: 8,
			},
		},
	}
}

func (o *OutputGotWriter) AddGotSymbol(sym *Symbol) {
	sym.GotIdx = int32(len(o.Syms))
	o.Syms = append(o.Syms, sym)
	o.Shdr.Size = uint64(len(o.Syms)) * 8
}

func (o *OutputGotWriter) CopyBuf(ctx *Context) {
	base := ctx.Buf[o.Shdr.Offset:]
	for _, sym := range o.Syms {
		utils.Write[uint64](base[sym.GotIdx*8:], sym.GetAddr())
	}
}

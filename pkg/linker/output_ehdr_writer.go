package linker

import (
	"debug/elf"

	"github.com/uld-linker/uld/pkg/utils"
)

type OutputEhdrWriter struct {
	OutputWriter
}

func NewOutputEhdrWriter() *OutputEhdrWriter {
	return &OutputEhdrWriter{
		OutputWriter{
			Name: "ehdr",
			Shdr: Shdr{
				Flags:     uint64(elf.SHF_ALLOC),
				Size:      uint64(EhdrSize),
				AddrAlign: 8,
			},
		},
	}
}

// GetEntryAddr resolves the configured entry symbol to its final
// address. Layout must have run.
func GetEntryAddr(ctx *Context) (uint64, error) {
	sym, ok := ctx.SymbolMap[ctx.Args.Entry]
	if !ok || !sym.IsDefined() {
		return 0, &EntryPointMissingError{Name: ctx.Args.Entry}
	}
	return sym.GetAddr(), nil
}

func (o *OutputEhdrWriter) CopyBuf(ctx *Context) {
	ehdr := Ehdr{}
	WriteMagic(ehdr.Ident[:])
	ehdr.Ident[elf.EI_CLASS] = uint8(elf.ELFCLASS64)
	ehdr.Ident[elf.EI_DATA] = uint8(elf.ELFDATA2LSB)
	ehdr.Ident[elf.EI_VERSION] = uint8(elf.EV_CURRENT)
	ehdr.Ident[elf.EI_OSABI] = uint8(elf.ELFOSABI_NONE)
	ehdr.Ident[elf.EI_ABIVERSION] = 0
	ehdr.Type = uint16(elf.ET_EXEC)
	ehdr.Machine = uint16(elf.EM_X86_64)
	ehdr.Version = uint32(elf.EV_CURRENT)

	entry, err := GetEntryAddr(ctx)
	// The entry symbol was checked before emission started.
	utils.MustNo(err)
	ehdr.Entry = entry

	ehdr.PhOff = ctx.Phdrs.Shdr.Offset
	ehdr.ShOff = ctx.Shdrs.Shdr.Offset
	ehdr.EhSize = uint16(EhdrSize)
	ehdr.PhEntSize = uint16(PhdrSize)
	ehdr.PhNum = uint16(len(ctx.Segments))
	ehdr.ShEntSize = uint16(ShdrSize)
	ehdr.ShNum = uint16(ctx.Shdrs.Shdr.Size / uint64(ShdrSize))
	ehdr.ShStrndx = uint16(ctx.Shstrtab.Shndx)

	utils.Write[Ehdr](ctx.Buf, ehdr)
}

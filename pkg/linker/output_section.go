package linker

import (
	"debug/elf"
	"strings"
)

var outputNamePrefixes = []string{
	".text.", ".data.rel.ro.", ".data.", ".rodata.", ".bss.rel.ro.", ".bss.",
	".init_array.", ".fini_array.", ".tbss.", ".tdata.", ".ctors.", ".dtors.",
}

// GetOutputName maps an input section name to its output section stem:
// .text.foo lands in .text, mergeable .rodata literals in .rodata.str or
// .rodata.cst.
func GetOutputName(name string, flags uint64) string {
	if (name == ".rodata" || strings.HasPrefix(name, ".rodata.")) &&
		flags&uint64(elf.SHF_MERGE) != 0 {
		if flags&uint64(elf.SHF_STRINGS) != 0 {
			return ".rodata.str"
		}
		return ".rodata.cst"
	}

	for _, prefix := range outputNamePrefixes {
		stem := prefix[:len(prefix)-1]
		if name == stem || strings.HasPrefix(name, prefix) {
			return stem
		}
	}

	return name
}

// OutputSection aggregates the input sections that share an output
// identity (mapped name, type, flags), in the order their objects were
// merged.
type OutputSection struct {
	OutputWriter
	Members []*InputSection
	Idx     uint32
}

func NewOutputSection(name string, typ uint32, flags uint64, idx uint32) *OutputSection {
	o := &OutputSection{OutputWriter: *NewOutputWriter()}
	o.Name = name
	o.Shdr.Type = typ
	o.Shdr.Flags = flags
	o.Idx = idx
	return o
}

func (o *OutputSection) CopyBuf(ctx *Context) {
	if o.Shdr.Type == uint32(elf.SHT_NOBITS) {
		return
	}

	base := ctx.Buf[o.Shdr.Offset:]
	for _, isec := range o.Members {
		isec.WriteTo(ctx, base[isec.Offset:])
	}
}

// GetOutputSection interns the output section for the given identity,
// registering a new one on first use. Registration order is input order,
// which keeps the final layout reproducible.
func GetOutputSection(ctx *Context, name string, typ, flags uint64) *OutputSection {
	name = GetOutputName(name, flags)
	flags = flags &^ uint64(elf.SHF_GROUP) &^
		uint64(elf.SHF_COMPRESSED) &^ uint64(elf.SHF_LINK_ORDER)

	for _, osec := range ctx.OutputSections {
		if name == osec.Name && typ == uint64(osec.Shdr.Type) &&
			flags == osec.Shdr.Flags {
			return osec
		}
	}

	osec := NewOutputSection(name, uint32(typ), flags,
		uint32(len(ctx.OutputSections)))
	ctx.OutputSections = append(ctx.OutputSections, osec)
	return osec
}

package linker

import "debug/elf"

// OutputShstrtabWriter builds .shstrtab and patches every numbered
// chunk's sh_name while doing so.
type OutputShstrtabWriter struct {
	OutputWriter
	content []byte
}

func NewOutputShstrtabWriter() *OutputShstrtabWriter {
	w := &OutputShstrtabWriter{
		OutputWriter: OutputWriter{
			Name: ".shstrtab",
			Shdr: Shdr{
				Type:      uint32(elf.SHT_STRTAB),
				AddrAlign: 1,
			},
		},
	}
	return w
}

func (o *OutputShstrtabWriter) UpdateShdr(ctx *Context) {
	buf := []byte{0}
	for _, w := range ctx.OutputWriters {
		if w.GetShndx() <= 0 {
			continue
		}
		w.GetShdr().Name = uint32(len(buf))
		buf = append(buf, w.GetName()...)
		buf = append(buf, 0)
	}
	o.content = buf
	o.Shdr.Size = uint64(len(buf))
}

func (o *OutputShstrtabWriter) CopyBuf(ctx *Context) {
	copy(ctx.Buf[o.Shdr.Offset:], o.content)
}

package linker

import "github.com/uld-linker/uld/pkg/utils"

type OutputShdrsWriter struct {
	OutputWriter
}

func NewOutputShdrsWriter() *OutputShdrsWriter {
	return &OutputShdrsWriter{
		OutputWriter{
			Name: "shdr",
			Shdr: Shdr{AddrAlign: 8},
		},
	}
}

// UpdateShdr runs after section indices are assigned: one header per
// numbered chunk plus the leading null entry.
func (o *OutputShdrsWriter) UpdateShdr(ctx *Context) {
	n := int64(0)
	for _, w := range ctx.OutputWriters {
		if w.GetShndx() > n {
			n = w.GetShndx()
		}
	}
	o.Shdr.Size = uint64(n+1) * uint64(ShdrSize)
}

func (o *OutputShdrsWriter) CopyBuf(ctx *Context) {
	base := ctx.Buf[o.Shdr.Offset:]
	utils.Write[Shdr](base, Shdr{})

	for _, w := range ctx.OutputWriters {
		if w.GetShndx() > 0 {
			utils.Write[Shdr](base[w.GetShndx()*int64(ShdrSize):], *w.GetShdr())
		}
	}
}

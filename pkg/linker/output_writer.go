package linker

// iOutputWriter is one chunk of the output image: a synthetic header, an
// output section built from input members, or a merged literal section.
// Chunks know their section header and how to serialize themselves into
// the image buffer.
type iOutputWriter interface {
	GetName() string
	GetShdr() *Shdr
	GetShndx() int64
	SetShndx(idx int64)
	UpdateShdr(ctx *Context)
	CopyBuf(ctx *Context)
}

// OutputWriter is the embedded base of every chunk. Shndx is the chunk's
// slot in the emitted section header table; zero means the chunk gets no
// section header (the ELF header and program headers).
type OutputWriter struct {
	Name  string
	Shdr  Shdr
	Shndx int64
}

func NewOutputWriter() *OutputWriter {
	return &OutputWriter{
		Shdr: Shdr{AddrAlign: 1},
	}
}

func (o *OutputWriter) GetName() string {
	return o.Name
}

func (o *OutputWriter) GetShdr() *Shdr {
	return &o.Shdr
}

func (o *OutputWriter) GetShndx() int64 {
	return o.Shndx
}

func (o *OutputWriter) SetShndx(idx int64) {
	o.Shndx = idx
}

func (o *OutputWriter) UpdateShdr(ctx *Context) {}

func (o *OutputWriter) CopyBuf(ctx *Context) {}

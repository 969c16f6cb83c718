package linker

type Args struct {
	Output       string
	Entry        string
	Machine      MachineType
	LibraryPaths []string
}

// Context is the whole state of one linking session, threaded explicitly
// through every pass so a link stays a pure function of its inputs.
type Context struct {
	Args Args

	// Objs holds direct input objects plus archive members in the order
	// they were merged. Archives keep their unextracted members to
	// themselves.
	Objs     []*ObjectFile
	Archives []*Archive

	// Global symbol interning table plus insertion order. All passes
	// iterate symbolNames, never the map, so results are reproducible.
	SymbolMap   map[string]*Symbol
	symbolNames []string

	OutputSections []*OutputSection
	MergedSections []*MergedSection

	// OutputWriters holds every chunk of the output image in file order
	// once layout has run.
	OutputWriters []iOutputWriter

	Ehdr     *OutputEhdrWriter
	Phdrs    *OutputPhdrsWriter
	Shdrs    *OutputShdrsWriter
	Shstrtab *OutputShstrtabWriter
	Got      *OutputGotWriter

	Segments []*SegmentMapping

	Buf []byte

	// Batched diagnostics: undefined symbols and relocation overflows.
	Errs ErrorList
}

func NewContext() *Context {
	return &Context{
		Args: Args{
			Output: "a.out",
			Entry:  "_start",
		},
		SymbolMap: make(map[string]*Symbol),
	}
}

func (ctx *Context) AddError(err error) {
	ctx.Errs = append(ctx.Errs, err)
}

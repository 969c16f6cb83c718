package linker

import (
	"github.com/uld-linker/uld/pkg/utils"
)

// The passes below run in the order Link calls them. Parsing and
// resolution are serial on purpose: the symbol and output-section
// interning tables record insertion order, and that order is what makes
// two runs over the same inputs byte-identical.

// ReadInputFiles opens and classifies every remaining operand. Objects
// are parsed right away; archives only get their headers and symbol
// index walked, members stay untouched until resolution asks for them.
func ReadInputFiles(ctx *Context, remaining []string) error {
	for _, name := range remaining {
		var file *File
		var err error
		if lib, ok := utils.RemovePrefix(name, "-l"); ok {
			file, err = FindLibrary(ctx, lib)
		} else {
			file, err = NewFile(name)
		}
		if err != nil {
			return err
		}

		switch GetFileTypeFromContent(file.Content) {
		case FileTypeObject:
			obj, err := CreateObjectFile(ctx, file, false)
			if err != nil {
				return err
			}
			ctx.Objs = append(ctx.Objs, obj)
		case FileTypeArchive:
			arc, err := NewArchive(file)
			if err != nil {
				return err
			}
			ctx.Archives = append(ctx.Archives, arc)
		case FileTypeEmpty:
			continue
		default:
			return &MalformedObjectError{
				File:   file.Name,
				Reason: "not a relocatable object or static archive",
			}
		}
	}

	utils.Logf("read %d objects, %d archives", len(ctx.Objs), len(ctx.Archives))
	return nil
}

// ResolveSymbols merges all direct objects in input order, pulls archive
// members until no pulled member leaves a satisfiable reference open,
// then reports everything still undefined in one batch.
func ResolveSymbols(ctx *Context) error {
	for _, obj := range ctx.Objs {
		if err := obj.ResolveSymbols(ctx); err != nil {
			return err
		}
	}
	if err := pullArchiveMembers(ctx); err != nil {
		return err
	}
	return reportUndefined(ctx)
}

// pullArchiveMembers runs the extraction worklist to its fixed point.
// Each undefined name is tried against the archives in input order; an
// extracted member is merged immediately and its own undefined
// references join the worklist. Members nothing asks for are never
// parsed.
func pullArchiveMembers(ctx *Context) error {
	var work []string
	queued := make(map[string]bool)
	enqueue := func(name string) {
		if !queued[name] {
			queued[name] = true
			work = append(work, name)
		}
	}

	for _, obj := range ctx.Objs {
		obj.collectUndefined(enqueue)
	}
	// The entry symbol is a root reference even when no object names it.
	enqueue(ctx.Args.Entry)

	for len(work) > 0 {
		name := work[0]
		work = work[1:]

		if sym, ok := ctx.SymbolMap[name]; ok && sym.IsDefined() {
			continue
		}

		for _, arc := range ctx.Archives {
			offset, ok := arc.SymbolIndex[name]
			if !ok {
				continue
			}
			// An extracted member was already merged; if it did not
			// define this name the next archive gets a chance.
			if arc.Extracted(offset) {
				continue
			}

			obj, err := arc.MemberAt(ctx, offset)
			if err != nil {
				return err
			}
			utils.Logf("extracted %s for %s", obj.Name(), name)

			if err := obj.ResolveSymbols(ctx); err != nil {
				return err
			}
			ctx.Objs = append(ctx.Objs, obj)
			obj.collectUndefined(enqueue)
			break
		}
	}
	return nil
}

// reportUndefined batches one UndefinedSymbolError per name that is
// still unresolved, naming the first object that references it. A
// single run shows the whole set.
func reportUndefined(ctx *Context) error {
	var errs ErrorList
	reported := make(map[string]bool)

	for _, obj := range ctx.Objs {
		referencer := obj.Name()
		obj.collectUndefined(func(name string) {
			if reported[name] {
				return
			}
			if sym, ok := ctx.SymbolMap[name]; ok && sym.IsDefined() {
				return
			}
			reported[name] = true
			errs = append(errs, &UndefinedSymbolError{
				Name:       name,
				Referencer: referencer,
			})
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func RegisterSectionPieces(ctx *Context) {
	for _, obj := range ctx.Objs {
		obj.RegisterSectionPieces()
	}
}

func ComputeMergedSectionSizes(ctx *Context) {
	for _, m := range ctx.MergedSections {
		m.AssignOffsets()
	}
}

func CreateSyntheticWriters(ctx *Context) {
	ctx.Ehdr = NewOutputEhdrWriter()
	ctx.Phdrs = NewOutputPhdrsWriter()
	ctx.Shdrs = NewOutputShdrsWriter()
	ctx.Shstrtab = NewOutputShstrtabWriter()
	ctx.Got = NewOutputGotWriter()

	ctx.OutputWriters = append(ctx.OutputWriters,
		ctx.Ehdr, ctx.Phdrs, ctx.Shdrs, ctx.Shstrtab)
}

// BinSections distributes every live input section to its output
// section, in object merge order.
func BinSections(ctx *Context) {
	for _, obj := range ctx.Objs {
		for _, isec := range obj.Sections {
			if isec == nil || !isec.IsAlive {
				continue
			}
			isec.OutputSection.Members = append(isec.OutputSection.Members, isec)
		}
	}
}

// CollectOutputWriters appends every output section that got at least
// one member and every merged section that got at least one fragment.
func CollectOutputWriters(ctx *Context) {
	for _, osec := range ctx.OutputSections {
		if len(osec.Members) > 0 {
			ctx.OutputWriters = append(ctx.OutputWriters, osec)
		}
	}
	for _, m := range ctx.MergedSections {
		if m.Shdr.Size > 0 {
			ctx.OutputWriters = append(ctx.OutputWriters, m)
		}
	}
}

// ScanRelocations flags GOT-needing symbols, then assigns their slots
// in a stable order: each object's locals in merge order, then globals
// in interning order. The .got chunk joins the output only if a slot
// was assigned.
func ScanRelocations(ctx *Context) {
	for _, obj := range ctx.Objs {
		obj.ScanRelocations()
	}

	for _, obj := range ctx.Objs {
		for i := range obj.LocalSymbols {
			sym := &obj.LocalSymbols[i]
			if sym.Flags&NeedsGot != 0 {
				ctx.Got.AddGotSymbol(sym)
			}
		}
	}
	for _, name := range ctx.symbolNames {
		sym := ctx.SymbolMap[name]
		if sym.Flags&NeedsGot != 0 {
			ctx.Got.AddGotSymbol(sym)
		}
	}

	if len(ctx.Got.Syms) > 0 {
		ctx.OutputWriters = append(ctx.OutputWriters, ctx.Got)
	}
}

// ComputeSectionSizes packs the members of each output section, honoring
// each member's alignment. The section inherits the strictest member
// alignment.
func ComputeSectionSizes(ctx *Context) {
	for _, osec := range ctx.OutputSections {
		offset := uint64(0)
		p2align := uint64(0)
		for _, isec := range osec.Members {
			offset = utils.AlignTo(offset, 1<<isec.P2Align)
			isec.Offset = uint32(offset)
			offset += uint64(isec.ShSize)
			if p2align < uint64(isec.P2Align) {
				p2align = uint64(isec.P2Align)
			}
		}
		osec.Shdr.Size = offset
		osec.Shdr.AddrAlign = 1 << p2align
	}
}

// AssignSectionIndices numbers the chunks that get a section header,
// following sorted file order. The ELF header, program headers and the
// section header table itself stay unnumbered.
func AssignSectionIndices(ctx *Context) {
	idx := int64(1)
	for _, w := range ctx.OutputWriters {
		switch w.(type) {
		case *OutputEhdrWriter, *OutputPhdrsWriter, *OutputShdrsWriter:
		default:
			w.SetShndx(idx)
			idx++
		}
	}
}

func UpdateWriters(ctx *Context) {
	for _, w := range ctx.OutputWriters {
		w.UpdateShdr(ctx)
	}
}

// Link runs the whole pipeline over the classified operands and writes
// the executable. On any error the output path is left untouched.
func Link(ctx *Context, remaining []string) error {
	if err := ReadInputFiles(ctx, remaining); err != nil {
		return err
	}
	if err := ResolveSymbols(ctx); err != nil {
		return err
	}

	RegisterSectionPieces(ctx)
	ComputeMergedSectionSizes(ctx)
	CreateSyntheticWriters(ctx)
	BinSections(ctx)
	CollectOutputWriters(ctx)
	ScanRelocations(ctx)
	ComputeSectionSizes(ctx)
	SortOutputWriters(ctx)
	AssignSectionIndices(ctx)
	UpdateWriters(ctx)

	fileSize := AssignAddresses(ctx)
	CreateSegments(ctx)

	if _, err := GetEntryAddr(ctx); err != nil {
		return err
	}

	utils.Logf("image is %d bytes in %d segments", fileSize, len(ctx.Segments))
	ctx.Buf = make([]byte, fileSize)
	for _, w := range ctx.OutputWriters {
		w.CopyBuf(ctx)
	}
	if len(ctx.Errs) > 0 {
		return ctx.Errs
	}

	return WriteOutput(ctx)
}

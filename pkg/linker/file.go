package linker

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// File is a whole input file held in memory. Regular files are mapped
// read-only instead of copied; the mapping lives until the process exits,
// matching the session lifetime of everything parsed from it. Parent is
// set for archive members and points at the containing archive file.
type File struct {
	Name    string
	Content []byte
	Parent  *File
}

func NewFile(filename string) (*File, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", filename, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat %s: %w", filename, err)
	}

	if !st.Mode().IsRegular() || st.Size() == 0 {
		content, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", filename, err)
		}
		return &File{Name: filename, Content: content}, nil
	}

	content, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()),
		unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("cannot mmap %s: %w", filename, err)
	}
	return &File{Name: filename, Content: content}, nil
}

func OpenLibrary(filepath string) *File {
	file, err := NewFile(filepath)
	if err != nil {
		return nil
	}
	return file
}

func FindLibrary(ctx *Context, name string) (*File, error) {
	for _, dir := range ctx.Args.LibraryPaths {
		stem := dir + "/lib" + name + ".a"
		if f := OpenLibrary(stem); f != nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("library not found: -l%s", name)
}

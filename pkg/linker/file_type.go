package linker

import (
	"bytes"
	"debug/elf"

	"github.com/uld-linker/uld/pkg/utils"
)

type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeEmpty
	FileTypeObject
	FileTypeArchive
)

func GetFileTypeFromContent(content []byte) FileType {
	if len(content) == 0 {
		return FileTypeEmpty
	}

	if CheckMagic(content) && len(content) >= 18 {
		var elfType uint16
		utils.Read[uint16](content[16:], &elfType)
		if elf.Type(elfType) == elf.ET_REL {
			return FileTypeObject
		}
	}

	if bytes.HasPrefix(content, []byte(ArchiveMagic)) {
		return FileTypeArchive
	}

	return FileTypeUnknown
}

// CheckFileCompatibility rejects objects built for another target. Mixed
// architecture linking is meaningless, so this is fatal and never retried.
func CheckFileCompatibility(ctx *Context, file *File) error {
	if t := GetMachineTypeFromContent(file.Content); t != ctx.Args.Machine {
		return &IncompatibleObjectError{File: file.Name, Found: t}
	}
	return nil
}

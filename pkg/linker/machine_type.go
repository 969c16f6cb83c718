package linker

import (
	"debug/elf"

	"github.com/uld-linker/uld/pkg/utils"
)

type MachineType uint8

const (
	MachineTypeNone MachineType = iota
	MachineTypeX86_64
)

func (m MachineType) String() string {
	switch m {
	case MachineTypeNone:
		return "none"
	case MachineTypeX86_64:
		return "x86_64"
	}

	utils.Fatal("invalid machine type")
	return ""
}

// GetMachineTypeFromContent sniffs the target of a relocatable object.
// Anything that is not a 64-bit little-endian x86-64 object maps to
// MachineTypeNone.
func GetMachineTypeFromContent(content []byte) MachineType {
	if GetFileTypeFromContent(content) != FileTypeObject {
		return MachineTypeNone
	}
	// Object sniffing only guarantees bytes through e_type; the machine
	// field sits at 18.
	if len(content) < 20 {
		return MachineTypeNone
	}

	var machine uint16
	utils.Read[uint16](content[18:], &machine)
	if elf.Machine(machine) == elf.EM_X86_64 &&
		elf.Class(content[4]) == elf.ELFCLASS64 &&
		elf.Data(content[5]) == elf.ELFDATA2LSB {
		return MachineTypeX86_64
	}

	return MachineTypeNone
}

package linker

import (
	"fmt"
	"strings"
)

// One error type per failure class. Structural errors (malformed input,
// incompatible target, broken archive) abort the link as soon as they are
// seen; undefined symbols and relocation overflows are collected into an
// ErrorList so one run reports the complete picture.

type MalformedObjectError struct {
	File   string
	Reason string
}

func (e *MalformedObjectError) Error() string {
	return fmt.Sprintf("%s: malformed object: %s", e.File, e.Reason)
}

type IncompatibleObjectError struct {
	File  string
	Found MachineType
}

func (e *IncompatibleObjectError) Error() string {
	return fmt.Sprintf("%s: incompatible object: machine type %s, expected x86_64",
		e.File, e.Found)
}

type ArchiveFormatError struct {
	File   string
	Reason string
}

func (e *ArchiveFormatError) Error() string {
	return fmt.Sprintf("%s: bad archive: %s", e.File, e.Reason)
}

type MultipleDefinitionError struct {
	Name   string
	First  string
	Second string
}

func (e *MultipleDefinitionError) Error() string {
	return fmt.Sprintf("duplicate symbol %q: defined in %s and %s",
		e.Name, e.First, e.Second)
}

type UndefinedSymbolError struct {
	Name       string
	Referencer string
}

func (e *UndefinedSymbolError) Error() string {
	return fmt.Sprintf("undefined reference to %q in %s", e.Name, e.Referencer)
}

type EntryPointMissingError struct {
	Name string
}

func (e *EntryPointMissingError) Error() string {
	return fmt.Sprintf("entry symbol %q is not defined", e.Name)
}

type RelocationOverflowError struct {
	Section string
	Offset  uint64
	Symbol  string
}

func (e *RelocationOverflowError) Error() string {
	return fmt.Sprintf("relocation overflow in %s+0x%x against %q",
		e.Section, e.Offset, e.Symbol)
}

// ErrorList batches independent failures of the same stage.
type ErrorList []error

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, err := range l {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

// Unwrap exposes the individual errors to errors.Is/errors.As.
func (l ErrorList) Unwrap() []error {
	return l
}

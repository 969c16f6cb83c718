package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/uld-linker/uld/pkg/linker"
	"github.com/uld-linker/uld/pkg/utils"
)

const version = "0.1.0"

const usage = `usage: uld [options] file...

Options:
  -o FILE          write the output to FILE (default a.out)
  -e SYMBOL        use SYMBOL as the entry point (default _start)
  -L DIR           add DIR to the library search path
  -l NAME          link against libNAME.a from the search path
  -m EMULATION     set the target emulation (elf_x86_64 only)
  -v, --version    print the version and exit
  --help           print this help and exit
`

func main() {
	ctx := linker.NewContext()
	remaining, err := parseArgs(ctx, os.Args[1:])
	if err != nil {
		fail(err)
	}

	// x86-64 is the only target; -m exists to validate drop-in use.
	if ctx.Args.Machine == linker.MachineTypeNone {
		ctx.Args.Machine = linker.MachineTypeX86_64
	}

	if len(remaining) == 0 {
		fail(errors.New("no input files"))
	}
	if err := linker.Link(ctx, remaining); err != nil {
		fail(err)
	}
}

// fail prints one line per diagnostic and exits. Batched stages hand the
// driver an ErrorList so a single run shows every failure.
func fail(err error) {
	var list linker.ErrorList
	if errors.As(err, &list) {
		for _, e := range list {
			fmt.Fprintf(os.Stderr, "uld: error: %v\n", e)
		}
	} else {
		fmt.Fprintf(os.Stderr, "uld: error: %v\n", err)
	}
	os.Exit(1)
}

func parseArgs(ctx *linker.Context, args []string) ([]string, error) {
	var remaining []string
	var arg string
	var parseErr error

	readArg := func(name string) bool {
		if len(args) == 0 {
			return false
		}
		for _, opt := range utils.AddDashes(name) {
			if args[0] == opt {
				if len(args) == 1 {
					parseErr = fmt.Errorf("option %s: argument missing", opt)
					args = nil
					return false
				}
				arg = args[1]
				args = args[2:]
				return true
			}

			prefix := opt
			if len(name) > 1 {
				prefix += "="
			}
			if strings.HasPrefix(args[0], prefix) && len(args[0]) > len(prefix) {
				arg = args[0][len(prefix):]
				args = args[1:]
				return true
			}
		}
		return false
	}

	readFlag := func(name string) bool {
		if len(args) == 0 {
			return false
		}
		for _, opt := range utils.AddDashes(name) {
			if args[0] == opt {
				args = args[1:]
				return true
			}
		}
		return false
	}

	for len(args) > 0 {
		switch {
		case readFlag("help"):
			fmt.Print(usage)
			os.Exit(0)
		case readFlag("version"), readFlag("v"):
			fmt.Println("uld " + version)
			os.Exit(0)
		case readArg("o"):
			ctx.Args.Output = arg
		case readArg("entry"), readArg("e"):
			ctx.Args.Entry = arg
		case readArg("m"):
			if arg != "elf_x86_64" {
				return nil, fmt.Errorf("unknown emulation: %s", arg)
			}
			ctx.Args.Machine = linker.MachineTypeX86_64
		case readArg("L"):
			ctx.Args.LibraryPaths = append(ctx.Args.LibraryPaths, arg)
		case readArg("l"):
			remaining = append(remaining, "-l"+arg)
		case readFlag("static"), readFlag("s"), readFlag("nostdlib"),
			readFlag("start-group"), readFlag("end-group"):
			// Accepted for drop-in compatibility. Static linking is the
			// only mode, and grouping is moot with index-driven
			// extraction.
		default:
			if parseErr != nil {
				return nil, parseErr
			}
			if strings.HasPrefix(args[0], "-") && len(args[0]) > 1 {
				return nil, fmt.Errorf("unknown option: %s", args[0])
			}
			remaining = append(remaining, args[0])
			args = args[1:]
		}
		if parseErr != nil {
			return nil, parseErr
		}
	}
	return remaining, nil
}

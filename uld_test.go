package main

import (
	"testing"

	"github.com/uld-linker/uld/pkg/linker"
)

func TestParseArgs(t *testing.T) {
	ctx := linker.NewContext()
	remaining, err := parseArgs(ctx, []string{
		"-o", "prog", "--entry=main", "-L/opt/lib", "-lm",
		"-m", "elf_x86_64", "-static", "crt.o", "main.o",
	})
	if err != nil {
		t.Fatal(err)
	}

	if ctx.Args.Output != "prog" {
		t.Errorf("output = %q", ctx.Args.Output)
	}
	if ctx.Args.Entry != "main" {
		t.Errorf("entry = %q", ctx.Args.Entry)
	}
	if ctx.Args.Machine != linker.MachineTypeX86_64 {
		t.Errorf("machine = %v", ctx.Args.Machine)
	}
	if len(ctx.Args.LibraryPaths) != 1 || ctx.Args.LibraryPaths[0] != "/opt/lib" {
		t.Errorf("library paths = %v", ctx.Args.LibraryPaths)
	}

	want := []string{"-lm", "crt.o", "main.o"}
	if len(remaining) != len(want) {
		t.Fatalf("remaining = %v", remaining)
	}
	for i := range want {
		if remaining[i] != want[i] {
			t.Errorf("remaining[%d] = %q, want %q", i, remaining[i], want[i])
		}
	}
}

func TestParseArgsDefaults(t *testing.T) {
	ctx := linker.NewContext()
	remaining, err := parseArgs(ctx, []string{"main.o"})
	if err != nil {
		t.Fatal(err)
	}

	if ctx.Args.Output != "a.out" {
		t.Errorf("default output = %q", ctx.Args.Output)
	}
	if ctx.Args.Entry != "_start" {
		t.Errorf("default entry = %q", ctx.Args.Entry)
	}
	if len(remaining) != 1 || remaining[0] != "main.o" {
		t.Errorf("remaining = %v", remaining)
	}
}

func TestParseArgsShortEntry(t *testing.T) {
	ctx := linker.NewContext()
	if _, err := parseArgs(ctx, []string{"-e", "begin", "main.o"}); err != nil {
		t.Fatal(err)
	}
	if ctx.Args.Entry != "begin" {
		t.Errorf("entry = %q", ctx.Args.Entry)
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing argument", []string{"main.o", "-o"}},
		{"unknown option", []string{"-q", "main.o"}},
		{"unknown emulation", []string{"-m", "aarch64elf", "main.o"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := linker.NewContext()
			if _, err := parseArgs(ctx, tt.args); err == nil {
				t.Errorf("parseArgs(%v) accepted", tt.args)
			}
		})
	}
}

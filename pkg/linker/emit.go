package linker

import (
	"fmt"
	"os"
)

// WriteOutput publishes the image atomically: the bytes land in a
// temporary file next to the target, get executable permission, and are
// renamed over the target in one step. A failed link never leaves a
// half-written executable behind.
func WriteOutput(ctx *Context) error {
	tmp := fmt.Sprintf("%s.tmp%d", ctx.Args.Output, os.Getpid())

	if err := os.WriteFile(tmp, ctx.Buf, 0o755); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cannot write %s: %w", tmp, err)
	}
	if err := os.Chmod(tmp, 0o755); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cannot chmod %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, ctx.Args.Output); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cannot create %s: %w", ctx.Args.Output, err)
	}
	return nil
}

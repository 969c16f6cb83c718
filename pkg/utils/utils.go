package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/xyproto/env/v2"
)

// logEnabled is read once at startup. Any non-empty ULD_LOG value turns
// debug tracing on. User-facing diagnostics go through the driver instead.
var logEnabled = env.Str("ULD_LOG", "") != ""

func Logf(format string, args ...any) {
	if logEnabled {
		fmt.Fprintf(os.Stderr, "uld: debug: "+format+"\n", args...)
	}
}

// Fatal reports a linker bug, not a user error. User-facing failures are
// returned as errors and printed by the driver.
func Fatal(v any) {
	fmt.Fprintf(os.Stderr, "uld: internal error: %v\n", v)
	debug.PrintStack()
	os.Exit(1)
}

func MustNo(err error) {
	if err != nil {
		Fatal(err)
	}
}

func Assert(res bool) {
	if !res {
		Fatal("assertion failed")
	}
}

// Read decodes one little-endian T from the front of content.
func Read[T any](content []byte, val *T) {
	reader := bytes.NewReader(content)
	err := binary.Read(reader, binary.LittleEndian, val)
	MustNo(err)
}

// ReadSlice decodes content as a packed array of T, size bytes each.
func ReadSlice[T any](content []byte, size int) []T {
	Assert(len(content)%size == 0)
	ret := make([]T, 0, len(content)/size)
	for len(content) > 0 {
		var ele T
		Read[T](content, &ele)
		ret = append(ret, ele)
		content = content[size:]
	}
	return ret
}

// Write encodes val little-endian into the front of content.
func Write[T any](content []byte, val T) {
	buf := &bytes.Buffer{}
	err := binary.Write(buf, binary.LittleEndian, val)
	MustNo(err)
	copy(content, buf.Bytes())
}

// AlignTo rounds val up to a multiple of align. align must be a power of
// two; zero means no alignment.
func AlignTo(val, align uint64) uint64 {
	if align == 0 {
		return val
	}
	return (val + align - 1) &^ (align - 1)
}

func RemovePrefix(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return s, false
}

// o => -o
// entry => -entry, --entry
func AddDashes(option string) []string {
	if len(option) == 1 {
		return []string{"-" + option}
	}
	return []string{"-" + option, "--" + option}
}

func AllZeros(bs []byte) bool {
	for _, b := range bs {
		if b != 0 {
			return false
		}
	}
	return true
}

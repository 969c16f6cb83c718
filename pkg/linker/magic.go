package linker

import "bytes"

func CheckMagic(content []byte) bool {
	return bytes.HasPrefix(content, []byte("\177ELF"))
}

func WriteMagic(content []byte) {
	copy(content, "\177ELF")
}

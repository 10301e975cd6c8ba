package emulator

import "strings"

type Arch int

const (
	ARCH_UNKNOWN Arch = iota
	ARCH_ARM
	ARCH_ARM64
	ARCH_X86
	ARCH_X86_64
)

var archNames = map[Arch]string{
	ARCH_UNKNOWN: "unknown",
	ARCH_ARM:     "arm",
	ARCH_ARM64:   "arm64",
	ARCH_X86:     "x86",
	ARCH_X86_64:  "x86_64",
}

func (a Arch) String() string {
	if name, ok := archNames[a]; ok {
		return name
	}
	return archNames[ARCH_UNKNOWN]
}

func ParseArch(name string) (Arch, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for arch, n := range archNames {
		if arch != ARCH_UNKNOWN && n == name {
			return arch, nil
		}
	}
	return ARCH_UNKNOWN, ErrArchUnsupported
}

package arch

import (
	"fmt"
	"sort"
	"strings"
)

// Architecture defines the set of values accepted by dpkg and debootstrap.
type Architecture string

const (
	AMD64    Architecture = "amd64"
	I386     Architecture = "i386"
	ARM64    Architecture = "arm64"
	ARMHF    Architecture = "armhf"
	ARMEL    Architecture = "armel"
	PPC64EL  Architecture = "ppc64el"
	S390X    Architecture = "s390x"
	MIPS64EL Architecture = "mips64el"
	MIPSEL   Architecture = "mipsel"
	RISCV64  Architecture = "riscv64"
	LOONG64  Architecture = "loong64"

	// All requests the host's native architecture.
	All Architecture = "all"
)

// Bootstrap tools used to populate a build root.
const (
	Debootstrap     = "debootstrap"
	QemuDebootstrap = "qemu-debootstrap"
)

// Supported returns the full list of supported architectures, excluding All.
func Supported() []Architecture {
	return []Architecture{
		AMD64,
		I386,
		ARM64,
		ARMHF,
		ARMEL,
		PPC64EL,
		S390X,
		MIPS64EL,
		MIPSEL,
		RISCV64,
		LOONG64,
	}
}

// IsValid reports whether a matches a supported architecture value or All.
func (a Architecture) IsValid() bool {
	switch a {
	case AMD64, I386, ARM64, ARMHF, ARMEL, PPC64EL, S390X, MIPS64EL, MIPSEL, RISCV64, LOONG64, All:
		return true
	default:
		return false
	}
}

// String returns the architecture as string.
func (a Architecture) String() string {
	return string(a)
}

// Parse returns the canonical Architecture for the provided string or an error if unsupported.
func Parse(value string) (Architecture, error) {
	if arch := Normalize(value); arch != "" {
		return arch, nil
	}
	return "", fmt.Errorf("unsupported architecture %q (supported: %s)", value, strings.Join(supportedStrings(), ", "))
}

// Normalize maps kernel and toolchain spellings onto the dpkg architecture name.
// Returns "" when the string cannot be normalized.
func Normalize(value string) Architecture {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case string(AMD64), "x86_64", "x86-64", "x64":
		return AMD64
	case string(I386), "x86", "i486", "i586", "i686", "386":
		return I386
	case string(ARM64), "aarch64":
		return ARM64
	case string(ARMHF), "armv7", "armv7l", "armv7hl":
		return ARMHF
	case string(ARMEL), "arm", "armv5", "armv5tel":
		return ARMEL
	case string(PPC64EL), "ppc64le", "powerpc64le":
		return PPC64EL
	case string(S390X):
		return S390X
	case string(MIPS64EL), "mips64le":
		return MIPS64EL
	case string(MIPSEL), "mipsle":
		return MIPSEL
	case string(RISCV64):
		return RISCV64
	case string(LOONG64), "loongarch64":
		return LOONG64
	case string(All):
		return All
	default:
		return ""
	}
}

// Effective returns host when requested is All, otherwise requested unchanged.
// Lock files and base images are keyed by the effective architecture so that
// "all" builds share the host's base.
func Effective(requested, host Architecture) Architecture {
	if requested == All {
		return host
	}
	return requested
}

// BootstrapTool selects the binary that populates a new build root. Foreign
// architectures need the emulation-capable variant.
func BootstrapTool(host, requested Architecture) string {
	if host == requested {
		return Debootstrap
	}
	return QemuDebootstrap
}

func supportedStrings() []string {
	all := Supported()
	out := make([]string, 0, len(all)+1)
	for _, a := range all {
		out = append(out, a.String())
	}
	out = append(out, All.String())
	sort.Strings(out)
	return out
}

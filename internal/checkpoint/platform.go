package checkpoint

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ArtifactPrefix is the fixed leading segment of every artifact filename.
const ArtifactPrefix = "hyena"

// Platform is the target architecture and operating system of an artifact.
type Platform struct {
	Arch string
	OS   string
}

// lower folds s to lower case. Casers are stateful, so one is built per call.
func lower(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// HostPlatform reports the platform this process runs on, named the way
// uname reports it (x86_64, aarch64, arm64, darwin, linux).
func HostPlatform() Platform {
	return NewPlatform(unameMachine(runtime.GOARCH, runtime.GOOS), runtime.GOOS)
}

// NewPlatform returns a Platform with both fields lower-cased.
func NewPlatform(arch, os string) Platform {
	return Platform{
		Arch: lower(arch),
		OS:   lower(os),
	}
}

// WithOverrides replaces non-empty fields. Used to pin naming in tests; it
// does not enable cross-compilation.
func (p Platform) WithOverrides(arch, os string) Platform {
	out := p
	if strings.TrimSpace(arch) != "" {
		out.Arch = lower(arch)
	}
	if strings.TrimSpace(os) != "" {
		out.OS = lower(os)
	}
	return out
}

// String returns <arch>-<os>.
func (p Platform) String() string {
	return p.Arch + "-" + p.OS
}

func unameMachine(goarch, goos string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "i386"
	case "arm64":
		if goos == "linux" {
			return "aarch64"
		}
		return "arm64"
	default:
		return goarch
	}
}

// ArtifactName returns hyena-<id>-<arch>-<os>.
func ArtifactName(id Identity, p Platform) string {
	return fmt.Sprintf("%s-%s-%s-%s", ArtifactPrefix, id, p.Arch, p.OS)
}

// ParseArtifactName splits an artifact filename back into identity and platform.
func ParseArtifactName(name string) (Identity, Platform, error) {
	rest, ok := strings.CutPrefix(name, ArtifactPrefix+"-")
	if !ok {
		return "", Platform{}, fmt.Errorf("artifact %q: missing %q prefix", name, ArtifactPrefix+"-")
	}
	// cp-YYYYMMDD-xxxxxxx is 19 characters.
	const idLen = len("cp-") + len(DateLayout) + 1 + ShortRevisionLen
	if len(rest) < idLen+2 || rest[idLen] != '-' {
		return "", Platform{}, fmt.Errorf("artifact %q: malformed name", name)
	}
	id, err := Parse(rest[:idLen])
	if err != nil {
		return "", Platform{}, fmt.Errorf("artifact %q: %w", name, err)
	}
	arch, goos, ok := strings.Cut(rest[idLen+1:], "-")
	if !ok || arch == "" || goos == "" {
		return "", Platform{}, fmt.Errorf("artifact %q: missing arch or os", name)
	}
	return id, Platform{Arch: arch, OS: goos}, nil
}

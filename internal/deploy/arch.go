// ABOUTME: Maps remote `uname -m` output onto the closed set of bundled binary targets.
// ABOUTME: Anything outside the set is UnsupportedArch; there is no generic fallback binary.

package deploy

// Supported target triples for bundled agent binaries.
const (
	TargetAMD64 = "x86_64-linux-musl"
	TargetARM64 = "aarch64-linux-musl"
)

// TargetForArch maps a `uname -m` string to a bundled binary target.
func TargetForArch(arch string) (string, error) {
	switch arch {
	case "x86_64", "amd64":
		return TargetAMD64, nil
	case "aarch64", "arm64":
		return TargetARM64, nil
	default:
		return "", &UnsupportedArchError{Arch: arch}
	}
}

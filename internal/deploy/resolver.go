// ABOUTME: Resolves the locally bundled agent binary for a target triple.
// ABOUTME: A manifest.toml in the binaries dir maps targets to files and carries the version.

package deploy

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ManifestName is the index file expected inside the binaries directory.
const ManifestName = "manifest.toml"

// manifest mirrors manifest.toml:
//
//	version = "1.4.0"
//
//	[binaries]
//	"x86_64-linux-musl" = "oxideterm-agent-x86_64-linux-musl"
//	"aarch64-linux-musl" = "oxideterm-agent-aarch64-linux-musl"
type manifest struct {
	Version  string            `toml:"version"`
	Binaries map[string]string `toml:"binaries"`
}

// ManifestResolver resolves bundled binaries from a directory shipped
// with the client. It implements BinaryResolver.
type ManifestResolver struct {
	dir      string
	manifest manifest
}

// NewManifestResolver loads and validates the manifest in dir.
func NewManifestResolver(dir string) (*ManifestResolver, error) {
	path := filepath.Join(dir, ManifestName)
	var m manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("loading binary manifest %s: %w", path, err)
	}
	if m.Version == "" {
		return nil, fmt.Errorf("binary manifest %s: version is required", path)
	}
	if len(m.Binaries) == 0 {
		return nil, fmt.Errorf("binary manifest %s: no binaries listed", path)
	}
	return &ManifestResolver{dir: dir, manifest: m}, nil
}

// Version returns the bundled agent version common to all targets.
func (r *ManifestResolver) Version() string {
	return r.manifest.Version
}

// Resolve returns the local path and version of the binary for target.
func (r *ManifestResolver) Resolve(target string) (string, string, error) {
	name, ok := r.manifest.Binaries[target]
	if !ok {
		return "", "", &BinaryNotFoundError{Target: target, Reason: "not listed in manifest"}
	}
	path := filepath.Join(r.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", "", &BinaryNotFoundError{Target: target, Reason: fmt.Sprintf("missing file %s", path)}
	}
	return path, r.manifest.Version, nil
}

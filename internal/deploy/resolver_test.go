// ABOUTME: Tests for manifest loading and binary resolution.
// ABOUTME: Builds real manifest.toml files in temp dirs.

package deploy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifestDir(t *testing.T, manifest string, binaries ...string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), []byte(manifest), 0o644))
	for _, name := range binaries {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("elf"), 0o755))
	}
	return dir
}

func TestManifestResolver(t *testing.T) {
	t.Run("resolves listed target", func(t *testing.T) {
		dir := writeManifestDir(t, `
version = "1.4.0"

[binaries]
"x86_64-linux-musl" = "oxideterm-agent-x86_64-linux-musl"
"aarch64-linux-musl" = "oxideterm-agent-aarch64-linux-musl"
`, "oxideterm-agent-x86_64-linux-musl", "oxideterm-agent-aarch64-linux-musl")

		r, err := NewManifestResolver(dir)
		require.NoError(t, err)
		assert.Equal(t, "1.4.0", r.Version())

		path, version, err := r.Resolve(TargetAMD64)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "oxideterm-agent-x86_64-linux-musl"), path)
		assert.Equal(t, "1.4.0", version)
	})

	t.Run("unlisted target", func(t *testing.T) {
		dir := writeManifestDir(t, `
version = "1.4.0"

[binaries]
"x86_64-linux-musl" = "oxideterm-agent-x86_64-linux-musl"
`, "oxideterm-agent-x86_64-linux-musl")

		r, err := NewManifestResolver(dir)
		require.NoError(t, err)

		_, _, err = r.Resolve(TargetARM64)
		var nfErr *BinaryNotFoundError
		require.ErrorAs(t, err, &nfErr)
		assert.Equal(t, TargetARM64, nfErr.Target)
	})

	t.Run("listed but missing file", func(t *testing.T) {
		dir := writeManifestDir(t, `
version = "1.4.0"

[binaries]
"x86_64-linux-musl" = "oxideterm-agent-x86_64-linux-musl"
`)
		r, err := NewManifestResolver(dir)
		require.NoError(t, err)

		_, _, err = r.Resolve(TargetAMD64)
		var nfErr *BinaryNotFoundError
		require.ErrorAs(t, err, &nfErr)
	})

	t.Run("missing version", func(t *testing.T) {
		dir := writeManifestDir(t, `
[binaries]
"x86_64-linux-musl" = "oxideterm-agent-x86_64-linux-musl"
`)
		_, err := NewManifestResolver(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "version")
	})

	t.Run("no binaries", func(t *testing.T) {
		dir := writeManifestDir(t, `version = "1.4.0"`)
		_, err := NewManifestResolver(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no binaries")
	})

	t.Run("missing manifest", func(t *testing.T) {
		_, err := NewManifestResolver(t.TempDir())
		require.Error(t, err)
	})
}

func TestTargetForArch(t *testing.T) {
	cases := []struct {
		arch    string
		target  string
		wantErr bool
	}{
		{"x86_64", TargetAMD64, false},
		{"amd64", TargetAMD64, false},
		{"aarch64", TargetARM64, false},
		{"arm64", TargetARM64, false},
		{"riscv64", "", true},
		{"armv7l", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		t.Run("arch "+tc.arch, func(t *testing.T) {
			target, err := TargetForArch(tc.arch)
			if tc.wantErr {
				var archErr *UnsupportedArchError
				require.ErrorAs(t, err, &archErr)
				assert.Equal(t, tc.arch, archErr.Arch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.target, target)
		})
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Not deployed", Status{Kind: StatusNotDeployed}.String())
	assert.Equal(t, "Deploying...", Status{Kind: StatusDeploying}.String())
	assert.Equal(t, "Ready v1.4.0 x86_64-linux-musl (pid 42)",
		Status{Kind: StatusReady, Version: "1.4.0", Arch: TargetAMD64, PID: 42}.String())
	assert.Equal(t, "Failed: handshake failed",
		Status{Kind: StatusFailed, Reason: "handshake failed"}.String())
	assert.Equal(t, "Unsupported arch: riscv64",
		Status{Kind: StatusUnsupportedArch, Arch: "riscv64"}.String())
}

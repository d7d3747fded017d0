// ABOUTME: Tests for the fake agent's request dispatch.
// ABOUTME: Drives dispatch directly with encoded request lines.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnalyseDeCircuit/oxideterm/internal/protocol"
)

func requestLine(t *testing.T, id uint64, method string, params any) []byte {
	t.Helper()
	req, err := protocol.NewRequest(id, method, params)
	require.NoError(t, err)
	line, err := protocol.EncodeLine(req)
	require.NoError(t, err)
	return line
}

func decodeResponse(t *testing.T, line []byte) *protocol.Response {
	t.Helper()
	msg, err := protocol.Decode(line)
	require.NoError(t, err)
	resp, ok := msg.(*protocol.Response)
	require.True(t, ok, "expected a response, got %T", msg)
	return resp
}

func TestDispatchSysMethods(t *testing.T) {
	h := newHandler("1.4.0", "x86_64-linux-musl")

	t.Run("ping", func(t *testing.T) {
		reply, shutdown := h.dispatch(requestLine(t, 1, protocol.MethodSysPing, nil))
		assert.False(t, shutdown)
		resp := decodeResponse(t, reply)
		assert.Equal(t, uint64(1), resp.ID)
		assert.JSONEq(t, `{"pong":true}`, string(resp.Result))
	})

	t.Run("info", func(t *testing.T) {
		reply, shutdown := h.dispatch(requestLine(t, 2, protocol.MethodSysInfo, nil))
		assert.False(t, shutdown)
		resp := decodeResponse(t, reply)

		var info protocol.SysInfo
		require.NoError(t, json.Unmarshal(resp.Result, &info))
		assert.Equal(t, "1.4.0", info.Version)
		assert.Equal(t, "x86_64-linux-musl", info.Arch)
		assert.Equal(t, uint32(os.Getpid()), info.PID)
	})

	t.Run("shutdown", func(t *testing.T) {
		reply, shutdown := h.dispatch(requestLine(t, 3, protocol.MethodSysShutdown, nil))
		assert.True(t, shutdown)
		resp := decodeResponse(t, reply)
		assert.Nil(t, resp.Error)
	})
}

func TestDispatchReadFile(t *testing.T) {
	h := newHandler("1.4.0", "x86_64-linux-musl")
	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello agent\n"), 0o644))

	t.Run("reads content with hash", func(t *testing.T) {
		reply, _ := h.dispatch(requestLine(t, 10, protocol.MethodFSReadFile, protocol.ReadFileParams{Path: path}))
		resp := decodeResponse(t, reply)
		require.Nil(t, resp.Error)

		var result protocol.ReadFileResult
		require.NoError(t, json.Unmarshal(resp.Result, &result))
		assert.Equal(t, "hello agent\n", result.Content)
		assert.Equal(t, uint64(12), result.Size)
		assert.Len(t, result.Hash, 64)
	})

	t.Run("missing file", func(t *testing.T) {
		reply, _ := h.dispatch(requestLine(t, 11, protocol.MethodFSReadFile, protocol.ReadFileParams{Path: path + ".nope"}))
		resp := decodeResponse(t, reply)
		require.NotNil(t, resp.Error)
		assert.Equal(t, protocol.ErrCodeNotFound, resp.Error.Code)
	})

	t.Run("exceeds max size", func(t *testing.T) {
		reply, _ := h.dispatch(requestLine(t, 12, protocol.MethodFSReadFile, protocol.ReadFileParams{Path: path, MaxSize: 4}))
		resp := decodeResponse(t, reply)
		require.NotNil(t, resp.Error)
		assert.Equal(t, protocol.ErrCodeIO, resp.Error.Code)
	})
}

func TestDispatchStat(t *testing.T) {
	h := newHandler("1.4.0", "x86_64-linux-musl")
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	t.Run("file", func(t *testing.T) {
		reply, _ := h.dispatch(requestLine(t, 20, protocol.MethodFSStat, protocol.StatParams{Path: path}))
		resp := decodeResponse(t, reply)
		var result protocol.StatResult
		require.NoError(t, json.Unmarshal(resp.Result, &result))
		assert.True(t, result.Exists)
		assert.Equal(t, "file", result.FileType)
		assert.Equal(t, "600", result.Permissions)
	})

	t.Run("directory", func(t *testing.T) {
		reply, _ := h.dispatch(requestLine(t, 21, protocol.MethodFSStat, protocol.StatParams{Path: dir}))
		resp := decodeResponse(t, reply)
		var result protocol.StatResult
		require.NoError(t, json.Unmarshal(resp.Result, &result))
		assert.Equal(t, "directory", result.FileType)
	})

	t.Run("missing path reports not exists", func(t *testing.T) {
		reply, _ := h.dispatch(requestLine(t, 22, protocol.MethodFSStat, protocol.StatParams{Path: filepath.Join(dir, "nope")}))
		resp := decodeResponse(t, reply)
		require.Nil(t, resp.Error)
		var result protocol.StatResult
		require.NoError(t, json.Unmarshal(resp.Result, &result))
		assert.False(t, result.Exists)
	})
}

func TestDispatchWatch(t *testing.T) {
	h := newHandler("1.4.0", "x86_64-linux-musl")

	reply, shutdown := h.dispatch(requestLine(t, 30, protocol.MethodWatchStart, protocol.WatchStartParams{Path: "/tmp/w"}))
	assert.False(t, shutdown)

	// The reply carries the ack line plus one synthetic event line.
	lines := bytes.Split(bytes.TrimSpace(reply), []byte{'\n'})
	require.Len(t, lines, 2)

	ack := decodeResponse(t, lines[0])
	assert.Equal(t, uint64(30), ack.ID)
	assert.Nil(t, ack.Error)

	msg, err := protocol.Decode(lines[1])
	require.NoError(t, err)
	n, ok := msg.(*protocol.Notification)
	require.True(t, ok)
	ev, ok := n.AsWatchEvent()
	require.True(t, ok)
	assert.Equal(t, "/tmp/w", ev.Path)
	assert.Equal(t, "create", ev.Kind)
}

func TestDispatchUnknownMethod(t *testing.T) {
	h := newHandler("1.4.0", "x86_64-linux-musl")
	reply, shutdown := h.dispatch(requestLine(t, 40, "fs/teleport", nil))
	assert.False(t, shutdown)
	resp := decodeResponse(t, reply)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.ErrCodeMethodNotFound, resp.Error.Code)
}

func TestDispatchMalformedLine(t *testing.T) {
	h := newHandler("1.4.0", "x86_64-linux-musl")
	reply, shutdown := h.dispatch([]byte(`{"id":`))
	assert.Nil(t, reply)
	assert.False(t, shutdown)
}

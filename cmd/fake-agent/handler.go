// ABOUTME: Request dispatch for the fake agent: sys/*, a few fs/* methods, watch echo.
// ABOUTME: Unknown methods get -32601 so client error paths can be exercised end to end.

package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/AnalyseDeCircuit/oxideterm/internal/protocol"
)

type handler struct {
	version string
	arch    string
}

func newHandler(version, arch string) *handler {
	return &handler{version: version, arch: arch}
}

// dispatch handles one request line and returns the encoded reply
// (responses plus any notifications) and whether to shut down.
func (h *handler) dispatch(line []byte) ([]byte, bool) {
	var req protocol.Request
	if err := json.Unmarshal(line, &req); err != nil {
		fmt.Fprintf(os.Stderr, "fake-agent: discarding malformed line: %v\n", err)
		return nil, false
	}

	switch req.Method {
	case protocol.MethodSysPing:
		return respond(req.ID, map[string]bool{"pong": true}), false

	case protocol.MethodSysInfo:
		return respond(req.ID, protocol.SysInfo{
			Version: h.version,
			Arch:    h.arch,
			OS:      runtime.GOOS,
			PID:     uint32(os.Getpid()),
		}), false

	case protocol.MethodSysShutdown:
		return respond(req.ID, map[string]any{}), true

	case protocol.MethodFSReadFile:
		return h.readFile(req), false

	case protocol.MethodFSStat:
		return h.stat(req), false

	case protocol.MethodWatchStart:
		// Ack, then emit one synthetic event so the push path is testable.
		var params protocol.WatchStartParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return respondError(req.ID, protocol.ErrCodeInvalidParams, err.Error()), false
		}
		ack := respond(req.ID, map[string]any{})
		event, _ := protocol.EncodeLine(&protocol.Notification{
			Method: protocol.MethodWatchEvent,
			Params: mustMarshal(protocol.WatchEvent{Path: params.Path, Kind: "create"}),
		})
		return append(ack, event...), false

	case protocol.MethodWatchStop:
		return respond(req.ID, map[string]any{}), false

	default:
		return respondError(req.ID, protocol.ErrCodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method)), false
	}
}

func (h *handler) readFile(req protocol.Request) []byte {
	var params protocol.ReadFileParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return respondError(req.ID, protocol.ErrCodeInvalidParams, err.Error())
	}
	maxSize := params.MaxSize
	if maxSize == 0 {
		maxSize = protocol.DefaultReadMaxSize
	}

	info, err := os.Stat(params.Path)
	if err != nil {
		return respondError(req.ID, protocol.ErrCodeNotFound, err.Error())
	}
	if uint64(info.Size()) > maxSize {
		return respondError(req.ID, protocol.ErrCodeIO,
			fmt.Sprintf("file size %d exceeds max_size %d", info.Size(), maxSize))
	}

	data, err := os.ReadFile(params.Path)
	if err != nil {
		return respondError(req.ID, protocol.ErrCodeIO, err.Error())
	}
	sum := sha256.Sum256(data)
	return respond(req.ID, protocol.ReadFileResult{
		Content: string(data),
		Hash:    hex.EncodeToString(sum[:]),
		Size:    uint64(len(data)),
		Mtime:   uint64(info.ModTime().Unix()),
	})
}

func (h *handler) stat(req protocol.Request) []byte {
	var params protocol.StatParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return respondError(req.ID, protocol.ErrCodeInvalidParams, err.Error())
	}

	info, err := os.Lstat(params.Path)
	if err != nil {
		return respond(req.ID, protocol.StatResult{Exists: false})
	}

	fileType := "other"
	switch {
	case info.Mode().IsRegular():
		fileType = "file"
	case info.IsDir():
		fileType = "directory"
	case info.Mode()&os.ModeSymlink != 0:
		fileType = "symlink"
	}
	return respond(req.ID, protocol.StatResult{
		Exists:      true,
		FileType:    fileType,
		Size:        uint64(info.Size()),
		Mtime:       uint64(info.ModTime().Unix()),
		Permissions: fmt.Sprintf("%o", info.Mode().Perm()),
	})
}

func respond(id uint64, result any) []byte {
	raw := mustMarshal(result)
	line, _ := protocol.EncodeLine(&protocol.Response{ID: id, Result: raw})
	return line
}

func respondError(id uint64, code int32, message string) []byte {
	line, _ := protocol.EncodeLine(&protocol.Response{
		ID:    id,
		Error: &protocol.RPCError{Code: code, Message: message},
	})
	return line
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// ABOUTME: Method catalog for the remote agent: names plus parameter and result shapes.
// ABOUTME: These are the wire contract only; the handlers live in the agent binary.

package protocol

import (
	"encoding/json"
	"fmt"
)

// Known method names. The agent answers every call with a Response;
// methods outside this set come back with ErrCodeMethodNotFound.
const (
	MethodFSReadFile  = "fs/readFile"
	MethodFSWriteFile = "fs/writeFile"
	MethodFSStat      = "fs/stat"
	MethodFSListDir   = "fs/listDir"
	MethodFSListTree  = "fs/listTree"
	MethodFSMkdir     = "fs/mkdir"
	MethodFSRemove    = "fs/remove"
	MethodFSRename    = "fs/rename"
	MethodFSChmod     = "fs/chmod"

	MethodWatchStart = "watch/start"
	MethodWatchStop  = "watch/stop"
	MethodWatchEvent = "watch/event"

	MethodSearchGrep = "search/grep"

	MethodGitStatus = "git/status"

	MethodSysPing     = "sys/ping"
	MethodSysInfo     = "sys/info"
	MethodSysShutdown = "sys/shutdown"
)

// KnownMethods lists every method in the catalog, in wire-name order
// within each namespace.
var KnownMethods = []string{
	MethodFSReadFile, MethodFSWriteFile, MethodFSStat, MethodFSListDir,
	MethodFSListTree, MethodFSMkdir, MethodFSRemove, MethodFSRename,
	MethodFSChmod, MethodWatchStart, MethodWatchStop, MethodWatchEvent,
	MethodSearchGrep, MethodGitStatus, MethodSysPing, MethodSysInfo,
	MethodSysShutdown,
}

// ReadFileParams requests file content. Files larger than MaxSize are
// rejected with ErrCodeIO instead of truncated.
type ReadFileParams struct {
	Path    string `json:"path"`
	MaxSize uint64 `json:"max_size,omitempty"`
}

// DefaultReadMaxSize is applied by the agent when max_size is omitted.
const DefaultReadMaxSize uint64 = 10 * 1024 * 1024

// ReadFileResult carries content plus a SHA-256 hex digest of the raw bytes.
type ReadFileResult struct {
	Content string `json:"content"`
	Hash    string `json:"hash"`
	Size    uint64 `json:"size"`
	Mtime   uint64 `json:"mtime"`
}

// WriteFileParams writes content. When ExpectHash is set the agent only
// writes if the current remote hash matches (optimistic lock); a mismatch
// fails with ErrCodeConflict.
type WriteFileParams struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	ExpectHash string `json:"expect_hash,omitempty"`
}

// WriteFileResult reports the post-write state. Atomic is always true;
// the agent writes through a POSIX rename.
type WriteFileResult struct {
	Hash   string `json:"hash"`
	Size   uint64 `json:"size"`
	Mtime  uint64 `json:"mtime"`
	Atomic bool   `json:"atomic"`
}

type StatParams struct {
	Path string `json:"path"`
}

// StatResult describes a path. Fields beyond Exists are absent when the
// path does not exist; absent means "not applicable", never "unknown".
type StatResult struct {
	Exists      bool   `json:"exists"`
	FileType    string `json:"file_type,omitempty"` // "file", "directory", "symlink", "other"
	Size        uint64 `json:"size,omitempty"`
	Mtime       uint64 `json:"mtime,omitempty"`
	Permissions string `json:"permissions,omitempty"` // octal, e.g. "755"
}

type ListDirParams struct {
	Path string `json:"path"`
}

// ListTreeParams bounds the recursive listing both by depth and by total
// entry count so a call against / cannot flood the channel.
type ListTreeParams struct {
	Path       string `json:"path"`
	MaxDepth   uint32 `json:"max_depth,omitempty"`
	MaxEntries uint32 `json:"max_entries,omitempty"`
}

// Defaults applied by the agent when the caller omits the bounds.
const (
	DefaultTreeMaxDepth   uint32 = 3
	DefaultTreeMaxEntries uint32 = 5000
)

// FileEntry is one listing row. Children is populated only for
// directories in a listTree result.
type FileEntry struct {
	Name        string      `json:"name"`
	Path        string      `json:"path"`
	FileType    string      `json:"file_type"`
	Size        uint64      `json:"size"`
	Mtime       uint64      `json:"mtime,omitempty"`
	Permissions string      `json:"permissions,omitempty"`
	Children    []FileEntry `json:"children,omitempty"`
}

type MkdirParams struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive,omitempty"` // mkdir -p behavior
}

type RemoveParams struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive,omitempty"`
}

type RenameParams struct {
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
}

type ChmodParams struct {
	Path string `json:"path"`
	Mode string `json:"mode"` // octal string, e.g. "755"
}

type WatchStartParams struct {
	Path   string   `json:"path"`
	Ignore []string `json:"ignore,omitempty"` // glob patterns, e.g. ["node_modules", ".git"]
}

type WatchStopParams struct {
	Path string `json:"path"`
}

// WatchEvent is the payload of a watch/event notification.
type WatchEvent struct {
	Path string `json:"path"`
	Kind string `json:"kind"` // "create", "modify", "delete", "rename"
}

type GrepParams struct {
	Pattern       string   `json:"pattern"`
	Path          string   `json:"path"`
	IsRegex       bool     `json:"is_regex,omitempty"`
	CaseSensitive bool     `json:"case_sensitive,omitempty"`
	WholeWord     bool     `json:"whole_word,omitempty"`
	MaxResults    uint32   `json:"max_results,omitempty"`
	Ignore        []string `json:"ignore,omitempty"`
}

// DefaultGrepMaxResults is applied by the agent when max_results is omitted.
const DefaultGrepMaxResults uint32 = 500

type GrepMatch struct {
	Path   string `json:"path"`
	Line   uint32 `json:"line"`
	Column uint32 `json:"column"`
	Text   string `json:"text"`
}

type GitStatusParams struct {
	Path string `json:"path"`
}

type GitStatusResult struct {
	Branch string          `json:"branch"`
	Files  []GitFileStatus `json:"files"`
}

type GitFileStatus struct {
	Path   string `json:"path"`
	Status string `json:"status"` // "M", "A", "D", "?", "R", ...
}

// SysInfo is the agent identity returned by sys/info and verified
// during the deployment handshake.
type SysInfo struct {
	Version string `json:"version"`
	Arch    string `json:"arch"`
	OS      string `json:"os"`
	PID     uint32 `json:"pid"`
}

// AsWatchEvent decodes the notification payload when the method is
// watch/event. Other methods return (nil, false) so callers can skip
// pushes they do not understand without losing them.
func (n *Notification) AsWatchEvent() (*WatchEvent, bool) {
	if n.Method != MethodWatchEvent {
		return nil, false
	}
	var ev WatchEvent
	if err := json.Unmarshal(n.Params, &ev); err != nil {
		return nil, false
	}
	return &ev, true
}

// NewRequest builds a Request, marshaling params in place. A nil params
// value is sent as an empty object so the agent's decoders always see one.
func NewRequest(id uint64, method string, params any) (*Request, error) {
	raw := json.RawMessage(`{}`)
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encoding params for %s: %w", method, err)
		}
		raw = data
	}
	return &Request{ID: id, Method: method, Params: raw}, nil
}

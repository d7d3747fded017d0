// Package protocol defines the wire contract between the terminal client
// and the remote agent binary.
//
// # Wire Format
//
// Messages travel as line-delimited JSON over the agent's stdin/stdout:
// exactly one UTF-8 encoded object per line, no embedded newlines.
//
//   - Request: {"id": 7, "method": "fs/stat", "params": {...}}
//   - Response: {"id": 7, "result": {...}} or {"id": 7, "error": {"code": -2, "message": "..."}}
//   - Notification: {"method": "watch/event", "params": {...}} with no id
//
// Decode classifies inbound lines. Lines that fit neither shape are
// reported as ErrUnclassifiable; the exec channel can interleave shell
// diagnostics with protocol output, so the transport logs and skips them.
//
// # Error Codes
//
// Generic JSON-RPC codes cover malformed params (-32602), unknown methods
// (-32601) and internal failures (-32603). A small negative range covers
// I/O outcomes: io (-1), not found (-2), permission (-3), already exists
// (-4), conflict (-5). Codes are the contract; message strings are not.
//
// # Method Catalog
//
// The catalog is fixed per agent version and not renegotiated per
// connection: fs/* for filesystem access, watch/* for change
// notification, search/grep, git/status, and sys/* for identity and
// lifecycle. Absent fields in results mean "not applicable", never
// "unknown".
package protocol

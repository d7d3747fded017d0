// ABOUTME: Tests for wire line classification and encoding.
// ABOUTME: Covers responses, notifications, noise lines, and the error codes.

package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDecodeResponse(t *testing.T) {
	t.Run("result", func(t *testing.T) {
		msg, err := Decode([]byte(`{"id":7,"result":{"pong":true}}`))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		resp, ok := msg.(*Response)
		if !ok {
			t.Fatalf("expected *Response, got %T", msg)
		}
		if resp.ID != 7 {
			t.Errorf("id = %d, want 7", resp.ID)
		}
		if resp.Error != nil {
			t.Errorf("unexpected error field: %v", resp.Error)
		}
		if string(resp.Result) != `{"pong":true}` {
			t.Errorf("result = %s", resp.Result)
		}
	})

	t.Run("error", func(t *testing.T) {
		msg, err := Decode([]byte(`{"id":3,"error":{"code":-2,"message":"no such file"}}`))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		resp := msg.(*Response)
		if resp.Error == nil {
			t.Fatal("expected error field")
		}
		if resp.Error.Code != ErrCodeNotFound {
			t.Errorf("code = %d, want %d", resp.Error.Code, ErrCodeNotFound)
		}
		if !strings.Contains(resp.Error.Error(), "no such file") {
			t.Errorf("Error() = %q", resp.Error.Error())
		}
	})

	t.Run("reordered keys", func(t *testing.T) {
		msg, err := Decode([]byte(`{"result":42,"id":1}`))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if resp := msg.(*Response); resp.ID != 1 {
			t.Errorf("id = %d, want 1", resp.ID)
		}
	})

	t.Run("id zero is still a response", func(t *testing.T) {
		msg, err := Decode([]byte(`{"id":0,"result":null}`))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if _, ok := msg.(*Response); !ok {
			t.Fatalf("expected *Response, got %T", msg)
		}
	})
}

func TestDecodeNotification(t *testing.T) {
	msg, err := Decode([]byte(`{"method":"watch/event","params":{"path":"/tmp/a","kind":"modify"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	n, ok := msg.(*Notification)
	if !ok {
		t.Fatalf("expected *Notification, got %T", msg)
	}
	ev, ok := n.AsWatchEvent()
	if !ok {
		t.Fatal("AsWatchEvent returned false")
	}
	if ev.Path != "/tmp/a" || ev.Kind != "modify" {
		t.Errorf("event = %+v", ev)
	}
}

func TestDecodeNoise(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"plain text", "agent starting up"},
		{"request shaped", `{"id":4,"method":"sys/ping","params":{}}`},
		{"bare object", `{}`},
		{"json array", `[1,2,3]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.line))
			if !errors.Is(err, ErrUnclassifiable) {
				t.Errorf("Decode(%q) err = %v, want ErrUnclassifiable", tc.line, err)
			}
		})
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"id":5,`))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrUnclassifiable) {
		t.Error("truncated JSON should report a decode error, not noise")
	}
}

func TestEncodeLine(t *testing.T) {
	req, err := NewRequest(12, MethodSysPing, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	line, err := EncodeLine(req)
	if err != nil {
		t.Fatalf("EncodeLine: %v", err)
	}
	if line[len(line)-1] != '\n' {
		t.Error("line is not newline terminated")
	}
	if string(req.Params) != `{}` {
		t.Errorf("nil params encoded as %s, want {}", req.Params)
	}

	var round Request
	if err := json.Unmarshal(line, &round); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if round.ID != 12 || round.Method != MethodSysPing {
		t.Errorf("round trip = %+v", round)
	}
}

func TestAsWatchEventWrongMethod(t *testing.T) {
	n := &Notification{Method: MethodSysPing, Params: json.RawMessage(`{}`)}
	if _, ok := n.AsWatchEvent(); ok {
		t.Error("non watch/event notification classified as watch event")
	}
}

func TestErrorCodesAreStable(t *testing.T) {
	codes := map[int32]int32{
		ErrCodeInvalidParams:  -32602,
		ErrCodeMethodNotFound: -32601,
		ErrCodeInternal:       -32603,
		ErrCodeIO:             -1,
		ErrCodeNotFound:       -2,
		ErrCodePermission:     -3,
		ErrCodeAlreadyExists:  -4,
		ErrCodeConflict:       -5,
	}
	for got, want := range codes {
		if got != want {
			t.Errorf("code = %d, want %d", got, want)
		}
	}
}

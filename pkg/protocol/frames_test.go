package protocol

import (
	"errors"
	"testing"
)

func TestDecode_Work(t *testing.T) {
	data := []byte(`{"type":"agent:work","agentId":"coder","id":"w-1","content":{"text":"hi"}}`)
	f, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	w, ok := f.(*WorkFrame)
	if !ok {
		t.Fatalf("decoded %T, want *WorkFrame", f)
	}
	if w.AgentID != "coder" || w.ID != "w-1" {
		t.Errorf("got agentId=%q id=%q", w.AgentID, w.ID)
	}
}

func TestDecode_WorkMissingAgent(t *testing.T) {
	data := []byte(`{"type":"agent:work","id":"w-1"}`)
	if _, err := Decode(data); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("err = %v, want ErrMalformedFrame", err)
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	data := []byte(`{"type":"server:fancy"}`)
	if _, err := Decode(data); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
}

func TestDecode_NotJSON(t *testing.T) {
	if _, err := Decode([]byte("not json")); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("err = %v, want ErrMalformedFrame", err)
	}
}

func TestDecode_MissingType(t *testing.T) {
	if _, err := Decode([]byte(`{"agentId":"coder"}`)); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("err = %v, want ErrMalformedFrame", err)
	}
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind([]byte(`{"type":"client:ping","ts":123}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if kind != KindPing {
		t.Errorf("kind = %q, want %q", kind, KindPing)
	}
}

func TestEncode_StatusRoundTrip(t *testing.T) {
	data, err := Encode(NewStatus("coder", StatusBusy, 3))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	f, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	s := f.(*StatusFrame)
	if s.Status != StatusBusy || s.QueueDepth != 3 {
		t.Errorf("got status=%q depth=%d", s.Status, s.QueueDepth)
	}
}

func TestNewRejection(t *testing.T) {
	r := NewRejection("coder", "w-9", ErrCodeQueueFull, "queue is full")
	if r.OK {
		t.Error("rejection should not be OK")
	}
	if r.Error == nil || r.Error.Code != ErrCodeQueueFull {
		t.Errorf("error shape = %+v", r.Error)
	}
}

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestEncodeReadRoundTrip(t *testing.T) {
	msg := &ImMessage{
		MessageType: MessageTypeFriend,
		Content:     "你好",
		FromID:      1001,
		ToID:        2001,
		Avatar:      "https://example.com/a.png",
		Username:    "alice",
	}

	frame, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := ReadFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	if got.MessageType != MessageTypeFriend {
		t.Errorf("Expected messageType %d, got %d", MessageTypeFriend, got.MessageType)
	}
	if got.Content != "你好" {
		t.Errorf("Expected content '你好', got '%s'", got.Content)
	}
	if got.FromID != 1001 || got.ToID != 2001 {
		t.Errorf("Unexpected ids: from=%d to=%d", got.FromID, got.ToID)
	}
	if got.Username != "alice" {
		t.Errorf("Expected username alice, got %s", got.Username)
	}
}

func TestReadFrame_Malformed(t *testing.T) {
	body := []byte("{not json")
	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame[:HeaderSize], uint32(len(body)))
	copy(frame[HeaderSize:], body)

	_, err := ReadFrame(bytes.NewReader(frame))
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}
}

func TestReadFrame_TooLarge(t *testing.T) {
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header, MaxFrameSize+1)

	_, err := ReadFrame(bytes.NewReader(header))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("Expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrame_EOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	if err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestReadFrame_TruncatedBody(t *testing.T) {
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header, 100)
	frame := append(header, []byte("short")...)

	_, err := ReadFrame(bytes.NewReader(frame))
	if err == nil {
		t.Error("Expected error for truncated body")
	}
}

func TestKnownType(t *testing.T) {
	tests := []struct {
		messageType int
		known       bool
	}{
		{MessageTypeFriend, true},
		{MessageTypeGroup, true},
		{MessageTypeOnlineCount, true},
		{0, false},
		{4, false},
		{-1, false},
	}

	for _, tt := range tests {
		msg := &ImMessage{MessageType: tt.messageType}
		if got := msg.KnownType(); got != tt.known {
			t.Errorf("KnownType(%d) = %v, expected %v", tt.messageType, got, tt.known)
		}
	}
}

func TestNewOnlineCount(t *testing.T) {
	msg := NewOnlineCount(42)
	if msg.MessageType != MessageTypeOnlineCount {
		t.Errorf("Expected messageType %d, got %d", MessageTypeOnlineCount, msg.MessageType)
	}
	if msg.OnlineCount != 42 {
		t.Errorf("Expected onlineCount 42, got %d", msg.OnlineCount)
	}
}

package wasm

import (
	"bytes"
	"errors"
	"testing"
)

func TestAppendUleb32(t *testing.T) {
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xe5, 0x8e, 0x26}},
		{0xffffffff, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}
	for _, tt := range tests {
		got := AppendUleb32(nil, tt.v)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("AppendUleb32(%d) = %x, want %x", tt.v, got, tt.want)
		}
		v, n, err := readUleb32(got)
		if err != nil || v != tt.v || n != len(got) {
			t.Errorf("readUleb32(%x) = %d, %d, %v", got, v, n, err)
		}
	}
}

func TestAppendSleb64(t *testing.T) {
	tests := []struct {
		v    int64
		want []byte
	}{
		{0, []byte{0x00}},
		{-1, []byte{0x7f}},
		{63, []byte{0x3f}},
		{64, []byte{0xc0, 0x00}},
		{-64, []byte{0x40}},
		{-65, []byte{0xbf, 0x7f}},
		{-123456, []byte{0xc0, 0xbb, 0x78}},
	}
	for _, tt := range tests {
		got := AppendSleb64(nil, tt.v)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("AppendSleb64(%d) = %x, want %x", tt.v, got, tt.want)
		}
		v, n, err := readSleb(got, 10)
		if err != nil || v != tt.v || n != len(got) {
			t.Errorf("readSleb(%x) = %d, %d, %v", got, v, n, err)
		}
	}
}

func TestReadLEBErrors(t *testing.T) {
	if _, _, err := readUleb32([]byte{0x80, 0x80}); !errors.Is(err, ErrUnexpectedEnd) {
		t.Errorf("truncated uleb: got %v, want ErrUnexpectedEnd", err)
	}
	if _, _, err := readUleb32([]byte{0xff, 0xff, 0xff, 0xff, 0x7f}); !errors.Is(err, ErrLEBOverflow) {
		t.Errorf("oversized uleb: got %v, want ErrLEBOverflow", err)
	}
	if _, _, err := readSleb([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x00}, 5); !errors.Is(err, ErrLEBOverflow) {
		t.Errorf("long sleb: got %v, want ErrLEBOverflow", err)
	}
}

package safetensors

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
)

// writeSafetensors creates a minimal safetensors file with dataLen bytes of data.
func writeSafetensors(t *testing.T, path string, tensors map[string]tensorHeader, dataLen int) {
	t.Helper()
	headerBytes, err := json.Marshal(tensors)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	buf := make([]byte, 8, 8+len(headerBytes)+dataLen)
	binary.LittleEndian.PutUint64(buf, uint64(len(headerBytes)))
	buf = append(buf, headerBytes...)
	buf = append(buf, make([]byte, dataLen)...)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func TestVerifyValidFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "model.safetensors")
	writeSafetensors(t, path, map[string]tensorHeader{
		"embeddings.weight": {DType: "F32", Shape: []int{2, 3}, DataOffsets: []int64{0, 24}},
		"lm_head.bias":      {DType: "BF16", Shape: []int{4}, DataOffsets: []int64{24, 32}},
	}, 32)

	f, err := Verify(path)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(f.Tensors) != 2 {
		t.Fatalf("expected 2 tensors, got %d", len(f.Tensors))
	}
	if got := f.Tensors["lm_head.bias"]; got.Start != 24 || got.End != 32 || got.DType != "BF16" {
		t.Fatalf("unexpected tensor info: %+v", got)
	}
}

func TestVerifyIgnoresMetadata(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "model.safetensors")
	raw := []byte(`{"__metadata__":{"format":"pt"},"w":{"dtype":"U8","shape":[3],"data_offsets":[0,3]}}`)
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(len(raw)))
	buf = append(append(buf, raw...), 1, 2, 3)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Verify(path); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsCorruptFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	truncated := filepath.Join(dir, "truncated.safetensors")
	writeSafetensors(t, truncated, map[string]tensorHeader{
		"w": {DType: "F32", Shape: []int{4}, DataOffsets: []int64{0, 16}},
	}, 8)

	wrongSize := filepath.Join(dir, "wrong.safetensors")
	writeSafetensors(t, wrongSize, map[string]tensorHeader{
		"w": {DType: "F16", Shape: []int{4}, DataOffsets: []int64{0, 4}},
	}, 4)

	badOffsets := filepath.Join(dir, "offsets.safetensors")
	writeSafetensors(t, badOffsets, map[string]tensorHeader{
		"w": {DType: "F32", Shape: []int{1}, DataOffsets: []int64{4}},
	}, 4)

	short := filepath.Join(dir, "short.safetensors")
	if err := os.WriteFile(short, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	huge := filepath.Join(dir, "huge.safetensors")
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf, 1<<40)
	if err := os.WriteFile(huge, buf, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, path := range []string{truncated, wrongSize, badOffsets, short, huge} {
		if _, err := Verify(path); !errors.Is(err, ErrCorrupt) {
			t.Errorf("Verify(%s): expected ErrCorrupt, got %v", filepath.Base(path), err)
		}
	}
}

func TestByteLength(t *testing.T) {
	t.Parallel()
	tests := []struct {
		shape   []int
		size    int64
		want    int64
		wantErr bool
	}{
		{nil, 4, 4, false},
		{[]int{2, 3}, 2, 12, false},
		{[]int{0, 5}, 8, 0, false},
		{[]int{-1}, 1, 0, true},
		{[]int{1 << 31, 1 << 31}, 1, 1 << 62, false},
		{[]int{1 << 31, 1 << 31}, 8, 0, true},
		{[]int{1 << 62, 4}, 1, 0, true},
	}
	for _, tc := range tests {
		got, err := byteLength(tc.shape, tc.size)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("byteLength(%v, %d): got %d, %v", tc.shape, tc.size, got, err)
		}
	}
}

func TestVerifyRejectsOverflowingShape(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "overflow.safetensors")
	// 2^31 * 2^31 * 8 bytes wraps an int64 to 0, which would match empty offsets.
	writeSafetensors(t, path, map[string]tensorHeader{
		"w": {DType: "F64", Shape: []int{1 << 31, 1 << 31}, DataOffsets: []int64{0, 0}},
	}, 0)

	if _, err := Verify(path); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := Open(filepath.Join(t.TempDir(), "nope.safetensors")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

// Package safetensors reads safetensors headers to check downloaded weights.
package safetensors

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/goccy/go-json"
)

// maxHeaderLen bounds the JSON header; the format caps it at 100MB.
const maxHeaderLen = 100 << 20

var ErrCorrupt = errors.New("corrupt safetensors file")

type TensorInfo struct {
	DType string
	Shape []int
	Start int64
	End   int64
}

// File is a parsed header. Tensor offsets are relative to DataStart.
type File struct {
	Path      string
	DataStart int64
	Size      int64
	Tensors   map[string]TensorInfo
}

type tensorHeader struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

var dtypeSize = map[string]int64{
	"BOOL": 1, "U8": 1, "I8": 1, "F8_E4M3": 1, "F8_E5M2": 1,
	"I16": 2, "U16": 2, "F16": 2, "BF16": 2,
	"I32": 4, "U32": 4, "F32": 4,
	"I64": 8, "U64": 8, "F64": 8,
}

// Open parses the header of the file at path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	var lenBuf [8]byte
	if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("%s: read header length: %w", path, ErrCorrupt)
	}
	headerLen := binary.LittleEndian.Uint64(lenBuf[:])
	if headerLen == 0 || headerLen > maxHeaderLen || int64(headerLen)+8 > st.Size() {
		return nil, fmt.Errorf("%s: header length %d out of range: %w", path, headerLen, ErrCorrupt)
	}
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerBytes); err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, ErrCorrupt)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		return nil, fmt.Errorf("%s: parse header: %v: %w", path, err, ErrCorrupt)
	}
	delete(raw, "__metadata__")

	tensors := make(map[string]TensorInfo, len(raw))
	for name, msg := range raw {
		var th tensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("%s: tensor %s: %v: %w", path, name, err, ErrCorrupt)
		}
		if len(th.DataOffsets) != 2 {
			return nil, fmt.Errorf("%s: tensor %s: invalid data_offsets: %w", path, name, ErrCorrupt)
		}
		tensors[name] = TensorInfo{
			DType: th.DType,
			Shape: th.Shape,
			Start: th.DataOffsets[0],
			End:   th.DataOffsets[1],
		}
	}
	return &File{
		Path:      path,
		DataStart: int64(8 + headerLen),
		Size:      st.Size(),
		Tensors:   tensors,
	}, nil
}

// Verify checks that every tensor lies inside the file and that its byte length
// matches its dtype and shape.
func Verify(path string) (*File, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	dataLen := f.Size - f.DataStart

	names := make([]string, 0, len(f.Tensors))
	for name := range f.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := f.Tensors[name]
		if t.Start < 0 || t.End < t.Start || t.End > dataLen {
			return nil, fmt.Errorf("%s: tensor %s: offsets [%d, %d) outside data of %d bytes: %w", path, name, t.Start, t.End, dataLen, ErrCorrupt)
		}
		size, known := dtypeSize[t.DType]
		if !known {
			continue
		}
		want, err := byteLength(t.Shape, size)
		if err != nil {
			return nil, fmt.Errorf("%s: tensor %s: %v: %w", path, name, err, ErrCorrupt)
		}
		if t.End-t.Start != want {
			return nil, fmt.Errorf("%s: tensor %s: %d bytes, want %d for %s%v: %w", path, name, t.End-t.Start, want, t.DType, t.Shape, ErrCorrupt)
		}
	}
	return f, nil
}

// byteLength returns the data size of a tensor with shape and elemSize-byte
// elements; a scalar holds one element. Sizes that do not fit an int64 are errors.
func byteLength(shape []int, elemSize int64) (int64, error) {
	n := elemSize
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("invalid dim %d", d)
		}
		if d > 0 && n > math.MaxInt64/int64(d) {
			return 0, fmt.Errorf("tensor of shape %v too large", shape)
		}
		n *= int64(d)
	}
	return n, nil
}

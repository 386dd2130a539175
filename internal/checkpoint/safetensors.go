package checkpoint

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/born-ml/compress/internal/tensor"
	"github.com/goccy/go-json"
)

// SafeTensors format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes]

const (
	metadataKey     = "__metadata__"
	maxHeaderSize   = 100 * 1024 * 1024
	headerSizeBytes = 8
)

// DType represents supported SafeTensors data types.
type DType string

// Supported SafeTensors dtypes.
const (
	F16  DType = "F16"
	F32  DType = "F32"
	F64  DType = "F64"
	BF16 DType = "BF16"
	I32  DType = "I32"
	I64  DType = "I64"
	U8   DType = "U8"
	Bool DType = "BOOL"
)

// TensorInfo describes a tensor in SafeTensors format.
type TensorInfo struct {
	DType       DType    `json:"dtype"`
	Dims        []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end]
}

// Shape returns the tensor shape.
func (i TensorInfo) Shape() tensor.Shape {
	return tensor.Shape(i.Dims)
}

// Header is the JSON header in SafeTensors format.
type Header struct {
	Metadata map[string]string
	Tensors  map[string]TensorInfo
}

// UnmarshalJSON implements custom JSON unmarshaling for Header.
func (h *Header) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap[metadataKey]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	h.Tensors = make(map[string]TensorInfo, len(rawMap))
	for key, value := range rawMap {
		if key == metadataKey {
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling for Header.
func (h Header) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(h.Tensors)+1)
	if len(h.Metadata) > 0 {
		out[metadataKey] = h.Metadata
	}
	for name, info := range h.Tensors {
		out[name] = info
	}
	return json.Marshal(out)
}

// ReadHeader reads the size prefix and JSON header from r, leaving r
// positioned at the start of the data section.
func ReadHeader(r io.Reader) (*Header, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("%w: failed to read header size: %v", ErrInvalidHeader, err)
	}
	if headerSize > maxHeaderSize {
		return nil, fmt.Errorf("%w: header size %d too large", ErrInvalidHeader, headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", ErrInvalidHeader, err)
	}

	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("%w: failed to parse header JSON: %v", ErrInvalidHeader, err)
	}
	for name, info := range header.Tensors {
		if info.DataOffsets[1] < info.DataOffsets[0] || info.DataOffsets[0] < 0 {
			return nil, fmt.Errorf("%w: invalid data offsets for tensor %s: %v", ErrInvalidHeader, name, info.DataOffsets)
		}
	}
	return &header, nil
}

// ReadSafeTensorsShapes reads only the header of a SafeTensors file and
// returns identifier -> shape. Tensor data is not loaded.
func ReadSafeTensorsShapes(path string) (Shapes, map[string]string, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for checkpoint loading
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	header, err := ReadHeader(bufio.NewReader(file))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return ShapesOf(header.Tensors), header.Metadata, nil
}

// LoadSafeTensors loads every tensor of a SafeTensors file. Only F32 is
// supported; other dtypes fail with ErrUnsupportedDType.
func LoadSafeTensors(path string) (map[string]*tensor.Tensor, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for checkpoint loading
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) < headerSizeBytes {
		return nil, fmt.Errorf("%s: %w: file too short", path, ErrInvalidHeader)
	}

	headerSize := binary.LittleEndian.Uint64(data[:headerSizeBytes])
	header, err := ReadHeader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	body := data[headerSizeBytes+int(headerSize):] //nolint:gosec // G115: bounded by maxHeaderSize

	out := make(map[string]*tensor.Tensor, len(header.Tensors))
	for name, info := range header.Tensors {
		if info.DType != F32 {
			return nil, fmt.Errorf("tensor %s: %w: %s", name, ErrUnsupportedDType, info.DType)
		}
		start, end := info.DataOffsets[0], info.DataOffsets[1]
		if end > int64(len(body)) {
			return nil, fmt.Errorf("tensor %s: data [%d, %d) extends beyond data section (%d bytes)", name, start, end, len(body))
		}
		raw := body[start:end]
		shape := info.Shape()
		n, ok := elementsWithin(shape, (end-start)/4)
		if !ok || n*4 != end-start {
			return nil, fmt.Errorf("tensor %s: %w: shape %v does not fit %d data bytes", name, ErrInvalidHeader, shape, end-start)
		}
		values := make([]float32, n)
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		t, err := tensor.FromSlice(values, shape)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// elementsWithin returns the element count of shape, or false if a
// dimension is not positive or the count exceeds limit.
func elementsWithin(shape tensor.Shape, limit int64) (int64, bool) {
	n := int64(1)
	for _, d := range shape {
		if d <= 0 || n > limit/int64(d) {
			return 0, false
		}
		n *= int64(d)
	}
	return n, n <= limit
}

// WriteSafeTensors writes tensors as F32 in sorted identifier order.
func WriteSafeTensors(path string, tensors map[string]*tensor.Tensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{Metadata: metadata, Tensors: make(map[string]TensorInfo, len(names))}
	var offset int64
	for _, name := range names {
		t := tensors[name]
		size := int64(t.NumElements()) * 4
		header.Tensors[name] = TensorInfo{
			DType:       F32,
			Dims:        t.Shape().Clone(),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	//nolint:gosec // G304: File path comes from user input, which is expected for checkpoint saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	w := bufio.NewWriter(file)

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	buf := make([]byte, 4)
	for _, name := range names {
		for _, v := range tensors[name].Data() {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := w.Write(buf); err != nil {
				_ = file.Close()
				return fmt.Errorf("failed to write tensor %s: %w", name, err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to flush: %w", err)
	}
	return file.Close()
}

package checkpoint

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/compress/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeTensorsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.safetensors")

	w, err := tensor.FromSlice([]float32{1, -2, 3.5, 4, 5, 6}, tensor.Shape{2, 3})
	require.NoError(t, err)
	b, err := tensor.FromSlice([]float32{0.25}, tensor.Shape{1})
	require.NoError(t, err)

	require.NoError(t, WriteSafeTensors(path, map[string]*tensor.Tensor{
		"fc.weight": w,
		"fc.bias":   b,
	}, map[string]string{"format": "pt"}))

	shapes, meta, err := ReadSafeTensorsShapes(path)
	require.NoError(t, err)
	assert.Equal(t, Shapes{"fc.weight": {2, 3}, "fc.bias": {1}}, shapes)
	assert.Equal(t, "pt", meta["format"])

	loaded, err := LoadSafeTensors(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, w.Data(), loaded["fc.weight"].Data())
	assert.Equal(t, b.Data(), loaded["fc.bias"].Data())
}

func writeRawHeader(t *testing.T, path, header string, data ...byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, binary.Write(f, binary.LittleEndian, uint64(len(header))))
	_, err = f.WriteString(header)
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
}

func TestLoadSafeTensorsRejectsNonF32(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f16.safetensors")
	writeRawHeader(t, path, `{"w":{"dtype":"F16","shape":[1],"data_offsets":[0,2]}}`, 0, 0)

	shapes, _, err := ReadSafeTensorsShapes(path)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1}, shapes["w"])

	_, err = LoadSafeTensors(path)
	require.ErrorIs(t, err, ErrUnsupportedDType)
}

func TestReadHeaderRejectsInvalidOffsets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.safetensors")
	writeRawHeader(t, path, `{"w":{"dtype":"F32","shape":[1],"data_offsets":[8,4]}}`)

	_, _, err := ReadSafeTensorsShapes(path)
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestLoadSafeTensorsRejectsOversizedShape(t *testing.T) {
	tests := []struct {
		name   string
		header string
		data   []byte
	}{
		{"overflowing product", `{"w":{"dtype":"F32","shape":[4611686018427387904,4],"data_offsets":[0,0]}}`, nil},
		{"larger than data", `{"w":{"dtype":"F32","shape":[2,2],"data_offsets":[0,4]}}`, []byte{0, 0, 0, 0}},
		{"zero dimension", `{"w":{"dtype":"F32","shape":[0,3],"data_offsets":[0,0]}}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "w.safetensors")
			writeRawHeader(t, path, tt.header, tt.data...)

			_, err := LoadSafeTensors(path)
			require.ErrorIs(t, err, ErrInvalidHeader)
		})
	}
}

func TestReadHeaderRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.safetensors")
	writeRawHeader(t, path, `not json`)

	_, _, err := ReadSafeTensorsShapes(path)
	require.ErrorIs(t, err, ErrInvalidHeader)

	_, err = LoadSafeTensors(path)
	require.ErrorIs(t, err, ErrInvalidHeader)
}

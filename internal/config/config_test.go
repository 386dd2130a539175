package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/compress/internal/compression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlDoc = `
compression:
  - algorithm: quantization
    bits: 4
    initializer:
      range:
        num_init_steps: 10
      precision:
        bits: [2, 4, 8]
  - algorithm: magnitude_sparsity
    sparsity_target: 0.6
    schedule: linear
checkpoint:
  prefixes: ["module.", "compressed."]
  strict: false
`

func TestParseYAML(t *testing.T) {
	doc, err := Parse([]byte(yamlDoc), YAML)
	require.NoError(t, err)
	require.Len(t, doc.Algorithms, 2)

	q := doc.Algorithms[0]
	assert.Equal(t, "quantization", q.Name)
	bits, err := q.Params.Int("bits", 8)
	require.NoError(t, err)
	assert.Equal(t, 4, bits)
	steps, err := q.Params.Int("initializer.range.num_init_steps", 0)
	require.NoError(t, err)
	assert.Equal(t, 10, steps)
	candidates, err := q.Params.Ints("initializer.precision.bits")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 8}, candidates)
	assert.False(t, q.Params.Has("algorithm"))

	assert.Equal(t, []string{"module.", "compressed."}, doc.Checkpoint.Prefixes)
	assert.False(t, doc.Checkpoint.StrictOr(true))

	cfg, err := doc.Config()
	require.NoError(t, err)
	assert.Equal(t, []string{"quantization", "magnitude_sparsity"}, cfg.Names())
}

func TestParseJSONSingleObject(t *testing.T) {
	doc, err := Parse([]byte(`{"compression": {"algorithm": "rb_sparsity", "sparsity_target": 0.3, "seed": 7}}`), JSON)
	require.NoError(t, err)
	require.Len(t, doc.Algorithms, 1)
	assert.Equal(t, "rb_sparsity", doc.Algorithms[0].Name)

	seed, err := doc.Algorithms[0].Params.Int("seed", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, seed)
	assert.Empty(t, doc.Checkpoint.Prefixes)
	assert.True(t, doc.Checkpoint.StrictOr(true))
}

func TestParseRejectsMalformedDocuments(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"not yaml", "compression: [", YAML},
		{"not json", "{", JSON},
		{"scalar compression", "compression: 3", YAML},
		{"scalar entry", "compression: [quantization]", YAML},
		{"missing algorithm", "compression: [{bits: 8}]", YAML},
		{"unknown format", "{}", Format("toml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			require.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestDuplicateAlgorithmsRejectedByConfig(t *testing.T) {
	doc, err := Parse([]byte("compression: [{algorithm: quantization}, {algorithm: quantization}]"), YAML)
	require.NoError(t, err)
	_, err = doc.Config()
	require.ErrorIs(t, err, compression.ErrDuplicateAlgorithm)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "compress.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, doc.Algorithms, 2)

	_, err = Load(filepath.Join(dir, "compress.toml"))
	require.ErrorIs(t, err, ErrInvalidDocument)

	_, err = Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestEmptyDocument(t *testing.T) {
	doc, err := Parse([]byte("{}"), JSON)
	require.NoError(t, err)
	assert.Empty(t, doc.Algorithms)
}

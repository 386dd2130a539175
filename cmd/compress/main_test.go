package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/born-ml/compress/internal/checkpoint"
	"github.com/born-ml/compress/internal/tensor"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(context.Background(), append([]string{"compress"}, args...))
	return out.String(), err
}

func writeSnapshot(t *testing.T, path string, shapes map[string]tensor.Shape) {
	t.Helper()
	tensors := make(map[string]*tensor.Tensor, len(shapes))
	for id, s := range shapes {
		tensors[id] = tensor.Full(s, 1)
	}
	require.NoError(t, checkpoint.WriteSafeTensors(path, tensors, nil))
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "compress "+version+"\n", out)
}

func TestMatchCommandJSON(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "snapshot.safetensors")
	model := filepath.Join(dir, "model.safetensors")
	writeSnapshot(t, snap, map[string]tensor.Shape{
		"module.fc.weight": {2, 3},
		"module.fc.bias":   {2},
	})
	writeSnapshot(t, model, map[string]tensor.Shape{
		"compressed.fc.weight": {2, 3},
		"compressed.fc.bias":   {2},
	})

	out, err := run(t, "match", "--snapshot", snap, "--model", model, "--strict", "--json")
	require.NoError(t, err)

	var report matchReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Complete)
	assert.Equal(t, map[string]string{
		"compressed.fc.weight": "module.fc.weight",
		"compressed.fc.bias":   "module.fc.bias",
	}, report.Entries)
	assert.Equal(t, []string{"module.", "compressed."}, report.Prefixes)
}

func TestMatchCommandStrictMismatch(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "snapshot.safetensors")
	model := filepath.Join(dir, "model.safetensors")
	writeSnapshot(t, snap, map[string]tensor.Shape{"fc.weight": {2, 3}})
	writeSnapshot(t, model, map[string]tensor.Shape{
		"compressed.fc.weight": {2, 3},
		"compressed.fc.bias":   {2},
	})

	out, err := run(t, "match", "--snapshot", snap, "--model", model, "--strict", "--json")
	var mismatch *checkpoint.ResumeMismatchError
	require.ErrorAs(t, err, &mismatch)

	var report matchReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.Complete)
	assert.Equal(t, map[string]string{"compressed.fc.bias": string(checkpoint.ReasonMissing)}, report.UnmatchedInModel)

	// Lenient mode lists the same identifier and succeeds.
	out, err = run(t, "match", "--snapshot", snap, "--model", model)
	require.NoError(t, err)
	assert.Contains(t, out, "matched 1 identifiers")
	assert.Contains(t, out, "compressed.fc.bias")
}

func TestMatchCommandPrefixesFromConfig(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "snapshot.safetensors")
	model := filepath.Join(dir, "model.safetensors")
	cfg := filepath.Join(dir, "compress.yaml")
	writeSnapshot(t, snap, map[string]tensor.Shape{"replica.fc.weight": {2}})
	writeSnapshot(t, model, map[string]tensor.Shape{"fc.weight": {2}})
	require.NoError(t, os.WriteFile(cfg, []byte("compression: []\ncheckpoint:\n  prefixes: [\"replica.\"]\n  strict: true\n"), 0o600))

	out, err := run(t, "match", "--snapshot", snap, "--model", model, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "fc.weight <- replica.fc.weight")
}

func TestScheduleCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "compress.yaml")
	metricsPath := filepath.Join(dir, "metrics.prom")
	savePath := filepath.Join(dir, "model.safetensors")
	require.NoError(t, os.WriteFile(cfg, []byte(`
compression:
  - algorithm: quantization
    bits: 8
    initializer:
      range:
        num_init_steps: 2
  - algorithm: magnitude_sparsity
    schedule: linear
    sparsity_init: 0.0
    sparsity_target: 0.5
    sparsity_target_epoch: 2
`), 0o600))

	out, err := run(t, "schedule", "--config", cfg, "--epochs", "2", "--steps-per-epoch", "3",
		"--layers", "6,4,2", "--metrics-out", metricsPath, "--save", savePath, "--log-level", "error")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 9) // 3 epochs reported, 2 algorithms each
	assert.Equal(t, "epoch=0 step=0 loss=0.000000", lines[0])
	assert.Equal(t, "epoch=2 step=6 loss=0.000000", lines[6])
	assert.True(t, strings.HasPrefix(lines[7], "  quantization: "))
	assert.Contains(t, lines[8], "sparsity_level=0.5")

	metricsText, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metricsText), "compress_scheduler_steps_total 6")
	assert.Contains(t, string(metricsText), `compress_algorithm_statistic{algorithm="magnitude_sparsity",statistic="sparsity_level"} 0.5`)

	shapes, meta, err := checkpoint.ReadSafeTensorsShapes(savePath)
	require.NoError(t, err)
	assert.Equal(t, "2", meta["epoch"])
	assert.Equal(t, tensor.Shape{4, 6}, shapes["compressed.fc1.weight"])
	for id := range shapes {
		assert.True(t, strings.HasPrefix(id, "compressed."), id)
	}
}

func TestScheduleCommandUnknownAlgorithm(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "compress.json")
	require.NoError(t, os.WriteFile(cfg, []byte(`{"compression": {"algorithm": "unknown_algo"}}`), 0o600))

	_, err := run(t, "schedule", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown_algo")
}

func TestParseLayers(t *testing.T) {
	tests := []struct {
		layers  string
		want    []int
		wantErr bool
	}{
		{layers: "16,8,4", want: []int{16, 8, 4}},
		{layers: " 3 , 2 ", want: []int{3, 2}},
		{layers: "16", wantErr: true},
		{layers: "16,0", wantErr: true},
		{layers: "a,b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.layers, func(t *testing.T) {
			got, err := parseLayers(tt.layers)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoggerOptions(t *testing.T) {
	o := logOptions{level: "warning", format: "json"}
	var buf bytes.Buffer
	logger, err := o.logger(&buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = (&logOptions{format: "xml"}).logger(io.Discard)
	require.Error(t, err)
}

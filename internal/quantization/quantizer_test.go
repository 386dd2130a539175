package quantization

import (
	"testing"

	"github.com/born-ml/compress/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(t *testing.T, values ...float32) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromSlice(values, tensor.Shape{len(values)})
	require.NoError(t, err)
	return x
}

func TestFakeQuantizeSymmetric(t *testing.T) {
	q, err := NewFakeQuantize(Symmetric, 2)
	require.NoError(t, err)
	q.SetEnabled(true)

	x := vec(t, -1, -0.4, 0.2, 0.6, 3)
	out, err := q.Apply(x)
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, 0, 0, 1, 1}, out.Data())
	assert.Equal(t, []float32{-1, -0.4, 0.2, 0.6, 3}, x.Data(), "input must not change")

	require.NoError(t, q.SetBits(8))
	out, err = q.Apply(vec(t, 0.5))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out.Data()[0], 1.0/254)
}

func TestFakeQuantizeAsymmetric(t *testing.T) {
	q, err := NewFakeQuantize(Asymmetric, 2)
	require.NoError(t, err)
	require.NoError(t, q.SetRange(0, 3))
	q.SetEnabled(true)

	out, err := q.Apply(vec(t, -1, 0.4, 1.6, 5))
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 2, 3}, out.Data())

	lo, hi := q.Range()
	assert.Equal(t, float32(0), lo)
	assert.Equal(t, float32(3), hi)

	names := []string{}
	for _, p := range q.Parameters() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"input_low", "input_range"}, names)
}

func TestFakeQuantizeDisabledPassesThrough(t *testing.T) {
	q, err := NewFakeQuantize(Symmetric, 2)
	require.NoError(t, err)
	out, err := q.Apply(vec(t, 0.3, -0.7))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.3, -0.7}, out.Data())
}

func TestFakeQuantizeObserve(t *testing.T) {
	q, err := NewFakeQuantize(Symmetric, 8)
	require.NoError(t, err)

	require.NoError(t, q.StartObserving())
	_, err = q.Apply(vec(t, -0.5, 2))
	require.NoError(t, err)
	_, err = q.Apply(vec(t, -3, 1))
	require.NoError(t, err)
	observed, err := q.StopObserving()
	require.NoError(t, err)
	assert.True(t, observed)

	lo, hi := q.Range()
	assert.Equal(t, float32(-3), lo)
	assert.Equal(t, float32(3), hi)

	// Nothing observed keeps the previous range.
	require.NoError(t, q.StartObserving())
	observed, err = q.StopObserving()
	require.NoError(t, err)
	assert.False(t, observed)
	_, hi = q.Range()
	assert.Equal(t, float32(3), hi)
}

func TestFakeQuantizeFreeze(t *testing.T) {
	q, err := NewFakeQuantize(Asymmetric, 4)
	require.NoError(t, err)
	q.Freeze()

	assert.True(t, q.Frozen())
	require.Error(t, q.StartObserving())
	require.Error(t, q.SetRange(0, 1))
	for _, p := range q.Parameters() {
		assert.False(t, p.Trainable())
	}
}

func TestFakeQuantizeValidation(t *testing.T) {
	_, err := NewFakeQuantize(Symmetric, 1)
	require.Error(t, err)
	_, err = NewFakeQuantize(Mode("ternary"), 8)
	require.Error(t, err)

	q, err := NewFakeQuantize(Symmetric, 8)
	require.NoError(t, err)
	require.Error(t, q.SetBits(32))
	assert.Equal(t, 8, q.Bits())
	require.Error(t, q.SetRange(1, 0))

	_, err = ParseMode("asymmetric")
	require.NoError(t, err)
	_, err = ParseMode("per_channel")
	require.Error(t, err)
}

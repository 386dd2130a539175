package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{3}, 3},
		{Shape{2, 3}, 6},
		{Shape{2, 3, 4}, 24},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.shape.NumElements(), "shape %v", tt.shape)
	}
}

func TestShapeCompatible(t *testing.T) {
	assert.True(t, Shape{2, 3}.Compatible(Shape{2, 3}))
	assert.True(t, Shape{}.Compatible(Shape{1}))
	assert.True(t, Shape{1, 1}.Compatible(Shape{1}))
	assert.False(t, Shape{2, 3}.Compatible(Shape{3, 2}))
	assert.False(t, Shape{6}.Compatible(Shape{2, 3}))
}

func TestShapeValidate(t *testing.T) {
	require.NoError(t, Shape{1, 2}.Validate())
	require.Error(t, Shape{1, 0}.Validate())
	require.Error(t, Shape{-1}.Validate())
}

func TestShapeString(t *testing.T) {
	assert.Equal(t, "[2 3]", Shape{2, 3}.String())
	assert.Equal(t, "[]", Shape{}.String())
}

func TestFromSlice(t *testing.T) {
	x, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 3}, x.Shape())
	assert.Equal(t, 6, x.NumElements())

	_, err = FromSlice([]float32{1, 2}, Shape{3})
	require.Error(t, err)
}

func TestFromSliceCopiesInput(t *testing.T) {
	src := []float32{1, 2}
	x, err := FromSlice(src, Shape{2})
	require.NoError(t, err)

	src[0] = 42
	assert.Equal(t, float32(1), x.Data()[0])
}

func TestCopyFrom(t *testing.T) {
	dst := New(Shape{2})
	src, err := FromSlice([]float32{3, 4}, Shape{2})
	require.NoError(t, err)

	require.NoError(t, dst.CopyFrom(src))
	assert.Equal(t, []float32{3, 4}, dst.Data())

	require.ErrorIs(t, dst.CopyFrom(New(Shape{3})), ErrShapeMismatch)
}

func TestMinMaxAndMaxAbs(t *testing.T) {
	x, err := FromSlice([]float32{-3, 1, 2.5}, Shape{3})
	require.NoError(t, err)

	lo, hi := x.MinMax()
	assert.Equal(t, float32(-3), lo)
	assert.Equal(t, float32(2.5), hi)
	assert.Equal(t, float32(3), x.MaxAbs())

	lo, hi = New(Shape{0}).MinMax()
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}

func TestClone(t *testing.T) {
	x := Full(Shape{2}, 7)
	y := x.Clone()
	y.Data()[0] = 1

	assert.Equal(t, float32(7), x.Data()[0])
}

package classifier

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHeadFile(t *testing.T, head *Head) string {
	t.Helper()
	raw, err := json.Marshal(head)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "head.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestLoadHead(t *testing.T) {
	head := &Head{
		InputDim:   3,
		NumClasses: 2,
		Kernel:     [][]float32{{1, 0}, {0, 1}, {0.5, -0.5}},
		Bias:       []float32{0.1, -0.1},
	}

	loaded, err := LoadHead(writeHeadFile(t, head))
	require.NoError(t, err)
	assert.Equal(t, head, loaded)
}

func TestLoadHead_MissingFile(t *testing.T) {
	_, err := LoadHead(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadHead_InvalidShapes(t *testing.T) {
	tests := []struct {
		name string
		head *Head
	}{
		{
			name: "kernel row count mismatch",
			head: &Head{InputDim: 3, NumClasses: 2, Kernel: [][]float32{{1, 0}}, Bias: []float32{0, 0}},
		},
		{
			name: "kernel column count mismatch",
			head: &Head{InputDim: 1, NumClasses: 2, Kernel: [][]float32{{1}}, Bias: []float32{0, 0}},
		},
		{
			name: "bias length mismatch",
			head: &Head{InputDim: 1, NumClasses: 2, Kernel: [][]float32{{1, 0}}, Bias: []float32{0}},
		},
		{
			name: "non-positive dimensions",
			head: &Head{InputDim: 0, NumClasses: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadHead(writeHeadFile(t, tt.head))
			require.Error(t, err)
		})
	}
}

func TestHeadClone_DoesNotAliasWeights(t *testing.T) {
	head := &Head{
		InputDim:   2,
		NumClasses: 2,
		Kernel:     [][]float32{{1, 2}, {3, 4}},
		Bias:       []float32{5, 6},
	}

	clone := head.Clone()
	clone.Kernel[0][0] = -100
	clone.Bias[0] = -100

	assert.Equal(t, float32(1), head.Kernel[0][0])
	assert.Equal(t, float32(5), head.Bias[0])
}

func TestHeadLogits(t *testing.T) {
	head := &Head{
		InputDim:   2,
		NumClasses: 3,
		Kernel:     [][]float32{{1, 0, -1}, {0, 2, 1}},
		Bias:       []float32{0.5, 0, -0.5},
	}

	logits, err := head.Logits([]float32{2, 3})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{2.5, 6, 0.5}, logits, 1e-6)
}

func TestHeadLogits_WrongLength(t *testing.T) {
	head := &Head{InputDim: 2, NumClasses: 1, Kernel: [][]float32{{1}, {1}}, Bias: []float32{0}}
	_, err := head.Logits([]float32{1, 2, 3})
	require.Error(t, err)
}

func TestGlobalAveragePool(t *testing.T) {
	fm := &FeatureMap{
		Height:   2,
		Width:    2,
		Channels: 2,
		// Cells: (0,0)=[1,10] (0,1)=[2,20] (1,0)=[3,30] (1,1)=[4,40]
		Data: []float32{1, 10, 2, 20, 3, 30, 4, 40},
	}

	pooled := GlobalAveragePool(fm)
	assert.InDeltaSlice(t, []float32{2.5, 25}, pooled, 1e-6)
}

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float32{1, 2, 3, 4, 5})

	var sum float64
	for i, p := range probs {
		assert.GreaterOrEqual(t, p, float32(0))
		assert.LessOrEqual(t, p, float32(1))
		sum += float64(p)
		if i > 0 {
			assert.Greater(t, p, probs[i-1], "softmax must preserve ordering")
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestSoftmax_LargeLogitsStayFinite(t *testing.T) {
	probs := Softmax([]float32{1000, 999, -1000})
	for _, p := range probs {
		require.False(t, math.IsNaN(float64(p)))
		require.False(t, math.IsInf(float64(p), 0))
	}
	assert.InDelta(t, 1.0, float64(probs[0]+probs[1]+probs[2]), 1e-6)
}

func TestFeatureMapAt(t *testing.T) {
	fm := &FeatureMap{Height: 2, Width: 3, Channels: 2, Data: make([]float32, 12)}
	fm.Data[(1*3+2)*2+1] = 7
	assert.Equal(t, float32(7), fm.At(1, 2, 1))
}

package attribution

import (
	"bytes"
	"encoding/base64"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vedantraval2444/AuraSight-AI-App/internal/classifier"
)

func testHead() *classifier.Head {
	return &classifier.Head{
		InputDim:   2,
		NumClasses: 3,
		Kernel: [][]float32{
			{1, -1, 0},
			{0, 1, 2},
		},
		Bias: []float32{0, 0, 0},
	}
}

func testFeatures() *classifier.FeatureMap {
	fm := &classifier.FeatureMap{Height: 7, Width: 7, Channels: 2, Data: make([]float32, 7*7*2)}
	// One strongly activated cell on channel 0.
	fm.Data[(3*7+5)*2] = 10
	return fm
}

func testInput() []float32 {
	input := make([]float32, classifier.ImageSize*classifier.ImageSize*3)
	for i := range input {
		input[i] = 0.5
	}
	return input
}

func TestClassSaliency_PeaksAtActivatedCell(t *testing.T) {
	saliency := classSaliency(testHead(), testFeatures(), 0)

	require.Len(t, saliency, 49)
	assert.EqualValues(t, 255, saliency[3*7+5])
	for i, v := range saliency {
		if i != 3*7+5 {
			assert.Zero(t, v, "cell %d", i)
		}
	}
}

func TestClassSaliency_NegativeContributionsClamped(t *testing.T) {
	// Target class 1 has weight -1 on the only activated channel, so the
	// rectified map must be all zeros.
	saliency := classSaliency(testHead(), testFeatures(), 1)
	for _, v := range saliency {
		assert.Zero(t, v)
	}
}

func TestExplain_ProducesDecodableJPEG(t *testing.T) {
	engine := NewEngine()

	encoded, err := engine.Explain(testHead(), testFeatures(), testInput(), 0)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, classifier.ImageSize, img.Bounds().Dx())
	assert.Equal(t, classifier.ImageSize, img.Bounds().Dy())
}

func TestExplain_DoesNotMutateLiveHead(t *testing.T) {
	engine := NewEngine()
	head := testHead()

	_, err := engine.Explain(head, testFeatures(), testInput(), 0)
	require.NoError(t, err)

	assert.Equal(t, testHead(), head)
}

func TestExplain_Failures(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name     string
		head     *classifier.Head
		features *classifier.FeatureMap
		input    []float32
		target   int
	}{
		{"nil head", nil, testFeatures(), testInput(), 0},
		{"nil features", testHead(), nil, testInput(), 0},
		{"target below range", testHead(), testFeatures(), testInput(), -1},
		{"target above range", testHead(), testFeatures(), testInput(), 3},
		{"channel mismatch", &classifier.Head{InputDim: 5, NumClasses: 3, Kernel: make([][]float32, 5), Bias: make([]float32, 3)}, testFeatures(), testInput(), 0},
		{"short input tensor", testHead(), testFeatures(), make([]float32, 10), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Explain(tt.head, tt.features, tt.input, tt.target)
			require.Error(t, err)

			var attrErr *AttributionError
			assert.ErrorAs(t, err, &attrErr)
		})
	}
}

func TestJetColormapRamp(t *testing.T) {
	r, g, b := jet(0)
	assert.EqualValues(t, 0, r)
	assert.EqualValues(t, 0, g)
	assert.EqualValues(t, 127, b, "low saliency maps to blue")

	r, g, b = jet(0.5)
	assert.EqualValues(t, 255, g, "mid saliency maps to green")

	r, g, b = jet(1)
	assert.EqualValues(t, 127, r, "high saliency maps to red")
	assert.EqualValues(t, 0, g)
	assert.EqualValues(t, 0, b)
}

func TestBlendWeights(t *testing.T) {
	heat := denormalize(filled(1), classifier.ImageSize)     // all 255
	original := denormalize(filled(0), classifier.ImageSize) // all 0

	out := blend(heat, original, 0.4, 0.6)
	// 0.4·255 + 0.6·0 = 102
	assert.EqualValues(t, 102, out.Pix[0])
	assert.EqualValues(t, 255, out.Pix[3], "alpha stays opaque")
}

func filled(v float32) []float32 {
	input := make([]float32, classifier.ImageSize*classifier.ImageSize*3)
	for i := range input {
		input[i] = v
	}
	return input
}

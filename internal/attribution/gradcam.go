package attribution

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/nfnt/resize"

	"github.com/Vedantraval2444/AuraSight-AI-App/internal/classifier"
)

// AttributionError reports a failed saliency computation. The pipeline treats
// it as a per-request failure; a blank heatmap is never substituted.
type AttributionError struct {
	Reason string
}

func (e *AttributionError) Error() string {
	return fmt.Sprintf("attribution failed: %s", e.Reason)
}

// Engine computes Grad-CAM style explanations: a class-discriminative
// saliency map over the backbone's penultimate feature map, rendered as a
// heat overlay on the scan.
type Engine struct {
	// HeatWeight and ImageWeight are the fixed blend factors for
	// compositing the colormapped saliency onto the original image.
	HeatWeight  float64
	ImageWeight float64
	// JPEGQuality controls the encoding of the composited image.
	JPEGQuality int
}

func NewEngine() *Engine {
	return &Engine{
		HeatWeight:  0.4,
		ImageWeight: 0.6,
		JPEGQuality: 90,
	}
}

// Explain produces the explanation image for targetClass as a base64-encoded
// JPEG. input is the normalized 224×224×3 tensor the prediction ran on;
// features is the feature map that forward pass produced. The head is cloned
// and linearized for the gradient step, so the live model is never mutated.
func (e *Engine) Explain(head *classifier.Head, features *classifier.FeatureMap, input []float32, targetClass int) (string, error) {
	if head == nil || features == nil {
		return "", &AttributionError{Reason: "missing head or feature map"}
	}
	if targetClass < 0 || targetClass >= head.NumClasses {
		return "", &AttributionError{Reason: fmt.Sprintf("target class %d out of range [0,%d)", targetClass, head.NumClasses)}
	}
	if features.Channels != head.InputDim {
		return "", &AttributionError{Reason: fmt.Sprintf("feature map has %d channels, head expects %d", features.Channels, head.InputDim)}
	}
	side := classifier.ImageSize
	if len(input) != side*side*3 {
		return "", &AttributionError{Reason: fmt.Sprintf("input tensor has %d values, expected %d", len(input), side*side*3)}
	}

	saliency := classSaliency(head.Clone(), features, targetClass)
	heat := applyJet(upsample(saliency, features.Height, features.Width, side))
	composited := blend(heat, denormalize(input, side), e.HeatWeight, e.ImageWeight)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, composited, &jpeg.Options{Quality: e.JPEGQuality}); err != nil {
		return "", &AttributionError{Reason: fmt.Sprintf("jpeg encoding: %v", err)}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// classSaliency computes the gradient-weighted channel sum for the target
// class. With the softmax replaced by a linear pass-through, the gradient of
// the class score with respect to feature cell (y,x,k) is constant across the
// spatial grid: kernel[k][class] / (H·W). Its global average — the Grad-CAM
// channel weight — is the same value, so each channel is weighted by its
// head kernel column entry. Negative contributions are clamped to zero and
// the map is scaled to 0–255 by its maximum.
func classSaliency(head *classifier.Head, features *classifier.FeatureMap, targetClass int) []uint8 {
	cells := features.Height * features.Width
	grads := make([]float32, features.Channels)
	for k := 0; k < features.Channels; k++ {
		grads[k] = head.Kernel[k][targetClass] / float32(cells)
	}

	raw := make([]float32, cells)
	var maxVal float32
	for i := 0; i < cells; i++ {
		var sum float32
		cell := features.Data[i*features.Channels : (i+1)*features.Channels]
		for k, v := range cell {
			sum += grads[k] * v
		}
		if sum < 0 {
			sum = 0
		}
		raw[i] = sum
		if sum > maxVal {
			maxVal = sum
		}
	}

	scaled := make([]uint8, cells)
	if maxVal > 0 {
		for i, v := range raw {
			scaled[i] = uint8(v / maxVal * 255)
		}
	}
	return scaled
}

// upsample scales the coarse saliency grid to the full input resolution.
func upsample(saliency []uint8, h, w, side int) *image.Gray {
	coarse := image.NewGray(image.Rect(0, 0, w, h))
	copy(coarse.Pix, saliency)
	scaled := resize.Resize(uint(side), uint(side), coarse, resize.Bilinear)
	if gray, ok := scaled.(*image.Gray); ok {
		return gray
	}
	out := image.NewGray(scaled.Bounds())
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			out.Set(x, y, scaled.At(x, y))
		}
	}
	return out
}

// denormalize converts the [0,1] RGB input tensor back to an 8-bit image.
func denormalize(input []float32, side int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for i := 0; i < side*side; i++ {
		img.Pix[i*4+0] = clampByte(input[i*3+0] * 255)
		img.Pix[i*4+1] = clampByte(input[i*3+1] * 255)
		img.Pix[i*4+2] = clampByte(input[i*3+2] * 255)
		img.Pix[i*4+3] = 255
	}
	return img
}

// blend composites the heat image onto the original with fixed weights.
func blend(heat *image.RGBA, original *image.RGBA, heatWeight, imageWeight float64) *image.RGBA {
	bounds := heat.Bounds()
	out := image.NewRGBA(bounds)
	for i := 0; i < len(out.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := heatWeight*float64(heat.Pix[i+c]) + imageWeight*float64(original.Pix[i+c])
			out.Pix[i+c] = clampByte(float32(v))
		}
		out.Pix[i+3] = 255
	}
	return out
}

func clampByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

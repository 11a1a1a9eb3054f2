package pipeline

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"

	"github.com/Vedantraval2444/AuraSight-AI-App/internal/classifier"
)

// decodeImage parses uploaded bytes into an image. Grayscale and
// alpha-carrying inputs are accepted; normalization converts everything to
// plain RGB.
func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return img, nil
}

// normalize resizes the image to the model's input resolution and produces a
// flat NHWC tensor (batch of 1) with RGB values scaled to [0,1].
func normalize(img image.Image) []float32 {
	side := classifier.ImageSize
	resized := resize.Resize(uint(side), uint(side), img, resize.Lanczos3)

	input := make([]float32, side*side*3)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			i := (y*side + x) * 3
			input[i+0] = float32(r) / 65535.0
			input[i+1] = float32(g) / 65535.0
			input[i+2] = float32(b) / 65535.0
		}
	}
	return input
}

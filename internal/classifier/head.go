package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Head is the trainable part of the network: global average pooling over the
// backbone's spatial feature map followed by a dense layer with softmax. The
// backbone stays frozen inside the ONNX graph; only these weights come from
// the fine-tuning run.
type Head struct {
	InputDim   int         `json:"input_dim"`
	NumClasses int         `json:"num_classes"`
	Kernel     [][]float32 `json:"kernel"`
	Bias       []float32   `json:"bias"`
}

// LoadHead reads persisted dense-layer weights from a JSON weight file.
func LoadHead(path string) (*Head, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read head weights: %w", err)
	}

	var head Head
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("failed to parse head weights: %w", err)
	}
	if err := head.validate(); err != nil {
		return nil, err
	}
	return &head, nil
}

func (h *Head) validate() error {
	if h.InputDim <= 0 || h.NumClasses <= 0 {
		return fmt.Errorf("invalid head dimensions: input_dim=%d num_classes=%d", h.InputDim, h.NumClasses)
	}
	if len(h.Kernel) != h.InputDim {
		return fmt.Errorf("kernel has %d rows, expected %d", len(h.Kernel), h.InputDim)
	}
	for i, row := range h.Kernel {
		if len(row) != h.NumClasses {
			return fmt.Errorf("kernel row %d has %d values, expected %d", i, len(row), h.NumClasses)
		}
	}
	if len(h.Bias) != h.NumClasses {
		return fmt.Errorf("bias has %d values, expected %d", len(h.Bias), h.NumClasses)
	}
	return nil
}

// Clone returns a deep copy. Callers that linearize the head for gradient
// computation work on the copy so the live weights are never touched.
func (h *Head) Clone() *Head {
	kernel := make([][]float32, len(h.Kernel))
	for i, row := range h.Kernel {
		kernel[i] = append([]float32(nil), row...)
	}
	return &Head{
		InputDim:   h.InputDim,
		NumClasses: h.NumClasses,
		Kernel:     kernel,
		Bias:       append([]float32(nil), h.Bias...),
	}
}

// Logits applies the dense layer to a pooled feature vector without the
// softmax activation.
func (h *Head) Logits(pooled []float32) ([]float32, error) {
	if len(pooled) != h.InputDim {
		return nil, fmt.Errorf("pooled vector has %d values, expected %d", len(pooled), h.InputDim)
	}
	logits := append([]float32(nil), h.Bias...)
	for k, row := range h.Kernel {
		v := pooled[k]
		if v == 0 {
			continue
		}
		for c, w := range row {
			logits[c] += v * w
		}
	}
	return logits, nil
}

// GlobalAveragePool reduces an H×W×C feature map to a C-length vector.
func GlobalAveragePool(fm *FeatureMap) []float32 {
	pooled := make([]float32, fm.Channels)
	for i := 0; i < fm.Height*fm.Width; i++ {
		cell := fm.Data[i*fm.Channels : (i+1)*fm.Channels]
		for c, v := range cell {
			pooled[c] += v
		}
	}
	n := float32(fm.Height * fm.Width)
	for c := range pooled {
		pooled[c] /= n
	}
	return pooled
}

// Softmax turns raw class scores into a probability distribution summing to 1.
func Softmax(logits []float32) []float32 {
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}

	probs := make([]float32, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxLogit))
		probs[i] = float32(e)
		sum += e
	}
	for i := range probs {
		probs[i] = float32(float64(probs[i]) / sum)
	}
	return probs
}

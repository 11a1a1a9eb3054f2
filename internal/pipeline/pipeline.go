package pipeline

import (
	"errors"
	"fmt"

	"github.com/Vedantraval2444/AuraSight-AI-App/internal/attribution"
	"github.com/Vedantraval2444/AuraSight-AI-App/internal/classifier"
)

// ErrModelUnavailable is returned for every request while the classifier
// could not be loaded at startup.
var ErrModelUnavailable = errors.New("classifier model is not available")

// DecodeError reports that uploaded bytes are not a valid color image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Classifier is the read-only inference handle injected at startup.
type Classifier interface {
	Predict(input []float32) (*classifier.Prediction, error)
	Head() *classifier.Head
	Classes() []string
}

// Result is the packaged outcome of one analysis request.
type Result struct {
	Filename string `json:"filename"`
	// Diagnosis is the class name at the distribution's argmax.
	Diagnosis string `json:"diagnosis"`
	// Confidence is the argmax probability on a percentage scale,
	// formatted to two decimals, e.g. "87.34%".
	Confidence string `json:"confidence"`
	// Probabilities holds all class scores on a percentage scale.
	Probabilities []float64 `json:"probabilities"`
	// HeatmapImage is the base64-encoded explanation overlay.
	HeatmapImage string `json:"heatmap_image"`
}

// Service runs the inference pipeline: decode, normalize, classify, explain,
// package. Each request is independent; a failure aborts that request only.
type Service struct {
	model  Classifier
	engine *attribution.Engine
}

// NewService wires the pipeline. model may be nil when weight loading failed
// at startup; every request then short-circuits with ErrModelUnavailable.
func NewService(model Classifier, engine *attribution.Engine) *Service {
	return &Service{model: model, engine: engine}
}

// Analyze takes raw uploaded image bytes through the full pipeline.
func (s *Service) Analyze(filename string, data []byte) (*Result, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}

	input := normalize(img)

	if s.model == nil {
		return nil, ErrModelUnavailable
	}
	pred, err := s.model.Predict(input)
	if err != nil {
		return nil, err
	}

	// Diagnosis, confidence and the attribution target must all come from
	// this single argmax.
	top := argmax(pred.Probabilities)

	heatmap, err := s.engine.Explain(s.model.Head(), pred.Features, input, top)
	if err != nil {
		return nil, err
	}

	percentages := make([]float64, len(pred.Probabilities))
	for i, p := range pred.Probabilities {
		percentages[i] = float64(p) * 100
	}

	return &Result{
		Filename:      filename,
		Diagnosis:     s.model.Classes()[top],
		Confidence:    fmt.Sprintf("%.2f%%", percentages[top]),
		Probabilities: percentages,
		HeatmapImage:  heatmap,
	}, nil
}

func argmax(probs []float32) int {
	top := 0
	for i, p := range probs {
		if p > probs[top] {
			top = i
		}
	}
	return top
}

package classifier

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	ImageSize  = 224
	NumClasses = 5

	backboneFile = "aurasight_backbone.onnx"
	headFile     = "aurasight_head.json"
	metadataFile = "model_metadata.json"
)

// ClassNames are the severity labels, index-aligned with the head's output.
var ClassNames = []string{"No DR", "Mild", "Moderate", "Severe", "Proliferative DR"}

type Metadata struct {
	InputShape   []int64  `json:"input_shape"`
	FeatureShape []int64  `json:"feature_shape"`
	Classes      []string `json:"classes"`
	ImageSize    int      `json:"image_size"`
}

// WeightLoadError reports a startup failure to assemble the network. The
// service keeps running without a model; it does not terminate the process.
type WeightLoadError struct {
	Path string
	Err  error
}

func (e *WeightLoadError) Error() string {
	return fmt.Sprintf("failed to load model weights from %s: %v", e.Path, e.Err)
}

func (e *WeightLoadError) Unwrap() error { return e.Err }

// FeatureMap is the penultimate spatial activation volume (H×W×C, row-major
// with channels innermost), the basis for class attribution.
type FeatureMap struct {
	Height   int
	Width    int
	Channels int
	Data     []float32
}

// At returns the activation of channel c at cell (y, x).
func (fm *FeatureMap) At(y, x, c int) float32 {
	return fm.Data[(y*fm.Width+x)*fm.Channels+c]
}

// Prediction is the outcome of one forward pass.
type Prediction struct {
	// Probabilities is the softmax distribution over the severity classes,
	// values in [0,1] summing to 1.
	Probabilities []float32
	// Features is a copy of the penultimate feature map for this input.
	Features *FeatureMap
}

// Model holds the frozen ONNX backbone session and the dense softmax head.
// Constructed once at startup and shared read-only afterwards; the session's
// input/output tensors are reused buffers, so forward passes are serialized
// with a mutex.
type Model struct {
	mu            sync.Mutex
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	featureTensor *ort.Tensor[float32]
	head          *Head
	Metadata      Metadata
}

// NewModel builds the network topology and loads persisted weights from the
// fixed file names under dir. Any failure is reported as a *WeightLoadError.
func NewModel(dir string) (*Model, error) {
	m, err := newModel(dir)
	if err != nil {
		return nil, &WeightLoadError{Path: dir, Err: err}
	}
	return m, nil
}

func newModel(dir string) (*Model, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	metaRaw, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var metadata Metadata
	if err := json.Unmarshal(metaRaw, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if len(metadata.Classes) != NumClasses {
		return nil, fmt.Errorf("metadata lists %d classes, expected %d", len(metadata.Classes), NumClasses)
	}

	head, err := LoadHead(filepath.Join(dir, headFile))
	if err != nil {
		return nil, err
	}
	if len(metadata.FeatureShape) != 4 || int(metadata.FeatureShape[3]) != head.InputDim {
		return nil, fmt.Errorf("feature shape %v does not match head input dim %d", metadata.FeatureShape, head.InputDim)
	}
	if head.NumClasses != NumClasses {
		return nil, fmt.Errorf("head has %d classes, expected %d", head.NumClasses, NumClasses)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	featureTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.FeatureShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create feature tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(filepath.Join(dir, backboneFile),
		[]string{"input"}, []string{"features"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{featureTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		featureTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Model{
		session:       session,
		inputTensor:   inputTensor,
		featureTensor: featureTensor,
		head:          head,
		Metadata:      metadata,
	}, nil
}

// Predict runs one forward pass over a normalized 1×224×224×3 input and
// returns the probability distribution together with the feature map it was
// computed from. Deterministic given fixed weights.
func (m *Model) Predict(input []float32) (*Prediction, error) {
	expected := 1
	for _, dim := range m.Metadata.InputShape {
		expected *= int(dim)
	}
	if len(input) != expected {
		return nil, fmt.Errorf("expected %d input values, got %d", expected, len(input))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.inputTensor.GetData(), input)
	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	// The output tensor is a shared buffer; copy before releasing the lock.
	features := &FeatureMap{
		Height:   int(m.Metadata.FeatureShape[1]),
		Width:    int(m.Metadata.FeatureShape[2]),
		Channels: int(m.Metadata.FeatureShape[3]),
		Data:     append([]float32(nil), m.featureTensor.GetData()...),
	}

	logits, err := m.head.Logits(GlobalAveragePool(features))
	if err != nil {
		return nil, err
	}

	return &Prediction{
		Probabilities: Softmax(logits),
		Features:      features,
	}, nil
}

// Head exposes the dense classification weights for attribution.
func (m *Model) Head() *Head { return m.head }

// Classes returns the label list from the loaded metadata.
func (m *Model) Classes() []string { return m.Metadata.Classes }

func (m *Model) Close() {
	if m.inputTensor != nil {
		m.inputTensor.Destroy()
	}
	if m.featureTensor != nil {
		m.featureTensor.Destroy()
	}
	if m.session != nil {
		m.session.Destroy()
	}
	ort.DestroyEnvironment()
}

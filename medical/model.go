package medical

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
)

// ErrModelUnavailable reports that the classifier artifact could not be
// loaded.
var ErrModelUnavailable = errors.New("symptom classifier model unavailable")

// classifierArtifact is the on-disk shape of the pretrained model: a linear
// one-vs-rest classifier with one weight row and bias per disease label.
type classifierArtifact struct {
	Weights [][]float64
	Bias    []float64
}

// Classifier is the loaded, reusable model.
type Classifier struct {
	weights [][]float64
	bias    []float64
}

// LoadClassifier reads a gob-encoded linear classifier from disk. Any load
// failure is reported as ErrModelUnavailable.
func LoadClassifier(path string) (*Classifier, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer file.Close()

	var artifact classifierArtifact
	if err := gob.NewDecoder(file).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("%w: decode artifact: %v", ErrModelUnavailable, err)
	}

	if len(artifact.Weights) == 0 || len(artifact.Weights) != len(artifact.Bias) {
		return nil, fmt.Errorf("%w: malformed artifact (%d weight rows, %d biases)",
			ErrModelUnavailable, len(artifact.Weights), len(artifact.Bias))
	}

	return &Classifier{weights: artifact.Weights, bias: artifact.Bias}, nil
}

// SaveClassifier writes an artifact in the format LoadClassifier expects.
// Used by the training export tooling and tests.
func SaveClassifier(path string, weights [][]float64, bias []float64) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	defer file.Close()

	artifact := classifierArtifact{Weights: weights, Bias: bias}
	if err := gob.NewEncoder(file).Encode(&artifact); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return nil
}

// Predict returns the label index with the highest decision value. Ties break
// toward the lower index, so identical inputs always classify identically.
func (c *Classifier) Predict(vector []float64) (int, error) {
	best := 0
	bestScore := 0.0
	for label, row := range c.weights {
		if len(row) != len(vector) {
			return 0, fmt.Errorf("feature vector length %d does not match model width %d", len(vector), len(row))
		}
		score := c.bias[label]
		for i, w := range row {
			score += w * vector[i]
		}
		if label == 0 || score > bestScore {
			best = label
			bestScore = score
		}
	}
	return best, nil
}

package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
)

// DefaultThreshold is the decision threshold used when none is configured.
const DefaultThreshold = 0.5

// Classifier turns aligned feature rows into positive-class probabilities.
type Classifier interface {
	// FeatureNames is the column order the classifier was trained on.
	FeatureNames() []string
	PredictProba(ctx context.Context, rows [][]float64) ([]float64, error)
}

// Logistic is a logistic-regression model exported as JSON.
type Logistic struct {
	Intercept    float64   `json:"intercept"`
	Features     []string  `json:"features"`
	Coefficients []float64 `json:"coefficients"`
}

// LoadLogistic reads a logistic model artifact from path.
func LoadLogistic(path string) (*Logistic, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m Logistic
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the artifact is internally consistent.
func (m *Logistic) Validate() error {
	if len(m.Features) == 0 {
		return errors.New("classifier: model has no features")
	}
	if len(m.Features) != len(m.Coefficients) {
		return fmt.Errorf("classifier: %d features but %d coefficients", len(m.Features), len(m.Coefficients))
	}
	seen := make(map[string]struct{}, len(m.Features))
	for _, f := range m.Features {
		if _, ok := seen[f]; ok {
			return fmt.Errorf("classifier: duplicate feature %q", f)
		}
		seen[f] = struct{}{}
	}
	return nil
}

func (m *Logistic) FeatureNames() []string {
	return append([]string(nil), m.Features...)
}

func (m *Logistic) PredictProba(ctx context.Context, rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if len(row) != len(m.Coefficients) {
			return nil, fmt.Errorf("classifier: row %d has %d values, want %d", i, len(row), len(m.Coefficients))
		}
		out[i] = sigmoid(m.Intercept + floats.Dot(m.Coefficients, row))
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Label maps a probability to the binary prediction.
func Label(p, threshold float64) int {
	if p >= threshold {
		return 1
	}
	return 0
}

package net

import (
	"encoding/json"
	"fmt"

	"github.com/FlavioCFOliveira/mlpnet/internal/activations"
	"github.com/FlavioCFOliveira/mlpnet/internal/matrix"
)

// networkJSON is the persisted form. The cached pass is never written.
type networkJSON struct {
	Layers       []int            `json:"layers"`
	Weights      []*matrix.Matrix `json:"weights"`
	Biases       []*matrix.Matrix `json:"biases"`
	Activation   string           `json:"activation"`
	LearningRate float64          `json:"learning_rate"`
}

// MarshalJSON encodes layers, weights, biases, activation name and learning
// rate.
func (n *Network) MarshalJSON() ([]byte, error) {
	return json.Marshal(networkJSON{
		Layers:       n.layers,
		Weights:      n.weights,
		Biases:       n.biases,
		Activation:   n.activation.Name(),
		LearningRate: n.learningRate,
	})
}

// UnmarshalJSON decodes a network and validates every shape invariant.
// A malformed document yields a *FormatError; nothing is reshaped.
func (n *Network) UnmarshalJSON(b []byte) error {
	var raw networkJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return &FormatError{Reason: "decode", Err: err}
	}
	decoded, err := fromJSON(raw)
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}

func fromJSON(raw networkJSON) (*Network, error) {
	act, err := activations.ByName(raw.Activation)
	if err != nil {
		return nil, &FormatError{Field: "activation", Err: err}
	}
	if err := validateParams(raw.Layers, raw.Weights, raw.Biases); err != nil {
		return nil, err
	}
	return &Network{
		layers:       raw.Layers,
		weights:      raw.Weights,
		biases:       raw.Biases,
		activation:   act,
		learningRate: raw.LearningRate,
	}, nil
}

func validateParams(layers []int, weights, biases []*matrix.Matrix) error {
	if err := ValidateLayers(layers); err != nil {
		return &FormatError{Field: "layers", Err: err}
	}
	want := len(layers) - 1
	if len(weights) != want {
		return &FormatError{Field: "weights", Reason: fmt.Sprintf("got %d matrices, want %d", len(weights), want)}
	}
	if len(biases) != want {
		return &FormatError{Field: "biases", Reason: fmt.Sprintf("got %d matrices, want %d", len(biases), want)}
	}
	for i := 0; i < want; i++ {
		w, b := weights[i], biases[i]
		if w == nil || w.Rows() != layers[i+1] || w.Cols() != layers[i] {
			return &FormatError{
				Field:  fmt.Sprintf("weights[%d]", i),
				Reason: fmt.Sprintf("shape %s, want %dx%d", shapeOf(w), layers[i+1], layers[i]),
			}
		}
		if b == nil || b.Rows() != layers[i+1] || b.Cols() != 1 {
			return &FormatError{
				Field:  fmt.Sprintf("biases[%d]", i),
				Reason: fmt.Sprintf("shape %s, want %dx1", shapeOf(b), layers[i+1]),
			}
		}
	}
	return nil
}

func shapeOf(m *matrix.Matrix) string {
	if m == nil {
		return "null"
	}
	return fmt.Sprintf("%dx%d", m.Rows(), m.Cols())
}

// FromParams assembles a network from existing parameters, enforcing the same
// shape invariants as decoding.
func FromParams(layers []int, weights, biases []*matrix.Matrix, act activations.Activation, learningRate float64) (*Network, error) {
	if act == nil {
		return nil, &ArchitectureError{Layers: layers, Reason: "activation is nil"}
	}
	layers = append([]int(nil), layers...)
	weights = append([]*matrix.Matrix(nil), weights...)
	biases = append([]*matrix.Matrix(nil), biases...)
	if err := validateParams(layers, weights, biases); err != nil {
		return nil, err
	}
	return &Network{
		layers:       layers,
		weights:      weights,
		biases:       biases,
		activation:   act,
		learningRate: learningRate,
	}, nil
}

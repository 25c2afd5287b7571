package net

import "github.com/FlavioCFOliveira/mlpnet/internal/matrix"

// Pass is the result of one forward pass: the scratch state a following
// backward pass needs. It belongs to the caller, so independent passes over
// the same network never share state.
type Pass struct {
	// Activations[0] is the input; Activations[i+1] = f(PreActivations[i]).
	Activations    []*matrix.Matrix
	PreActivations []*matrix.Matrix
}

// Output returns the activation of the last layer.
func (p *Pass) Output() *matrix.Matrix {
	return p.Activations[len(p.Activations)-1]
}

// ActivationData returns every layer's activation flattened, input first.
func (p *Pass) ActivationData() [][]float64 {
	out := make([][]float64, len(p.Activations))
	for i, a := range p.Activations {
		out[i] = a.Data()
	}
	return out
}

// Package net provides the fully connected feed-forward network.
package net

import (
	"fmt"
	"log"

	"golang.org/x/exp/rand"

	"github.com/FlavioCFOliveira/mlpnet/internal/activations"
	"github.com/FlavioCFOliveira/mlpnet/internal/matrix"
)

// Network is a multi-layer perceptron.
//
// weights[i] has shape [layers[i+1] x layers[i]] and biases[i] has shape
// [layers[i+1] x 1]. Shapes are fixed at construction; training only replaces
// the values.
type Network struct {
	layers       []int
	weights      []*matrix.Matrix
	biases       []*matrix.Matrix
	activation   activations.Activation
	learningRate float64

	// last holds the pass cached by FeedForward for the next BackPropagate.
	last *Pass
	// observed is the most recent FeedForward pass; BackPropagate keeps it.
	observed *Pass

	logger *log.Logger
}

// ValidateLayers checks that layers describes at least an input and an
// output layer, each with one or more neurons.
func ValidateLayers(layers []int) error {
	if len(layers) < 2 {
		return &ArchitectureError{Layers: layers, Reason: fmt.Sprintf("need at least 2 layers, got %d", len(layers))}
	}
	for i, size := range layers {
		if size < 1 {
			return &ArchitectureError{Layers: layers, Reason: fmt.Sprintf("layer %d has %d neurons", i, size)}
		}
	}
	return nil
}

// New creates a network with weights and biases drawn uniformly from
// [-1, 1] using a time-seeded source.
func New(layers []int, act activations.Activation, learningRate float64) (*Network, error) {
	return build(layers, act, learningRate, func(rows, cols int) *matrix.Matrix {
		return matrix.Random(rows, cols)
	})
}

// NewSeeded is New with deterministic initialization: the same arguments and
// seed always produce bit-identical weights and biases.
func NewSeeded(layers []int, act activations.Activation, learningRate float64, seed uint64) (*Network, error) {
	src := rand.NewSource(seed)
	return build(layers, act, learningRate, func(rows, cols int) *matrix.Matrix {
		return matrix.RandomSeeded(rows, cols, src)
	})
}

func build(layers []int, act activations.Activation, learningRate float64, init func(rows, cols int) *matrix.Matrix) (*Network, error) {
	if err := ValidateLayers(layers); err != nil {
		return nil, err
	}
	if act == nil {
		return nil, &ArchitectureError{Layers: layers, Reason: "activation is nil"}
	}

	n := &Network{
		layers:       append([]int(nil), layers...),
		weights:      make([]*matrix.Matrix, len(layers)-1),
		biases:       make([]*matrix.Matrix, len(layers)-1),
		activation:   act,
		learningRate: learningRate,
	}
	// Weights and biases are drawn interleaved per layer.
	for i := 0; i < len(layers)-1; i++ {
		n.weights[i] = init(layers[i+1], layers[i])
		n.biases[i] = init(layers[i+1], 1)
	}
	return n, nil
}

// SetLogger sets the logger used by Train. nil restores log.Default().
func (n *Network) SetLogger(l *log.Logger) {
	n.logger = l
}

func (n *Network) log() *log.Logger {
	if n.logger == nil {
		return log.Default()
	}
	return n.logger
}

// Layers returns a copy of the neuron count per layer.
func (n *Network) Layers() []int {
	return append([]int(nil), n.layers...)
}

// InputSize is the neuron count of the first layer.
func (n *Network) InputSize() int { return n.layers[0] }

// OutputSize is the neuron count of the last layer.
func (n *Network) OutputSize() int { return n.layers[len(n.layers)-1] }

// Activation returns the activation applied at every non-input layer.
func (n *Network) Activation() activations.Activation { return n.activation }

// LearningRate returns the SGD step size.
func (n *Network) LearningRate() float64 { return n.learningRate }

// WeightMatrices returns the weight matrices. Matrices are immutable, so the
// returned values can be read without copying.
func (n *Network) WeightMatrices() []*matrix.Matrix {
	return append([]*matrix.Matrix(nil), n.weights...)
}

// BiasMatrices returns the bias column matrices.
func (n *Network) BiasMatrices() []*matrix.Matrix {
	return append([]*matrix.Matrix(nil), n.biases...)
}

// Weights returns each weight matrix flattened row-major.
func (n *Network) Weights() [][]float64 {
	out := make([][]float64, len(n.weights))
	for i, w := range n.weights {
		out[i] = w.Data()
	}
	return out
}

// WeightShapes returns (rows, cols) for each weight matrix.
func (n *Network) WeightShapes() [][2]int {
	out := make([][2]int, len(n.weights))
	for i, w := range n.weights {
		out[i] = [2]int{w.Rows(), w.Cols()}
	}
	return out
}

// ParameterCount is the number of weights plus biases.
func (n *Network) ParameterCount() int {
	total := 0
	for i := range n.weights {
		total += n.weights[i].Len() + n.biases[i].Len()
	}
	return total
}

// Activations returns the per-layer activations, input first, of the most
// recent FeedForward. They stay available after BackPropagate, reflecting the
// weights before that update. It is nil before the first call.
func (n *Network) Activations() [][]float64 {
	if n.observed == nil {
		return nil
	}
	return n.observed.ActivationData()
}

// Clone returns an independent copy without the cached pass. Matrices are
// immutable and therefore shared.
func (n *Network) Clone() *Network {
	return &Network{
		layers:       append([]int(nil), n.layers...),
		weights:      append([]*matrix.Matrix(nil), n.weights...),
		biases:       append([]*matrix.Matrix(nil), n.biases...),
		activation:   n.activation,
		learningRate: n.learningRate,
		logger:       n.logger,
	}
}

// Equal reports whether both networks have the same architecture,
// activation, learning rate and bit-identical parameters.
func (n *Network) Equal(o *Network) bool {
	if len(n.layers) != len(o.layers) || n.learningRate != o.learningRate {
		return false
	}
	if n.activation.Name() != o.activation.Name() {
		return false
	}
	for i := range n.layers {
		if n.layers[i] != o.layers[i] {
			return false
		}
	}
	for i := range n.weights {
		if !n.weights[i].Equal(o.weights[i]) || !n.biases[i].Equal(o.biases[i]) {
			return false
		}
	}
	return true
}

// Forward computes a forward pass without touching the network.
// input must be a column matrix with layers[0] rows.
func (n *Network) Forward(input *matrix.Matrix) (*Pass, error) {
	if input.Rows() != n.layers[0] || input.Cols() != 1 {
		return nil, &matrix.DimensionError{
			Op:        "feed_forward",
			LeftRows:  n.layers[0],
			LeftCols:  1,
			RightRows: input.Rows(),
			RightCols: input.Cols(),
		}
	}

	pass := &Pass{
		Activations:    make([]*matrix.Matrix, 0, len(n.layers)),
		PreActivations: make([]*matrix.Matrix, 0, len(n.layers)-1),
	}
	current := input
	pass.Activations = append(pass.Activations, current)

	for i := 0; i < len(n.layers)-1; i++ {
		weighted, err := n.weights[i].Dot(current)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		z, err := weighted.Add(n.biases[i])
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		current = z.Map(n.activation.Activate)
		pass.PreActivations = append(pass.PreActivations, z)
		pass.Activations = append(pass.Activations, current)
	}
	return pass, nil
}

// FeedForward runs Forward, caches the pass for the next BackPropagate and
// returns the output layer activation.
func (n *Network) FeedForward(input *matrix.Matrix) (*matrix.Matrix, error) {
	pass, err := n.Forward(input)
	if err != nil {
		return nil, err
	}
	n.last = pass
	n.observed = pass
	return pass.Output(), nil
}

// Predict evaluates a single sample. It does not modify the network and is
// safe to call concurrently on a network that is not being trained.
func (n *Network) Predict(input []float64) ([]float64, error) {
	pass, err := n.Forward(matrix.FromSlice(input))
	if err != nil {
		return nil, err
	}
	return pass.Output().Data(), nil
}

// BackPropagate applies one SGD update using the pass cached by the
// preceding FeedForward. The cache is consumed.
func (n *Network) BackPropagate(outputs, targets *matrix.Matrix) error {
	if n.last == nil {
		return ErrNoForwardPass
	}
	pass := n.last
	n.last = nil
	return n.Backward(pass, outputs, targets)
}

// Backward applies one SGD update for pass.
//
// The error signal is targets - outputs and updates are added, so the step
// moves outputs towards targets. For layer i, from the last down to 0:
//
//	g     = lr * (f'(z_i) ⊙ err)
//	W[i] += g · a_iᵀ
//	b[i] += g
//	err   = W_old[i]ᵀ · err
func (n *Network) Backward(pass *Pass, outputs, targets *matrix.Matrix) error {
	if pass == nil || len(pass.Activations) != len(n.layers) || len(pass.PreActivations) != len(n.layers)-1 {
		return ErrNoForwardPass
	}

	errs, err := targets.Subtract(outputs)
	if err != nil {
		return fmt.Errorf("back_propagate: %w", err)
	}

	for i := len(n.layers) - 2; i >= 0; i-- {
		deriv := pass.PreActivations[i].Map(n.activation.Derivative)
		local, err := deriv.MulElem(errs)
		if err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
		gradient := local.Scale(n.learningRate)

		delta, err := gradient.Dot(pass.Activations[i].Transpose())
		if err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
		weights, err := n.weights[i].Add(delta)
		if err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
		biases, err := n.biases[i].Add(gradient)
		if err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}

		if i > 0 {
			errs, err = n.weights[i].Transpose().Dot(errs)
			if err != nil {
				return fmt.Errorf("layer %d: %w", i, err)
			}
		}
		n.weights[i] = weights
		n.biases[i] = biases
	}
	return nil
}

// ShouldReport reports whether progress for epoch (1-based) of total is
// logged: every epoch below 100 epochs, otherwise every total/100-th.
func ShouldReport(epoch, total uint32) bool {
	if total < 100 {
		return true
	}
	return epoch%(total/100) == 0
}

// Train runs per-sample SGD over the samples in order for the given number
// of epochs, with no shuffling.
func (n *Network) Train(inputs, targets [][]float64, epochs uint32) error {
	if len(inputs) != len(targets) {
		return fmt.Errorf("train: %d inputs but %d targets", len(inputs), len(targets))
	}
	for epoch := uint32(1); epoch <= epochs; epoch++ {
		if ShouldReport(epoch, epochs) {
			n.log().Printf("Epoch %d of %d", epoch, epochs)
		}
		for j := range inputs {
			outputs, err := n.FeedForward(matrix.FromSlice(inputs[j]))
			if err != nil {
				return fmt.Errorf("epoch %d sample %d: %w", epoch, j, err)
			}
			if err := n.BackPropagate(outputs, matrix.FromSlice(targets[j])); err != nil {
				return fmt.Errorf("epoch %d sample %d: %w", epoch, j, err)
			}
		}
	}
	return nil
}

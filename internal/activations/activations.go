// Package activations provides element-wise activation functions and their
// derivatives, identified by name for serialization.
package activations

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrUnknownActivation is returned by ByName for unregistered names.
var ErrUnknownActivation = errors.New("unknown activation")

// Activation is an activation function with derivative.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x) at the pre-activation value x
	Derivative(x float64) float64

	// Name is the identifier written to checkpoints
	Name() string
}

// Names used in checkpoints.
const (
	NameSigmoid   = "sigmoid"
	NameTanh      = "tanh"
	NameReLU      = "relu"
	NameLeakyReLU = "leaky_relu"
	NameLinear    = "linear"
)

// DefaultLeakyAlpha is the slope used when LeakyReLU is restored by name.
const DefaultLeakyAlpha = 0.01

// ReLU activation function.
type ReLU struct{}

// Activate computes max(0, x)
func (r ReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Derivative returns 1 if x > 0, else 0
func (r ReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func (r ReLU) Name() string { return NameReLU }

// Sigmoid activation function.
type Sigmoid struct{}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Activate computes sigmoid(x)
func (s Sigmoid) Activate(x float64) float64 {
	return sigmoid(x)
}

// Derivative computes sigmoid(x) * (1 - sigmoid(x))
func (s Sigmoid) Derivative(x float64) float64 {
	sigma := sigmoid(x)
	return sigma * (1 - sigma)
}

func (s Sigmoid) Name() string { return NameSigmoid }

// LeakyReLU activation function to prevent dying neurons.
type LeakyReLU struct {
	Alpha float64 // Slope for x <= 0
}

// NewLeakyReLU creates a LeakyReLU with the given alpha value.
func NewLeakyReLU(alpha float64) *LeakyReLU {
	return &LeakyReLU{Alpha: alpha}
}

// Activate computes x if x > 0, else alpha*x
func (l *LeakyReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return l.Alpha * x
}

// Derivative returns 1 if x > 0, else alpha
func (l *LeakyReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return l.Alpha
}

func (l *LeakyReLU) Name() string { return NameLeakyReLU }

// Tanh activation function.
type Tanh struct{}

// Activate computes tanh(x)
func (t Tanh) Activate(x float64) float64 {
	return math.Tanh(x)
}

// Derivative computes 1 - tanh(x)^2
func (t Tanh) Derivative(x float64) float64 {
	tanhX := math.Tanh(x)
	return 1 - tanhX*tanhX
}

func (t Tanh) Name() string { return NameTanh }

// Linear is the identity activation.
type Linear struct{}

func (Linear) Activate(x float64) float64   { return x }
func (Linear) Derivative(x float64) float64 { return 1 }
func (Linear) Name() string                 { return NameLinear }

var registry = map[string]func() Activation{
	NameSigmoid:   func() Activation { return Sigmoid{} },
	NameTanh:      func() Activation { return Tanh{} },
	NameReLU:      func() Activation { return ReLU{} },
	NameLeakyReLU: func() Activation { return NewLeakyReLU(DefaultLeakyAlpha) },
	NameLinear:    func() Activation { return Linear{} },
}

// ByName returns the activation registered under name.
func ByName(name string) (Activation, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActivation, name)
	}
	return ctor(), nil
}

// Names lists the registered activation names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

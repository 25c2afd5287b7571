// Package loss provides loss functions used for training progress reporting.
package loss

import "gonum.org/v1/gonum/floats"

// Loss is a loss function over a prediction and its target.
type Loss interface {
	// Forward computes the loss between predicted and true values.
	Forward(yPred, yTrue []float64) float64
}

// MSE (Mean Squared Error) loss.
type MSE struct{}

// Forward computes mean squared error: (1/n) * sum((y_pred - y_true)^2)
func (m MSE) Forward(yPred, yTrue []float64) float64 {
	n := len(yPred)
	if n != len(yTrue) {
		panic("MSE: prediction and target must have same length")
	}
	if n == 0 {
		return 0
	}
	d := floats.Distance(yPred, yTrue, 2)
	return d * d / float64(n)
}

// Mean averages per-sample losses. Empty input yields 0.
func Mean(losses []float64) float64 {
	if len(losses) == 0 {
		return 0
	}
	return floats.Sum(losses) / float64(len(losses))
}

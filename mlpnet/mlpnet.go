// Package mlpnet is the public entry point to the multi-layer perceptron
// engine: networks, training, checkpoints and the built-in examples.
package mlpnet

import (
	"fmt"
	"log"

	"github.com/FlavioCFOliveira/mlpnet/internal/activations"
	"github.com/FlavioCFOliveira/mlpnet/internal/checkpoint"
	"github.com/FlavioCFOliveira/mlpnet/internal/dataset"
	"github.com/FlavioCFOliveira/mlpnet/internal/examples"
	"github.com/FlavioCFOliveira/mlpnet/internal/loss"
	"github.com/FlavioCFOliveira/mlpnet/internal/matrix"
	"github.com/FlavioCFOliveira/mlpnet/internal/net"
	"github.com/FlavioCFOliveira/mlpnet/internal/training"
)

// Re-export common types and functions for easier access
type (
	Network        = net.Network
	Matrix         = matrix.Matrix
	Activation     = activations.Activation
	Checkpoint     = checkpoint.Checkpoint
	Metadata       = checkpoint.Metadata
	Controller     = training.Controller
	TrainingConfig = training.Config
	Callback       = training.Callback
	CallbackFunc   = training.CallbackFunc
	Example        = examples.Example
	Dataset        = dataset.Dataset
)

// Errors
var (
	ErrDimensionMismatch   = matrix.ErrDimensionMismatch
	ErrInvalidArchitecture = net.ErrInvalidArchitecture
	ErrInvalidNetwork      = net.ErrInvalidNetwork
	ErrNoForwardPass       = net.ErrNoForwardPass
	ErrUnknownExample      = examples.ErrUnknownExample
	ErrCheckpointIO        = checkpoint.ErrIO
	ErrCheckpointFormat    = checkpoint.ErrFormat
	ErrAbort               = training.ErrAbort
)

// Activations
var (
	Sigmoid = activations.Sigmoid{}
	Tanh    = activations.Tanh{}
	ReLU    = activations.ReLU{}
	Linear  = activations.Linear{}
)

func LeakyReLU(alpha float64) Activation {
	return activations.NewLeakyReLU(alpha)
}

// ActivationByName resolves a serialized activation name.
func ActivationByName(name string) (Activation, error) {
	return activations.ByName(name)
}

// Network creation
func NewNetwork(layers []int, act Activation, learningRate float64) (*Network, error) {
	return net.New(layers, act, learningRate)
}

func NewNetworkSeeded(layers []int, act Activation, learningRate float64, seed uint64) (*Network, error) {
	return net.NewSeeded(layers, act, learningRate, seed)
}

// Training
func NewController(n *Network, cfg TrainingConfig) *Controller {
	return training.New(n, cfg)
}

func Resume(path string, cfg TrainingConfig) (*Controller, error) {
	return training.ResumeFile(path, cfg)
}

// Callbacks
func Logger(interval uint32) Callback {
	return training.Logger{Interval: interval}
}

func CSVLogger(filename string, append bool) Callback {
	return training.NewCSVLogger(filename, append)
}

func EarlyStopping(patience int, minDelta float64) *training.EarlyStopping {
	return training.NewEarlyStopping(patience, minDelta)
}

func BestCheckpoint(path, example string, totalEpochs uint32) Callback {
	return training.NewBestCheckpoint(path, example, totalEpochs)
}

// Data
func LoadCSV(filename string, labelCols []int, hasHeader bool) (*Dataset, error) {
	return dataset.LoadCSV(filename, labelCols, hasHeader)
}

// Examples
func Examples() []Example {
	return examples.All()
}

func GetExample(name string) (Example, error) {
	return examples.Get(name)
}

// TrainOptions tune Train beyond epochs and learning rate.
type TrainOptions struct {
	Epochs       uint32
	LearningRate float64
	// Seed makes initialization deterministic. 0 seeds from the clock.
	Seed uint64
	// Activation defaults to Sigmoid.
	Activation         Activation
	Verbose            bool
	CheckpointPath     string
	CheckpointInterval uint32
	Callbacks          []Callback
	Logger             *log.Logger
}

// Result is a trained network with a summary of the run.
type Result struct {
	Network   *Network
	Example   string
	Epochs    uint32
	FinalLoss float64
}

// TrainExample builds the recommended network for the named example, trains
// it with a sigmoid activation and returns it.
func TrainExample(name string, epochs uint32, learningRate float64, seed uint64) (*Result, error) {
	return Train(name, TrainOptions{Epochs: epochs, LearningRate: learningRate, Seed: seed})
}

// Train is TrainExample with the full set of options.
func Train(name string, opts TrainOptions) (*Result, error) {
	ex, err := examples.Get(name)
	if err != nil {
		return nil, err
	}
	if opts.Epochs == 0 {
		return nil, fmt.Errorf("train %s: epochs must be > 0", name)
	}
	act := opts.Activation
	if act == nil {
		act = activations.Sigmoid{}
	}

	var n *Network
	if opts.Seed != 0 {
		n, err = net.NewSeeded(ex.Architecture, act, opts.LearningRate, opts.Seed)
	} else {
		n, err = net.New(ex.Architecture, act, opts.LearningRate)
	}
	if err != nil {
		return nil, err
	}

	c := training.New(n, training.Config{
		Epochs:             opts.Epochs,
		CheckpointInterval: opts.CheckpointInterval,
		CheckpointPath:     opts.CheckpointPath,
		Verbose:            opts.Verbose,
		ExampleName:        ex.Name,
	})
	c.SetLogger(opts.Logger)
	for _, cb := range opts.Callbacks {
		c.AddCallback(cb)
	}
	if err := c.Train(ex.Inputs, ex.Targets); err != nil {
		return nil, fmt.Errorf("train %s: %w", name, err)
	}

	return &Result{
		Network:   c.IntoNetwork(),
		Example:   ex.Name,
		Epochs:    c.Epoch(),
		FinalLoss: c.LastLoss(),
	}, nil
}

// Evaluate runs one inference without changing n.
func Evaluate(n *Network, input []float64) ([]float64, error) {
	return n.Predict(input)
}

// EvaluateLoss is the mean squared error of n over a labelled set.
func EvaluateLoss(n *Network, inputs, targets [][]float64) (float64, error) {
	if len(inputs) != len(targets) {
		return 0, fmt.Errorf("%w: %d inputs but %d targets", training.ErrDataset, len(inputs), len(targets))
	}
	losses := make([]float64, len(inputs))
	for i := range inputs {
		out, err := n.Predict(inputs[i])
		if err != nil {
			return 0, fmt.Errorf("sample %d: %w", i, err)
		}
		if len(out) != len(targets[i]) {
			return 0, fmt.Errorf("sample %d: %w", i, matrix.ErrDimensionMismatch)
		}
		losses[i] = loss.MSE{}.Forward(out, targets[i])
	}
	return loss.Mean(losses), nil
}

// Model Persistence
func SaveCheckpoint(path string, n *Network, meta Metadata) error {
	return checkpoint.Save(path, checkpoint.New(n, meta))
}

func LoadCheckpoint(path string) (*Checkpoint, error) {
	return checkpoint.Load(path)
}

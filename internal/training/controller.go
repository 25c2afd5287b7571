// Package training drives multi-epoch training of a network with progress
// callbacks and checkpointing.
package training

import (
	"errors"
	"fmt"
	"log"

	"github.com/FlavioCFOliveira/mlpnet/internal/checkpoint"
	"github.com/FlavioCFOliveira/mlpnet/internal/loss"
	"github.com/FlavioCFOliveira/mlpnet/internal/matrix"
	"github.com/FlavioCFOliveira/mlpnet/internal/net"
)

// DefaultExampleName is written to checkpoint metadata when the config does
// not name the dataset.
const DefaultExampleName = "custom"

// Common errors.
var (
	ErrReleased = errors.New("training: network already released")
	ErrRunning  = errors.New("training: already in progress")
	ErrDataset  = errors.New("training: invalid dataset")
)

// Config is the immutable configuration of one training run.
type Config struct {
	Epochs uint32 `yaml:"epochs"`
	// CheckpointInterval writes a checkpoint every N epochs when
	// CheckpointPath is also set. 0 disables interval checkpoints.
	CheckpointInterval uint32 `yaml:"checkpoint_interval"`
	// CheckpointPath enables the final checkpoint. Empty disables
	// checkpointing.
	CheckpointPath string `yaml:"checkpoint_path"`
	Verbose        bool   `yaml:"verbose"`
	ExampleName    string `yaml:"example"`
}

// State is the lifecycle stage of a Controller.
type State int

const (
	Idle State = iota
	Training
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Training:
		return "training"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Controller owns a network for the duration of training.
type Controller struct {
	network   *net.Network
	config    Config
	callbacks []Callback
	logger    *log.Logger
	lossFn    loss.Loss

	state    State
	epoch    uint32
	lastLoss float64
}

// New creates an idle controller. The controller takes ownership of n; the
// caller gets it back through IntoNetwork.
func New(n *net.Network, cfg Config) *Controller {
	return &Controller{
		network: n,
		config:  cfg,
		logger:  log.Default(),
		lossFn:  loss.MSE{},
	}
}

// SetLogger replaces the logger used for verbose progress and callback
// failures. nil restores log.Default().
func (c *Controller) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.Default()
	}
	c.logger = l
}

// AddCallback registers cb. Callbacks run in registration order after every
// epoch.
func (c *Controller) AddCallback(cb Callback) {
	c.callbacks = append(c.callbacks, cb)
}

// Config returns the run configuration.
func (c *Controller) Config() Config { return c.config }

// State returns the lifecycle stage.
func (c *Controller) State() State { return c.state }

// Epoch returns the number of epochs completed in the current or last run.
func (c *Controller) Epoch() uint32 { return c.epoch }

// LastLoss returns the loss of the most recent epoch.
func (c *Controller) LastLoss() float64 { return c.lastLoss }

// Network returns the owned network for inspection only. Callers must not
// train or modify it; use IntoNetwork to take ownership or Checkpoint for an
// independent copy. It is nil after IntoNetwork.
func (c *Controller) Network() *net.Network { return c.network }

// IntoNetwork ends the controller's ownership and returns the network.
// The controller cannot train afterwards. It returns nil while Train is
// running, so a callback cannot pull the network out from under the loop.
func (c *Controller) IntoNetwork() *net.Network {
	if c.state == Training {
		return nil
	}
	n := c.network
	c.network = nil
	return n
}

// Checkpoint snapshots the network with metadata for the current progress.
func (c *Controller) Checkpoint() (*checkpoint.Checkpoint, error) {
	if c.network == nil {
		return nil, ErrReleased
	}
	return checkpoint.New(c.network, c.metadata()), nil
}

func (c *Controller) metadata() checkpoint.Metadata {
	example := c.config.ExampleName
	if example == "" {
		example = DefaultExampleName
	}
	return checkpoint.Metadata{
		Example:      example,
		Epoch:        c.epoch,
		TotalEpochs:  c.config.Epochs,
		LearningRate: c.network.LearningRate(),
	}
}

// Train runs the configured number of epochs over the samples in order,
// updating after every sample. Any failure aborts the run and returns the
// controller to Idle; checkpoints already written stay valid.
func (c *Controller) Train(inputs, targets [][]float64) (err error) {
	if c.network == nil {
		return ErrReleased
	}
	if c.state == Training {
		return ErrRunning
	}
	xs, ys, err := c.prepare(inputs, targets)
	if err != nil {
		return err
	}

	c.state = Training
	c.epoch = 0
	defer func() {
		if err != nil {
			c.state = Idle
		} else {
			c.state = Completed
		}
	}()
	c.beginCallbacks()
	defer c.endCallbacks()

	total := c.config.Epochs
	if c.config.Verbose {
		c.logger.Printf("training example=%s layers=%v epochs=%d learning_rate=%g samples=%d",
			c.metadata().Example, c.network.Layers(), total, c.network.LearningRate(), len(xs))
	}

	losses := make([]float64, len(xs))
	for epoch := uint32(1); epoch <= total; epoch++ {
		for i := range xs {
			out, err := c.network.FeedForward(xs[i])
			if err != nil {
				return fmt.Errorf("epoch %d sample %d: %w", epoch, i, err)
			}
			losses[i] = c.lossFn.Forward(out.Data(), ys[i].Data())
			if err := c.network.BackPropagate(out, ys[i]); err != nil {
				return fmt.Errorf("epoch %d sample %d: %w", epoch, i, err)
			}
		}
		c.epoch = epoch
		c.lastLoss = loss.Mean(losses)

		if c.config.Verbose && net.ShouldReport(epoch, total) {
			c.logger.Printf("epoch=%d/%d loss=%.6f", epoch, total, c.lastLoss)
		}
		if err := c.notify(epoch, c.lastLoss); err != nil {
			return err
		}
		if c.intervalDue(epoch) {
			if err := c.save(); err != nil {
				return err
			}
		}
	}

	if c.config.CheckpointPath != "" {
		if err := c.save(); err != nil {
			return err
		}
	}
	if c.config.Verbose {
		c.logger.Printf("training complete epochs=%d loss=%.6f", c.epoch, c.lastLoss)
	}
	return nil
}

// intervalDue reports an interval checkpoint for epoch. The last epoch is
// covered by the final checkpoint.
func (c *Controller) intervalDue(epoch uint32) bool {
	if c.config.CheckpointInterval == 0 || c.config.CheckpointPath == "" {
		return false
	}
	return epoch%c.config.CheckpointInterval == 0 && epoch != c.config.Epochs
}

func (c *Controller) save() error {
	ckpt := checkpoint.New(c.network, c.metadata())
	if err := checkpoint.Save(c.config.CheckpointPath, ckpt); err != nil {
		return fmt.Errorf("epoch %d: %w", c.epoch, err)
	}
	if c.config.Verbose {
		c.logger.Printf("checkpoint saved path=%s epoch=%d", c.config.CheckpointPath, c.epoch)
	}
	return nil
}

// prepare converts the dataset to column matrices and checks every sample
// against the network before any weight changes.
func (c *Controller) prepare(inputs, targets [][]float64) ([]*matrix.Matrix, []*matrix.Matrix, error) {
	if len(inputs) != len(targets) {
		return nil, nil, fmt.Errorf("%w: %d inputs but %d targets", ErrDataset, len(inputs), len(targets))
	}
	if len(inputs) == 0 {
		return nil, nil, fmt.Errorf("%w: no samples", ErrDataset)
	}
	in, out := c.network.InputSize(), c.network.OutputSize()
	xs := make([]*matrix.Matrix, len(inputs))
	ys := make([]*matrix.Matrix, len(targets))
	for i := range inputs {
		if len(inputs[i]) != in {
			return nil, nil, &matrix.DimensionError{Op: fmt.Sprintf("input %d", i), LeftRows: in, LeftCols: 1, RightRows: len(inputs[i]), RightCols: 1}
		}
		if len(targets[i]) != out {
			return nil, nil, &matrix.DimensionError{Op: fmt.Sprintf("target %d", i), LeftRows: out, LeftCols: 1, RightRows: len(targets[i]), RightCols: 1}
		}
		xs[i] = matrix.FromSlice(inputs[i])
		ys[i] = matrix.FromSlice(targets[i])
	}
	return xs, ys, nil
}

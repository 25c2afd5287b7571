package training

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/FlavioCFOliveira/mlpnet/internal/checkpoint"
	"github.com/FlavioCFOliveira/mlpnet/internal/net"
)

// ErrAbort stops training when returned (or wrapped) by a callback.
var ErrAbort = errors.New("training: aborted by callback")

// Callback observes training progress. OnEpochEnd runs after every epoch with
// the 1-based epoch number and the epoch's mean loss. The network must be
// treated as read only.
//
// A returned error is logged and training continues, unless it wraps
// ErrAbort.
type Callback interface {
	OnEpochEnd(epoch uint32, loss float64, n *net.Network) error
}

// CallbackFunc adapts a function to Callback.
type CallbackFunc func(epoch uint32, loss float64, n *net.Network) error

// OnEpochEnd calls f.
func (f CallbackFunc) OnEpochEnd(epoch uint32, loss float64, n *net.Network) error {
	return f(epoch, loss, n)
}

// TrainBeginner is implemented by callbacks that acquire resources for a run.
type TrainBeginner interface {
	OnTrainBegin(n *net.Network) error
}

// TrainEnder is implemented by callbacks that release resources after a run.
// It is called whether or not training succeeded; a returned error is logged.
type TrainEnder interface {
	OnTrainEnd(n *net.Network) error
}

// notify runs the epoch callbacks in registration order.
func (c *Controller) notify(epoch uint32, loss float64) error {
	for i, cb := range c.callbacks {
		if err := c.invoke(i, cb, epoch, loss); err != nil {
			if errors.Is(err, ErrAbort) {
				return fmt.Errorf("epoch %d: %w", epoch, err)
			}
			c.logger.Printf("callback=%d epoch=%d error=%v", i, epoch, err)
		}
	}
	return nil
}

func (c *Controller) invoke(i int, cb Callback, epoch uint32, loss float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Printf("callback=%d epoch=%d panic=%v", i, epoch, r)
			err = nil
		}
	}()
	return cb.OnEpochEnd(epoch, loss, c.network)
}

func (c *Controller) beginCallbacks() {
	for i, cb := range c.callbacks {
		b, ok := cb.(TrainBeginner)
		if !ok {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Printf("callback=%d begin panic=%v", i, r)
				}
			}()
			if err := b.OnTrainBegin(c.network); err != nil {
				c.logger.Printf("callback=%d begin error=%v", i, err)
			}
		}()
	}
}

func (c *Controller) endCallbacks() {
	for i, cb := range c.callbacks {
		e, ok := cb.(TrainEnder)
		if !ok {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Printf("callback=%d end panic=%v", i, r)
				}
			}()
			if err := e.OnTrainEnd(c.network); err != nil {
				c.logger.Printf("callback=%d end error=%v", i, err)
			}
		}()
	}
}

// EarlyStopping aborts training when the loss has not improved by more than
// Threshold for Patience consecutive epochs.
type EarlyStopping struct {
	Patience  int
	Threshold float64

	bestLoss     float64
	numBadEpochs int
	// Stopped is set once the callback has aborted a run.
	Stopped bool
}

func NewEarlyStopping(patience int, threshold float64) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		bestLoss:  math.Inf(1),
	}
}

func (c *EarlyStopping) OnEpochEnd(epoch uint32, loss float64, n *net.Network) error {
	if loss < c.bestLoss-c.Threshold {
		c.bestLoss = loss
		c.numBadEpochs = 0
	} else {
		c.numBadEpochs++
	}

	if c.numBadEpochs >= c.Patience {
		c.Stopped = true
		return fmt.Errorf("%w: loss %.6f did not improve for %d epochs", ErrAbort, loss, c.Patience)
	}
	return nil
}

// BestCheckpoint saves a checkpoint whenever the epoch loss is the lowest seen
// so far. A failed write aborts training.
type BestCheckpoint struct {
	Path        string
	Example     string
	TotalEpochs uint32

	bestLoss float64
}

func NewBestCheckpoint(path, example string, totalEpochs uint32) *BestCheckpoint {
	return &BestCheckpoint{
		Path:        path,
		Example:     example,
		TotalEpochs: totalEpochs,
		bestLoss:    math.Inf(1),
	}
}

func (c *BestCheckpoint) OnEpochEnd(epoch uint32, loss float64, n *net.Network) error {
	if loss >= c.bestLoss {
		return nil
	}
	meta := checkpoint.Metadata{
		Example:      c.Example,
		Epoch:        epoch,
		TotalEpochs:  c.TotalEpochs,
		LearningRate: n.LearningRate(),
	}
	if err := checkpoint.Save(c.Path, checkpoint.New(n, meta)); err != nil {
		return fmt.Errorf("%w: best checkpoint: %w", ErrAbort, err)
	}
	c.bestLoss = loss
	return nil
}

// Logger logs the loss every Interval epochs.
type Logger struct {
	Interval uint32
	// Out defaults to log.Default().
	Out *log.Logger
}

func (c Logger) OnEpochEnd(epoch uint32, loss float64, n *net.Network) error {
	if c.Interval > 0 && epoch%c.Interval == 0 {
		out := c.Out
		if out == nil {
			out = log.Default()
		}
		out.Printf("epoch=%d loss=%.6f", epoch, loss)
	}
	return nil
}

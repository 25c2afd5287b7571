package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/FlavioCFOliveira/mlpnet/internal/activations"
	"github.com/FlavioCFOliveira/mlpnet/internal/checkpoint"
	"github.com/FlavioCFOliveira/mlpnet/internal/config"
	"github.com/FlavioCFOliveira/mlpnet/internal/dataset"
	"github.com/FlavioCFOliveira/mlpnet/internal/examples"
	"github.com/FlavioCFOliveira/mlpnet/internal/net"
	"github.com/FlavioCFOliveira/mlpnet/internal/training"
	"github.com/FlavioCFOliveira/mlpnet/internal/visualize"
	"github.com/FlavioCFOliveira/mlpnet/mlpnet"
)

// samples is the data a run trains or evaluates on.
type samples struct {
	name    string
	inputs  [][]float64
	targets [][]float64
	// arch is the recommended architecture, nil for CSV data.
	arch []int
}

type dataFlags struct {
	path      *string
	labels    *string
	header    *bool
	normalize *bool
}

func addDataFlags(fs *flag.FlagSet) dataFlags {
	return dataFlags{
		path:      fs.String("data", "", "CSV file with custom samples"),
		labels:    fs.String("labels", "", "comma separated label column indices for -data"),
		header:    fs.Bool("header", false, "the CSV file starts with a header row"),
		normalize: fs.Bool("normalize", false, "min-max normalize CSV features"),
	}
}

func loadCSV(path string, labelCols []int, header, normalize bool) (samples, error) {
	d, err := dataset.LoadCSV(path, labelCols, header)
	if err != nil {
		return samples{}, fmt.Errorf("load %s: %w", path, err)
	}
	if normalize {
		d.Normalize()
	}
	return samples{name: "", inputs: d.Samples, targets: d.Labels}, nil
}

func loadExample(name string) (samples, error) {
	ex, err := examples.Get(name)
	if err != nil {
		return samples{}, err
	}
	return samples{name: ex.Name, inputs: ex.Inputs, targets: ex.Targets, arch: ex.Architecture}, nil
}

func parseInts(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid integer list %q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number list %q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}

func toUint32(name string, v uint) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("-%s %d is out of range", name, v)
	}
	return uint32(v), nil
}

func newLogger(w io.Writer) *log.Logger {
	return log.New(w, "", log.LstdFlags)
}

func runTrain(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "YAML config file")
	example := fs.String("example", "", "built-in example: "+strings.Join(examples.List(), ", "))
	data := addDataFlags(fs)
	layers := fs.String("layers", "", "comma separated layer sizes for -data (default inputs,2*inputs,outputs)")
	activation := fs.String("activation", "", "activation: "+strings.Join(activations.Names(), ", "))
	epochs := fs.Uint("epochs", 0, "number of epochs")
	lr := fs.Float64("lr", 0, "learning rate")
	seed := fs.Uint64("seed", 0, "initialization seed (0 seeds from the clock)")
	output := fs.String("output", "", "checkpoint file written at the end of training")
	interval := fs.Uint("checkpoint-interval", 0, "also write the checkpoint every N epochs")
	verbose := fs.Bool("verbose", false, "log training progress")
	logCSV := fs.String("log-csv", "", "write per-epoch loss to this CSV file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			return err
		}
	}
	ep, err := toUint32("epochs", *epochs)
	if err != nil {
		return err
	}
	iv, err := toUint32("checkpoint-interval", *interval)
	if err != nil {
		return err
	}
	cfg.ApplyOverrides(config.Overrides{
		Example:            *example,
		Activation:         *activation,
		Epochs:             ep,
		LearningRate:       *lr,
		Seed:               *seed,
		CheckpointPath:     *output,
		CheckpointInterval: iv,
		Verbose:            *verbose,
		Data:               *data.path,
	})
	if *data.labels != "" {
		if cfg.Train.LabelCols, err = parseInts(*data.labels); err != nil {
			return err
		}
	}
	if *layers != "" {
		if cfg.Train.Layers, err = parseInts(*layers); err != nil {
			return err
		}
	}
	if *data.header {
		cfg.Train.Header = true
	}
	if *data.normalize {
		cfg.Train.Normalize = true
	}
	if *logCSV != "" {
		cfg.Train.LogCSV = *logCSV
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	t := cfg.Train

	var s samples
	if t.Data != "" {
		s, err = loadCSV(t.Data, t.LabelCols, t.Header, t.Normalize)
	} else {
		s, err = loadExample(t.Example)
	}
	if err != nil {
		return err
	}

	arch := t.Layers
	if arch == nil {
		arch = s.arch
	}
	if arch == nil {
		in, out := len(s.inputs[0]), len(s.targets[0])
		arch = []int{in, 2 * in, out}
	}
	act, err := activations.ByName(t.Activation)
	if err != nil {
		return err
	}
	var n *net.Network
	if t.Seed != 0 {
		n, err = net.NewSeeded(arch, act, t.LearningRate, t.Seed)
	} else {
		n, err = net.New(arch, act, t.LearningRate)
	}
	if err != nil {
		return err
	}

	logger := newLogger(stderr)
	c := training.New(n, t.TrainingConfig())
	c.SetLogger(logger)
	if t.LogCSV != "" {
		c.AddCallback(training.NewCSVLogger(t.LogCSV, false))
	}

	fmt.Fprintf(stdout, "Training %s: layers=%v activation=%s epochs=%d learning_rate=%g\n",
		displayName(s.name), arch, act.Name(), t.Epochs, t.LearningRate)
	if err := c.Train(s.inputs, s.targets); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Final loss: %.6f\n", c.LastLoss())
	if t.CheckpointPath != "" {
		fmt.Fprintf(stdout, "Checkpoint saved to %s\n", t.CheckpointPath)
	}
	return printPredictions(stdout, c.IntoNetwork(), s)
}

func displayName(name string) string {
	if name == "" {
		return training.DefaultExampleName
	}
	return name
}

func runResume(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("checkpoint", "", "checkpoint to resume from (required)")
	epochs := fs.Uint("epochs", 0, "number of additional epochs (required)")
	output := fs.String("output", "", "checkpoint file written at the end of training")
	interval := fs.Uint("checkpoint-interval", 0, "also write the checkpoint every N epochs")
	verbose := fs.Bool("verbose", false, "log training progress")
	data := addDataFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" || *epochs == 0 {
		fs.Usage()
		return fmt.Errorf("%w: -checkpoint and -epochs are required", errUsage)
	}
	ep, err := toUint32("epochs", *epochs)
	if err != nil {
		return err
	}
	iv, err := toUint32("checkpoint-interval", *interval)
	if err != nil {
		return err
	}
	if iv > 0 && *output == "" {
		return fmt.Errorf("%w: -checkpoint-interval requires -output", errUsage)
	}

	c, err := training.ResumeFile(*path, training.Config{
		Epochs:             ep,
		CheckpointInterval: iv,
		CheckpointPath:     *output,
		Verbose:            *verbose,
	})
	if err != nil {
		return err
	}
	c.SetLogger(newLogger(stderr))

	var s samples
	switch name := c.Config().ExampleName; {
	case *data.path != "":
		labels, err := parseInts(*data.labels)
		if err != nil {
			return err
		}
		s, err = loadCSV(*data.path, labels, *data.header, *data.normalize)
		if err != nil {
			return err
		}
	case name == training.DefaultExampleName || name == "":
		return fmt.Errorf("%w: checkpoint was trained on custom data; pass -data", errUsage)
	default:
		if s, err = loadExample(name); err != nil {
			return err
		}
	}

	n := c.Network()
	fmt.Fprintf(stdout, "Resuming %s from %s: layers=%v epochs=%d learning_rate=%g\n",
		c.Config().ExampleName, *path, n.Layers(), ep, n.LearningRate())
	if err := c.Train(s.inputs, s.targets); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Final loss: %.6f\n", c.LastLoss())
	if *output != "" {
		fmt.Fprintf(stdout, "Checkpoint saved to %s\n", *output)
	}
	return printPredictions(stdout, c.IntoNetwork(), s)
}

func printPredictions(w io.Writer, n *net.Network, s samples) error {
	fmt.Fprintln(w, "Predictions:")
	for i := range s.inputs {
		out, err := mlpnet.Evaluate(n, s.inputs[i])
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %v -> %s (target %v)\n", s.inputs[i], formatVector(out), s.targets[i])
	}
	return nil
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'f', 4, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func loadCheckpointFlag(fs *flag.FlagSet, path string) (*checkpoint.Checkpoint, error) {
	if path == "" {
		fs.Usage()
		return nil, fmt.Errorf("%w: -checkpoint is required", errUsage)
	}
	return checkpoint.Load(path)
}

func runEval(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("checkpoint", "", "checkpoint to evaluate (required)")
	input := fs.String("input", "", "comma separated input vector; omitted evaluates the checkpoint's example")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ckpt, err := loadCheckpointFlag(fs, *path)
	if err != nil {
		return err
	}
	n := ckpt.Restore()

	if *input != "" {
		x, err := parseFloats(*input)
		if err != nil {
			return err
		}
		out, err := mlpnet.Evaluate(n, x)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, formatVector(out))
		return nil
	}

	s, err := loadExample(ckpt.Metadata.Example)
	if err != nil {
		return fmt.Errorf("no -input given and %w", err)
	}
	if err := printPredictions(stdout, n, s); err != nil {
		return err
	}
	mse, err := mlpnet.EvaluateLoss(n, s.inputs, s.targets)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "MSE: %.6f\n", mse)
	return nil
}

func runExamples(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("examples", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, ex := range examples.All() {
		fmt.Fprintf(stdout, "%-5s %-10v %s\n", ex.Name, ex.Architecture, ex.Description)
	}
	return nil
}

func runInfo(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("checkpoint", "", "checkpoint to describe (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ckpt, err := loadCheckpointFlag(fs, *path)
	if err != nil {
		return err
	}

	n := ckpt.Network
	weights := 0
	for _, shape := range n.WeightShapes() {
		weights += shape[0] * shape[1]
	}
	total := n.ParameterCount()
	m := ckpt.Metadata
	fmt.Fprintf(stdout, "Example:       %s\n", m.Example)
	fmt.Fprintf(stdout, "Epochs:        %d/%d\n", m.Epoch, m.TotalEpochs)
	fmt.Fprintf(stdout, "Learning rate: %g\n", m.LearningRate)
	fmt.Fprintf(stdout, "Architecture:  %v\n", n.Layers())
	fmt.Fprintf(stdout, "Activation:    %s\n", n.Activation().Name())
	fmt.Fprintf(stdout, "Parameters:    %d (%d weights + %d biases)\n", total, weights, total-weights)
	return nil
}

func runVisualize(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("visualize", flag.ContinueOnError)
	fs.SetOutput(stderr)
	defaults := visualize.DefaultOptions()
	path := fs.String("checkpoint", "", "checkpoint to render (required)")
	output := fs.String("output", "", "SVG file to write (required)")
	width := fs.Int("width", defaults.Width, "canvas width in pixels")
	height := fs.Int("height", defaults.Height, "canvas height in pixels")
	showValues := fs.Bool("show-values", false, "label heavy weights with their value")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *output == "" {
		fs.Usage()
		return fmt.Errorf("%w: -output is required", errUsage)
	}
	ckpt, err := loadCheckpointFlag(fs, *path)
	if err != nil {
		return err
	}

	f, err := os.Create(*output)
	if err != nil {
		return err
	}
	err = visualize.Render(f, ckpt.Network, visualize.Options{Width: *width, Height: *height, ShowValues: *showValues})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Join(err, os.Remove(*output))
	}
	fmt.Fprintf(stdout, "SVG visualization saved to %s\n", *output)
	return nil
}

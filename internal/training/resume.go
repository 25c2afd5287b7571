package training

import (
	"fmt"

	"github.com/FlavioCFOliveira/mlpnet/internal/checkpoint"
)

// Resume creates a controller that continues from ckpt. The network is
// restored exactly; cfg.ExampleName defaults to the checkpoint's example.
//
// Epoch counting restarts: checkpoints written by the resumed run record the
// epochs of that run only, not the total since the network was created.
func Resume(ckpt *checkpoint.Checkpoint, cfg Config) (*Controller, error) {
	if ckpt == nil || ckpt.Network == nil {
		return nil, &checkpoint.FormatError{Reason: "missing network"}
	}
	if cfg.ExampleName == "" {
		cfg.ExampleName = ckpt.Metadata.Example
	}
	return New(ckpt.Restore(), cfg), nil
}

// ResumeFile loads the checkpoint at path and resumes from it.
func ResumeFile(path string, cfg Config) (*Controller, error) {
	ckpt, err := checkpoint.Load(path)
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	return Resume(ckpt, cfg)
}

// Package checkpoint persists a network together with training metadata.
package checkpoint

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/FlavioCFOliveira/mlpnet/internal/net"
)

// Metadata describes the training run that produced a checkpoint.
//
// Epoch and TotalEpochs describe only the run that wrote the checkpoint;
// a resumed run starts counting from zero again.
type Metadata struct {
	Example      string  `json:"example"`
	Epoch        uint32  `json:"epoch"`
	TotalEpochs  uint32  `json:"total_epochs"`
	LearningRate float64 `json:"learning_rate"`
}

// Checkpoint is a snapshot of a network plus metadata.
type Checkpoint struct {
	Metadata Metadata     `json:"metadata"`
	Network  *net.Network `json:"network"`
}

// New snapshots n. Later training of n does not affect the checkpoint.
func New(n *net.Network, meta Metadata) *Checkpoint {
	return &Checkpoint{Metadata: meta, Network: n.Clone()}
}

// Restore returns an independent copy of the stored network, ready for
// training or inference.
func (c *Checkpoint) Restore() *net.Network {
	return c.Network.Clone()
}

// Encode writes c as indented JSON.
func Encode(w io.Writer, c *Checkpoint) error {
	b, err := Marshal(c)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return &IOError{Op: "write", Err: err}
	}
	return nil
}

// Decode reads and validates a checkpoint.
func Decode(r io.Reader) (*Checkpoint, error) {
	var c Checkpoint
	dec := json.NewDecoder(r)
	if err := dec.Decode(&c); err != nil {
		return nil, &FormatError{Err: err}
	}
	if c.Network == nil {
		return nil, &FormatError{Reason: "missing network"}
	}
	return &c, nil
}

// Marshal returns the JSON encoding of c.
func Marshal(c *Checkpoint) ([]byte, error) {
	if c == nil || c.Network == nil {
		return nil, &FormatError{Reason: "missing network"}
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, &FormatError{Reason: "encode", Err: err}
	}
	return append(b, '\n'), nil
}

// Unmarshal decodes and validates a checkpoint held in memory.
func Unmarshal(b []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, &FormatError{Err: err}
	}
	if c.Network == nil {
		return nil, &FormatError{Reason: "missing network"}
	}
	return &c, nil
}

// Save writes c to path atomically: the document goes to a temporary file in
// the same directory which is renamed over path once fully written. A failed
// save leaves any previous file at path untouched.
func Save(path string, c *Checkpoint) error {
	if path == "" {
		return &IOError{Op: "write", Err: errors.New("path is empty")}
	}
	b, err := Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(b); err != nil {
		cleanup()
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Load reads and validates the checkpoint at path.
func Load(path string) (*Checkpoint, error) {
	if path == "" {
		return nil, &IOError{Op: "read", Err: errors.New("path is empty")}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return Unmarshal(b)
}

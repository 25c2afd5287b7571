package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/mlpnet/internal/checkpoint"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	return stdout.String(), err
}

func TestTrainResumeWorkflow(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "xor.json")

	out, err := runCLI(t, "train", "-example", "xor", "-epochs", "100", "-lr", "0.5", "-seed", "3", "-output", first)
	require.NoError(t, err)
	assert.Contains(t, out, "Training xor: layers=[2 3 1]")
	assert.Contains(t, out, "Checkpoint saved to "+first)
	assert.Equal(t, 4, strings.Count(out, "(target "))

	ckpt, err := checkpoint.Load(first)
	require.NoError(t, err)
	assert.EqualValues(t, 100, ckpt.Metadata.Epoch)

	second := filepath.Join(dir, "xor2.json")
	out, err = runCLI(t, "resume", "-checkpoint", first, "-epochs", "50", "-output", second)
	require.NoError(t, err)
	assert.Contains(t, out, "Resuming xor")

	ckpt, err = checkpoint.Load(second)
	require.NoError(t, err)
	assert.EqualValues(t, 50, ckpt.Metadata.Epoch)
	assert.EqualValues(t, 50, ckpt.Metadata.TotalEpochs)
	assert.Equal(t, []int{2, 3, 1}, ckpt.Network.Layers())

	out, err = runCLI(t, "info", "-checkpoint", second)
	require.NoError(t, err)
	assert.Contains(t, out, "Epochs:        50/50")
	assert.Contains(t, out, "Parameters:    13 (9 weights + 4 biases)")

	out, err = runCLI(t, "eval", "-checkpoint", second, "-input", "1,0")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "["), out)

	out, err = runCLI(t, "eval", "-checkpoint", second)
	require.NoError(t, err)
	assert.Contains(t, out, "MSE: ")

	svg := filepath.Join(dir, "xor.svg")
	_, err = runCLI(t, "visualize", "-checkpoint", second, "-output", svg)
	require.NoError(t, err)
	b, err := os.ReadFile(svg)
	require.NoError(t, err)
	assert.Contains(t, string(b), "<svg")
}

func TestTrainCSV(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(data, []byte("a,b,y\n0,0,0\n0,1,1\n1,0,1\n1,1,1\n"), 0o644))
	out := filepath.Join(dir, "or.json")

	stdout, err := runCLI(t, "train", "-data", data, "-labels", "2", "-header", "-epochs", "10", "-lr", "0.5", "-seed", "1", "-output", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Training custom: layers=[2 4 1]")

	ckpt, err := checkpoint.Load(out)
	require.NoError(t, err)
	assert.Equal(t, "custom", ckpt.Metadata.Example)

	_, err = runCLI(t, "resume", "-checkpoint", out, "-epochs", "5")
	assert.True(t, errors.Is(err, errUsage))

	_, err = runCLI(t, "resume", "-checkpoint", out, "-epochs", "5", "-data", data, "-labels", "2", "-header")
	assert.NoError(t, err)
}

func TestTrainConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("train:\n  example: and\n  epochs: 5\n  learning_rate: 0.3\n  seed: 9\n"), 0o644))

	out, err := runCLI(t, "train", "-config", cfg, "-epochs", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Training and: layers=[2 2 1] activation=sigmoid epochs=7 learning_rate=0.3")
}

func TestCLIErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := runCLI(t)
	assert.True(t, errors.Is(err, errUsage))

	_, err = runCLI(t, "fly")
	assert.True(t, errors.Is(err, errUsage))

	_, err = runCLI(t, "train", "-example", "nand")
	assert.Error(t, err)

	_, err = runCLI(t, "resume", "-checkpoint", filepath.Join(dir, "missing.json"), "-epochs", "5")
	assert.True(t, errors.Is(err, checkpoint.ErrIO))

	_, err = runCLI(t, "resume", "-epochs", "5")
	assert.True(t, errors.Is(err, errUsage))

	_, err = runCLI(t, "info")
	assert.True(t, errors.Is(err, errUsage))
}

func TestExamplesCommand(t *testing.T) {
	out, err := runCLI(t, "examples")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "\n"))
	assert.Contains(t, out, "xor")
}

func TestHelp(t *testing.T) {
	out, err := runCLI(t, "help")
	require.NoError(t, err)
	assert.Contains(t, out, "visualize")
}

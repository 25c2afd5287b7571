// Package examples holds the built-in logic-gate training sets.
package examples

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownExample is returned for names that are not registered.
var ErrUnknownExample = errors.New("unknown example")

// Example is a small training set with the architecture that learns it.
type Example struct {
	Name        string
	Description string
	Inputs      [][]float64
	Targets     [][]float64
	// Architecture is the recommended neuron count per layer.
	Architecture []int
}

var truthTable = [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}

var registry = map[string]Example{
	"and": {
		Name:         "and",
		Description:  "Logical AND: output is 1 only when both inputs are 1",
		Inputs:       truthTable,
		Targets:      [][]float64{{0}, {0}, {0}, {1}},
		Architecture: []int{2, 2, 1},
	},
	"or": {
		Name:         "or",
		Description:  "Logical OR: output is 1 when at least one input is 1",
		Inputs:       truthTable,
		Targets:      [][]float64{{0}, {1}, {1}, {1}},
		Architecture: []int{2, 2, 1},
	},
	"xor": {
		Name:         "xor",
		Description:  "Logical XOR: output is 1 when exactly one input is 1 (needs a hidden layer)",
		Inputs:       truthTable,
		Targets:      [][]float64{{0}, {1}, {1}, {0}},
		Architecture: []int{2, 3, 1},
	},
}

// Get returns a copy of the named example.
func Get(name string) (Example, error) {
	ex, ok := registry[name]
	if !ok {
		return Example{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownExample, name, List())
	}
	return ex.clone(), nil
}

// List returns the registered names in sorted order.
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every example ordered by name.
func All() []Example {
	out := make([]Example, 0, len(registry))
	for _, name := range List() {
		out = append(out, registry[name].clone())
	}
	return out
}

func (e Example) clone() Example {
	e.Inputs = cloneRows(e.Inputs)
	e.Targets = cloneRows(e.Targets)
	e.Architecture = append([]int(nil), e.Architecture...)
	return e
}

func cloneRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}

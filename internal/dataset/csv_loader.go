// Package dataset loads custom training data from CSV files.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalid is wrapped by every error describing malformed data.
var ErrInvalid = errors.New("invalid dataset")

// Dataset represents a collection of samples and labels.
type Dataset struct {
	Samples [][]float64
	Labels  [][]float64
}

// Len is the number of samples.
func (d *Dataset) Len() int { return len(d.Samples) }

// Width returns the feature and label counts of the first sample.
func (d *Dataset) Width() (features, labels int) {
	if len(d.Samples) == 0 {
		return 0, 0
	}
	return len(d.Samples[0]), len(d.Labels[0])
}

// LoadCSV loads data from a CSV file.
// labelCols specifies the indices of columns to be used as labels, in the
// order they appear in the label vector. All other columns are features.
// hasHeader skips the first line if true.
func LoadCSV(filename string, labelCols []int, hasHeader bool) (*Dataset, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return ReadCSV(file, labelCols, hasHeader)
}

// ReadCSV is LoadCSV over an arbitrary reader.
func ReadCSV(r io.Reader, labelCols []int, hasHeader bool) (*Dataset, error) {
	if len(labelCols) == 0 {
		return nil, fmt.Errorf("%w: no label columns", ErrInvalid)
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read csv: %v", ErrInvalid, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: csv file is empty", ErrInvalid)
	}

	startRow := 0
	if hasHeader {
		startRow = 1
	}

	if len(records) <= startRow {
		return nil, fmt.Errorf("%w: csv file has no data rows", ErrInvalid)
	}

	numCols := len(records[0])
	isLabelCol := make(map[int]bool)
	for _, col := range labelCols {
		if col < 0 || col >= numCols {
			return nil, fmt.Errorf("%w: label column %d out of range [0, %d)", ErrInvalid, col, numCols)
		}
		if isLabelCol[col] {
			return nil, fmt.Errorf("%w: label column %d repeated", ErrInvalid, col)
		}
		isLabelCol[col] = true
	}
	if len(labelCols) == numCols {
		return nil, fmt.Errorf("%w: no feature columns", ErrInvalid)
	}

	numSamples := len(records) - startRow
	samples := make([][]float64, numSamples)
	labels := make([][]float64, numSamples)

	for i := startRow; i < len(records); i++ {
		record := records[i]
		if len(record) != numCols {
			return nil, fmt.Errorf("%w: inconsistent number of columns at row %d", ErrInvalid, i)
		}

		sampleRow := make([]float64, 0, numCols-len(labelCols))
		labelValues := make(map[int]float64, len(labelCols))

		for j, valStr := range record {
			val, err := strconv.ParseFloat(valStr, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d, col %d: %v", ErrInvalid, i, j, err)
			}
			if isLabelCol[j] {
				labelValues[j] = val
			} else {
				sampleRow = append(sampleRow, val)
			}
		}

		labelRow := make([]float64, 0, len(labelCols))
		for _, col := range labelCols {
			labelRow = append(labelRow, labelValues[col])
		}

		samples[i-startRow] = sampleRow
		labels[i-startRow] = labelRow
	}

	return &Dataset{
		Samples: samples,
		Labels:  labels,
	}, nil
}

// Normalize performs min-max normalization of every feature to [0, 1].
// Constant features become 0.
func (d *Dataset) Normalize() {
	if len(d.Samples) == 0 {
		return
	}

	numFeatures := len(d.Samples[0])
	column := make([]float64, len(d.Samples))
	for f := 0; f < numFeatures; f++ {
		for i, sample := range d.Samples {
			column[i] = sample[f]
		}
		lo, hi := floats.Min(column), floats.Max(column)
		diff := hi - lo
		for _, sample := range d.Samples {
			if diff != 0 {
				sample[f] = (sample[f] - lo) / diff
			} else {
				sample[f] = 0
			}
		}
	}
}

// Split splits the dataset into two based on the given ratio (0.0 to 1.0).
// Returns two new Datasets (train, test).
func (d *Dataset) Split(ratio float64) (*Dataset, *Dataset) {
	if ratio <= 0 {
		return &Dataset{}, d
	}
	if ratio >= 1 {
		return d, &Dataset{}
	}

	splitIdx := int(float64(len(d.Samples)) * ratio)

	train := &Dataset{
		Samples: d.Samples[:splitIdx],
		Labels:  d.Labels[:splitIdx],
	}

	test := &Dataset{
		Samples: d.Samples[splitIdx:],
		Labels:  d.Labels[splitIdx:],
	}

	return train, test
}

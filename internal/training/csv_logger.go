package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/FlavioCFOliveira/mlpnet/internal/net"
)

// CSVLogger writes one "epoch,loss,time_seconds" row per epoch to a file.
type CSVLogger struct {
	Filename string
	Append   bool

	file   *os.File
	writer *csv.Writer
	start  time.Time
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
	}
}

func (c *CSVLogger) OnTrainBegin(n *net.Network) error {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0o644)
	if err != nil {
		return fmt.Errorf("csv logger: %w", err)
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.start = time.Now()

	// Header only for fresh files.
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("csv logger: %w", err)
	}
	if info.Size() == 0 || !c.Append {
		if err := c.writer.Write([]string{"epoch", "loss", "time_seconds"}); err != nil {
			return fmt.Errorf("csv logger: %w", err)
		}
		c.writer.Flush()
	}
	if err := c.writer.Error(); err != nil {
		return fmt.Errorf("csv logger: %w", err)
	}
	return nil
}

func (c *CSVLogger) OnEpochEnd(epoch uint32, loss float64, n *net.Network) error {
	if c.writer == nil {
		return nil
	}

	elapsed := time.Since(c.start).Seconds()
	record := []string{
		strconv.FormatUint(uint64(epoch), 10),
		strconv.FormatFloat(loss, 'f', 6, 64),
		strconv.FormatFloat(elapsed, 'f', 2, 64),
	}
	if err := c.writer.Write(record); err != nil {
		return fmt.Errorf("csv logger: %w", err)
	}
	c.writer.Flush()
	return c.writer.Error()
}

func (c *CSVLogger) OnTrainEnd(n *net.Network) error {
	if c.file == nil {
		return nil
	}
	c.writer.Flush()
	flushErr := c.writer.Error()
	closeErr := c.file.Close()
	c.file = nil
	c.writer = nil
	if err := errors.Join(flushErr, closeErr); err != nil {
		return fmt.Errorf("csv logger: %w", err)
	}
	return nil
}

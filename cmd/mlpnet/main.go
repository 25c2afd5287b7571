// Command mlpnet trains, resumes, evaluates and visualizes multi-layer
// perceptrons.
//
//	mlpnet train -example xor -epochs 10000 -output xor.json
//	mlpnet resume -checkpoint xor.json -epochs 5000 -output xor2.json
//	mlpnet eval -checkpoint xor.json -input 1,0
//	mlpnet visualize -checkpoint xor.json -output xor.svg
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

var errUsage = errors.New("usage")

func main() {
	log.SetFlags(log.LstdFlags)
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("mlpnet: %v", err)
	}
}

type command struct {
	name    string
	summary string
	run     func(args []string, stdout, stderr io.Writer) error
}

var commands = []command{
	{"train", "train a network on a built-in example or a CSV file", runTrain},
	{"resume", "continue training from a checkpoint", runResume},
	{"eval", "run inference with a checkpoint", runEval},
	{"examples", "list the built-in examples", runExamples},
	{"info", "describe a checkpoint", runInfo},
	{"visualize", "render a checkpoint as SVG", runVisualize},
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errUsage
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(args[1:], stdout, stderr)
		}
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(stdout)
		return nil
	}
	printUsage(stderr)
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mlpnet <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'mlpnet <command> -h' for command options.")
}

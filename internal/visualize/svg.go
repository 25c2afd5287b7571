// Package visualize renders a network's architecture and weights as SVG.
package visualize

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/FlavioCFOliveira/mlpnet/internal/net"
)

const (
	margin     = 80
	neuronSize = 20
	// neuronPitch is the vertical distance between neurons of one layer.
	neuronPitch = neuronSize * 3
)

// Options control the canvas.
type Options struct {
	Width  int
	Height int
	// ShowValues prints the value of heavy weights beside their line.
	ShowValues bool
}

// DefaultOptions is a 1200x800 canvas without weight labels.
func DefaultOptions() Options {
	return Options{Width: 1200, Height: 800}
}

type point struct{ x, y int }

// Render writes an SVG document for n to w. Weights are drawn as lines, blue
// for positive and red for negative, with colour intensity and thickness
// scaled by magnitude within the layer.
func Render(w io.Writer, n *net.Network, opts Options) error {
	if opts.Width <= 2*margin || opts.Height <= 0 {
		return errors.New("visualize: canvas too small")
	}
	layers := n.Layers()
	positions := layout(layers, opts)

	var b strings.Builder
	header(&b, layers, opts)

	b.WriteString("<!-- Weight connections -->\n")
	for i, wm := range n.WeightMatrices() {
		data := wm.Data()
		lo, hi := magnitudeRange(data)
		for from, p1 := range positions[i] {
			for to, p2 := range positions[i+1] {
				weight := data[to*wm.Cols()+from]
				norm := 0.5
				if hi > lo {
					norm = (math.Abs(weight) - lo) / (hi - lo)
				}
				thickness := 0.5 + norm*3
				fmt.Fprintf(&b, "<line x1=\"%d\" y1=\"%d\" x2=\"%d\" y2=\"%d\" stroke=\"%s\" stroke-width=\"%.2f\" class=\"weight-line\">\n",
					p1.x, p1.y+neuronSize/2, p2.x, p2.y+neuronSize/2, weightColor(weight, norm), thickness)
				fmt.Fprintf(&b, "  <title>Weight: %.4f (from L%d N%d to L%d N%d)</title>\n</line>\n",
					weight, i, from, i+1, to)
				if opts.ShowValues && thickness > 2 {
					fmt.Fprintf(&b, "<text x=\"%d\" y=\"%d\" class=\"weight-label\" text-anchor=\"middle\">%.2f</text>\n",
						(p1.x+p2.x)/2, (p1.y+p2.y)/2+neuronSize/2, weight)
				}
			}
		}
	}

	b.WriteString("<!-- Neurons -->\n")
	biases := n.BiasMatrices()
	for l, layer := range positions {
		first := layer[0]
		fmt.Fprintf(&b, "<text x=\"%d\" y=\"%d\" class=\"layer-label\" text-anchor=\"middle\">Layer %d: %s</text>\n",
			first.x, first.y-20, l, layerName(l, len(layers)))
		for j, p := range layer {
			detail := "Input node"
			if l > 0 {
				detail = fmt.Sprintf("Bias: %.4f", biases[l-1].At(j, 0))
			}
			fmt.Fprintf(&b, "<circle cx=\"%d\" cy=\"%d\" r=\"%d\" class=\"neuron\">\n  <title>L%d N%d - %s</title>\n</circle>\n",
				p.x, p.y+neuronSize/2, neuronSize, l, j, detail)
			fmt.Fprintf(&b, "<text x=\"%d\" y=\"%d\" class=\"neuron-label\" text-anchor=\"middle\">%d</text>\n",
				p.x, p.y+neuronSize/2+5, j)
		}
	}

	legend(&b, opts)
	b.WriteString("</svg>\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// layout centres each layer vertically; layers are spread evenly across
// the width.
func layout(layers []int, opts Options) [][]point {
	spacing := (opts.Width - 2*margin) / (len(layers) - 1)
	out := make([][]point, len(layers))
	for l, count := range layers {
		x := margin + l*spacing
		startY := (opts.Height - count*neuronPitch) / 2
		out[l] = make([]point, count)
		for j := range out[l] {
			out[l][j] = point{x: x, y: startY + j*neuronPitch}
		}
	}
	return out
}

func magnitudeRange(data []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range data {
		a := math.Abs(v)
		lo = math.Min(lo, a)
		hi = math.Max(hi, a)
	}
	return lo, hi
}

func weightColor(weight, norm float64) string {
	intensity := int(norm*200) + 55
	if weight >= 0 {
		return fmt.Sprintf("rgb(55, %d, 255)", intensity)
	}
	return fmt.Sprintf("rgb(255, %d, %d)", intensity, intensity)
}

func layerName(l, count int) string {
	switch l {
	case 0:
		return "Input"
	case count - 1:
		return "Output"
	default:
		return "Hidden"
	}
}

func architecture(layers []int) string {
	parts := make([]string, len(layers))
	for i, n := range layers {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "-")
}

func header(b *strings.Builder, layers []int, opts Options) {
	fmt.Fprintf(b, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %[1]d %[2]d" width="%[1]d" height="%[2]d">
<defs>
  <style>
    .neuron { fill: #4a90e2; stroke: #2c5aa0; stroke-width: 2; }
    .neuron:hover { fill: #5ba3ff; cursor: pointer; }
    .weight-line { stroke-opacity: 0.6; }
    .weight-line:hover { stroke-opacity: 1.0; stroke-width: 3; }
    .layer-label { font-family: Arial, sans-serif; font-size: 14px; fill: #333; }
    .neuron-label { font-family: Arial, sans-serif; font-size: 10px; fill: #666; }
    .weight-label { font-family: Arial, sans-serif; font-size: 8px; fill: #888; }
    .title { font-family: Arial, sans-serif; font-size: 20px; font-weight: bold; fill: #333; }
    .subtitle { font-family: Arial, sans-serif; font-size: 14px; fill: #666; }
  </style>
</defs>
<rect width="%[1]d" height="%[2]d" fill="#f5f7fa"/>
<text x="%[3]d" y="30" class="title" text-anchor="middle">Neural Network Architecture</text>
<text x="%[3]d" y="50" class="subtitle" text-anchor="middle">%[4]s</text>
`, opts.Width, opts.Height, opts.Width/2, architecture(layers))
}

func legend(b *strings.Builder, opts Options) {
	fmt.Fprintf(b, `<g transform="translate(%d, %d)">
  <text x="0" y="0" class="layer-label">Legend:</text>
  <line x1="0" y1="15" x2="50" y2="15" stroke="rgb(55, 155, 255)" stroke-width="3" class="weight-line"/>
  <text x="60" y="20" class="neuron-label">Positive weight</text>
  <line x1="0" y1="35" x2="50" y2="35" stroke="rgb(255, 155, 155)" stroke-width="3" class="weight-line"/>
  <text x="60" y="40" class="neuron-label">Negative weight</text>
  <text x="0" y="60" class="neuron-label">Line thickness = weight magnitude</text>
  <text x="0" y="75" class="neuron-label">Hover over elements for details</text>
</g>
`, margin, opts.Height-100)
}

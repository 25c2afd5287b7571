package server

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/FlavioCFOliveira/mlpnet/internal/net"
	"github.com/FlavioCFOliveira/mlpnet/internal/training"
	"github.com/FlavioCFOliveira/mlpnet/mlpnet"
)

type progressEvent struct {
	Epoch       uint32  `json:"epoch"`
	TotalEpochs uint32  `json:"total_epochs"`
	Loss        float64 `json:"loss"`
}

// sseWriter emits server-sent events.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (e *sseWriter) send(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

// handleTrainStream trains like handleTrain but streams progress events at
// the same cadence as verbose training logs, then a complete (or error)
// event. A client disconnect aborts training.
func (s *Server) handleTrainStream(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	opts, err := s.options(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, fmt.Errorf("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	events := &sseWriter{w: w, flusher: flusher}

	ctx := r.Context()
	opts.Callbacks = append(opts.Callbacks, training.CallbackFunc(func(epoch uint32, loss float64, n *net.Network) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", training.ErrAbort, err)
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return fmt.Errorf("%w: %w: epoch %d loss %v", training.ErrAbort, errDiverged, epoch, loss)
		}
		if !net.ShouldReport(epoch, req.Epochs) {
			return nil
		}
		if err := events.send("progress", progressEvent{Epoch: epoch, TotalEpochs: req.Epochs, Loss: loss}); err != nil {
			return fmt.Errorf("%w: %v", training.ErrAbort, err)
		}
		return nil
	}))

	res, err := mlpnet.Train(req.Example, opts)
	if err != nil {
		s.logger.Printf("stream training failed example=%s error=%v", req.Example, err)
		events.send("error", errorResponse{Error: err.Error()})
		return
	}
	events.send("complete", s.keep(res, req))
}
